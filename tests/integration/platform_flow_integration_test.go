//go:build integration

package integration_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"
)

func baseURL() string {
	if v := os.Getenv("DCP_TEST_BASE_URL"); strings.TrimSpace(v) != "" {
		return strings.TrimRight(v, "/")
	}
	return "http://127.0.0.1:8080"
}

// adminToken logs in with the seeded admin account. Set DCP_TEST_ADMIN_EMAIL
// and DCP_TEST_ADMIN_PASSWORD to match the server's ADMIN_EMAIL/ADMIN_PASSWORD.
func adminToken(t *testing.T, client *http.Client, base string) string {
	t.Helper()
	email := os.Getenv("DCP_TEST_ADMIN_EMAIL")
	password := os.Getenv("DCP_TEST_ADMIN_PASSWORD")
	if email == "" || password == "" {
		t.Skip("DCP_TEST_ADMIN_EMAIL/DCP_TEST_ADMIN_PASSWORD not set")
	}
	var loginResp struct {
		Token string `json:"token"`
	}
	doPost(t, client, base+"/api/auth/login", "", map[string]string{
		"email":    email,
		"password": password,
	}, &loginResp)
	if loginResp.Token == "" {
		t.Fatalf("admin login did not return token")
	}
	return loginResp.Token
}

func TestSurveyJourneyIntegration(t *testing.T) {
	client := &http.Client{Timeout: 5 * time.Second}
	base := baseURL()
	admin := adminToken(t, client, base)

	var createResp struct {
		ID        string `json:"id"`
		Questions []struct {
			ID   string `json:"id"`
			Type string `json:"type"`
		} `json:"questions"`
	}
	doPost(t, client, base+"/api/surveys", admin, map[string]any{
		"title":           fmt.Sprintf("Integration Survey %d", time.Now().UnixNano()),
		"allow_anonymous": true,
		"questions": []map[string]any{
			{"type": "multiple_choice", "text": "Top issue?", "options": []string{"Water", "Roads"}},
			{"type": "rating", "text": "Rate service delivery", "min_rating": 1, "max_rating": 5},
			{"type": "short_text", "text": "Anything else?"},
		},
	}, &createResp)
	if createResp.ID == "" || len(createResp.Questions) != 3 {
		t.Fatalf("unexpected create response: %+v", createResp)
	}

	userEmail := fmt.Sprintf("integration_%d@example.com", time.Now().UnixNano())
	var registerResp struct {
		Token  string `json:"token"`
		UserID string `json:"user_id"`
	}
	doPost(t, client, base+"/api/auth/register", "", map[string]string{
		"email":    userEmail,
		"password": "Secret123!",
		"name":     "Integration User",
	}, &registerResp)
	if registerResp.Token == "" {
		t.Fatalf("register did not return token")
	}

	doPost(t, client, base+"/api/surveys/"+createResp.ID+"/responses", registerResp.Token, map[string]any{
		"answers": []map[string]any{
			{"question_id": createResp.Questions[0].ID, "value": "Water"},
			{"question_id": createResp.Questions[1].ID, "value": 4},
			{"question_id": createResp.Questions[2].ID, "value": "fix the boreholes"},
		},
	}, nil)

	var results struct {
		TotalResponses int `json:"total_responses"`
		Aggregates     []struct {
			QuestionID string `json:"question_id"`
			Answered   int    `json:"answered"`
		} `json:"aggregates"`
	}
	doGet(t, client, base+"/api/surveys/"+createResp.ID+"/results", "", &results)
	if results.TotalResponses != 1 || len(results.Aggregates) != 3 {
		t.Fatalf("unexpected results: %+v", results)
	}

	csvData := doGetRaw(t, client, base+"/api/surveys/"+createResp.ID+"/export", admin)
	if !strings.Contains(string(csvData), createResp.Questions[0].ID) {
		t.Fatalf("export csv missing question column; csv=%s", string(csvData))
	}
}

func TestPetitionJourneyIntegration(t *testing.T) {
	client := &http.Client{Timeout: 5 * time.Second}
	base := baseURL()
	admin := adminToken(t, client, base)

	var createResp struct {
		ID string `json:"id"`
	}
	doPost(t, client, base+"/api/petitions", admin, map[string]string{
		"title":   fmt.Sprintf("Integration Petition %d", time.Now().UnixNano()),
		"summary": "created by the integration suite",
	}, &createResp)
	if createResp.ID == "" {
		t.Fatalf("expected petition id in response")
	}

	signerEmail := fmt.Sprintf("signer_%d@example.com", time.Now().UnixNano())
	doPost(t, client, base+"/api/petitions/"+createResp.ID+"/sign", "", map[string]any{
		"name":  "Integration Signer",
		"email": signerEmail,
	}, nil)

	var detail struct {
		Signatures int `json:"signatures"`
	}
	doGet(t, client, base+"/api/petitions/"+createResp.ID, "", &detail)
	if detail.Signatures != 1 {
		t.Fatalf("signature count = %d, want 1", detail.Signatures)
	}

	// Duplicate signatures must be rejected with 409.
	status := postStatus(t, client, base+"/api/petitions/"+createResp.ID+"/sign", map[string]any{
		"name":  "Integration Signer",
		"email": signerEmail,
	})
	if status != http.StatusConflict {
		t.Fatalf("duplicate sign status = %d, want 409", status)
	}
}

func doPost(t *testing.T, client *http.Client, url, token string, body any, out any) {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if strings.TrimSpace(token) != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("http post %s failed: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		t.Fatalf("unexpected status %d for %s: %s", resp.StatusCode, url, string(bodyBytes))
	}
	if out != nil {
		decoder := json.NewDecoder(resp.Body)
		if err := decoder.Decode(out); err != nil && err != io.EOF {
			t.Fatalf("decode response from %s: %v", url, err)
		}
	}
}

func postStatus(t *testing.T, client *http.Client, url string, body any) int {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	resp, err := client.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("http post %s failed: %v", url, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode
}

func doGet(t *testing.T, client *http.Client, url, token string, out any) {
	t.Helper()
	body := doGetRaw(t, client, url, token)
	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			t.Fatalf("decode response from %s: %v", url, err)
		}
	}
}

func doGetRaw(t *testing.T, client *http.Client, url, token string) []byte {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if strings.TrimSpace(token) != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("http get %s failed: %v", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response from %s: %v", url, err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d for %s: %s", resp.StatusCode, url, string(body))
	}
	return body
}
