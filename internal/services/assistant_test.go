package services

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"
)

type fakeHTTPClient struct {
	lastReq *http.Request
	status  int
	body    string
	err     error
}

func (f *fakeHTTPClient) Do(req *http.Request) (*http.Response, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	status := f.status
	if status == 0 {
		status = http.StatusOK
	}
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewBufferString(f.body)),
	}, nil
}

func completionBody(content string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"role": "assistant", "content": content}},
		},
	})
	return string(b)
}

func TestAssistantRespondBuildsChatRequest(t *testing.T) {
	client := &fakeHTTPClient{body: completionBody("DCP is a citizen movement.")}
	r := NewAssistantResponder("sk-test", "", "", client)

	history := []Turn{
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "hello"},
		{Role: "tool", Content: "ignored"},
	}
	answer, err := r.Respond("what is DCP?", history)
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if answer != "DCP is a citizen movement." {
		t.Fatalf("answer = %q", answer)
	}

	req := client.lastReq
	if req.URL.String() != "https://api.openai.com/v1/chat/completions" {
		t.Fatalf("url = %s", req.URL)
	}
	if got := req.Header.Get("Authorization"); got != "Bearer sk-test" {
		t.Fatalf("auth header = %q", got)
	}

	var payload struct {
		Model       string        `json:"model"`
		Temperature float64       `json:"temperature"`
		MaxTokens   int           `json:"max_tokens"`
		Messages    []chatMessage `json:"messages"`
	}
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.Model != "gpt-4o-mini" || payload.Temperature != 0.7 || payload.MaxTokens != 500 {
		t.Fatalf("payload knobs = %s/%v/%d", payload.Model, payload.Temperature, payload.MaxTokens)
	}
	// system + 2 history turns (unknown role dropped) + current message.
	if len(payload.Messages) != 4 {
		t.Fatalf("messages = %d, want 4", len(payload.Messages))
	}
	if payload.Messages[0].Role != "system" {
		t.Fatalf("first message role = %q", payload.Messages[0].Role)
	}
	last := payload.Messages[len(payload.Messages)-1]
	if last.Role != "user" || last.Content != "what is DCP?" {
		t.Fatalf("last message = %+v", last)
	}
}

func TestAssistantRespondFailures(t *testing.T) {
	t.Run("transport error", func(t *testing.T) {
		r := NewAssistantResponder("sk-test", "", "", &fakeHTTPClient{err: errors.New("dial timeout")})
		_, err := r.Respond("hi", nil)
		if se, ok := AsServiceError(err); !ok || se.Code != ErrorBadGateway {
			t.Fatalf("err = %v, want bad gateway", err)
		}
	})
	t.Run("upstream 500", func(t *testing.T) {
		r := NewAssistantResponder("sk-test", "", "", &fakeHTTPClient{status: 500, body: "boom"})
		_, err := r.Respond("hi", nil)
		if se, ok := AsServiceError(err); !ok || se.Code != ErrorBadGateway {
			t.Fatalf("err = %v, want bad gateway", err)
		}
	})
	t.Run("empty choices", func(t *testing.T) {
		r := NewAssistantResponder("sk-test", "", "", &fakeHTTPClient{body: `{"choices":[]}`})
		_, err := r.Respond("hi", nil)
		if se, ok := AsServiceError(err); !ok || se.Code != ErrorBadGateway {
			t.Fatalf("err = %v, want bad gateway", err)
		}
	})
	t.Run("no api key", func(t *testing.T) {
		r := NewAssistantResponder("", "", "", &fakeHTTPClient{})
		_, err := r.Respond("hi", nil)
		if se, ok := AsServiceError(err); !ok || se.Code != ErrorInvalid {
			t.Fatalf("err = %v, want invalid", err)
		}
	})
}

func TestChatCompletionsEndpoint(t *testing.T) {
	cases := map[string]string{
		"":                            "https://api.openai.com/v1/chat/completions",
		"https://proxy.example.com":   "https://proxy.example.com/v1/chat/completions",
		"https://proxy.example.com/":  "https://proxy.example.com/v1/chat/completions",
		"https://api.example.com/v1":  "https://api.example.com/v1/chat/completions",
		"https://x.dev/v1/chat/completions": "https://x.dev/v1/chat/completions",
	}
	for base, want := range cases {
		if got := chatCompletionsEndpoint(base); got != want {
			t.Fatalf("endpoint(%q) = %q, want %q", base, got, want)
		}
	}
}
