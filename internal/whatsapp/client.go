// Package whatsapp integrates with the WhatsApp Business (Graph) API:
// an outbound message client and the inbound webhook handler.
package whatsapp

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"
)

const defaultGraphBase = "https://graph.facebook.com/v18.0"

// HTTPClient lets tests substitute the outbound HTTP transport.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client sends messages through the Graph API on behalf of one business
// phone number.
type Client struct {
	token         string
	phoneNumberID string
	base          string
	http          HTTPClient
	log           zerolog.Logger
}

func NewClient(token, phoneNumberID string, httpClient HTTPClient, log zerolog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		token:         token,
		phoneNumberID: phoneNumberID,
		base:          defaultGraphBase,
		http:          httpClient,
		log:           log,
	}
}

// WithBaseURL overrides the Graph API endpoint, used in tests.
func (c *Client) WithBaseURL(base string) *Client {
	c.base = base
	return c
}

// SendText delivers a plain text message to one recipient.
func (c *Client) SendText(to, body string) error {
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "text",
		"text":              map[string]string{"body": body},
	}
	return c.send(to, payload)
}

// SendTemplate delivers a pre-approved message template, used for
// notifications such as petition updates.
func (c *Client) SendTemplate(to, templateName string, params []string) error {
	template := map[string]any{
		"name":     templateName,
		"language": map[string]string{"code": "en"},
	}
	if len(params) > 0 {
		values := make([]map[string]string, 0, len(params))
		for _, p := range params {
			values = append(values, map[string]string{"type": "text", "text": p})
		}
		template["components"] = []map[string]any{{"type": "body", "parameters": values}}
	}
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "template",
		"template":          template,
	}
	return c.send(to, payload)
}

func (c *Client) send(to string, payload map[string]any) error {
	if c.token == "" || c.phoneNumberID == "" {
		return errors.New("whatsapp credentials not configured")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/%s/messages", c.base, c.phoneNumberID)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		c.log.Error().Int("status", resp.StatusCode).Str("to", to).Msg("whatsapp send failed")
		return fmt.Errorf("whatsapp send failed (%d): %s", resp.StatusCode, string(b))
	}
	return nil
}
