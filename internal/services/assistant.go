package services

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
)

// HTTPClient lets tests substitute the outbound HTTP transport.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// systemPrompt frames the assistant for civic-engagement questions. The
// same responder serves the website chat widget and the WhatsApp bot.
const systemPrompt = `You are a helpful assistant for the Defend the Constitution Platform (DCP), a citizen-led movement in Zimbabwe.
Your role is to:
- Answer questions about DCP's mission, values, and activities
- Provide information about constitutional rights and democratic governance
- Help users understand how to get involved with the movement
- Be respectful, informative, and supportive

Keep responses concise, helpful, and aligned with DCP's values. If asked about something outside your knowledge, politely redirect to the contact form.`

// AssistantResponder answers free-form messages through an OpenAI-compatible
// chat-completions endpoint.
type AssistantResponder struct {
	client HTTPClient
	apiKey string
	base   string
	model  string
}

func NewAssistantResponder(apiKey, base, model string, client HTTPClient) *AssistantResponder {
	if client == nil {
		client = http.DefaultClient
	}
	if strings.TrimSpace(model) == "" {
		model = "gpt-4o-mini"
	}
	return &AssistantResponder{client: client, apiKey: apiKey, base: base, model: model}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Respond sends the message plus prior history and returns the model's
// answer. All failures surface as bad-gateway errors so callers can map
// them to a generic apology without leaking internals.
func (a *AssistantResponder) Respond(message string, history []Turn) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", NewInvalidError("message required")
	}
	if strings.TrimSpace(a.apiKey) == "" {
		return "", NewInvalidError("assistant API key not configured")
	}
	messages := make([]chatMessage, 0, len(history)+2)
	messages = append(messages, chatMessage{Role: "system", Content: systemPrompt})
	for _, turn := range history {
		if turn.Role != "user" && turn.Role != "assistant" {
			continue
		}
		messages = append(messages, chatMessage{Role: turn.Role, Content: turn.Content})
	}
	messages = append(messages, chatMessage{Role: "user", Content: message})

	payload := map[string]any{
		"model":       a.model,
		"temperature": 0.7,
		"max_tokens":  500,
		"messages":    messages,
	}
	pb, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequest(http.MethodPost, chatCompletionsEndpoint(a.base), bytes.NewReader(pb))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.apiKey)
	resp, err := a.client.Do(req)
	if err != nil {
		return "", NewBadGatewayError(err.Error())
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return "", NewBadGatewayError(string(b))
	}
	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&cc); err != nil {
		return "", NewBadGatewayError(err.Error())
	}
	if len(cc.Choices) == 0 || strings.TrimSpace(cc.Choices[0].Message.Content) == "" {
		return "", NewBadGatewayError("no answer from model")
	}
	return cc.Choices[0].Message.Content, nil
}

func chatCompletionsEndpoint(base string) string {
	endpoint := strings.TrimRight(strings.TrimSpace(base), "/")
	if endpoint == "" {
		endpoint = "https://api.openai.com"
	}
	switch {
	case strings.HasSuffix(endpoint, "/chat/completions"):
		return endpoint
	case strings.HasSuffix(endpoint, "/v1"):
		return endpoint + "/chat/completions"
	default:
		return endpoint + "/v1/chat/completions"
	}
}
