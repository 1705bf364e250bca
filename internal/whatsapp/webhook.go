package whatsapp

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"
)

const textOnlyReply = "I can only process text messages at the moment. Please type your question and I'll be happy to help!"

// Bot produces one reply for one inbound text message.
type Bot interface {
	HandleMessage(sender, text string) string
}

// Sender delivers an outbound text reply.
type Sender interface {
	SendText(to, body string) error
}

// Handler serves the Meta webhook endpoints: the GET verification
// handshake and the POST message delivery. POST always acknowledges with
// 200 regardless of internal outcome, otherwise Meta retries delivery.
type Handler struct {
	verifyToken string
	bot         Bot
	sender      Sender
	log         zerolog.Logger
}

func NewHandler(verifyToken string, bot Bot, sender Sender, log zerolog.Logger) *Handler {
	return &Handler{verifyToken: verifyToken, bot: bot, sender: sender, log: log}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.verify(w, r)
	case http.MethodPost:
		h.receive(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// verify answers Meta's subscription handshake by echoing the challenge.
func (h *Handler) verify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode := q.Get("hub.mode")
	token := q.Get("hub.verify_token")
	challenge := q.Get("hub.challenge")
	if mode == "subscribe" && token != "" && token == h.verifyToken {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(challenge))
		return
	}
	h.log.Warn().Str("mode", mode).Msg("whatsapp webhook verification failed")
	http.Error(w, "Forbidden", http.StatusForbidden)
}

// inboundEnvelope mirrors the slice of Meta's webhook payload we consume.
type inboundEnvelope struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Messages []inboundMessage `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type inboundMessage struct {
	From string `json:"from"`
	Type string `json:"type"`
	Text struct {
		Body string `json:"body"`
	} `json:"text"`
}

func (h *Handler) receive(w http.ResponseWriter, r *http.Request) {
	// The relay must always get a 200, even if handling blows up.
	defer func() {
		if rec := recover(); rec != nil {
			h.log.Error().Any("panic", rec).Msg("whatsapp webhook panicked")
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]bool{"success": true})
	}()

	var env inboundEnvelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		h.log.Warn().Err(err).Msg("whatsapp webhook: undecodable payload")
		return
	}
	msg, ok := firstMessage(env)
	if !ok {
		return // delivery/status notification, nothing to answer
	}
	switch msg.Type {
	case "text":
		reply := h.bot.HandleMessage(msg.From, msg.Text.Body)
		if err := h.sender.SendText(msg.From, reply); err != nil {
			h.log.Error().Err(err).Str("to", msg.From).Msg("whatsapp reply failed")
		}
	case "image", "audio", "video", "document":
		if err := h.sender.SendText(msg.From, textOnlyReply); err != nil {
			h.log.Error().Err(err).Str("to", msg.From).Msg("whatsapp reply failed")
		}
	}
}

func firstMessage(env inboundEnvelope) (inboundMessage, bool) {
	for _, entry := range env.Entry {
		for _, change := range entry.Changes {
			if len(change.Value.Messages) > 0 {
				return change.Value.Messages[0], true
			}
		}
	}
	return inboundMessage{}, false
}
