package services

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

type stubDirectory struct {
	petitions []*Petition
	listErr   error
	signErr   error
	signed    []SignatureRequest
}

func (s *stubDirectory) ListActivePetitions() ([]*Petition, error) {
	return s.petitions, s.listErr
}

func (s *stubDirectory) SignPetition(petitionID string, req SignatureRequest) error {
	if s.signErr != nil {
		return s.signErr
	}
	s.signed = append(s.signed, req)
	return nil
}

type stubResponder struct {
	reply   string
	err     error
	history [][]Turn
}

func (s *stubResponder) Respond(message string, history []Turn) (string, error) {
	s.history = append(s.history, append([]Turn(nil), history...))
	if s.err != nil {
		return "", s.err
	}
	if s.reply != "" {
		return s.reply, nil
	}
	return "echo: " + message, nil
}

func newTestBot(dir *stubDirectory, resp Responder) *BotService {
	return NewBotService(dir, resp, NewMemorySessionStore(), zerolog.Nop())
}

func TestBotListsPetitions(t *testing.T) {
	dir := &stubDirectory{petitions: []*Petition{
		{ID: "p1", Title: "Save the wetlands"},
		{ID: "p2", Title: "Fix the clinic"},
	}}
	bot := newTestBot(dir, &stubResponder{})

	reply := bot.HandleMessage("263771000001", "PETITIONS")

	want := "Active petitions:\n" +
		"\n1. Save the wetlands\nID: p1\n" +
		"\n2. Fix the clinic\nID: p2\n" +
		"\nTo sign, send:\nSIGN|petitionId|Your Full Name|your@email.com|anonymous(optional)"
	if reply != want {
		t.Fatalf("list reply mismatch:\ngot:  %q\nwant: %q", reply, want)
	}
}

func TestBotListCapsAtEight(t *testing.T) {
	dir := &stubDirectory{}
	for i := 0; i < 12; i++ {
		dir.petitions = append(dir.petitions, &Petition{ID: fmt.Sprintf("p%d", i), Title: fmt.Sprintf("Petition %d", i)})
	}
	bot := newTestBot(dir, &stubResponder{})

	reply := bot.HandleMessage("s", "PETITIONS")

	if strings.Contains(reply, "9. ") {
		t.Fatalf("list should stop at 8 petitions:\n%s", reply)
	}
	if !strings.Contains(reply, "8. Petition 7") {
		t.Fatalf("eighth petition missing:\n%s", reply)
	}
}

func TestBotListEmptyAndFailure(t *testing.T) {
	bot := newTestBot(&stubDirectory{}, &stubResponder{})
	if got := bot.HandleMessage("s", "PETITIONS"); got != replyNoPetitions {
		t.Fatalf("empty list reply = %q", got)
	}

	bot = newTestBot(&stubDirectory{listErr: errors.New("db down")}, &stubResponder{})
	if got := bot.HandleMessage("s", "PETITIONS"); got != replyListUnavailable {
		t.Fatalf("failed list reply = %q", got)
	}
}

func TestBotSignSuccess(t *testing.T) {
	dir := &stubDirectory{}
	bot := newTestBot(dir, &stubResponder{})

	reply := bot.HandleMessage("s", "SIGN|p1|Jane Moyo|jane@example.com|yes")

	want := "Thank you, Jane Moyo. Your petition signature has been recorded successfully."
	if reply != want {
		t.Fatalf("sign reply = %q, want %q", reply, want)
	}
	if len(dir.signed) != 1 {
		t.Fatalf("signed calls = %d, want 1", len(dir.signed))
	}
	got := dir.signed[0]
	if got.Name != "Jane Moyo" || got.Email != "jane@example.com" || !got.Anonymous {
		t.Fatalf("signature request = %+v", got)
	}
}

func TestBotSignIncompleteFieldsGetsFormatError(t *testing.T) {
	bot := newTestBot(&stubDirectory{}, &stubResponder{})

	reply := bot.HandleMessage("s", "SIGN|p1||jane@example.com")

	if reply != replySignFormatError {
		t.Fatalf("reply = %q, want format error", reply)
	}
}

func TestBotSignActionFailure(t *testing.T) {
	dir := &stubDirectory{signErr: NewNotFoundError("petition not found")}
	bot := newTestBot(dir, &stubResponder{})

	reply := bot.HandleMessage("s", "SIGN|nope|Jane|jane@example.com")

	want := "Could not sign petition: petition not found\n\nTip: send PETITIONS to get valid petition IDs."
	if reply != want {
		t.Fatalf("reply = %q, want %q", reply, want)
	}
}

func TestBotFreeFormUsesResponderAndStoresHistory(t *testing.T) {
	resp := &stubResponder{}
	sessions := NewMemorySessionStore()
	bot := NewBotService(&stubDirectory{}, resp, sessions, zerolog.Nop())

	first := bot.HandleMessage("263771000001", "what is this platform?")
	if first != "echo: what is this platform?" {
		t.Fatalf("reply = %q", first)
	}
	bot.HandleMessage("263771000001", "and who runs it?")

	// The second call must see the first exchange as history.
	if len(resp.history) != 2 {
		t.Fatalf("responder calls = %d, want 2", len(resp.history))
	}
	if len(resp.history[1]) != 2 {
		t.Fatalf("history on second call = %d turns, want 2", len(resp.history[1]))
	}
	if resp.history[1][0].Role != "user" || resp.history[1][1].Role != "assistant" {
		t.Fatalf("history roles = %+v", resp.history[1])
	}

	// Histories are per sender.
	other := bot.HandleMessage("263771000002", "hello")
	_ = other
	if len(resp.history[2]) != 0 {
		t.Fatalf("new sender should start with empty history, got %d turns", len(resp.history[2]))
	}
}

func TestBotFreeFormHistoryCap(t *testing.T) {
	resp := &stubResponder{}
	sessions := NewMemorySessionStore()
	bot := NewBotService(&stubDirectory{}, resp, sessions, zerolog.Nop())

	for i := 0; i < 15; i++ {
		bot.HandleMessage("s", fmt.Sprintf("message %d", i))
	}

	history := sessions.Get("s")
	if len(history) != maxHistoryExchanges*2 {
		t.Fatalf("stored history = %d turns, want %d", len(history), maxHistoryExchanges*2)
	}
	// Oldest exchanges are evicted; the newest user turn survives.
	if history[len(history)-2].Content != "message 14" {
		t.Fatalf("newest user turn = %q", history[len(history)-2].Content)
	}
	if history[0].Content != "message 5" {
		t.Fatalf("oldest surviving turn = %q, want \"message 5\"", history[0].Content)
	}
}

func TestBotFreeFormResponderFailureLeavesHistoryUntouched(t *testing.T) {
	resp := &stubResponder{}
	sessions := NewMemorySessionStore()
	bot := NewBotService(&stubDirectory{}, resp, sessions, zerolog.Nop())

	bot.HandleMessage("s", "first")
	resp.err = errors.New("upstream 500")

	reply := bot.HandleMessage("s", "second")
	if reply != replyChatUnavailable {
		t.Fatalf("reply = %q, want chat-unavailable apology", reply)
	}
	if got := len(sessions.Get("s")); got != 2 {
		t.Fatalf("history after failed exchange = %d turns, want 2", got)
	}
}

func TestBotFreeFormWithoutResponder(t *testing.T) {
	bot := NewBotService(&stubDirectory{}, nil, NewMemorySessionStore(), zerolog.Nop())
	if got := bot.HandleMessage("s", "hello"); got != replyChatUnavailable {
		t.Fatalf("reply = %q, want chat-unavailable apology", got)
	}
}
