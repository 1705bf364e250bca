package services

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

const (
	// maxPetitionsListed caps the numbered list in a PETITIONS reply.
	maxPetitionsListed = 8
	// maxHistoryExchanges caps stored conversation history per sender,
	// counted in user/assistant exchanges. Oldest entries are evicted
	// first (sliding window).
	maxHistoryExchanges = 10
)

const signUsage = "SIGN|petitionId|Your Full Name|your@email.com|anonymous(optional)"

// Fixed replies. These are documented to users of the platform, so the
// exact wording matters.
const (
	replySignFormatError = "Invalid sign format.\n\nUse:\n" + signUsage
	replyListUnavailable = "Sorry, I could not fetch the petitions right now. Please try again later."
	replyChatUnavailable = "Sorry, I encountered an error. Please try again or visit our website at dcpzim.com for assistance."
	replyNoPetitions     = "There are no active petitions at the moment. Please check back soon."
)

// PetitionDirectory is the slice of petition operations the bot needs.
type PetitionDirectory interface {
	ListActivePetitions() ([]*Petition, error)
	SignPetition(petitionID string, req SignatureRequest) error
}

// Responder produces a conversational answer for a free-form message.
type Responder interface {
	Respond(message string, history []Turn) (string, error)
}

// BotService turns one inbound message into exactly one outbound reply.
// Failures never escape: every branch degrades to fixed reply text so the
// upstream relay always gets an acknowledgement.
type BotService struct {
	petitions PetitionDirectory
	responder Responder
	sessions  SessionStore
	log       zerolog.Logger
}

func NewBotService(petitions PetitionDirectory, responder Responder, sessions SessionStore, log zerolog.Logger) *BotService {
	if sessions == nil {
		sessions = NewMemorySessionStore()
	}
	return &BotService{petitions: petitions, responder: responder, sessions: sessions, log: log}
}

// HandleMessage processes one inbound message from one sender. Evaluation
// order is fixed: list check, then sign parse attempt, then free-form chat.
func (b *BotService) HandleMessage(sender, text string) string {
	cmd, ok := ParseCommand(text)
	if !ok {
		return b.handleFreeForm(sender, text)
	}
	switch c := cmd.(type) {
	case ListPetitionsCommand:
		return b.handleList()
	case SignPetitionCommand:
		return b.handleSign(c)
	}
	return b.handleFreeForm(sender, text)
}

func (b *BotService) handleList() string {
	petitions, err := b.petitions.ListActivePetitions()
	if err != nil {
		b.log.Error().Err(err).Msg("bot: list petitions failed")
		return replyListUnavailable
	}
	if len(petitions) == 0 {
		return replyNoPetitions
	}
	if len(petitions) > maxPetitionsListed {
		petitions = petitions[:maxPetitionsListed]
	}
	var sb strings.Builder
	sb.WriteString("Active petitions:\n")
	for i, p := range petitions {
		fmt.Fprintf(&sb, "\n%d. %s\nID: %s\n", i+1, p.Title, p.ID)
	}
	sb.WriteString("\nTo sign, send:\n")
	sb.WriteString(signUsage)
	return sb.String()
}

func (b *BotService) handleSign(cmd SignPetitionCommand) string {
	if err := cmd.Validate(); err != nil {
		return replySignFormatError
	}
	err := b.petitions.SignPetition(cmd.PetitionID, SignatureRequest{
		Name:      cmd.FullName,
		Email:     cmd.Email,
		Anonymous: cmd.Anonymous,
	})
	if err != nil {
		return fmt.Sprintf("Could not sign petition: %s\n\nTip: send PETITIONS to get valid petition IDs.", err.Error())
	}
	return fmt.Sprintf("Thank you, %s. Your petition signature has been recorded successfully.", cmd.FullName)
}

func (b *BotService) handleFreeForm(sender, text string) string {
	if b.responder == nil {
		return replyChatUnavailable
	}
	history := b.sessions.Get(sender)
	answer, err := b.responder.Respond(text, history)
	if err != nil {
		b.log.Error().Err(err).Str("sender", sender).Msg("bot: responder failed")
		return replyChatUnavailable
	}
	history = append(history, Turn{Role: "user", Content: text}, Turn{Role: "assistant", Content: answer})
	if len(history) > maxHistoryExchanges*2 {
		history = history[len(history)-maxHistoryExchanges*2:]
	}
	b.sessions.Put(sender, history)
	return answer
}
