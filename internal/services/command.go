package services

import "strings"

// Command is a parsed inbound bot instruction. Each recognized grammar has
// its own variant; dispatch switches on the concrete type.
type Command interface {
	isCommand()
}

// ListPetitionsCommand asks for the current active petitions.
type ListPetitionsCommand struct{}

// SignPetitionCommand carries one parsed SIGN request. It is consumed
// immediately by the sign action and never stored.
type SignPetitionCommand struct {
	PetitionID string
	FullName   string
	Email      string
	Anonymous  bool
}

func (ListPetitionsCommand) isCommand() {}
func (SignPetitionCommand) isCommand()  {}

// listSynonyms are the accepted list-command spellings, compared against
// the trimmed, upper-cased message.
var listSynonyms = map[string]struct{}{
	"PETITIONS":      {},
	"LIST PETITIONS": {},
}

// anonymousSynonyms map the optional fifth SIGN field to true. Anything
// else, including absence, means false.
var anonymousSynonyms = map[string]struct{}{
	"true":      {},
	"yes":       {},
	"y":         {},
	"1":         {},
	"anon":      {},
	"anonymous": {},
}

// ParseCommand tries each recognized grammar in priority order: the list
// command's exact match first, then the pipe-delimited sign grammar.
// Messages matching neither fall through to free-form handling.
func ParseCommand(text string) (Command, bool) {
	if cmd, ok := parseListCommand(text); ok {
		return cmd, true
	}
	if cmd, ok := parseSignCommand(text); ok {
		return cmd, true
	}
	return nil, false
}

func parseListCommand(text string) (Command, bool) {
	normalized := strings.ToUpper(strings.TrimSpace(text))
	if _, ok := listSynonyms[normalized]; ok {
		return ListPetitionsCommand{}, true
	}
	return nil, false
}

// parseSignCommand matches SIGN|<petitionId>|<fullName>|<email>|<anon?>.
// The raw text is parsed, not a normalized copy, so name casing survives.
// Only the structure is checked here; field validation happens afterwards
// so a structurally valid but incomplete SIGN gets a format-error reply
// instead of falling through to free-form chat.
func parseSignCommand(text string) (SignPetitionCommand, bool) {
	parts := strings.Split(text, "|")
	if len(parts) < 4 {
		return SignPetitionCommand{}, false
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	if !strings.EqualFold(parts[0], "SIGN") {
		return SignPetitionCommand{}, false
	}
	cmd := SignPetitionCommand{
		PetitionID: parts[1],
		FullName:   parts[2],
		Email:      parts[3],
	}
	if len(parts) >= 5 {
		_, cmd.Anonymous = anonymousSynonyms[strings.ToLower(parts[4])]
	}
	return cmd, true
}

// Validate checks the parsed fields before the sign action runs.
func (c SignPetitionCommand) Validate() error {
	if c.PetitionID == "" || c.FullName == "" || c.Email == "" {
		return NewInvalidError("petition id, full name and email are required")
	}
	if !strings.Contains(c.Email, "@") {
		return NewInvalidError("email must contain @")
	}
	return nil
}
