package services

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// QuestionType enumerates the supported survey question types.
type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionCheckbox       QuestionType = "checkbox"
	QuestionRating         QuestionType = "rating"
	QuestionShortText      QuestionType = "short_text"
	QuestionLongText       QuestionType = "long_text"
	QuestionYesNo          QuestionType = "yes_no"
)

// yesNoOptions is the fixed option set for yes_no questions, regardless of
// whatever options a question definition may carry.
var yesNoOptions = []string{"Yes", "No"}

type Survey struct {
	ID             string      `json:"id"`
	Title          string      `json:"title"`
	Description    string      `json:"description,omitempty"`
	Category       string      `json:"category,omitempty"`
	Active         bool        `json:"active"`
	AllowAnonymous bool        `json:"allow_anonymous"`
	Questions      []*Question `json:"questions"`
	CreatedAt      time.Time   `json:"created_at"`
}

type Question struct {
	ID          string       `json:"id"`
	SurveyID    string       `json:"survey_id"`
	Type        QuestionType `json:"type"`
	Text        string       `json:"text"`
	Description string       `json:"description,omitempty"`
	Required    bool         `json:"required,omitempty"`
	Order       int          `json:"order"`
	Options     []string     `json:"options,omitempty"`
	MinRating   int          `json:"min_rating,omitempty"`
	MaxRating   int          `json:"max_rating,omitempty"`
}

// RatingRange returns the declared rating bounds, defaulting to [1,5]
// when the question does not declare them.
func (q *Question) RatingRange() (int, int) {
	min, max := q.MinRating, q.MaxRating
	if min == 0 {
		min = 1
	}
	if max == 0 {
		max = 5
	}
	return min, max
}

// SurveyResponse is one submission to a survey. RespondentID is empty for
// anonymous submissions.
type SurveyResponse struct {
	ID           string    `json:"id"`
	SurveyID     string    `json:"survey_id"`
	RespondentID string    `json:"respondent_id,omitempty"`
	Anonymous    bool      `json:"anonymous,omitempty"`
	Answers      []Answer  `json:"answers"`
	SubmittedAt  time.Time `json:"submitted_at"`
}

type Answer struct {
	QuestionID string      `json:"question_id"`
	Value      AnswerValue `json:"value"`
}

// ValueKind tags the shape of an answer value. The kind is fixed by the
// owning question's declared type at decode time, so consumers can match
// on it instead of probing the value shape.
type ValueKind string

const (
	ValueChoice  ValueKind = "choice"
	ValueChoices ValueKind = "choices"
	ValueNumber  ValueKind = "number"
	ValueText    ValueKind = "text"
)

// AnswerValue is the tagged union of the possible answer shapes. Exactly
// one payload field is meaningful, selected by Kind.
type AnswerValue struct {
	Kind    ValueKind `json:"kind"`
	Choice  string    `json:"choice,omitempty"`
	Choices []string  `json:"choices,omitempty"`
	Number  float64   `json:"number,omitempty"`
	Text    string    `json:"text,omitempty"`
}

// AsNumber coerces the value to a float where possible. Choice and text
// payloads holding numeric strings are accepted; anything else fails.
func (v AnswerValue) AsNumber() (float64, bool) {
	switch v.Kind {
	case ValueNumber:
		return v.Number, true
	case ValueChoice:
		n, err := strconv.ParseFloat(strings.TrimSpace(v.Choice), 64)
		return n, err == nil
	case ValueText:
		n, err := strconv.ParseFloat(strings.TrimSpace(v.Text), 64)
		return n, err == nil
	}
	return 0, false
}

// Render returns a human-readable form of the value, used for CSV export.
func (v AnswerValue) Render() string {
	switch v.Kind {
	case ValueChoice:
		return v.Choice
	case ValueChoices:
		return strings.Join(v.Choices, " | ")
	case ValueNumber:
		return strconv.FormatFloat(v.Number, 'f', -1, 64)
	case ValueText:
		return v.Text
	}
	return ""
}

// DecodeAnswerValue interprets a raw JSON answer payload according to the
// owning question's declared type. The wire shape is the natural one
// (string, array of strings, or number); the declared type decides which
// shapes are acceptable.
func DecodeAnswerValue(qt QuestionType, raw json.RawMessage) (AnswerValue, error) {
	if len(raw) == 0 {
		return AnswerValue{}, NewInvalidError("empty answer value")
	}
	switch qt {
	case QuestionMultipleChoice, QuestionYesNo:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return AnswerValue{}, NewInvalidError("expected a single option label")
		}
		return AnswerValue{Kind: ValueChoice, Choice: strings.TrimSpace(s)}, nil
	case QuestionCheckbox:
		var ss []string
		if err := json.Unmarshal(raw, &ss); err == nil {
			for i := range ss {
				ss[i] = strings.TrimSpace(ss[i])
			}
			return AnswerValue{Kind: ValueChoices, Choices: ss}, nil
		}
		// A bare string is accepted as a one-element selection.
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return AnswerValue{}, NewInvalidError("expected a list of option labels")
		}
		return AnswerValue{Kind: ValueChoices, Choices: []string{strings.TrimSpace(s)}}, nil
	case QuestionRating:
		var n float64
		if err := json.Unmarshal(raw, &n); err == nil {
			return AnswerValue{Kind: ValueNumber, Number: n}, nil
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			if parsed, perr := strconv.ParseFloat(strings.TrimSpace(s), 64); perr == nil {
				return AnswerValue{Kind: ValueNumber, Number: parsed}, nil
			}
		}
		return AnswerValue{}, NewInvalidError("expected a numeric rating")
	case QuestionShortText, QuestionLongText:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return AnswerValue{}, NewInvalidError("expected a text value")
		}
		return AnswerValue{Kind: ValueText, Text: s}, nil
	}
	return AnswerValue{}, NewInvalidError("unknown question type")
}

// Turn is one entry in a conversation history.
type Turn struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

type Petition struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Summary   string    `json:"summary,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type Signature struct {
	ID         string    `json:"id"`
	PetitionID string    `json:"petition_id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Anonymous  bool      `json:"anonymous"`
	SignedAt   time.Time `json:"signed_at"`
}

type User struct {
	ID        string
	Email     string
	Name      string
	PassHash  []byte
	Role      string // "member" or "admin"
	CreatedAt time.Time
}
