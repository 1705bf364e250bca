package services

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// SurveyStore abstracts persistence for surveys and their responses.
type SurveyStore interface {
	InsertSurvey(s *Survey) error
	GetSurvey(id string) (*Survey, error)
	ListSurveys(activeOnly bool) ([]*Survey, error)
	AddSurveyResponse(r *SurveyResponse) error
	ListResponses(surveyID string) ([]*SurveyResponse, error)
	HasResponded(surveyID, respondentID string) (bool, error)
}

type SurveyService struct {
	store SurveyStore
	now   func() time.Time
	idGen func(n int) string
}

func NewSurveyService(store SurveyStore) *SurveyService {
	return &SurveyService{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
		idGen: shortID,
	}
}

// QuestionInput is one question definition in a survey create request.
type QuestionInput struct {
	Type        QuestionType `json:"type"`
	Text        string       `json:"text"`
	Description string       `json:"description"`
	Required    bool         `json:"required"`
	Options     []string     `json:"options"`
	MinRating   int          `json:"min_rating"`
	MaxRating   int          `json:"max_rating"`
}

type CreateSurveyRequest struct {
	Title          string          `json:"title"`
	Description    string          `json:"description"`
	Category       string          `json:"category"`
	AllowAnonymous bool            `json:"allow_anonymous"`
	Questions      []QuestionInput `json:"questions"`
}

func (s *SurveyService) CreateSurvey(req CreateSurveyRequest) (*Survey, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, NewInvalidError("title required")
	}
	if len(req.Questions) == 0 {
		return nil, NewInvalidError("at least one question required")
	}
	survey := &Survey{
		ID:             s.idGen(8),
		Title:          title,
		Description:    strings.TrimSpace(req.Description),
		Category:       strings.TrimSpace(req.Category),
		Active:         true,
		AllowAnonymous: req.AllowAnonymous,
		CreatedAt:      s.now(),
	}
	for i, qi := range req.Questions {
		q := &Question{
			ID:          s.idGen(8),
			SurveyID:    survey.ID,
			Type:        qi.Type,
			Text:        strings.TrimSpace(qi.Text),
			Description: strings.TrimSpace(qi.Description),
			Required:    qi.Required,
			Order:       i,
			Options:     qi.Options,
			MinRating:   qi.MinRating,
			MaxRating:   qi.MaxRating,
		}
		if err := validateQuestion(i, q); err != nil {
			return nil, err
		}
		survey.Questions = append(survey.Questions, q)
	}
	if err := s.store.InsertSurvey(survey); err != nil {
		return nil, err
	}
	return survey, nil
}

func validateQuestion(idx int, q *Question) error {
	if q.Text == "" {
		return NewInvalidError(fmt.Sprintf("question %d: text required", idx+1))
	}
	switch q.Type {
	case QuestionMultipleChoice, QuestionCheckbox:
		if len(q.Options) < 2 {
			return NewInvalidError(fmt.Sprintf("question %d: choice questions need at least 2 options", idx+1))
		}
	case QuestionRating:
		min, max := q.RatingRange()
		if min >= max {
			return NewInvalidError(fmt.Sprintf("question %d: rating range must have min < max", idx+1))
		}
	case QuestionYesNo, QuestionShortText, QuestionLongText:
		// no extra constraints
	default:
		return NewInvalidError(fmt.Sprintf("question %d: unknown type %q", idx+1, q.Type))
	}
	return nil
}

func (s *SurveyService) ListSurveys(activeOnly bool) ([]*Survey, error) {
	return s.store.ListSurveys(activeOnly)
}

func (s *SurveyService) GetSurvey(id string) (*Survey, error) {
	sv, err := s.store.GetSurvey(id)
	if err != nil {
		return nil, err
	}
	if sv == nil {
		return nil, NewNotFoundError("survey not found")
	}
	return sv, nil
}

// RawAnswer is one submitted answer before its value has been interpreted
// against the question's declared type.
type RawAnswer struct {
	QuestionID string          `json:"question_id"`
	Value      json.RawMessage `json:"value"`
}

type SubmitResponseRequest struct {
	SurveyID     string
	RespondentID string
	Anonymous    bool
	Answers      []RawAnswer
}

// SubmitResponse validates and stores one survey submission. Answers to
// unknown questions are dropped; answer values that cannot be interpreted
// against their question's type are rejected. A non-anonymous respondent
// may respond at most once per survey.
func (s *SurveyService) SubmitResponse(req SubmitResponseRequest) (*SurveyResponse, error) {
	survey, err := s.GetSurvey(req.SurveyID)
	if err != nil {
		return nil, err
	}
	if !survey.Active {
		return nil, NewInvalidError("this survey is closed")
	}
	if req.Anonymous && !survey.AllowAnonymous {
		return nil, NewInvalidError("this survey does not accept anonymous responses")
	}
	respondentID := strings.TrimSpace(req.RespondentID)
	if req.Anonymous {
		respondentID = ""
	} else {
		if respondentID == "" {
			return nil, NewUnauthorizedError("sign in to respond, or submit anonymously")
		}
		responded, err := s.store.HasResponded(survey.ID, respondentID)
		if err != nil {
			return nil, err
		}
		if responded {
			return nil, NewConflictError("you have already responded to this survey")
		}
	}

	byID := make(map[string]*Question, len(survey.Questions))
	for _, q := range survey.Questions {
		byID[q.ID] = q
	}
	answered := map[string]bool{}
	answers := make([]Answer, 0, len(req.Answers))
	for _, ra := range req.Answers {
		q, ok := byID[ra.QuestionID]
		if !ok || answered[ra.QuestionID] {
			continue
		}
		value, err := DecodeAnswerValue(q.Type, ra.Value)
		if err != nil {
			return nil, NewInvalidError(fmt.Sprintf("answer to %q: %s", q.Text, err.Error()))
		}
		answered[ra.QuestionID] = true
		answers = append(answers, Answer{QuestionID: q.ID, Value: value})
	}
	for _, q := range survey.Questions {
		if q.Required && !answered[q.ID] {
			return nil, NewInvalidError(fmt.Sprintf("question %q is required", q.Text))
		}
	}

	resp := &SurveyResponse{
		ID:           s.idGen(12),
		SurveyID:     survey.ID,
		RespondentID: respondentID,
		Anonymous:    req.Anonymous,
		Answers:      answers,
		SubmittedAt:  s.now(),
	}
	if err := s.store.AddSurveyResponse(resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// SurveyResults is the full tabulated view of one survey.
type SurveyResults struct {
	SurveyID       string      `json:"survey_id"`
	Title          string      `json:"title"`
	TotalResponses int         `json:"total_responses"`
	Aggregates     []Aggregate `json:"aggregates"`
}

// ListResponsesForExport returns the raw responses for a survey, for
// CSV export. The survey must exist.
func (s *SurveyService) ListResponsesForExport(surveyID string) ([]*SurveyResponse, error) {
	if _, err := s.GetSurvey(surveyID); err != nil {
		return nil, err
	}
	return s.store.ListResponses(surveyID)
}

// Results tabulates all responses for a survey. The aggregate view is
// recomputed fresh on every call; nothing is cached.
func (s *SurveyService) Results(surveyID string, sampleLimit int) (*SurveyResults, error) {
	survey, err := s.GetSurvey(surveyID)
	if err != nil {
		return nil, err
	}
	responses, err := s.store.ListResponses(surveyID)
	if err != nil {
		return nil, err
	}
	return &SurveyResults{
		SurveyID:       survey.ID,
		Title:          survey.Title,
		TotalResponses: len(responses),
		Aggregates:     TabulateSurvey(survey, responses, TabulateOptions{SampleLimit: sampleLimit}),
	}, nil
}
