package services

import (
	"math"
	"sort"
	"strconv"
)

// Sample limits for text question verbatims. Admin result views show fewer
// samples inline; the public results page shows more.
const (
	AdminSampleLimit  = 5
	PublicSampleLimit = 10
)

// TabulateOptions tunes a tabulation run.
type TabulateOptions struct {
	// SampleLimit caps the verbatim sample returned for text questions.
	// Zero means PublicSampleLimit.
	SampleLimit int
}

// OptionCount is one option's tally within a choice-type aggregate.
type OptionCount struct {
	Option  string `json:"option"`
	Count   int    `json:"count"`
	Percent int    `json:"percent"`
}

// RatingBucket is one value's tally within a rating histogram.
type RatingBucket struct {
	Value int `json:"value"`
	Count int `json:"count"`
}

// Aggregate is the derived summary for one question. It is recomputed fresh
// on every tabulation request and never persisted.
//
// Which fields are populated depends on the question type: Options for
// choice and yes/no questions, Average and Histogram for ratings, Samples
// and Omitted for text. Answered counts the respondents who answered this
// question; NoResponses is set when nobody did.
type Aggregate struct {
	QuestionID   string         `json:"question_id"`
	Type         QuestionType   `json:"type"`
	Answered     int            `json:"answered"`
	NoResponses  bool           `json:"no_responses,omitempty"`
	Options      []OptionCount  `json:"options,omitempty"`
	Average      float64        `json:"average,omitempty"`
	AverageLabel string         `json:"average_label,omitempty"`
	Histogram    []RatingBucket `json:"histogram,omitempty"`
	Samples      []string       `json:"samples,omitempty"`
	Omitted      int            `json:"omitted,omitempty"`
}

// TabulateSurvey produces one aggregate per question, in the survey's
// declared question order.
func TabulateSurvey(s *Survey, responses []*SurveyResponse, opts TabulateOptions) []Aggregate {
	questions := append([]*Question(nil), s.Questions...)
	sort.SliceStable(questions, func(i, j int) bool { return questions[i].Order < questions[j].Order })
	out := make([]Aggregate, 0, len(questions))
	for _, q := range questions {
		out = append(out, Tabulate(q, responses, opts))
	}
	return out
}

// Tabulate computes the summary for a single question from the full
// response set of its survey. Responses that did not answer the question
// are excluded from the denominator; answers whose value does not fit the
// question's declared type are skipped rather than failing the aggregate.
func Tabulate(q *Question, responses []*SurveyResponse, opts TabulateOptions) Aggregate {
	agg := Aggregate{QuestionID: q.ID, Type: q.Type}

	values := answersFor(q.ID, responses)

	switch q.Type {
	case QuestionMultipleChoice, QuestionYesNo:
		tabulateSingleChoice(q, values, &agg)
	case QuestionCheckbox:
		tabulateCheckbox(q, values, &agg)
	case QuestionRating:
		tabulateRating(q, values, &agg)
	case QuestionShortText, QuestionLongText:
		tabulateText(values, opts, &agg)
	default:
		agg.NoResponses = true
	}
	if agg.Answered == 0 {
		agg.NoResponses = true
	}
	return agg
}

// answersFor extracts, per response, the single answer value matching the
// question id. Responses that skipped the question contribute nothing.
func answersFor(questionID string, responses []*SurveyResponse) []AnswerValue {
	out := make([]AnswerValue, 0, len(responses))
	for _, r := range responses {
		if r == nil {
			continue
		}
		for _, a := range r.Answers {
			if a.QuestionID == questionID {
				out = append(out, a.Value)
				break
			}
		}
	}
	return out
}

func tabulateSingleChoice(q *Question, values []AnswerValue, agg *Aggregate) {
	options := q.Options
	if q.Type == QuestionYesNo {
		options = yesNoOptions
	}
	counts := map[string]int{}
	for _, v := range values {
		if v.Kind != ValueChoice || v.Choice == "" {
			continue
		}
		counts[v.Choice]++
		agg.Answered++
	}
	agg.Options = optionCounts(options, counts, agg.Answered)
}

func tabulateCheckbox(q *Question, values []AnswerValue, agg *Aggregate) {
	counts := map[string]int{}
	for _, v := range values {
		if v.Kind != ValueChoices || len(v.Choices) == 0 {
			continue
		}
		// Every selected label counts once; the denominator stays the
		// number of respondents, so percentages can sum above 100.
		for _, label := range v.Choices {
			counts[label]++
		}
		agg.Answered++
	}
	agg.Options = optionCounts(q.Options, counts, agg.Answered)
}

func tabulateRating(q *Question, values []AnswerValue, agg *Aggregate) {
	min, max := q.RatingRange()
	buckets := make([]RatingBucket, 0, max-min+1)
	for v := min; v <= max; v++ {
		buckets = append(buckets, RatingBucket{Value: v})
	}
	var sum float64
	for _, v := range values {
		n, ok := v.AsNumber()
		if !ok {
			continue
		}
		sum += n
		agg.Answered++
		idx := int(n) - min
		if idx >= 0 && idx < len(buckets) && float64(int(n)) == n {
			buckets[idx].Count++
		}
	}
	agg.Histogram = buckets
	if agg.Answered > 0 {
		agg.Average = sum / float64(agg.Answered)
		agg.AverageLabel = strconv.FormatFloat(agg.Average, 'f', 1, 64)
	}
}

func tabulateText(values []AnswerValue, opts TabulateOptions, agg *Aggregate) {
	limit := opts.SampleLimit
	if limit <= 0 {
		limit = PublicSampleLimit
	}
	for _, v := range values {
		if v.Kind != ValueText || v.Text == "" {
			continue
		}
		agg.Answered++
		if len(agg.Samples) < limit {
			agg.Samples = append(agg.Samples, v.Text)
		}
	}
	agg.Omitted = agg.Answered - len(agg.Samples)
}

// optionCounts reports every declared option, zero counts included.
// Percentages use round-half-away-from-zero against the answered count.
func optionCounts(options []string, counts map[string]int, answered int) []OptionCount {
	out := make([]OptionCount, 0, len(options))
	for _, opt := range options {
		c := counts[opt]
		out = append(out, OptionCount{Option: opt, Count: c, Percent: percent(c, answered)})
	}
	return out
}

func percent(count, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(count) / float64(total) * 100))
}
