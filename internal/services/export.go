package services

import (
	"bytes"
	"encoding/csv"
	"sort"
	"strconv"
	"time"
)

// ExportResponsesCSV renders survey responses in wide format: one row per
// response, one column per question in survey order. Multi-select answers
// are joined with " | ".
func ExportResponsesCSV(survey *Survey, responses []*SurveyResponse) ([]byte, error) {
	questions := append([]*Question(nil), survey.Questions...)
	sort.SliceStable(questions, func(i, j int) bool { return questions[i].Order < questions[j].Order })

	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	header := []string{"response_id", "respondent_id", "anonymous", "submitted_at"}
	for _, q := range questions {
		header = append(header, q.ID)
	}
	_ = w.Write(header)

	for _, r := range responses {
		byQuestion := make(map[string]AnswerValue, len(r.Answers))
		for _, a := range r.Answers {
			if _, seen := byQuestion[a.QuestionID]; !seen {
				byQuestion[a.QuestionID] = a.Value
			}
		}
		row := []string{
			r.ID,
			r.RespondentID,
			strconv.FormatBool(r.Anonymous),
			r.SubmittedAt.UTC().Format(time.RFC3339),
		}
		for _, q := range questions {
			row = append(row, byQuestion[q.ID].Render())
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// ExportSignaturesCSV renders petition signatures for admin download.
// Names of anonymous signers are withheld; the email column stays for
// dedupe auditing.
func ExportSignaturesCSV(sigs []*Signature) ([]byte, error) {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	_ = w.Write([]string{"signature_id", "petition_id", "name", "email", "anonymous", "signed_at"})
	for _, sig := range sigs {
		name := sig.Name
		if sig.Anonymous {
			name = "(anonymous)"
		}
		rec := []string{
			sig.ID,
			sig.PetitionID,
			name,
			sig.Email,
			strconv.FormatBool(sig.Anonymous),
			sig.SignedAt.UTC().Format(time.RFC3339),
		}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}
