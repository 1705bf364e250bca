package services

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"
)

func TestExportResponsesCSV(t *testing.T) {
	survey := &Survey{
		ID: "s1",
		Questions: []*Question{
			{ID: "q2", Type: QuestionCheckbox, Order: 1, Options: []string{"X", "Y"}},
			{ID: "q1", Type: QuestionMultipleChoice, Order: 0, Options: []string{"A", "B"}},
		},
	}
	at := time.Date(2026, 8, 1, 9, 30, 0, 0, time.UTC)
	responses := []*SurveyResponse{
		{
			ID:           "r1",
			RespondentID: "u1",
			SubmittedAt:  at,
			Answers: []Answer{
				{QuestionID: "q1", Value: AnswerValue{Kind: ValueChoice, Choice: "A"}},
				{QuestionID: "q2", Value: AnswerValue{Kind: ValueChoices, Choices: []string{"X", "Y"}}},
			},
		},
		{
			ID:          "r2",
			Anonymous:   true,
			SubmittedAt: at,
			Answers: []Answer{
				{QuestionID: "q2", Value: AnswerValue{Kind: ValueChoices, Choices: []string{"Y"}}},
			},
		},
	}

	data, err := ExportResponsesCSV(survey, responses)
	if err != nil {
		t.Fatalf("ExportResponsesCSV: %v", err)
	}
	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want header + 2", len(rows))
	}
	// Columns follow declared question order, not slice order.
	wantHeader := []string{"response_id", "respondent_id", "anonymous", "submitted_at", "q1", "q2"}
	for i, col := range wantHeader {
		if rows[0][i] != col {
			t.Fatalf("header[%d] = %q, want %q", i, rows[0][i], col)
		}
	}
	if rows[1][4] != "A" || rows[1][5] != "X | Y" {
		t.Fatalf("row 1 answers = %q/%q", rows[1][4], rows[1][5])
	}
	// Skipped question renders empty.
	if rows[2][4] != "" || rows[2][5] != "Y" {
		t.Fatalf("row 2 answers = %q/%q", rows[2][4], rows[2][5])
	}
	if rows[2][2] != "true" {
		t.Fatalf("anonymous column = %q", rows[2][2])
	}
	if rows[1][3] != "2026-08-01T09:30:00Z" {
		t.Fatalf("timestamp = %q", rows[1][3])
	}
}

func TestExportSignaturesCSVHidesAnonymousNames(t *testing.T) {
	at := time.Date(2026, 8, 1, 9, 30, 0, 0, time.UTC)
	sigs := []*Signature{
		{ID: "s1", PetitionID: "p1", Name: "Jane Moyo", Email: "jane@example.com", SignedAt: at},
		{ID: "s2", PetitionID: "p1", Name: "Hidden Person", Email: "h@example.com", Anonymous: true, SignedAt: at},
	}

	data, err := ExportSignaturesCSV(sigs)
	if err != nil {
		t.Fatalf("ExportSignaturesCSV: %v", err)
	}
	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want header + 2", len(rows))
	}
	if rows[1][2] != "Jane Moyo" {
		t.Fatalf("public signer name = %q", rows[1][2])
	}
	if rows[2][2] != "(anonymous)" {
		t.Fatalf("anonymous signer name = %q, want withheld", rows[2][2])
	}
	if rows[2][3] != "h@example.com" {
		t.Fatalf("email column = %q, should remain for auditing", rows[2][3])
	}
}
