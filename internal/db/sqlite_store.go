// Package db provides the SQLite-backed store implementing the service
// layer's persistence interfaces.
package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/dcpzim/platform/internal/services"
)

type SQLiteStore struct {
	db  *sql.DB
	log zerolog.Logger
}

func NewSQLiteStore(sqlDB *sql.DB, log zerolog.Logger) (*SQLiteStore, error) {
	if sqlDB == nil {
		return nil, errors.New("nil db")
	}
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	for _, stmt := range pragmas {
		if _, err := sqlDB.Exec(stmt); err != nil {
			return nil, fmt.Errorf("apply sqlite pragma %q: %w", stmt, err)
		}
	}
	return &SQLiteStore{db: sqlDB, log: log}, nil
}

// Interface conformance for the service layer.
var (
	_ services.SurveyStore   = (*SQLiteStore)(nil)
	_ services.PetitionStore = (*SQLiteStore)(nil)
	_ services.AuthStore     = (*SQLiteStore)(nil)
)

// --- surveys ---

func (s *SQLiteStore) InsertSurvey(sv *services.Survey) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.Exec(`INSERT INTO surveys (id, title, description, category, active, allow_anonymous, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sv.ID, sv.Title, sv.Description, sv.Category, boolInt(sv.Active), boolInt(sv.AllowAnonymous), sv.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert survey: %w", err)
	}
	for _, q := range sv.Questions {
		opts, err := json.Marshal(q.Options)
		if err != nil {
			return err
		}
		_, err = tx.Exec(`INSERT INTO survey_questions (id, survey_id, type, text, description, required, position, options, min_rating, max_rating)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			q.ID, sv.ID, string(q.Type), q.Text, q.Description, boolInt(q.Required), q.Order, string(opts), q.MinRating, q.MaxRating)
		if err != nil {
			return fmt.Errorf("insert question: %w", err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) GetSurvey(id string) (*services.Survey, error) {
	row := s.db.QueryRow(`SELECT id, title, description, category, active, allow_anonymous, created_at
		FROM surveys WHERE id = ?`, id)
	sv, err := scanSurvey(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	questions, err := s.listQuestions(id)
	if err != nil {
		return nil, err
	}
	sv.Questions = questions
	return sv, nil
}

func (s *SQLiteStore) ListSurveys(activeOnly bool) ([]*services.Survey, error) {
	query := `SELECT id, title, description, category, active, allow_anonymous, created_at
		FROM surveys ORDER BY created_at DESC`
	if activeOnly {
		query = `SELECT id, title, description, category, active, allow_anonymous, created_at
			FROM surveys WHERE active = 1 ORDER BY created_at DESC`
	}
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []*services.Survey
	for rows.Next() {
		sv, err := scanSurvey(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, sv := range out {
		questions, err := s.listQuestions(sv.ID)
		if err != nil {
			return nil, err
		}
		sv.Questions = questions
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSurvey(r rowScanner) (*services.Survey, error) {
	var sv services.Survey
	var active, allowAnon int
	var createdAt time.Time
	if err := r.Scan(&sv.ID, &sv.Title, &sv.Description, &sv.Category, &active, &allowAnon, &createdAt); err != nil {
		return nil, err
	}
	sv.Active = active != 0
	sv.AllowAnonymous = allowAnon != 0
	sv.CreatedAt = createdAt.UTC()
	return &sv, nil
}

func (s *SQLiteStore) listQuestions(surveyID string) ([]*services.Question, error) {
	rows, err := s.db.Query(`SELECT id, survey_id, type, text, description, required, position, options, min_rating, max_rating
		FROM survey_questions WHERE survey_id = ? ORDER BY position`, surveyID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []*services.Question
	for rows.Next() {
		var q services.Question
		var qType, opts string
		var required int
		if err := rows.Scan(&q.ID, &q.SurveyID, &qType, &q.Text, &q.Description, &required, &q.Order, &opts, &q.MinRating, &q.MaxRating); err != nil {
			return nil, err
		}
		q.Type = services.QuestionType(qType)
		q.Required = required != 0
		if err := json.Unmarshal([]byte(opts), &q.Options); err != nil {
			s.log.Warn().Err(err).Str("question", q.ID).Msg("sqlite store: bad options payload")
		}
		out = append(out, &q)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) AddSurveyResponse(r *services.SurveyResponse) error {
	answers, err := json.Marshal(r.Answers)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT INTO survey_responses (id, survey_id, respondent_id, anonymous, answers, submitted_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.SurveyID, r.RespondentID, boolInt(r.Anonymous), string(answers), r.SubmittedAt)
	if err != nil {
		return fmt.Errorf("insert response: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListResponses(surveyID string) ([]*services.SurveyResponse, error) {
	rows, err := s.db.Query(`SELECT id, survey_id, respondent_id, anonymous, answers, submitted_at
		FROM survey_responses WHERE survey_id = ? ORDER BY submitted_at`, surveyID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []*services.SurveyResponse
	for rows.Next() {
		var resp services.SurveyResponse
		var anon int
		var answers string
		var submittedAt time.Time
		if err := rows.Scan(&resp.ID, &resp.SurveyID, &resp.RespondentID, &anon, &answers, &submittedAt); err != nil {
			return nil, err
		}
		resp.Anonymous = anon != 0
		resp.SubmittedAt = submittedAt.UTC()
		if err := json.Unmarshal([]byte(answers), &resp.Answers); err != nil {
			// One corrupt row must not blank out the whole report.
			s.log.Warn().Err(err).Str("response", resp.ID).Msg("sqlite store: bad answers payload")
			resp.Answers = nil
		}
		out = append(out, &resp)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) HasResponded(surveyID, respondentID string) (bool, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(1) FROM survey_responses WHERE survey_id = ? AND respondent_id = ? AND respondent_id != ''`,
		surveyID, respondentID).Scan(&n)
	return n > 0, err
}

// --- petitions ---

func (s *SQLiteStore) InsertPetition(p *services.Petition) error {
	_, err := s.db.Exec(`INSERT INTO petitions (id, title, summary, active, created_at) VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.Title, p.Summary, boolInt(p.Active), p.CreatedAt)
	return err
}

func (s *SQLiteStore) GetPetition(id string) (*services.Petition, error) {
	var p services.Petition
	var active int
	var createdAt time.Time
	err := s.db.QueryRow(`SELECT id, title, summary, active, created_at FROM petitions WHERE id = ?`, id).
		Scan(&p.ID, &p.Title, &p.Summary, &active, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.Active = active != 0
	p.CreatedAt = createdAt.UTC()
	return &p, nil
}

func (s *SQLiteStore) ListPetitions(activeOnly bool) ([]*services.Petition, error) {
	query := `SELECT id, title, summary, active, created_at FROM petitions ORDER BY created_at DESC`
	if activeOnly {
		query = `SELECT id, title, summary, active, created_at FROM petitions WHERE active = 1 ORDER BY created_at DESC`
	}
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []*services.Petition
	for rows.Next() {
		var p services.Petition
		var active int
		var createdAt time.Time
		if err := rows.Scan(&p.ID, &p.Title, &p.Summary, &active, &createdAt); err != nil {
			return nil, err
		}
		p.Active = active != 0
		p.CreatedAt = createdAt.UTC()
		out = append(out, &p)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) AddSignature(sig *services.Signature) error {
	_, err := s.db.Exec(`INSERT INTO petition_signatures (id, petition_id, name, email, anonymous, signed_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		sig.ID, sig.PetitionID, sig.Name, sig.Email, boolInt(sig.Anonymous), sig.SignedAt)
	if err != nil {
		return fmt.Errorf("insert signature: %w", err)
	}
	return nil
}

func (s *SQLiteStore) HasSigned(petitionID, email string) (bool, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(1) FROM petition_signatures WHERE petition_id = ? AND email = ? COLLATE NOCASE`,
		petitionID, email).Scan(&n)
	return n > 0, err
}

func (s *SQLiteStore) CountSignatures(petitionID string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(1) FROM petition_signatures WHERE petition_id = ?`, petitionID).Scan(&n)
	return n, err
}

func (s *SQLiteStore) ListSignatures(petitionID string) ([]*services.Signature, error) {
	rows, err := s.db.Query(`SELECT id, petition_id, name, email, anonymous, signed_at
		FROM petition_signatures WHERE petition_id = ? ORDER BY signed_at`, petitionID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []*services.Signature
	for rows.Next() {
		var sig services.Signature
		var anon int
		var signedAt time.Time
		if err := rows.Scan(&sig.ID, &sig.PetitionID, &sig.Name, &sig.Email, &anon, &signedAt); err != nil {
			return nil, err
		}
		sig.Anonymous = anon != 0
		sig.SignedAt = signedAt.UTC()
		out = append(out, &sig)
	}
	return out, rows.Err()
}

// --- users ---

func (s *SQLiteStore) FindUserByEmail(email string) (*services.User, error) {
	var u services.User
	var createdAt time.Time
	err := s.db.QueryRow(`SELECT id, email, name, pass_hash, role, created_at FROM users WHERE email = ? COLLATE NOCASE`, email).
		Scan(&u.ID, &u.Email, &u.Name, &u.PassHash, &u.Role, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	u.CreatedAt = createdAt.UTC()
	return &u, nil
}

func (s *SQLiteStore) AddUser(u *services.User) error {
	_, err := s.db.Exec(`INSERT INTO users (id, email, name, pass_hash, role, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.Name, u.PassHash, u.Role, u.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
