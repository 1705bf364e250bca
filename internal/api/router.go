package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/dcpzim/platform/internal/middleware"
	"github.com/dcpzim/platform/internal/services"
)

// Notifier sends outbound WhatsApp messages for the admin notify endpoint.
type Notifier interface {
	SendText(to, body string) error
	SendTemplate(to, templateName string, params []string) error
}

type Router struct {
	auth      *services.AuthService
	surveys   *services.SurveyService
	petitions *services.PetitionService
	webhook   http.Handler
	notifier  Notifier
	validate  *validator.Validate
	log       zerolog.Logger
}

type Config struct {
	Auth      *services.AuthService
	Surveys   *services.SurveyService
	Petitions *services.PetitionService
	Webhook   http.Handler
	Notifier  Notifier
	Log       zerolog.Logger
}

func NewRouter(cfg Config) *Router {
	return &Router{
		auth:      cfg.Auth,
		surveys:   cfg.Surveys,
		petitions: cfg.Petitions,
		webhook:   cfg.Webhook,
		notifier:  cfg.Notifier,
		validate:  validator.New(),
		log:       cfg.Log,
	}
}

func (rt *Router) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/auth/register", rt.handleRegister) // POST
	mux.HandleFunc("/api/auth/login", rt.handleLogin)       // POST
	mux.HandleFunc("/api/surveys", rt.handleSurveys)        // GET, POST
	mux.HandleFunc("/api/surveys/", rt.handleSurveyScoped)  // GET /{id}, POST /{id}/responses, GET /{id}/results, GET /{id}/export
	mux.HandleFunc("/api/petitions", rt.handlePetitions)    // GET, POST
	mux.HandleFunc("/api/petitions/", rt.handlePetitionScoped)
	if rt.webhook != nil {
		mux.Handle("/api/whatsapp/webhook", rt.webhook) // GET verify, POST inbound
	}
	mux.HandleFunc("/api/whatsapp/send", rt.handleWhatsAppSend) // POST (admin)
}

// --- auth ---

type registerRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Name     string `json:"name"`
}

func (rt *Router) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req registerRequest
	if !rt.decode(w, r, &req) {
		return
	}
	res, err := rt.auth.Register(req.Email, req.Password, req.Name)
	if err != nil {
		rt.writeError(w, err)
		return
	}
	writeJSON(w, map[string]string{"token": res.Token, "user_id": res.UserID, "role": res.Role})
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (rt *Router) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req loginRequest
	if !rt.decode(w, r, &req) {
		return
	}
	res, err := rt.auth.Login(req.Email, req.Password)
	if err != nil {
		rt.writeError(w, err)
		return
	}
	writeJSON(w, map[string]string{"token": res.Token, "user_id": res.UserID, "role": res.Role})
}

// --- surveys ---

func (rt *Router) handleSurveys(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		// Admins see closed surveys too.
		surveys, err := rt.surveys.ListSurveys(!middleware.IsAdmin(r.Context()))
		if err != nil {
			rt.writeError(w, err)
			return
		}
		if surveys == nil {
			surveys = []*services.Survey{}
		}
		writeJSON(w, surveys)
	case http.MethodPost:
		if !rt.requireAdmin(w, r) {
			return
		}
		var req services.CreateSurveyRequest
		if !rt.decode(w, r, &req) {
			return
		}
		survey, err := rt.surveys.CreateSurvey(req)
		if err != nil {
			rt.writeError(w, err)
			return
		}
		writeJSON(w, survey)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

type submitResponseRequest struct {
	Anonymous bool                 `json:"anonymous"`
	Answers   []services.RawAnswer `json:"answers" validate:"required,min=1"`
}

func (rt *Router) handleSurveyScoped(w http.ResponseWriter, r *http.Request) {
	id, action := splitScopedPath(r.URL.Path, "/api/surveys/")
	if id == "" {
		http.NotFound(w, r)
		return
	}
	switch {
	case action == "" && r.Method == http.MethodGet:
		survey, err := rt.surveys.GetSurvey(id)
		if err != nil {
			rt.writeError(w, err)
			return
		}
		writeJSON(w, survey)
	case action == "responses" && r.Method == http.MethodPost:
		var req submitResponseRequest
		if !rt.decode(w, r, &req) {
			return
		}
		var respondentID string
		if c, ok := middleware.ClaimsFromContext(r.Context()); ok {
			respondentID = c.UID
		}
		resp, err := rt.surveys.SubmitResponse(services.SubmitResponseRequest{
			SurveyID:     id,
			RespondentID: respondentID,
			Anonymous:    req.Anonymous,
			Answers:      req.Answers,
		})
		if err != nil {
			rt.writeError(w, err)
			return
		}
		writeJSON(w, map[string]any{"ok": true, "response_id": resp.ID})
	case action == "results" && r.Method == http.MethodGet:
		limit := services.PublicSampleLimit
		if middleware.IsAdmin(r.Context()) {
			limit = services.AdminSampleLimit
		}
		results, err := rt.surveys.Results(id, limit)
		if err != nil {
			rt.writeError(w, err)
			return
		}
		writeJSON(w, results)
	case action == "export" && r.Method == http.MethodGet:
		if !rt.requireAdmin(w, r) {
			return
		}
		rt.exportSurvey(w, id)
	default:
		http.NotFound(w, r)
	}
}

func (rt *Router) exportSurvey(w http.ResponseWriter, surveyID string) {
	survey, err := rt.surveys.GetSurvey(surveyID)
	if err != nil {
		rt.writeError(w, err)
		return
	}
	responses, err := rt.surveys.ListResponsesForExport(surveyID)
	if err != nil {
		rt.writeError(w, err)
		return
	}
	data, err := services.ExportResponsesCSV(survey, responses)
	if err != nil {
		rt.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=responses.csv")
	_, _ = w.Write(data)
}

// --- petitions ---

type createPetitionRequest struct {
	Title   string `json:"title" validate:"required"`
	Summary string `json:"summary"`
}

func (rt *Router) handlePetitions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		petitions, err := rt.petitions.ListActivePetitions()
		if err != nil {
			rt.writeError(w, err)
			return
		}
		if petitions == nil {
			petitions = []*services.Petition{}
		}
		writeJSON(w, petitions)
	case http.MethodPost:
		if !rt.requireAdmin(w, r) {
			return
		}
		var req createPetitionRequest
		if !rt.decode(w, r, &req) {
			return
		}
		p, err := rt.petitions.CreatePetition(req.Title, req.Summary)
		if err != nil {
			rt.writeError(w, err)
			return
		}
		writeJSON(w, p)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

type signPetitionRequest struct {
	Name      string `json:"name" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Anonymous bool   `json:"anonymous"`
}

func (rt *Router) handlePetitionScoped(w http.ResponseWriter, r *http.Request) {
	id, action := splitScopedPath(r.URL.Path, "/api/petitions/")
	if id == "" {
		http.NotFound(w, r)
		return
	}
	switch {
	case action == "" && r.Method == http.MethodGet:
		p, err := rt.petitions.GetPetition(id)
		if err != nil {
			rt.writeError(w, err)
			return
		}
		count, err := rt.petitions.SignatureCount(id)
		if err != nil {
			rt.writeError(w, err)
			return
		}
		writeJSON(w, map[string]any{"petition": p, "signatures": count})
	case action == "sign" && r.Method == http.MethodPost:
		var req signPetitionRequest
		if !rt.decode(w, r, &req) {
			return
		}
		err := rt.petitions.SignPetition(id, services.SignatureRequest{
			Name:      req.Name,
			Email:     req.Email,
			Anonymous: req.Anonymous,
		})
		if err != nil {
			rt.writeError(w, err)
			return
		}
		writeJSON(w, map[string]any{"ok": true})
	case action == "signatures" && r.Method == http.MethodGet:
		if !rt.requireAdmin(w, r) {
			return
		}
		sigs, err := rt.petitions.ListSignatures(id)
		if err != nil {
			rt.writeError(w, err)
			return
		}
		data, err := services.ExportSignaturesCSV(sigs)
		if err != nil {
			rt.writeError(w, err)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", "attachment; filename=signatures.csv")
		_, _ = w.Write(data)
	default:
		http.NotFound(w, r)
	}
}

// --- whatsapp notify ---

type sendMessageRequest struct {
	To             string   `json:"to" validate:"required"`
	Message        string   `json:"message"`
	Type           string   `json:"type" validate:"omitempty,oneof=text template"`
	TemplateName   string   `json:"template_name"`
	TemplateParams []string `json:"template_params"`
}

func (rt *Router) handleWhatsAppSend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !rt.requireAdmin(w, r) {
		return
	}
	if rt.notifier == nil {
		http.Error(w, "whatsapp not configured", http.StatusServiceUnavailable)
		return
	}
	var req sendMessageRequest
	if !rt.decode(w, r, &req) {
		return
	}
	var err error
	switch req.Type {
	case "", "text":
		if strings.TrimSpace(req.Message) == "" {
			rt.writeError(w, services.NewInvalidError("message required for text type"))
			return
		}
		err = rt.notifier.SendText(req.To, req.Message)
	case "template":
		if strings.TrimSpace(req.TemplateName) == "" {
			rt.writeError(w, services.NewInvalidError("template name required for template type"))
			return
		}
		err = rt.notifier.SendTemplate(req.To, req.TemplateName, req.TemplateParams)
	}
	if err != nil {
		rt.log.Error().Err(err).Str("to", req.To).Msg("whatsapp notify failed")
		rt.writeError(w, services.NewBadGatewayError("failed to send message"))
		return
	}
	writeJSON(w, map[string]any{"ok": true})
}

// --- helpers ---

func splitScopedPath(path, prefix string) (id, action string) {
	rest := strings.TrimPrefix(path, prefix)
	parts := strings.SplitN(rest, "/", 2)
	id = parts[0]
	if len(parts) == 2 {
		action = parts[1]
	}
	return id, action
}

// decode unmarshals and validates a JSON request body, replying 400 on
// either failure.
func (rt *Router) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return false
	}
	if err := rt.validate.Struct(dst); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func (rt *Router) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	if _, ok := middleware.ClaimsFromContext(r.Context()); !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return false
	}
	if !middleware.IsAdmin(r.Context()) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return false
	}
	return true
}

func (rt *Router) writeError(w http.ResponseWriter, err error) {
	if se, ok := services.AsServiceError(err); ok {
		http.Error(w, se.Message, statusForCode(se.Code))
		return
	}
	rt.log.Error().Err(err).Msg("internal error")
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func statusForCode(code services.ErrorCode) int {
	switch code {
	case services.ErrorInvalid:
		return http.StatusBadRequest
	case services.ErrorUnauthorized:
		return http.StatusUnauthorized
	case services.ErrorForbidden:
		return http.StatusForbidden
	case services.ErrorNotFound:
		return http.StatusNotFound
	case services.ErrorConflict:
		return http.StatusConflict
	case services.ErrorBadGateway:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
