package main

import (
	"database/sql"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/dcpzim/platform/internal/api"
	"github.com/dcpzim/platform/internal/db"
	"github.com/dcpzim/platform/internal/middleware"
	"github.com/dcpzim/platform/internal/services"
	"github.com/dcpzim/platform/internal/utils"
	"github.com/dcpzim/platform/internal/whatsapp"
)

func main() {
	_ = godotenv.Load()

	log := newLogger()

	dbPath := utils.SafeEnv("DCP_DB_PATH", "dcp.db")
	sqlDB, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_fk=1")
	if err != nil {
		log.Fatal().Err(err).Str("path", dbPath).Msg("open database")
	}
	defer sqlDB.Close()

	if err := db.RunMigrations(sqlDB); err != nil {
		log.Fatal().Err(err).Msg("run migrations")
	}
	store, err := db.NewSQLiteStore(sqlDB, log)
	if err != nil {
		log.Fatal().Err(err).Msg("init store")
	}

	authSvc := services.NewAuthService(store, middleware.SignToken)
	surveySvc := services.NewSurveyService(store)
	petitionSvc := services.NewPetitionService(store)

	if email := os.Getenv("ADMIN_EMAIL"); email != "" {
		if err := authSvc.EnsureAdmin(email, os.Getenv("ADMIN_PASSWORD")); err != nil {
			log.Fatal().Err(err).Msg("seed admin account")
		}
	}

	httpClient := &http.Client{Timeout: 30 * time.Second}

	var responder services.Responder
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		responder = services.NewAssistantResponder(
			key,
			utils.SafeEnv("OPENAI_BASE_URL", ""),
			utils.SafeEnv("OPENAI_MODEL", ""),
			httpClient,
		)
	} else {
		log.Warn().Msg("OPENAI_API_KEY not set; bot chat replies disabled")
	}

	var webhookHandler http.Handler
	var notifier api.Notifier
	if token := os.Getenv("WHATSAPP_TOKEN"); token != "" {
		client := whatsapp.NewClient(token, utils.SafeEnv("WHATSAPP_PHONE_NUMBER_ID", ""), httpClient, log)
		bot := services.NewBotService(petitionSvc, responder, services.NewMemorySessionStore(), log)
		webhookHandler = whatsapp.NewHandler(utils.SafeEnv("WHATSAPP_VERIFY_TOKEN", ""), bot, client, log)
		notifier = client
	} else {
		log.Warn().Msg("WHATSAPP_TOKEN not set; webhook and notify endpoints disabled")
	}

	router := api.NewRouter(api.Config{
		Auth:      authSvc,
		Surveys:   surveySvc,
		Petitions: petitionSvc,
		Webhook:   webhookHandler,
		Notifier:  notifier,
		Log:       log,
	})

	mux := http.NewServeMux()
	router.Register(mux)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	handler := middleware.RequestLog(log,
		middleware.SecureHeaders(
			middleware.CORS(
				middleware.NoStore(
					middleware.WithAuth(mux)))))

	addr := utils.SafeEnv("DCP_ADDR", ":8080")
	log.Info().Str("addr", addr).Msg("server listening")
	if err := http.ListenAndServe(addr, handler); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func newLogger() zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	level, err := zerolog.ParseLevel(utils.SafeEnv("DCP_LOG_LEVEL", "info"))
	if err != nil {
		level = zerolog.InfoLevel
	}
	var w = os.Stderr
	log := zerolog.New(w).Level(level).With().Timestamp().Logger()
	if utils.SafeEnv("DCP_LOG_FORMAT", "json") == "console" {
		log = log.Output(zerolog.ConsoleWriter{Out: w})
	}
	return log
}
