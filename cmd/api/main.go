package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caixaflow/ledger/internal/access"
	"github.com/caixaflow/ledger/internal/api/handlers"
	"github.com/caixaflow/ledger/internal/api/middleware"
	"github.com/caixaflow/ledger/internal/assistant"
	"github.com/caixaflow/ledger/internal/gateway"
	"github.com/caixaflow/ledger/internal/logger"
	"github.com/caixaflow/ledger/internal/session"
	"github.com/caixaflow/ledger/internal/store"
	"github.com/caixaflow/ledger/internal/syncer"
	"github.com/joho/godotenv"
)

func main() {
	// .env is optional; real deployments set the variables directly.
	_ = godotenv.Load()

	var (
		port       = flag.String("port", envOr("PORT", "8080"), "HTTP server port")
		endpoint   = flag.String("endpoint", os.Getenv("WEBAPP_ENDPOINT"), "Spreadsheet web-app endpoint URL (or set WEBAPP_ENDPOINT)")
		sheetID    = flag.String("sheet-id", os.Getenv("SHEET_ID"), "Spreadsheet id for direct Sheets access (or set SHEET_ID)")
		sessionDir = flag.String("session-dir", "", "Directory for session files (defaults to the user config dir)")
		withAI     = flag.Bool("assistant", os.Getenv("GEMINI_API_KEY") != "", "Enable the AI assistant endpoints")
	)
	flag.Parse()

	log := logger.New()
	ctx := context.Background()

	// Pick the gateway: web app first, direct Sheets as fallback, local
	// mode when neither is configured.
	var gw gateway.Client
	switch {
	case *endpoint != "":
		gw = gateway.NewWebAppClient(*endpoint, logger.Component(log, "gateway"))
		log.Info().Str("endpoint", *endpoint).Msg("Using web-app gateway")
	case *sheetID != "":
		sheetsGW, err := gateway.NewSheetsClient(ctx, *sheetID, logger.Component(log, "gateway"))
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create Sheets gateway")
		}
		gw = sheetsGW
		log.Info().Str("sheet_id", *sheetID).Msg("Using direct Sheets gateway")
	default:
		log.Warn().Msg("No endpoint configured - running in local mode")
	}

	dir := *sessionDir
	if dir == "" {
		var err error
		dir, err = session.DefaultDir()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to resolve session directory")
		}
	}
	sessions, err := session.NewManager(dir)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create session store")
	}

	orch := syncer.New(gw, store.New(), access.NewGate(), logger.Component(log, "syncer"))

	// Restore a persisted session and run the fetch-on-login sync.
	if profile, err := sessions.LoadProfile(); err != nil {
		log.Warn().Err(err).Msg("Failed to restore session")
	} else if profile != nil {
		orch.SetActor(profile.Email)
		if err := orch.TriggerSync(ctx); err != nil {
			log.Warn().Err(err).Msg("Startup sync failed, continuing with empty cache")
		}
	}

	var aiClient *assistant.Client
	var checker syncer.AnomalyChecker
	if *withAI {
		aiClient = assistant.NewClient(logger.Component(log, "assistant"))
		checker = aiClient
	}

	mux := http.NewServeMux()
	handlers.NewLedgerHandler(orch, sessions, checker, log).Register(mux)
	if aiClient != nil {
		handlers.NewAssistantHandler(orch, aiClient, log).Register(mux)
	}

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	handler := middleware.Logger(log)(
		middleware.Recovery(log)(
			middleware.RequestID(
				middleware.CORS(mux))))

	server := &http.Server{
		Addr:         ":" + *port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	go func() {
		log.Info().Str("port", *port).Msg("Starting ledger API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Forced shutdown")
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
