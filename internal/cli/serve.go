package cli

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/spf13/cobra"

	"draftcrane-agent/internal/autosave"
	"draftcrane-agent/internal/config"
	"draftcrane-agent/internal/diag"
	"draftcrane-agent/internal/handler"
	"draftcrane-agent/internal/middleware"
	"draftcrane-agent/internal/remote"
	"draftcrane-agent/internal/websocket"
)

// NewServeCommand creates the serve command: the long-running agent process
// the editor UI talks to.
func NewServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the autosave agent",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	errs := diag.NewRing(cfg.Diag.ErrorBufferSize)
	client := remote.NewHTTPClient(cfg.Remote.BaseURL, cfg.Remote.Token, cfg.Remote.Timeout)

	sessions := autosave.NewManager(client, store, errs, autosave.Options{
		Debounce: cfg.Autosave.DebounceInterval,
		Retry: autosave.RetryPolicy{
			MaxAttempts: cfg.Autosave.MaxAttempts,
			BaseDelay:   cfg.Autosave.RetryBaseDelay,
			MaxDelay:    cfg.Autosave.RetryMaxDelay,
		},
	})

	wsManager := websocket.NewManager(
		cfg.WebSocket.MaxConnPerSession,
		cfg.WebSocket.WriteWait,
		cfg.WebSocket.PongWait,
		cfg.WebSocket.PingPeriod,
	)
	go wsManager.Run()
	wsManager.SetMessageHandler(handler.NewWebSocketMessageHandler(sessions))

	sessionHandler := handler.NewSessionHandler(sessions, wsManager)
	draftHandler := handler.NewDraftHandler(store)
	diagHandler := handler.NewDiagHandler(errs)
	wsHandler := handler.NewWebSocketHandler(wsManager, sessions)

	r := mux.NewRouter()

	r.Use(middleware.LoggerMiddleware())
	r.Use(middleware.CORSMiddleware(
		cfg.CORS.AllowedOrigins,
		cfg.CORS.AllowedMethods,
		cfg.CORS.AllowedHeaders,
	))

	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/sessions", sessionHandler.Open).Methods("POST", "OPTIONS")
	api.HandleFunc("/sessions/{id}", sessionHandler.Close).Methods("DELETE", "OPTIONS")
	api.HandleFunc("/sessions/{id}/edits", sessionHandler.Edit).Methods("POST", "OPTIONS")
	api.HandleFunc("/sessions/{id}/retry", sessionHandler.Retry).Methods("POST", "OPTIONS")
	api.HandleFunc("/sessions/{id}/status", sessionHandler.Status).Methods("GET", "OPTIONS")

	api.HandleFunc("/drafts/{chapterID}", draftHandler.Get).Methods("GET", "OPTIONS")
	api.HandleFunc("/drafts/{chapterID}", draftHandler.Delete).Methods("DELETE", "OPTIONS")
	api.HandleFunc("/drafts", draftHandler.Clear).Methods("DELETE", "OPTIONS")

	api.HandleFunc("/diagnostics/errors", diagHandler.Errors).Methods("GET", "OPTIONS")

	r.HandleFunc("/ws", wsHandler.HandleConnection)
	r.HandleFunc("/health", healthHandler).Methods("GET")

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)

	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting DraftCrane agent on %s (env: %s)", addr, cfg.Server.Env)
		log.Printf("Content service at %s, draft store driver: %s", cfg.Remote.BaseURL, cfg.Store.Driver)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Agent failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down agent...")

	// Flush owed edits before the listener goes away.
	sessions.CloseAll()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("agent forced to shutdown: %w", err)
	}

	log.Println("Agent stopped gracefully")
	return nil
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy","service":"draftcrane-agent"}`))
}
