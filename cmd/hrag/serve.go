package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"hrag/internal/agent"
	"hrag/internal/api"
)

var (
	serveOpts buildFlags
	serveAddr string
	serveChat bool
)

var serveCmd = &cobra.Command{
	Use:   "serve <document>",
	Short: "Start the HTTP API server",
	Long: `Serve the retrieval operations and chat sessions over HTTP.

Endpoints:
  GET  /health
  GET  /metrics
  POST /api/search/level
  POST /api/search/range
  POST /api/search/range/batch
  POST /api/search/cite
  POST /api/chat
  DELETE /api/chat/{sessionID}`,
	Args: cobra.ExactArgs(1),
	RunE: runServe,
}

func init() {
	addBuildFlags(serveCmd, &serveOpts)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Address to listen on (default: server.addr)")
	serveCmd.Flags().BoolVar(&serveChat, "chat", true, "Enable /api/chat (requires LLM credentials)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, closeLog, err := setup()
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sys, closeSys, err := openSystem(ctx, cfg, args[0], serveOpts, log)
	if err != nil {
		return err
	}
	defer closeSys()

	var sessions api.SessionFactory
	if serveChat {
		reasoner, err := newReasoner(cfg)
		if err != nil {
			return err
		}
		prompt, err := agent.LoadSystemPrompt(cfg.Agent.PromptFile, log)
		if err != nil {
			return err
		}
		sessions = func() api.Asker { return sys.NewSession(reasoner, prompt, cfg.Agent.MaxTurns) }
	}

	addr := serveAddr
	if addr == "" {
		addr = cfg.Server.Addr
	}
	handler := api.NewServer(sys.Engine, sessions, api.Options{
		APIKey:      os.Getenv(cfg.Server.APIKeyEnv),
		TurnTimeout: time.Duration(cfg.Agent.TurnTimeoutSecs) * time.Second,
		SessionTTL:  time.Duration(cfg.Server.SessionTTLSecs) * time.Second,
		MaxSessions: cfg.Server.MaxSessions,
	}, log)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("Listening", "addr", addr)
		serverErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}
	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
