package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/mindcare-ai/mindcare/backend/internal/config"
	"github.com/mindcare-ai/mindcare/backend/internal/handler"
	"github.com/mindcare-ai/mindcare/backend/internal/pkg/logger"
	"github.com/mindcare-ai/mindcare/backend/internal/service/ai"
	"github.com/mindcare-ai/mindcare/backend/internal/service/chat"
)

const sessionSweepInterval = 10 * time.Minute

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, logger.New)
	stop()
	os.Exit(code)
}

// run returns the process exit code so deferred cleanup, including the
// final log flush, happens before main exits.
func run(ctx context.Context, newLogger func(mode string) (*logger.Logger, error)) int {
	// Load .env file
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		return 1
	}

	log, err := newLogger(cfg.Log.Mode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		return 1
	}
	defer log.Sync()
	defer zap.ReplaceGlobals(log.SugaredLogger.Desugar())()

	if envErr != nil {
		log.Warn("failed to load .env file, continuing with system environment variables only", "error", envErr)
	}

	aiService, err := ai.NewService(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize classification pipeline", "error", err)
		return 1
	}
	defer func() {
		if err := aiService.Close(); err != nil {
			log.Warn("failed to close telemetry sink", "error", err)
		}
	}()

	sessions := chat.NewService(
		chat.WithSessionTTL(cfg.Session.TTL),
		chat.WithMaxSessions(cfg.Session.MaxSessions),
	)
	go sessions.RunJanitor(ctx, sessionSweepInterval)

	router := handler.NewRouter(handler.Deps{
		Pipeline:       aiService.Pipeline,
		Sessions:       sessions,
		Catalog:        aiService.Catalog,
		Logger:         log,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})

	if err := startServer(ctx, cfg.Server, router, log); err != nil {
		log.Error("server error", "error", err)
		return 1
	}
	return 0
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler, log *logger.Logger) error {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Info("mindcare backend listening", "addr", addr)
	return runServer(ctx, srv)
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
