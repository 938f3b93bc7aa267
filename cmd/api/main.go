package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/zhouzirui/interview-room/backend/internal/config"
	"github.com/zhouzirui/interview-room/backend/internal/handler"
	vacancyHandler "github.com/zhouzirui/interview-room/backend/internal/handler/vacancy"
	"github.com/zhouzirui/interview-room/backend/internal/observability"
	"github.com/zhouzirui/interview-room/backend/internal/service/ai"
	"github.com/zhouzirui/interview-room/backend/internal/service/coderun"
	"github.com/zhouzirui/interview-room/backend/internal/service/interview"
	"github.com/zhouzirui/interview-room/backend/internal/service/vacancy"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	shutdownTracing, err := observability.InitTracing(ctx, cfg.Telemetry.StdoutTraces)
	if err != nil {
		log.Fatalf("failed to initialize tracing: %v", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Printf("warning: failed to flush traces: %v", err)
		}
	}()

	// Initialize the language model gateway
	if !cfg.AI.Enabled() {
		log.Fatalf("%s credentials not configured: set LLM_MODEL and LLM_API_KEY", cfg.AI.Provider)
	}
	chatModel, err := cfg.AI.NewChatModel(ctx)
	if err != nil {
		log.Fatalf("failed to initialize chat model: %v", err)
	}
	gateway, err := ai.NewGateway(ctx, chatModel, nil, ai.WithHistoryLimit(cfg.AI.HistoryLimit))
	if err != nil {
		log.Fatalf("failed to initialize AI gateway: %v", err)
	}
	log.Printf("AI gateway initialized with provider=%s model=%s", cfg.AI.Provider, cfg.AI.Model)

	// Vacancy source: remote service when configured, seeded store otherwise
	var (
		vacancies vacancy.Service
		lister    vacancyHandler.Lister
	)
	if cfg.Vacancy.BaseURL != "" {
		vacancies = vacancy.NewClient(cfg.Vacancy.BaseURL, cfg.Vacancy.Timeout)
		log.Printf("using vacancy service at %s", cfg.Vacancy.BaseURL)
	} else {
		store := vacancy.NewMemoryStore(vacancy.Seed())
		vacancies = store
		lister = store
		log.Println("vacancy service not configured, serving seeded vacancies")
	}

	opts := []interview.Option{interview.WithDefaultDuration(cfg.Interview.DefaultDuration)}
	if cfg.CodeRun.Enabled() {
		runner := coderun.NewClient(coderun.Options{
			BaseURL:       cfg.CodeRun.BaseURL,
			APIKey:        cfg.CodeRun.APIKey,
			RatePerSecond: cfg.CodeRun.RatePerSecond,
			Burst:         cfg.CodeRun.Burst,
			Timeout:       cfg.CodeRun.Timeout,
		})
		opts = append(opts, interview.WithRunner(runner, cfg.CodeRun.Parallelism))
		log.Printf("code runner enabled at %s", cfg.CodeRun.BaseURL)
	} else {
		log.Println("code runner not configured, solutions are reviewed without test runs")
	}

	rooms := interview.NewService(gateway, vacancies, opts...)
	router := handler.NewRouter(rooms, lister)

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("Interview room backend listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
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
