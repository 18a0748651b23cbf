package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/soheilhy/cmux"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/nyashahama/crushbot-backend/internal/ai"
	"github.com/nyashahama/crushbot-backend/internal/analysis"
	"github.com/nyashahama/crushbot-backend/internal/api"
	"github.com/nyashahama/crushbot-backend/internal/config"
	"github.com/nyashahama/crushbot-backend/internal/feedback"
	"github.com/nyashahama/crushbot-backend/internal/quiz"
	"github.com/nyashahama/crushbot-backend/internal/rpc"
	"github.com/nyashahama/crushbot-backend/internal/scoring"
	"github.com/nyashahama/crushbot-backend/internal/store"
	"github.com/nyashahama/crushbot-backend/internal/worker"
)

func main() {
	// ── Logger ────────────────────────────────────────────────────────────────
	// JSON in production, console in development.
	var (
		logger *zap.Logger
		err    error
	)
	if os.Getenv("ENV") == "production" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	if err := run(logger); err != nil {
		logger.Error("fatal", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(logger *zap.Logger) error {
	// ── Config ────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger.Info("config loaded",
		zap.String("env", cfg.Env),
		zap.String("port", cfg.Port),
		zap.String("store_driver", cfg.StoreDriver),
		zap.String("ai_provider", cfg.AIProvider),
	)

	// ── Scoring ───────────────────────────────────────────────────────────────
	weights := scoring.DefaultWeights()
	if err := weights.Validate(); err != nil {
		return fmt.Errorf("weights: %w", err)
	}

	catalog, err := quiz.LoadCatalog(cfg.QuizCatalogPath)
	if err != nil {
		return fmt.Errorf("catalog: %w", err)
	}
	logger.Info("catalog loaded", zap.Int("questions", catalog.Len()))

	// ── Store ─────────────────────────────────────────────────────────────────
	openCtx, cancelOpen := context.WithTimeout(context.Background(), 10*time.Second)
	st, err := store.Open(openCtx, store.Config{
		Driver:        cfg.StoreDriver,
		DatabaseURL:   cfg.DatabaseURL,
		SQLitePath:    cfg.SQLitePath,
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		RedisDB:       cfg.RedisDB,
		PrivateTTL:    cfg.StorePrivateTTL,
	}, logger)
	cancelOpen()
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Warn("store: close failed", zap.Error(err))
		}
	}()

	// ── AI ────────────────────────────────────────────────────────────────────
	// One provider per process. Without a key every explanation is canned text.
	gen, err := ai.NewGenerator(cfg.AIProvider, ai.ClientConfig{
		APIKey:    cfg.AIAPIKey(),
		Model:     providerModel(cfg),
		BaseURL:   providerBaseURL(cfg),
		MaxTokens: cfg.AIMaxTokens,
		Timeout:   cfg.AITimeout,
	})
	if err != nil {
		return fmt.Errorf("ai: %w", err)
	}
	if cfg.AIAPIKey() == "" {
		logger.Warn("ai: no API key for provider, serving fallback texts only", zap.String("provider", cfg.AIProvider))
	} else {
		logger.Info("ai: generator ready", zap.String("provider", cfg.AIProvider), zap.String("model", providerModel(cfg)))
	}
	explainer := ai.NewExplainer(gen, logger, cfg.AITimeout)
	analyzer := analysis.New(weights, explainer, logger)

	// ── Feedback worker ───────────────────────────────────────────────────────
	job := worker.NewJob(st, logger)
	runner := worker.NewRunner(job, worker.RunnerConfig{
		Workers:    cfg.FeedbackWorkers,
		JobTimeout: cfg.FeedbackTimeout,
		MaxRetries: cfg.FeedbackMaxRetries,
		Backoff:    cfg.FeedbackBackoff,
	}, logger)
	recorder := feedback.NewRecorder(runner, logger)

	// ── Sessions ──────────────────────────────────────────────────────────────
	registry := quiz.NewRegistry(catalog, cfg.SessionTTL, logger)

	// ── HTTP + gRPC on one port ───────────────────────────────────────────────
	handler := api.NewServer(registry, analyzer, recorder, api.Config{Env: cfg.Env}, logger)
	httpSrv := &http.Server{
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // the last answer waits on text generation
		IdleTimeout:  120 * time.Second,
	}
	grpcSrv := rpc.NewServer(analyzer, logger)

	lis, err := net.Listen("tcp", ":"+cfg.Port)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	mux := cmux.New(lis)
	grpcL := mux.MatchWithWriters(cmux.HTTP2MatchHeaderFieldSendSettings("content-type", "application/grpc"))
	httpL := mux.Match(cmux.Any())

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	// Root context cancelled by OS signal, or by any server dying.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	// The worker context outlives the signal so queued votes can drain.
	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()
	runner.Start(workerCtx)

	go registry.Run(gctx, pruneInterval(cfg.SessionTTL))

	g.Go(func() error {
		if err := grpcSrv.Serve(grpcL); err != nil && !errors.Is(err, grpc.ErrServerStopped) && !errors.Is(err, cmux.ErrListenerClosed) {
			return fmt.Errorf("grpc: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := httpSrv.Serve(httpL); err != nil && !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, cmux.ErrListenerClosed) {
			return fmt.Errorf("http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		logger.Info("server listening", zap.String("addr", lis.Addr().String()))
		if err := mux.Serve(); err != nil && !errors.Is(err, net.ErrClosed) && !errors.Is(err, cmux.ErrServerClosed) {
			return fmt.Errorf("cmux: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		// Give in-flight requests up to 20 seconds to finish.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()

		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http: shutdown", zap.Error(err))
		}
		grpcSrv.GracefulStop()
		mux.Close()

		if err := runner.Shutdown(shutdownCtx); err != nil {
			logger.Warn("worker: drain incomplete, dropping queued votes", zap.Error(err))
			cancelWorkers()
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}

func providerModel(cfg *config.Config) string {
	if cfg.AIProvider == ai.ProviderDeepSeek {
		return cfg.DeepSeekModel
	}
	return cfg.AnthropicModel
}

// providerBaseURL only overrides the Anthropic endpoint; DeepSeek uses its
// client default.
func providerBaseURL(cfg *config.Config) string {
	if cfg.AIProvider == ai.ProviderDeepSeek {
		return ""
	}
	return cfg.AnthropicBaseURL
}

// pruneInterval sweeps a few times per TTL, never more than once a minute.
func pruneInterval(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return 0
	}
	return max(ttl/4, time.Minute)
}
