package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/katavoz/KataRoute/internal/api"
	"github.com/katavoz/KataRoute/internal/audit"
	"github.com/katavoz/KataRoute/internal/classic"
	"github.com/katavoz/KataRoute/internal/config"
	"github.com/katavoz/KataRoute/internal/enrich"
	"github.com/katavoz/KataRoute/internal/genai"
	"github.com/katavoz/KataRoute/internal/memory"
	"github.com/katavoz/KataRoute/internal/profile"
	"github.com/katavoz/KataRoute/internal/prompt"
	"github.com/katavoz/KataRoute/internal/router"
	"github.com/katavoz/KataRoute/internal/store"
	"github.com/katavoz/KataRoute/internal/util"
)

func main() {
	initializeLogger()

	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	cfg, err := config.Load(os.Getenv("KATAROUTE_CONFIG"))
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		slog.Error("KataRoute failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("KataRoute exited successfully")
}

// initializeLogger sets up structured logging; KATAROUTE_DEBUG enables
// debug level.
func initializeLogger() {
	level := slog.LevelInfo
	if util.ParseBoolEnv("KATAROUTE_DEBUG", false) {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

func run(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	memStore, closeMemStore, err := buildMemoryStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeMemStore()

	decisionStore, closeDecisionStore, err := buildDecisionStore(cfg)
	if err != nil {
		return err
	}
	defer closeDecisionStore()

	sink := audit.NewAsyncSink(decisionStore, cfg.Audit.QueueSize)
	defer sink.Close()

	profiles, err := buildProfileStore(cfg)
	if err != nil {
		return err
	}

	var llm router.CompletionService
	if os.Getenv("OPENAI_API_KEY") != "" {
		client, err := genai.NewClient(genai.WithModel(cfg.OpenAI.Model))
		if err != nil {
			return err
		}
		llm = client
		slog.Info("Generative client configured", "model", cfg.OpenAI.Model)
	} else {
		slog.Warn("OPENAI_API_KEY not set, generative path disabled")
	}

	r := router.New(router.Deps{
		Matcher:  classic.NewKeywordMatcher(),
		Profiles: profiles,
		Enricher: enrich.NewEnricher(cfg.Enrich.DomainCutoff),
		Memory: memory.New(memStore, memory.WithWindows(
			cfg.Memory.StrictWindow(), cfg.Memory.ExtendedWindow(), cfg.Memory.MaxWindow())),
		Builder: prompt.NewBuilder(),
		LLM:     llm,
		Sink:    sink,
	}, router.Opts{
		ClassicConfidenceThreshold: cfg.Router.ClassicConfidenceThreshold,
		CompletionTimeout:          cfg.Router.CompletionTimeout(),
	})

	srv := api.NewServer(cfg.API.Addr, r, sink)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// buildMemoryStore selects the conversation memory backend from config.
func buildMemoryStore(ctx context.Context, cfg config.Config) (store.MemoryStore, func(), error) {
	noop := func() {}
	switch cfg.Memory.Driver {
	case "", "memory":
		return store.NewInMemoryStore(), noop, nil
	case "sqlite":
		st, err := store.NewSQLiteStore(store.WithDSN(cfg.Memory.DSN))
		if err != nil {
			return nil, noop, err
		}
		return st, closeQuietly(st.Close, "sqlite memory store"), nil
	case "postgres":
		st, err := store.NewPostgresStore(store.WithDSN(cfg.Memory.DSN))
		if err != nil {
			return nil, noop, err
		}
		return st, closeQuietly(st.Close, "postgres memory store"), nil
	case "redis":
		st, err := store.NewRedisMemoryStore(ctx,
			store.WithRedisAddr(cfg.Memory.RedisAddr),
			store.WithRetention(cfg.Memory.MaxWindow()))
		if err != nil {
			return nil, noop, err
		}
		return st, closeQuietly(st.Close, "redis memory store"), nil
	default:
		return nil, noop, fmt.Errorf("unknown memory driver %q", cfg.Memory.Driver)
	}
}

// buildDecisionStore selects the audit trail backend from config.
func buildDecisionStore(cfg config.Config) (store.DecisionStore, func(), error) {
	noop := func() {}
	switch cfg.Audit.Driver {
	case "", "memory":
		return store.NewInMemoryStore(), noop, nil
	case "sqlite":
		st, err := store.NewSQLiteStore(store.WithDSN(cfg.Audit.DSN))
		if err != nil {
			return nil, noop, err
		}
		return st, closeQuietly(st.Close, "sqlite decision store"), nil
	case "postgres":
		st, err := store.NewPostgresStore(store.WithDSN(cfg.Audit.DSN))
		if err != nil {
			return nil, noop, err
		}
		return st, closeQuietly(st.Close, "postgres decision store"), nil
	default:
		return nil, noop, fmt.Errorf("unknown audit driver %q", cfg.Audit.Driver)
	}
}

func buildProfileStore(cfg config.Config) (profile.Store, error) {
	if cfg.Profiles.Path == "" {
		slog.Warn("No profiles file configured, every user gets the default profile")
		return profile.NewStaticStore(), nil
	}
	return profile.NewFileStore(cfg.Profiles.Path)
}

func closeQuietly(close func() error, name string) func() {
	return func() {
		if err := close(); err != nil {
			slog.Warn("Failed to close "+name, "error", err)
		}
	}
}
