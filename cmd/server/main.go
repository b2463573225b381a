package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/crewplan/backend/internal/command"
	"github.com/crewplan/backend/internal/config"
	"github.com/crewplan/backend/internal/db"
	httpapi "github.com/crewplan/backend/internal/http"
	"github.com/crewplan/backend/internal/llm"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	zerolog.TimeFieldFormat = time.RFC3339
	level, _ := zerolog.ParseLevel(cfg.LogLevel)
	logger := log.Level(level).With().Str("service", "crewplan-backend").Logger()

	ctx := context.Background()
	store, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect db")
	}
	defer store.Close()

	if err := store.EnsureSchema(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to ensure schema")
	}

	var client llm.Client
	if cfg.LLMBaseURL == "" {
		client = llm.Mock{}
		logger.Info().Msg("using mock completion client")
	} else {
		client = llm.OpenAICompatClient{
			BaseURL: cfg.LLMBaseURL,
			Model:   cfg.LLMModel,
			APIKey:  cfg.LLMAPIKey,
			Timeout: cfg.LLMTimeout,
		}
	}

	engine := &command.Engine{
		Store:  store,
		LLM:    client,
		Logger: logger,
		OrgID:  cfg.OrgID,
		Insights: command.InsightConfig{
			DefaultCapacity:      cfg.WeeklyCapacityDefault,
			CriticalOverageHours: cfg.CriticalOverageHours,
			UnderAllocationRatio: cfg.UnderAllocationRatio,
			RubberStampEnabled:   cfg.RubberStampEnabled,
			RubberStampMinWeeks:  cfg.RubberStampMinWeeks,
		},
		LookaheadWeeks:  cfg.LookaheadWeeks,
		DefaultCapacity: cfg.WeeklyCapacityDefault,
		PendingTTL:      cfg.PendingTTL,
	}

	router := httpapi.Router(cfg, store, engine, logger)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctxShutdown)
	logger.Info().Msg("server stopped")
}
