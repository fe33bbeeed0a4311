// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	adminApi "github.com/Askhat-cmd/langchain-vox-bot/api/admin-api"
	routers "github.com/Askhat-cmd/langchain-vox-bot/api/router"
	"github.com/Askhat-cmd/langchain-vox-bot/config"
	internal_agent "github.com/Askhat-cmd/langchain-vox-bot/internal/agent"
	internal_ari "github.com/Askhat-cmd/langchain-vox-bot/internal/ari"
	internal_audio "github.com/Askhat-cmd/langchain-vox-bot/internal/audio"
	internal_callstore "github.com/Askhat-cmd/langchain-vox-bot/internal/callstore"
	internal_filler "github.com/Askhat-cmd/langchain-vox-bot/internal/filler"
	internal_normalizer "github.com/Askhat-cmd/langchain-vox-bot/internal/normalizer"
	internal_session "github.com/Askhat-cmd/langchain-vox-bot/internal/session"
	internal_synthesizer "github.com/Askhat-cmd/langchain-vox-bot/internal/synthesizer"
	internal_transformer_google "github.com/Askhat-cmd/langchain-vox-bot/internal/transformer/google"
	internal_transformer_yandex "github.com/Askhat-cmd/langchain-vox-bot/internal/transformer/yandex"
	internal_type "github.com/Askhat-cmd/langchain-vox-bot/internal/type"
	"github.com/Askhat-cmd/langchain-vox-bot/pkg/commons"
	"github.com/Askhat-cmd/langchain-vox-bot/pkg/utils"
)

func main() {
	v, err := config.InitConfig()
	if err != nil {
		log.Fatalf("config init: %v", err)
	}
	cfg, err := config.GetApplicationConfig(v)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := commons.NewFileLogger(cfg.LogFile, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("shutdown signal received")
		cancel()
	}()

	if err := run(ctx, cfg, logger); err != nil && ctx.Err() == nil {
		logger.Errorw("application failed", "error", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func run(ctx context.Context, cfg *config.AppConfig, logger commons.Logger) error {
	sounds, err := internal_audio.NewSoundStore(cfg.SoundDir, logger)
	if err != nil {
		return fmt.Errorf("sound store: %w", err)
	}

	synth, err := buildSynthesizer(ctx, cfg, logger)
	if err != nil {
		return err
	}

	stt, err := internal_transformer_yandex.NewSpeechRecognizer(logger, cfg.YandexConfig.ApiKey, cfg.YandexConfig.FolderId, utils.Option{
		"listen.language": cfg.YandexConfig.Language,
	})
	if err != nil {
		return fmt.Errorf("recognizer: %w", err)
	}

	agent, err := internal_agent.NewAgent(logger, cfg.OpenAIConfig.ApiKey, cfg.OpenAIConfig.Model, cfg.OpenAIConfig.SystemPrompt)
	if err != nil {
		return fmt.Errorf("agent: %w", err)
	}
	if cfg.KnowledgeBasePath != "" {
		if kb, err := os.ReadFile(cfg.KnowledgeBasePath); err == nil {
			agent.SetKnowledgeBase(string(kb))
		} else {
			logger.Warnw("knowledge base not loaded", "path", cfg.KnowledgeBasePath, "error", err)
		}
	}

	store, err := internal_callstore.NewStore(logger, cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("call store: %w", err)
	}

	var filler *internal_filler.Cache
	if cfg.PipelineConfig.FillerEnabled {
		filler = internal_filler.NewCache(logger)
		warmCtx, warmCancel := context.WithTimeout(ctx, 30*time.Second)
		filler.Warm(warmCtx, synth, nil)
		warmCancel()
	}

	ari := internal_ari.NewClient(logger,
		cfg.AsteriskConfig.URL,
		cfg.AsteriskConfig.Username,
		cfg.AsteriskConfig.Password,
		cfg.AsteriskConfig.App,
		cfg.RecordingDir,
	)

	sessionCfg := sessionConfig(cfg)
	registry := internal_session.NewRegistry(ctx, logger, sessionCfg, internal_session.Deps{
		Logger:      logger,
		Telephony:   ari,
		Synthesizer: synth,
		Transcriber: stt,
		Replies:     agent,
		Sounds:      sounds,
		Filler:      filler,
		Store:       store,
	})

	normalizer := internal_normalizer.NewPipeline(logger, cfg.YandexConfig.Language)
	startAdminServer(ctx, cfg, logger, store, agent, registry, normalizer)

	logger.Infow("connecting to asterisk", "url", cfg.AsteriskConfig.URL, "app", cfg.AsteriskConfig.App)
	return ari.Listen(ctx, registry.Dispatch)
}

// buildSynthesizer assembles the fast-then-reliable synthesis chain. The
// reliable Google backend is optional; without credentials the fast backend
// simply has no fallback.
func buildSynthesizer(ctx context.Context, cfg *config.AppConfig, logger commons.Logger) (internal_type.Synthesizer, error) {
	fast, err := internal_transformer_yandex.NewSpeechSynthesizer(logger, cfg.YandexConfig.ApiKey, cfg.YandexConfig.FolderId, utils.Option{
		"speak.voice.id": cfg.YandexConfig.Voice,
		"speak.language": cfg.YandexConfig.Language,
	})
	if err != nil {
		return nil, fmt.Errorf("synthesizer: %w", err)
	}

	var reliable internal_type.Synthesizer
	if cfg.GoogleConfig.ApiKey != "" || cfg.GoogleConfig.ServiceAccountJson != "" {
		google, err := internal_transformer_google.NewSpeechSynthesizer(ctx, logger, cfg.GoogleConfig.ApiKey, cfg.GoogleConfig.ServiceAccountJson, utils.Option{
			"speak.voice.id": cfg.GoogleConfig.Voice,
		})
		if err != nil {
			logger.Warnw("google synthesizer unavailable, continuing without fallback", "error", err)
		} else {
			reliable = google
		}
	}

	pipeline := internal_normalizer.NewPipeline(logger, cfg.YandexConfig.Language)
	timeout := time.Duration(cfg.PipelineConfig.SynthesisTimeoutS) * time.Second
	return internal_synthesizer.NewFallbackSynthesizer(logger, fast, reliable, pipeline, timeout), nil
}

func sessionConfig(cfg *config.AppConfig) internal_session.Config {
	sc := internal_session.DefaultConfig()
	p := cfg.PipelineConfig
	if p.SynthesisWorkers > 0 {
		sc.Workers = p.SynthesisWorkers
	}
	if p.SilenceTimeoutMs > 0 {
		sc.Speech.SilenceTimeout = time.Duration(p.SilenceTimeoutMs) * time.Millisecond
	}
	if p.MinSpeechMs > 0 {
		sc.Speech.MinSpeech = time.Duration(p.MinSpeechMs) * time.Millisecond
	}
	if p.MaxRecordingS > 0 {
		sc.Speech.MaxDuration = time.Duration(p.MaxRecordingS) * time.Second
	}
	if p.BargeInGuardMs > 0 {
		sc.BargeIn.Guard = time.Duration(p.BargeInGuardMs) * time.Millisecond
	}
	if p.InactivityS > 0 {
		sc.Inactivity = time.Duration(p.InactivityS) * time.Second
	}
	if p.Greeting != "" {
		sc.Greeting = p.Greeting
	}
	return sc
}

func startAdminServer(
	ctx context.Context,
	cfg *config.AppConfig,
	logger commons.Logger,
	store *internal_callstore.Store,
	agent *internal_agent.Agent,
	registry *internal_session.Registry,
	normalizer *internal_normalizer.Pipeline,
) {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	api := adminApi.New(cfg, logger, store, agent, registry, normalizer)
	routers.AdminApiRoutes(cfg, engine, logger, api)

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: engine,
	}
	utils.Go(ctx, func() {
		logger.Infow("admin server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorw("admin server failed", "error", err)
		}
	})
	utils.Go(ctx, func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	})
}
