// Command api runs the counseling-session transcription service: an HTTP
// API that accepts uploaded session audio, drives multi-vendor speech
// recognition in the background, and enriches the results with LLM analysis.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sesimlab/counselvoice/internal/analysis"
	"github.com/sesimlab/counselvoice/internal/config"
	embeddingopenai "github.com/sesimlab/counselvoice/internal/embedding/openai"
	"github.com/sesimlab/counselvoice/internal/job"
	llmopenai "github.com/sesimlab/counselvoice/internal/llm/openai"
	"github.com/sesimlab/counselvoice/internal/logger"
	"github.com/sesimlab/counselvoice/internal/observability"
	"github.com/sesimlab/counselvoice/internal/repository"
	"github.com/sesimlab/counselvoice/internal/server"
	"github.com/sesimlab/counselvoice/internal/storage"
	"github.com/sesimlab/counselvoice/internal/stt"
	"github.com/sesimlab/counselvoice/internal/stt/assemblyai"
	"github.com/sesimlab/counselvoice/internal/stt/deepgram"
	"github.com/sesimlab/counselvoice/internal/stt/rtzr"
	"github.com/sesimlab/counselvoice/internal/stt/speechmatics"
	"github.com/sesimlab/counselvoice/internal/stt/voxtral"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger.Init(cfg.Logging, cfg.Service.Name)
	log := logger.GetGlobalLogger()
	log.Info("starting", logger.Fields(
		"service", cfg.Service.Name,
		"version", cfg.Service.Version,
		"environment", cfg.Service.Environment,
	))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.Init(ctx, cfg.Observability, cfg.Service)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}

	db, err := repository.Open(cfg.Database, log)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	store, err := newStorage(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	vendors := newVendorRegistry(cfg, log)

	model := llmopenai.NewProvider(cfg.LLM)
	embedder := embeddingopenai.NewProvider(cfg.Embedding)

	uploads := repository.NewUploadRepository(db)
	records := repository.NewVoiceRecordRepository(db)
	clients := repository.NewClientRepository(db)
	goals := repository.NewGoalRepository(db)
	chunks := repository.NewChunkRepository(db)

	enricher := analysis.NewEnricher(model, embedder, clients, goals, chunks, log)
	identifier := analysis.NewIdentifier(model, log)
	processor := job.NewProcessor(uploads, records, store, vendors, identifier, enricher, log)
	queue := job.NewQueue(cfg.Jobs, processor, log)
	queue.Start(ctx)

	srv := server.New(cfg.Server, log)
	handlers := server.NewHandlers(cfg, store, vendors, queue, uploads, records, clients, goals, log)
	handlers.Register(srv.Engine())

	if err := srv.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Stop(shutdownCtx); err != nil {
		log.Error("server stop failed", logger.Fields(logger.FieldError, err.Error()))
	}
	queue.Stop()
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error("tracer shutdown failed", logger.Fields(logger.FieldError, err.Error()))
	}
	log.Info("shutdown complete")
	return nil
}

// newStorage picks S3 when a bucket is configured, otherwise a local
// directory for development.
func newStorage(ctx context.Context, cfg *config.Config, log *logger.Logger) (storage.Storage, error) {
	if cfg.Storage.Bucket != "" {
		log.Info("using s3 storage", logger.Fields(
			"bucket", cfg.Storage.Bucket, "region", cfg.Storage.Region))
		return storage.NewS3Storage(ctx, cfg.Storage)
	}
	log.Warn("no storage bucket configured, using local filesystem")
	return storage.NewLocalStorage("data/audio")
}

// newVendorRegistry registers every vendor adapter factory and instantiates
// the ones with credentials. Unconfigured vendors stay registered by name so
// the API can tell "unknown" apart from "not configured".
func newVendorRegistry(cfg *config.Config, log *logger.Logger) *stt.Registry {
	vendors := stt.NewRegistry()
	vendors.RegisterFactory("assemblyai", assemblyai.Factory())
	vendors.RegisterFactory("deepgram", deepgram.Factory())
	vendors.RegisterFactory("speechmatics", speechmatics.Factory())
	vendors.RegisterFactory("rtzr", rtzr.Factory())
	vendors.RegisterFactory("voxtral", voxtral.Factory())

	for _, name := range stt.VendorNames() {
		creds, _ := cfg.STT.Vendor(name)
		if !creds.Configured() {
			log.Warn("stt vendor not configured", logger.Fields(logger.FieldVendor, name))
			continue
		}
		instance, err := vendors.Create(name, map[string]any{
			"api_key":       creds.APIKey,
			"client_id":     creds.ClientID,
			"client_secret": creds.ClientSecret,
			"base_url":      creds.BaseURL,
			"poll_interval": cfg.STT.PollInterval,
			"poll_timeout":  cfg.STT.PollTimeout,
		})
		if err != nil {
			log.Error("stt vendor init failed", logger.Fields(
				logger.FieldVendor, name, logger.FieldError, err.Error()))
			continue
		}
		vendors.Set(name, instance)
		log.Info("stt vendor ready", logger.Fields(logger.FieldVendor, name))
	}
	return vendors
}
