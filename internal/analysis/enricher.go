package analysis

import (
	"context"

	"github.com/sesimlab/counselvoice/internal/apperrors"
	"github.com/sesimlab/counselvoice/internal/domain"
	"github.com/sesimlab/counselvoice/internal/embedding"
	"github.com/sesimlab/counselvoice/internal/llm"
	"github.com/sesimlab/counselvoice/internal/logger"
	"github.com/sesimlab/counselvoice/internal/repository"
)

// Enricher routes a completed voice record to the right analysis: first
// sessions get chunk indexing plus the client profile, later sessions get
// next-session goals.
type Enricher struct {
	indexer *Indexer
	profile *ProfileAnalyzer
	goals   *GoalAnalyzer
	clients *repository.ClientRepository
	log     *logger.Logger
}

func NewEnricher(p llm.Provider, embedder embedding.Provider, clients *repository.ClientRepository, goals *repository.GoalRepository, chunks *repository.ChunkRepository, log *logger.Logger) *Enricher {
	retriever := NewRetriever(chunks, embedder, log)
	return &Enricher{
		indexer: NewIndexer(chunks, embedder, log),
		profile: NewProfileAnalyzer(p, retriever, clients, log),
		goals:   NewGoalAnalyzer(p, goals, log),
		clients: clients,
		log:     log.WithComponent("enricher"),
	}
}

// Enrich runs the post-transcription analysis for a record. Callers treat a
// failure here as non-fatal; the transcription itself is already persisted.
func (e *Enricher) Enrich(ctx context.Context, rec *domain.VoiceRecord) error {
	session := 1
	if rec.SessionNumber != nil {
		session = *rec.SessionNumber
	}
	if session > 1 {
		return e.goals.GenerateNextSessionGoals(ctx, rec)
	}

	client, err := e.clients.Get(ctx, rec.ClientID)
	if err != nil {
		return apperrors.Enrichment("client profile", err)
	}
	if client.AIAnalysisCompleted {
		e.log.Debug("first-session analysis already done", logger.Fields(
			logger.FieldClientID, client.ID))
		return nil
	}

	// Indexing failure degrades to full-dialogue retrieval in the profile
	// step rather than aborting the analysis.
	if err := e.indexer.IndexRecord(ctx, rec); err != nil {
		e.log.Warn("chunk indexing failed", logger.Fields(
			logger.FieldRecordID, rec.ID, logger.FieldError, err.Error()))
	}
	return e.profile.AnalyzeFirstSession(ctx, client, rec)
}
