package analysis

import (
	"context"
	"fmt"

	"github.com/sesimlab/counselvoice/internal/apperrors"
	"github.com/sesimlab/counselvoice/internal/domain"
	"github.com/sesimlab/counselvoice/internal/embedding"
	"github.com/sesimlab/counselvoice/internal/logger"
	"github.com/sesimlab/counselvoice/internal/repository"
	"github.com/sesimlab/counselvoice/internal/transcript"
)

// Indexer chunks a first-session transcript and stores one embedding per
// chunk for later retrieval.
type Indexer struct {
	chunks   *repository.ChunkRepository
	embedder embedding.Provider
	log      *logger.Logger
}

func NewIndexer(chunks *repository.ChunkRepository, embedder embedding.Provider, log *logger.Logger) *Indexer {
	return &Indexer{chunks: chunks, embedder: embedder, log: log.WithComponent("indexer")}
}

// IndexRecord builds semantic chunks from the record's segments, embeds
// them, and persists the result. A record with nothing to index is a no-op.
func (ix *Indexer) IndexRecord(ctx context.Context, rec *domain.VoiceRecord) error {
	segments := rec.SegmentsMerged
	if len(segments) == 0 {
		segments = rec.Segments
	}
	contents := transcript.BuildSemanticChunks(segments)
	if len(contents) == 0 {
		return nil
	}

	vectors, err := ix.embedder.Embed(ctx, contents)
	if err != nil {
		return apperrors.Enrichment("chunk indexing", err)
	}
	if len(vectors) != len(contents) {
		return apperrors.Enrichment("chunk indexing",
			fmt.Errorf("embedded %d of %d chunks", len(vectors), len(contents)))
	}

	session := 1
	if rec.SessionNumber != nil {
		session = *rec.SessionNumber
	}

	rows := make([]domain.TranscriptChunk, len(contents))
	for i, content := range contents {
		rows[i] = domain.TranscriptChunk{
			VoiceRecordID: rec.ID,
			ClientID:      rec.ClientID,
			SessionNumber: session,
			ChunkIndex:    i,
			Content:       content,
			Embedding:     vectors[i],
		}
	}
	if err := ix.chunks.Store(ctx, rows); err != nil {
		return apperrors.Enrichment("chunk indexing", err)
	}

	ix.log.Info("transcript chunks indexed", logger.Fields(
		logger.FieldRecordID, rec.ID, "chunks", len(rows)))
	return nil
}
