package analysis

import (
	"context"
	"strings"

	"github.com/sesimlab/counselvoice/internal/embedding"
	"github.com/sesimlab/counselvoice/internal/logger"
	"github.com/sesimlab/counselvoice/internal/repository"
)

// retrieveTopK is how many chunks each clinical query pulls.
const retrieveTopK = 4

// clinicalQueries drive retrieval for the first-session profile. One query
// per profile field.
var clinicalQueries = []string{
	"내담자가 상담을 받으러 오게 된 배경과 경위",
	"내담자의 주된 호소 문제와 핵심 고민",
	"내담자가 현재 겪고 있는 증상과 심리 상태",
}

// Retriever pulls the transcript chunks most relevant to the fixed clinical
// queries.
type Retriever struct {
	chunks   *repository.ChunkRepository
	embedder embedding.Provider
	log      *logger.Logger
}

func NewRetriever(chunks *repository.ChunkRepository, embedder embedding.Provider, log *logger.Logger) *Retriever {
	return &Retriever{chunks: chunks, embedder: embedder, log: log.WithComponent("retriever")}
}

// RetrieveContext returns the deduplicated union of the top chunks for each
// clinical query, in first-hit order. When no chunks are indexed or retrieval
// fails, it degrades to the fallback dialogue so the profile analysis can
// still run.
func (r *Retriever) RetrieveContext(ctx context.Context, voiceRecordID uint, fallbackDialogue string) string {
	vectors, err := r.embedder.Embed(ctx, clinicalQueries)
	if err != nil || len(vectors) != len(clinicalQueries) {
		r.log.Warn("query embedding failed, using full dialogue", logger.Fields(
			logger.FieldRecordID, voiceRecordID, logger.FieldError, err))
		return fallbackDialogue
	}

	seen := make(map[uint]bool)
	var parts []string
	for i, vec := range vectors {
		hits, err := r.chunks.SearchTopK(ctx, voiceRecordID, vec, retrieveTopK)
		if err != nil {
			r.log.Warn("chunk search failed", logger.Fields(
				logger.FieldRecordID, voiceRecordID, "query", clinicalQueries[i],
				logger.FieldError, err.Error()))
			continue
		}
		for _, hit := range hits {
			if seen[hit.Chunk.ID] {
				continue
			}
			seen[hit.Chunk.ID] = true
			parts = append(parts, hit.Chunk.Content)
		}
	}
	if len(parts) == 0 {
		return fallbackDialogue
	}
	return strings.Join(parts, "\n\n")
}
