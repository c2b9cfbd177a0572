package repository

import (
	"context"
	"math"
	"sort"
	"sync"

	"gorm.io/gorm"

	"github.com/sesimlab/counselvoice/internal/apperrors"
	"github.com/sesimlab/counselvoice/internal/domain"
)

// ChunkRepository stores embedded transcript chunks and answers
// nearest-neighbor queries over them. The chunk table is created lazily on
// the first write; similarity is computed in-process since the store is
// sqlite and one record's chunk set is small.
type ChunkRepository struct {
	db *gorm.DB

	ensureOnce sync.Once
	ensureErr  error
}

func NewChunkRepository(db *gorm.DB) *ChunkRepository {
	return &ChunkRepository{db: db}
}

func (r *ChunkRepository) ensureTable() error {
	r.ensureOnce.Do(func() {
		if !r.db.Migrator().HasTable(&domain.TranscriptChunk{}) {
			r.ensureErr = r.db.Migrator().CreateTable(&domain.TranscriptChunk{})
		}
	})
	return r.ensureErr
}

// Store persists a record's chunk set in one transaction.
func (r *ChunkRepository) Store(ctx context.Context, chunks []domain.TranscriptChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	if err := r.ensureTable(); err != nil {
		return apperrors.DatabaseError(err)
	}
	if err := r.db.WithContext(ctx).Create(&chunks).Error; err != nil {
		return apperrors.DatabaseError(err)
	}
	return nil
}

// CountForRecord reports how many chunks exist for a voice record.
func (r *ChunkRepository) CountForRecord(ctx context.Context, voiceRecordID uint) (int64, error) {
	if !r.db.Migrator().HasTable(&domain.TranscriptChunk{}) {
		return 0, nil
	}
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.TranscriptChunk{}).
		Where("voice_record_id = ?", voiceRecordID).
		Count(&count).Error
	if err != nil {
		return 0, apperrors.DatabaseError(err)
	}
	return count, nil
}

// ScoredChunk is a chunk with its cosine similarity to a query vector.
type ScoredChunk struct {
	Chunk domain.TranscriptChunk
	Score float64
}

// SearchTopK returns the k chunks of a voice record most similar to the
// query embedding, highest similarity first.
func (r *ChunkRepository) SearchTopK(ctx context.Context, voiceRecordID uint, query []float32, k int) ([]ScoredChunk, error) {
	if k <= 0 || len(query) == 0 {
		return nil, nil
	}
	if !r.db.Migrator().HasTable(&domain.TranscriptChunk{}) {
		return nil, nil
	}

	var chunks []domain.TranscriptChunk
	err := r.db.WithContext(ctx).
		Where("voice_record_id = ?", voiceRecordID).
		Order("chunk_index ASC").
		Find(&chunks).Error
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}

	scored := make([]ScoredChunk, 0, len(chunks))
	for _, c := range chunks {
		score, ok := cosineSimilarity(query, c.Embedding)
		if !ok {
			continue
		}
		scored = append(scored, ScoredChunk{Chunk: c, Score: score})
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })

	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

// cosineSimilarity returns the cosine of the angle between a and b. The
// second return is false when the vectors are mismatched or zero.
func cosineSimilarity(a, b []float32) (float64, bool) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, false
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0, false
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), true
}
