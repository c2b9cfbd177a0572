package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sesimlab/counselvoice/internal/apperrors"
	"github.com/sesimlab/counselvoice/internal/domain"
)

// UploadRepository persists the transcription job ledger.
type UploadRepository struct {
	db *gorm.DB
}

func NewUploadRepository(db *gorm.DB) *UploadRepository {
	return &UploadRepository{db: db}
}

// Create inserts a new upload in the queued state and returns it. The id is
// generated here so the HTTP handler can hand it back as the task id.
func (r *UploadRepository) Create(ctx context.Context, u *domain.Upload) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.Status = domain.UploadQueued
	if err := r.db.WithContext(ctx).Create(u).Error; err != nil {
		return apperrors.DatabaseError(err)
	}
	return nil
}

// Get returns the upload with the given id.
func (r *UploadRepository) Get(ctx context.Context, id string) (*domain.Upload, error) {
	var u domain.Upload
	err := r.db.WithContext(ctx).First(&u, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("upload", id)
	}
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}
	return &u, nil
}

// MarkProcessing moves a queued upload to processing. Terminal uploads are
// left untouched; the guard keeps the state machine from moving backward.
func (r *UploadRepository) MarkProcessing(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).
		Model(&domain.Upload{}).
		Where("id = ? AND status = ?", id, domain.UploadQueued).
		Update("status", domain.UploadProcessing)
	if res.Error != nil {
		return apperrors.DatabaseError(res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.NotFound("queued upload", id)
	}
	return nil
}

// MarkCompleted transitions a processing upload to completed and attaches
// the resulting voice record id.
func (r *UploadRepository) MarkCompleted(ctx context.Context, id string, voiceRecordID uint) error {
	res := r.db.WithContext(ctx).
		Model(&domain.Upload{}).
		Where("id = ? AND status = ?", id, domain.UploadProcessing).
		Updates(map[string]any{
			"status":          domain.UploadCompleted,
			"voice_record_id": voiceRecordID,
		})
	if res.Error != nil {
		return apperrors.DatabaseError(res.Error)
	}
	return nil
}

// MarkFailed transitions a non-terminal upload to failed with a
// human-readable message.
func (r *UploadRepository) MarkFailed(ctx context.Context, id string, message string) error {
	res := r.db.WithContext(ctx).
		Model(&domain.Upload{}).
		Where("id = ? AND status IN ?", id, []domain.UploadStatus{domain.UploadQueued, domain.UploadProcessing}).
		Updates(map[string]any{
			"status":        domain.UploadFailed,
			"error_message": message,
		})
	if res.Error != nil {
		return apperrors.DatabaseError(res.Error)
	}
	return nil
}

// ListByUser returns the user's uploads, newest first.
func (r *UploadRepository) ListByUser(ctx context.Context, userID uint, limit int) ([]domain.Upload, error) {
	if limit <= 0 {
		limit = 50
	}
	var uploads []domain.Upload
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&uploads).Error
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}
	return uploads, nil
}
