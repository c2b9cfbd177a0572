package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/sesimlab/counselvoice/internal/apperrors"
	"github.com/sesimlab/counselvoice/internal/domain"
)

// GoalRepository persists next-session goals, one per voice record.
type GoalRepository struct {
	db *gorm.DB
}

func NewGoalRepository(db *gorm.DB) *GoalRepository {
	return &GoalRepository{db: db}
}

// ExistsForRecord reports whether a goal row already exists for the record.
func (r *GoalRepository) ExistsForRecord(ctx context.Context, voiceRecordID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.VoiceRecordGoal{}).
		Where("voice_record_id = ?", voiceRecordID).
		Count(&count).Error
	if err != nil {
		return false, apperrors.DatabaseError(err)
	}
	return count > 0, nil
}

// Create inserts a goal row. A duplicate for the same record is treated as
// already-done, keeping goal creation idempotent under races.
func (r *GoalRepository) Create(ctx context.Context, g *domain.VoiceRecordGoal) error {
	err := r.db.WithContext(ctx).Create(g).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil
		}
		return apperrors.DatabaseError(err)
	}
	return nil
}

// GetForRecord returns the goal row for a voice record, if any.
func (r *GoalRepository) GetForRecord(ctx context.Context, voiceRecordID uint) (*domain.VoiceRecordGoal, error) {
	var g domain.VoiceRecordGoal
	err := r.db.WithContext(ctx).First(&g, "voice_record_id = ?", voiceRecordID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}
	return &g, nil
}
