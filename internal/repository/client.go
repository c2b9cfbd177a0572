package repository

import (
	"context"
	"errors"
	"strconv"

	"gorm.io/gorm"

	"github.com/sesimlab/counselvoice/internal/apperrors"
	"github.com/sesimlab/counselvoice/internal/domain"
)

// ClientRepository persists counselee profiles.
type ClientRepository struct {
	db *gorm.DB
}

func NewClientRepository(db *gorm.DB) *ClientRepository {
	return &ClientRepository{db: db}
}

// Get returns the client with the given id.
func (r *ClientRepository) Get(ctx context.Context, id uint) (*domain.Client, error) {
	var c domain.Client
	err := r.db.WithContext(ctx).First(&c, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("client", strconv.FormatUint(uint64(id), 10))
	}
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}
	return &c, nil
}

// GetOwned returns the client only if it belongs to the given user.
func (r *ClientRepository) GetOwned(ctx context.Context, userID, id uint) (*domain.Client, error) {
	c, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.UserID != userID {
		return nil, apperrors.Forbidden("client belongs to another user")
	}
	return c, nil
}

// AIProfile carries the first-session analysis output.
type AIProfile struct {
	ConsultationBackground string
	MainComplaint          string
	CurrentSymptoms        string
}

// SetAIProfile writes the first-session profile fields and flips the
// completion flag. The conditional write keeps a second analysis run from
// overwriting an existing profile; it reports whether the write applied.
func (r *ClientRepository) SetAIProfile(ctx context.Context, clientID uint, p AIProfile) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&domain.Client{}).
		Where("id = ? AND ai_analysis_completed = ?", clientID, false).
		Updates(map[string]any{
			"ai_consultation_background": p.ConsultationBackground,
			"ai_main_complaint":          p.MainComplaint,
			"ai_current_symptoms":        p.CurrentSymptoms,
			"ai_analysis_completed":      true,
		})
	if res.Error != nil {
		return false, apperrors.DatabaseError(res.Error)
	}
	return res.RowsAffected > 0, nil
}
