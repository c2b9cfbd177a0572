package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"gorm.io/gorm"

	"github.com/sesimlab/counselvoice/internal/apperrors"
	"github.com/sesimlab/counselvoice/internal/domain"
)

// VoiceRecordRepository persists transcription results.
type VoiceRecordRepository struct {
	db *gorm.DB
}

func NewVoiceRecordRepository(db *gorm.DB) *VoiceRecordRepository {
	return &VoiceRecordRepository{db: db}
}

// Create inserts a new voice record.
func (r *VoiceRecordRepository) Create(ctx context.Context, rec *domain.VoiceRecord) error {
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		return apperrors.DatabaseError(err)
	}
	return nil
}

// Get returns the voice record with the given id, scoped to the owning user.
func (r *VoiceRecordRepository) Get(ctx context.Context, userID, id uint) (*domain.VoiceRecord, error) {
	var rec domain.VoiceRecord
	err := r.db.WithContext(ctx).First(&rec, "id = ? AND user_id = ?", id, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("voice record", strconv.FormatUint(uint64(id), 10))
	}
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}
	return &rec, nil
}

// ListByClient returns a client's records, newest session first.
func (r *VoiceRecordRepository) ListByClient(ctx context.Context, userID, clientID uint) ([]domain.VoiceRecord, error) {
	var recs []domain.VoiceRecord
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND client_id = ?", userID, clientID).
		Order("created_at DESC").
		Find(&recs).Error
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}
	return recs, nil
}

// UpdateTitle renames a record.
func (r *VoiceRecordRepository) UpdateTitle(ctx context.Context, userID, id uint, title string) error {
	res := r.db.WithContext(ctx).
		Model(&domain.VoiceRecord{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("title", title)
	if res.Error != nil {
		return apperrors.DatabaseError(res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.NotFound("voice record", strconv.FormatUint(uint64(id), 10))
	}
	return nil
}

// RenameSpeakers rewrites speaker ids across the record's segments, merged
// segments, speaker aggregates, and dialogue. renames maps old id to new id.
func (r *VoiceRecordRepository) RenameSpeakers(ctx context.Context, userID, id uint, renames map[string]string) error {
	if len(renames) == 0 {
		return nil
	}
	rec, err := r.Get(ctx, userID, id)
	if err != nil {
		return err
	}

	apply := func(old string) string {
		if neu, ok := renames[old]; ok && neu != "" {
			return neu
		}
		return old
	}

	for i := range rec.Segments {
		rec.Segments[i].SpeakerID = apply(rec.Segments[i].SpeakerID)
	}
	for i := range rec.SegmentsMerged {
		rec.SegmentsMerged[i].SpeakerID = apply(rec.SegmentsMerged[i].SpeakerID)
	}
	for i := range rec.Speakers {
		rec.Speakers[i].SpeakerID = apply(rec.Speakers[i].SpeakerID)
	}

	source := rec.SegmentsMerged
	if len(source) == 0 {
		source = rec.Segments
	}
	dialogue := ""
	for i, seg := range source {
		if i > 0 {
			dialogue += "\n"
		}
		dialogue += fmt.Sprintf("%s: %s", seg.SpeakerID, seg.Text)
	}
	rec.Dialogue = dialogue

	// Struct-based update so the JSON serializer columns round-trip.
	err = r.db.WithContext(ctx).
		Model(rec).
		Select("segments", "segments_merged", "speakers", "dialogue").
		Updates(rec).Error
	if err != nil {
		return apperrors.DatabaseError(err)
	}
	return nil
}

// Delete removes a record and its derived goal and chunk rows.
func (r *VoiceRecordRepository) Delete(ctx context.Context, userID, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND user_id = ?", id, userID).Delete(&domain.VoiceRecord{})
		if res.Error != nil {
			return apperrors.DatabaseError(res.Error)
		}
		if res.RowsAffected == 0 {
			return apperrors.NotFound("voice record", strconv.FormatUint(uint64(id), 10))
		}
		if err := tx.Where("voice_record_id = ?", id).Delete(&domain.VoiceRecordGoal{}).Error; err != nil {
			return apperrors.DatabaseError(err)
		}
		if tx.Migrator().HasTable(&domain.TranscriptChunk{}) {
			if err := tx.Where("voice_record_id = ?", id).Delete(&domain.TranscriptChunk{}).Error; err != nil {
				return apperrors.DatabaseError(err)
			}
		}
		return nil
	})
}
