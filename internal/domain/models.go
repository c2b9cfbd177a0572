// Package domain defines the persisted entities for counseling sessions:
// upload jobs, voice records, per-record goals, clients, and transcript
// chunks with embeddings.
package domain

import (
	"time"

	"github.com/sesimlab/counselvoice/internal/transcript"
)

// UploadStatus tracks a transcription job through its lifecycle.
type UploadStatus string

const (
	UploadQueued     UploadStatus = "queued"
	UploadProcessing UploadStatus = "processing"
	UploadCompleted  UploadStatus = "completed"
	UploadFailed     UploadStatus = "failed"
)

// Terminal reports whether the status is final.
func (s UploadStatus) Terminal() bool {
	return s == UploadCompleted || s == UploadFailed
}

// Upload is the durable job-status ledger for one background transcription.
// Created as queued when the API accepts the request; a worker moves it to
// processing and then to exactly one terminal state. Transitions never go
// backward.
type Upload struct {
	ID            string       `gorm:"primaryKey;size:36" json:"id"`
	UserID        uint         `gorm:"index" json:"user_id"`
	ClientID      uint         `gorm:"index" json:"client_id"`
	SessionNumber *int         `json:"session_number,omitempty"`
	S3Key         string       `gorm:"size:512" json:"s3_key"`
	Vendor        string       `gorm:"size:32" json:"vendor"`
	LanguageCode  string       `gorm:"size:16" json:"language_code"`
	Status        UploadStatus `gorm:"size:16;index" json:"status"`
	ErrorMessage  string       `json:"error_message,omitempty"`
	VoiceRecordID *uint        `json:"voice_record_id,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// VoiceRecord is the persisted transcription result for one session.
// Immutable after creation except for title and speaker-label edits.
type VoiceRecord struct {
	ID             uint                 `gorm:"primaryKey" json:"id"`
	Title          string               `gorm:"size:255" json:"title"`
	UserID         uint                 `gorm:"index" json:"user_id"`
	ClientID       uint                 `gorm:"index" json:"client_id"`
	SessionNumber  *int                 `json:"session_number,omitempty"`
	S3Key          string               `gorm:"size:512" json:"s3_key"`
	TotalSpeakers  int                  `json:"total_speakers"`
	FullTranscript string               `json:"full_transcript"`
	Speakers       []transcript.Speaker `gorm:"serializer:json" json:"speakers"`
	Segments       []transcript.Segment `gorm:"serializer:json" json:"segments"`
	SegmentsMerged []transcript.Segment `gorm:"serializer:json" json:"segments_merged,omitempty"`
	Dialogue       string               `json:"dialogue"`
	LanguageCode   string               `gorm:"size:16" json:"language_code"`
	Duration       float64              `json:"duration"`
	CreatedAt      time.Time            `json:"created_at"`
	UpdatedAt      time.Time            `json:"updated_at"`
}

// VoiceRecordGoal holds next-session goals derived from a session with
// session_number > 1. One row per voice record.
type VoiceRecordGoal struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	VoiceRecordID uint      `gorm:"uniqueIndex" json:"voice_record_id"`
	ClientID      uint      `gorm:"index" json:"client_id"`
	SessionNumber int       `json:"session_number"`
	Goals         string    `json:"goals"`
	CreatedAt     time.Time `json:"created_at"`
}

// Client holds the counselee profile, including AI-derived first-session
// fields. The ai_* fields are write-once, gated by AIAnalysisCompleted.
type Client struct {
	ID                       uint      `gorm:"primaryKey" json:"id"`
	UserID                   uint      `gorm:"index" json:"user_id"`
	Name                     string    `gorm:"size:100" json:"name"`
	AIConsultationBackground string    `json:"ai_consultation_background,omitempty"`
	AIMainComplaint          string    `json:"ai_main_complaint,omitempty"`
	AICurrentSymptoms        string    `json:"ai_current_symptoms,omitempty"`
	AIAnalysisCompleted      bool      `json:"ai_analysis_completed"`
	CreatedAt                time.Time `json:"created_at"`
	UpdatedAt                time.Time `json:"updated_at"`
}

// TranscriptChunk is one embedded chunk of a first-session transcript, used
// for retrieval during clinical analysis.
type TranscriptChunk struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	VoiceRecordID uint      `gorm:"index" json:"voice_record_id"`
	ClientID      uint      `gorm:"index" json:"client_id"`
	SessionNumber int       `json:"session_number"`
	ChunkIndex    int       `json:"chunk_index"`
	Content       string    `json:"content"`
	Embedding     []float32 `gorm:"serializer:json" json:"-"`
	CreatedAt     time.Time `json:"created_at"`
}

// AllModels lists every entity for auto-migration at startup. The chunk
// table is excluded; it is created lazily on first index write.
func AllModels() []any {
	return []any{
		&Upload{},
		&VoiceRecord{},
		&VoiceRecordGoal{},
		&Client{},
	}
}
