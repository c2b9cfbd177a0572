package server

import (
	"fmt"
	"net/http"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sesimlab/counselvoice/internal/apperrors"
	"github.com/sesimlab/counselvoice/internal/config"
	"github.com/sesimlab/counselvoice/internal/domain"
	"github.com/sesimlab/counselvoice/internal/job"
	"github.com/sesimlab/counselvoice/internal/logger"
	"github.com/sesimlab/counselvoice/internal/repository"
	"github.com/sesimlab/counselvoice/internal/storage"
	"github.com/sesimlab/counselvoice/internal/stt"
)

// Handlers owns the HTTP API surface.
type Handlers struct {
	cfg     *config.Config
	store   storage.Storage
	vendors *stt.Registry
	queue   *job.Queue
	uploads *repository.UploadRepository
	records *repository.VoiceRecordRepository
	clients *repository.ClientRepository
	goals   *repository.GoalRepository
	log     *logger.Logger
}

func NewHandlers(
	cfg *config.Config,
	store storage.Storage,
	vendors *stt.Registry,
	queue *job.Queue,
	uploads *repository.UploadRepository,
	records *repository.VoiceRecordRepository,
	clients *repository.ClientRepository,
	goals *repository.GoalRepository,
	log *logger.Logger,
) *Handlers {
	return &Handlers{
		cfg:     cfg,
		store:   store,
		vendors: vendors,
		queue:   queue,
		uploads: uploads,
		records: records,
		clients: clients,
		goals:   goals,
		log:     log.WithComponent("handlers"),
	}
}

// Register mounts all routes. Everything under /voice requires a valid
// bearer token.
func (h *Handlers) Register(engine *gin.Engine) {
	engine.GET("/health", h.Health)

	voice := engine.Group("/voice", Auth(h.cfg.Auth.JWTSecret))
	{
		voice.POST("/generate-upload-url", h.GenerateUploadURL)
		voice.POST("/process-s3-file/:vendor", h.ProcessS3File)
		voice.GET("/uploads", h.ListUploads)
		voice.GET("/uploads/:id", h.GetUpload)
		voice.GET("/records", h.ListRecords)
		voice.GET("/records/:id", h.GetRecord)
		voice.PATCH("/records/:id", h.UpdateRecord)
		voice.DELETE("/records/:id", h.DeleteRecord)
		voice.GET("/records/:id/goals", h.GetRecordGoals)
	}
}

// Health reports service liveness.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "up",
		"service": h.cfg.Service.Name,
		"version": h.cfg.Service.Version,
	})
}

type uploadURLRequest struct {
	Filename    string `json:"filename" binding:"required"`
	ContentType string `json:"content_type" binding:"required"`
}

type uploadURLResponse struct {
	UploadURL string `json:"upload_url"`
	S3Key     string `json:"s3_key"`
}

// GenerateUploadURL hands the client a presigned PUT URL so the audio file
// goes straight to object storage without passing through this server.
func (h *Handlers) GenerateUploadURL(c *gin.Context) {
	var req uploadURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithError(c, apperrors.Validation("filename and content_type are required").WithCause(err))
		return
	}

	ext := strings.ToLower(filepath.Ext(req.Filename))
	key := path.Join(h.cfg.Storage.UploadPrefix, uuid.NewString()+ext)

	url, err := h.store.PresignPut(c.Request.Context(), key, req.ContentType, h.cfg.Storage.PresignTTL)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	RespondOK(c, uploadURLResponse{UploadURL: url, S3Key: key})
}

type processRequest struct {
	S3Key         string `json:"s3_key" binding:"required"`
	ClientID      uint   `json:"client_id" binding:"required"`
	SessionNumber *int   `json:"session_number"`
	LanguageCode  string `json:"language_code"`
}

type processResponse struct {
	Status string `json:"status"`
	TaskID string `json:"task_id"`
}

// ProcessS3File accepts an already-uploaded audio file for background
// transcription with the named vendor. It validates everything that can fail
// synchronously (vendor, ownership, object existence), creates the queued
// ledger row, and dispatches the job. The transcription itself is tracked
// via GET /voice/uploads/:id.
func (h *Handlers) ProcessS3File(c *gin.Context) {
	vendor := c.Param("vendor")
	if err := h.vendorReady(vendor); err != nil {
		RespondWithError(c, err)
		return
	}

	var req processRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithError(c, apperrors.Validation("s3_key and client_id are required").WithCause(err))
		return
	}

	userID := UserID(c)
	if _, err := h.clients.GetOwned(c.Request.Context(), userID, req.ClientID); err != nil {
		RespondWithError(c, err)
		return
	}

	exists, err := h.store.Exists(c.Request.Context(), req.S3Key)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	if !exists {
		RespondWithError(c, apperrors.NotFound("audio file", req.S3Key))
		return
	}

	language := req.LanguageCode
	if language == "" {
		language = "ko"
	}
	upload := &domain.Upload{
		UserID:        userID,
		ClientID:      req.ClientID,
		SessionNumber: req.SessionNumber,
		S3Key:         req.S3Key,
		Vendor:        vendor,
		LanguageCode:  language,
	}
	if err := h.uploads.Create(c.Request.Context(), upload); err != nil {
		RespondWithError(c, err)
		return
	}

	if err := h.queue.Enqueue(upload.ID); err != nil {
		// The row would otherwise sit queued forever with no worker coming.
		if markErr := h.uploads.MarkFailed(c.Request.Context(), upload.ID, "queue full"); markErr != nil {
			h.log.Error("could not fail unqueued upload", logger.Fields(
				logger.FieldUploadID, upload.ID, logger.FieldError, markErr.Error()))
		}
		RespondWithError(c, err)
		return
	}

	h.log.Info("transcription queued", logger.Fields(
		logger.FieldUploadID, upload.ID,
		logger.FieldVendor, vendor,
		logger.FieldClientID, req.ClientID))
	RespondAccepted(c, processResponse{Status: string(domain.UploadQueued), TaskID: upload.ID})
}

// vendorReady distinguishes an unknown vendor name from a known one that is
// not configured.
func (h *Handlers) vendorReady(vendor string) error {
	for _, name := range stt.VendorNames() {
		if name == vendor {
			if _, ok := h.vendors.Get(vendor); !ok {
				return apperrors.Configuration(fmt.Sprintf("stt vendor %q", vendor))
			}
			return nil
		}
	}
	return apperrors.Validation(fmt.Sprintf("unknown vendor %q, expected one of: %s",
		vendor, strings.Join(stt.VendorNames(), ", ")))
}

// GetUpload returns the ledger row for polling. Uploads are only visible to
// the user who created them.
func (h *Handlers) GetUpload(c *gin.Context) {
	upload, err := h.uploads.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondWithError(c, err)
		return
	}
	if upload.UserID != UserID(c) {
		RespondWithError(c, apperrors.NotFound("upload", upload.ID))
		return
	}
	RespondOK(c, upload)
}

// ListUploads returns the user's recent uploads, newest first.
func (h *Handlers) ListUploads(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	uploads, err := h.uploads.ListByUser(c.Request.Context(), UserID(c), limit)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	RespondOK(c, uploads)
}

// ListRecords returns the user's voice records for one client.
func (h *Handlers) ListRecords(c *gin.Context) {
	clientID, err := strconv.ParseUint(c.Query("client_id"), 10, 32)
	if err != nil {
		RespondWithError(c, apperrors.Validation("client_id query parameter is required"))
		return
	}
	records, err := h.records.ListByClient(c.Request.Context(), UserID(c), uint(clientID))
	if err != nil {
		RespondWithError(c, err)
		return
	}
	RespondOK(c, records)
}

// GetRecord returns one voice record.
func (h *Handlers) GetRecord(c *gin.Context) {
	id, err := recordID(c)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	rec, err := h.records.Get(c.Request.Context(), UserID(c), id)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	RespondOK(c, rec)
}

type updateRecordRequest struct {
	Title          *string           `json:"title"`
	SpeakerRenames map[string]string `json:"speaker_renames"`
}

// UpdateRecord applies title and speaker-label edits. Speaker renames rewrite
// every stored view of the transcript so they stay consistent.
func (h *Handlers) UpdateRecord(c *gin.Context) {
	id, err := recordID(c)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	var req updateRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithError(c, apperrors.Validation("invalid update payload").WithCause(err))
		return
	}
	if req.Title == nil && len(req.SpeakerRenames) == 0 {
		RespondWithError(c, apperrors.Validation("nothing to update"))
		return
	}

	userID := UserID(c)
	if req.Title != nil {
		if strings.TrimSpace(*req.Title) == "" {
			RespondWithError(c, apperrors.Validation("title must not be empty"))
			return
		}
		if err := h.records.UpdateTitle(c.Request.Context(), userID, id, *req.Title); err != nil {
			RespondWithError(c, err)
			return
		}
	}
	if len(req.SpeakerRenames) > 0 {
		if err := h.records.RenameSpeakers(c.Request.Context(), userID, id, req.SpeakerRenames); err != nil {
			RespondWithError(c, err)
			return
		}
	}

	rec, err := h.records.Get(c.Request.Context(), userID, id)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	RespondOK(c, rec)
}

// DeleteRecord removes a voice record with its goals and chunks.
func (h *Handlers) DeleteRecord(c *gin.Context) {
	id, err := recordID(c)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	if err := h.records.Delete(c.Request.Context(), UserID(c), id); err != nil {
		RespondWithError(c, err)
		return
	}
	RespondNoContent(c)
}

// GetRecordGoals returns the next-session goals derived from a record, or
// 404 when none were generated.
func (h *Handlers) GetRecordGoals(c *gin.Context) {
	id, err := recordID(c)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	// Ownership check rides on the record lookup.
	if _, err := h.records.Get(c.Request.Context(), UserID(c), id); err != nil {
		RespondWithError(c, err)
		return
	}
	goal, err := h.goals.GetForRecord(c.Request.Context(), id)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	if goal == nil {
		RespondWithError(c, apperrors.NotFound("goals", strconv.FormatUint(uint64(id), 10)))
		return
	}
	RespondOK(c, goal)
}

func recordID(c *gin.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return 0, apperrors.Validation("record id must be numeric")
	}
	return uint(id), nil
}
