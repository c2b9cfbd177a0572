// Package job runs background transcription work: a bounded worker pool
// draining a task queue, and the processor that drives one upload from
// queued audio to a persisted voice record.
package job

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.opentelemetry.io/otel/attribute"

	"github.com/sesimlab/counselvoice/internal/analysis"
	"github.com/sesimlab/counselvoice/internal/apperrors"
	"github.com/sesimlab/counselvoice/internal/domain"
	"github.com/sesimlab/counselvoice/internal/logger"
	"github.com/sesimlab/counselvoice/internal/observability"
	"github.com/sesimlab/counselvoice/internal/repository"
	"github.com/sesimlab/counselvoice/internal/storage"
	"github.com/sesimlab/counselvoice/internal/stt"
	"github.com/sesimlab/counselvoice/internal/transcript"
)

// Processor turns one queued upload into a voice record. The upload ledger
// row is the only externally visible progress indicator.
type Processor struct {
	uploads  *repository.UploadRepository
	records  *repository.VoiceRecordRepository
	store    storage.Storage
	vendors  *stt.Registry
	enricher *analysis.Enricher
	llm      CounselorIdentifier
	log      *logger.Logger
}

// CounselorIdentifier is the narrow slice of the analysis layer the processor
// needs for speaker labeling.
type CounselorIdentifier interface {
	IdentifyCounselor(ctx context.Context, segments []transcript.Segment) string
}

func NewProcessor(
	uploads *repository.UploadRepository,
	records *repository.VoiceRecordRepository,
	store storage.Storage,
	vendors *stt.Registry,
	identifier CounselorIdentifier,
	enricher *analysis.Enricher,
	log *logger.Logger,
) *Processor {
	return &Processor{
		uploads:  uploads,
		records:  records,
		store:    store,
		vendors:  vendors,
		llm:      identifier,
		enricher: enricher,
		log:      log.WithComponent("processor"),
	}
}

// Process drives the full pipeline for one upload id. It moves the ledger
// row queued -> processing -> completed or failed; every failure path lands
// in MarkFailed so no upload is left in processing. A panic in any stage is
// recovered and recorded as a failure.
func (p *Processor) Process(ctx context.Context, uploadID string) {
	ctx, span := observability.StartSpan(ctx, observability.SpanProcessUpload)
	defer span.End()
	span.SetAttributes(attribute.String(observability.AttrUploadID, uploadID))

	log := p.log.WithFields(logger.Fields(logger.FieldUploadID, uploadID))

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic: %v", r)
			observability.RecordError(ctx, err)
			log.Error("pipeline panicked", logger.Fields(logger.FieldError, err.Error()))
			p.fail(ctx, uploadID, err)
		}
	}()

	upload, err := p.uploads.Get(ctx, uploadID)
	if err != nil {
		log.Error("upload lookup failed", logger.Fields(logger.FieldError, err.Error()))
		return
	}
	if upload.Status.Terminal() {
		log.Warn("upload already terminal, skipping", logger.Fields("status", upload.Status))
		return
	}
	span.SetAttributes(attribute.String(observability.AttrVendor, upload.Vendor))
	log = log.WithFields(logger.Fields(logger.FieldVendor, upload.Vendor))

	if err := p.uploads.MarkProcessing(ctx, uploadID); err != nil {
		log.Error("could not claim upload", logger.Fields(logger.FieldError, err.Error()))
		return
	}

	result, err := p.transcribe(ctx, upload)
	if err != nil {
		observability.RecordError(ctx, err)
		log.Error("transcription failed", logger.Fields(logger.FieldError, err.Error()))
		p.fail(ctx, uploadID, err)
		return
	}

	rec := p.assemble(ctx, upload, result)
	if err := p.records.Create(ctx, rec); err != nil {
		observability.RecordError(ctx, err)
		log.Error("voice record create failed", logger.Fields(logger.FieldError, err.Error()))
		p.fail(ctx, uploadID, err)
		return
	}
	span.SetAttributes(attribute.Int(observability.AttrRecordID, int(rec.ID)))

	if err := p.uploads.MarkCompleted(ctx, uploadID, rec.ID); err != nil {
		log.Error("could not mark upload completed", logger.Fields(logger.FieldError, err.Error()))
		return
	}
	log.Info("transcription completed", logger.Fields(
		logger.FieldRecordID, rec.ID,
		"segments", len(rec.Segments),
		"speakers", rec.TotalSpeakers))

	// Enrichment is best effort. The record and ledger are already final;
	// a failure here is logged and swallowed.
	ctx, enrichSpan := observability.StartSpan(ctx, observability.SpanEnrich)
	if err := p.enricher.Enrich(ctx, rec); err != nil {
		observability.RecordError(ctx, err)
		log.Warn("enrichment failed", logger.Fields(logger.FieldError, err.Error()))
	}
	enrichSpan.End()
}

// transcribe downloads the audio, runs the vendor adapter, and returns the
// normalized result.
func (p *Processor) transcribe(ctx context.Context, upload *domain.Upload) (*transcript.Result, error) {
	vendor, ok := p.vendors.Get(upload.Vendor)
	if !ok {
		return nil, apperrors.Configuration(fmt.Sprintf("stt vendor %q", upload.Vendor))
	}

	audioPath, cleanup, err := p.download(ctx, upload.S3Key)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	ctx, span := observability.StartSpan(ctx, observability.SpanTranscribe)
	defer span.End()
	return vendor.Transcribe(ctx, stt.Request{
		AudioPath:    audioPath,
		LanguageCode: upload.LanguageCode,
	})
}

// download copies the object to a temp file and returns its path with a
// cleanup func.
func (p *Processor) download(ctx context.Context, key string) (string, func(), error) {
	reader, err := p.store.Download(ctx, key)
	if err != nil {
		return "", nil, err
	}
	defer reader.Close()

	f, err := os.CreateTemp("", "counselvoice-*"+filepath.Ext(key))
	if err != nil {
		return "", nil, apperrors.Internal(err)
	}
	cleanup := func() { os.Remove(f.Name()) }

	if _, err := io.Copy(f, reader); err != nil {
		f.Close()
		cleanup()
		return "", nil, apperrors.Internal(err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, apperrors.Internal(err)
	}
	return f.Name(), cleanup, nil
}

// assemble runs the post-normalization pipeline in its canonical order:
// identify the counselor, relabel speakers, mask sensitive data, merge
// segments, and format the dialogue.
func (p *Processor) assemble(ctx context.Context, upload *domain.Upload, result *transcript.Result) *domain.VoiceRecord {
	ctx, span := observability.StartSpan(ctx, observability.SpanNormalize)
	defer span.End()

	counselorID := p.llm.IdentifyCounselor(ctx, result.Segments)
	labels := transcript.BuildSpeakerLabelMap(transcript.DistinctSpeakerIDs(result.Segments), counselorID)
	labeled := labels != nil
	if labeled {
		transcript.ApplyLabels(result, labels)
	}

	transcript.MaskResult(result)
	merged := transcript.MergeSegments(result.Segments, transcript.DefaultMergeGap)
	dialogue := transcript.FormatDialogue(merged, labeled)

	span.SetAttributes(
		attribute.Int(observability.AttrSegments, len(result.Segments)),
		attribute.Int(observability.AttrSpeakers, result.TotalSpeakers()),
	)

	return &domain.VoiceRecord{
		Title:          defaultTitle(upload),
		UserID:         upload.UserID,
		ClientID:       upload.ClientID,
		SessionNumber:  upload.SessionNumber,
		S3Key:          upload.S3Key,
		TotalSpeakers:  result.TotalSpeakers(),
		FullTranscript: result.FullTranscript,
		Speakers:       result.Speakers,
		Segments:       result.Segments,
		SegmentsMerged: merged,
		Dialogue:       dialogue,
		LanguageCode:   result.Language,
		Duration:       result.Duration,
	}
}

func defaultTitle(upload *domain.Upload) string {
	if upload.SessionNumber != nil {
		return fmt.Sprintf("%d회기 상담", *upload.SessionNumber)
	}
	return filepath.Base(upload.S3Key)
}

// fail records a terminal failure on the ledger. The failure context comes
// from err; marking itself failing is only loggable.
func (p *Processor) fail(ctx context.Context, uploadID string, cause error) {
	message := cause.Error()
	if appErr, ok := apperrors.AsAppError(cause); ok {
		message = appErr.Message
	}
	if err := p.uploads.MarkFailed(ctx, uploadID, message); err != nil {
		p.log.Error("could not mark upload failed", logger.Fields(
			logger.FieldUploadID, uploadID, logger.FieldError, err.Error()))
	}
}
