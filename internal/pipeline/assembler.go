package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/boothworks/leadcore/internal/bus"
	"github.com/boothworks/leadcore/internal/extract"
	"github.com/boothworks/leadcore/internal/leadstore"
	"github.com/boothworks/leadcore/internal/score"
	"github.com/boothworks/leadcore/internal/stage"
	"github.com/boothworks/leadcore/internal/transcribe"
)

// ConfidenceThreshold gates the image pipeline: extractions scoring below
// it are routed to the remarks fallback instead of being trusted as-is.
const ConfidenceThreshold = 0.6

// AudioCapture is an inbound voice-note request.
type AudioCapture struct {
	Payload      []byte
	BoothID      int64
	OriginalName string
}

// ImageCapture is an inbound business-card request.
type ImageCapture struct {
	Payload      []byte
	BoothID      int64
	OriginalName string
	ContentType  string
}

// Stager stages raw audio for capability consumption.
type Stager interface {
	StageForTranscription(payload []byte, originalName string) (stage.Handle, error)
	Release(stage.Handle)
}

// Archiver stores raw images durably and can compensate a failed run.
type Archiver interface {
	Put(ctx context.Context, payload []byte, filename, mimeType string) (stage.StoredObject, error)
	Delete(ctx context.Context, key string) error
}

// LeadStore persists assembled leads.
type LeadStore interface {
	CreateLead(ctx context.Context, lead leadstore.Lead) (leadstore.Lead, error)
}

// Publisher announces persisted leads on the bus. May be nil.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Assembler sequences staging, extraction, scoring and persistence. It is
// the only component holding business policy; every collaborator is
// injected.
type Assembler struct {
	stager      Stager
	archive     Archiver
	transcriber transcribe.Transcriber
	extractor   extract.Extractor
	score       score.Func
	store       LeadStore
	publisher   Publisher
	log         *slog.Logger
	runs        metric.Int64Counter
}

func New(stager Stager, archive Archiver, transcriber transcribe.Transcriber,
	extractor extract.Extractor, scoreFn score.Func, store LeadStore,
	publisher Publisher, logger *slog.Logger) *Assembler {

	if scoreFn == nil {
		scoreFn = score.Heuristic
	}
	runs, err := otel.Meter("leadcore/pipeline").Int64Counter("leadcore.pipeline.runs",
		metric.WithDescription("Pipeline runs by capture type and outcome"))
	if err != nil {
		logger.Warn("failed to register pipeline counter", slog.String("error", err.Error()))
	}
	return &Assembler{
		stager:      stager,
		archive:     archive,
		transcriber: transcriber,
		extractor:   extractor,
		score:       scoreFn,
		store:       store,
		publisher:   publisher,
		log:         logger.With(slog.String("component", "pipeline")),
		runs:        runs,
	}
}

// ProcessAudioToLead runs the audio pipeline: stage to a temp file,
// transcribe, extract structured fields, persist. The temp file is released
// on every exit path.
func (a *Assembler) ProcessAudioToLead(ctx context.Context, capture AudioCapture) (leadstore.Lead, error) {
	log := a.captureLogger(capture.BoothID, leadstore.TypeAudio)

	if err := validateCapture(capture.Payload, capture.BoothID); err != nil {
		return leadstore.Lead{}, err
	}

	handle, err := a.stager.StageForTranscription(capture.Payload, capture.OriginalName)
	if err != nil {
		a.count(ctx, leadstore.TypeAudio, "failed")
		return leadstore.Lead{}, stageError(StageStaging, err)
	}
	defer a.stager.Release(handle)

	transcript, err := a.transcriber.Transcribe(ctx, handle.Path())
	if err != nil {
		a.count(ctx, leadstore.TypeAudio, "failed")
		return leadstore.Lead{}, stageError(StageTranscription, err)
	}
	log.Debug("transcription complete", slog.Int("transcript_len", len(transcript)))

	res, err := a.extractor.FromTranscript(ctx, transcript)
	if err != nil {
		a.count(ctx, leadstore.TypeAudio, "failed")
		return leadstore.Lead{}, stageError(StageExtraction, err)
	}

	notes := res.Notes
	if notes == nil || strings.TrimSpace(*notes) == "" {
		notes = &transcript
	}

	lead, err := a.store.CreateLead(ctx, leadstore.Lead{
		BoothID: capture.BoothID,
		Name:    res.Name,
		Email:   res.Email,
		Phone:   res.Phone,
		Company: res.Company,
		Notes:   notes,
		Source:  capture.OriginalName,
		Type:    leadstore.TypeAudio,
	})
	if err != nil {
		a.count(ctx, leadstore.TypeAudio, "failed")
		return leadstore.Lead{}, stageError(StagePersistence, err)
	}

	log.Info("audio lead persisted", slog.Int64("lead_id", lead.ID))
	a.count(ctx, leadstore.TypeAudio, "accepted")
	a.publishLeadCreated(lead)
	return lead, nil
}

// ProcessImageToLead runs the image pipeline: archive durably first (no
// extraction without provenance), extract, score, apply the fallback
// decision, persist. On persistence failure the uploaded object is removed
// best-effort.
func (a *Assembler) ProcessImageToLead(ctx context.Context, capture ImageCapture) (leadstore.Lead, error) {
	log := a.captureLogger(capture.BoothID, leadstore.TypeImage)

	if err := validateCapture(capture.Payload, capture.BoothID); err != nil {
		return leadstore.Lead{}, err
	}

	contentType := capture.ContentType
	if contentType == "" {
		contentType = "image/jpeg"
	}

	if a.archive == nil {
		a.count(ctx, leadstore.TypeImage, "failed")
		return leadstore.Lead{}, stageError(StageStaging, errors.New("no object store configured"))
	}
	obj, err := a.archive.Put(ctx, capture.Payload, capture.OriginalName, contentType)
	if err != nil {
		a.count(ctx, leadstore.TypeImage, "failed")
		return leadstore.Lead{}, stageError(StageStaging, err)
	}

	res, err := a.extractor.FromImage(ctx, capture.Payload)
	if err != nil {
		a.count(ctx, leadstore.TypeImage, "failed")
		return leadstore.Lead{}, stageError(StageExtraction, err)
	}

	confidence := a.score(res)
	var remarks *string
	outcome := "accepted"
	if confidence < ConfidenceThreshold {
		outcome = "fallback"
		joined := fallbackRemarks(res)
		remarks = &joined
		log.Warn("low extraction confidence, storing raw evidence",
			slog.Float64("confidence", confidence))
	}

	lead, err := a.store.CreateLead(ctx, leadstore.Lead{
		BoothID:    capture.BoothID,
		Name:       res.Name,
		Email:      res.Email,
		Phone:      res.Phone,
		Company:    res.Company,
		Interest:   res.Interest,
		Source:     obj.URL,
		Type:       leadstore.TypeImage,
		Confidence: &confidence,
		Remarks:    remarks,
	})
	if err != nil {
		a.count(ctx, leadstore.TypeImage, "failed")
		if delErr := a.archive.Delete(ctx, obj.Key); delErr != nil {
			log.Warn("failed to remove orphaned capture object",
				slog.String("key", obj.Key), slog.String("error", delErr.Error()))
		}
		return leadstore.Lead{}, stageError(StagePersistence, err)
	}

	log.Info("image lead persisted",
		slog.Int64("lead_id", lead.ID),
		slog.Float64("confidence", confidence),
		slog.Bool("fallback", remarks != nil))
	a.count(ctx, leadstore.TypeImage, outcome)
	a.publishLeadCreated(lead)
	return lead, nil
}

func validateCapture(payload []byte, boothID int64) error {
	if len(payload) == 0 {
		return fmt.Errorf("%w: empty payload", ErrInvalidCapture)
	}
	if boothID <= 0 {
		return fmt.Errorf("%w: booth id %d", ErrInvalidCapture, boothID)
	}
	return nil
}

// fallbackRemarks concatenates every non-empty extracted field as a labeled
// segment, ocrText first, so no information is silently dropped.
func fallbackRemarks(res extract.Result) string {
	var parts []string
	add := func(label string, value *string) {
		if value != nil && strings.TrimSpace(*value) != "" {
			parts = append(parts, label+*value)
		}
	}
	add("OCR Text: ", res.OCRText)
	add("Name (low confidence): ", res.Name)
	add("Email (low confidence): ", res.Email)
	add("Phone (low confidence): ", res.Phone)
	add("Company (low confidence): ", res.Company)
	add("Interest (low confidence): ", res.Interest)
	return strings.Join(parts, " | ")
}

func (a *Assembler) captureLogger(boothID int64, captureType string) *slog.Logger {
	return a.log.With(
		slog.String("capture_id", uuid.NewString()),
		slog.Int64("booth_id", boothID),
		slog.String("type", captureType))
}

func (a *Assembler) count(ctx context.Context, captureType, outcome string) {
	if a.runs == nil {
		return
	}
	a.runs.Add(ctx, 1, metric.WithAttributes(
		attribute.String("type", captureType),
		attribute.String("outcome", outcome)))
}

type leadCreatedEvent struct {
	LeadID     int64     `json:"lead_id"`
	BoothID    int64     `json:"booth_id"`
	Type       string    `json:"type"`
	Source     string    `json:"source"`
	Confidence *float64  `json:"confidence,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func (a *Assembler) publishLeadCreated(lead leadstore.Lead) {
	if a.publisher == nil {
		return
	}
	data, err := json.Marshal(leadCreatedEvent{
		LeadID:     lead.ID,
		BoothID:    lead.BoothID,
		Type:       lead.Type,
		Source:     lead.Source,
		Confidence: lead.Confidence,
		CreatedAt:  lead.CreatedAt,
	})
	if err != nil {
		a.log.Warn("failed to marshal lead event", slog.String("error", err.Error()))
		return
	}
	if err := a.publisher.Publish(bus.SubjectLeadCreated, data); err != nil {
		a.log.Warn("failed to publish lead event", slog.String("error", err.Error()))
	}
}
