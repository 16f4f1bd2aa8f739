// Package processor executes queued runs end to end: the generation
// workflow, text preprocessing, speech synthesis and artifact upload.
package processor

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fablecast/fablecast/internal/config"
	"github.com/fablecast/fablecast/internal/database"
	"github.com/fablecast/fablecast/internal/kafka"
	"github.com/fablecast/fablecast/internal/models"
	"github.com/fablecast/fablecast/internal/text"
	"github.com/fablecast/fablecast/internal/tts"
	"github.com/fablecast/fablecast/internal/workflow"
)

// Pipeline stages outside the generation workflow, used in progress events.
const (
	StageTTS    = "tts"
	StageUpload = "upload"
)

// runStore is the subset of run DB operations the processor needs.
type runStore interface {
	GetByID(ctx context.Context, runID uuid.UUID) (*models.Run, error)
	MarkRunning(ctx context.Context, runID uuid.UUID) error
	MarkSucceeded(ctx context.Context, runID uuid.UUID, outcome database.RunOutcome) error
	MarkRejected(ctx context.Context, runID uuid.UUID, outcome database.RunOutcome) error
	MarkFailed(ctx context.Context, runID uuid.UUID, errorCode, errorMessage string) error
}

// speechSynthesizer voices a whole preprocessed book.
type speechSynthesizer interface {
	SynthesizeText(ctx context.Context, book, narratorVoice string, dialogueVoices []string, progress tts.Progress) ([]byte, error)
}

// objectStore uploads run artifacts.
type objectStore interface {
	Upload(ctx context.Context, key string, data io.Reader, contentType string, contentLength int64) error
}

// EventSink receives run progress events. Both the in-process hub and the
// Kafka event publisher satisfy it. May be nil to disable progress events.
type EventSink interface {
	Publish(runID uuid.UUID, ev workflow.Event)
	Observer(runID uuid.UUID) workflow.Observer
}

// RunProcessor handles the run processing pipeline
type RunProcessor struct {
	runs      runStore
	planner   workflow.Planner
	gen1      workflow.Generator
	gen2      workflow.Generator
	evaluator workflow.Evaluator
	events    EventSink
	speech    speechSynthesizer
	voices    tts.VoiceMap
	store     objectStore
	config    *config.Config
}

// NewRunProcessor creates a new run processor
func NewRunProcessor(
	db *database.DB,
	planner workflow.Planner,
	gen1, gen2 workflow.Generator,
	evaluator workflow.Evaluator,
	events EventSink,
	speech speechSynthesizer,
	voices tts.VoiceMap,
	store objectStore,
	cfg *config.Config,
) *RunProcessor {
	return &RunProcessor{
		runs:      database.NewRunRepository(db),
		planner:   planner,
		gen1:      gen1,
		gen2:      gen2,
		evaluator: evaluator,
		events:    events,
		speech:    speech,
		voices:    voices,
		store:     store,
		config:    cfg,
	}
}

// HandleMessage implements the Kafka consumer handler.
func (p *RunProcessor) HandleMessage(ctx context.Context, msg *kafka.RunMessage) error {
	return p.ProcessRun(ctx, msg.RunID)
}

// ProcessRun processes a run end-to-end
func (p *RunProcessor) ProcessRun(ctx context.Context, runID uuid.UUID) error {
	log.Info().Str("run_id", runID.String()).Msg("Starting run processing")

	run, err := p.runs.GetByID(ctx, runID)
	if err != nil {
		return fmt.Errorf("failed to get run: %w", err)
	}

	// Redelivered messages for finished runs are no-ops.
	if run.Status == "succeeded" || run.Status == "rejected" || run.Status == "failed" {
		log.Warn().
			Str("run_id", runID.String()).
			Str("status", run.Status).
			Msg("Run already processed")
		return nil
	}

	if err := p.runs.MarkRunning(ctx, runID); err != nil {
		log.Error().Err(err).Msg("Failed to update run status to running")
	}

	if err := p.processRunPipeline(ctx, run); err != nil {
		log.Error().
			Err(err).
			Str("run_id", runID.String()).
			Msg("Run processing failed")

		if dbErr := p.runs.MarkFailed(ctx, runID, "processing_error", err.Error()); dbErr != nil {
			log.Error().Err(dbErr).Msg("Failed to update run status to failed")
		}
		return err
	}

	return nil
}

// processRunPipeline executes the generation workflow and, for accepted
// content, the synthesis and upload stages.
func (p *RunProcessor) processRunPipeline(ctx context.Context, run *models.Run) error {
	wf := workflow.New(p.planner, p.gen1, p.gen2, p.evaluator, p.observer(run.ID))

	state, err := wf.Run(ctx, workflow.Request{
		Topic:            run.Topic,
		Language:         run.Language,
		Size:             run.Size,
		QualityThreshold: run.QualityThreshold,
		MaxIterations:    run.MaxIterations,
	})
	if err != nil {
		return err
	}

	outcome := database.RunOutcome{
		Iterations: state.IterationCount,
		Feedback:   state.FeedbackHistory,
	}
	if state.Evaluation != nil {
		score := state.Evaluation.OverallScore
		outcome.OverallScore = &score
	}

	if !state.Accepted() {
		log.Warn().
			Str("run_id", run.ID.String()).
			Int("iterations", state.IterationCount).
			Msg("Run rejected by evaluator")
		return p.runs.MarkRejected(ctx, run.ID, outcome)
	}

	book := text.PreprocessFullText(state.FormattedText)

	textKey := fmt.Sprintf("runs/%s/audiobook.txt", run.ID)
	if err := p.store.Upload(ctx, textKey, bytes.NewReader([]byte(book)),
		"text/plain; charset=utf-8", int64(len(book))); err != nil {
		return fmt.Errorf("text upload failed: %w", err)
	}
	outcome.TextKey = &textKey

	audioKey, err := p.synthesize(ctx, run, book)
	if err != nil {
		return err
	}
	outcome.AudioKey = audioKey

	if err := p.runs.MarkSucceeded(ctx, run.ID, outcome); err != nil {
		return fmt.Errorf("failed to record run outcome: %w", err)
	}

	log.Info().
		Str("run_id", run.ID.String()).
		Int("iterations", outcome.Iterations).
		Msg("Run processing completed successfully")
	return nil
}

// synthesize voices the book and uploads the audio, returning its object key.
func (p *RunProcessor) synthesize(ctx context.Context, run *models.Run, book string) (*string, error) {
	narrator, dialogue, err := p.voices.NarratorAndDialogue(p.config.TTSModel, run.NarratorGender)
	if err != nil {
		return nil, fmt.Errorf("voice selection failed: %w", err)
	}

	dialogueVoices := []string{dialogue}
	if run.VoiceType == "multi" {
		palette, err := p.voices.DialogueVoices(p.config.TTSModel, run.NarratorGender)
		if err != nil || len(palette) == 0 {
			log.Warn().Err(err).
				Str("run_id", run.ID.String()).
				Str("engine", p.config.TTSModel).
				Msg("No multi-voice palette available, narrating with a single dialogue voice")
		} else {
			dialogueVoices = palette
		}
	}

	chapters := text.DetectChapters(book)
	minutes := text.EstimateAudioMinutes(book, 0)
	p.emit(run.ID, workflow.Event{Type: workflow.EventStageStart, Stage: StageTTS,
		Message: fmt.Sprintf("Synthesizing audio (%d chapters, ~%.0f min)", len(chapters), minutes)})

	lastChapter := ""
	audio, err := p.speech.SynthesizeText(ctx, book, narrator, dialogueVoices, func(line, total int, chapter string) {
		if chapter != lastChapter {
			lastChapter = chapter
			p.emit(run.ID, workflow.Event{Type: workflow.EventStageStart, Stage: StageTTS,
				Message: fmt.Sprintf("Synthesizing %s", chapter)})
		}
	})
	if err != nil {
		return nil, fmt.Errorf("audio synthesis failed: %w", err)
	}
	p.emit(run.ID, workflow.Event{Type: workflow.EventStageComplete, Stage: StageTTS,
		Message: fmt.Sprintf("Audio ready (%d bytes)", len(audio))})

	p.emit(run.ID, workflow.Event{Type: workflow.EventStageStart, Stage: StageUpload,
		Message: "Uploading audiobook"})
	audioKey := fmt.Sprintf("runs/%s/audiobook.wav", run.ID)
	if err := p.store.Upload(ctx, audioKey, bytes.NewReader(audio), "audio/wav", int64(len(audio))); err != nil {
		return nil, fmt.Errorf("audio upload failed: %w", err)
	}
	p.emit(run.ID, workflow.Event{Type: workflow.EventStageComplete, Stage: StageUpload,
		Message: "Audiobook uploaded"})

	return &audioKey, nil
}

func (p *RunProcessor) observer(runID uuid.UUID) workflow.Observer {
	if p.events == nil {
		return workflow.NopObserver{}
	}
	return p.events.Observer(runID)
}

func (p *RunProcessor) emit(runID uuid.UUID, ev workflow.Event) {
	if p.events != nil {
		p.events.Publish(runID, ev)
	}
}
