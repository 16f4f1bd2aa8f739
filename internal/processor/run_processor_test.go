package processor

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/fablecast/fablecast/internal/config"
	"github.com/fablecast/fablecast/internal/database"
	"github.com/fablecast/fablecast/internal/models"
	"github.com/fablecast/fablecast/internal/tts"
	"github.com/fablecast/fablecast/internal/workflow"
)

type fakeRunStore struct {
	run       *models.Run
	running   int
	succeeded *database.RunOutcome
	rejected  *database.RunOutcome
	failed    []string
}

func (f *fakeRunStore) GetByID(_ context.Context, runID uuid.UUID) (*models.Run, error) {
	if f.run == nil || f.run.ID != runID {
		return nil, errors.New("run not found")
	}
	return f.run, nil
}

func (f *fakeRunStore) MarkRunning(context.Context, uuid.UUID) error {
	f.running++
	return nil
}

func (f *fakeRunStore) MarkSucceeded(_ context.Context, _ uuid.UUID, outcome database.RunOutcome) error {
	f.succeeded = &outcome
	return nil
}

func (f *fakeRunStore) MarkRejected(_ context.Context, _ uuid.UUID, outcome database.RunOutcome) error {
	f.rejected = &outcome
	return nil
}

func (f *fakeRunStore) MarkFailed(_ context.Context, _ uuid.UUID, code, msg string) error {
	f.failed = append(f.failed, code+": "+msg)
	return nil
}

type fakePlanner struct{ err error }

func (f *fakePlanner) Plan(context.Context, string, string, string) (*models.Plan, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.Plan{
		Chapters: []models.ChapterSpec{
			{Number: 1, Title: "Opening", EstimatedLength: 1200},
			{Number: 2, Title: "Closing", EstimatedLength: 1200},
		},
		TotalEstimatedLength: 2400,
	}, nil
}

type fakeGenerator struct{ id string }

func (f *fakeGenerator) ID() string { return f.id }

func (f *fakeGenerator) Generate(_ context.Context, plan *models.Plan, _, _ string, _ *models.FeedbackEntry) ([]models.Chapter, error) {
	chapters := make([]models.Chapter, 0, len(plan.Chapters))
	for _, spec := range plan.Chapters {
		chapters = append(chapters, models.Chapter{
			Number: spec.Number, Title: spec.Title,
			Content: "Prose for " + spec.Title + ".", WordCount: 4,
		})
	}
	return chapters, nil
}

type fakeEvaluator struct{ score int }

func (f *fakeEvaluator) Evaluate(_ context.Context, _, _ []models.Chapter, _ string, threshold, _, _ int) (*models.Evaluation, error) {
	decision := models.DecisionImprove
	if f.score >= threshold {
		decision = models.DecisionAccept
	}
	return &models.Evaluation{OverallScore: f.score, Decision: decision}, nil
}

type fakeSpeech struct {
	books          []string
	narrators      []string
	dialogueVoices [][]string
	err            error
}

func (f *fakeSpeech) SynthesizeText(_ context.Context, book, narrator string, dialogue []string, progress tts.Progress) ([]byte, error) {
	f.books = append(f.books, book)
	f.narrators = append(f.narrators, narrator)
	f.dialogueVoices = append(f.dialogueVoices, dialogue)
	if f.err != nil {
		return nil, f.err
	}
	if progress != nil {
		progress(1, 1, "Chapter 1")
	}
	return []byte("RIFFaudio"), nil
}

type fakeEventSink struct {
	events []workflow.Event
}

func (f *fakeEventSink) Publish(_ uuid.UUID, ev workflow.Event) {
	f.events = append(f.events, ev)
}

func (f *fakeEventSink) Observer(uuid.UUID) workflow.Observer {
	return workflow.NopObserver{}
}

type fakeStore struct {
	uploads map[string][]byte
	err     error
}

func (f *fakeStore) Upload(_ context.Context, key string, data io.Reader, _ string, _ int64) error {
	if f.err != nil {
		return f.err
	}
	if f.uploads == nil {
		f.uploads = map[string][]byte{}
	}
	b, _ := io.ReadAll(data)
	f.uploads[key] = b
	return nil
}

func queuedRun() *models.Run {
	return &models.Run{
		ID: uuid.New(), Status: "queued",
		Topic: "the history of jazz", Language: "en", Size: "short",
		NarratorGender: "female", QualityThreshold: 70, MaxIterations: 3,
	}
}

func newTestProcessor(store *fakeRunStore, eval *fakeEvaluator, speech *fakeSpeech, objects *fakeStore) *RunProcessor {
	return &RunProcessor{
		runs:      store,
		planner:   &fakePlanner{},
		gen1:      &fakeGenerator{id: "generator1"},
		gen2:      &fakeGenerator{id: "generator2"},
		evaluator: eval,
		speech:    speech,
		voices:    tts.DefaultVoiceMap(),
		store:     objects,
		config:    &config.Config{TTSModel: "kokoro"},
	}
}

func TestProcessRunSucceeds(t *testing.T) {
	run := queuedRun()
	store := &fakeRunStore{run: run}
	speech := &fakeSpeech{}
	objects := &fakeStore{}
	sink := &fakeEventSink{}
	p := newTestProcessor(store, &fakeEvaluator{score: 85}, speech, objects)
	p.events = sink

	if err := p.ProcessRun(context.Background(), run.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.running != 1 {
		t.Errorf("MarkRunning calls = %d", store.running)
	}
	if store.succeeded == nil {
		t.Fatal("run not marked succeeded")
	}
	if store.succeeded.OverallScore == nil || *store.succeeded.OverallScore != 85 {
		t.Errorf("score = %v", store.succeeded.OverallScore)
	}
	if store.succeeded.TextKey == nil || !strings.HasSuffix(*store.succeeded.TextKey, "audiobook.txt") {
		t.Errorf("text key = %v", store.succeeded.TextKey)
	}
	if store.succeeded.AudioKey == nil || !strings.HasSuffix(*store.succeeded.AudioKey, "audiobook.wav") {
		t.Errorf("audio key = %v", store.succeeded.AudioKey)
	}

	if len(objects.uploads) != 2 {
		t.Errorf("uploads = %d, want text and audio", len(objects.uploads))
	}
	if len(speech.books) != 1 || !strings.Contains(speech.books[0], "Chapter 1") {
		t.Errorf("synthesized book = %q", speech.books)
	}

	var ttsStart string
	for _, ev := range sink.events {
		if ev.Type == workflow.EventStageStart && ev.Stage == StageTTS {
			ttsStart = ev.Message
			break
		}
	}
	if !strings.Contains(ttsStart, "chapters") || !strings.Contains(ttsStart, "min") {
		t.Errorf("tts stage start = %q, want chapter count and length estimate", ttsStart)
	}
}

func TestProcessRunVoiceTypeSelectsVoices(t *testing.T) {
	single := queuedRun()
	single.VoiceType = "single"
	singleSpeech := &fakeSpeech{}
	p := newTestProcessor(&fakeRunStore{run: single}, &fakeEvaluator{score: 85}, singleSpeech, &fakeStore{})
	if err := p.ProcessRun(context.Background(), single.ID); err != nil {
		t.Fatalf("single-voice run: %v", err)
	}

	multi := queuedRun()
	multi.VoiceType = "multi"
	multiSpeech := &fakeSpeech{}
	p = newTestProcessor(&fakeRunStore{run: multi}, &fakeEvaluator{score: 85}, multiSpeech, &fakeStore{})
	if err := p.ProcessRun(context.Background(), multi.ID); err != nil {
		t.Fatalf("multi-voice run: %v", err)
	}

	if len(singleSpeech.dialogueVoices) != 1 || len(multiSpeech.dialogueVoices) != 1 {
		t.Fatalf("synthesis calls: single=%d multi=%d", len(singleSpeech.dialogueVoices), len(multiSpeech.dialogueVoices))
	}
	if got := singleSpeech.dialogueVoices[0]; len(got) != 1 || got[0] != "af_sky" {
		t.Errorf("single-voice dialogue = %v, want [af_sky]", got)
	}
	palette := multiSpeech.dialogueVoices[0]
	if len(palette) < 2 {
		t.Fatalf("multi-voice palette = %v, want several voices", palette)
	}
	for _, v := range palette {
		if v == "af_heart" {
			t.Errorf("palette %v includes the narrator voice", palette)
		}
	}
	if singleSpeech.narrators[0] != multiSpeech.narrators[0] {
		t.Errorf("narrator changed with voice type: %q vs %q", singleSpeech.narrators[0], multiSpeech.narrators[0])
	}
}

func TestProcessRunRejected(t *testing.T) {
	run := queuedRun()
	run.MaxIterations = 1
	store := &fakeRunStore{run: run}
	speech := &fakeSpeech{}
	objects := &fakeStore{}
	p := newTestProcessor(store, &fakeEvaluator{score: 20}, speech, objects)

	if err := p.ProcessRun(context.Background(), run.ID); err != nil {
		t.Fatalf("rejection must not be a processing error: %v", err)
	}
	if store.rejected == nil {
		t.Fatal("run not marked rejected")
	}
	if store.succeeded != nil || len(store.failed) != 0 {
		t.Errorf("wrong terminal state: succeeded=%v failed=%v", store.succeeded, store.failed)
	}
	if len(speech.books) != 0 || len(objects.uploads) != 0 {
		t.Error("rejected run must not synthesize or upload")
	}
	if store.rejected.OverallScore == nil || *store.rejected.OverallScore != 20 {
		t.Errorf("rejected score = %v", store.rejected.OverallScore)
	}
}

func TestProcessRunSkipsFinishedRuns(t *testing.T) {
	run := queuedRun()
	run.Status = "succeeded"
	store := &fakeRunStore{run: run}
	p := newTestProcessor(store, &fakeEvaluator{score: 85}, &fakeSpeech{}, &fakeStore{})

	if err := p.ProcessRun(context.Background(), run.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.running != 0 || store.succeeded != nil {
		t.Error("finished run was reprocessed")
	}
}

func TestProcessRunTTSFailureMarksFailed(t *testing.T) {
	run := queuedRun()
	store := &fakeRunStore{run: run}
	p := newTestProcessor(store, &fakeEvaluator{score: 85}, &fakeSpeech{err: errors.New("tts down")}, &fakeStore{})

	if err := p.ProcessRun(context.Background(), run.ID); err == nil {
		t.Fatal("expected error")
	}
	if len(store.failed) != 1 || !strings.Contains(store.failed[0], "audio synthesis failed") {
		t.Errorf("failed records = %v", store.failed)
	}
}

func TestProcessRunUploadFailureMarksFailed(t *testing.T) {
	run := queuedRun()
	store := &fakeRunStore{run: run}
	p := newTestProcessor(store, &fakeEvaluator{score: 85}, &fakeSpeech{}, &fakeStore{err: errors.New("bucket gone")})

	if err := p.ProcessRun(context.Background(), run.ID); err == nil {
		t.Fatal("expected error")
	}
	if len(store.failed) != 1 || !strings.Contains(store.failed[0], "upload failed") {
		t.Errorf("failed records = %v", store.failed)
	}
}
