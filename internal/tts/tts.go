// Package tts turns preprocessed audiobook text into speech through an
// OpenAI-compatible TTS endpoint (Kokoro, Orpheus).
package tts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog/log"

	"github.com/fablecast/fablecast/internal/text"
)

// Retry schedule for transient synthesis failures.
const (
	defaultMaxRetries = 3
	baseRetryDelay    = 100 * time.Millisecond
	maxRetryDelay     = 10 * time.Second
)

// DefaultSpeed slows narration slightly for audiobook pacing.
const DefaultSpeed = 0.85

const healthProbeVoice = "af_heart"

// Config holds the TTS endpoint settings.
type Config struct {
	BaseURL    string
	APIKey     string
	Model      string
	Speed      float64
	MaxRetries int
}

// speech is the raw synthesis call, separated so tests can stub it.
type speech interface {
	create(ctx context.Context, input, voice string, speed float64) ([]byte, error)
}

type openaiSpeech struct {
	api   openai.Client
	model string
}

func (s *openaiSpeech) create(ctx context.Context, input, voice string, speed float64) ([]byte, error) {
	resp, err := s.api.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Model:          openai.SpeechModel(s.model),
		Voice:          openai.AudioSpeechNewParamsVoice(voice),
		Input:          input,
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatWAV,
		Speed:          openai.Float(speed),
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// Client synthesizes audiobook audio line by line with retries.
type Client struct {
	speech     speech
	speed      float64
	maxRetries int
}

// New creates a TTS client for an OpenAI-compatible speech endpoint.
func New(cfg Config) *Client {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	speed := cfg.Speed
	if speed <= 0 {
		speed = DefaultSpeed
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	return &Client{
		speech:     &openaiSpeech{api: openai.NewClient(opts...), model: cfg.Model},
		speed:      speed,
		maxRetries: maxRetries,
	}
}

// Synthesize generates audio for one piece of text, retrying transient
// failures with exponential backoff and jitter.
func (c *Client) Synthesize(ctx context.Context, input, voice string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		data, err := c.speech.create(ctx, input, voice, c.speed)
		if err == nil {
			if attempt > 0 {
				log.Debug().Int("retries", attempt).Msg("Audio generated after retry")
			}
			return data, nil
		}
		lastErr = err

		if attempt < c.maxRetries {
			delay := baseRetryDelay << attempt
			if delay > maxRetryDelay {
				delay = maxRetryDelay
			}
			delay += time.Duration(rand.Float64() * 0.1 * float64(delay))
			log.Warn().Err(err).Int("attempt", attempt+1).Dur("retry_in", delay).
				Msg("TTS request failed, retrying")
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return nil, fmt.Errorf("synthesize after %d attempts: %w", c.maxRetries+1, lastErr)
}

var speechTextCleaner = strings.NewReplacer(`"`, "", `\`, "")

// SynthesizeLine voices one line, switching between the narrator and
// dialogue voices on quoted spans. A failed span is skipped rather than
// failing the line. Returns nil for lines with nothing speakable.
func (c *Client) SynthesizeLine(ctx context.Context, line, narratorVoice, dialogueVoice string) ([]byte, error) {
	span := 0
	return c.synthesizeLine(ctx, line, narratorVoice, []string{dialogueVoice}, &span)
}

// synthesizeLine voices one line. Quoted spans take the dialogue voices in
// rotation; the span counter persists across lines so multi-voice books keep
// alternating speakers between consecutive dialogue lines.
func (c *Client) synthesizeLine(ctx context.Context, line, narratorVoice string, dialogueVoices []string, span *int) ([]byte, error) {
	if line == "" || text.IsOnlyPunctuation(line) {
		return nil, nil
	}

	var buf bytes.Buffer
	for _, seg := range text.SplitAndAnnotate(line) {
		spoken := strings.TrimSpace(seg.Text)
		if spoken == "" || text.IsOnlyPunctuation(spoken) {
			continue
		}
		voice := narratorVoice
		if seg.Type == text.SegmentDialogue {
			if len(dialogueVoices) > 0 {
				voice = dialogueVoices[*span%len(dialogueVoices)]
			}
			*span++
		}
		spoken = speechTextCleaner.Replace(spoken)

		data, err := c.Synthesize(ctx, spoken, voice)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Warn().Err(err).Str("text", truncate(spoken, 50)).Msg("Skipping unspeakable segment")
			continue
		}
		buf.Write(data)
	}

	if buf.Len() == 0 {
		return nil, nil
	}
	return buf.Bytes(), nil
}

// Progress reports synthesis progress, with the current chapter heading
// when one has been seen.
type Progress func(line, totalLines int, chapter string)

// SynthesizeText voices a whole preprocessed audiobook text. Chapter
// headings update the progress chapter label. A single dialogue voice gives
// the classic two-voice narration; several make dialogue spans rotate
// through them for multi-voice books.
func (c *Client) SynthesizeText(ctx context.Context, book, narratorVoice string, dialogueVoices []string, progress Progress) ([]byte, error) {
	lines := strings.Split(book, "\n")
	var buf bytes.Buffer
	chapter := ""
	span := 0

	for i, line := range lines {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		stripped := strings.TrimSpace(line)
		if stripped != "" && text.IsChapterHeading(stripped) {
			chapter = stripped
		}

		data, err := c.synthesizeLine(ctx, stripped, narratorVoice, dialogueVoices, &span)
		if err != nil {
			return nil, err
		}
		buf.Write(data)

		if progress != nil {
			progress(i+1, len(lines), chapter)
		}
	}

	if buf.Len() == 0 {
		return nil, errors.New("no audio generated")
	}
	return buf.Bytes(), nil
}

// Health probes the endpoint with a short synthesis request.
func (c *Client) Health(ctx context.Context) error {
	data, err := c.speech.create(ctx, "Test.", healthProbeVoice, 1.0)
	if err != nil {
		return fmt.Errorf("tts health: %w", err)
	}
	if len(data) == 0 {
		return errors.New("tts health: endpoint returned no audio")
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
