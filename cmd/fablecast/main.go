package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fablecast/fablecast/internal/agents"
	"github.com/fablecast/fablecast/internal/config"
	"github.com/fablecast/fablecast/internal/database"
	"github.com/fablecast/fablecast/internal/llm"
	"github.com/fablecast/fablecast/internal/models"
	"github.com/fablecast/fablecast/internal/text"
	"github.com/fablecast/fablecast/internal/tts"
	"github.com/fablecast/fablecast/internal/workflow"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	rootCmd := &cobra.Command{
		Use:   "fablecast",
		Short: "Generate narrated audiobooks from a topic",
		Long:  "Fablecast plans, writes, evaluates and voices an audiobook locally, without the API or worker services.",
	}

	rootCmd.AddCommand(newGenerateCommand())
	rootCmd.AddCommand(newVoicesCommand())
	rootCmd.AddCommand(newCreateUserCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newGenerateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate <topic>",
		Short: "Generate an audiobook for a topic",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			topic := args[0]
			lang, _ := cmd.Flags().GetString("language")
			size, _ := cmd.Flags().GetString("size")
			threshold, _ := cmd.Flags().GetInt("threshold")
			maxIterations, _ := cmd.Flags().GetInt("max-iterations")
			outputDir, _ := cmd.Flags().GetString("output-dir")
			withAudio, _ := cmd.Flags().GetBool("audio")
			narrator, _ := cmd.Flags().GetString("narrator")
			multiVoice, _ := cmd.Flags().GetBool("multi-voice")

			cfg := config.Load()
			if lang == "" {
				lang = cfg.DefaultLanguage
			}
			if size == "" {
				size = cfg.DefaultSize
			}
			if threshold == 0 {
				threshold = cfg.QualityThreshold
			}
			if maxIterations == 0 {
				maxIterations = cfg.MaxIterations
			}
			if outputDir == "" {
				outputDir = cfg.OutputDir
			}
			if err := os.MkdirAll(outputDir, 0o755); err != nil {
				return fmt.Errorf("create output dir: %w", err)
			}

			wf, err := buildWorkflow(cfg)
			if err != nil {
				return err
			}

			base := text.SanitizeFilename(topic)
			textPath := filepath.Join(outputDir, base+".txt")

			state, err := wf.Run(cmd.Context(), workflow.Request{
				Topic:            topic,
				Language:         lang,
				Size:             size,
				QualityThreshold: threshold,
				MaxIterations:    maxIterations,
				OutputPath:       textPath,
			})
			if err != nil {
				return fmt.Errorf("generation failed: %w", err)
			}

			if !state.Accepted() {
				score := 0
				if state.Evaluation != nil {
					score = state.Evaluation.OverallScore
				}
				return fmt.Errorf("content rejected after %d iterations (score %d/100)",
					state.IterationCount, score)
			}

			fmt.Printf("Audiobook text written to %s (score %d/100, %d iterations)\n",
				textPath, state.Evaluation.OverallScore, state.IterationCount)

			if !withAudio {
				return nil
			}

			audioPath := filepath.Join(outputDir, base+".wav")
			if err := synthesize(cmd.Context(), cfg, state.FormattedText, narrator, audioPath, multiVoice); err != nil {
				return err
			}
			fmt.Printf("Audiobook audio written to %s\n", audioPath)
			return nil
		},
	}

	cmd.Flags().StringP("language", "l", "", "Content language: es or en (default from config)")
	cmd.Flags().StringP("size", "s", "", "Audiobook size: short, medium or long (default from config)")
	cmd.Flags().Int("threshold", 0, "Quality threshold 0-100 (default from config)")
	cmd.Flags().Int("max-iterations", 0, "Maximum improvement iterations (default from config)")
	cmd.Flags().StringP("output-dir", "o", "", "Directory for generated files (default from config)")
	cmd.Flags().Bool("audio", false, "Also synthesize audio via the configured TTS backend")
	cmd.Flags().String("narrator", "female", "Narrator gender for voice selection: male or female")
	cmd.Flags().Bool("multi-voice", false, "Rotate dialogue through the engine's voice palette")
	return cmd
}

func newVoicesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "voices [engine]",
		Short: "List voices for a TTS engine",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			engine := cfg.TTSModel
			if len(args) == 1 {
				engine = args[0]
			}

			voices, err := tts.LoadVoiceMap(cfg.TTSVoiceMapPath)
			if err != nil {
				return err
			}
			names, err := voices.AvailableVoices(engine)
			if err != nil {
				return err
			}

			fmt.Printf("Voices for %s:\n", engine)
			for _, name := range names {
				fmt.Printf("  %s\n", name)
			}
			return nil
		},
	}
}

func newCreateUserCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "create-user [email]",
		Short: "Create a user with an API key for the service",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if cfg.DatabaseURL == "" {
				return fmt.Errorf("DATABASE_URL is required")
			}

			db, err := database.Connect(cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("connect: %w", err)
			}
			defer db.Close()

			user := &models.User{ID: uuid.New(), CreatedAt: time.Now()}
			if len(args) == 1 {
				user.Email = &args[0]
			}
			if err := database.NewUserRepository(db).Create(cmd.Context(), user); err != nil {
				return fmt.Errorf("create user: %w", err)
			}

			plainKey, key, err := database.NewAPIKeyRepository(db).CreateAPIKey(cmd.Context(), user.ID)
			if err != nil {
				return fmt.Errorf("create api key: %w", err)
			}

			fmt.Printf("User:    %s\n", user.ID)
			fmt.Printf("Key ID:  %s\n", key.ID)
			fmt.Printf("API key: %s\n", plainKey)
			fmt.Println("Store the API key now; it is not retrievable later.")
			return nil
		},
	}
}

func buildWorkflow(cfg *config.Config) (*workflow.Workflow, error) {
	plannerLLM, err := llm.New("planner", cfg.Planner)
	if err != nil {
		return nil, fmt.Errorf("planner LLM: %w", err)
	}
	gen1LLM, err := llm.New("generator1", cfg.Generator1)
	if err != nil {
		return nil, fmt.Errorf("generator1 LLM: %w", err)
	}
	gen2LLM, err := llm.New("generator2", cfg.Generator2)
	if err != nil {
		return nil, fmt.Errorf("generator2 LLM: %w", err)
	}
	evaluatorLLM, err := llm.New("evaluator", cfg.Evaluator)
	if err != nil {
		return nil, fmt.Errorf("evaluator LLM: %w", err)
	}

	return workflow.New(
		agents.NewPlanner(plannerLLM),
		agents.NewGenerator("generator1", gen1LLM),
		agents.NewGenerator("generator2", gen2LLM),
		agents.NewEvaluator(evaluatorLLM),
		consoleObserver{},
	), nil
}

func synthesize(ctx context.Context, cfg *config.Config, formatted, narratorGender, audioPath string, multiVoice bool) error {
	voices, err := tts.LoadVoiceMap(cfg.TTSVoiceMapPath)
	if err != nil {
		return err
	}
	narrator, dialogue, err := voices.NarratorAndDialogue(cfg.TTSModel, narratorGender)
	if err != nil {
		return err
	}
	dialogueVoices := []string{dialogue}
	if multiVoice {
		dialogueVoices, err = voices.DialogueVoices(cfg.TTSModel, narratorGender)
		if err != nil {
			return err
		}
	}

	speech := tts.New(tts.Config{
		BaseURL:    cfg.TTSBaseURL,
		APIKey:     cfg.TTSAPIKey,
		Model:      cfg.TTSModel,
		Speed:      cfg.TTSSpeed,
		MaxRetries: cfg.TTSMaxRetries,
	})
	if err := speech.Health(ctx); err != nil {
		return fmt.Errorf("TTS backend unavailable: %w", err)
	}

	book := text.PreprocessFullText(formatted)
	audio, err := speech.SynthesizeText(ctx, book, narrator, dialogueVoices, func(line, total int, chapter string) {
		if line == 1 || line%25 == 0 || line == total {
			fmt.Printf("  synthesizing line %d/%d (%s)\n", line, total, chapter)
		}
	})
	if err != nil {
		return fmt.Errorf("synthesis failed: %w", err)
	}

	return os.WriteFile(audioPath, audio, 0o644)
}

// consoleObserver prints workflow progress to stderr.
type consoleObserver struct{}

func (consoleObserver) OnEvent(ev workflow.Event) {
	e := log.Info().Str("stage", ev.Stage).Str("type", ev.Type)
	if ev.Score > 0 {
		e = e.Int("score", ev.Score)
	}
	e.Msg(ev.Message)
}
