package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/fablecast/fablecast/internal/agents"
	"github.com/fablecast/fablecast/internal/config"
	"github.com/fablecast/fablecast/internal/database"
	"github.com/fablecast/fablecast/internal/kafka"
	"github.com/fablecast/fablecast/internal/llm"
	"github.com/fablecast/fablecast/internal/processor"
	"github.com/fablecast/fablecast/internal/storage"
	"github.com/fablecast/fablecast/internal/tts"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg := config.Load()

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Info().Msg("Starting Fablecast Worker")

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	plannerLLM, err := llm.New("planner", cfg.Planner)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize planner LLM")
	}
	gen1LLM, err := llm.New("generator1", cfg.Generator1)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize generator1 LLM")
	}
	gen2LLM, err := llm.New("generator2", cfg.Generator2)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize generator2 LLM")
	}
	evaluatorLLM, err := llm.New("evaluator", cfg.Evaluator)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize evaluator LLM")
	}

	planner := agents.NewPlanner(plannerLLM)
	gen1 := agents.NewGenerator("generator1", gen1LLM)
	gen2 := agents.NewGenerator("generator2", gen2LLM)
	evaluator := agents.NewEvaluator(evaluatorLLM)

	speech := tts.New(tts.Config{
		BaseURL:    cfg.TTSBaseURL,
		APIKey:     cfg.TTSAPIKey,
		Model:      cfg.TTSModel,
		Speed:      cfg.TTSSpeed,
		MaxRetries: cfg.TTSMaxRetries,
	})

	healthCtx, cancelHealth := context.WithTimeout(context.Background(), 30*time.Second)
	if err := speech.Health(healthCtx); err != nil {
		log.Warn().Err(err).Str("base_url", cfg.TTSBaseURL).
			Msg("TTS backend unreachable at startup; runs will retry per request")
	}
	cancelHealth()

	voices, err := tts.LoadVoiceMap(cfg.TTSVoiceMapPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load voice map")
	}

	storageClient, err := storage.NewClient(
		cfg.S3Endpoint, cfg.S3Region, cfg.S3Bucket,
		cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3UseSSL, cfg.S3PublicURL,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize storage client")
	}

	eventsProducer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopicEvents)
	defer eventsProducer.Close()
	eventSink := kafka.NewEventPublisher(eventsProducer)

	proc := processor.NewRunProcessor(
		db, planner, gen1, gen2, evaluator,
		eventSink, speech, voices, storageClient, cfg,
	)

	consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopicRuns, cfg.KafkaConsumerGroup, proc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := consumer.Start(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("Kafka consumer error")
		}
	}()

	log.Info().Msg("Worker started, consuming messages...")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down worker...")
	cancel()

	if err := consumer.Close(); err != nil {
		log.Error().Err(err).Msg("Consumer close error")
	}
	log.Info().Msg("Worker exited")
}
