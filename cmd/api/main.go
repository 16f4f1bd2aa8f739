package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/fablecast/fablecast/internal/auth"
	"github.com/fablecast/fablecast/internal/config"
	"github.com/fablecast/fablecast/internal/database"
	"github.com/fablecast/fablecast/internal/events"
	"github.com/fablecast/fablecast/internal/handlers"
	"github.com/fablecast/fablecast/internal/kafka"
	"github.com/fablecast/fablecast/internal/services"
	"github.com/fablecast/fablecast/internal/storage"
	"github.com/fablecast/fablecast/internal/tts"
	"github.com/fablecast/fablecast/migrations"
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

	log.Info().Msg("Starting Fablecast API")

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	if err := migrations.Run(db.DB); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	kafkaProducer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopicRuns)
	defer kafkaProducer.Close()

	storageClient, err := storage.NewClient(
		cfg.S3Endpoint, cfg.S3Region, cfg.S3Bucket,
		cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3UseSSL, cfg.S3PublicURL,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize storage client")
	}

	voices, err := tts.LoadVoiceMap(cfg.TTSVoiceMapPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load voice map")
	}

	runService := services.NewRunService(db, kafkaProducer, storageClient, cfg)

	// Live progress events arrive from workers over Kafka and are fanned out
	// to WebSocket subscribers through the hub.
	hub := events.NewHub()
	eventConsumer := kafka.NewEventConsumer(cfg.KafkaBrokers, cfg.KafkaTopicEvents, hub)
	defer eventConsumer.Close()

	relayCtx, stopRelay := context.WithCancel(context.Background())
	defer stopRelay()
	go func() {
		if err := eventConsumer.Start(relayCtx); err != nil && relayCtx.Err() == nil {
			log.Error().Err(err).Msg("Event relay stopped")
		}
	}()

	h := handlers.NewHandler(runService, hub, voices, cfg.TTSModel, db, nil)
	authService := auth.NewService(db)

	r := mux.NewRouter()
	r.HandleFunc("/healthz", h.Health).Methods("GET")

	api := r.PathPrefix("/v1").Subrouter()
	api.Use(authService.Middleware)
	api.HandleFunc("/runs", h.CreateRun).Methods("POST")
	api.HandleFunc("/runs", h.ListRuns).Methods("GET")
	api.HandleFunc("/runs/{id}", h.GetRun).Methods("GET")
	api.HandleFunc("/runs/{id}/text", h.DownloadRunText).Methods("GET")
	api.HandleFunc("/runs/{id}/audio", h.DownloadRunAudio).Methods("GET")
	api.HandleFunc("/runs/{id}/events", h.RunEvents).Methods("GET")
	api.HandleFunc("/voices", h.ListVoices).Methods("GET")

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down API...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}
	log.Info().Msg("API exited")
}
