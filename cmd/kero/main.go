package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/WebRTC-Sync/kero-project-sub001/clients/keroapi"
	"github.com/WebRTC-Sync/kero-project-sub001/internal/channel"
	"github.com/WebRTC-Sync/kero-project-sub001/internal/config"
	"github.com/WebRTC-Sync/kero-project-sub001/internal/history"
	"github.com/WebRTC-Sync/kero-project-sub001/internal/quiz"
	"github.com/WebRTC-Sync/kero-project-sub001/internal/room"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load(getEnv("KERO_CONFIG", "kero.yaml"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if level, err := zerolog.ParseLevel(cfg.Log.Level); err == nil && level != zerolog.NoLevel {
		zerolog.SetGlobalLevel(level)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	if cfg.Session.RoomCode == "" {
		log.Fatal().Msg("a room code is required (KERO_ROOM_CODE or session.room_code)")
	}
	userID := cfg.Session.UserID
	if userID == "" {
		userID = uuid.NewString()
	}

	hist, err := history.Open(cfg.History.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open history database")
	}
	defer hist.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := channel.Dial(ctx, cfg.Server.SocketURL, nil, channel.DefaultConfig())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to coordinator")
	}
	defer ch.Close()

	store := room.NewStore()
	a := newApp(ctx, cfg, keroapi.NewKeroApiClient(cfg.Server.APIURL), store, hist)

	a.machine = quiz.NewMachine(clockwork.NewRealClock(),
		cfg.QuizConfig(userID, cfg.Session.Nickname), a.quizHooks())
	defer a.machine.Close()

	syn := room.NewSynchronizer(ch, store, room.Config{
		RoomCode: cfg.Session.RoomCode,
		UserID:   userID,
		Nickname: cfg.Session.Nickname,
	}, a.handleEffect)
	a.syn = syn

	go a.readInput(os.Stdin)

	runErr := make(chan error, 1)
	go func() { runErr <- syn.Run(ctx) }()

	log.Info().
		Str("room", cfg.Session.RoomCode).
		Str("nickname", cfg.Session.Nickname).
		Str("socket", cfg.Server.SocketURL).
		Msg("kero client started")

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
		if err := syn.Leave(); err != nil {
			log.Warn().Err(err).Msg("could not announce leave")
		}
	case err := <-runErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("session ended")
		}
		runErr = nil
	}

	cancel()
	a.stopPlayback()
	ch.Close()

	if runErr != nil {
		select {
		case <-runErr:
		case <-time.After(2 * time.Second):
			log.Warn().Msg("session loop did not stop in time")
		}
	}

	log.Info().Msg("kero client shutdown complete")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
