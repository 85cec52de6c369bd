// Package config loads client settings from an optional YAML file with
// KERO_* environment overrides on top.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/WebRTC-Sync/kero-project-sub001/internal/lyrics"
	"github.com/WebRTC-Sync/kero-project-sub001/internal/playback"
	"github.com/WebRTC-Sync/kero-project-sub001/internal/quiz"
	"github.com/WebRTC-Sync/kero-project-sub001/internal/scoring"
)

type Config struct {
	Server struct {
		SocketURL string `yaml:"socket_url"`
		APIURL    string `yaml:"api_url"`
	} `yaml:"server"`

	Session struct {
		RoomCode string `yaml:"room_code"`
		UserID   string `yaml:"user_id"`
		Nickname string `yaml:"nickname"`
	} `yaml:"session"`

	Lyrics struct {
		LeadInSec       float64 `yaml:"lead_in_sec"`
		HoldAfterSec    float64 `yaml:"hold_after_sec"`
		InterludeGapSec float64 `yaml:"interlude_gap_sec"`
		PreviewLeadSec  float64 `yaml:"preview_lead_sec"`
		LastLineHoldSec float64 `yaml:"last_line_hold_sec"`
		WordLeadSec     float64 `yaml:"word_lead_sec"`
	} `yaml:"lyrics"`

	Scoring struct {
		WordBase      float64 `yaml:"word_base"`
		LineBase      float64 `yaml:"line_base"`
		ComboStep     float64 `yaml:"combo_step"`
		MaxMultiplier float64 `yaml:"max_multiplier"`
	} `yaml:"scoring"`

	Playback struct {
		TickIntervalMs    int `yaml:"tick_interval_ms"`
		PublishIntervalMs int `yaml:"publish_interval_ms"`
	} `yaml:"playback"`

	Quiz struct {
		RevealDurationMs int `yaml:"reveal_duration_ms"`
	} `yaml:"quiz"`

	Catalog struct {
		PollIntervalMs int `yaml:"poll_interval_ms"`
	} `yaml:"catalog"`

	History struct {
		Path string `yaml:"path"`
	} `yaml:"history"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// Default returns the stock client settings.
func Default() Config {
	var cfg Config
	cfg.Server.SocketURL = "ws://localhost:8080/socket"
	cfg.Server.APIURL = "http://localhost:8080"
	cfg.Session.Nickname = "guest"

	cfg.Lyrics.LeadInSec = 3.0
	cfg.Lyrics.HoldAfterSec = 0.5
	cfg.Lyrics.InterludeGapSec = 4.0
	cfg.Lyrics.PreviewLeadSec = 2.0
	cfg.Lyrics.LastLineHoldSec = 2.0
	cfg.Lyrics.WordLeadSec = 0.3

	cfg.Scoring.WordBase = 10
	cfg.Scoring.LineBase = 50
	cfg.Scoring.ComboStep = 0.1
	cfg.Scoring.MaxMultiplier = 2.0

	cfg.Playback.TickIntervalMs = 16
	cfg.Playback.PublishIntervalMs = 250
	cfg.Quiz.RevealDurationMs = 3000
	cfg.Catalog.PollIntervalMs = 2000

	cfg.History.Path = "kero_history.db"
	cfg.Log.Level = "info"
	return cfg
}

// Load reads the YAML file at path when it exists, then applies
// environment overrides. A missing file is not an error; the defaults
// carry the client.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Defaults plus environment cover this case.
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}
	cfg.applyEnv()
	return &cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.SocketURL = getEnv("KERO_SOCKET_URL", c.Server.SocketURL)
	c.Server.APIURL = getEnv("KERO_API_URL", c.Server.APIURL)
	c.Session.RoomCode = getEnv("KERO_ROOM_CODE", c.Session.RoomCode)
	c.Session.UserID = getEnv("KERO_USER_ID", c.Session.UserID)
	c.Session.Nickname = getEnv("KERO_NICKNAME", c.Session.Nickname)
	c.History.Path = getEnv("KERO_HISTORY_PATH", c.History.Path)
	c.Log.Level = getEnv("KERO_LOG_LEVEL", c.Log.Level)
	c.Lyrics.WordLeadSec = getEnvAsFloat("KERO_WORD_LEAD_SEC", c.Lyrics.WordLeadSec)
	c.Playback.TickIntervalMs = getEnvAsInt("KERO_TICK_INTERVAL_MS", c.Playback.TickIntervalMs)
	c.Playback.PublishIntervalMs = getEnvAsInt("KERO_PUBLISH_INTERVAL_MS", c.Playback.PublishIntervalMs)
}

// LyricsConfig converts the timing block for the timeline resolver.
func (c *Config) LyricsConfig() lyrics.Config {
	return lyrics.Config{
		LeadIn:       c.Lyrics.LeadInSec,
		HoldAfter:    c.Lyrics.HoldAfterSec,
		InterludeGap: c.Lyrics.InterludeGapSec,
		PreviewLead:  c.Lyrics.PreviewLeadSec,
		LastLineHold: c.Lyrics.LastLineHoldSec,
		WordLeadTime: c.Lyrics.WordLeadSec,
	}
}

// ScoringConfig converts the scoring block for the engine.
func (c *Config) ScoringConfig() scoring.Config {
	return scoring.Config{
		WordBase:      c.Scoring.WordBase,
		LineBase:      c.Scoring.LineBase,
		ComboStep:     c.Scoring.ComboStep,
		MaxMultiplier: c.Scoring.MaxMultiplier,
		WordLeadTime:  c.Lyrics.WordLeadSec,
	}
}

// PlaybackConfig converts the tick block for the playback clock.
func (c *Config) PlaybackConfig() playback.Config {
	return playback.Config{
		TickInterval:    time.Duration(c.Playback.TickIntervalMs) * time.Millisecond,
		PublishInterval: time.Duration(c.Playback.PublishIntervalMs) * time.Millisecond,
	}
}

// QuizConfig converts the quiz block for the round machine.
func (c *Config) QuizConfig(participantID, participantName string) quiz.Config {
	return quiz.Config{
		RevealDuration:  time.Duration(c.Quiz.RevealDurationMs) * time.Millisecond,
		ParticipantID:   participantID,
		ParticipantName: participantName,
	}
}

// PollInterval is how often the catalog status poller asks again.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Catalog.PollIntervalMs) * time.Millisecond
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
