package keroapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Processing status values reported by the song pipeline.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// ErrProcessingFailed is returned when the pipeline reports a song it
// could not prepare.
var ErrProcessingFailed = errors.New("keroapi: song processing failed")

// ProcessingStatus is the pipeline's progress report for one song.
type ProcessingStatus struct {
	SongID   string  `json:"songId"`
	Status   string  `json:"status"`
	Message  string  `json:"message,omitempty"`
	Step     string  `json:"step,omitempty"`
	Progress float64 `json:"progress,omitempty"`
}

// Terminal reports whether the pipeline is done with the song, for
// better or worse.
func (s ProcessingStatus) Terminal() bool {
	return s.Status == StatusCompleted || s.Status == StatusFailed
}

// GetProcessingStatus fetches the current pipeline status for a song.
func (c *KeroApiClient) GetProcessingStatus(ctx context.Context, songID string) (ProcessingStatus, error) {
	endpoint := fmt.Sprintf(SongStatusEndpoint, url.PathEscape(songID))
	body, err := c.Get(ctx, endpoint)
	if err != nil {
		return ProcessingStatus{}, fmt.Errorf("failed to get status for song %s: %w", songID, err)
	}

	var status ProcessingStatus
	if err := json.Unmarshal(body, &status); err != nil {
		return ProcessingStatus{}, fmt.Errorf("failed to unmarshal response: %w, raw response: %s", err, string(body))
	}

	return status, nil
}

// StatusPoller polls a song's processing status until it is terminal.
type StatusPoller struct {
	client   *KeroApiClient
	clock    clockwork.Clock
	interval time.Duration
}

// NewStatusPoller builds a poller. interval is how long to wait between
// polls.
func NewStatusPoller(client *KeroApiClient, clock clockwork.Clock, interval time.Duration) *StatusPoller {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &StatusPoller{client: client, clock: clock, interval: interval}
}

// Wait polls until the song reaches completed or failed. Every status
// seen is handed to onUpdate when set. A failed status returns the
// status together with ErrProcessingFailed; cancellation returns the
// context error.
func (p *StatusPoller) Wait(ctx context.Context, songID string, onUpdate func(ProcessingStatus)) (ProcessingStatus, error) {
	for {
		status, err := p.client.GetProcessingStatus(ctx, songID)
		if err != nil {
			return ProcessingStatus{}, err
		}
		if onUpdate != nil {
			onUpdate(status)
		}

		switch status.Status {
		case StatusCompleted:
			return status, nil
		case StatusFailed:
			return status, fmt.Errorf("%w: %s", ErrProcessingFailed, status.Message)
		}

		log.Debug().Str("song_id", songID).Str("step", status.Step).
			Float64("progress", status.Progress).Msg("song still processing")

		select {
		case <-ctx.Done():
			return status, ctx.Err()
		case <-p.clock.After(p.interval):
		}
	}
}
