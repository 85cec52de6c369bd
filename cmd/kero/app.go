package main

import (
	"bufio"
	"context"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/WebRTC-Sync/kero-project-sub001/clients/keroapi"
	"github.com/WebRTC-Sync/kero-project-sub001/internal/config"
	"github.com/WebRTC-Sync/kero-project-sub001/internal/history"
	"github.com/WebRTC-Sync/kero-project-sub001/internal/playback"
	"github.com/WebRTC-Sync/kero-project-sub001/internal/quiz"
	"github.com/WebRTC-Sync/kero-project-sub001/internal/room"
	"github.com/WebRTC-Sync/kero-project-sub001/internal/scoring"
	"github.com/WebRTC-Sync/kero-project-sub001/internal/song"
)

// app glues the synchronizer's effects to the playback clock, the quiz
// machine, and the play history. Effects arrive on the session goroutine
// in coordinator order, so the handlers never race each other.
type app struct {
	ctx   context.Context
	cfg   *config.Config
	api   *keroapi.KeroApiClient
	store *room.Store
	hist  *history.Store

	machine *quiz.Machine
	syn     *room.Synchronizer

	mu     sync.Mutex
	clock  *playback.Clock
	media  *playback.Transport
	engine *scoring.Engine
	track  *song.Song
}

func newApp(ctx context.Context, cfg *config.Config, api *keroapi.KeroApiClient, store *room.Store, hist *history.Store) *app {
	return &app{ctx: ctx, cfg: cfg, api: api, store: store, hist: hist}
}

func (a *app) handleEffect(e room.Effect) {
	switch eff := e.(type) {
	case room.RedirectEffect:
		log.Info().Str("reason", eff.Reason).Msg("leaving room view")
	case room.GameStartEffect:
		a.startGame(eff)
	case room.GameSyncEffect:
		a.reconcile(eff)
	case room.PlaybackEffect:
		a.applyPlayback(eff.Action)
	case room.QuizLoadEffect:
		a.machine.Load(eff.Questions)
		if err := a.machine.Start(); err != nil {
			log.Warn().Err(err).Msg("could not start quiz round")
		}
	case room.QuizSnapshotEffect:
		a.machine.ApplySnapshot(eff.Questions, eff.Index)
	case room.QuizResolveEffect:
		log.Info().
			Int("question", eff.Payload.QuestionIndex+1).
			Str("answered_by", eff.Payload.AnsweredBy).
			Bool("correct", eff.Payload.IsCorrect).
			Int("points", eff.Payload.Points).
			Msg("question resolved remotely")
		a.machine.HandleForceAdvance(eff.Payload.QuestionIndex, quiz.RoundResult{
			ParticipantID: eff.Payload.AnsweredBy,
			IsCorrect:     eff.Payload.IsCorrect,
			Points:        eff.Payload.Points,
		})
	case room.PitchEffect:
		log.Debug().
			Str("participant", eff.Payload.ParticipantID).
			Float64("frequency", eff.Payload.Frequency).
			Str("note", eff.Payload.Note).
			Msg("pitch update")
	}
}

func (a *app) startGame(eff room.GameStartEffect) {
	if eff.Mode == room.ModeQuiz {
		// Question data follows as its own event.
		return
	}
	track := eff.Song
	if track == nil {
		log.Warn().Msg("game started without a song")
		return
	}
	if len(track.Lyrics) == 0 {
		// Some coordinators announce with bare metadata; fetch the chart.
		ctx, cancel := context.WithTimeout(a.ctx, 10*time.Second)
		full, err := a.api.GetSong(ctx, track.ID)
		cancel()
		switch {
		case err != nil:
			log.Error().Err(err).Str("song_id", track.ID).Msg("failed to fetch lyric chart")
		case len(full.Lyrics) == 0:
			// The pipeline is still preparing the song; play bare and swap
			// the chart in once it lands.
			go a.watchProcessing(track.ID)
		default:
			track = full
		}
	}
	a.startPlayback(track, 0)
}

// watchProcessing waits for the song pipeline to finish, then swaps the
// full chart into the running session at the live position.
func (a *app) watchProcessing(songID string) {
	poller := keroapi.NewStatusPoller(a.api, clockwork.NewRealClock(), a.cfg.PollInterval())
	_, err := poller.Wait(a.ctx, songID, func(st keroapi.ProcessingStatus) {
		log.Info().
			Str("song_id", songID).
			Str("status", st.Status).
			Str("step", st.Step).
			Float64("progress", st.Progress).
			Msg("song processing")
	})
	if err != nil {
		log.Warn().Err(err).Str("song_id", songID).Msg("song processing did not complete")
		return
	}

	ctx, cancel := context.WithTimeout(a.ctx, 10*time.Second)
	full, err := a.api.GetSong(ctx, songID)
	cancel()
	if err != nil || len(full.Lyrics) == 0 {
		log.Warn().Err(err).Str("song_id", songID).Msg("chart unavailable after processing")
		return
	}

	a.mu.Lock()
	current := a.track
	var at float64
	if a.media != nil {
		at = a.media.Position()
	}
	a.mu.Unlock()
	if current == nil || current.ID != songID {
		return
	}
	a.startPlayback(full, at)
	if a.store.State().Game.Status == room.GamePaused {
		a.applyPlayback(room.PlaybackPause)
	}
}

// startPlayback replaces any running clock with a fresh one for track,
// positioned at the given offset.
func (a *app) startPlayback(track *song.Song, at float64) {
	a.stopPlayback()

	a.mu.Lock()
	a.track = track
	a.engine = scoring.NewEngine(a.cfg.ScoringConfig())
	a.media = playback.NewTransport(clockwork.NewRealClock())
	// Headless client: treat the performer's input as always live so
	// every highlighted word scores.
	a.clock = playback.New(a.cfg.PlaybackConfig(), clockwork.NewRealClock(), a.media,
		track.Lyrics, a.cfg.LyricsConfig(), a.engine, playback.InputFunc(func() bool { return true }),
		a.onFrame, a.onTime)
	clock := a.clock
	media := a.media
	a.mu.Unlock()

	if at > 0 {
		media.Seek(at)
	}
	if err := clock.Start(a.ctx); err != nil {
		log.Error().Err(err).Msg("could not start playback clock")
		return
	}
	log.Info().
		Str("song_id", track.ID).
		Str("title", track.Title).
		Str("artist", track.Artist).
		Float64("at", at).
		Msg("karaoke playback started")
}

// reconcile applies an authoritative game snapshot to local playback.
func (a *app) reconcile(eff room.GameSyncEffect) {
	if eff.Mode == room.ModeQuiz {
		return
	}
	if eff.Status == room.GameFinished {
		a.finishPlayback()
		return
	}

	a.mu.Lock()
	current := a.track
	clock := a.clock
	media := a.media
	a.mu.Unlock()

	sameSong := current != nil && eff.Song != nil && current.ID == eff.Song.ID
	switch {
	case clock != nil && sameSong:
		clock.Seek(eff.CurrentTime)
	case eff.Song != nil && eff.Status != room.GameWaiting:
		a.startPlayback(eff.Song, eff.CurrentTime)
		a.mu.Lock()
		media = a.media
		a.mu.Unlock()
	default:
		return
	}

	if media == nil {
		return
	}
	switch eff.Status {
	case room.GamePaused:
		media.Pause()
	case room.GamePlaying:
		media.Play()
	}
}

func (a *app) applyPlayback(action room.PlaybackAction) {
	a.mu.Lock()
	media := a.media
	a.mu.Unlock()

	switch action {
	case room.PlaybackPause:
		if media != nil {
			media.Pause()
		}
	case room.PlaybackResume:
		if media != nil {
			media.Play()
		}
	case room.PlaybackFinish:
		a.finishPlayback()
	}
}

// finishPlayback stops the clock and records the performance.
func (a *app) finishPlayback() {
	a.mu.Lock()
	clock := a.clock
	engine := a.engine
	track := a.track
	a.clock = nil
	a.media = nil
	a.engine = nil
	a.track = nil
	a.mu.Unlock()

	if clock == nil {
		return
	}
	clock.Stop()

	if track == nil || engine == nil {
		return
	}
	rec, err := a.hist.Record(history.PlayRecord{
		SongID:    track.ID,
		Title:     track.Title,
		Artist:    track.Artist,
		Mode:      string(room.ModeKaraoke),
		Score:     engine.Score(),
		MaxStreak: engine.MaxStreak(),
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to record play")
		return
	}
	log.Info().
		Str("song_id", rec.SongID).
		Int("score", rec.Score).
		Int("max_streak", rec.MaxStreak).
		Msg("karaoke round recorded")
}

// stopPlayback tears down any running clock without recording.
func (a *app) stopPlayback() {
	a.mu.Lock()
	clock := a.clock
	a.clock = nil
	a.media = nil
	a.engine = nil
	a.track = nil
	a.mu.Unlock()

	if clock != nil {
		clock.Stop()
	}
}

// submitAnswer grades the local answer and publishes the result to the
// room.
func (a *app) submitAnswer(answer quiz.Answer) error {
	index := a.machine.Index()
	res, err := a.machine.Submit(answer)
	if err != nil {
		return err
	}
	return a.syn.SubmitAnswer(index, answer, res, res.TimeLeft)
}

// readInput turns terminal lines into quiz submissions: an option
// number, o/x for true-false, a comma-separated ordering, or free text.
func (a *app) readInput(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := a.submitAnswer(parseAnswer(line)); err != nil {
			log.Warn().Err(err).Str("input", line).Msg("answer not accepted")
		}
	}
}

func parseAnswer(line string) quiz.Answer {
	if n, err := strconv.Atoi(line); err == nil && n >= 1 && n <= 9 {
		return quiz.ChoiceAnswer(n - 1)
	}
	switch strings.ToLower(line) {
	case "o", "true", "yes":
		return quiz.FlagAnswer(true)
	case "x", "false", "no":
		return quiz.FlagAnswer(false)
	}
	if strings.Contains(line, ",") {
		parts := strings.Split(line, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return quiz.OrderAnswer(parts...)
	}
	return quiz.TextAnswer(line)
}

func (a *app) onFrame(f playback.Frame) {
	a.store.SetLocalStreak(f.Combo, f.MaxStreak)
	for _, award := range f.Awards {
		log.Debug().
			Int("line", award.LineIndex).
			Int("word", award.WordIndex).
			Int("points", award.Points).
			Int("combo", f.Combo).
			Msg("scored")
	}
}

func (a *app) onTime(seconds float64) {
	a.store.SetLocalTime(seconds)
}

func (a *app) quizHooks() quiz.Hooks {
	return quiz.Hooks{
		OnPresent: func(index int, q quiz.Question) {
			log.Info().
				Int("question", index+1).
				Str("type", string(q.Type)).
				Str("text", q.QuestionText).
				Float64("time_limit", q.EffectiveTimeLimit()).
				Msg("question presented")
		},
		OnResolved: func(index int, res quiz.RoundResult, q quiz.Question) {
			a.store.SetLocalStreak(a.machine.Streak(), a.machine.MaxStreak())
			log.Info().
				Int("question", index+1).
				Str("answered_by", res.ParticipantName).
				Bool("correct", res.IsCorrect).
				Int("points", res.Points).
				Msg("question resolved")
		},
		OnFinished: func(score, maxStreak int) {
			state := a.store.State()
			rec := history.PlayRecord{
				Mode:      string(room.ModeQuiz),
				Score:     score,
				MaxStreak: maxStreak,
			}
			if state.Game.Song != nil {
				rec.SongID = state.Game.Song.ID
				rec.Title = state.Game.Song.Title
				rec.Artist = state.Game.Song.Artist
			}
			if _, err := a.hist.Record(rec); err != nil {
				log.Error().Err(err).Msg("failed to record quiz result")
				return
			}
			log.Info().Int("score", score).Int("max_streak", maxStreak).Msg("quiz finished")
		},
	}
}
