package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"buddy/internal/domain"
	"buddy/internal/metrics"
	"buddy/internal/ports"
)

var (
	ErrNoActiveSession = errors.New("no active listening session")
	ErrNoTranscript    = errors.New("no transcript captured")
)

const streamDrainTimeout = 4 * time.Second

// Config controls push-to-talk capture.
type Config struct {
	Audio          ports.AudioConfig
	Streaming      ports.StreamingConfig
	ChunkSize      int
	StreamingGrace time.Duration
	Logger         zerolog.Logger
}

// SessionController runs push-to-talk listening: it captures audio, streams
// it to the transcription provider and hands the final transcript on.
type SessionController struct {
	audio     ports.AudioCapture
	provider  ports.TranscriptionProvider
	events    ports.EventSink
	finalizer utteranceFinalizer
	cfg       Config
	logger    zerolog.Logger

	mu      sync.Mutex
	current *listenSession
}

func NewSessionController(
	audio ports.AudioCapture,
	provider ports.TranscriptionProvider,
	rules ports.RulesEngine,
	handler ports.UtteranceHandler,
	events ports.EventSink,
	cfg Config,
) *SessionController {
	if cfg.ChunkSize < 256 {
		cfg.ChunkSize = 4096
	}
	logger := cfg.Logger.With().Str("component", "session").Logger()
	return &SessionController{
		audio:    audio,
		provider: provider,
		events:   events,
		finalizer: utteranceFinalizer{
			rules:   rules,
			handler: handler,
			events:  events,
			logger:  logger,
		},
		cfg:    cfg,
		logger: logger,
	}
}

// Start begins listening. A session already in progress is discarded.
func (c *SessionController) Start(ctx context.Context) error {
	c.mu.Lock()
	previous := c.current
	c.current = nil
	c.mu.Unlock()

	if previous != nil {
		c.stopSession(previous)
		metrics.ListenSessions.WithLabelValues("restarted").Inc()
	}

	sessionCtx, cancel := context.WithCancel(ctx)
	stream, err := c.provider.StartStreaming(sessionCtx, c.cfg.Streaming)
	if err != nil {
		cancel()
		c.events.SessionError(domain.ErrorCodeStartup, err.Error())
		return err
	}

	audioSession, err := c.audio.Start(sessionCtx, c.cfg.Audio)
	if err != nil {
		_ = stream.Close()
		cancel()
		c.events.SessionError(domain.ErrorCodeStartup, err.Error())
		return err
	}

	active := &listenSession{
		cancel:     cancel,
		audio:      audioSession,
		stream:     stream,
		startedAt:  time.Now(),
		state:      domain.SessionStateListening,
		transcript: newTranscriptAggregator(),
		eventsDone: make(chan struct{}),
	}
	active.pump = startAudioPump(audioSession, stream, c.cfg.ChunkSize)

	c.mu.Lock()
	c.current = active
	c.mu.Unlock()

	go consumeTranscriptionEvents(active.stream, active.transcript, c.events, active.eventsDone)

	reason := domain.SessionReasonListeningStarted
	if previous != nil {
		reason = domain.SessionReasonListeningRestarted
	}
	c.logger.Debug().Str("reason", string(reason)).Msg("listening")
	c.events.SessionStateChanged(domain.SessionStateListening, reason)
	return nil
}

// Stop ends listening, waits for the provider to flush, and hands the
// transcript to the assistant. The assistant owns the state from then on.
func (c *SessionController) Stop(ctx context.Context) (domain.StopResult, error) {
	active, err := c.getCurrent()
	if err != nil {
		return domain.StopResult{}, err
	}

	active.setState(domain.SessionStateThinking)
	c.events.SessionStateChanged(domain.SessionStateThinking, domain.SessionReasonTranscribing)

	if err := active.audio.Stop(); err != nil {
		c.logger.Warn().Err(err).Msg("audio capture did not stop cleanly")
		c.events.SessionError(domain.ErrorCodeAudioStop, "failed to stop audio capture cleanly")
	}

	if c.cfg.StreamingGrace > 0 {
		timer := time.NewTimer(c.cfg.StreamingGrace)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
		}
	}

	_ = active.stream.CloseSend()
	streamErr := waitForStream(active.stream, streamDrainTimeout)
	<-active.eventsDone
	sent, _ := active.pump.Wait()
	active.pump.report(c.events)

	raw := active.transcript.Raw()
	c.logger.Debug().
		Int64("audio_bytes", sent).
		Dur("listened", time.Since(active.startedAt)).
		Int("chars", len(raw)).
		Msg("listening stopped")

	if raw == "" && streamErr != nil {
		c.events.SessionError(domain.ErrorCodeTranscription, streamErr.Error())
		c.finishSession(active, domain.SessionStateError, domain.SessionReasonTranscriptionFailed, "failed")
		return domain.StopResult{}, streamErr
	}
	if raw == "" {
		c.finishSession(active, domain.SessionStateIdle, domain.SessionReasonNoTranscript, "empty")
		return domain.StopResult{}, ErrNoTranscript
	}

	c.release(active, "transcribed")
	return c.finalizer.Finalize(ctx, raw)
}

// Abort discards an active session without handling its transcript.
func (c *SessionController) Abort() error {
	active, err := c.getCurrent()
	if err != nil {
		return err
	}

	c.stopSession(active)
	c.finishSession(active, domain.SessionStateIdle, domain.SessionReasonListeningDiscarded, "discarded")
	return nil
}

// Status reports the listening session, if any.
func (c *SessionController) Status() domain.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return domain.Status{State: domain.SessionStateIdle}
	}
	state := c.current.getState()
	return domain.Status{State: state, Active: state != domain.SessionStateIdle}
}

func (c *SessionController) getCurrent() (*listenSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return nil, ErrNoActiveSession
	}
	return c.current, nil
}

func (c *SessionController) stopSession(active *listenSession) {
	active.cancel()
	_ = active.audio.Stop()
	_ = active.stream.Close()
	<-active.eventsDone
	_, _ = active.pump.Wait()
}

func (c *SessionController) release(active *listenSession, outcome string) {
	active.cancel()
	metrics.ListenSessions.WithLabelValues(outcome).Inc()

	c.mu.Lock()
	if c.current == active {
		c.current = nil
	}
	c.mu.Unlock()
}

func (c *SessionController) finishSession(active *listenSession, state domain.SessionState, reason domain.SessionStateReason, outcome string) {
	active.setState(state)
	c.release(active, outcome)
	c.events.SessionStateChanged(state, reason)
}
