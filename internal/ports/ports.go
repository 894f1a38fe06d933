package ports

import (
	"context"
	"io"

	"buddy/internal/domain"
)

// AudioConfig describes how the microphone should be captured.
type AudioConfig struct {
	SampleRate  int
	Channels    int
	InputFormat string
	InputDevice string
}

// AudioSession is a live capture session.
type AudioSession interface {
	io.ReadCloser
	Stop() error
}

// AudioCapture creates microphone capture sessions.
type AudioCapture interface {
	Start(ctx context.Context, cfg AudioConfig) (AudioSession, error)
}

// StreamingConfig describes provider-agnostic streaming settings.
type StreamingConfig struct {
	SampleRate     int
	Channels       int
	Encoding       string
	InterimResults bool
}

// StreamingSession is an active provider websocket session.
type StreamingSession interface {
	SendAudio(chunk []byte) error
	CloseSend() error
	Events() <-chan domain.TranscriptEvent
	Wait() error
	Close() error
}

// TranscriptionProvider starts streaming transcription sessions.
type TranscriptionProvider interface {
	StartStreaming(ctx context.Context, cfg StreamingConfig) (StreamingSession, error)
}

// RulesEngine rewrites transcripts using deterministic rules.
type RulesEngine interface {
	Apply(text string) (string, error)
}

// UtteranceHandler consumes one final transcript.
type UtteranceHandler interface {
	HandleUtterance(ctx context.Context, text string) (domain.Reply, error)
}

// WakeDetector recognises wake phrases and answers them.
type WakeDetector interface {
	Detect(text string) bool
	Greeting() string
}

// CommandClassifier decides whether an utterance is handled locally.
type CommandClassifier interface {
	Classify(text string) domain.CommandResult
}

// ChatRequest is one exchange with the remote chat endpoint.
type ChatRequest struct {
	Messages     []domain.ChatMessage
	IsSearchMode bool
}

// ChatStreamer streams assistant text deltas for a conversation.
type ChatStreamer interface {
	Stream(ctx context.Context, req ChatRequest, onDelta func(text string)) error
}

// TimerScheduler owns active countdowns.
type TimerScheduler interface {
	Add(duration int, label string) string
	Remove(id string)
	Clear()
	List() []domain.Timer
}

// AppLauncher resolves and opens an application by spoken name.
type AppLauncher interface {
	Open(ctx context.Context, name string) (string, error)
}

// URLOpener hands a URL to the host platform.
type URLOpener interface {
	OpenURL(ctx context.Context, url string) error
}

// Notifier shows a user-visible notification.
type Notifier interface {
	Notify(ctx context.Context, title string, body string) error
}

// EventSink emits backend state/events to the UI.
type EventSink interface {
	SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason)
	PartialTranscript(text string)
	FinalTranscript(raw string, transformed string)
	UserMessage(text string)
	AssistantDelta(text string)
	AssistantMessage(text string)
	Speak(text string)
	TimerUpdated(timer domain.Timer)
	TimerCompleted(timer domain.Timer)
	SessionError(code domain.ErrorCode, detail string)
}
