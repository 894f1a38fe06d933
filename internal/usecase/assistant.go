package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"buddy/internal/chat"
	"buddy/internal/domain"
	"buddy/internal/metrics"
	"buddy/internal/ports"
)

var ErrEmptyUtterance = errors.New("empty utterance")

const timerCompleteTitle = "Timer complete"

// AssistantDeps are the collaborators an Assistant dispatches to.
type AssistantDeps struct {
	Wake       ports.WakeDetector
	Classifier ports.CommandClassifier
	Chat       ports.ChatStreamer
	Timers     ports.TimerScheduler
	Launcher   ports.AppLauncher
	Notifier   ports.Notifier
	Events     ports.EventSink
}

type AssistantConfig struct {
	SearchMode bool
	Muted      bool
	MaxHistory int
	Logger     zerolog.Logger
}

// Assistant answers utterances: wake phrases get a greeting, recognised
// commands are handled on the device, and everything else goes to chat.
// Utterances are handled one at a time.
type Assistant struct {
	deps   AssistantDeps
	logger zerolog.Logger

	handleMu sync.Mutex

	mu         sync.Mutex
	history    *conversation
	searchMode bool
	muted      bool
	state      domain.SessionState
}

func NewAssistant(deps AssistantDeps, cfg AssistantConfig) *Assistant {
	return &Assistant{
		deps:       deps,
		logger:     cfg.Logger.With().Str("component", "assistant").Logger(),
		history:    newConversation(cfg.MaxHistory),
		searchMode: cfg.SearchMode,
		muted:      cfg.Muted,
		state:      domain.SessionStateIdle,
	}
}

// HandleUtterance implements ports.UtteranceHandler. Failures of the chat
// endpoint are answered with a spoken apology rather than returned.
func (a *Assistant) HandleUtterance(ctx context.Context, text string) (domain.Reply, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		metrics.Utterances.WithLabelValues("empty").Inc()
		return domain.Reply{}, ErrEmptyUtterance
	}

	a.handleMu.Lock()
	defer a.handleMu.Unlock()

	a.deps.Events.UserMessage(text)
	a.setState(domain.SessionStateThinking, domain.SessionReasonThinking)

	if a.deps.Wake != nil && a.deps.Wake.Detect(text) {
		metrics.Utterances.WithLabelValues("wake").Inc()
		reply := domain.Reply{Utterance: text, Text: a.deps.Wake.Greeting(), Wake: true}
		return a.respond(reply, domain.SessionReasonWakePhrase), nil
	}

	if result := a.deps.Classifier.Classify(text); result.Handled {
		metrics.Utterances.WithLabelValues("local").Inc()
		reply := domain.Reply{Utterance: text, Text: result.Response, Local: true, Action: result.Action}
		a.perform(ctx, result.Action)
		return a.respond(reply, domain.SessionReasonLocalCommand), nil
	}

	metrics.Utterances.WithLabelValues("chat").Inc()
	return a.ask(ctx, text), nil
}

// perform carries out the side effect of a local command.
func (a *Assistant) perform(ctx context.Context, action *domain.CommandAction) {
	if action == nil {
		return
	}
	metrics.LocalCommands.WithLabelValues(string(action.Kind)).Inc()

	switch action.Kind {
	case domain.ActionTimer, domain.ActionAlarm:
		if action.Timer == nil {
			return
		}
		id := a.deps.Timers.Add(action.Timer.Duration, action.Timer.Label)
		a.logger.Info().Str("timer", id).Int("seconds", action.Timer.Duration).Msg("timer started")
	case domain.ActionOpenApp:
		if action.App == nil {
			return
		}
		target, err := a.deps.Launcher.Open(ctx, action.App.App)
		if err != nil {
			a.logger.Warn().Err(err).Str("app", action.App.App).Msg("app launch failed")
			a.deps.Events.SessionError(domain.ErrorCodeAppLaunch, err.Error())
			return
		}
		a.logger.Info().Str("app", action.App.App).Str("target", target).Msg("app opened")
	}
}

func (a *Assistant) ask(ctx context.Context, text string) domain.Reply {
	a.mu.Lock()
	req := ports.ChatRequest{Messages: a.history.Request(text), IsSearchMode: a.searchMode}
	a.mu.Unlock()

	var answer strings.Builder
	err := a.deps.Chat.Stream(ctx, req, func(delta string) {
		answer.WriteString(delta)
		a.deps.Events.AssistantDelta(delta)
	})
	if err != nil {
		a.logger.Warn().Err(err).Bool("search", req.IsSearchMode).Msg("chat failed")
		a.deps.Events.SessionError(domain.ErrorCodeChat, err.Error())
		reply := domain.Reply{Utterance: text, Text: chat.UserMessage(err), Failed: true}
		return a.respond(reply, domain.SessionReasonChatFailed)
	}

	full := strings.TrimSpace(answer.String())
	if full == "" {
		return a.respond(domain.Reply{Utterance: text, Text: chat.MessageEmptyReply}, domain.SessionReasonAssistantReply)
	}

	a.mu.Lock()
	a.history.AddExchange(text, full)
	a.mu.Unlock()
	return a.respond(domain.Reply{Utterance: text, Text: full}, domain.SessionReasonAssistantReply)
}

// respond publishes the reply and moves to speaking, or straight to idle
// when muted.
func (a *Assistant) respond(reply domain.Reply, reason domain.SessionStateReason) domain.Reply {
	a.deps.Events.AssistantMessage(reply.Text)

	if a.Muted() || reply.Text == "" {
		a.setState(domain.SessionStateIdle, domain.SessionReasonMuted)
		return reply
	}
	a.deps.Events.Speak(reply.Text)
	a.setState(domain.SessionStateSpeaking, reason)
	return reply
}

// SpeechFinished is called by the front-end once synthesis ends.
func (a *Assistant) SpeechFinished() {
	a.mu.Lock()
	speaking := a.state == domain.SessionStateSpeaking
	a.mu.Unlock()
	if speaking {
		a.setState(domain.SessionStateIdle, domain.SessionReasonSpeechFinished)
	}
}

// TimerTicked forwards a countdown update to the UI.
func (a *Assistant) TimerTicked(timer domain.Timer) {
	a.deps.Events.TimerUpdated(timer)
}

// TimerCompleted announces a finished timer.
func (a *Assistant) TimerCompleted(timer domain.Timer) {
	message := TimerDoneMessage(timer.Label)
	a.deps.Events.TimerCompleted(timer)
	a.deps.Events.AssistantMessage(message)
	if !a.Muted() {
		a.deps.Events.Speak(message)
	}
	if a.deps.Notifier == nil {
		return
	}
	if err := a.deps.Notifier.Notify(context.Background(), timerCompleteTitle, message); err != nil {
		a.logger.Warn().Err(err).Str("timer", timer.ID).Msg("timer notification failed")
		a.deps.Events.SessionError(domain.ErrorCodeNotification, err.Error())
	}
}

func TimerDoneMessage(label string) string {
	if strings.TrimSpace(label) == "" {
		label = "timer"
	}
	return fmt.Sprintf("Time's up! Your %s timer is done.", label)
}

func (a *Assistant) SetSearchMode(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.searchMode = enabled
}

func (a *Assistant) SetMuted(muted bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.muted = muted
}

func (a *Assistant) Muted() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.muted
}

// ResetConversation forgets the chat history.
func (a *Assistant) ResetConversation() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.history.Reset()
}

func (a *Assistant) Status() domain.Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return domain.Status{
		State:      a.state,
		Active:     a.state != domain.SessionStateIdle,
		SearchMode: a.searchMode,
		Muted:      a.muted,
	}
}

func (a *Assistant) setState(state domain.SessionState, reason domain.SessionStateReason) {
	a.mu.Lock()
	a.state = state
	a.mu.Unlock()
	a.deps.Events.SessionStateChanged(state, reason)
}
