package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"buddy/internal/bootstrap"
	"buddy/internal/config"
	"buddy/internal/domain"
	"buddy/internal/usecase"
)

const (
	eventSession   = "buddy:session"
	eventPartial   = "buddy:partial"
	eventFinal     = "buddy:final"
	eventUser      = "buddy:user"
	eventDelta     = "buddy:delta"
	eventAssistant = "buddy:assistant"
	eventSpeak     = "buddy:speak"
	eventTimer     = "buddy:timer"
	eventTimerDone = "buddy:timer-done"
	eventNotify    = "buddy:notify"
	eventError     = "buddy:error"
)

// App is the Wails application root. It is also the event sink, URL opener
// and notifier handed to the backend.
type App struct {
	ctx context.Context

	services *bootstrap.Services
	cfg      config.Config
	bootErr  error

	wakeMu    sync.Mutex
	wakeTimer *time.Timer
}

func NewApp() *App {
	return &App{}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build(ctx, bootstrap.Options{
		Events:   a,
		Opener:   a,
		Notifier: a,
	})
	if err != nil {
		a.bootErr = err
		a.SessionError(domain.ErrorCodeStartup, err.Error())
		return
	}

	a.services = services
	a.cfg = services.Config
	a.SessionStateChanged(domain.SessionStateIdle, domain.SessionReasonReady)
}

func (a *App) shutdown(context.Context) {
	a.cancelWakeListen()
	if a.services == nil {
		return
	}
	if err := a.services.Close(); err != nil {
		a.services.Logger.Warn().Err(err).Msg("shutdown")
	}
}

// StartListening opens the microphone and starts streaming to Deepgram.
func (a *App) StartListening() (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	a.cancelWakeListen()
	if err := a.services.Controller.Start(a.ctx); err != nil {
		return domain.Status{}, err
	}
	return a.Status(), nil
}

// StopListening ends the utterance and returns what buddy made of it.
func (a *App) StopListening() (domain.StopResult, error) {
	if err := a.requireReady(); err != nil {
		return domain.StopResult{}, err
	}
	result, err := a.services.Controller.Stop(a.ctx)
	if err != nil {
		if errors.Is(err, usecase.ErrNoTranscript) {
			return domain.StopResult{}, nil
		}
		return domain.StopResult{}, err
	}
	a.afterReply(result.Reply)
	return result, nil
}

// AbortListening discards an in-progress utterance.
func (a *App) AbortListening() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	if err := a.services.Controller.Abort(); err != nil {
		if errors.Is(err, usecase.ErrNoActiveSession) {
			return nil
		}
		a.SessionError(domain.ErrorCodeTranscription, err.Error())
		return err
	}
	return nil
}

// SubmitText handles typed input the same way as a spoken utterance.
func (a *App) SubmitText(text string) (domain.Reply, error) {
	if err := a.requireReady(); err != nil {
		return domain.Reply{}, err
	}
	reply, err := a.services.Assistant.HandleUtterance(a.ctx, text)
	if err != nil {
		return domain.Reply{}, err
	}
	a.afterReply(reply)
	return reply, nil
}

// SpeechFinished is called by the UI when speech synthesis ends.
func (a *App) SpeechFinished() {
	if a.requireReady() != nil {
		return
	}
	a.services.Assistant.SpeechFinished()
}

func (a *App) SetSearchMode(enabled bool) domain.Status {
	if a.requireReady() == nil {
		a.services.Assistant.SetSearchMode(enabled)
	}
	return a.Status()
}

func (a *App) SetMuted(muted bool) domain.Status {
	if a.requireReady() == nil {
		a.services.Assistant.SetMuted(muted)
	}
	return a.Status()
}

// ResetConversation clears the chat history.
func (a *App) ResetConversation() {
	if a.requireReady() == nil {
		a.services.Assistant.ResetConversation()
	}
}

func (a *App) ListTimers() []domain.Timer {
	if a.requireReady() != nil {
		return nil
	}
	return a.services.Timers.List()
}

func (a *App) CancelTimer(id string) []domain.Timer {
	if a.requireReady() != nil {
		return nil
	}
	a.services.Timers.Remove(id)
	return a.services.Timers.List()
}

// Status merges the listening session with the assistant state.
func (a *App) Status() domain.Status {
	if a.services == nil {
		if a.bootErr != nil {
			return domain.Status{State: domain.SessionStateError, Active: false, Message: a.bootErr.Error()}
		}
		return domain.Status{State: domain.SessionStateIdle, Active: false}
	}
	status := a.services.Assistant.Status()
	if listening := a.services.Controller.Status(); listening.Active {
		status.State = listening.State
		status.Active = true
	}
	return status
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}

	return map[string]string{
		"provider":         "Deepgram",
		"model":            a.cfg.Deepgram.Model,
		"language":         a.cfg.Deepgram.Language,
		"rulesFile":        a.cfg.Rules.Path,
		"audioInput":       a.cfg.Audio.InputDevice,
		"audioInputFormat": a.cfg.Audio.InputFormat,
		"chatConfigured":   fmt.Sprint(a.cfg.Chat.URL != ""),
		"platform":         a.cfg.Launcher.Platform,
	}
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.services == nil {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

// afterReply reopens the microphone once a wake greeting has been spoken.
func (a *App) afterReply(reply domain.Reply) {
	if !reply.Wake {
		return
	}
	a.scheduleWakeListen(a.cfg.Assistant.WakeListenDelay)
}

func (a *App) scheduleWakeListen(delay time.Duration) {
	a.wakeMu.Lock()
	defer a.wakeMu.Unlock()
	if a.wakeTimer != nil {
		a.wakeTimer.Stop()
	}
	a.wakeTimer = time.AfterFunc(delay, func() {
		if _, err := a.StartListening(); err != nil && a.services != nil {
			a.services.Logger.Warn().Err(err).Msg("wake listen failed")
		}
	})
}

func (a *App) cancelWakeListen() {
	a.wakeMu.Lock()
	defer a.wakeMu.Unlock()
	if a.wakeTimer != nil {
		a.wakeTimer.Stop()
		a.wakeTimer = nil
	}
}

// OpenURL implements ports.URLOpener with the system browser.
func (a *App) OpenURL(ctx context.Context, url string) error {
	if a.ctx == nil {
		return fmt.Errorf("application is not initialized")
	}
	if strings.TrimSpace(url) == "" {
		return fmt.Errorf("empty url")
	}
	runtime.BrowserOpenURL(a.ctx, url)
	return nil
}

// Notify implements ports.Notifier; the UI raises the desktop notification.
func (a *App) Notify(_ context.Context, title string, body string) error {
	if a.ctx == nil {
		return fmt.Errorf("application is not initialized")
	}
	runtime.EventsEmit(a.ctx, eventNotify, map[string]string{"title": title, "body": body})
	return nil
}

// SessionStateChanged emits session lifecycle updates to the frontend.
func (a *App) SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventSession, map[string]string{
		"state":   string(state),
		"reason":  string(reason),
		"message": sessionReasonMessage(reason),
	})
}

// PartialTranscript emits live partial transcript text.
func (a *App) PartialTranscript(text string) {
	a.emitText(eventPartial, text)
}

// FinalTranscript emits final transcript output.
func (a *App) FinalTranscript(raw string, transformed string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventFinal, map[string]string{
		"raw":         raw,
		"transformed": transformed,
	})
}

func (a *App) UserMessage(text string)      { a.emitText(eventUser, text) }
func (a *App) AssistantDelta(text string)   { a.emitText(eventDelta, text) }
func (a *App) AssistantMessage(text string) { a.emitText(eventAssistant, text) }

// Speak asks the UI to synthesize text; it answers with SpeechFinished.
func (a *App) Speak(text string) { a.emitText(eventSpeak, text) }

func (a *App) TimerUpdated(timer domain.Timer) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventTimer, timer)
}

func (a *App) TimerCompleted(timer domain.Timer) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventTimerDone, timer)
}

// SessionError emits backend errors to the UI.
func (a *App) SessionError(code domain.ErrorCode, detail string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventError, map[string]string{
		"code":    string(code),
		"message": errorMessage(code, detail),
		"detail":  detail,
	})
}

func (a *App) emitText(event string, text string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, event, map[string]string{"text": text})
}

func sessionReasonMessage(reason domain.SessionStateReason) string {
	switch reason {
	case domain.SessionReasonReady:
		return "Ready"
	case domain.SessionReasonListeningStarted:
		return "Listening..."
	case domain.SessionReasonListeningRestarted:
		return "Listening restarted; previous audio discarded"
	case domain.SessionReasonTranscribing:
		return "Transcribing..."
	case domain.SessionReasonListeningDiscarded:
		return "Listening cancelled"
	case domain.SessionReasonNoTranscript:
		return "Didn't catch that"
	case domain.SessionReasonTranscriptionFailed:
		return "Transcription failed"
	case domain.SessionReasonRulesFailed:
		return "Rules processing failed"
	case domain.SessionReasonThinking:
		return "Thinking..."
	case domain.SessionReasonLocalCommand:
		return "Done"
	case domain.SessionReasonAssistantReply:
		return "Speaking"
	case domain.SessionReasonWakePhrase:
		return "I'm here"
	case domain.SessionReasonMuted:
		return "Muted"
	case domain.SessionReasonChatFailed:
		return "Assistant unavailable"
	case domain.SessionReasonSpeechFinished:
		return "Ready"
	default:
		return ""
	}
}

func errorMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeStartup:
		return "Startup failed"
	case domain.ErrorCodeAudioStop:
		return "Audio stop issue"
	case domain.ErrorCodeAudioStream:
		return "Audio streaming issue"
	case domain.ErrorCodeRules:
		return "Rules processing failed"
	case domain.ErrorCodeTranscription:
		return "Transcription error"
	case domain.ErrorCodeChat:
		return "Assistant request failed"
	case domain.ErrorCodeAppLaunch:
		return "Could not open app"
	case domain.ErrorCodeNotification:
		return "Notification failed"
	default:
		if detail == "" {
			return "Unknown error"
		}
		return detail
	}
}
