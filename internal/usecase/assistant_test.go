package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"buddy/internal/chat"
	"buddy/internal/domain"
)

type assistantFixture struct {
	assistant *Assistant
	events    *fakeEventSink
	chat      *fakeChat
	timers    *fakeTimers
	launcher  *fakeLauncher
	notifier  *fakeNotifier
}

func newAssistantFixture(results map[string]domain.CommandResult, cfg AssistantConfig) *assistantFixture {
	f := &assistantFixture{
		events:   &fakeEventSink{},
		chat:     &fakeChat{},
		timers:   &fakeTimers{},
		launcher: &fakeLauncher{},
		notifier: &fakeNotifier{},
	}
	cfg.Logger = zerolog.Nop()
	f.assistant = NewAssistant(AssistantDeps{
		Wake:       fakeWake{phrase: "hey buddy", greeting: "Hey, what's up?"},
		Classifier: fakeClassifier{results: results},
		Chat:       f.chat,
		Timers:     f.timers,
		Launcher:   f.launcher,
		Notifier:   f.notifier,
		Events:     f.events,
	}, cfg)
	return f
}

func TestAssistantWakePhraseGreets(t *testing.T) {
	t.Parallel()

	f := newAssistantFixture(nil, AssistantConfig{})
	reply, err := f.assistant.HandleUtterance(context.Background(), " hey buddy ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !reply.Wake || reply.Text != "Hey, what's up?" {
		t.Fatalf("unexpected reply: %+v", reply)
	}
	if spoken := f.events.snapshotSpoken(); len(spoken) != 1 || spoken[0] != "Hey, what's up?" {
		t.Fatalf("expected greeting to be spoken, got %v", spoken)
	}
	if len(f.chat.snapshotRequests()) != 0 {
		t.Fatalf("wake phrase must not reach chat")
	}
	if last := f.events.lastState(); last.state != domain.SessionStateSpeaking || last.reason != domain.SessionReasonWakePhrase {
		t.Fatalf("unexpected state: %+v", last)
	}
}

func TestAssistantLocalTimerCommand(t *testing.T) {
	t.Parallel()

	results := map[string]domain.CommandResult{
		"set a timer for 5 minutes": {
			Handled:  true,
			Response: "Timer set for 5 minutes",
			Action: &domain.CommandAction{
				Kind:  domain.ActionTimer,
				Timer: &domain.TimerPayload{Duration: 300, Label: "5 minutes"},
			},
		},
	}
	f := newAssistantFixture(results, AssistantConfig{})

	reply, err := f.assistant.HandleUtterance(context.Background(), "set a timer for 5 minutes")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reply.Local || reply.Text != "Timer set for 5 minutes" || reply.Action == nil {
		t.Fatalf("unexpected reply: %+v", reply)
	}
	if len(f.timers.added) != 1 || f.timers.added[0] != (addedTimer{duration: 300, label: "5 minutes"}) {
		t.Fatalf("timer was not started: %+v", f.timers.added)
	}
	if len(f.chat.snapshotRequests()) != 0 {
		t.Fatalf("local command must not reach chat")
	}
	if last := f.events.lastState(); last.reason != domain.SessionReasonLocalCommand {
		t.Fatalf("unexpected state: %+v", last)
	}
}

func TestAssistantOpenAppFailureIsReported(t *testing.T) {
	t.Parallel()

	results := map[string]domain.CommandResult{
		"open spotify": {
			Handled:  true,
			Response: "Opening spotify",
			Action:   &domain.CommandAction{Kind: domain.ActionOpenApp, App: &domain.AppPayload{App: "spotify"}},
		},
	}
	f := newAssistantFixture(results, AssistantConfig{})
	f.launcher.err = errors.New("no browser")

	reply, err := f.assistant.HandleUtterance(context.Background(), "open spotify")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply.Text != "Opening spotify" {
		t.Fatalf("unexpected reply: %+v", reply)
	}
	if len(f.launcher.opened) != 1 || f.launcher.opened[0] != "spotify" {
		t.Fatalf("launcher not called: %v", f.launcher.opened)
	}
	if errs := f.events.snapshotErrors(); len(errs) != 1 || errs[0].code != domain.ErrorCodeAppLaunch {
		t.Fatalf("expected app launch error, got %+v", errs)
	}
}

func TestAssistantStreamsChatAndKeepsHistory(t *testing.T) {
	t.Parallel()

	f := newAssistantFixture(nil, AssistantConfig{SearchMode: true, MaxHistory: 1})
	f.chat.deltas = []string{"Paris is ", "the capital."}

	reply, err := f.assistant.HandleUtterance(context.Background(), "what is the capital of france")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply.Text != "Paris is the capital." || reply.Local || reply.Failed {
		t.Fatalf("unexpected reply: %+v", reply)
	}
	if len(f.events.deltas) != 2 || f.events.deltas[0] != "Paris is " {
		t.Fatalf("deltas were not forwarded in order: %v", f.events.deltas)
	}

	f.chat.deltas = []string{"About 2 million."}
	if _, err := f.assistant.HandleUtterance(context.Background(), "how many people live there"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f.chat.deltas = []string{"Sure."}
	if _, err := f.assistant.HandleUtterance(context.Background(), "thanks"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	requests := f.chat.snapshotRequests()
	if len(requests) != 3 {
		t.Fatalf("expected 3 chat requests, got %d", len(requests))
	}
	if !requests[0].IsSearchMode || len(requests[0].Messages) != 1 {
		t.Fatalf("unexpected first request: %+v", requests[0])
	}
	second := requests[1].Messages
	if len(second) != 3 || second[1].Role != domain.ChatRoleAssistant || second[1].Content != "Paris is the capital." {
		t.Fatalf("history was not sent: %+v", second)
	}
	third := requests[2].Messages
	if len(third) != 3 || third[0].Content != "how many people live there" {
		t.Fatalf("history should keep only the latest exchange: %+v", third)
	}
}

func TestAssistantChatFailureSpeaksApology(t *testing.T) {
	t.Parallel()

	f := newAssistantFixture(nil, AssistantConfig{})
	f.chat.err = &chat.Error{Status: 429, Message: chat.MessageRateLimited}

	reply, err := f.assistant.HandleUtterance(context.Background(), "tell me a joke")
	if err != nil {
		t.Fatalf("chat failures are answered, not returned: %v", err)
	}
	if !reply.Failed || reply.Text != chat.MessageRateLimited {
		t.Fatalf("unexpected reply: %+v", reply)
	}
	if spoken := f.events.snapshotSpoken(); len(spoken) != 1 || spoken[0] != chat.MessageRateLimited {
		t.Fatalf("expected apology to be spoken, got %v", spoken)
	}
	if errs := f.events.snapshotErrors(); len(errs) != 1 || errs[0].code != domain.ErrorCodeChat {
		t.Fatalf("expected chat error event, got %+v", errs)
	}
	if last := f.events.lastState(); last.reason != domain.SessionReasonChatFailed {
		t.Fatalf("unexpected state: %+v", last)
	}

	f.chat.err = nil
	f.chat.deltas = []string{"ok"}
	_, _ = f.assistant.HandleUtterance(context.Background(), "again")
	if msgs := f.chat.snapshotRequests()[1].Messages; len(msgs) != 1 {
		t.Fatalf("failed exchanges must not enter history: %+v", msgs)
	}
}

func TestAssistantEmptyChatReplyFallsBack(t *testing.T) {
	t.Parallel()

	f := newAssistantFixture(nil, AssistantConfig{})
	f.chat.deltas = []string{"  "}

	reply, err := f.assistant.HandleUtterance(context.Background(), "hmm")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply.Text != chat.MessageEmptyReply {
		t.Fatalf("unexpected reply: %+v", reply)
	}
}

func TestAssistantMutedDoesNotSpeak(t *testing.T) {
	t.Parallel()

	f := newAssistantFixture(nil, AssistantConfig{Muted: true})
	f.chat.deltas = []string{"Hello!"}

	if _, err := f.assistant.HandleUtterance(context.Background(), "hi"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if spoken := f.events.snapshotSpoken(); len(spoken) != 0 {
		t.Fatalf("muted assistant spoke: %v", spoken)
	}
	if msgs := f.events.snapshotMessages(); len(msgs) != 1 || msgs[0] != "Hello!" {
		t.Fatalf("reply should still be shown: %v", msgs)
	}
	if last := f.events.lastState(); last.state != domain.SessionStateIdle || last.reason != domain.SessionReasonMuted {
		t.Fatalf("unexpected state: %+v", last)
	}

	f.assistant.SetMuted(false)
	f.assistant.SetSearchMode(true)
	status := f.assistant.Status()
	if status.Muted || !status.SearchMode {
		t.Fatalf("unexpected status: %+v", status)
	}
}

func TestAssistantEmptyUtterance(t *testing.T) {
	t.Parallel()

	f := newAssistantFixture(nil, AssistantConfig{})
	if _, err := f.assistant.HandleUtterance(context.Background(), "   "); !errors.Is(err, ErrEmptyUtterance) {
		t.Fatalf("expected ErrEmptyUtterance, got %v", err)
	}
	if len(f.events.users) != 0 {
		t.Fatalf("empty utterance should not be shown")
	}
}

func TestAssistantSpeechFinishedReturnsToIdle(t *testing.T) {
	t.Parallel()

	f := newAssistantFixture(nil, AssistantConfig{})
	f.assistant.SpeechFinished()
	if states := f.events.snapshotStates(); len(states) != 0 {
		t.Fatalf("idle assistant should ignore speech finished: %+v", states)
	}

	_, _ = f.assistant.HandleUtterance(context.Background(), "hey buddy")
	f.assistant.SpeechFinished()
	if last := f.events.lastState(); last.state != domain.SessionStateIdle || last.reason != domain.SessionReasonSpeechFinished {
		t.Fatalf("unexpected state: %+v", last)
	}
	if f.assistant.Status().Active {
		t.Fatalf("assistant should be idle")
	}
}

func TestAssistantTimerCompletedAnnounces(t *testing.T) {
	t.Parallel()

	f := newAssistantFixture(nil, AssistantConfig{})
	timer := domain.Timer{ID: "t1", Label: "5 minutes", Duration: 300, IsComplete: true}

	f.assistant.TimerTicked(domain.Timer{ID: "t1", Remaining: 1})
	f.assistant.TimerCompleted(timer)

	want := "Time's up! Your 5 minutes timer is done."
	if spoken := f.events.snapshotSpoken(); len(spoken) != 1 || spoken[0] != want {
		t.Fatalf("unexpected announcement: %v", spoken)
	}
	if len(f.notifier.sent) != 1 || f.notifier.sent[0] != (notification{title: "Timer complete", body: want}) {
		t.Fatalf("unexpected notification: %+v", f.notifier.sent)
	}
	if len(f.events.updated) != 1 || len(f.events.completed) != 1 {
		t.Fatalf("timer events not forwarded: %+v %+v", f.events.updated, f.events.completed)
	}
}

func TestAssistantTimerNotificationFailure(t *testing.T) {
	t.Parallel()

	f := newAssistantFixture(nil, AssistantConfig{Muted: true})
	f.notifier.err = errors.New("denied")

	f.assistant.TimerCompleted(domain.Timer{ID: "t1", Label: "1 minute"})

	if spoken := f.events.snapshotSpoken(); len(spoken) != 0 {
		t.Fatalf("muted assistant spoke: %v", spoken)
	}
	if errs := f.events.snapshotErrors(); len(errs) != 1 || errs[0].code != domain.ErrorCodeNotification {
		t.Fatalf("expected notification error, got %+v", errs)
	}
}

func TestTimerDoneMessage(t *testing.T) {
	t.Parallel()

	if got := TimerDoneMessage(""); got != "Time's up! Your timer timer is done." {
		t.Fatalf("unexpected message: %q", got)
	}
	if got := TimerDoneMessage("30 seconds"); got != "Time's up! Your 30 seconds timer is done." {
		t.Fatalf("unexpected message: %q", got)
	}
}
