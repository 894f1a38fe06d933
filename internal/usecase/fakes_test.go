package usecase

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"buddy/internal/domain"
	"buddy/internal/ports"
)

type fakeAudioCapture struct {
	sessions []ports.AudioSession
	err      error
	calls    int
}

func (f *fakeAudioCapture) Start(_ context.Context, _ ports.AudioConfig) (ports.AudioSession, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.calls >= len(f.sessions) {
		return nil, errors.New("no audio session configured")
	}
	session := f.sessions[f.calls]
	f.calls++
	return session, nil
}

type fakeAudioSession struct {
	mu        sync.Mutex
	chunks    [][]byte
	index     int
	stopCalls int
	stopErr   error
}

func (f *fakeAudioSession) Read(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.index >= len(f.chunks) {
		return 0, io.EOF
	}
	n := copy(p, f.chunks[f.index])
	f.index++
	return n, nil
}

func (f *fakeAudioSession) Close() error { return nil }

func (f *fakeAudioSession) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopCalls++
	return f.stopErr
}

func (f *fakeAudioSession) stops() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopCalls
}

type fakeProvider struct {
	sessions []ports.StreamingSession
	err      error
	calls    int
}

func (f *fakeProvider) StartStreaming(_ context.Context, _ ports.StreamingConfig) (ports.StreamingSession, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.calls >= len(f.sessions) {
		return nil, errors.New("no stream session configured")
	}
	session := f.sessions[f.calls]
	f.calls++
	return session, nil
}

type fakeStreamingSession struct {
	mu         sync.Mutex
	events     chan domain.TranscriptEvent
	sent       [][]byte
	waitErr    error
	closeSend  int
	closeCalls int
	closed     bool
}

func newFakeStreamingSession(events ...domain.TranscriptEvent) *fakeStreamingSession {
	s := &fakeStreamingSession{events: make(chan domain.TranscriptEvent, 16)}
	for _, event := range events {
		s.events <- event
	}
	return s
}

func (f *fakeStreamingSession) SendAudio(chunk []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, append([]byte(nil), chunk...))
	return nil
}

func (f *fakeStreamingSession) CloseSend() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeSend++
	f.closeEventsLocked()
	return nil
}

func (f *fakeStreamingSession) Events() <-chan domain.TranscriptEvent { return f.events }

func (f *fakeStreamingSession) Wait() error {
	time.Sleep(5 * time.Millisecond)
	return f.waitErr
}

func (f *fakeStreamingSession) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCalls++
	f.closeEventsLocked()
	return nil
}

func (f *fakeStreamingSession) closeEventsLocked() {
	if !f.closed {
		close(f.events)
		f.closed = true
	}
}

func (f *fakeStreamingSession) closes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closeCalls
}

type fakeRules struct {
	transform string
	err       error
}

func (f *fakeRules) Apply(text string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if f.transform != "" {
		return f.transform, nil
	}
	return text, nil
}

type fakeHandler struct {
	mu    sync.Mutex
	texts []string
	reply domain.Reply
	err   error
}

func (f *fakeHandler) HandleUtterance(_ context.Context, text string) (domain.Reply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	if f.err != nil {
		return domain.Reply{}, f.err
	}
	reply := f.reply
	reply.Utterance = text
	return reply, nil
}

type fakeEventSink struct {
	mu sync.Mutex

	states    []stateEvent
	finals    []finalEvent
	partials  []string
	users     []string
	deltas    []string
	messages  []string
	spoken    []string
	updated   []domain.Timer
	completed []domain.Timer
	errors    []errEvent
}

type stateEvent struct {
	state  domain.SessionState
	reason domain.SessionStateReason
}

type finalEvent struct {
	raw         string
	transformed string
}

type errEvent struct {
	code   domain.ErrorCode
	detail string
}

func (f *fakeEventSink) SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = append(f.states, stateEvent{state: state, reason: reason})
}

func (f *fakeEventSink) PartialTranscript(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.partials = append(f.partials, text)
}

func (f *fakeEventSink) FinalTranscript(raw string, transformed string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finals = append(f.finals, finalEvent{raw: raw, transformed: transformed})
}

func (f *fakeEventSink) UserMessage(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users = append(f.users, text)
}

func (f *fakeEventSink) AssistantDelta(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deltas = append(f.deltas, text)
}

func (f *fakeEventSink) AssistantMessage(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, text)
}

func (f *fakeEventSink) Speak(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.spoken = append(f.spoken, text)
}

func (f *fakeEventSink) TimerUpdated(timer domain.Timer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updated = append(f.updated, timer)
}

func (f *fakeEventSink) TimerCompleted(timer domain.Timer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed = append(f.completed, timer)
}

func (f *fakeEventSink) SessionError(code domain.ErrorCode, detail string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, errEvent{code: code, detail: detail})
}

func (f *fakeEventSink) snapshotStates() []stateEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]stateEvent(nil), f.states...)
}

func (f *fakeEventSink) lastState() stateEvent {
	states := f.snapshotStates()
	if len(states) == 0 {
		return stateEvent{}
	}
	return states[len(states)-1]
}

func (f *fakeEventSink) snapshotErrors() []errEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]errEvent(nil), f.errors...)
}

func (f *fakeEventSink) snapshotSpoken() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.spoken...)
}

func (f *fakeEventSink) snapshotMessages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.messages...)
}

type fakeWake struct {
	phrase   string
	greeting string
}

func (f fakeWake) Detect(text string) bool { return f.phrase != "" && text == f.phrase }
func (f fakeWake) Greeting() string        { return f.greeting }

type fakeClassifier struct {
	results map[string]domain.CommandResult
}

func (f fakeClassifier) Classify(text string) domain.CommandResult {
	return f.results[text]
}

type fakeChat struct {
	mu       sync.Mutex
	deltas   []string
	err      error
	requests []ports.ChatRequest
}

func (f *fakeChat) Stream(_ context.Context, req ports.ChatRequest, onDelta func(text string)) error {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	deltas := append([]string(nil), f.deltas...)
	err := f.err
	f.mu.Unlock()

	for _, delta := range deltas {
		onDelta(delta)
	}
	return err
}

func (f *fakeChat) snapshotRequests() []ports.ChatRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ports.ChatRequest(nil), f.requests...)
}

type addedTimer struct {
	duration int
	label    string
}

type fakeTimers struct {
	mu    sync.Mutex
	added []addedTimer
}

func (f *fakeTimers) Add(duration int, label string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.added = append(f.added, addedTimer{duration: duration, label: label})
	return "timer-1"
}

func (f *fakeTimers) Remove(string)        {}
func (f *fakeTimers) Clear()               {}
func (f *fakeTimers) List() []domain.Timer { return nil }

type fakeLauncher struct {
	opened []string
	err    error
}

func (f *fakeLauncher) Open(_ context.Context, name string) (string, error) {
	f.opened = append(f.opened, name)
	if f.err != nil {
		return "", f.err
	}
	return "https://example.com/" + name, nil
}

type notification struct {
	title string
	body  string
}

type fakeNotifier struct {
	sent []notification
	err  error
}

func (f *fakeNotifier) Notify(_ context.Context, title string, body string) error {
	f.sent = append(f.sent, notification{title: title, body: body})
	return f.err
}
