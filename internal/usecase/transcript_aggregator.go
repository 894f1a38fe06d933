package usecase

import (
	"strings"
	"sync"

	"buddy/internal/domain"
	"buddy/internal/ports"
)

// transcriptAggregator joins final segments and tracks the pending partial
// so the UI can show the running utterance.
type transcriptAggregator struct {
	mu      sync.Mutex
	finals  []string
	partial string
	last    string
}

func newTranscriptAggregator() *transcriptAggregator {
	return &transcriptAggregator{}
}

func (a *transcriptAggregator) Add(event domain.TranscriptEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	text := strings.TrimSpace(event.Text)
	if text == "" {
		return
	}
	a.last = text
	if event.Kind == domain.TranscriptKindFinal {
		a.finals = append(a.finals, text)
		a.partial = ""
		return
	}
	a.partial = text
}

// Display is the finalized text followed by the pending partial.
func (a *transcriptAggregator) Display() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return strings.TrimSpace(strings.Join(append(append([]string(nil), a.finals...), a.partial), " "))
}

// Raw is the best transcript for the session. A partial that never
// finalized is kept when it extends the finalized text.
func (a *transcriptAggregator) Raw() string {
	a.mu.Lock()
	defer a.mu.Unlock()

	joined := strings.TrimSpace(strings.Join(a.finals, " "))
	switch {
	case joined == "":
		return a.last
	case a.partial == "", strings.HasSuffix(joined, a.partial):
		return joined
	default:
		return joined + " " + a.partial
	}
}

func consumeTranscriptionEvents(
	session ports.StreamingSession,
	transcript *transcriptAggregator,
	events ports.EventSink,
	done chan struct{},
) {
	defer close(done)

	for event := range session.Events() {
		if strings.TrimSpace(event.Text) == "" {
			continue
		}
		transcript.Add(event)
		events.PartialTranscript(transcript.Display())
	}
}
