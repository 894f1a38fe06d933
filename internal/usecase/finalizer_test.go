package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"buddy/internal/domain"
)

func TestUtteranceFinalizerRewritesBeforeHandling(t *testing.T) {
	t.Parallel()

	events := &fakeEventSink{}
	handler := &fakeHandler{reply: domain.Reply{Text: "It's 3:04 PM", Local: true}}
	f := utteranceFinalizer{rules: &fakeRules{transform: "what time is it"}, handler: handler, events: events, logger: zerolog.Nop()}

	result, err := f.Finalize(context.Background(), "what tim is it")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.RawTranscript != "what tim is it" || result.FinalTranscript != "what time is it" {
		t.Fatalf("unexpected transcripts: %+v", result)
	}
	if result.Reply.Text != "It's 3:04 PM" {
		t.Fatalf("unexpected reply: %+v", result.Reply)
	}
	if len(events.finals) != 1 || events.finals[0].raw != "what tim is it" {
		t.Fatalf("expected final transcript event, got %+v", events.finals)
	}
}

func TestUtteranceFinalizerRulesFailure(t *testing.T) {
	t.Parallel()

	events := &fakeEventSink{}
	handler := &fakeHandler{}
	f := utteranceFinalizer{rules: &fakeRules{err: errors.New("rules")}, handler: handler, events: events, logger: zerolog.Nop()}

	result, err := f.Finalize(context.Background(), "raw")
	if err != nil {
		t.Fatalf("rules failure should not fail the utterance: %v", err)
	}
	if result.FinalTranscript != "raw" || len(handler.texts) != 1 || handler.texts[0] != "raw" {
		t.Fatalf("expected raw transcript to be handled: %+v %v", result, handler.texts)
	}
	if errs := events.snapshotErrors(); len(errs) != 1 || errs[0].code != domain.ErrorCodeRules {
		t.Fatalf("expected rules error event, got %+v", errs)
	}
}
