package usecase

import (
	"context"

	"github.com/rs/zerolog"

	"buddy/internal/domain"
	"buddy/internal/ports"
)

// utteranceFinalizer rewrites a raw transcript with the rules and hands the
// result to the assistant.
type utteranceFinalizer struct {
	rules   ports.RulesEngine
	handler ports.UtteranceHandler
	events  ports.EventSink
	logger  zerolog.Logger
}

func (f utteranceFinalizer) Finalize(ctx context.Context, raw string) (domain.StopResult, error) {
	transformed, err := f.rules.Apply(raw)
	if err != nil {
		// The raw words are still worth answering.
		f.logger.Warn().Err(err).Msg("transcript rules failed; using raw transcript")
		f.events.SessionError(domain.ErrorCodeRules, err.Error())
		transformed = raw
	}

	f.events.FinalTranscript(raw, transformed)
	result := domain.StopResult{RawTranscript: raw, FinalTranscript: transformed}

	reply, err := f.handler.HandleUtterance(ctx, transformed)
	if err != nil {
		return result, err
	}
	result.Reply = reply
	return result, nil
}
