package commands

import (
	"strings"
	"time"

	"buddy/internal/domain"
)

var (
	timeKeywords = []string{"what time", "current time"}
	dateKeywords = []string{"what date", "today's date", "what is today", "what's today", "the date"}
	dayKeywords  = []string{"what day", "day is it"}
)

// Classifier decides whether an utterance can be answered without the remote
// assistant. It is safe for concurrent use.
type Classifier struct {
	now func() time.Time
}

// NewClassifier builds a classifier reading the current time from now.
// A nil now uses time.Now.
func NewClassifier(now func() time.Time) *Classifier {
	if now == nil {
		now = time.Now
	}
	return &Classifier{now: now}
}

// Classify implements ports.CommandClassifier.
func (c *Classifier) Classify(text string) domain.CommandResult {
	return Classify(text, c.now())
}

// Classify is the pure classification of one utterance at instant now.
// Checks run in a fixed order and the first hit wins.
func Classify(text string, now time.Time) domain.CommandResult {
	input := strings.ToLower(strings.TrimSpace(text))
	if input == "" {
		return domain.CommandResult{}
	}

	if input == "time" || containsAny(input, timeKeywords) {
		return domain.CommandResult{
			Handled:  true,
			Response: TimeResponse(now),
			Action:   &domain.CommandAction{Kind: domain.ActionTime},
		}
	}

	if containsAny(input, dateKeywords) {
		return dateResult(now)
	}

	if containsAny(input, dayKeywords) {
		if strings.Contains(input, "date") {
			return dateResult(now)
		}
		return domain.CommandResult{
			Handled:  true,
			Response: DayResponse(now),
			Action:   &domain.CommandAction{Kind: domain.ActionDate},
		}
	}

	if calc, ok := Calculate(input); ok {
		return domain.CommandResult{
			Handled:  true,
			Response: calc.Text,
			Action: &domain.CommandAction{
				Kind: domain.ActionCalculate,
				Calculation: &domain.CalculationPayload{
					Expression: calc.Expression,
					Value:      calc.Value,
				},
			},
		}
	}

	if req, ok := ParseTimerDuration(input); ok {
		return domain.CommandResult{
			Handled:  true,
			Response: "Setting a " + req.Label + " timer. I'll let you know when it's done!",
			Action: &domain.CommandAction{
				Kind:  domain.ActionTimer,
				Timer: &domain.TimerPayload{Duration: req.TotalSeconds(), Label: req.Label},
			},
		}
	}

	if app, ok := ExtractAppName(input); ok {
		return domain.CommandResult{
			Handled:  true,
			Response: "Opening " + app + "...",
			Action: &domain.CommandAction{
				Kind: domain.ActionOpenApp,
				App:  &domain.AppPayload{App: app},
			},
		}
	}

	return domain.CommandResult{}
}

func dateResult(now time.Time) domain.CommandResult {
	return domain.CommandResult{
		Handled:  true,
		Response: DateResponse(now),
		Action:   &domain.CommandAction{Kind: domain.ActionDate},
	}
}

// TimeResponse renders the spoken answer to a time query, e.g. "It's 3:04 PM".
func TimeResponse(now time.Time) string {
	return "It's " + now.Format("3:04 PM")
}

// DateResponse renders "Today is Monday, January 2, 2006".
func DateResponse(now time.Time) string {
	return "Today is " + now.Format("Monday, January 2, 2006")
}

// DayResponse renders "Today is Monday".
func DayResponse(now time.Time) string {
	return "Today is " + now.Format("Monday")
}

func containsAny(input string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(input, keyword) {
			return true
		}
	}
	return false
}
