// Package wake recognises the assistant's wake phrases.
package wake

import (
	"math/rand/v2"
	"strings"
)

// DefaultPhrases are matched anywhere in a lower-cased transcript.
var DefaultPhrases = []string{"yo buddy wake up", "yo buddy", "hey buddy"}

// Greetings are spoken when a wake phrase is heard.
var Greetings = []string{
	"Hey, what's up?",
	"I'm awake! How can I help?",
	"Hey there! What do you need?",
	"I'm listening! What's on your mind?",
	"Ready when you are! What can I do for you?",
}

// Detector matches wake phrases and picks greetings.
type Detector struct {
	phrases []string
	pick    func(n int) int
}

// NewDetector uses DefaultPhrases when phrases is empty. pick chooses a
// greeting index in [0, n); nil means uniformly random.
func NewDetector(phrases []string, pick func(n int) int) *Detector {
	normalized := make([]string, 0, len(phrases))
	for _, phrase := range phrases {
		phrase = strings.ToLower(strings.TrimSpace(phrase))
		if phrase != "" {
			normalized = append(normalized, phrase)
		}
	}
	if len(normalized) == 0 {
		normalized = DefaultPhrases
	}
	if pick == nil {
		pick = rand.IntN
	}
	return &Detector{phrases: normalized, pick: pick}
}

// Detect reports whether text contains any wake phrase.
func (d *Detector) Detect(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range d.phrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

func (d *Detector) Greeting() string {
	idx := d.pick(len(Greetings))
	if idx < 0 || idx >= len(Greetings) {
		idx = 0
	}
	return Greetings[idx]
}
