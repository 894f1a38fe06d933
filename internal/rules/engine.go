package rules

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

type compiledRule interface {
	Apply(input string) (output string, changed bool)
}

// RuleSpec is one entry of the rules file.
//
//	rules:
//	  - match: "what's the the"
//	    replace: "what's the"
//	  - match: '\byo\s*buddy\b'
//	    replace: "yo buddy"
//	    regex: true
type RuleSpec struct {
	Match         string `yaml:"match"`
	Replace       string `yaml:"replace"`
	Regex         bool   `yaml:"regex"`
	CaseSensitive bool   `yaml:"case_sensitive"`
	FirstOnly     bool   `yaml:"first_only"`
}

type ruleFile struct {
	Rules []RuleSpec `yaml:"rules"`
}

// Engine rewrites transcripts with user-defined substitutions before they are
// classified. The rule set is swapped atomically on reload.
type Engine struct {
	path      string
	loopLimit int
	logger    zerolog.Logger

	rules atomic.Pointer[[]compiledRule]
}

// NewEngine loads rules from a YAML file. An empty path or a missing file
// yields an engine without rules.
func NewEngine(path string, loopLimit int, logger zerolog.Logger) (*Engine, error) {
	if loopLimit <= 0 {
		loopLimit = 30
	}
	e := &Engine{
		path:      strings.TrimSpace(path),
		loopLimit: loopLimit,
		logger:    logger.With().Str("component", "rules").Logger(),
	}

	rules, err := e.load()
	if err != nil {
		return nil, err
	}
	e.rules.Store(&rules)
	return e, nil
}

// Path is the rules file location.
func (e *Engine) Path() string {
	return e.path
}

// Len reports how many rules are active.
func (e *Engine) Len() int {
	return len(*e.rules.Load())
}

// Reload re-reads the rules file. On error the current rules stay active.
func (e *Engine) Reload() error {
	rules, err := e.load()
	if err != nil {
		return err
	}
	e.rules.Store(&rules)
	e.logger.Info().Str("path", e.path).Int("rules", len(rules)).Msg("rules reloaded")
	return nil
}

// Apply rewrites text until no rule changes it or the loop limit is reached.
func (e *Engine) Apply(text string) (string, error) {
	rules := *e.rules.Load()
	if len(rules) == 0 {
		return text, nil
	}

	result := text
	for i := 0; i < e.loopLimit; i++ {
		changed := false
		for _, rule := range rules {
			next, ruleChanged := rule.Apply(result)
			if ruleChanged {
				result = next
				changed = true
			}
		}
		if !changed {
			return result, nil
		}
	}

	return result, nil
}

func (e *Engine) load() ([]compiledRule, error) {
	if e.path == "" {
		return nil, nil
	}

	contents, err := os.ReadFile(e.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read rules file %q: %w", e.path, err)
	}

	rules, err := Parse(contents)
	if err != nil {
		return nil, fmt.Errorf("failed to parse rules file %q: %w", e.path, err)
	}
	return rules, nil
}

// Parse compiles the YAML rules document.
func Parse(contents []byte) ([]compiledRule, error) {
	var file ruleFile
	if err := yaml.Unmarshal(contents, &file); err != nil {
		return nil, err
	}

	rules := make([]compiledRule, 0, len(file.Rules))
	for index, spec := range file.Rules {
		rule, err := compile(spec)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", index+1, err)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func compile(spec RuleSpec) (compiledRule, error) {
	if strings.TrimSpace(spec.Match) == "" {
		return nil, errors.New("match cannot be empty")
	}

	pattern := spec.Match
	if !spec.Regex {
		pattern = regexp.QuoteMeta(strings.TrimSpace(spec.Match))
	}
	if !spec.CaseSensitive {
		pattern = "(?i)" + pattern
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid regex: %w", err)
	}

	replacement := spec.Replace
	if !spec.Regex {
		// Literal replacements must not expand $1 style references.
		replacement = strings.ReplaceAll(strings.TrimSpace(replacement), "$", "$$")
	}
	return regexRule{re: re, replacement: replacement, global: !spec.FirstOnly}, nil
}

type regexRule struct {
	re          *regexp.Regexp
	replacement string
	global      bool
}

func (r regexRule) Apply(input string) (string, bool) {
	if r.global {
		output := r.re.ReplaceAllString(input, r.replacement)
		return output, output != input
	}

	loc := r.re.FindStringIndex(input)
	if loc == nil {
		return input, false
	}

	segment := input[loc[0]:loc[1]]
	replaced := r.re.ReplaceAllString(segment, r.replacement)
	output := input[:loc[0]] + replaced + input[loc[1]:]
	return output, output != input
}
