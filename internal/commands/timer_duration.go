package commands

import (
	"regexp"
	"strconv"
	"strings"
)

type timerPatternKind int

const (
	timerMinutesAndSeconds timerPatternKind = iota
	timerSecondsOnly
)

type timerPattern struct {
	kind    timerPatternKind
	pattern *regexp.Regexp
}

const trailingSeconds = `(?:\s*(?:and)?\s*(\d+)\s*(?:second|sec)s?)?`

var timerPatterns = []timerPattern{
	{timerMinutesAndSeconds, regexp.MustCompile(`(?i)set (?:a )?timer (?:for )?(\d+)\s*(?:minute|min)s?` + trailingSeconds)},
	{timerMinutesAndSeconds, regexp.MustCompile(`(?i)timer (?:for )?(\d+)\s*(?:minute|min)s?` + trailingSeconds)},
	{timerMinutesAndSeconds, regexp.MustCompile(`(?i)(\d+)\s*(?:minute|min)s?\s*timer`)},
	{timerSecondsOnly, regexp.MustCompile(`(?i)set (?:a )?timer (?:for )?(\d+)\s*(?:second|sec)s?`)},
	{timerSecondsOnly, regexp.MustCompile(`(?i)timer (?:for )?(\d+)\s*(?:second|sec)s?`)},
	{timerSecondsOnly, regexp.MustCompile(`(?i)(\d+)\s*(?:second|sec)s?\s*timer`)},
}

// MaxTimerSeconds caps a spoken countdown at one day. Longer phrases are not
// treated as timer requests.
const MaxTimerSeconds = 24 * 60 * 60

// TimerRequest is the duration and label parsed from a timer phrase.
type TimerRequest struct {
	Minutes int
	Seconds int
	Label   string
}

// TotalSeconds is the countdown length in seconds.
func (r TimerRequest) TotalSeconds() int {
	return r.Minutes*60 + r.Seconds
}

// ParseTimerDuration extracts a countdown length from input. Only the first
// matching pattern is considered; a match whose total exceeds MaxTimerSeconds
// reports no match.
func ParseTimerDuration(input string) (TimerRequest, bool) {
	for _, candidate := range timerPatterns {
		groups := candidate.pattern.FindStringSubmatch(input)
		if groups == nil {
			continue
		}

		var req TimerRequest
		var minutesOK, secondsOK bool
		switch candidate.kind {
		case timerMinutesAndSeconds:
			req.Minutes, minutesOK = parseCount(groupAt(groups, 1))
			req.Seconds, secondsOK = parseCount(groupAt(groups, 2))
		case timerSecondsOnly:
			minutesOK = true
			req.Seconds, secondsOK = parseCount(groupAt(groups, 1))
		}
		if !minutesOK || !secondsOK || req.Minutes > MaxTimerSeconds/60 || req.TotalSeconds() > MaxTimerSeconds {
			return TimerRequest{}, false
		}
		req.Label = timerLabel(req.Minutes, req.Seconds)
		return req, true
	}
	return TimerRequest{}, false
}

func groupAt(groups []string, index int) string {
	if index >= len(groups) {
		return ""
	}
	return groups[index]
}

// parseCount reads an optional numeric group. Absent groups count as zero;
// values that do not fit in an int are rejected.
func parseCount(value string) (int, bool) {
	if value == "" {
		return 0, true
	}
	n, err := strconv.Atoi(value)
	if err != nil || n > MaxTimerSeconds {
		return 0, false
	}
	return n, true
}

func timerLabel(minutes, seconds int) string {
	parts := make([]string, 0, 2)
	if minutes > 0 {
		parts = append(parts, pluralize(minutes, "minute"))
	}
	if seconds > 0 {
		parts = append(parts, pluralize(seconds, "second"))
	}
	if len(parts) == 0 {
		return "timer"
	}
	return strings.Join(parts, " and ")
}

func pluralize(count int, unit string) string {
	if count == 1 {
		return "1 " + unit
	}
	return strconv.Itoa(count) + " " + unit + "s"
}
