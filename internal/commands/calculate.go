package commands

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Calculation is a successfully evaluated arithmetic phrase.
type Calculation struct {
	Expression string
	Value      float64
	Text       string
}

const numberPattern = `(\d+(?:\.\d+)?)`

// Earlier phrasings win. The symbolic form must run to the end of the
// utterance, so "what is 25 times 4" falls through to the word operators
// instead of evaluating to 25.
var calculationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:what(?:'s| is)|calculate|compute)\s*([\d\s+\-*/().%^]*\d[\d\s+\-*/().%^]*)[?.!\s]*$`),
	regexp.MustCompile(`(?i)what(?:'s| is)\s*` + numberPattern + `\s*(?:plus|\+)\s*` + numberPattern),
	regexp.MustCompile(`(?i)what(?:'s| is)\s*` + numberPattern + `\s*(?:minus|-)\s*` + numberPattern),
	regexp.MustCompile(`(?i)what(?:'s| is)\s*` + numberPattern + `\s*(?:times|x|\*)\s*` + numberPattern),
	regexp.MustCompile(`(?i)what(?:'s| is)\s*` + numberPattern + `\s*(?:divided by|/)\s*` + numberPattern),
	regexp.MustCompile(`(?i)what(?:'s| is)\s*` + numberPattern + `\s*(?:percent|%)\s+of\s*` + numberPattern),
	regexp.MustCompile(`(?i)` + numberPattern + `\s*(?:plus|\+)\s*` + numberPattern),
	regexp.MustCompile(`(?i)` + numberPattern + `\s*(?:minus|-)\s*` + numberPattern),
	regexp.MustCompile(`(?i)` + numberPattern + `\s*(?:times|x|\*)\s*` + numberPattern),
	regexp.MustCompile(`(?i)` + numberPattern + `\s*(?:divided by|/)\s*` + numberPattern),
}

type substitution struct {
	pattern     *regexp.Regexp
	replacement string
}

var operatorWords = []substitution{
	{regexp.MustCompile(`(?i)what(?:'s| is)`), ""},
	{regexp.MustCompile(`(?i)calculate|compute`), ""},
	{regexp.MustCompile(`(?i)(?:percent|%)\s+of`), "* 0.01 *"},
	{regexp.MustCompile(`(?i)plus`), "+"},
	{regexp.MustCompile(`(?i)minus`), "-"},
	{regexp.MustCompile(`(?i)times|x`), "*"},
	{regexp.MustCompile(`(?i)divided by`), "/"},
}

// Calculate finds the first supported arithmetic phrasing in input and
// evaluates it. It reports false when nothing matches or evaluation fails.
func Calculate(input string) (Calculation, bool) {
	for _, pattern := range calculationPatterns {
		matched := pattern.FindString(input)
		if matched == "" {
			continue
		}

		expression := normalizeExpression(matched)
		value, err := Evaluate(expression)
		if err != nil {
			return Calculation{}, false
		}
		if value == 0 {
			value = 0 // drop negative zero
		}
		return Calculation{
			Expression: expression,
			Value:      value,
			Text:       "That's " + FormatNumber(value),
		}, true
	}
	return Calculation{}, false
}

func normalizeExpression(matched string) string {
	expression := matched
	for _, sub := range operatorWords {
		expression = sub.pattern.ReplaceAllString(expression, sub.replacement)
	}
	return strings.TrimSpace(strings.TrimRight(expression, "?.! \t"))
}

// FormatNumber renders integral values without a decimal point and all
// other values with exactly two decimals.
func FormatNumber(value float64) string {
	if value == math.Trunc(value) {
		if value == 0 {
			return "0"
		}
		return strconv.FormatFloat(value, 'f', -1, 64)
	}
	return strconv.FormatFloat(value, 'f', 2, 64)
}
