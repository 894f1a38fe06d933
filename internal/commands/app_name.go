package commands

import (
	"regexp"
	"strings"
)

var appOpenPattern = regexp.MustCompile(`(?i)\bopen\s+(\w+(?:\s+\w+)?)`)

// ExtractAppName returns the lower-cased application name following "open".
// The name is not validated against any list of known applications.
func ExtractAppName(input string) (string, bool) {
	groups := appOpenPattern.FindStringSubmatch(input)
	if groups == nil {
		return "", false
	}

	words := strings.Fields(strings.ToLower(groups[1]))
	if len(words) > 0 && words[0] == "the" {
		words = words[1:]
	}
	if len(words) > 0 && words[len(words)-1] == "app" {
		words = words[:len(words)-1]
	}
	name := strings.Join(words, " ")
	return name, name != ""
}
