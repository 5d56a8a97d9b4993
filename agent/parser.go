package agent

import (
	"regexp"
	"slices"
	"strings"
)

// Action is a parsed tool invocation request extracted from one model
// completion. It exists only within a single loop iteration.
type Action struct {
	// Tool is the registered tool identifier.
	Tool string

	// Input is the tool input text. May be empty.
	Input string
}

// The action directive is a loosely-structured text convention, not a
// typed protocol: an ACTION line naming a tool followed by an INPUT line
// whose remainder, up to the next line break, is the tool input. Markers
// match case-insensitively; tool names match literally.
var (
	actionRe = regexp.MustCompile(`(?i)ACTION:\s*(\w+)`)
	inputRe  = regexp.MustCompile(`(?is)INPUT:\s*(.+?)(?:\n|$)`)
)

// ParseAction extracts a tool directive from model output, or returns nil
// when none is present and the text is a final-answer candidate.
//
// An ACTION marker naming an unregistered tool is treated as no action
// rather than an error: failing would stall the conversation, while
// passing the text through lets it stand as the answer. A missing or
// malformed INPUT after a valid ACTION degrades to an empty input string.
//
// ParseAction is a pure function: the same text and registered set always
// yield the same result.
func ParseAction(text string, registered []string) *Action {
	m := actionRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}

	name := m[1]
	if !slices.Contains(registered, name) {
		return nil
	}

	input := ""
	if im := inputRe.FindStringSubmatch(text); im != nil {
		input = strings.TrimSpace(im[1])
	}

	return &Action{Tool: name, Input: input}
}
