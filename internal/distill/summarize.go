package distill

import (
	"fmt"
	"strings"
)

// DefaultMaxTokens is the summary token budget used when the caller does
// not supply one.
const DefaultMaxTokens = 100

// Summarize truncates text to at most maxTokens whitespace-delimited
// tokens. Text already within the budget is returned verbatim,
// byte-for-byte, preserving its internal whitespace; longer text is cut
// to the first maxTokens tokens rejoined with single spaces (which
// normalizes whitespace) with no ellipsis marker.
//
// A non-positive maxTokens is rejected with an error rather than being
// clamped: silently returning an empty summary would be indistinguishable
// from summarizing empty input.
func (d *Distiller) Summarize(text string, maxTokens int) (string, error) {
	if maxTokens <= 0 {
		return "", fmt.Errorf("summary token budget must be positive, got %d", maxTokens)
	}

	tokens := strings.Fields(text)
	if len(tokens) <= maxTokens {
		return text, nil
	}

	return strings.Join(tokens[:maxTokens], " "), nil
}
