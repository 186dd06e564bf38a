package distill

import "strings"

// splitSentences divides text into coarse sentence units on the literal
// period character. Abbreviations, decimals, and ellipses are not
// special-cased: segmentation only scopes relationship co-occurrence and
// does not need to be linguistically exact. The fragment after the last
// period (or the whole text when no period exists) is kept as a sentence.
func splitSentences(text string) []string {
	return strings.Split(text, ".")
}
