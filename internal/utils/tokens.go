package utils

import "strings"

// charsPerToken is the rough ratio used for prompt budgeting. It matches
// English prose and tabular summaries closely enough to size prompts.
const charsPerToken = 4

// CountTokens estimates the number of tokens in text. Any non-empty text
// counts as at least one token.
func CountTokens(text string) int {
	n := len([]rune(text))
	if n == 0 {
		return 0
	}
	if n < charsPerToken {
		return 1
	}
	return n / charsPerToken
}

// TruncateToTokenLimit cuts text to roughly limit tokens. The cut is moved
// back to the last line break when one exists in the kept half, so tables
// and statistics blocks are not split mid-row.
func TruncateToTokenLimit(text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(text)
	max := limit * charsPerToken
	if max >= len(runes) {
		return text
	}
	kept := string(runes[:max])
	if i := strings.LastIndexByte(kept, '\n'); i >= len(kept)/2 {
		return kept[:i]
	}
	return kept
}
