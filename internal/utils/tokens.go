package utils

// CountTokens estimates token usage for prompt budgeting. The heuristic of
// roughly four characters per token tracks close enough to real tokenizers
// for sizing decisions without pulling in a tokenizer dependency.
func CountTokens(text string) int {
	if text == "" {
		return 0
	}
	n := len(text) / 4
	if n == 0 {
		return 1
	}
	return n
}

// TruncateToTokenLimit trims text to approximately maxTokens, cutting on
// rune boundaries and at the last newline before the limit when one exists
// so tables and lists are not severed mid-row.
func TruncateToTokenLimit(text string, maxTokens int) string {
	if maxTokens <= 0 || CountTokens(text) <= maxTokens {
		return text
	}
	maxChars := maxTokens * 4
	runes := []rune(text)
	if maxChars >= len(runes) {
		return text
	}
	cut := string(runes[:maxChars])
	if idx := lastNewline(cut); idx > len(cut)/2 {
		cut = cut[:idx]
	}
	return cut + "\n[truncated]"
}

func lastNewline(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '\n' {
			return i
		}
	}
	return -1
}
