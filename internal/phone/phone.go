// Package phone normalizes phone numbers to E.164 for matching and provider queries.
package phone

import "strings"

// Normalize converts an arbitrary phone string to E.164, returning "" when the
// input cannot be a phone number. A bare 10-digit string is assumed to be a
// US/Canada number and gets country code 1.
func Normalize(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	hasPlus := strings.HasPrefix(raw, "+")

	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if digits == "" {
		return ""
	}

	if !hasPlus && len(digits) == 10 {
		digits = "1" + digits
	}

	normalized := "+" + digits
	if len(normalized) < 5 {
		return ""
	}
	return normalized
}

// ChunkStrings splits items into consecutive chunks of at most size elements.
// Concatenating the chunks yields items; only the last chunk may be shorter.
func ChunkStrings(items []string, size int) [][]string {
	if size <= 0 {
		size = 1
	}
	var chunks [][]string
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[start:end])
	}
	return chunks
}
