package notifier

import "strings"

// MaxMessageLen is Telegram's message size limit in characters.
const MaxMessageLen = 4096

// ChunkText splits text into transport-safe chunks of at most maxLen runes.
// It prefers paragraph boundaries ("\n\n"), then line boundaries ("\n"), and
// hard-cuts only when the window contains no natural boundary.
func ChunkText(text string, maxLen int) []string {
	if maxLen <= 0 {
		maxLen = MaxMessageLen
	}
	rs := []rune(text)
	if len(rs) <= maxLen {
		return []string{text}
	}

	out := make([]string, 0, (len(rs)+maxLen-1)/maxLen)
	rem := rs
	for len(rem) > 0 {
		if len(rem) <= maxLen {
			out = append(out, string(rem))
			break
		}

		window := string(rem[:maxLen])
		split := strings.LastIndex(window, "\n\n")
		if split < 0 {
			split = strings.LastIndex(window, "\n")
		}

		cut := maxLen
		if split > 0 {
			cut = len([]rune(window[:split]))
		}

		// A window that was all whitespace trims to nothing; never emit
		// an empty message.
		if chunk := strings.TrimRight(string(rem[:cut]), " \t\n"); chunk != "" {
			out = append(out, chunk)
		}
		rem = rem[cut:]
		for len(rem) > 0 && (rem[0] == '\n' || rem[0] == ' ' || rem[0] == '\t') {
			rem = rem[1:]
		}
	}
	return out
}
