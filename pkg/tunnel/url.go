package tunnel

import (
	"strings"
)

const DefaultMarker = "trycloudflare.com"

// ExtractPublicURL returns the first whitespace-delimited token in line that
// carries both an https:// prefix and marker. cloudflared frames the URL in
// a box drawn with '|', so surrounding punctuation is stripped.
func ExtractPublicURL(line, marker string) (string, bool) {
	if marker == "" {
		marker = DefaultMarker
	}
	if !strings.Contains(line, marker) {
		return "", false
	}
	for _, tok := range strings.Fields(line) {
		i := strings.Index(tok, "https://")
		if i < 0 || !strings.Contains(tok[i:], marker) {
			continue
		}
		url := strings.TrimRight(tok[i:], "|,;)]}>\"'.")
		if len(url) <= len("https://") {
			continue
		}
		return url, true
	}
	return "", false
}
