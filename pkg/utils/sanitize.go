package utils

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Characters the exported conversation names may contain but directory names may not
var invalidDirNameChars = regexp.MustCompile(`[><:|?/\\"*]`)

// MaxDirNameLength is the upper bound, in characters, of a conversation directory name
const MaxDirNameLength = 100

// ConversationDirName builds the output directory name for a conversation:
// "{displayName}-{conversationID}" NFC-normalized, with invalid characters stripped and the
// result truncated to MaxDirNameLength characters.
func ConversationDirName(displayName, conversationID string) string {
	name := norm.NFC.String(displayName + "-" + conversationID)
	name = invalidDirNameChars.ReplaceAllString(name, "")
	return TruncateRunes(name, MaxDirNameLength)
}

// TruncateRunes cuts s to at most n characters without splitting a multi-byte rune
func TruncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

// SanitizeFilename cleans a string to be safe for use as a single file name component
func SanitizeFilename(name string) string {
	sanitized := invalidDirNameChars.ReplaceAllString(name, "_")
	sanitized = strings.Trim(sanitized, "_ ")
	sanitized = TruncateRunes(sanitized, MaxDirNameLength)
	if sanitized == "" {
		sanitized = "untitled"
	}
	return sanitized
}
