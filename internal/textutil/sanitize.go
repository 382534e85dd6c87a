package textutil

import (
	"regexp"
	"strings"
)

const maxNameLength = 200

var (
	invalidFileChars = regexp.MustCompile(`[<>:"/\\|?*]`)
	whitespaceRuns   = regexp.MustCompile(`\s+`)
)

// SanitizeName cleans a display name for use in artifact filenames. The HTML
// entity &amp; is decoded first, filesystem-unsafe characters are stripped,
// whitespace runs collapse to a single space, and the result is trimmed and
// truncated to 200 characters. The same sanitizer must be applied wherever a
// filename is derived so lookups at report time match files written at fetch
// time.
func SanitizeName(name string) string {
	name = strings.ReplaceAll(name, "&amp;", "&")
	name = invalidFileChars.ReplaceAllString(name, "")
	name = whitespaceRuns.ReplaceAllString(name, " ")
	name = strings.TrimSpace(name)
	if runes := []rune(name); len(runes) > maxNameLength {
		name = strings.TrimSpace(string(runes[:maxNameLength]))
	}
	return name
}

// ArtifactFileName derives the output filename for an entry:
// "{GroupDisplayName} - {EntryDisplayName}.webp". Both components are
// sanitized, then the assembled filename is sanitized again so the whole
// name, not just each component, honors the 200-character cap.
func ArtifactFileName(groupDisplay, entryDisplay string) string {
	return SanitizeName(SanitizeName(groupDisplay) + " - " + SanitizeName(entryDisplay) + ".webp")
}

// SanitizeToken converts a string to a lowercase filesystem-safe token.
// Letters are lowercased, digits and hyphens/underscores are kept, everything
// else becomes an underscore. Returns "unknown" for empty input.
func SanitizeToken(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}
	var b strings.Builder
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.Trim(b.String(), "_-")
	if out == "" {
		return "unknown"
	}
	return out
}
