package domain

import (
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"
)

// maxFilenameLength is the maximum allowed filename length (common filesystem limit).
const maxFilenameLength = 255

// illegalChars contains characters that must be replaced in filenames. These
// are illegal on at least one mainstream filesystem or enable path traversal.
var illegalChars = map[rune]bool{
	'"':  true,
	'\\': true,
	'/':  true,
	':':  true,
	'*':  true,
	'?':  true,
	'<':  true,
	'>':  true,
	'|':  true,
}

// SanitizeFilename makes a name safe for use as a single path segment on any
// filesystem. It is pure and idempotent:
//   - replaces illegal and control characters with underscore
//   - collapses whitespace runs to a single space
//   - strips leading dots (no hidden files, no "..")
//   - truncates to 255 bytes while preserving the extension
//   - returns "file" when nothing usable remains
//
// Unicode letters (accents, CJK, emoji) pass through untouched.
func SanitizeFilename(name string) string {
	var sb strings.Builder
	sb.Grow(len(name))

	space := false
	for _, r := range name {
		switch {
		case unicode.IsSpace(r):
			space = true
		case shouldReplace(r):
			flushSpace(&sb, &space)
			sb.WriteRune('_')
		default:
			flushSpace(&sb, &space)
			sb.WriteRune(r)
		}
	}

	result := strings.TrimSpace(sb.String())
	result = strings.TrimLeft(result, ".")
	result = strings.TrimSpace(result)

	if result == "" || isOnlyUnderscores(result) {
		return "file"
	}

	if len(result) > maxFilenameLength {
		result = truncatePreservingExtension(result)
	}

	return result
}

func flushSpace(sb *strings.Builder, space *bool) {
	if *space && sb.Len() > 0 {
		sb.WriteRune(' ')
	}
	*space = false
}

// shouldReplace returns true if the character should be replaced with underscore.
func shouldReplace(r rune) bool {
	if r < 32 || r == 127 {
		return true
	}
	return illegalChars[r]
}

// isOnlyUnderscores returns true if the string contains only underscores.
func isOnlyUnderscores(s string) bool {
	for _, r := range s {
		if r != '_' {
			return false
		}
	}
	return true
}

// truncatePreservingExtension truncates a filename to maxFilenameLength while
// preserving the file extension if possible.
func truncatePreservingExtension(name string) string {
	ext := filepath.Ext(name)
	extLen := len(ext)

	if extLen == 0 || extLen >= maxFilenameLength {
		return truncateToBytes(name, maxFilenameLength)
	}

	maxBaseLen := maxFilenameLength - extLen
	baseName := name[:len(name)-extLen]

	return truncateToBytes(baseName, maxBaseLen) + ext
}

// truncateToBytes truncates a UTF-8 string to at most maxBytes bytes without
// cutting in the middle of a multi-byte character.
func truncateToBytes(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}

	for maxBytes > 0 && !utf8.ValidString(s[:maxBytes]) {
		maxBytes--
	}

	for maxBytes > 0 {
		r, _ := utf8.DecodeLastRuneInString(s[:maxBytes])
		if r != utf8.RuneError {
			break
		}
		maxBytes--
	}

	return s[:maxBytes]
}
