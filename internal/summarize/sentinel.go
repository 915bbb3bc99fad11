package summarize

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// ContainsSentinel reports whether response carries the exclusion sentinel.
//
// By default ("substring") any occurrence counts. In "token" mode the
// occurrence must not be glued to letters, digits or underscores on either
// side, so a sentinel such as "SKIP" does not fire on "SKIPPED".
func ContainsSentinel(response, sentinel, mode string) bool {
	if sentinel == "" {
		return false
	}
	if mode != "token" {
		return strings.Contains(response, sentinel)
	}

	for offset := 0; offset <= len(response)-len(sentinel); {
		i := strings.Index(response[offset:], sentinel)
		if i < 0 {
			return false
		}
		start := offset + i
		end := start + len(sentinel)

		before, _ := utf8.DecodeLastRuneInString(response[:start])
		after, _ := utf8.DecodeRuneInString(response[end:])
		if (start == 0 || !isWordRune(before)) && (end == len(response) || !isWordRune(after)) {
			return true
		}
		offset = start + 1
	}
	return false
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
