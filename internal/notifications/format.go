package notifications

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// FormatList joins items into an English list with an Oxford comma.
// When capitalize is set the first character is upper-cased.
func FormatList(items []string, capitalize bool) string {
	var joined string
	switch len(items) {
	case 0:
		return ""
	case 1:
		joined = items[0]
	case 2:
		joined = items[0] + " and " + items[1]
	default:
		joined = strings.Join(items[:len(items)-1], ", ") + ", and " + items[len(items)-1]
	}
	if !capitalize {
		return joined
	}
	first, size := utf8.DecodeRuneInString(joined)
	if first == utf8.RuneError {
		return joined
	}
	return string(unicode.ToUpper(first)) + joined[size:]
}

// Verb picks "has" for a single subject and "have" for several.
func Verb(count int) string {
	if count > 1 {
		return "have"
	}
	return "has"
}
