// Package segment computes GSM-7 message lengths and SMS segment counts.
package segment

import (
	"strings"
	"unicode/utf8"
)

const (
	// SingleLimit is the number of characters that fit in a standalone SMS.
	SingleLimit = 160
	// ConcatLimit is the number of characters per part of a concatenated SMS.
	ConcatLimit = 153
)

// Result holds the outcome of Count.
type Result struct {
	// Length is the transliterated length including extended-character overhead.
	Length int
	// Segments is the number of SMS parts needed to deliver the message.
	Segments int
}

// transliterations maps characters outside the safe set to ASCII substitutes.
var transliterations = map[rune]string{
	'à': "a'", 'á': "a'", 'è': "e'", 'é': "e'", 'ì': "i'", 'í': "i'",
	'ò': "o'", 'ó': "o'", 'ù': "u'", 'ú': "u'",
	'À': "A'", 'Á': "A'", 'È': "E'", 'É': "E'", 'Ì': "I'", 'Í': "I'",
	'Ò': "O'", 'Ó': "O'", 'Ù': "U'", 'Ú': "U'",
	'€': "EUR",
}

// extended lists the GSM characters that are encoded with an escape prefix.
var extended = []string{"^", "{", "}", "[", "]", "~", `\`, "|"}

// Transliterate replaces accented vowels and the euro sign with ASCII substitutes.
func Transliterate(s string) string {
	if !needsTransliteration(s) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 8)
	for _, r := range s {
		if sub, ok := transliterations[r]; ok {
			b.WriteString(sub)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func needsTransliteration(s string) bool {
	for _, r := range s {
		if _, ok := transliterations[r]; ok {
			return true
		}
	}
	return false
}

// Count returns the adjusted length and segment count of message.
//
// Each extended character counts twice. A message that starts or ends with an
// extended character is charged one more character for each of those positions.
func Count(message string) Result {
	s := Transliterate(message)
	n := utf8.RuneCountInString(s)

	for _, c := range extended {
		extra := strings.Count(s, c)
		if extra == 0 {
			continue
		}
		if strings.HasPrefix(s, c) {
			extra++
		}
		if strings.HasSuffix(s, c) {
			extra++
		}
		n += extra
	}

	return Result{Length: n, Segments: Segments(n)}
}

// Segments returns the number of parts needed for a message of the given length.
func Segments(length int) int {
	if length <= SingleLimit {
		return 1
	}
	return (length + ConcatLimit - 1) / ConcatLimit
}

// Truncate returns the longest prefix of message that fits in maxSegments parts.
// A non-positive maxSegments disables truncation.
func Truncate(message string, maxSegments int) string {
	if maxSegments <= 0 || Count(message).Segments <= maxSegments {
		return message
	}

	limit := SingleLimit
	if maxSegments > 1 {
		limit = maxSegments * ConcatLimit
	}

	runes := []rune(message)
	cut := len(runes)
	if cut > limit {
		cut = limit
	}
	for cut > 0 && Count(string(runes[:cut])).Length > limit {
		cut--
	}
	return string(runes[:cut])
}
