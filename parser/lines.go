package parser

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// lineBreak matches every line terminator clipboard sources produce.
var lineBreak = regexp.MustCompile(`\r\n|\n|\r`)

// invisible strips the BOM and zero-width characters copied out of the portal.
var invisible = strings.NewReplacer(
	"\uFEFF", "",
	"\u200B", "",
	"\u200C", "",
	"\u200D", "",
)

// SplitLines splits text on CRLF, LF or a lone CR.
func SplitLines(text string) []string {
	return lineBreak.Split(text, -1)
}

// CleanLine removes invisible characters, folds Unicode spaces (NBSP and
// friends) to ASCII space, composes Hangul to NFC and trims the result.
func CleanLine(s string) string {
	s = invisible.Replace(s)
	s = strings.Map(func(r rune) rune {
		if r != ' ' && unicode.IsSpace(r) {
			return ' '
		}
		return r
	}, s)
	return strings.TrimSpace(norm.NFC.String(s))
}

// cleanLines runs CleanLine over every line once so the scanners can index
// freely without re-normalising.
func cleanLines(raw []string) []string {
	out := make([]string, len(raw))
	for i, l := range raw {
		out[i] = CleanLine(l)
	}
	return out
}
