// Package signal turns raw search context (query text, facets, path) into
// auction intent signals.
package signal

import (
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// DecodeQuery percent-decodes raw. '+' is kept literally. Input with a
// malformed escape or one that decodes to invalid UTF-8 is returned as is.
func DecodeQuery(raw string) string {
	decoded, err := url.PathUnescape(raw)
	if err != nil || !utf8.ValidString(decoded) {
		return raw
	}
	return decoded
}

// Normalize applies NFKC, strips control characters and trims whitespace so
// that visually identical client input targets the same auction.
func Normalize(text string) string {
	text = norm.NFKC.String(text)
	text = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, text)
	return strings.TrimSpace(text)
}
