// Package slug builds URL-friendly link text from product and category names.
package slug

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var slugRegexp = regexp.MustCompile(`[^a-z0-9]+`)

// Letters that do not decompose into an ASCII base plus a combining mark.
var letterReplacer = strings.NewReplacer(
	"ı", "i",
	"ß", "ss",
	"æ", "ae",
	"ø", "o",
	"œ", "oe",
	"đ", "d",
	"ł", "l",
)

// Generate creates a URL-friendly slug from the given name. Accents are
// folded to their ASCII base letter and every other run of non-alphanumeric
// characters becomes a single hyphen.
//
// Examples:
//   - "Kadın Giyim" → "kadin-giyim"
//   - "Tênis Azul" → "tenis-azul"
//   - "Hello   World!" → "hello-world"
func Generate(name string) string {
	folder := transform.Chain(
		cases.Lower(language.Und),
		norm.NFKD,
		runes.Remove(runes.In(unicode.Mn)),
		norm.NFC,
	)
	folded, _, err := transform.String(folder, strings.TrimSpace(name))
	if err != nil {
		folded = strings.ToLower(strings.TrimSpace(name))
	}
	folded = letterReplacer.Replace(folded)

	return strings.Trim(slugRegexp.ReplaceAllString(folded, "-"), "-")
}
