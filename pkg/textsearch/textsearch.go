// Package textsearch búsqueda de texto insensible a mayúsculas y tildes
// ("pho" encuentra "Phở", "ca phe" encuentra "Cà phê").
package textsearch

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold quita diacríticos y aplica case folding.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	// đ no se descompone en NFD
	out = strings.NewReplacer("đ", "d", "Đ", "D").Replace(out)
	return cases.Fold().String(out)
}

// Contains indica si needle aparece en haystack tras plegar ambos. needle vacío siempre coincide.
func Contains(haystack, needle string) bool {
	needle = strings.TrimSpace(needle)
	if needle == "" {
		return true
	}
	return strings.Contains(Fold(haystack), Fold(needle))
}
