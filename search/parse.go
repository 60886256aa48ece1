// Package search turns the case table's search box and filter panel into a predicate set.
package search

import (
	"regexp"
	"strings"
	"unicode"

	textcases "golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

var filterTokenRx = regexp.MustCompile(`^[A-Za-z_]+:.+$`)

// Parsed is the result of reading a raw search string.
type Parsed struct {
	Filters map[string]string `json:"filters"`
	Terms   []string          `json:"terms"`
}

// Normalize folds a value the way both sides of every comparison are folded.
func Normalize(s string) string {
	return textcases.Lower(language.Und).String(norm.NFC.String(strings.TrimSpace(s)))
}

// Parse splits raw on whitespace and commas. key:value tokens become filters, everything else
// becomes a free-text term. A token whose value is empty ("jobsite:") stays a term.
func Parse(raw string) Parsed {
	out := Parsed{Filters: map[string]string{}}
	tokens := strings.FieldsFunc(raw, func(r rune) bool {
		return unicode.IsSpace(r) || r == ','
	})
	for _, tok := range tokens {
		if filterTokenRx.MatchString(tok) {
			key, value, _ := strings.Cut(tok, ":")
			out.Filters[Normalize(key)] = Normalize(value)
			continue
		}
		out.Terms = append(out.Terms, Normalize(tok))
	}
	return out
}

// Merge combines filter sets; later sets win on key collision. Keys and values are normalized so a
// filter panel can pass raw form values.
func Merge(sets ...map[string]string) map[string]string {
	out := map[string]string{}
	for _, set := range sets {
		for k, v := range set {
			k, v = Normalize(k), Normalize(v)
			if k == "" || v == "" {
				continue
			}
			out[k] = v
		}
	}
	return out
}
