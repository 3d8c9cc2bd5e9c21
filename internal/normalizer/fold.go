// Package normalizer implements the pipeline's pure text-folding rules
// (spec.md §4.1): accent/case folding and per-entity-kind prefix and
// numeral normalization. Every function here is deterministic and has
// no dependency on the database, cache, or network.
package normalizer

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/Rede-Latitude-Tech/remove-duplicidade-localizacao/internal/domain"
)

// stripCombining removes Unicode combining marks (accents) after NFD
// decomposition. This is the standard x/text idiom for accent folding:
// decompose to NFD, drop the combining-mark runes, recompose to NFC.
var stripCombining = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Fold lowercases s, strips diacritics, collapses runs of ASCII
// whitespace to a single space, and trims. It is idempotent:
// Fold(Fold(s)) == Fold(s) (spec.md §8 property 1).
func Fold(s string) string {
	lowered := strings.ToLower(s)
	stripped, _, err := transform.String(stripCombining, lowered)
	if err != nil {
		// transform.String on a pure-rune chain over valid UTF-8 input
		// cannot fail; fall back to the lowered string defensively.
		stripped = lowered
	}
	return collapseSpace(stripped)
}

// collapseSpace collapses runs of ASCII whitespace into single spaces and
// trims the result.
func collapseSpace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevSpace := false
	for _, r := range s {
		isSpace := r == ' ' || r == '\t' || r == '\n' || r == '\r'
		if isSpace {
			if !prevSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			prevSpace = true
			continue
		}
		b.WriteRune(r)
		prevSpace = false
	}
	return strings.TrimRight(b.String(), " ")
}

// prefixesByKind is the exact, case-folded prefix registry from spec.md
// §4.1. Street and City have no registered prefixes.
var prefixesByKind = map[domain.EntityKind][]string{
	domain.KindNeighborhood: {
		"setor", "jardim", "parque", "vila", "residencial", "conjunto", "nucleo", "bairro",
	},
	domain.KindCondo: {
		"edificio", "condominio", "residencial", "torre", "bloco", "ed", "cond",
	},
	domain.KindStreet: {},
	domain.KindCity:   {},
}

// numeralTable rewrites whole-word Roman and spelled-out numerals to
// Arabic digits, per spec.md §4.1.
var numeralTable = map[string]string{
	"i": "1", "ii": "2", "iii": "3", "iv": "4", "v": "5",
	"vi": "6", "vii": "7", "viii": "8", "ix": "9", "x": "10",
	"um": "1", "dois": "2", "tres": "3", "quatro": "4", "cinco": "5",
}

// FoldWithPrefixes folds s, then strips at most one leading registered
// prefix for kind (matched at the start, followed by whitespace), then
// rewrites whole-word numeral tokens via numeralTable, then collapses
// whitespace again. The numeral rewrite is stable once applied (digits
// are not themselves registered prefixes or numeral words), but the
// single-prefix strip is not: a name with two stacked registered
// prefixes ("Jardim Parque Oeste") only has the first removed per call,
// so a second call strips the next one. Idempotence (spec.md §8 property
// 2) holds only for names with at most one leading registered prefix.
func FoldWithPrefixes(s string, kind domain.EntityKind) string {
	folded := Fold(s)
	folded = stripLeadingPrefix(folded, kind)
	folded = rewriteNumerals(folded)
	return collapseSpace(folded)
}

// stripLeadingPrefix removes the first registered prefix for kind if it
// is the leading whitespace-delimited token of s.
func stripLeadingPrefix(s string, kind domain.EntityKind) string {
	prefixes := prefixesByKind[kind]
	if len(prefixes) == 0 {
		return s
	}
	idx := strings.IndexByte(s, ' ')
	var firstToken, rest string
	if idx < 0 {
		firstToken, rest = s, ""
	} else {
		firstToken, rest = s[:idx], s[idx+1:]
	}
	for _, p := range prefixes {
		if firstToken == p {
			return rest
		}
	}
	return s
}

// rewriteNumerals rewrites whole-word tokens matching numeralTable.
func rewriteNumerals(s string) string {
	if s == "" {
		return s
	}
	tokens := strings.Split(s, " ")
	for i, tok := range tokens {
		if repl, ok := numeralTable[tok]; ok {
			tokens[i] = repl
		}
	}
	return strings.Join(tokens, " ")
}
