// Package similarity implements the string-similarity metrics the
// pipeline needs outside of the host database's native trigram index:
// bigram Dice similarity (used by the Enricher to pick a suggested
// canonical member, spec.md §4.5) and an in-memory trigram-like
// estimator used where no live database trigram index is available
// (spec.md §9 Design Notes: "in target environments without native
// trigram, substitute a precomputed bigram/trigram index").
package similarity

import "strings"

// bigrams returns the multiset of consecutive 2-rune substrings of s, as
// a map from bigram to count, operating on runes so multi-byte
// characters are not split. A one-rune string yields itself as its only
// element; an empty string yields an empty map.
func bigrams(s string) map[string]int {
	runes := []rune(s)
	if len(runes) < 2 {
		if len(runes) == 1 {
			return map[string]int{string(runes): 1}
		}
		return map[string]int{}
	}
	out := make(map[string]int, len(runes)-1)
	for i := 0; i < len(runes)-1; i++ {
		out[string(runes[i:i+2])]++
	}
	return out
}

// Dice computes the Sorensen-Dice coefficient over the bigram multisets
// of a and b: 2*|A∩B| / (|A|+|B|). Returns 1.0 when both strings are
// empty or equal, and is always in [0,1] (spec.md §8 property 11).
func Dice(a, b string) float64 {
	if a == b {
		return 1.0
	}
	ba, bb := bigrams(a), bigrams(b)
	if len(ba) == 0 && len(bb) == 0 {
		return 1.0
	}

	totalA, totalB := 0, 0
	for _, c := range ba {
		totalA += c
	}
	for _, c := range bb {
		totalB += c
	}
	if totalA+totalB == 0 {
		return 1.0
	}

	intersection := 0
	for bg, ca := range ba {
		if cb, ok := bb[bg]; ok {
			if ca < cb {
				intersection += ca
			} else {
				intersection += cb
			}
		}
	}

	return 2.0 * float64(intersection) / float64(totalA+totalB)
}

// BestMatch returns the index of the candidate in candidates with the
// highest Dice similarity to target. Ties are broken by first-seen order
// (spec.md §4.5 "Suggested canonical" / §5 ordering guarantee). Returns
// -1 if candidates is empty.
func BestMatch(target string, candidates []string) int {
	best := -1
	bestScore := -1.0
	for i, c := range candidates {
		score := Dice(target, c)
		if score > bestScore {
			bestScore = score
			best = i
		}
	}
	return best
}

// NormalizedEqual reports whether a and b fold to the same string,
// ignoring case and accents (used for case/accent-insensitive search,
// e.g. the `busca` query parameter in spec.md §6).
func NormalizedEqual(a, b string, fold func(string) string) bool {
	return fold(a) == fold(b)
}

// ContainsFold reports whether haystack contains needle after both are
// lowercased (a cheap case-insensitive substring test used as the
// in-memory fallback for the `busca` filter when not delegated to the
// database).
func ContainsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
