package similarity

import "github.com/agnivade/levenshtein"

// TrigramLike estimates the host database's trigram similarity (spec.md
// GLOSSARY) for callers that have no live database connection — the
// in-memory Storage implementation used by the unit tests. It blends bigram Dice (captures character-run overlap, the
// dominant signal trigram similarity also captures) with a
// length-normalized Levenshtein distance (captures transpositions and
// single-character edits that bigram overlap alone under-weights),
// matching Postgres's pg_trgm behavior closely enough for deterministic
// tests without depending on a running database.
func TrigramLike(a, b string) float64 {
	if a == b {
		return 1.0
	}
	dice := Dice(a, b)

	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 1.0
	}
	dist := levenshtein.ComputeDistance(a, b)
	editSim := 1.0 - float64(dist)/float64(maxLen)
	if editSim < 0 {
		editSim = 0
	}

	return (dice + editSim) / 2
}
