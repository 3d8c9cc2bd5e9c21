package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDiceBoundsAndEquality(t *testing.T) {
	pairs := [][2]string{
		{"aurora", "aurora"},
		{"aurora", "sao paulo"},
		{"jardim aurora", "jd aurora"},
		{"", ""},
		{"a", "b"},
	}
	for _, p := range pairs {
		d := Dice(p[0], p[1])
		assert.GreaterOrEqual(t, d, 0.0)
		assert.LessOrEqual(t, d, 1.0)
	}
	assert.Equal(t, 1.0, Dice("sao paulo", "sao paulo"))
	assert.NotEqual(t, 1.0, Dice("sao paulo", "sao paolo"))
}

func TestDiceKnownValue(t *testing.T) {
	// "night" vs "nacht": classic Dice-coefficient textbook example.
	d := Dice("night", "nacht")
	assert.InDelta(t, 0.25, d, 0.01)
}

func TestBestMatchFirstSeenTieBreak(t *testing.T) {
	candidates := []string{"aurora", "aurora"}
	idx := BestMatch("aurora", candidates)
	assert.Equal(t, 0, idx)
}

func TestBestMatchEmpty(t *testing.T) {
	assert.Equal(t, -1, BestMatch("x", nil))
}

func TestTrigramLikeSelfIsOne(t *testing.T) {
	assert.Equal(t, 1.0, TrigramLike("jardim aurora", "jardim aurora"))
}

func TestTrigramLikeCloseVariantsScoreHigh(t *testing.T) {
	score := TrigramLike("jardim aurora", "jd aurora")
	assert.Greater(t, score, 0.4)
}
