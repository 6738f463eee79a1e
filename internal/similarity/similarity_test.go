package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"", "abc", 3},
		{"kitten", "sitting", 3},
		{"flaw", "lawn", 2},
		{"same", "same", 0},
		{"café", "cafe", 1},
	}

	for _, tt := range tests {
		t.Run(tt.a+"_"+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.want, Levenshtein(tt.a, tt.b))
			assert.Equal(t, tt.want, Levenshtein(tt.b, tt.a), "distance must be symmetric")
		})
	}
}

func TestEditDistanceRatio(t *testing.T) {
	m := EditDistanceRatio{}

	assert.Equal(t, "edit_distance_ratio", m.Name())
	assert.Equal(t, 1.0, m.Similarity("Send the report", "send the REPORT"))
	assert.Equal(t, 0.0, m.Similarity("", "anything"))
	assert.InDelta(t, 1.0-3.0/7.0, m.Similarity("kitten", "sitting"), 1e-9)

	// One character off in a 20-char title stays above the 0.8 duplicate line.
	assert.Greater(t, m.Similarity("Prepare the slides!!", "Prepare the slides.."), 0.8)
	assert.Less(t, m.Similarity("Prepare the slides", "Book a meeting room"), 0.5)
}

func TestJaccardWordOverlap(t *testing.T) {
	m := JaccardWordOverlap{}

	assert.Equal(t, "jaccard_word_overlap", m.Name())
	assert.Equal(t, 1.0, m.Similarity("We agreed: Launch on Monday.", "we agreed launch on monday"))
	assert.Equal(t, 1.0, m.Similarity("", "..."))
	assert.Equal(t, 0.0, m.Similarity("launch", ""))

	// {we, agreed, launch, on, monday} vs {we, decided, launch, on, monday}
	assert.InDelta(t, 4.0/6.0, m.Similarity("We agreed: Launch on Monday.", "We decided: Launch on Monday."), 1e-9)
}

func TestWordSet(t *testing.T) {
	set := WordSet("Ship it -- ship IT, v2!")
	assert.Len(t, set, 3)
	assert.Contains(t, set, "ship")
	assert.Contains(t, set, "it")
	assert.Contains(t, set, "v2")
}
