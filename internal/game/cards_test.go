package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommunityDeckDeterministic(t *testing.T) {
	seed := []byte("verifiable-seed")

	d1 := communityDeck(seed, 0)
	d2 := communityDeck(seed, 0)
	assert.Equal(t, d1, d2, "same seed yields the same board order")

	d3 := communityDeck([]byte("different-seed"), 0)
	assert.NotEqual(t, d1, d3)
}

func TestCommunityDeckComplete(t *testing.T) {
	deck := communityDeck([]byte("seed"), 0)
	require.Len(t, deck, 52)

	seen := make(map[string]bool, 52)
	for _, card := range deck {
		require.Len(t, card, 2)
		assert.False(t, seen[card], "duplicate card %s", card)
		seen[card] = true
	}
}

func TestCommunityDeckSkipsHoleCards(t *testing.T) {
	seed := []byte("seed")

	full := communityDeck(seed, 0)
	// Six hole cards consumed for a three-handed table
	skipped := communityDeck(seed, 6)

	assert.Equal(t, full[6:], skipped)
}

func TestCommunityDeckSkipClamped(t *testing.T) {
	seed := []byte("seed")

	// A skip that would leave fewer than five board cards is ignored
	assert.Len(t, communityDeck(seed, 48), 52)
	assert.Len(t, communityDeck(seed, -1), 52)
	assert.Len(t, communityDeck(seed, 47), 5)
}
