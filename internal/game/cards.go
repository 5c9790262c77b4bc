package game

import (
	"crypto/sha256"
	"encoding/binary"
	rand "math/rand/v2"
)

var ranks = []string{"2", "3", "4", "5", "6", "7", "8", "9", "T", "J", "Q", "K", "A"}
var suits = []string{"c", "d", "h", "s"}

// communityDeck derives the hand's community card order from the verifiable
// random seed. The first skip positions are notionally consumed by hole
// cards (dealt client-side under commit-reveal), so community cards never
// collide with them. Anyone holding the seed can recompute the board.
func communityDeck(seed []byte, skip int) []string {
	deck := make([]string, 0, 52)
	for _, suit := range suits {
		for _, rank := range ranks {
			deck = append(deck, rank+suit)
		}
	}

	sum := sha256.Sum256(seed)
	rng := rand.New(rand.NewPCG(
		binary.BigEndian.Uint64(sum[0:8]),
		binary.BigEndian.Uint64(sum[8:16]),
	))
	rng.Shuffle(len(deck), func(i, j int) {
		deck[i], deck[j] = deck[j], deck[i]
	})

	if skip < 0 || skip > len(deck)-5 {
		skip = 0
	}
	return deck[skip:]
}
