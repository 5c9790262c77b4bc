package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/coder/quartz"
)

// Commitment is a commit-reveal record for one player's hole cards this
// hand. It transitions committed false→true once, then revealed false→true
// once, and is cleared when the next hand starts.
type Commitment struct {
	TableID     string
	Player      string
	Hash        string
	Committed   bool
	Revealed    bool
	CommittedAt time.Time

	// Plaintext, populated on successful reveal.
	Card1 string
	Card2 string
	Salt  string
}

// HashCards computes the commitment hash for two cards and a salt. Clients
// use the same construction before committing.
func HashCards(card1, card2, salt string) string {
	sum := sha256.Sum256([]byte(card1 + card2 + salt))
	return hex.EncodeToString(sum[:])
}

// CommitmentRegistry is the commit-reveal store for hole cards. The
// registry mutex serializes all operations, so a double-commit race cannot
// slip through.
type CommitmentRegistry struct {
	mu            sync.Mutex
	clock         quartz.Clock
	revealTimeout time.Duration
	commitments   map[commitKey]*Commitment
}

type commitKey struct {
	tableID string
	player  string
}

// NewCommitmentRegistry creates a registry. Reveals submitted more than
// revealTimeout after the commit are rejected.
func NewCommitmentRegistry(clock quartz.Clock, revealTimeout time.Duration) *CommitmentRegistry {
	return &CommitmentRegistry{
		clock:         clock,
		revealTimeout: revealTimeout,
		commitments:   make(map[commitKey]*Commitment),
	}
}

// Commit registers a card commitment hash for the player this hand.
func (r *CommitmentRegistry) Commit(tableID, player, hash string) error {
	key := commitKey{tableID, player}
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, exists := r.commitments[key]; exists && c.Committed {
		return ErrAlreadyCommitted
	}
	r.commitments[key] = &Commitment{
		TableID:     tableID,
		Player:      player,
		Hash:        hash,
		Committed:   true,
		CommittedAt: r.clock.Now(),
	}
	return nil
}

// Reveal verifies the plaintext against the stored hash and marks the
// commitment revealed. The recomputed hash must match exactly and the
// reveal must land inside the timeout window.
func (r *CommitmentRegistry) Reveal(tableID, player, card1, card2, salt string) error {
	key := commitKey{tableID, player}
	r.mu.Lock()
	defer r.mu.Unlock()
	c, exists := r.commitments[key]
	if !exists || !c.Committed {
		return ErrNotCommitted
	}
	if c.Revealed {
		return ErrAlreadyRevealed
	}
	if r.clock.Now().Sub(c.CommittedAt) > r.revealTimeout {
		return ErrRevealExpired
	}
	if HashCards(card1, card2, salt) != c.Hash {
		return ErrCardVerificationFailed
	}

	c.Revealed = true
	c.Card1, c.Card2, c.Salt = card1, card2, salt
	return nil
}

// Get returns the commitment for a player, or nil when none exists.
func (r *CommitmentRegistry) Get(tableID, player string) *Commitment {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, exists := r.commitments[commitKey{tableID, player}]
	if !exists {
		return nil
	}
	copied := *c
	return &copied
}

// WithinTimeout reports whether a reveal for the player's commitment would
// still land inside the timeout window.
func (r *CommitmentRegistry) WithinTimeout(tableID, player string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, exists := r.commitments[commitKey{tableID, player}]
	if !exists || !c.Committed {
		return false
	}
	return r.clock.Now().Sub(c.CommittedAt) <= r.revealTimeout
}

// ClearTable drops all commitments for a table. Called when the next hand
// starts.
func (r *CommitmentRegistry) ClearTable(tableID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key := range r.commitments {
		if key.tableID == tableID {
			delete(r.commitments, key)
		}
	}
}
