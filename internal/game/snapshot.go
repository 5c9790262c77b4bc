package game

// SeatSnapshot is the broadcastable view of one seat.
type SeatSnapshot struct {
	Player string `json:"player"`
	Chips  int64  `json:"chips"`
	Bet    int64  `json:"bet"`
	Folded bool   `json:"folded"`
	AllIn  bool   `json:"allIn"`
}

// Snapshot is the broadcastable view of a session, sent with every
// game-state-update. When the table is frozen the monetary figures are
// withheld rather than risk presenting untrustworthy numbers.
type Snapshot struct {
	HandID         string         `json:"handId,omitempty"`
	HandNumber     uint64         `json:"handNumber"`
	Stage          string         `json:"stage"`
	Pot            int64          `json:"pot"`
	CurrentBet     int64          `json:"currentBet"`
	Dealer         int            `json:"dealer"`
	CurrentActor   int            `json:"currentActor"`
	CommunityCards []string       `json:"communityCards,omitempty"`
	Seats          []SeatSnapshot `json:"seats"`
	Frozen         bool           `json:"frozen,omitempty"`
}

// Snapshot renders the current session state.
func (s *Session) Snapshot() Snapshot {
	seats := make([]SeatSnapshot, len(s.Seats))
	for i, seat := range s.Seats {
		seats[i] = SeatSnapshot{
			Player: seat.Player,
			Chips:  seat.Chips,
			Bet:    seat.Bet,
			Folded: seat.Folded,
			AllIn:  seat.AllIn,
		}
	}
	return Snapshot{
		HandID:         s.HandID,
		HandNumber:     s.HandNumber,
		Stage:          s.Stage.String(),
		Pot:            s.Pot,
		CurrentBet:     s.CurrentBet,
		Dealer:         s.Dealer,
		CurrentActor:   s.CurrentActor,
		CommunityCards: append([]string(nil), s.CommunityCards...),
		Seats:          seats,
	}
}

// FrozenSnapshot renders a snapshot with monetary figures withheld, used
// after a fatal mirror/ledger divergence.
func (s *Session) FrozenSnapshot() Snapshot {
	snap := s.Snapshot()
	snap.Frozen = true
	snap.Pot = 0
	snap.CurrentBet = 0
	for i := range snap.Seats {
		snap.Seats[i].Chips = 0
		snap.Seats[i].Bet = 0
	}
	return snap
}
