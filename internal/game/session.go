// Package game holds the off-chain mirror of ledger state and the turn
// state machine that sequences player actions. The mirror is never the
// source of monetary truth: every chip movement is confirmed by the ledger
// before it is applied here.
package game

import "fmt"

// Stage is the hand lifecycle state.
type Stage int

const (
	Waiting Stage = iota
	Preflop
	Flop
	Turn
	River
	Showdown
)

func (s Stage) String() string {
	switch s {
	case Waiting:
		return "waiting"
	case Preflop:
		return "preflop"
	case Flop:
		return "flop"
	case Turn:
		return "turn"
	case River:
		return "river"
	case Showdown:
		return "showdown"
	default:
		return "unknown"
	}
}

// ActionKind is a player action.
type ActionKind int

const (
	Fold ActionKind = iota
	Check
	Call
	Raise
	AllIn
)

func (a ActionKind) String() string {
	switch a {
	case Fold:
		return "fold"
	case Check:
		return "check"
	case Call:
		return "call"
	case Raise:
		return "raise"
	case AllIn:
		return "all-in"
	default:
		return "unknown"
	}
}

// ParseAction maps a wire action string to an ActionKind.
func ParseAction(s string) (ActionKind, error) {
	switch s {
	case "fold":
		return Fold, nil
	case "check":
		return Check, nil
	case "call":
		return Call, nil
	case "raise":
		return Raise, nil
	case "all-in", "allin":
		return AllIn, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrBadAction, s)
	}
}

// Seat is one seated player's mirrored state.
type Seat struct {
	Player   string
	Chips    int64 // mirrored ledger balance
	Bet      int64 // committed this betting round
	TotalBet int64 // committed this hand
	Folded   bool
	AllIn    bool
}

// ActionRecord is one applied action in the hand's log.
type ActionRecord struct {
	Seq    uint64
	Player string
	Kind   ActionKind
	Amount int64
	Stage  Stage
}

// Outcome reports what an applied action did to the hand.
type Outcome struct {
	Resolved      bool // exactly one non-folded player remains
	Winner        int  // seat index, valid when Resolved
	StageAdvanced bool
	Showdown      bool // stage advanced into showdown
	NextActor     int  // seat index owing the next action, -1 if none
}

// Session is the off-chain hand mirror for one table: stage, seats, the
// community board, the action log and the turn pointer. Not safe for
// concurrent use; the orchestrator serializes access per table.
type Session struct {
	Stage          Stage
	HandID         string
	HandNumber     uint64
	Dealer         int
	Seats          []*Seat
	CommunityCards []string
	CurrentActor   int   // -1 while no hand is live
	CurrentBet     int64 // bet to match this round
	Pot            int64 // mirrored ledger pot
	TurnSeq        uint64
	Actions        []ActionRecord

	acted map[int]bool // seats that have acted since the last raise
	deck  []string
	dealt int
}

// NewSession creates an empty mirror in the waiting stage.
func NewSession() *Session {
	return &Session{Stage: Waiting, CurrentActor: -1, acted: make(map[int]bool)}
}

// AddSeat seats a player with their authoritative balance and returns the
// seat index.
func (s *Session) AddSeat(player string, chips int64) int {
	s.Seats = append(s.Seats, &Seat{Player: player, Chips: chips})
	return len(s.Seats) - 1
}

// SeatOf returns the seat index for a player, or -1.
func (s *Session) SeatOf(player string) int {
	for i, seat := range s.Seats {
		if seat.Player == player {
			return i
		}
	}
	return -1
}

// RemoveSeat drops a seat and keeps the turn pointer and dealer coherent.
// Returns true when the removed seat held the current action.
func (s *Session) RemoveSeat(idx int) bool {
	if idx < 0 || idx >= len(s.Seats) {
		return false
	}
	heldAction := s.CurrentActor == idx

	s.Seats = append(s.Seats[:idx], s.Seats[idx+1:]...)
	delete(s.acted, idx)
	shifted := make(map[int]bool, len(s.acted))
	for seat, ok := range s.acted {
		if seat > idx {
			shifted[seat-1] = ok
		} else {
			shifted[seat] = ok
		}
	}
	s.acted = shifted

	if idx < s.Dealer {
		s.Dealer--
	} else if s.Dealer >= len(s.Seats) {
		s.Dealer = 0
	}
	if s.CurrentActor > idx {
		s.CurrentActor--
	} else if heldAction {
		if len(s.Seats) == 0 {
			s.CurrentActor = -1
		} else {
			s.CurrentActor = s.CurrentActor % len(s.Seats)
			if !s.canAct(s.CurrentActor) {
				s.CurrentActor = s.nextEligible(s.CurrentActor)
			}
		}
		s.TurnSeq++
	}
	return heldAction
}

// Begin resets the mirror for a new hand. The blinds and the fee have
// already been confirmed by the ledger; netPot is the pot after the fee.
func (s *Session) Begin(handID string, handNumber uint64, dealer, sbSeat, bbSeat int, sbAmount, bbAmount, netPot int64, firstActor int, seed []byte) {
	s.HandID = handID
	s.HandNumber = handNumber
	s.Dealer = dealer
	s.Stage = Preflop
	s.CommunityCards = nil
	s.Actions = nil
	s.acted = make(map[int]bool)
	s.Pot = netPot
	s.CurrentBet = bbAmount
	s.deck = communityDeck(seed, 2*len(s.Seats))
	s.dealt = 0

	for _, seat := range s.Seats {
		seat.Bet = 0
		seat.TotalBet = 0
		seat.Folded = false
		seat.AllIn = false
	}
	if sbSeat >= 0 && sbSeat < len(s.Seats) {
		s.Seats[sbSeat].Chips -= sbAmount
		s.Seats[sbSeat].Bet = sbAmount
		s.Seats[sbSeat].TotalBet = sbAmount
	}
	if bbSeat >= 0 && bbSeat < len(s.Seats) {
		s.Seats[bbSeat].Chips -= bbAmount
		s.Seats[bbSeat].Bet = bbAmount
		s.Seats[bbSeat].TotalBet = bbAmount
	}

	s.CurrentActor = firstActor
	s.TurnSeq++
}

// Live reports whether a hand is in progress.
func (s *Session) Live() bool {
	return s.Stage != Waiting
}

// ActionDelta validates an action for the seat and returns the chip delta
// the ledger must move. No mirror state is mutated; the orchestrator calls
// the ledger first and applies only on confirmation.
func (s *Session) ActionDelta(idx int, kind ActionKind, amount int64) (int64, error) {
	if !s.Live() || s.Stage == Showdown {
		return 0, ErrNoHandActive
	}
	if idx != s.CurrentActor {
		// A seat that already acted or folded this round lost a race: its
		// turn was resolved (typically by a timeout fold) before this
		// action arrived.
		if s.Seats[idx].Folded || s.acted[idx] {
			return 0, ErrAlreadyActed
		}
		return 0, ErrNotYourTurn
	}
	seat := s.Seats[idx]

	switch kind {
	case Fold:
		return 0, nil
	case Check:
		if seat.Bet != s.CurrentBet {
			return 0, ErrCheckInvalid
		}
		return 0, nil
	case Call:
		return s.CurrentBet - seat.Bet, nil
	case Raise:
		if amount <= s.CurrentBet {
			return 0, ErrRaiseTooSmall
		}
		return amount - seat.Bet, nil
	case AllIn:
		return seat.Chips, nil
	default:
		return 0, ErrBadAction
	}
}

// Apply mutates the mirror with a ledger-confirmed action and advances the
// turn. delta is the amount the ledger moved into the pot.
func (s *Session) Apply(idx int, kind ActionKind, amount, delta int64) Outcome {
	seat := s.Seats[idx]
	s.TurnSeq++

	switch kind {
	case Fold:
		seat.Folded = true
	case Check:
		// No chips move.
	case Call, Raise, AllIn:
		seat.Chips -= delta
		seat.Bet += delta
		seat.TotalBet += delta
		s.Pot += delta
		if seat.Chips == 0 {
			seat.AllIn = true
		}
		if seat.Bet > s.CurrentBet {
			s.CurrentBet = seat.Bet
			s.acted = make(map[int]bool) // a raise reopens the action
		}
	}
	s.acted[idx] = true

	s.Actions = append(s.Actions, ActionRecord{
		Seq:    s.TurnSeq,
		Player: seat.Player,
		Kind:   kind,
		Amount: amount,
		Stage:  s.Stage,
	})

	if idx, ok := s.soleRemaining(); ok {
		s.CurrentActor = -1
		return Outcome{Resolved: true, Winner: idx, NextActor: -1}
	}

	outcome := Outcome{NextActor: -1}
	for s.roundComplete() && s.Stage != Showdown {
		s.advanceStage()
		outcome.StageAdvanced = true
	}
	if s.Stage == Showdown {
		s.CurrentActor = -1
		outcome.Showdown = true
		return outcome
	}
	if outcome.StageAdvanced {
		s.CurrentActor = s.nextEligible(s.Dealer)
	} else {
		s.CurrentActor = s.nextEligible(s.CurrentActor)
	}
	outcome.NextActor = s.CurrentActor
	return outcome
}

// CreditWinner applies a confirmed payout to the mirror and resets the
// session to waiting.
func (s *Session) CreditWinner(idx int, payout int64) {
	if idx >= 0 && idx < len(s.Seats) {
		s.Seats[idx].Chips += payout
	}
	s.Pot = 0
	s.Stage = Waiting
	s.CurrentActor = -1
	s.CurrentBet = 0
	s.TurnSeq++
	for _, seat := range s.Seats {
		seat.Bet = 0
	}
}

// soleRemaining returns the only non-folded seat, if exactly one remains.
func (s *Session) soleRemaining() (int, bool) {
	remaining := -1
	for i, seat := range s.Seats {
		if !seat.Folded {
			if remaining != -1 {
				return -1, false
			}
			remaining = i
		}
	}
	return remaining, remaining != -1
}

// canAct reports whether a seat can take an action.
func (s *Session) canAct(idx int) bool {
	if idx < 0 || idx >= len(s.Seats) {
		return false
	}
	seat := s.Seats[idx]
	return !seat.Folded && !seat.AllIn
}

// nextEligible finds the next seat after start that can act, wrapping
// around. Returns -1 when nobody can.
func (s *Session) nextEligible(start int) int {
	n := len(s.Seats)
	for i := 1; i <= n; i++ {
		idx := (start + i) % n
		if s.canAct(idx) {
			return idx
		}
	}
	return -1
}

// roundComplete reports whether every seat still able to act has acted
// since the last raise and matched the current bet.
func (s *Session) roundComplete() bool {
	for i, seat := range s.Seats {
		if seat.Folded || seat.AllIn {
			continue
		}
		if !s.acted[i] || seat.Bet != s.CurrentBet {
			return false
		}
	}
	return true
}

// advanceStage moves to the next street, dealing community cards from the
// seed-derived deck and resetting per-round bets.
func (s *Session) advanceStage() {
	for _, seat := range s.Seats {
		seat.Bet = 0
	}
	s.CurrentBet = 0
	s.acted = make(map[int]bool)

	switch s.Stage {
	case Preflop:
		s.Stage = Flop
		s.dealCommunity(3)
	case Flop:
		s.Stage = Turn
		s.dealCommunity(1)
	case Turn:
		s.Stage = River
		s.dealCommunity(1)
	case River:
		s.Stage = Showdown
	}
}

func (s *Session) dealCommunity(n int) {
	for i := 0; i < n && s.dealt < len(s.deck); i++ {
		s.CommunityCards = append(s.CommunityCards, s.deck[s.dealt])
		s.dealt++
	}
}
