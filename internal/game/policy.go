package game

// SeatPolicy decides which seats post the blinds and which seat acts
// first, given the ledger's authoritative dealer index. Pluggable so the
// legacy fixed-seat behavior stays available without hardcoding it. Button
// movement between hands belongs to the ledger, which advances it on every
// payout.
type SeatPolicy interface {
	// BlindSeats returns the small and big blind seat indices for a hand
	// with numSeats seats and the given dealer index.
	BlindSeats(numSeats, dealer int) (sbSeat, bbSeat int)
	// FirstActor returns the seat index that opens the betting.
	FirstActor(numSeats, dealer int) int
}

// RotatingPolicy rotates blinds and first action with the dealer button:
// small blind left of the button, big blind next, first action left of the
// big blind. This is the default.
type RotatingPolicy struct{}

func (RotatingPolicy) BlindSeats(numSeats, dealer int) (int, int) {
	if numSeats == 2 {
		// Heads-up: the button posts the small blind.
		return dealer, (dealer + 1) % numSeats
	}
	return (dealer + 1) % numSeats, (dealer + 2) % numSeats
}

func (RotatingPolicy) FirstActor(numSeats, dealer int) int {
	if numSeats == 2 {
		return dealer
	}
	return (dealer + 3) % numSeats
}

// FixedSeatPolicy replicates the legacy behavior where the first two seated
// players post the blinds every hand and seat order never rotates. Kept
// only for compatibility with the original product; almost certainly
// unintended as a permanent rule, so new tables should use RotatingPolicy.
type FixedSeatPolicy struct{}

func (FixedSeatPolicy) BlindSeats(numSeats, dealer int) (int, int) {
	if numSeats < 2 {
		return 0, 0
	}
	return 0, 1
}

func (FixedSeatPolicy) FirstActor(numSeats, dealer int) int {
	if numSeats <= 2 {
		return 0
	}
	return 2 % numSeats
}

// PolicyByName returns the seat policy for a config value.
func PolicyByName(name string) SeatPolicy {
	if name == "fixed-seat" {
		return FixedSeatPolicy{}
	}
	return RotatingPolicy{}
}
