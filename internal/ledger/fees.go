package ledger

// FeeCalculator computes the per-hand platform fee and validates stake
// viability. The fee tracks an external cost estimate (units × unit price)
// with a markup, floored so tiny-stake tables still cover overhead.
type FeeCalculator struct {
	CostUnits        int64 // estimated cost units per hand
	UnitPrice        int64 // price per cost unit, in chip base units
	MarkupBps        int64 // markup in basis points (2500 = 25%)
	FloorFee         int64 // minimum fee per hand
	SafetyMultiplier int64 // pot-after-fee must be >= this many fees
}

// DefaultFeeCalculator returns the calculator used when no fee block is
// configured.
func DefaultFeeCalculator() *FeeCalculator {
	return &FeeCalculator{
		CostUnits:        1,
		UnitPrice:        8,
		MarkupBps:        2500,
		FloorFee:         10,
		SafetyMultiplier: 100,
	}
}

// CurrentFee returns max(costUnits × unitPrice × (1+markup), floorFee).
func (f *FeeCalculator) CurrentFee() int64 {
	fee := f.CostUnits * f.UnitPrice
	fee += fee * f.MarkupBps / 10000
	if fee < f.FloorFee {
		fee = f.FloorFee
	}
	return fee
}

// Viability reasons returned by IsViableStakes.
const (
	ReasonViable         = "viable"
	ReasonStakesZero     = "stakes_zero"
	ReasonStakesInverted = "stakes_inverted"
	ReasonFeeTooHigh     = "fee_exceeds_safety_margin"
)

// IsViableStakes reports whether a table with the given blinds can operate
// profitably for its players: blinds must be ordered and positive, and the
// posted blinds must exceed the current fee by the safety margin.
func (f *FeeCalculator) IsViableStakes(smallBlind, bigBlind int64) (bool, string) {
	if smallBlind <= 0 || bigBlind <= 0 {
		return false, ReasonStakesZero
	}
	if smallBlind >= bigBlind {
		return false, ReasonStakesInverted
	}
	fee := f.CurrentFee()
	potAfterFee := smallBlind + bigBlind - fee
	if potAfterFee < f.SafetyMultiplier*fee {
		return false, ReasonFeeTooHigh
	}
	return true, ReasonViable
}
