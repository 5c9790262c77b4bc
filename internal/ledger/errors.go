package ledger

import "github.com/feltwire/feltwire/internal/errcode"

// Stable rejection codes for every ledger mutation. A rejected call never
// mutates state.
var (
	ErrInvalidStakes         = errcode.New(errcode.Validation, "invalid_stakes", "stakes are not viable for this table")
	ErrTableNotFound         = errcode.New(errcode.Validation, "table_not_found", "no table with that id")
	ErrTableFull             = errcode.New(errcode.StateConflict, "table_full", "all seats are taken")
	ErrAlreadySeated         = errcode.New(errcode.StateConflict, "already_seated", "player is already seated at this table")
	ErrBuyInTooLow           = errcode.New(errcode.Validation, "buy_in_too_low", "buy-in is below the table minimum")
	ErrHandInProgress        = errcode.New(errcode.StateConflict, "hand_in_progress", "a hand is currently in progress")
	ErrNotSeated             = errcode.New(errcode.Validation, "not_seated", "player is not seated at this table")
	ErrNotEnoughPlayers      = errcode.New(errcode.StateConflict, "not_enough_players", "at least two seated players are required")
	ErrHandAlreadyInProgress = errcode.New(errcode.StateConflict, "hand_already_in_progress", "a hand is already active")
	ErrInsufficientBlind     = errcode.New(errcode.StateConflict, "insufficient_chips_for_blind", "blind seat cannot cover its blind")
	ErrInsufficientChips     = errcode.New(errcode.Validation, "insufficient_chips", "player cannot cover that amount")
	ErrNoPotToDistribute     = errcode.New(errcode.StateConflict, "no_pot_to_distribute", "pot is empty")
	ErrWinnerNotSeated       = errcode.New(errcode.Validation, "winner_not_seated", "winner is not seated at this table")
	ErrCardsNotRevealed      = errcode.New(errcode.StateConflict, "cards_not_revealed", "winner holds an unrevealed commitment")

	ErrSeedAlreadyRequested = errcode.New(errcode.StateConflict, "already_requested", "an unfulfilled seed request exists for this table")
	ErrSeedRequestUnknown   = errcode.New(errcode.Validation, "seed_request_unknown", "no such seed request")
	ErrSeedAlreadyFulfilled = errcode.New(errcode.StateConflict, "seed_already_fulfilled", "seed request was already fulfilled")
	ErrSeedTableInactive    = errcode.New(errcode.Validation, "seed_table_inactive", "seed request does not belong to an active table")
	ErrSeedNotFulfilled     = errcode.New(errcode.StateConflict, "seed_not_fulfilled", "seed request has not been fulfilled yet")

	ErrAlreadyCommitted       = errcode.New(errcode.StateConflict, "already_committed", "a commitment exists for this player this hand")
	ErrNotCommitted           = errcode.New(errcode.Validation, "not_committed", "no commitment exists for this player")
	ErrAlreadyRevealed        = errcode.New(errcode.StateConflict, "already_revealed", "commitment was already revealed")
	ErrCardVerificationFailed = errcode.New(errcode.Validation, "card_verification_failed", "revealed cards do not match the commitment hash")
	ErrRevealExpired          = errcode.New(errcode.Validation, "reveal_expired", "reveal submitted after the timeout window")

	ErrLedgerUnavailable = errcode.New(errcode.LedgerUnavailable, "ledger_unavailable", "ledger call failed or timed out")
)
