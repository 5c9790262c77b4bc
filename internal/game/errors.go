package game

import "github.com/feltwire/feltwire/internal/errcode"

var (
	ErrNotYourTurn   = errcode.New(errcode.Authorization, "not_your_turn", "it is not this player's turn to act")
	ErrAlreadyActed  = errcode.New(errcode.StateConflict, "already_acted", "the turn this action targeted has already been resolved")
	ErrNoHandActive  = errcode.New(errcode.StateConflict, "no_hand_active", "no hand is in progress")
	ErrSeatNotFound  = errcode.New(errcode.Validation, "seat_not_found", "player has no seat in this session")
	ErrCheckInvalid  = errcode.New(errcode.Validation, "check_invalid", "cannot check against an outstanding bet")
	ErrRaiseTooSmall = errcode.New(errcode.Validation, "raise_too_small", "raise must exceed the current bet")
	ErrBadAction     = errcode.New(errcode.Validation, "bad_action", "unknown action kind")
	ErrTableFrozen   = errcode.New(errcode.FatalDesync, "table_frozen", "table is frozen pending manual reconciliation")
)
