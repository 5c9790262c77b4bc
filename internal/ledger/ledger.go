// Package ledger models the authoritative wagering ledger the orchestrator
// coordinates against. The Ledger interface is the remote surface: calls
// are slow, may fail, and are the only way chips move. MemoryLedger is the
// reference implementation with contract semantics, used in-process and by
// tests; production deployments swap in a chain-backed client.
package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/coder/quartz"

	"github.com/feltwire/feltwire/internal/gameid"
)

// Table is the ledger-held table configuration and hand state. Blinds are
// immutable after creation; the table persists for the ledger lifetime.
type Table struct {
	ID             string
	SmallBlind     int64
	BigBlind       int64
	MinBuyIn       int64 // 50 × big blind
	MaxSeats       int
	IsActive       bool
	Pot            int64
	HandNumber     uint64
	DealerIndex    int
	HandInProgress bool
	Seats          []string // player ids in seat order
}

// Account is a player's ledger state at one table.
type Account struct {
	TableID string
	Player  string
	Chips   int64
	Seated  bool
}

// HandStart reports the outcome of a successful StartNewHand.
type HandStart struct {
	HandNumber uint64
	Fee        int64
	Pot        int64
	SmallBlind string
	BigBlind   string
}

// Ledger is the authoritative ledger surface consumed by the orchestrator.
// Mutating hand operations carry an idempotency key: retrying a call with
// the same key replays the recorded outcome instead of double-applying.
type Ledger interface {
	CreateTable(ctx context.Context, smallBlind, bigBlind int64) (string, error)
	JoinTable(ctx context.Context, tableID, player string, buyIn int64) error
	LeaveTable(ctx context.Context, tableID, player string) (int64, error)

	GetTableInfo(ctx context.Context, tableID string) (Table, error)
	GetPlayerInfo(ctx context.Context, tableID, player string) (Account, error)
	GetPlayers(ctx context.Context, tableID string) ([]Account, error)

	StartNewHand(ctx context.Context, tableID, sbPlayer, bbPlayer, idemKey string) (HandStart, error)
	AddToPot(ctx context.Context, tableID, player string, amount int64, idemKey string) (int64, error)
	DistributeWinnings(ctx context.Context, tableID, winner, idemKey string) (int64, error)

	RequestRandomSeed(ctx context.Context, tableID string) (string, error)
	GetRandomSeed(ctx context.Context, tableID string) ([]byte, error)

	CommitCards(ctx context.Context, tableID, player, hash string) error
	RevealCards(ctx context.Context, tableID, player, card1, card2, salt string) error
	GetCardCommitment(ctx context.Context, tableID, player string) (*Commitment, error)
	IsRevealWithinTimeout(ctx context.Context, tableID, player string) (bool, error)

	IsViableStakes(ctx context.Context, smallBlind, bigBlind int64) (bool, string, error)
	GetCurrentFee(ctx context.Context) (int64, error)

	Subscribe(sub EventSubscriber)
}

// MemoryLedger implements Ledger with in-process state. Each table has its
// own lock; tables are fully independent.
type MemoryLedger struct {
	mu       sync.RWMutex
	tables   map[string]*tableState
	fees     *FeeCalculator
	seeds    *SeedBroker
	commits  *CommitmentRegistry
	events   *eventBus
	ids      *gameid.Generator
	idemMu   sync.Mutex
	idemDone map[string]idemResult
}

type tableState struct {
	mu       sync.Mutex
	table    Table
	accounts map[string]*Account
}

type idemResult struct {
	hand   HandStart
	amount int64
}

// Options configures a MemoryLedger.
type Options struct {
	Fees          *FeeCalculator
	Clock         quartz.Clock
	RevealTimeout time.Duration
	IDs           *gameid.Generator
}

// NewMemoryLedger creates a fresh, isolated ledger store. Pass a distinct
// instance to each orchestrator under test; there is no singleton.
func NewMemoryLedger(opts Options) *MemoryLedger {
	if opts.Fees == nil {
		opts.Fees = DefaultFeeCalculator()
	}
	if opts.Clock == nil {
		opts.Clock = quartz.NewReal()
	}
	if opts.RevealTimeout <= 0 {
		opts.RevealTimeout = 5 * time.Minute
	}
	if opts.IDs == nil {
		opts.IDs = gameid.NewGenerator(nil)
	}

	l := &MemoryLedger{
		tables:   make(map[string]*tableState),
		fees:     opts.Fees,
		commits:  NewCommitmentRegistry(opts.Clock, opts.RevealTimeout),
		events:   newEventBus(),
		ids:      opts.IDs,
		idemDone: make(map[string]idemResult),
	}
	l.seeds = NewSeedBroker(l.tableActive, opts.IDs)
	return l
}

// Subscribe registers a consumer for sequenced ledger events.
func (l *MemoryLedger) Subscribe(sub EventSubscriber) {
	l.events.subscribe(sub)
}

func (l *MemoryLedger) tableActive(tableID string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ts, ok := l.tables[tableID]
	return ok && ts.table.IsActive
}

func (l *MemoryLedger) get(tableID string) (*tableState, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ts, ok := l.tables[tableID]
	if !ok {
		return nil, ErrTableNotFound
	}
	return ts, nil
}

// CreateTable registers a new table after validating stake viability.
func (l *MemoryLedger) CreateTable(ctx context.Context, smallBlind, bigBlind int64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if viable, _ := l.fees.IsViableStakes(smallBlind, bigBlind); !viable {
		return "", ErrInvalidStakes
	}

	id := l.ids.Table()
	ts := &tableState{
		table: Table{
			ID:         id,
			SmallBlind: smallBlind,
			BigBlind:   bigBlind,
			MinBuyIn:   50 * bigBlind,
			MaxSeats:   9,
			IsActive:   true,
		},
		accounts: make(map[string]*Account),
	}

	l.mu.Lock()
	l.tables[id] = ts
	l.mu.Unlock()

	l.events.publish(Event{Type: EventTableCreated, TableID: id})
	return id, nil
}

// JoinTable seats a player with their buy-in as their chip balance.
func (l *MemoryLedger) JoinTable(ctx context.Context, tableID, player string, buyIn int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ts, err := l.get(tableID)
	if err != nil {
		return err
	}

	err = func() error {
		ts.mu.Lock()
		defer ts.mu.Unlock()

		if len(ts.table.Seats) >= ts.table.MaxSeats {
			return ErrTableFull
		}
		if acct, exists := ts.accounts[player]; exists && acct.Seated {
			return ErrAlreadySeated
		}
		if buyIn < ts.table.MinBuyIn {
			return ErrBuyInTooLow
		}

		ts.accounts[player] = &Account{TableID: tableID, Player: player, Chips: buyIn, Seated: true}
		ts.table.Seats = append(ts.table.Seats, player)
		return nil
	}()
	if err != nil {
		return err
	}

	l.events.publish(Event{Type: EventPlayerJoined, TableID: tableID, Player: player, Amount: buyIn})
	return nil
}

// LeaveTable pays out the player's balance and clears the seat. Forbidden
// while a hand is in progress.
func (l *MemoryLedger) LeaveTable(ctx context.Context, tableID, player string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	ts, err := l.get(tableID)
	if err != nil {
		return 0, err
	}

	var payout int64
	err = func() error {
		ts.mu.Lock()
		defer ts.mu.Unlock()

		if ts.table.HandInProgress {
			return ErrHandInProgress
		}
		acct, exists := ts.accounts[player]
		if !exists || !acct.Seated {
			return ErrNotSeated
		}

		payout = acct.Chips
		acct.Chips = 0
		acct.Seated = false
		for i, seat := range ts.table.Seats {
			if seat == player {
				ts.table.Seats = append(ts.table.Seats[:i], ts.table.Seats[i+1:]...)
				// The button stays with the same player when an earlier
				// seat vacates.
				if i < ts.table.DealerIndex {
					ts.table.DealerIndex--
				} else if ts.table.DealerIndex >= len(ts.table.Seats) {
					ts.table.DealerIndex = 0
				}
				break
			}
		}
		return nil
	}()
	if err != nil {
		return 0, err
	}

	l.events.publish(Event{Type: EventPlayerLeft, TableID: tableID, Player: player, Amount: payout})
	return payout, nil
}

// GetTableInfo returns a copy of the ledger table state.
func (l *MemoryLedger) GetTableInfo(ctx context.Context, tableID string) (Table, error) {
	if err := ctx.Err(); err != nil {
		return Table{}, err
	}
	ts, err := l.get(tableID)
	if err != nil {
		return Table{}, err
	}
	ts.mu.Lock()
	defer ts.mu.Unlock()
	table := ts.table
	table.Seats = append([]string(nil), ts.table.Seats...)
	return table, nil
}

// GetPlayerInfo returns a player's account at a table.
func (l *MemoryLedger) GetPlayerInfo(ctx context.Context, tableID, player string) (Account, error) {
	if err := ctx.Err(); err != nil {
		return Account{}, err
	}
	ts, err := l.get(tableID)
	if err != nil {
		return Account{}, err
	}
	ts.mu.Lock()
	defer ts.mu.Unlock()
	acct, exists := ts.accounts[player]
	if !exists || !acct.Seated {
		return Account{}, ErrNotSeated
	}
	return *acct, nil
}

// GetPlayers returns the seated accounts in seat order.
func (l *MemoryLedger) GetPlayers(ctx context.Context, tableID string) ([]Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ts, err := l.get(tableID)
	if err != nil {
		return nil, err
	}
	ts.mu.Lock()
	defer ts.mu.Unlock()
	accounts := make([]Account, 0, len(ts.table.Seats))
	for _, player := range ts.table.Seats {
		accounts = append(accounts, *ts.accounts[player])
	}
	return accounts, nil
}

// StartNewHand debits the designated blind seats, deducts the platform fee
// from the posted blinds, credits the net to the pot, and increments the
// hand counter. Commitments from the previous hand are cleared.
func (l *MemoryLedger) StartNewHand(ctx context.Context, tableID, sbPlayer, bbPlayer, idemKey string) (HandStart, error) {
	if err := ctx.Err(); err != nil {
		return HandStart{}, err
	}
	if done, ok := l.replay(idemKey); ok {
		return done.hand, nil
	}
	ts, err := l.get(tableID)
	if err != nil {
		return HandStart{}, err
	}

	var result HandStart
	err = func() error {
		ts.mu.Lock()
		defer ts.mu.Unlock()

		if ts.table.HandInProgress {
			return ErrHandAlreadyInProgress
		}
		if len(ts.table.Seats) < 2 {
			return ErrNotEnoughPlayers
		}
		sb, sbOK := ts.accounts[sbPlayer]
		bb, bbOK := ts.accounts[bbPlayer]
		if !sbOK || !sb.Seated || !bbOK || !bb.Seated {
			return ErrNotSeated
		}
		// Unreachable when min buy-in is enforced, kept as a defensive check.
		if sb.Chips < ts.table.SmallBlind || bb.Chips < ts.table.BigBlind {
			return ErrInsufficientBlind
		}

		fee := l.fees.CurrentFee()
		sb.Chips -= ts.table.SmallBlind
		bb.Chips -= ts.table.BigBlind
		ts.table.Pot += ts.table.SmallBlind + ts.table.BigBlind - fee
		ts.table.HandNumber++
		ts.table.HandInProgress = true

		l.commits.ClearTable(tableID)

		result = HandStart{
			HandNumber: ts.table.HandNumber,
			Fee:        fee,
			Pot:        ts.table.Pot,
			SmallBlind: sbPlayer,
			BigBlind:   bbPlayer,
		}
		return nil
	}()
	if err != nil {
		return HandStart{}, err
	}

	l.record(idemKey, idemResult{hand: result})
	l.events.publish(Event{Type: EventHandStarted, TableID: tableID, Hand: result.HandNumber, Amount: result.Pot})
	return result, nil
}

// AddToPot debits the player and credits the pot, returning the pot after
// the debit.
func (l *MemoryLedger) AddToPot(ctx context.Context, tableID, player string, amount int64, idemKey string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if done, ok := l.replay(idemKey); ok {
		return done.amount, nil
	}
	ts, err := l.get(tableID)
	if err != nil {
		return 0, err
	}

	var potAfter int64
	err = func() error {
		ts.mu.Lock()
		defer ts.mu.Unlock()

		acct, exists := ts.accounts[player]
		if !exists || !acct.Seated {
			return ErrNotSeated
		}
		if amount <= 0 || acct.Chips < amount {
			return ErrInsufficientChips
		}

		acct.Chips -= amount
		ts.table.Pot += amount
		potAfter = ts.table.Pot
		return nil
	}()
	if err != nil {
		return 0, err
	}

	l.record(idemKey, idemResult{amount: potAfter})
	return potAfter, nil
}

// DistributeWinnings credits the winner with the whole pot, zeroes it and
// advances the dealer button one seat. If the winner holds a card
// commitment it must be revealed first.
func (l *MemoryLedger) DistributeWinnings(ctx context.Context, tableID, winner, idemKey string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if done, ok := l.replay(idemKey); ok {
		return done.amount, nil
	}
	ts, err := l.get(tableID)
	if err != nil {
		return 0, err
	}

	var payout int64
	var hand uint64
	err = func() error {
		ts.mu.Lock()
		defer ts.mu.Unlock()

		if ts.table.Pot <= 0 {
			return ErrNoPotToDistribute
		}
		acct, exists := ts.accounts[winner]
		if !exists || !acct.Seated {
			return ErrWinnerNotSeated
		}
		if c := l.commits.Get(tableID, winner); c != nil && c.Committed && !c.Revealed {
			return ErrCardsNotRevealed
		}

		payout = ts.table.Pot
		acct.Chips += payout
		ts.table.Pot = 0
		ts.table.HandInProgress = false
		if n := len(ts.table.Seats); n > 0 {
			ts.table.DealerIndex = (ts.table.DealerIndex + 1) % n
		}
		hand = ts.table.HandNumber
		return nil
	}()
	if err != nil {
		return 0, err
	}

	l.record(idemKey, idemResult{amount: payout})
	l.events.publish(Event{Type: EventWinnerPaid, TableID: tableID, Player: winner, Amount: payout, Hand: hand})
	return payout, nil
}

// RequestRandomSeed opens a verifiable-seed request for the table.
func (l *MemoryLedger) RequestRandomSeed(ctx context.Context, tableID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id, err := l.seeds.Request(tableID)
	if err != nil {
		return "", err
	}
	l.events.publish(Event{Type: EventRandomSeedRequested, TableID: tableID, Ref: id})
	return id, nil
}

// FulfillRandomSeed is invoked by the external randomness source. Not part
// of the orchestrator-facing Ledger interface.
func (l *MemoryLedger) FulfillRandomSeed(requestID string, value []byte) error {
	if err := l.seeds.Fulfill(requestID, value); err != nil {
		return err
	}
	l.events.publish(Event{Type: EventRandomSeedFulfilled, Ref: requestID})
	return nil
}

// GetRandomSeed returns the table's most recently fulfilled seed.
func (l *MemoryLedger) GetRandomSeed(ctx context.Context, tableID string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return l.seeds.Seed(tableID)
}

// CommitCards registers a hole-card commitment for this hand.
func (l *MemoryLedger) CommitCards(ctx context.Context, tableID, player, hash string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := l.get(tableID); err != nil {
		return err
	}
	if err := l.commits.Commit(tableID, player, hash); err != nil {
		return err
	}
	l.events.publish(Event{Type: EventCardCommitted, TableID: tableID, Player: player})
	return nil
}

// RevealCards verifies and stores the commitment plaintext.
func (l *MemoryLedger) RevealCards(ctx context.Context, tableID, player, card1, card2, salt string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := l.commits.Reveal(tableID, player, card1, card2, salt); err != nil {
		return err
	}
	l.events.publish(Event{Type: EventCardRevealed, TableID: tableID, Player: player})
	return nil
}

// GetCardCommitment returns the player's commitment this hand, nil if none.
func (l *MemoryLedger) GetCardCommitment(ctx context.Context, tableID, player string) (*Commitment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return l.commits.Get(tableID, player), nil
}

// IsRevealWithinTimeout reports whether a reveal would still be accepted.
func (l *MemoryLedger) IsRevealWithinTimeout(ctx context.Context, tableID, player string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return l.commits.WithinTimeout(tableID, player), nil
}

// IsViableStakes validates blinds against the current fee.
func (l *MemoryLedger) IsViableStakes(ctx context.Context, smallBlind, bigBlind int64) (bool, string, error) {
	if err := ctx.Err(); err != nil {
		return false, "", err
	}
	viable, reason := l.fees.IsViableStakes(smallBlind, bigBlind)
	return viable, reason, nil
}

// GetCurrentFee returns the current per-hand platform fee.
func (l *MemoryLedger) GetCurrentFee(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return l.fees.CurrentFee(), nil
}

func (l *MemoryLedger) replay(idemKey string) (idemResult, bool) {
	if idemKey == "" {
		return idemResult{}, false
	}
	l.idemMu.Lock()
	defer l.idemMu.Unlock()
	done, ok := l.idemDone[idemKey]
	return done, ok
}

func (l *MemoryLedger) record(idemKey string, result idemResult) {
	if idemKey == "" {
		return
	}
	l.idemMu.Lock()
	defer l.idemMu.Unlock()
	l.idemDone[idemKey] = result
}
