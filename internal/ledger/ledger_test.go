package ledger

import (
	"context"
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *log.Logger {
	return log.New(io.Discard)
}

// Stakes used throughout: 1000/2000 with the default fee of 10 per hand.
const (
	testSB    = int64(1000)
	testBB    = int64(2000)
	testBuyIn = int64(100_000) // min buy-in, 50 × big blind
)

func newTestLedger(t *testing.T) (*MemoryLedger, string) {
	t.Helper()
	l := NewMemoryLedger(Options{})
	tableID, err := l.CreateTable(context.Background(), testSB, testBB)
	require.NoError(t, err)
	return l, tableID
}

func seatPlayers(t *testing.T, l *MemoryLedger, tableID string, players ...string) {
	t.Helper()
	for _, p := range players {
		require.NoError(t, l.JoinTable(context.Background(), tableID, p, testBuyIn))
	}
}

func TestCreateTableRejectsInviableStakes(t *testing.T) {
	l := NewMemoryLedger(Options{})
	ctx := context.Background()

	_, err := l.CreateTable(ctx, 2000, 1000)
	assert.ErrorIs(t, err, ErrInvalidStakes)

	_, err = l.CreateTable(ctx, 0, 2000)
	assert.ErrorIs(t, err, ErrInvalidStakes)

	// Stakes too small to clear the fee safety margin
	_, err = l.CreateTable(ctx, 100, 200)
	assert.ErrorIs(t, err, ErrInvalidStakes)
}

func TestJoinTableValidation(t *testing.T) {
	l, tableID := newTestLedger(t)
	ctx := context.Background()

	assert.ErrorIs(t, l.JoinTable(ctx, "tbl_missing", "alice", testBuyIn), ErrTableNotFound)
	assert.ErrorIs(t, l.JoinTable(ctx, tableID, "alice", testBuyIn-1), ErrBuyInTooLow)

	require.NoError(t, l.JoinTable(ctx, tableID, "alice", testBuyIn))
	assert.ErrorIs(t, l.JoinTable(ctx, tableID, "alice", testBuyIn), ErrAlreadySeated)
}

func TestJoinTableFull(t *testing.T) {
	l, tableID := newTestLedger(t)
	ctx := context.Background()

	players := []string{"p1", "p2", "p3", "p4", "p5", "p6", "p7", "p8", "p9"}
	seatPlayers(t, l, tableID, players...)

	assert.ErrorIs(t, l.JoinTable(ctx, tableID, "p10", testBuyIn), ErrTableFull)
}

func TestLeaveTablePaysOutBalance(t *testing.T) {
	l, tableID := newTestLedger(t)
	ctx := context.Background()
	seatPlayers(t, l, tableID, "alice", "bob")

	payout, err := l.LeaveTable(ctx, tableID, "alice")
	require.NoError(t, err)
	assert.Equal(t, testBuyIn, payout)

	_, err = l.GetPlayerInfo(ctx, tableID, "alice")
	assert.ErrorIs(t, err, ErrNotSeated)

	_, err = l.LeaveTable(ctx, tableID, "alice")
	assert.ErrorIs(t, err, ErrNotSeated)
}

func TestLeaveBelowButtonKeepsDealerOnSamePlayer(t *testing.T) {
	l, tableID := newTestLedger(t)
	ctx := context.Background()
	seatPlayers(t, l, tableID, "alice", "bob", "carol")

	// Play one hand so the button advances to bob
	_, err := l.StartNewHand(ctx, tableID, "bob", "carol", "")
	require.NoError(t, err)
	_, err = l.DistributeWinnings(ctx, tableID, "carol", "")
	require.NoError(t, err)

	info, err := l.GetTableInfo(ctx, tableID)
	require.NoError(t, err)
	require.Equal(t, 1, info.DealerIndex)

	// Alice vacates the seat below the button; bob keeps it
	_, err = l.LeaveTable(ctx, tableID, "alice")
	require.NoError(t, err)

	info, err = l.GetTableInfo(ctx, tableID)
	require.NoError(t, err)
	assert.Equal(t, []string{"bob", "carol"}, info.Seats)
	assert.Equal(t, 0, info.DealerIndex)
}

func TestLeaveTableForbiddenMidHand(t *testing.T) {
	l, tableID := newTestLedger(t)
	ctx := context.Background()
	seatPlayers(t, l, tableID, "alice", "bob")

	_, err := l.StartNewHand(ctx, tableID, "alice", "bob", "")
	require.NoError(t, err)

	_, err = l.LeaveTable(ctx, tableID, "alice")
	assert.ErrorIs(t, err, ErrHandInProgress)
}

func TestStartNewHandPostsBlindsAndFee(t *testing.T) {
	l, tableID := newTestLedger(t)
	ctx := context.Background()
	seatPlayers(t, l, tableID, "alice", "bob")

	start, err := l.StartNewHand(ctx, tableID, "alice", "bob", "")
	require.NoError(t, err)

	fee, err := l.GetCurrentFee(ctx)
	require.NoError(t, err)

	assert.Equal(t, uint64(1), start.HandNumber)
	assert.Equal(t, fee, start.Fee)
	assert.Equal(t, testSB+testBB-fee, start.Pot)

	alice, err := l.GetPlayerInfo(ctx, tableID, "alice")
	require.NoError(t, err)
	assert.Equal(t, testBuyIn-testSB, alice.Chips)

	bob, err := l.GetPlayerInfo(ctx, tableID, "bob")
	require.NoError(t, err)
	assert.Equal(t, testBuyIn-testBB, bob.Chips)

	info, err := l.GetTableInfo(ctx, tableID)
	require.NoError(t, err)
	assert.True(t, info.HandInProgress)
	assert.Equal(t, start.Pot, info.Pot)
}

func TestStartNewHandValidation(t *testing.T) {
	l, tableID := newTestLedger(t)
	ctx := context.Background()

	_, err := l.StartNewHand(ctx, tableID, "alice", "bob", "")
	assert.ErrorIs(t, err, ErrNotEnoughPlayers)

	seatPlayers(t, l, tableID, "alice", "bob")

	_, err = l.StartNewHand(ctx, tableID, "alice", "carol", "")
	assert.ErrorIs(t, err, ErrNotSeated)

	_, err = l.StartNewHand(ctx, tableID, "alice", "bob", "")
	require.NoError(t, err)

	_, err = l.StartNewHand(ctx, tableID, "alice", "bob", "")
	assert.ErrorIs(t, err, ErrHandAlreadyInProgress)
}

func TestAddToPot(t *testing.T) {
	l, tableID := newTestLedger(t)
	ctx := context.Background()
	seatPlayers(t, l, tableID, "alice", "bob")

	start, err := l.StartNewHand(ctx, tableID, "alice", "bob", "")
	require.NoError(t, err)

	potAfter, err := l.AddToPot(ctx, tableID, "alice", 5000, "")
	require.NoError(t, err)
	assert.Equal(t, start.Pot+5000, potAfter)

	alice, err := l.GetPlayerInfo(ctx, tableID, "alice")
	require.NoError(t, err)
	assert.Equal(t, testBuyIn-testSB-5000, alice.Chips)
}

func TestAddToPotValidation(t *testing.T) {
	l, tableID := newTestLedger(t)
	ctx := context.Background()
	seatPlayers(t, l, tableID, "alice", "bob")

	_, err := l.AddToPot(ctx, tableID, "carol", 100, "")
	assert.ErrorIs(t, err, ErrNotSeated)

	_, err = l.AddToPot(ctx, tableID, "alice", 0, "")
	assert.ErrorIs(t, err, ErrInsufficientChips)

	_, err = l.AddToPot(ctx, tableID, "alice", testBuyIn+1, "")
	assert.ErrorIs(t, err, ErrInsufficientChips)
}

func TestDistributeWinnings(t *testing.T) {
	l, tableID := newTestLedger(t)
	ctx := context.Background()
	seatPlayers(t, l, tableID, "alice", "bob")

	start, err := l.StartNewHand(ctx, tableID, "alice", "bob", "")
	require.NoError(t, err)

	payout, err := l.DistributeWinnings(ctx, tableID, "alice", "")
	require.NoError(t, err)
	assert.Equal(t, start.Pot, payout)

	alice, err := l.GetPlayerInfo(ctx, tableID, "alice")
	require.NoError(t, err)
	assert.Equal(t, testBuyIn-testSB+payout, alice.Chips)

	info, err := l.GetTableInfo(ctx, tableID)
	require.NoError(t, err)
	assert.Zero(t, info.Pot)
	assert.False(t, info.HandInProgress)
	assert.Equal(t, 1, info.DealerIndex, "dealer button advances one seat")

	_, err = l.DistributeWinnings(ctx, tableID, "alice", "")
	assert.ErrorIs(t, err, ErrNoPotToDistribute)
}

func TestDistributeWinningsRequiresSeatedWinner(t *testing.T) {
	l, tableID := newTestLedger(t)
	ctx := context.Background()
	seatPlayers(t, l, tableID, "alice", "bob")

	_, err := l.StartNewHand(ctx, tableID, "alice", "bob", "")
	require.NoError(t, err)

	_, err = l.DistributeWinnings(ctx, tableID, "carol", "")
	assert.ErrorIs(t, err, ErrWinnerNotSeated)
}

func TestDistributeWinningsBlockedByUnrevealedCommitment(t *testing.T) {
	l, tableID := newTestLedger(t)
	ctx := context.Background()
	seatPlayers(t, l, tableID, "alice", "bob")

	_, err := l.StartNewHand(ctx, tableID, "alice", "bob", "")
	require.NoError(t, err)

	require.NoError(t, l.CommitCards(ctx, tableID, "alice", HashCards("Ah", "Kd", "s")))

	_, err = l.DistributeWinnings(ctx, tableID, "alice", "")
	assert.ErrorIs(t, err, ErrCardsNotRevealed)

	require.NoError(t, l.RevealCards(ctx, tableID, "alice", "Ah", "Kd", "s"))

	_, err = l.DistributeWinnings(ctx, tableID, "alice", "")
	require.NoError(t, err)
}

func TestNewHandClearsCommitments(t *testing.T) {
	l, tableID := newTestLedger(t)
	ctx := context.Background()
	seatPlayers(t, l, tableID, "alice", "bob")

	_, err := l.StartNewHand(ctx, tableID, "alice", "bob", "")
	require.NoError(t, err)
	require.NoError(t, l.CommitCards(ctx, tableID, "alice", HashCards("Ah", "Kd", "s")))
	require.NoError(t, l.RevealCards(ctx, tableID, "alice", "Ah", "Kd", "s"))
	_, err = l.DistributeWinnings(ctx, tableID, "alice", "")
	require.NoError(t, err)

	_, err = l.StartNewHand(ctx, tableID, "bob", "alice", "")
	require.NoError(t, err)

	c, err := l.GetCardCommitment(ctx, tableID, "alice")
	require.NoError(t, err)
	assert.Nil(t, c, "previous hand's commitment is gone")
}

func TestStartNewHandIdempotency(t *testing.T) {
	l, tableID := newTestLedger(t)
	ctx := context.Background()
	seatPlayers(t, l, tableID, "alice", "bob")

	first, err := l.StartNewHand(ctx, tableID, "alice", "bob", "key-1")
	require.NoError(t, err)

	// A retry with the same key replays the recorded outcome instead of
	// failing with hand-already-in-progress or double-debiting blinds.
	replayed, err := l.StartNewHand(ctx, tableID, "alice", "bob", "key-1")
	require.NoError(t, err)
	assert.Equal(t, first, replayed)

	alice, err := l.GetPlayerInfo(ctx, tableID, "alice")
	require.NoError(t, err)
	assert.Equal(t, testBuyIn-testSB, alice.Chips, "blind debited exactly once")
}

func TestAddToPotIdempotency(t *testing.T) {
	l, tableID := newTestLedger(t)
	ctx := context.Background()
	seatPlayers(t, l, tableID, "alice", "bob")

	start, err := l.StartNewHand(ctx, tableID, "alice", "bob", "")
	require.NoError(t, err)

	pot1, err := l.AddToPot(ctx, tableID, "alice", 5000, "key-2")
	require.NoError(t, err)
	pot2, err := l.AddToPot(ctx, tableID, "alice", 5000, "key-2")
	require.NoError(t, err)

	assert.Equal(t, pot1, pot2)

	info, err := l.GetTableInfo(ctx, tableID)
	require.NoError(t, err)
	assert.Equal(t, start.Pot+5000, info.Pot, "debit applied exactly once")
}

func TestDistributeWinningsIdempotency(t *testing.T) {
	l, tableID := newTestLedger(t)
	ctx := context.Background()
	seatPlayers(t, l, tableID, "alice", "bob")

	start, err := l.StartNewHand(ctx, tableID, "alice", "bob", "")
	require.NoError(t, err)

	pay1, err := l.DistributeWinnings(ctx, tableID, "alice", "key-3")
	require.NoError(t, err)
	pay2, err := l.DistributeWinnings(ctx, tableID, "alice", "key-3")
	require.NoError(t, err)

	assert.Equal(t, start.Pot, pay1)
	assert.Equal(t, pay1, pay2)

	alice, err := l.GetPlayerInfo(ctx, tableID, "alice")
	require.NoError(t, err)
	assert.Equal(t, testBuyIn-testSB+pay1, alice.Chips, "pot credited exactly once")
}

type eventRecorder struct {
	events []Event
}

func (r *eventRecorder) OnLedgerEvent(event Event) {
	r.events = append(r.events, event)
}

func TestEventsAreSequenced(t *testing.T) {
	l := NewMemoryLedger(Options{})
	rec := &eventRecorder{}
	l.Subscribe(rec)
	ctx := context.Background()

	tableID, err := l.CreateTable(ctx, testSB, testBB)
	require.NoError(t, err)
	seatPlayers(t, l, tableID, "alice", "bob")
	_, err = l.StartNewHand(ctx, tableID, "alice", "bob", "")
	require.NoError(t, err)
	_, err = l.DistributeWinnings(ctx, tableID, "alice", "")
	require.NoError(t, err)

	require.NotEmpty(t, rec.events)
	assert.Equal(t, EventTableCreated, rec.events[0].Type)

	for i := 1; i < len(rec.events); i++ {
		assert.Greater(t, rec.events[i].ID, rec.events[i-1].ID, "event ids strictly increase")
	}
}

func TestConservationAcrossAHand(t *testing.T) {
	l, tableID := newTestLedger(t)
	ctx := context.Background()
	seatPlayers(t, l, tableID, "alice", "bob")

	start, err := l.StartNewHand(ctx, tableID, "alice", "bob", "")
	require.NoError(t, err)
	_, err = l.AddToPot(ctx, tableID, "bob", 3000, "")
	require.NoError(t, err)
	_, err = l.DistributeWinnings(ctx, tableID, "bob", "")
	require.NoError(t, err)

	players, err := l.GetPlayers(ctx, tableID)
	require.NoError(t, err)

	var total int64
	for _, p := range players {
		total += p.Chips
	}
	// Chips in equals chips out less the platform fee.
	assert.Equal(t, 2*testBuyIn-start.Fee, total)
}

func TestLocalSeedSourceFulfillsRequests(t *testing.T) {
	l, tableID := newTestLedger(t)
	NewLocalSeedSource(l, testLogger())
	ctx := context.Background()

	_, err := l.RequestRandomSeed(ctx, tableID)
	require.NoError(t, err)

	// Fulfillment is synchronous on the event path.
	seed, err := l.GetRandomSeed(ctx, tableID)
	require.NoError(t, err)
	assert.Len(t, seed, 32)
}

func TestRequestRandomSeedDuplicate(t *testing.T) {
	l, tableID := newTestLedger(t)
	ctx := context.Background()

	_, err := l.RequestRandomSeed(ctx, tableID)
	require.NoError(t, err)

	_, err = l.RequestRandomSeed(ctx, tableID)
	assert.ErrorIs(t, err, ErrSeedAlreadyRequested)
}
