package server

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/google/uuid"

	"github.com/feltwire/feltwire/internal/errcode"
	"github.com/feltwire/feltwire/internal/game"
	"github.com/feltwire/feltwire/internal/gameid"
	"github.com/feltwire/feltwire/internal/history"
	"github.com/feltwire/feltwire/internal/ledger"
	"github.com/feltwire/feltwire/internal/turntimer"
)

// Broadcaster delivers messages to table subscribers. Implemented by the
// websocket Server; tests substitute a recorder.
type Broadcaster interface {
	BroadcastToTable(tableID string, msg *Message)
	SendToPlayer(player string, msg *Message) error
}

// WinnerSelector picks the showdown winner from the final snapshot. Hand
// ranking is an external collaborator; this layer only requires that the
// chosen winner's commitment is revealed before paying out.
type WinnerSelector interface {
	SelectWinner(snapshot game.Snapshot) (string, error)
}

// FirstStandingSelector awards the pot to the lowest-indexed non-folded
// seat. A stand-in until a real ranking collaborator is wired.
type FirstStandingSelector struct{}

func (FirstStandingSelector) SelectWinner(snapshot game.Snapshot) (string, error) {
	for _, seat := range snapshot.Seats {
		if !seat.Folded {
			return seat.Player, nil
		}
	}
	return "", errors.New("no standing player at showdown")
}

// Orchestrator sequences play across tables. Each table gets one command
// loop goroutine: the serialization point that guarantees no second action
// is accepted while a ledger call for the previous one is in flight.
type Orchestrator struct {
	ledger      ledger.Ledger
	broadcaster Broadcaster
	history     *history.Store // optional
	selector    WinnerSelector
	policy      game.SeatPolicy
	clock       quartz.Clock
	ids         *gameid.Generator
	logger      *log.Logger
	cfg         Config

	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.RWMutex
	tables map[string]*tableRunner
}

// NewOrchestrator creates an orchestrator over the given ledger. The
// ledger store is passed by reference so tests run with isolated stores.
func NewOrchestrator(l ledger.Ledger, broadcaster Broadcaster, cfg Config, logger *log.Logger, opts ...OrchestratorOption) *Orchestrator {
	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		ledger:      l,
		broadcaster: broadcaster,
		selector:    FirstStandingSelector{},
		policy:      game.PolicyByName(cfg.SeatPolicy),
		clock:       quartz.NewReal(),
		ids:         gameid.NewGenerator(nil),
		logger:      logger.WithPrefix("orchestrator"),
		cfg:         cfg,
		ctx:         ctx,
		cancel:      cancel,
		tables:      make(map[string]*tableRunner),
	}
	for _, opt := range opts {
		opt(o)
	}
	l.Subscribe(o)
	return o
}

// OrchestratorOption customizes construction.
type OrchestratorOption func(*Orchestrator)

// WithClock substitutes the clock, letting tests drive timers.
func WithClock(clock quartz.Clock) OrchestratorOption {
	return func(o *Orchestrator) { o.clock = clock }
}

// WithHistory enables the hand audit store.
func WithHistory(store *history.Store) OrchestratorOption {
	return func(o *Orchestrator) { o.history = store }
}

// WithWinnerSelector substitutes the showdown collaborator.
func WithWinnerSelector(sel WinnerSelector) OrchestratorOption {
	return func(o *Orchestrator) { o.selector = sel }
}

// Stop halts all table loops.
func (o *Orchestrator) Stop() {
	o.cancel()
}

// AddTable registers a ledger table and starts its command loop.
func (o *Orchestrator) AddTable(tableID string) error {
	info, err := o.ledger.GetTableInfo(o.ctx, tableID)
	if err != nil {
		return err
	}

	r := &tableRunner{
		id:            tableID,
		orch:          o,
		session:       game.NewSession(),
		timer:         turntimer.New(o.clock),
		commands:      make(chan command, 64),
		logger:        o.logger.WithPrefix("table").With("id", tableID),
		info:          info,
		pendingWinner: -1,
	}

	o.mu.Lock()
	o.tables[tableID] = r
	o.mu.Unlock()

	go r.run(o.ctx)
	return nil
}

func (o *Orchestrator) runner(tableID string) *tableRunner {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.tables[tableID]
}

// Join seats a player at a table, buying in on the ledger first.
func (o *Orchestrator) Join(tableID, player string, buyIn int64) error {
	return o.dispatch(tableID, command{kind: cmdJoin, player: player, amount: buyIn})
}

// Leave removes a player. During a live hand the seat is folded and the
// ledger payout deferred to hand end.
func (o *Orchestrator) Leave(tableID, player string) error {
	return o.dispatch(tableID, command{kind: cmdLeave, player: player})
}

// Action applies a player action through the table's serialization point.
func (o *Orchestrator) Action(tableID, player, kind string, amount int64) error {
	actionKind, err := game.ParseAction(kind)
	if err != nil {
		return err
	}
	return o.dispatch(tableID, command{kind: cmdAction, player: player, action: actionKind, amount: amount})
}

func (o *Orchestrator) dispatch(tableID string, cmd command) error {
	r := o.runner(tableID)
	if r == nil {
		return ledger.ErrTableNotFound
	}
	cmd.reply = make(chan error, 1)
	select {
	case r.commands <- cmd:
	case <-o.ctx.Done():
		return o.ctx.Err()
	}
	select {
	case err := <-cmd.reply:
		return err
	case <-o.ctx.Done():
		return o.ctx.Err()
	}
}

// OnLedgerEvent feeds ledger events into the owning table's loop so
// reconciliation shares the serialization point with actions.
func (o *Orchestrator) OnLedgerEvent(event ledger.Event) {
	if event.TableID == "" {
		return
	}
	r := o.runner(event.TableID)
	if r == nil {
		return
	}
	select {
	case r.commands <- command{kind: cmdLedgerEvent, event: event}:
	default:
		// Loop is saturated; the event will be reconciled on the next
		// authoritative read.
	}
}

type cmdKind int

const (
	cmdJoin cmdKind = iota
	cmdLeave
	cmdAction
	cmdExpire
	cmdStartHand
	cmdLedgerEvent
)

type command struct {
	kind    cmdKind
	player  string
	action  game.ActionKind
	amount  int64
	turnSeq uint64
	event   ledger.Event
	reply   chan error
}

// tableRunner owns one table's mirror and processes its commands serially.
type tableRunner struct {
	id       string
	orch     *Orchestrator
	session  *game.Session
	timer    *turntimer.Timer
	commands chan command
	logger   *log.Logger
	info     ledger.Table

	frozen        bool
	lastEventID   uint64
	departing     map[string]bool
	lastFee       int64
	pendingWinner int // seat owed a payout blocked on a card reveal, -1 if none
}

func (r *tableRunner) run(ctx context.Context) {
	r.departing = make(map[string]bool)
	for {
		select {
		case cmd := <-r.commands:
			r.handle(ctx, cmd)
		case <-ctx.Done():
			r.timer.Stop()
			return
		}
	}
}

func (r *tableRunner) handle(ctx context.Context, cmd command) {
	var err error
	switch cmd.kind {
	case cmdJoin:
		err = r.handleJoin(ctx, cmd.player, cmd.amount)
	case cmdLeave:
		err = r.handleLeave(ctx, cmd.player)
	case cmdAction:
		err = r.handleAction(ctx, cmd.player, cmd.action, cmd.amount, false)
	case cmdExpire:
		r.handleExpire(ctx, cmd.turnSeq)
	case cmdStartHand:
		r.maybeStartHand(ctx)
	case cmdLedgerEvent:
		r.handleLedgerEvent(ctx, cmd.event)
	}
	if cmd.reply != nil {
		cmd.reply <- err
	}
}

func (r *tableRunner) handleJoin(ctx context.Context, player string, buyIn int64) error {
	if r.frozen {
		return game.ErrTableFrozen
	}
	if err := r.orch.ledger.JoinTable(ctx, r.id, player, buyIn); err != nil {
		return err
	}
	// The ledger balance is authoritative; never trust the requested
	// buy-in for the mirror.
	acct, err := r.orch.ledger.GetPlayerInfo(ctx, r.id, player)
	if err != nil {
		return err
	}
	seat := r.session.AddSeat(player, acct.Chips)
	if r.session.Live() {
		// Mid-hand arrivals sit out until the next deal.
		r.session.Seats[seat].Folded = true
	}
	r.logger.Info("Player joined", "player", player, "chips", acct.Chips, "seat", seat)

	r.broadcast(MessageTypePlayerJoined, PlayerJoinedData{
		TableID: r.id,
		Player:  player,
		Chips:   acct.Chips,
		Seat:    seat,
	})
	r.broadcastState()

	if !r.session.Live() && len(r.session.Seats) >= r.orch.cfg.MinPlayers {
		r.scheduleStart(0)
	}
	return nil
}

func (r *tableRunner) handleLeave(ctx context.Context, player string) error {
	idx := r.session.SeatOf(player)
	if idx == -1 {
		return game.ErrSeatNotFound
	}

	if r.session.Live() && !r.session.Seats[idx].Folded {
		// The ledger forbids leaving mid-hand, so fold the seat now and
		// settle the departure when the hand ends.
		r.departing[player] = true
		if idx == r.session.CurrentActor {
			return r.handleAction(ctx, player, game.Fold, 0, false)
		}
		r.session.Seats[idx].Folded = true
		if solo := r.soleStanding(); solo != -1 {
			r.endHand(ctx, solo)
		}
		return nil
	}
	if r.session.Live() {
		r.departing[player] = true
		return nil
	}
	return r.settleLeave(ctx, player)
}

func (r *tableRunner) settleLeave(ctx context.Context, player string) error {
	idx := r.session.SeatOf(player)
	if idx == -1 {
		return game.ErrSeatNotFound
	}
	payout, err := r.orch.ledger.LeaveTable(ctx, r.id, player)
	if err != nil {
		return err
	}
	heldAction := r.session.RemoveSeat(idx)
	delete(r.departing, player)
	r.logger.Info("Player left", "player", player, "payout", payout)

	r.broadcast(MessageTypePlayerLeft, PlayerLeftData{TableID: r.id, Player: player, Payout: payout})
	r.broadcastState()

	if heldAction && r.session.Live() && r.session.CurrentActor != -1 {
		r.startTurnTimer()
	}
	if len(r.session.Seats) < 2 {
		// One seat left: the session is over, not just the hand.
		r.timer.Stop()
	}
	return nil
}

func (r *tableRunner) soleStanding() int {
	standing := -1
	for i, seat := range r.session.Seats {
		if !seat.Folded {
			if standing != -1 {
				return -1
			}
			standing = i
		}
	}
	return standing
}

func (r *tableRunner) scheduleStart(delay time.Duration) {
	if delay <= 0 {
		select {
		case r.commands <- command{kind: cmdStartHand}:
		default:
		}
		return
	}
	r.orch.clock.AfterFunc(delay, func() {
		select {
		case r.commands <- command{kind: cmdStartHand}:
		default:
		}
	}, "start-hand")
}

func (r *tableRunner) maybeStartHand(ctx context.Context) {
	if r.frozen || r.session.Live() || len(r.session.Seats) < r.orch.cfg.MinPlayers {
		return
	}

	seed, err := r.obtainSeed(ctx)
	if err != nil {
		r.logger.Error("Could not obtain random seed, hand not started", "error", err)
		return
	}

	info, err := r.orch.ledger.GetTableInfo(ctx, r.id)
	if err != nil {
		r.logger.Error("Could not read table info, hand not started", "error", err)
		return
	}
	r.info = info

	numSeats := len(r.session.Seats)
	dealer := info.DealerIndex % numSeats
	sbSeat, bbSeat := r.orch.policy.BlindSeats(numSeats, dealer)
	firstActor := r.orch.policy.FirstActor(numSeats, dealer)
	sbPlayer := r.session.Seats[sbSeat].Player
	bbPlayer := r.session.Seats[bbSeat].Player

	var start ledger.HandStart
	err = r.withRetry(ctx, func(key string) error {
		var callErr error
		start, callErr = r.orch.ledger.StartNewHand(ctx, r.id, sbPlayer, bbPlayer, key)
		return callErr
	})
	if err != nil {
		r.logger.Error("Ledger refused hand start", "error", err)
		return
	}

	handID := r.orch.ids.Hand()
	r.session.Begin(handID, start.HandNumber, dealer, sbSeat, bbSeat,
		info.SmallBlind, info.BigBlind, start.Pot, firstActor, seed)
	r.lastFee = start.Fee

	r.logger.Info("Hand started", "hand", start.HandNumber, "pot", start.Pot, "fee", start.Fee,
		"smallBlind", sbPlayer, "bigBlind", bbPlayer)

	r.broadcast(MessageTypeHandStarted, HandStartedData{
		TableID:    r.id,
		HandID:     handID,
		HandNumber: start.HandNumber,
		SmallBlind: sbPlayer,
		BigBlind:   bbPlayer,
		Fee:        start.Fee,
		Pot:        start.Pot,
		FirstActor: firstActor,
	})
	r.broadcastState()
	r.startTurnTimer()
}

// obtainSeed requests a verifiable seed and waits briefly for the external
// source to fulfill it.
func (r *tableRunner) obtainSeed(ctx context.Context) ([]byte, error) {
	if _, err := r.orch.ledger.RequestRandomSeed(ctx, r.id); err != nil &&
		!errors.Is(err, ledger.ErrSeedAlreadyRequested) {
		return nil, err
	}
	var lastErr error
	for attempt := 0; attempt <= r.orch.cfg.LedgerRetries; attempt++ {
		seed, err := r.orch.ledger.GetRandomSeed(ctx, r.id)
		if err == nil {
			return seed, nil
		}
		lastErr = err
		if !errors.Is(err, ledger.ErrSeedNotFulfilled) {
			return nil, err
		}
	}
	return nil, lastErr
}

// withRetry issues a ledger mutation under one idempotency key, retrying
// transient failures. The same key on every attempt means a retry can never
// double-apply.
func (r *tableRunner) withRetry(ctx context.Context, call func(key string) error) error {
	key := uuid.NewString()
	var lastErr error
	for attempt := 0; attempt <= r.orch.cfg.LedgerRetries; attempt++ {
		err := call(key)
		if err == nil {
			return nil
		}
		lastErr = err
		if errcode.KindOf(err) != errcode.LedgerUnavailable && !errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		r.logger.Warn("Ledger call failed, retrying", "attempt", attempt+1, "error", err)
	}
	return errors.Join(ledger.ErrLedgerUnavailable, lastErr)
}

func (r *tableRunner) handleAction(ctx context.Context, player string, kind game.ActionKind, amount int64, timedOut bool) error {
	if r.frozen {
		return game.ErrTableFrozen
	}
	idx := r.session.SeatOf(player)
	if idx == -1 {
		return game.ErrSeatNotFound
	}

	delta, err := r.session.ActionDelta(idx, kind, amount)
	if err != nil {
		return err
	}

	var potAfter int64
	if delta > 0 {
		err = r.withRetry(ctx, func(key string) error {
			var callErr error
			potAfter, callErr = r.orch.ledger.AddToPot(ctx, r.id, player, delta, key)
			return callErr
		})
		if err != nil {
			// The mirror was not touched and nothing is broadcast; the
			// action simply did not happen.
			return err
		}
	}

	outcome := r.session.Apply(idx, kind, amount, delta)

	if delta > 0 && potAfter != r.session.Pot {
		r.freeze("pot mismatch after addToPot", potAfter)
		return game.ErrTableFrozen
	}

	r.broadcast(MessageTypeActionTaken, ActionTakenData{
		TableID:  r.id,
		Player:   player,
		Kind:     kind.String(),
		Amount:   amount,
		PotAfter: r.session.Pot,
		Stage:    r.session.Stage.String(),
		TimedOut: timedOut,
	})
	r.broadcastState()

	switch {
	case outcome.Resolved:
		r.timer.Stop()
		r.endHand(ctx, outcome.Winner)
	case outcome.Showdown:
		r.timer.Stop()
		r.resolveShowdown(ctx)
	default:
		r.startTurnTimer()
	}
	return nil
}

// handleExpire processes a turn-timer expiry. The turn sequence captured at
// timer start makes a late expiry harmlessly stale: if the player acted
// first, the sequence moved on and the synthesized fold is dropped.
func (r *tableRunner) handleExpire(ctx context.Context, turnSeq uint64) {
	if r.frozen || !r.session.Live() || r.session.TurnSeq != turnSeq {
		r.logger.Debug("Stale turn expiry dropped", "seq", turnSeq, "current", r.session.TurnSeq)
		return
	}
	idx := r.session.CurrentActor
	if idx == -1 {
		return
	}
	player := r.session.Seats[idx].Player
	r.logger.Info("Turn timer expired, folding", "player", player)
	if err := r.handleAction(ctx, player, game.Fold, 0, true); err != nil {
		r.logger.Error("Synthesized fold rejected", "player", player, "error", err)
	}
}

func (r *tableRunner) startTurnTimer() {
	idx := r.session.CurrentActor
	if idx == -1 {
		r.timer.Stop()
		return
	}
	player := r.session.Seats[idx].Player
	seq := r.session.TurnSeq

	r.timer.Start(r.orch.cfg.TurnTimeout,
		func(remaining time.Duration) {
			r.broadcast(MessageTypeTurnTimer, TurnTimerData{
				TableID:  r.id,
				Player:   player,
				TimeLeft: int64(remaining / time.Second),
			})
		},
		func() {
			select {
			case r.commands <- command{kind: cmdExpire, turnSeq: seq}:
			default:
			}
		})
}

func (r *tableRunner) resolveShowdown(ctx context.Context) {
	winner, err := r.orch.selector.SelectWinner(r.session.Snapshot())
	if err != nil {
		r.logger.Error("Winner selection failed, awaiting reveals", "error", err)
		return
	}
	idx := r.session.SeatOf(winner)
	if idx == -1 {
		r.logger.Error("Selected winner has no seat", "winner", winner)
		return
	}
	r.endHand(ctx, idx)
}

func (r *tableRunner) endHand(ctx context.Context, winnerIdx int) {
	winner := r.session.Seats[winnerIdx].Player
	handID := r.session.HandID
	handNumber := r.session.HandNumber
	actions := r.session.Actions

	var payout int64
	err := r.withRetry(ctx, func(key string) error {
		var callErr error
		payout, callErr = r.orch.ledger.DistributeWinnings(ctx, r.id, winner, key)
		return callErr
	})
	if err != nil {
		if errors.Is(err, ledger.ErrCardsNotRevealed) {
			// The hand stays open until the winner's reveal event arrives,
			// whichever street it resolved on.
			r.pendingWinner = winnerIdx
			r.logger.Warn("Payout blocked on unrevealed cards", "winner", winner)
			return
		}
		r.logger.Error("Ledger refused payout", "winner", winner, "error", err)
		return
	}

	r.pendingWinner = -1
	r.session.CreditWinner(winnerIdx, payout)
	r.logger.Info("Hand ended", "hand", handNumber, "winner", winner, "payout", payout)

	if info, err := r.orch.ledger.GetTableInfo(ctx, r.id); err == nil {
		r.info = info
		if info.Pot != r.session.Pot {
			r.freeze("pot mismatch after payout", info.Pot)
			return
		}
	}

	r.broadcast(MessageTypeHandEnded, HandEndedData{
		TableID: r.id,
		HandID:  handID,
		Winner:  winner,
		Pot:     payout,
	})
	r.broadcastState()
	r.appendHistory(handID, handNumber, winner, payout, actions)

	for player := range r.departing {
		if err := r.settleLeave(ctx, player); err != nil {
			r.logger.Error("Deferred leave failed", "player", player, "error", err)
		}
	}

	if len(r.session.Seats) >= r.orch.cfg.MinPlayers {
		r.scheduleStart(r.orch.cfg.HandInterval)
	}
}

func (r *tableRunner) appendHistory(handID string, handNumber uint64, winner string, payout int64, actions []game.ActionRecord) {
	if r.orch.history == nil {
		return
	}
	recorded := make([]history.Action, len(actions))
	for i, a := range actions {
		recorded[i] = history.Action{
			Player: a.Player,
			Kind:   a.Kind.String(),
			Amount: a.Amount,
			Stage:  a.Stage.String(),
		}
	}
	rec := history.Record{
		HandID:     handID,
		TableID:    r.id,
		HandNumber: handNumber,
		Winner:     winner,
		Pot:        payout,
		Fee:        r.lastFee,
		Actions:    recorded,
		EndedAt:    r.orch.clock.Now(),
	}
	if err := r.orch.history.Append(rec); err != nil {
		r.logger.Error("Failed to append hand history", "hand", handID, "error", err)
	}
}

func (r *tableRunner) handleLedgerEvent(ctx context.Context, event ledger.Event) {
	// Events arrive in sequence; anything at or below the high-water mark
	// is a replay and must not be applied twice.
	if event.ID <= r.lastEventID {
		return
	}
	r.lastEventID = event.ID

	if event.Type == ledger.EventCardRevealed {
		switch {
		case r.pendingWinner != -1:
			// A resolved hand was waiting on this reveal to pay out.
			r.endHand(ctx, r.pendingWinner)
		case r.session.Stage == game.Showdown:
			r.resolveShowdown(ctx)
		}
	}
}

// freeze marks the table irreconcilable: the mirror and ledger disagree on
// money. Figures stop being broadcast until an operator intervenes.
func (r *tableRunner) freeze(reason string, ledgerPot int64) {
	r.frozen = true
	r.timer.Stop()
	r.logger.Error("TABLE FROZEN: mirror/ledger divergence",
		"reason", reason, "mirrorPot", r.session.Pot, "ledgerPot", ledgerPot)

	if msg, err := NewMessage(MessageTypeError, ErrorData{
		Code:    "table_frozen",
		Message: "table frozen pending manual reconciliation",
	}); err == nil {
		r.orch.broadcaster.BroadcastToTable(r.id, msg)
	}
	if msg, err := NewMessage(MessageTypeGameStateUpdate, GameStateUpdateData{
		TableID:  r.id,
		Snapshot: r.session.FrozenSnapshot(),
	}); err == nil {
		r.orch.broadcaster.BroadcastToTable(r.id, msg)
	}
}

func (r *tableRunner) broadcast(messageType MessageType, data interface{}) {
	msg, err := NewMessage(messageType, data)
	if err != nil {
		r.logger.Error("Failed to encode message", "type", messageType, "error", err)
		return
	}
	r.orch.broadcaster.BroadcastToTable(r.id, msg)
}

func (r *tableRunner) broadcastState() {
	if r.frozen {
		return
	}
	r.broadcast(MessageTypeGameStateUpdate, GameStateUpdateData{
		TableID:  r.id,
		Snapshot: r.session.Snapshot(),
	})
}
