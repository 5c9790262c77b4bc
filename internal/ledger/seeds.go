package ledger

import (
	"sync"

	"github.com/feltwire/feltwire/internal/gameid"
)

// SeedRequest is one verifiable-random-seed request, bound to a table. At
// most one unfulfilled request may exist per table.
type SeedRequest struct {
	TableID   string
	RequestID string
	Fulfilled bool
	Seed      []byte
}

// SeedBroker requests and receives verifiable random values from an
// external randomness source. Fulfillment only succeeds when the request id
// is known, unfulfilled, and its table is still active; both conditions
// must hold (a request for a deactivated table must not be fulfillable even
// when its id is real).
type SeedBroker struct {
	mu        sync.Mutex
	active    func(tableID string) bool
	ids       *gameid.Generator
	requests  map[string]*SeedRequest // requestID -> request
	pending   map[string]string       // tableID -> unfulfilled requestID
	fulfilled map[string]string       // tableID -> most recently fulfilled requestID
}

// NewSeedBroker creates a broker. active reports whether a table id names
// an active table.
func NewSeedBroker(active func(tableID string) bool, ids *gameid.Generator) *SeedBroker {
	return &SeedBroker{
		active:    active,
		ids:       ids,
		requests:  make(map[string]*SeedRequest),
		pending:   make(map[string]string),
		fulfilled: make(map[string]string),
	}
}

// Request opens a seed request for the table and returns its id. Fails
// ErrSeedAlreadyRequested while an unfulfilled request exists.
func (b *SeedBroker) Request(tableID string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.active(tableID) {
		return "", ErrTableNotFound
	}
	if _, exists := b.pending[tableID]; exists {
		return "", ErrSeedAlreadyRequested
	}

	req := &SeedRequest{
		TableID:   tableID,
		RequestID: b.ids.SeedRequest(),
	}
	b.requests[req.RequestID] = req
	b.pending[tableID] = req.RequestID
	return req.RequestID, nil
}

// Fulfill stores the random value for a request. Invoked by the external
// randomness source. The request must exist, be unfulfilled, and belong to
// an active table.
func (b *SeedBroker) Fulfill(requestID string, value []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	req, ok := b.requests[requestID]
	if !ok {
		return ErrSeedRequestUnknown
	}
	if req.Fulfilled {
		return ErrSeedAlreadyFulfilled
	}
	if !b.active(req.TableID) {
		return ErrSeedTableInactive
	}

	req.Fulfilled = true
	req.Seed = append([]byte(nil), value...)
	delete(b.pending, req.TableID)
	b.fulfilled[req.TableID] = req.RequestID
	return nil
}

// Seed returns the fulfilled seed for the table's most recent request.
func (b *SeedBroker) Seed(tableID string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.pending[tableID]; exists {
		return nil, ErrSeedNotFulfilled
	}
	id, ok := b.fulfilled[tableID]
	if !ok {
		return nil, ErrSeedRequestUnknown
	}
	return append([]byte(nil), b.requests[id].Seed...), nil
}
