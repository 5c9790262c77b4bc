package ledger

import "sync"

// EventType identifies a ledger event.
type EventType string

const (
	EventTableCreated        EventType = "TableCreated"
	EventPlayerJoined        EventType = "PlayerJoined"
	EventPlayerLeft          EventType = "PlayerLeft"
	EventHandStarted         EventType = "HandStarted"
	EventWinnerPaid          EventType = "WinnerPaid"
	EventCardCommitted       EventType = "CardCommitted"
	EventCardRevealed        EventType = "CardRevealed"
	EventRandomSeedRequested EventType = "RandomSeedRequested"
	EventRandomSeedFulfilled EventType = "RandomSeedFulfilled"
)

// Event is one sequenced ledger event. ID is a strictly increasing
// sequence number so consumers can apply events idempotently: an event id
// at or below the last applied id is a replay and must be skipped.
type Event struct {
	ID      uint64
	Type    EventType
	TableID string
	Player  string
	Amount  int64
	Hand    uint64
	Ref     string // seed request id for the random-seed events
}

// EventSubscriber receives ledger events in sequence order.
type EventSubscriber interface {
	OnLedgerEvent(Event)
}

// eventBus fans sequenced events out to subscribers.
type eventBus struct {
	mu          sync.Mutex
	nextID      uint64
	subscribers []EventSubscriber
}

func newEventBus() *eventBus {
	return &eventBus{nextID: 1}
}

func (b *eventBus) subscribe(sub EventSubscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, sub)
}

func (b *eventBus) publish(event Event) {
	b.mu.Lock()
	event.ID = b.nextID
	b.nextID++
	subs := make([]EventSubscriber, len(b.subscribers))
	copy(subs, b.subscribers)
	b.mu.Unlock()

	for _, sub := range subs {
		sub.OnLedgerEvent(event)
	}
}
