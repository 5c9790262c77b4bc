package server

import (
	"encoding/json"
	"time"

	"github.com/feltwire/feltwire/internal/game"
)

// Message is the base WebSocket envelope.
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewMessage creates a message with the current timestamp.
func NewMessage(messageType MessageType, data interface{}) (*Message, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &Message{
		Type:      messageType,
		Data:      dataBytes,
		Timestamp: time.Now(),
	}, nil
}

// Client → Server payloads.

type AuthenticateData struct {
	Identity string `json:"identity"`
}

type SubscribeData struct {
	TableID string `json:"tableId"`
	BuyIn   int64  `json:"buyIn,omitempty"`
}

type UnsubscribeData struct {
	TableID string `json:"tableId"`
}

type ActionData struct {
	TableID string `json:"tableId"`
	Kind    string `json:"kind"`
	Amount  int64  `json:"amount,omitempty"`
}

// Server → Client payloads.

type AuthResponseData struct {
	Success  bool   `json:"success"`
	Identity string `json:"identity,omitempty"`
	Error    string `json:"error,omitempty"`
}

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type PlayerJoinedData struct {
	TableID string `json:"tableId"`
	Player  string `json:"player"`
	Chips   int64  `json:"chips"`
	Seat    int    `json:"seat"`
}

type PlayerLeftData struct {
	TableID string `json:"tableId"`
	Player  string `json:"player"`
	Payout  int64  `json:"payout"`
}

type HandStartedData struct {
	TableID    string `json:"tableId"`
	HandID     string `json:"handId"`
	HandNumber uint64 `json:"handNumber"`
	SmallBlind string `json:"smallBlind"`
	BigBlind   string `json:"bigBlind"`
	Fee        int64  `json:"fee"`
	Pot        int64  `json:"pot"`
	FirstActor int    `json:"firstActor"`
}

type ActionTakenData struct {
	TableID  string `json:"tableId"`
	Player   string `json:"player"`
	Kind     string `json:"kind"`
	Amount   int64  `json:"amount"`
	PotAfter int64  `json:"potAfter"`
	Stage    string `json:"stage"`
	TimedOut bool   `json:"timedOut,omitempty"`
}

type TurnTimerData struct {
	TableID  string `json:"tableId"`
	Player   string `json:"player"`
	TimeLeft int64  `json:"timeLeft"` // seconds
}

type GameStateUpdateData struct {
	TableID  string        `json:"tableId"`
	Snapshot game.Snapshot `json:"snapshot"`
}

type HandEndedData struct {
	TableID string `json:"tableId"`
	HandID  string `json:"handId"`
	Winner  string `json:"winner"`
	Pot     int64  `json:"pot"`
}
