package server

// MessageType identifies a WebSocket message on the gateway surface.
type MessageType string

const (
	// Client to server messages.
	MessageTypeAuthenticate MessageType = "authenticate"
	MessageTypeSubscribe    MessageType = "subscribe"
	MessageTypeUnsubscribe  MessageType = "unsubscribe"
	MessageTypeAction       MessageType = "action"

	// Server to client messages.
	MessageTypeAuthResponse    MessageType = "auth-response"
	MessageTypeSubscribed      MessageType = "subscribed"
	MessageTypeUnsubscribed    MessageType = "unsubscribed"
	MessageTypePlayerJoined    MessageType = "player-joined"
	MessageTypePlayerLeft      MessageType = "player-left"
	MessageTypeHandStarted     MessageType = "hand-started"
	MessageTypeActionTaken     MessageType = "action-taken"
	MessageTypeTurnTimer       MessageType = "turn-timer"
	MessageTypeGameStateUpdate MessageType = "game-state-update"
	MessageTypeHandEnded       MessageType = "hand-ended"
	MessageTypeError           MessageType = "error"
)

func (mt MessageType) String() string {
	return string(mt)
}
