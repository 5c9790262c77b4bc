package server

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/feltwire/feltwire/internal/errcode"
)

// Connection represents a WebSocket connection to a client
type Connection struct {
	conn         *websocket.Conn
	send         chan *Message
	player       string
	tableID      string
	logger       *log.Logger
	ctx          context.Context
	cancel       context.CancelFunc
	mu           sync.RWMutex
	closeOnce    sync.Once
	orchestrator *Orchestrator
}

// NewConnection creates a new connection wrapper
func NewConnection(conn *websocket.Conn, logger *log.Logger, orchestrator *Orchestrator) *Connection {
	ctx, cancel := context.WithCancel(context.Background())

	return &Connection{
		conn:         conn,
		send:         make(chan *Message, 256),
		logger:       logger.WithPrefix("conn"),
		ctx:          ctx,
		cancel:       cancel,
		orchestrator: orchestrator,
	}
}

// Start begins handling the connection
func (c *Connection) Start() {
	go c.writePump()
	go c.readPump()
}

// Close closes the connection
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		close(c.send)
		err = c.conn.Close()
	})
	return err
}

// SendMessage sends a message to the client
func (c *Connection) SendMessage(msg *Message) error {
	defer func() {
		if r := recover(); r != nil {
			// Channel was closed, expected during shutdown
			c.logger.Debug("Attempted to send message on closed connection", "error", r)
		}
	}()

	select {
	case c.send <- msg:
		return nil
	case <-c.ctx.Done():
		return c.ctx.Err()
	default:
		c.logger.Warn("Connection send buffer full, closing connection")
		_ = c.Close()
		return ErrConnectionClosed
	}
}

// SetPlayer associates this connection with an authenticated identity
func (c *Connection) SetPlayer(player string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.player = player
}

// GetPlayer returns the authenticated identity
func (c *Connection) GetPlayer() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.player
}

// SetTable associates this connection with a table
func (c *Connection) SetTable(tableID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tableID = tableID
}

// GetTable returns the associated table ID
func (c *Connection) GetTable() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tableID
}

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 8192
)

var ErrConnectionClosed = websocket.ErrCloseSent

// readPump handles incoming messages from the client
func (c *Connection) readPump() {
	defer func() { _ = c.Close() }()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		var msg Message
		err := c.conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", "error", err)
			}
			break
		}

		c.handleMessage(&msg)
	}
}

// writePump handles outgoing messages to the client
func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(message); err != nil {
				c.logger.Error("Failed to write message", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

// handleMessage processes incoming messages from the client
func (c *Connection) handleMessage(msg *Message) {
	c.logger.Debug("Received message", "type", msg.Type, "player", c.GetPlayer())

	switch msg.Type {
	case MessageTypeAuthenticate:
		var data AuthenticateData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "Failed to parse authenticate data")
			return
		}
		c.handleAuthenticate(data)

	case MessageTypeSubscribe:
		var data SubscribeData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "Failed to parse subscribe data")
			return
		}
		c.handleSubscribe(data)

	case MessageTypeUnsubscribe:
		var data UnsubscribeData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "Failed to parse unsubscribe data")
			return
		}
		c.handleUnsubscribe(data)

	case MessageTypeAction:
		var data ActionData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "Failed to parse action data")
			return
		}
		c.handleAction(data)

	default:
		c.sendError("unknown_message_type", "Unknown message type: "+msg.Type.String())
	}
}

// sendError sends an error message to the client
func (c *Connection) sendError(code, message string) {
	errorMsg, err := NewMessage(MessageTypeError, ErrorData{
		Code:    code,
		Message: message,
	})
	if err != nil {
		c.logger.Error("Failed to create error message", "error", err)
		return
	}

	_ = c.SendMessage(errorMsg)
}

// sendDomainError maps a domain error to its stable wire code.
func (c *Connection) sendDomainError(err error) {
	c.sendError(errcode.CodeOf(err), err.Error())
}

func (c *Connection) handleAuthenticate(data AuthenticateData) {
	c.logger.Info("Authenticate request", "identity", data.Identity)

	if data.Identity == "" {
		c.sendError("invalid_auth", "Identity required")
		return
	}

	c.SetPlayer(data.Identity)

	response, _ := NewMessage(MessageTypeAuthResponse, AuthResponseData{
		Success:  true,
		Identity: data.Identity,
	})
	_ = c.SendMessage(response)
}

func (c *Connection) handleSubscribe(data SubscribeData) {
	c.logger.Info("Subscribe request", "tableId", data.TableID, "player", c.GetPlayer())

	player := c.GetPlayer()
	if player == "" {
		c.sendError("not_authenticated", "Must authenticate first")
		return
	}

	if err := c.orchestrator.Join(data.TableID, player, data.BuyIn); err != nil {
		c.sendDomainError(err)
		return
	}

	c.SetTable(data.TableID)

	response, _ := NewMessage(MessageTypeSubscribed, map[string]string{"tableId": data.TableID})
	_ = c.SendMessage(response)
}

func (c *Connection) handleUnsubscribe(data UnsubscribeData) {
	c.logger.Info("Unsubscribe request", "tableId", data.TableID, "player", c.GetPlayer())

	player := c.GetPlayer()
	if player == "" {
		c.sendError("not_authenticated", "Must authenticate first")
		return
	}

	if err := c.orchestrator.Leave(data.TableID, player); err != nil {
		c.sendDomainError(err)
		return
	}

	c.SetTable("")

	response, _ := NewMessage(MessageTypeUnsubscribed, map[string]string{"tableId": data.TableID})
	_ = c.SendMessage(response)
}

func (c *Connection) handleAction(data ActionData) {
	c.logger.Info("Action request", "player", c.GetPlayer(), "kind", data.Kind, "amount", data.Amount)

	player := c.GetPlayer()
	if player == "" {
		c.sendError("not_authenticated", "Must authenticate first")
		return
	}

	tableID := data.TableID
	if tableID == "" {
		tableID = c.GetTable()
	}

	if err := c.orchestrator.Action(tableID, player, data.Kind, data.Amount); err != nil {
		c.sendDomainError(err)
		return
	}
	// No direct response; the orchestrator broadcasts the outcome.
}
