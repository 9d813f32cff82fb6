package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"project-chat/internal/chat"
	"project-chat/internal/models"
	"project-chat/pkg/logger"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Outbound events queued per connection before it is considered slow.
	sendBuffer = 256
)

// Client is one socket connection. It is the outbound sink of its chat
// session and feeds inbound frames to the manager.
type Client struct {
	conn    *websocket.Conn
	manager *chat.Manager
	session *chat.Session
	send    chan models.Event

	// maxFrame bounds inbound frames; the content limit applies on top.
	maxFrame int64

	mu     sync.Mutex
	closed bool
}

// NewClient wraps conn for an already authenticated user and registers its
// session with the manager.
func NewClient(conn *websocket.Conn, manager *chat.Manager, user *models.User, maxFrame int64) (*Client, error) {
	c := &Client{
		conn:     conn,
		manager:  manager,
		send:     make(chan models.Event, sendBuffer),
		maxFrame: maxFrame,
	}
	c.session = chat.NewSession(c)

	if err := c.session.Authenticate(user); err != nil {
		return nil, err
	}
	if err := manager.Connect(c.session); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) Session() *chat.Session {
	return c.session
}

// Deliver queues event for the write pump without blocking.
func (c *Client) Deliver(event models.Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- event:
		return true
	default:
		return false
	}
}

// Close stops the write pump, which closes the socket. Safe to call twice.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// ReadPump pumps frames from the connection to the manager. Returning from
// it disconnects the session.
func (c *Client) ReadPump() {
	defer func() {
		c.manager.Disconnect(c.session)
		c.Close()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.maxFrame)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Error("WebSocket read error on session %s: %v", c.session.ID, err)
			}
			break
		}

		var frame models.Frame
		if err := json.Unmarshal(message, &frame); err != nil {
			logger.Debug("Undecodable frame on session %s: %v", c.session.ID, err)
			c.Deliver(models.Event{Name: models.EventError, Data: "Malformed frame"})
			continue
		}

		if err := c.dispatch(context.Background(), frame); err != nil {
			logger.Debug("Session %s %s rejected: %v", c.session.ID, frame.Event, err)
		}
	}
}

func (c *Client) dispatch(ctx context.Context, frame models.Frame) error {
	switch frame.Event {
	case models.EventJoinProjectChannel:
		return c.manager.Join(ctx, c.session, projectIDFrom(frame.Data))

	case models.EventLeaveProjectChannel:
		c.manager.Leave(c.session, projectIDFrom(frame.Data))
		return nil

	case models.EventSendMessage:
		var payload models.SendMessagePayload
		if err := json.Unmarshal(frame.Data, &payload); err != nil {
			c.Deliver(models.Event{Name: models.EventError, Data: "Malformed sendMessage payload"})
			return fmt.Errorf("decode sendMessage: %w", err)
		}
		return c.manager.Send(ctx, c.session, payload.ProjectID, payload.Content)

	case models.EventTyping:
		return c.manager.MarkTyping(c.session, projectIDFrom(frame.Data))

	case models.EventStopTyping:
		return c.manager.MarkStopped(c.session, projectIDFrom(frame.Data))

	default:
		c.Deliver(models.Event{Name: models.EventError, Data: fmt.Sprintf("Unknown event: %s", frame.Event)})
		return fmt.Errorf("unknown event %q", frame.Event)
	}
}

// projectIDFrom accepts a bare JSON string or an object with a projectId
// field. Anything else yields "", which the manager rejects as malformed.
func projectIDFrom(data json.RawMessage) string {
	var id string
	if err := json.Unmarshal(data, &id); err == nil {
		return id
	}

	var obj struct {
		ProjectID string `json:"projectId"`
	}
	if err := json.Unmarshal(data, &obj); err == nil {
		return obj.ProjectID
	}
	return ""
}

// WritePump pumps queued events to the connection and keeps it alive with
// pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case event, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			data, err := json.Marshal(event)
			if err != nil {
				logger.Error("Failed to marshal %s event: %v", event.Name, err)
				continue
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				logger.Error("Write error on session %s: %v", c.session.ID, err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
