package signaling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/guardline-io/guardline/pkg/logger"
)

// ErrSignaling indicates a channel join or send failure
var ErrSignaling = errors.New("signaling: channel failure")

// EventKind identifies an event delivered by a channel
type EventKind int

const (
	EventBroadcast EventKind = iota
	EventPresenceJoin
	EventPresenceLeave
	EventClosed
)

// Event is one occurrence on a joined channel. Presence carries the room
// membership count after the event was applied.
type Event struct {
	Kind     EventKind
	Message  *Message // set for EventBroadcast
	Presence int
}

// Channel is a room-scoped pub/sub signaling channel with presence
type Channel interface {
	Join(ctx context.Context) error
	Broadcast(msg *Message) error
	Events() <-chan Event
	Presence() int
	Leave() error
}

// WSChannel implements Channel over a websocket connection to the realtime
// pub/sub service.
type WSChannel struct {
	serviceURL  string
	apiKey      string
	room        string
	clientID    string
	joinTimeout time.Duration
	logger      *logger.Logger

	mu       sync.Mutex
	conn     *websocket.Conn
	events   chan Event
	members  map[string]struct{}
	joined   bool
	left     bool
	joinedCh chan error
}

// NewWSChannel creates a channel for the given room and client identity
func NewWSChannel(serviceURL, apiKey, room, clientID string, joinTimeout time.Duration, log *logger.Logger) *WSChannel {
	if joinTimeout <= 0 {
		joinTimeout = 10 * time.Second
	}
	return &WSChannel{
		serviceURL:  serviceURL,
		apiKey:      apiKey,
		room:        room,
		clientID:    clientID,
		joinTimeout: joinTimeout,
		logger:      log.Named("signaling"),
		members:     make(map[string]struct{}),
	}
}

func (c *WSChannel) topic() string {
	return "call:" + c.room
}

// Join connects to the realtime service, subscribes to the room topic and
// tracks this client's presence. It blocks until the service confirms the
// subscription or the timeout elapses.
func (c *WSChannel) Join(ctx context.Context) error {
	c.mu.Lock()
	if c.joined {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	u, err := url.Parse(c.serviceURL)
	if err != nil {
		return fmt.Errorf("%w: invalid service url: %v", ErrSignaling, err)
	}
	q := u.Query()
	if c.apiKey != "" {
		q.Set("apikey", c.apiKey)
	}
	u.RawQuery = q.Encode()

	dialCtx, cancel := context.WithTimeout(ctx, c.joinTimeout)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("%w: dial failed: %v", ErrSignaling, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.events = make(chan Event, 32)
	c.joinedCh = make(chan error, 1)
	c.mu.Unlock()

	go c.readPump(conn)

	joinPayload, _ := json.Marshal(presenceEntry{
		Key:      c.clientID,
		JoinedAt: time.Now().UTC().Format(time.RFC3339),
	})
	if err := c.writeFrame(frame{Topic: c.topic(), Event: frameJoin, Payload: joinPayload}); err != nil {
		conn.Close()
		return fmt.Errorf("%w: join send failed: %v", ErrSignaling, err)
	}

	select {
	case err := <-c.joinedCh:
		if err != nil {
			conn.Close()
			return err
		}
	case <-dialCtx.Done():
		conn.Close()
		return fmt.Errorf("%w: join timed out", ErrSignaling)
	}

	c.mu.Lock()
	c.joined = true
	members := len(c.members)
	c.mu.Unlock()

	c.logger.Info("Joined signaling channel",
		logger.String("room", c.room),
		logger.String("client_id", c.clientID),
		logger.Int("presence", members))
	return nil
}

// readPump consumes frames from the service until the connection closes.
// The conn is captured at start; Leave clears the struct field concurrently,
// so the pump must never re-read it.
func (c *WSChannel) readPump(conn *websocket.Conn) {
	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			c.mu.Lock()
			left := c.left
			events := c.events
			c.mu.Unlock()
			if !left {
				c.logger.Warn("Signaling connection closed", logger.Error(err))
			}
			if events != nil {
				c.emit(events, Event{Kind: EventClosed})
				close(events)
			}
			return
		}
		if f.Topic != c.topic() {
			continue
		}
		c.dispatch(f)
	}
}

func (c *WSChannel) dispatch(f frame) {
	switch f.Event {
	case frameJoined:
		// Joined ack is followed by the presence snapshot in the same payload
		var state presenceState
		if err := json.Unmarshal(f.Payload, &state); err != nil {
			c.signalJoined(fmt.Errorf("%w: malformed joined payload: %v", ErrSignaling, err))
			return
		}
		c.mu.Lock()
		c.members = make(map[string]struct{}, len(state.Members))
		for _, m := range state.Members {
			c.members[m.Key] = struct{}{}
		}
		c.mu.Unlock()
		c.signalJoined(nil)

	case framePresenceState:
		var state presenceState
		if err := json.Unmarshal(f.Payload, &state); err != nil {
			return
		}
		c.mu.Lock()
		c.members = make(map[string]struct{}, len(state.Members))
		for _, m := range state.Members {
			c.members[m.Key] = struct{}{}
		}
		c.mu.Unlock()

	case framePresenceJoin:
		var entry presenceEntry
		if err := json.Unmarshal(f.Payload, &entry); err != nil {
			return
		}
		c.mu.Lock()
		c.members[entry.Key] = struct{}{}
		count := len(c.members)
		events := c.events
		c.mu.Unlock()
		c.emit(events, Event{Kind: EventPresenceJoin, Presence: count})

	case framePresenceLeave:
		var entry presenceEntry
		if err := json.Unmarshal(f.Payload, &entry); err != nil {
			return
		}
		c.mu.Lock()
		delete(c.members, entry.Key)
		count := len(c.members)
		events := c.events
		c.mu.Unlock()
		c.emit(events, Event{Kind: EventPresenceLeave, Presence: count})

	case frameBroadcast:
		var msg Message
		if err := json.Unmarshal(f.Payload, &msg); err != nil {
			c.logger.Warn("Dropping malformed broadcast", logger.Error(err))
			return
		}
		if err := msg.Validate(); err != nil {
			c.logger.Warn("Dropping invalid signaling message", logger.Error(err))
			return
		}
		c.mu.Lock()
		count := len(c.members)
		events := c.events
		c.mu.Unlock()
		c.emit(events, Event{Kind: EventBroadcast, Message: &msg, Presence: count})

	case frameError:
		c.logger.Warn("Signaling service error", logger.String("payload", string(f.Payload)))
	}
}

func (c *WSChannel) emit(events chan Event, ev Event) {
	if events == nil {
		return
	}
	select {
	case events <- ev:
	default:
		// Consumer fell behind; dropping is safer than blocking the pump
		c.logger.Warn("Signaling event dropped, consumer too slow")
	}
}

func (c *WSChannel) signalJoined(err error) {
	c.mu.Lock()
	ch := c.joinedCh
	c.joinedCh = nil
	c.mu.Unlock()
	if ch != nil {
		ch <- err
	}
}

func (c *WSChannel) writeFrame(f frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("%w: not connected", ErrSignaling)
	}
	return c.conn.WriteJSON(f)
}

// Broadcast publishes a signaling message on the room topic. Broadcasts are
// visible to the sender as well; recipients filter self-origin messages.
func (c *WSChannel) Broadcast(msg *Message) error {
	if err := msg.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrSignaling, err)
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("%w: marshal failed: %v", ErrSignaling, err)
	}
	if err := c.writeFrame(frame{Topic: c.topic(), Event: frameBroadcast, Payload: payload}); err != nil {
		return fmt.Errorf("%w: send failed: %v", ErrSignaling, err)
	}
	return nil
}

// Events returns the channel's event stream
func (c *WSChannel) Events() <-chan Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.events
}

// Presence returns the current room membership count, including self
func (c *WSChannel) Presence() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.members)
}

// Leave unsubscribes from the room and closes the connection. Idempotent;
// send failures are ignored.
func (c *WSChannel) Leave() error {
	c.mu.Lock()
	if c.left {
		c.mu.Unlock()
		return nil
	}
	c.left = true
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		// Best effort: the server drops presence on disconnect anyway
		_ = conn.WriteJSON(frame{Topic: c.topic(), Event: frameLeave})
		conn.Close()
	}
	return nil
}
