package session

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// ClientMessage is what a display or controller may send up the socket.
type ClientMessage struct {
	Type string `json:"type"`
}

// Client pumps hub events to one websocket connection. The first message on
// the socket is always the full snapshot the caller passed in.
type Client struct {
	Code string

	conn *websocket.Conn
	hub  *Hub
	subs []*Subscriber
	// Events already reflected in the snapshot are skipped
	minVersion uint64
	onMessage  func(ClientMessage)
	log        *slog.Logger
}

func NewClient(conn *websocket.Conn, hub *Hub, code string, topics []string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{Code: code, conn: conn, hub: hub, log: logger.With("session", code)}
	for _, name := range topics {
		c.subs = append(c.subs, hub.Subscribe(name))
	}
	return c
}

func (c *Client) OnMessage(fn func(ClientMessage)) {
	c.onMessage = fn
}

// Serve writes the snapshot, then blocks until the connection goes away.
func (c *Client) Serve(snapshot Event) {
	c.minVersion = snapshot.Version
	done := make(chan struct{})
	go func() {
		c.writePump(snapshot)
		close(done)
	}()
	c.readPump()
	<-done
}

func (c *Client) close() {
	for _, sub := range c.subs {
		c.hub.Unsubscribe(sub)
	}
	c.conn.Close()
}

func (c *Client) readPump() {
	defer c.close()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn("websocket closed unexpectedly", "error", err)
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.log.Debug("ignoring malformed client message", "error", err)
			continue
		}
		if c.onMessage != nil {
			c.onMessage(msg)
		}
	}
}

func (c *Client) writePump(snapshot Event) {
	ticker := time.NewTicker(pingPeriod)
	stop := make(chan struct{})
	defer func() {
		ticker.Stop()
		close(stop)
		c.conn.Close()
	}()

	if err := c.write(snapshot); err != nil {
		return
	}

	events, dropped := c.fanIn(stop)

	for {
		var ev Event
		select {
		case ev = <-events:
		case <-dropped:
			// Dropped by the hub; the display reconnects and re-fetches
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "resync"))
			return
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			continue
		}

		if ev.Version != 0 && ev.Version <= c.minVersion && ev.SessionCode == "" {
			continue
		}
		if err := c.write(ev); err != nil {
			return
		}
	}
}

// fanIn merges every subscription into one channel. dropped fires once any of
// them is closed by the hub.
func (c *Client) fanIn(stop <-chan struct{}) (<-chan Event, <-chan struct{}) {
	events := make(chan Event)
	dropped := make(chan struct{}, len(c.subs))
	for _, sub := range c.subs {
		go func(ch <-chan Event) {
			for ev := range ch {
				select {
				case events <- ev:
				case <-stop:
					return
				}
			}
			dropped <- struct{}{}
		}(sub.C)
	}
	return events, dropped
}

func (c *Client) write(ev Event) error {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteJSON(ev); err != nil {
		c.log.Debug("websocket write failed", "error", err)
		return err
	}
	return nil
}
