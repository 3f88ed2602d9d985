package websocket

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"
)

const (
	sendChSize   = 256
	maxReconnect = 10
	maxBackoff   = 30 * time.Second
	writeWait    = 10 * time.Second
)

var errConnectionLost = errors.New("host connection lost")

// outgoing is one encoded request and the id of the reply slot it owns.
type outgoing struct {
	id   uint64
	data []byte
}

// connection manages the WebSocket to the native host with a single write
// goroutine and routes responses to waiting callers by request id.
type connection struct {
	mu      sync.Mutex
	conn    *ws.Conn
	quit    chan struct{} // closed when conn is replaced
	sendCh  chan outgoing
	done    chan struct{} // closed on shutdown
	closed  bool
	pending map[uint64]chan Response

	url    string
	logger *slog.Logger
}

func newConnection(logger *slog.Logger) *connection {
	return &connection{
		sendCh:  make(chan outgoing, sendChSize),
		done:    make(chan struct{}),
		pending: make(map[uint64]chan Response),
		logger:  logger,
	}
}

// dial connects to the host and starts read/write loops.
func (c *connection) dial(rawURL string) error {
	c.url = rawURL

	conn, _, err := ws.DefaultDialer.Dial(rawURL, nil)
	if err != nil {
		return fmt.Errorf("bridge dial failed: %w", err)
	}

	if !c.attach(conn) {
		return errClosed
	}
	return nil
}

// attach makes conn the live socket and starts its loops. It reports false,
// closing conn, once the connection has shut down.
func (c *connection) attach(conn *ws.Conn) bool {
	quit := make(chan struct{})
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = conn.Close()
		return false
	}
	c.conn = conn
	c.quit = quit
	c.mu.Unlock()

	go c.writeLoop(conn, quit)
	go c.readLoop(conn)
	return true
}

// register reserves a reply slot for id. The returned channel receives
// exactly one Response, or is closed when the connection drops.
func (c *connection) register(id uint64) (chan Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, fmt.Errorf("register call %d: %w", id, errClosed)
	}
	ch := make(chan Response, 1)
	c.pending[id] = ch
	return ch, nil
}

func (c *connection) unregister(id uint64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// fail closes the reply slot for id, if the caller is still waiting.
func (c *connection) fail(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ch, ok := c.pending[id]; ok {
		close(ch)
		delete(c.pending, id)
	}
}

// failPending closes every reply slot so waiting callers return.
func (c *connection) failPending() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
}

// writeLoop drains sendCh onto conn until conn is replaced or the
// connection shuts down. A request that cannot be written fails its caller
// and hands over to reconnect.
func (c *connection) writeLoop(conn *ws.Conn, quit <-chan struct{}) {
	for {
		select {
		case <-c.done:
			return
		case <-quit:
			return
		case msg := <-c.sendCh:
			if err := c.write(conn, msg.data); err != nil {
				c.logger.Warn("Bridge write error", "id", msg.id, "error", err)
				c.fail(msg.id)
				go c.reconnect(conn)
				return
			}
		}
	}
}

func (c *connection) write(conn *ws.Conn, data []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteMessage(ws.TextMessage, data)
}

// readLoop routes responses to their callers.
func (c *connection) readLoop(conn *ws.Conn) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return
			default:
			}
			c.logger.Warn("Bridge read error", "error", err)
			go c.reconnect(conn)
			return
		}

		var resp Response
		if err := json.Unmarshal(message, &resp); err != nil || resp.ID == 0 {
			c.logger.Debug("Non-response message from host", "raw", string(message))
			continue
		}

		c.mu.Lock()
		ch, ok := c.pending[resp.ID]
		delete(c.pending, resp.ID)
		c.mu.Unlock()

		if !ok {
			// caller gave up already
			c.logger.Debug("Response for unknown call", "id", resp.ID)
			continue
		}
		ch <- resp
	}
}

// reconnect replaces a broken conn with exponential backoff. Calls in flight
// on the broken conn are failed; the host cannot answer them any more.
func (c *connection) reconnect(broken *ws.Conn) {
	c.mu.Lock()
	if c.closed || c.conn != broken {
		// already shut down, or the other loop got here first
		c.mu.Unlock()
		return
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	if c.quit != nil {
		close(c.quit)
		c.quit = nil
	}
	c.mu.Unlock()

	c.failPending()

	backoff := time.Second
	for attempt := 1; attempt <= maxReconnect; attempt++ {
		select {
		case <-c.done:
			return
		case <-time.After(backoff):
		}

		c.logger.Info("Reconnecting to bridge host", "attempt", attempt)
		conn, _, err := ws.DefaultDialer.Dial(c.url, nil)
		if err != nil {
			c.logger.Warn("Bridge reconnect dial failed", "attempt", attempt, "error", err)
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}

		if !c.attach(conn) {
			return
		}
		c.logger.Info("Bridge host reconnected", "attempt", attempt)
		return
	}

	c.logger.Error("Bridge reconnect failed after max attempts", "maxAttempts", maxReconnect)
	c.failPending()
}

// send queues data for the write loop. It fails rather than blocks when the
// queue is full. The reply slot for id is failed if the write does.
func (c *connection) send(id uint64, data []byte) error {
	select {
	case c.sendCh <- outgoing{id: id, data: data}:
		return nil
	case <-c.done:
		return errClosed
	default:
		return errors.New("bridge send queue full")
	}
}

// connected reports whether a live socket is attached.
func (c *connection) connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// close sends a close frame and stops all goroutines.
func (c *connection) close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	c.failPending()

	if conn != nil {
		_ = conn.WriteControl(
			ws.CloseMessage,
			ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		return conn.Close()
	}
	return nil
}
