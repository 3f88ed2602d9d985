package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"

	"github.com/udl/extension/pkg/streaming"
)

const (
	outboxSize    = 4096
	ackBufferSize = 16
	redialLimit   = 10
	redialMaxWait = 30 * time.Second
	writeWait     = 10 * time.Second
	ackTimeout    = 10 * time.Second
)

var errStreamClosed = errors.New("stream closed")

// stream keeps one dashboard socket alive. A single supervisor goroutine
// owns the socket: it writes the outbox, and after a failure it redials
// with backoff and replays the session greeting before writing again.
type stream struct {
	target string
	outbox chan []byte
	acks   chan streaming.AckMessage
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	greeting []byte
}

func newStream(logger *slog.Logger) *stream {
	ctx, cancel := context.WithCancel(context.Background())
	return &stream{
		outbox: make(chan []byte, outboxSize),
		acks:   make(chan streaming.AckMessage, ackBufferSize),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// streamURL adds the shared secret as a query parameter.
func streamURL(raw, secret string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid websocket URL: %w", err)
	}
	if secret != "" {
		q := u.Query()
		q.Set("secret", secret)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// open dials once and hands the socket to the supervisor.
func (s *stream) open(raw, secret string) error {
	target, err := streamURL(raw, secret)
	if err != nil {
		return err
	}
	s.target = target

	conn, err := s.dial()
	if err != nil {
		return err
	}
	s.wg.Add(1)
	go s.supervise(conn)
	return nil
}

func (s *stream) dial() (*ws.Conn, error) {
	conn, _, err := ws.DefaultDialer.DialContext(s.ctx, s.target, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return conn, nil
}

func (s *stream) setGreeting(data []byte) {
	s.mu.Lock()
	s.greeting = data
	s.mu.Unlock()
}

func (s *stream) supervise(conn *ws.Conn) {
	defer s.wg.Done()
	for conn != nil {
		err := s.serve(conn)
		if err == nil {
			return
		}
		s.logger.Warn("stream connection lost", "error", err)
		conn = s.redial()
	}
}

// serve pumps the outbox into conn until conn fails or the stream closes.
// It returns nil only on close.
func (s *stream) serve(conn *ws.Conn) error {
	readErr := make(chan error, 1)
	go func() { readErr <- s.readAcks(conn) }()

	for {
		select {
		case <-s.ctx.Done():
			_ = conn.WriteControl(ws.CloseMessage,
				ws.FormatCloseMessage(ws.CloseNormalClosure, ""), time.Now().Add(time.Second))
			_ = conn.Close()
			<-readErr
			return nil
		case err := <-readErr:
			_ = conn.Close()
			return err
		case data := <-s.outbox:
			if err := write(conn, data); err != nil {
				_ = conn.Close()
				<-readErr
				return err
			}
		}
	}
}

func write(conn *ws.Conn, data []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteMessage(ws.TextMessage, data)
}

// readAcks forwards server acks until the socket fails.
func (s *stream) readAcks(conn *ws.Conn) error {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var ack streaming.AckMessage
		if err := json.Unmarshal(msg, &ack); err != nil || ack.Type != "ack" {
			s.logger.Debug("ignoring stream message", "raw", string(msg))
			continue
		}
		select {
		case s.acks <- ack:
		default:
			s.logger.Debug("ack dropped, nobody waiting", "for", ack.For)
		}
	}
}

// redial returns a fresh socket with the greeting already sent, or nil when
// the stream closed or every attempt failed.
func (s *stream) redial() *ws.Conn {
	wait := time.Second
	for attempt := 1; attempt <= redialLimit; attempt++ {
		select {
		case <-s.ctx.Done():
			return nil
		case <-time.After(wait):
		}
		wait = min(wait*2, redialMaxWait)

		conn, err := s.dial()
		if err != nil {
			s.logger.Warn("stream redial failed", "attempt", attempt, "error", err)
			continue
		}
		s.mu.Lock()
		greeting := s.greeting
		s.mu.Unlock()
		if greeting != nil {
			if err := write(conn, greeting); err != nil {
				s.logger.Warn("stream greeting failed", "attempt", attempt, "error", err)
				_ = conn.Close()
				continue
			}
		}
		s.logger.Info("stream reconnected", "attempt", attempt)
		return conn
	}
	s.logger.Error("stream gave up reconnecting", "attempts", redialLimit)
	return nil
}

// enqueue never blocks; a full outbox drops data.
func (s *stream) enqueue(data []byte) {
	select {
	case s.outbox <- data:
	default:
		s.logger.Warn("stream outbox full, dropping message")
	}
}

// request enqueues data and waits for the server to ack msgType.
func (s *stream) request(data []byte, msgType string, timeout time.Duration) error {
	s.enqueue(data)

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case ack := <-s.acks:
			if ack.For == msgType {
				return nil
			}
		case <-timer.C:
			return fmt.Errorf("timeout waiting for ack of %q", msgType)
		case <-s.ctx.Done():
			return fmt.Errorf("%q: %w", msgType, errStreamClosed)
		}
	}
}

// close stops the supervisor after sending a close frame. Safe to repeat.
func (s *stream) close() error {
	s.cancel()
	s.wg.Wait()
	return nil
}
