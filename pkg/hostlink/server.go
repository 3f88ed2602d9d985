// Package hostlink serves the block editor: block calls and program graph
// updates come in over a WebSocket, results and alerts go back out.
package hostlink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/udl/extension/internal/dispatcher"
	"github.com/udl/extension/internal/program"
	"github.com/udl/extension/pkg/core"
)

const (
	writeWait   = 5 * time.Second
	outQueueLen = 64
)

// Dispatcher runs one block call.
type Dispatcher interface {
	Dispatch(e dispatcher.Event) (any, error)
}

// Config holds server settings.
type Config struct {
	Listen string
	Path   string
	// AllowedOrigins restricts browser origins; empty allows any.
	AllowedOrigins []string
}

// Server is the editor-facing endpoint. It also implements the extensions'
// Alerter by broadcasting to every connected editor.
type Server struct {
	cfg       Config
	dispatch  Dispatcher
	workspace *program.Workspace
	logger    *slog.Logger
	upgrader  websocket.Upgrader

	mu      sync.Mutex
	infos   []core.ExtensionInfo
	clients map[*client]struct{}
}

type client struct {
	out  chan []byte
	done chan struct{}
}

// NewServer creates a server routing calls to d and program updates to ws.
// Extensions are announced with SetExtensions.
func NewServer(cfg Config, d Dispatcher, ws *program.Workspace, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Path == "" {
		cfg.Path = "/"
	}
	s := &Server{
		cfg:       cfg,
		dispatch:  d,
		workspace: ws,
		logger:    logger.With("component", "hostlink"),
		clients:   make(map[*client]struct{}),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  16 * 1024,
		WriteBufferSize: 16 * 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.cfg.AllowedOrigins) == 0 {
		return true
	}
	return slices.Contains(s.cfg.AllowedOrigins, r.Header.Get("Origin"))
}

// ListenAndServe serves until ctx ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc(s.cfg.Path, s.Handler())
	srv := &http.Server{Addr: s.cfg.Listen, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("editor endpoint listening", "addr", s.cfg.Listen, "path", s.cfg.Path)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("editor endpoint: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("editor endpoint shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Handler upgrades editor connections.
func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			s.logger.Warn("editor upgrade failed", "error", err)
			return
		}
		defer conn.Close()

		c := &client{out: make(chan []byte, outQueueLen), done: make(chan struct{})}
		s.addClient(c)
		defer s.removeClient(c)
		s.logger.Info("editor connected", "remote", r.RemoteAddr)

		go s.writeLoop(conn, c)

		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					s.logger.Warn("editor read error", "error", err)
				}
				break
			}
			if reply := s.handle(msg); reply != nil {
				s.send(c, reply)
			}
		}
		close(c.done)
		s.logger.Info("editor disconnected", "remote", r.RemoteAddr)
	}
}

func (s *Server) writeLoop(conn *websocket.Conn, c *client) {
	for {
		select {
		case <-c.done:
			return
		case b := <-c.out:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
				s.logger.Warn("editor write failed", "error", err)
				return
			}
		}
	}
}

// handle processes one editor message and returns the reply, if any.
func (s *Server) handle(raw []byte) any {
	typ, err := DecodeType(raw)
	if err != nil {
		s.logger.Debug("ignoring editor message", "error", err)
		return nil
	}

	switch typ {
	case TypeCall:
		var m CallMessage
		if err := json.Unmarshal(raw, &m); err != nil {
			s.logger.Debug("bad call message", "error", err)
			return nil
		}
		v, err := s.dispatch.Dispatch(dispatcher.Event{Opcode: m.Opcode, Args: m.Args, Timestamp: time.Now()})
		return NewResult(m.ID, v, err)

	case TypeInfo:
		var m InfoMessage
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil
		}
		s.mu.Lock()
		infos := s.infos
		s.mu.Unlock()
		return NewResult(m.ID, InfoValue(infos), nil)

	case TypeProgram:
		var m ProgramMessage
		if err := json.Unmarshal(raw, &m); err != nil {
			s.logger.Debug("bad program message", "error", err)
			return nil
		}
		s.workspace.Replace(m.Blocks)
		s.logger.Debug("program replaced", "blocks", len(m.Blocks))

	case TypeBlock:
		var m BlockMessage
		if err := json.Unmarshal(raw, &m); err != nil || m.Block.ID == "" {
			s.logger.Debug("bad block message", "error", err)
			return nil
		}
		s.workspace.Upsert(m.Block)

	case TypeDelete:
		var m DeleteMessage
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil
		}
		s.workspace.Delete(m.BlockID)

	default:
		s.logger.Debug("unknown editor message type", "type", typ)
	}
	return nil
}

func (s *Server) send(c *client, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("marshal editor message", "error", err)
		return
	}
	select {
	case c.out <- b:
	case <-c.done:
	default:
		s.logger.Warn("editor queue full, message dropped")
	}
}

// SetExtensions sets the declarations answered to info requests.
func (s *Server) SetExtensions(infos []core.ExtensionInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.infos = infos
}

// Alert shows message on every connected editor.
func (s *Server) Alert(message string) {
	s.mu.Lock()
	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	if len(clients) == 0 {
		s.logger.Warn("alert with no editor connected", "message", message)
		return
	}
	for _, c := range clients {
		s.send(c, AlertMessage{Type: TypeAlert, Message: message})
	}
}

// Clients returns the number of connected editors.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Server) addClient(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[c] = struct{}{}
}

func (s *Server) removeClient(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.clients, c)
}
