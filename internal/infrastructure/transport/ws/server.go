package ws

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/example/shopserver/internal/domain/session"
	"github.com/example/shopserver/internal/infrastructure/id"
	"github.com/example/shopserver/internal/observability"
	"github.com/example/shopserver/internal/presentation/protocol"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum command line size allowed from peer.
	maxMessageSize = 4096

	sendBuffer = 16
)

// Core is the protocol engine the transport drives: one call per inbound
// line, one call per connection loss.
type Core interface {
	OnMessage(conn session.ConnID, text string) []protocol.Outbound
	OnConnectionClosed(conn session.ConnID)
}

// Server adapts the command protocol onto websocket text frames. Each
// accepted socket gets an opaque UUID handle; the core only ever sees the
// handle, never the socket.
type Server struct {
	core  Core
	idGen id.Generator
	log   observability.Logger

	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[session.ConnID]*client
}

type client struct {
	id   session.ConnID
	conn *websocket.Conn
	send chan string
	done chan struct{}
	once sync.Once
}

func NewServer(core Core, idGen id.Generator, log observability.Logger) *Server {
	if log == nil {
		log = observability.NopLogger()
	}
	return &Server{
		core:  core,
		idGen: idGen,
		log:   log.With(observability.F("component", "ws")),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[session.ConnID]*client),
	}
}

// Handler returns the HTTP handler that upgrades requests to the command
// protocol.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(s.serve)
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("upgrade_failed", observability.F("error", err.Error()))
		return
	}

	c := &client{
		id:   session.ConnID(s.idGen.NewID()),
		conn: conn,
		send: make(chan string, sendBuffer),
		done: make(chan struct{}),
	}

	s.mu.Lock()
	s.clients[c.id] = c
	s.mu.Unlock()

	s.log.Info("connection_accepted",
		observability.F("conn_id", string(c.id)),
		observability.F("remote_addr", conn.RemoteAddr().String()),
	)

	go s.writePump(c)
	go s.readPump(c)
}

func (s *Server) readPump(c *client) {
	defer s.drop(c)

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn("read_failed",
					observability.F("conn_id", string(c.id)),
					observability.F("error", err.Error()),
				)
			}
			return
		}
		for _, outbound := range s.core.OnMessage(c.id, string(data)) {
			s.Send(outbound.Conn, outbound.Text)
		}
	}
}

func (s *Server) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case text := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// Send queues a response for a connection. Sending to a gone or saturated
// connection is logged and dropped; core state is unaffected either way.
// The send channel is never closed, so a Send racing a drop lands in the
// abandoned buffer instead of panicking; drop tells writePump to exit
// through the done channel.
func (s *Server) Send(connID session.ConnID, text string) {
	s.mu.Lock()
	c, ok := s.clients[connID]
	s.mu.Unlock()
	if !ok {
		s.log.Warn("send_to_closed_connection", observability.F("conn_id", string(connID)))
		return
	}
	select {
	case c.send <- text:
	default:
		s.log.Warn("send_buffer_full", observability.F("conn_id", string(connID)))
	}
}

// drop runs exactly one cleanup per connection, however many times the read
// loop and shutdown race to report it.
func (s *Server) drop(c *client) {
	c.once.Do(func() {
		s.mu.Lock()
		delete(s.clients, c.id)
		s.mu.Unlock()

		close(c.done)
		_ = c.conn.Close()
		s.core.OnConnectionClosed(c.id)
		s.log.Info("connection_closed", observability.F("conn_id", string(c.id)))
	})
}

// Close drops every live connection, notifying the core once per handle.
func (s *Server) Close() {
	s.mu.Lock()
	clients := make([]*client, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		s.drop(c)
	}
}
