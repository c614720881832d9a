package ws

import (
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/shopserver/internal/domain/session"
	"github.com/example/shopserver/internal/infrastructure/id"
	"github.com/example/shopserver/internal/presentation/protocol"
)

// echoCore answers every line in place and records which connections the
// transport reports as gone.
type echoCore struct {
	mu     sync.Mutex
	seen   []session.ConnID
	closed []session.ConnID
}

func (c *echoCore) OnMessage(conn session.ConnID, text string) []protocol.Outbound {
	c.mu.Lock()
	c.seen = append(c.seen, conn)
	c.mu.Unlock()
	return []protocol.Outbound{{Conn: conn, Text: "RESPONSE_SUCCESS:" + text}}
}

func (c *echoCore) OnConnectionClosed(conn session.ConnID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = append(c.closed, conn)
}

func (c *echoCore) lastSeen(t *testing.T) session.ConnID {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	require.NotEmpty(t, c.seen)
	return c.seen[len(c.seen)-1]
}

func (c *echoCore) closedCount(conn session.ConnID) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, id := range c.closed {
		if id == conn {
			n++
		}
	}
	return n
}

func dialTestServer(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func TestServer_RoundTrip(t *testing.T) {
	core := &echoCore{}
	srv := NewServer(core, id.NewUUIDGenerator(), nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()
	defer srv.Close()

	conn := dialTestServer(t, ts)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("LIST_PRODUCTS")))
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "RESPONSE_SUCCESS:LIST_PRODUCTS", string(data))
}

func TestServer_SendRacingCloseDoesNotPanic(t *testing.T) {
	core := &echoCore{}
	srv := NewServer(core, id.NewUUIDGenerator(), nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn := dialTestServer(t, ts)
	defer conn.Close()

	// One message round trip so the handle is known before the race starts.
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("PING")))
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	require.NoError(t, err)
	connID := core.lastSeen(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 2000; j++ {
				srv.Send(connID, "RESPONSE_SUCCESS:ok")
			}
		}()
	}
	srv.Close()
	wg.Wait()

	// Sending after shutdown stays a logged no-op.
	srv.Send(connID, "RESPONSE_SUCCESS:late")
	assert.Equal(t, 1, core.closedCount(connID))
}

func TestServer_CloseNotifiesCoreOncePerConnection(t *testing.T) {
	core := &echoCore{}
	srv := NewServer(core, id.NewUUIDGenerator(), nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn := dialTestServer(t, ts)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("PING")))
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	require.NoError(t, err)
	connID := core.lastSeen(t)

	srv.Close()
	srv.Close()

	// The read pump notices the closed socket on its own; give it a moment
	// and require the core still heard about the connection exactly once.
	require.Eventually(t, func() bool {
		return core.closedCount(connID) == 1
	}, 2*time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, core.closedCount(connID))
}
