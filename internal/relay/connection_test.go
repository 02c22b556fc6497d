package relay

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startRelay(t *testing.T, opts Options) (*Hub, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hub := NewHub()
	r := gin.New()
	r.GET("/", WSHandler(hub, opts))

	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		hub.CloseAll()
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http") + "/"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForCount(t *testing.T, hub *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.Count() == n }, 2*time.Second, 10*time.Millisecond)
}

func readFrame(t *testing.T, conn *websocket.Conn) (int, []byte) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	mt, data, err := conn.ReadMessage()
	require.NoError(t, err)
	return mt, data
}

func assertSilent(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(150 * time.Millisecond))
	_, data, err := conn.ReadMessage()
	require.Error(t, err, "unexpected message %q", data)
}

func TestConnection_RelaysTextAndBinaryUnchanged(t *testing.T) {
	hub, url := startRelay(t, DefaultOptions())
	a := dial(t, url)
	b := dial(t, url)
	waitForCount(t, hub, 2)

	require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte(`{"frequency":433.1,"action":"start"}`)))
	mt, data := readFrame(t, b)
	assert.Equal(t, websocket.TextMessage, mt)
	assert.Equal(t, `{"frequency":433.1,"action":"start"}`, string(data))

	binary := []byte{0x00, 0xff, 0x10, 0x80}
	require.NoError(t, a.WriteMessage(websocket.BinaryMessage, binary))
	mt, data = readFrame(t, b)
	assert.Equal(t, websocket.BinaryMessage, mt)
	assert.Equal(t, binary, data)

	assertSilent(t, a)
}

func TestConnection_ClientCloseRemovesFromHub(t *testing.T) {
	hub, url := startRelay(t, DefaultOptions())
	a := dial(t, url)
	b := dial(t, url)
	waitForCount(t, hub, 2)

	require.NoError(t, a.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	a.Close()
	waitForCount(t, hub, 1)

	require.NoError(t, b.WriteMessage(websocket.TextMessage, []byte("nobody home")))
	assertSilent(t, b)
}

func TestConnection_AbruptDisconnectRemovesFromHub(t *testing.T) {
	hub, url := startRelay(t, DefaultOptions())
	a := dial(t, url)
	dial(t, url)
	waitForCount(t, hub, 2)

	a.UnderlyingConn().Close()
	waitForCount(t, hub, 1)
}

func TestConnection_OversizedMessageClosesOnlySender(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxMessageSize = 16
	hub, url := startRelay(t, opts)
	a := dial(t, url)
	b := dial(t, url)
	c := dial(t, url)
	waitForCount(t, hub, 3)

	require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte(strings.Repeat("x", 64))))
	waitForCount(t, hub, 2)

	require.NoError(t, b.WriteMessage(websocket.TextMessage, []byte("small")))
	_, data := readFrame(t, c)
	assert.Equal(t, "small", string(data))
}

func TestConnection_RateLimitDropsExcess(t *testing.T) {
	opts := DefaultOptions()
	opts.RateLimit = 0.001
	opts.RateBurst = 1
	hub, url := startRelay(t, opts)
	a := dial(t, url)
	b := dial(t, url)
	waitForCount(t, hub, 2)

	require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte("first")))
	require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte("second")))

	_, data := readFrame(t, b)
	assert.Equal(t, "first", string(data))
	assertSilent(t, b)
	assert.Equal(t, 2, hub.Count(), "throttled sender stays connected")
}

func TestConnection_SendAfterClose(t *testing.T) {
	hub, url := startRelay(t, DefaultOptions())
	dial(t, url)
	waitForCount(t, hub, 1)

	hub.mu.RLock()
	var conn Peer
	for _, p := range hub.peers {
		conn = p
	}
	hub.mu.RUnlock()

	require.NoError(t, conn.Close())
	assert.NoError(t, conn.Close(), "close is idempotent")
	assert.ErrorIs(t, conn.Send(TextFrame([]byte("late"))), ErrConnectionClosed)
	waitForCount(t, hub, 0)
}

func TestConnection_SendBufferFull(t *testing.T) {
	c := &Connection{
		send: make(chan Frame, 1),
		done: make(chan struct{}),
	}

	require.NoError(t, c.Send(TextFrame([]byte("one"))))
	assert.ErrorIs(t, c.Send(TextFrame([]byte("two"))), ErrSendBufferFull)
}

func TestConnection_IDsAreUnique(t *testing.T) {
	hub, url := startRelay(t, DefaultOptions())
	dial(t, url)
	dial(t, url)
	waitForCount(t, hub, 2)

	hub.mu.RLock()
	defer hub.mu.RUnlock()
	assert.Len(t, hub.peers, 2)
}
