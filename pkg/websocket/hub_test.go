package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startServer runs a hub behind an HTTP server and returns its ws:// URL
func startServer(t *testing.T, hub *Hub, origins []string) string {
	t.Helper()
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.GET("/stream", ServeWS(hub, NewUpgrader(origins)))
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/stream"
}

func runHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return hub, cancel
}

func dial(t *testing.T, url string, header http.Header) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHub_BroadcastReachesEveryClient(t *testing.T) {
	hub, _ := runHub(t)
	url := startServer(t, hub, nil)

	first := dial(t, url, nil)
	second := dial(t, url, nil)
	require.Eventually(t, func() bool { return hub.ClientCount() == 2 }, time.Second, 10*time.Millisecond)

	require.NoError(t, hub.SendToAll("threat.escalation", map[string]string{"id": "esc-1"}))

	for _, conn := range []*websocket.Conn{first, second} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, payload, err := conn.ReadMessage()
		require.NoError(t, err)

		var msg struct {
			Type string            `json:"type"`
			Data map[string]string `json:"data"`
		}
		require.NoError(t, json.Unmarshal(payload, &msg))
		assert.Equal(t, "threat.escalation", msg.Type)
		assert.Equal(t, "esc-1", msg.Data["id"])
	}
}

func TestHub_ClientDisconnectUnregisters(t *testing.T) {
	hub, _ := runHub(t)
	url := startServer(t, hub, nil)

	conn := dial(t, url, nil)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	conn.Close()

	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_StopClosesClients(t *testing.T) {
	hub, cancel := runHub(t)
	url := startServer(t, hub, nil)

	conn := dial(t, url, nil)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	cancel()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway))
	assert.Equal(t, 0, hub.ClientCount())
}

func TestHub_RegisterAfterStop(t *testing.T) {
	hub, cancel := runHub(t)
	cancel()
	<-hub.done

	assert.False(t, hub.Register(&Client{ID: "late", send: make(chan []byte, 1)}))
	assert.NotPanics(t, func() { hub.Unregister(&Client{ID: "late"}) })
}

func TestHub_SlowClientDropped(t *testing.T) {
	hub, _ := runHub(t)

	slow := &Client{ID: "slow", hub: hub, send: make(chan []byte)}
	require.True(t, hub.Register(slow))
	require.NoError(t, hub.SendToAll("ping", nil))

	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 10*time.Millisecond)
	_, open := <-slow.send
	assert.False(t, open)
}

func TestHub_SendToAllQueueFull(t *testing.T) {
	hub := NewHub(nil)
	for i := 0; i < broadcastBuffer; i++ {
		require.NoError(t, hub.SendToAll("fill", i))
	}

	assert.ErrorIs(t, hub.SendToAll("overflow", nil), ErrBroadcastFull)
}

func TestNewUpgrader_CheckOrigin(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{name: "any origin when unrestricted", origin: "https://evil.example", want: true},
		{name: "listed origin", allowed: []string{"https://app.example"}, origin: "https://app.example", want: true},
		{name: "unlisted origin", allowed: []string{"https://app.example"}, origin: "https://evil.example", want: false},
		{name: "no origin header", allowed: []string{"https://app.example"}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/stream", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, NewUpgrader(tt.allowed).CheckOrigin(req))
		})
	}
}

func TestServeWS_RejectsForeignOrigin(t *testing.T) {
	hub, _ := runHub(t)
	url := startServer(t, hub, []string{"https://app.example"})

	header := http.Header{"Origin": []string{"https://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)

	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, 0, hub.ClientCount())
}
