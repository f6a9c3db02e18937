package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mbocsi/hostbridge/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startWS(t *testing.T, fn CommandFunc) (*WSTransport, string) {
	t.Helper()
	transport := NewWSTransport("localhost:0")
	transport.OnCommand(fn)
	require.NoError(t, transport.Start())
	t.Cleanup(func() { transport.Shutdown() })
	return transport, "ws://" + transport.ListenAddr().String() + "/"
}

func wsRoundTrip(t *testing.T, conn *websocket.Conn, payload []byte) proto.Response {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, payload))
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	resp, err := proto.DecodeResponse(data)
	require.NoError(t, err)
	return resp
}

func TestNewWSTransport(t *testing.T) {
	transport := NewWSTransport("localhost:0")
	assert.Equal(t, "localhost:0", transport.Addr)
	assert.Equal(t, DefaultMaxClients, transport.maxClients)
	assert.NotNil(t, transport.clients)

	meta := transport.Meta()
	assert.Equal(t, "websocket", meta.Protocol)
	assert.Equal(t, "ws-localhost:0", meta.ID)
	assert.False(t, meta.Running)
}

func TestWSTransport_StartWithoutCallback(t *testing.T) {
	assert.Error(t, NewWSTransport("localhost:0").Start())
}

func TestWSTransport_RoundTrip(t *testing.T) {
	_, url := startWS(t, echoHandler)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	for _, name := range []string{"about", "get_scene_info"} {
		data, _ := json.Marshal(proto.NewCommand(name, map[string]any{"x": 1}))
		resp := wsRoundTrip(t, conn, data)
		assert.Equal(t, proto.StatusSuccess, resp.Status)
		assert.Equal(t, name, resp.Result["command"])
	}
}

func TestWSTransport_InvalidCommand(t *testing.T) {
	_, url := startWS(t, echoHandler)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	resp := wsRoundTrip(t, conn, []byte("{nope"))
	assert.True(t, resp.IsError())
	assert.Contains(t, resp.Message, "invalid command")

	resp = wsRoundTrip(t, conn, []byte(`{"command":"ok"}`))
	assert.Equal(t, proto.StatusSuccess, resp.Status)
}

func TestWSTransport_MaxClients(t *testing.T) {
	transport := NewWSTransport("localhost:0")
	transport.SetMaxClients(1)
	transport.OnCommand(echoHandler)
	require.NoError(t, transport.Start())
	defer transport.Shutdown()
	url := "ws://" + transport.ListenAddr().String() + "/"

	conn1, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn1.Close()

	require.Eventually(t, func() bool {
		return len(transport.Meta().Clients) == 1
	}, time.Second, 10*time.Millisecond)

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestWSTransport_ShutdownClosesClients(t *testing.T) {
	transport, url := startWS(t, func(ctx context.Context, cmd proto.Command) proto.Response {
		return proto.Success(nil)
	})

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		return len(transport.Meta().Clients) == 1
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, transport.Shutdown())
	assert.NoError(t, transport.Shutdown())

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
}

func TestWSTransport_UpgradeDuringShutdownIsClosed(t *testing.T) {
	transport := NewWSTransport("localhost:0")
	transport.OnCommand(echoHandler)
	require.NoError(t, transport.Start())
	require.NoError(t, transport.Shutdown())

	// An upgrade that was already in flight on the stopped listener.
	late := httptest.NewServer(http.HandlerFunc(transport.handleWebSocket))
	defer late.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+late.URL[len("http"):]+"/", nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	require.Error(t, err)
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) {
		assert.False(t, netErr.Timeout(), "connection should be closed, not left open")
	}

	assert.Eventually(t, func() bool {
		transport.cmu.RLock()
		defer transport.cmu.RUnlock()
		return len(transport.clients) == 0
	}, 2*time.Second, 10*time.Millisecond)
}
