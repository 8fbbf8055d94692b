package transport

import (
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/querystream/wire"
)

// echoTCPServer accepts one connection and echoes frames back
func echoTCPServer(t *testing.T) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			f, err := wire.ReadFrame(conn)
			if err != nil {
				return
			}
			if err := wire.WriteFrame(conn, f); err != nil {
				return
			}
		}
	}()

	return ln.Addr().String()
}

func TestTCPTransport_RoundTrip(t *testing.T) {
	addr := echoTCPServer(t)

	tr, err := DialTCP(addr, time.Second)
	require.NoError(t, err)
	defer tr.Close()

	sent := &wire.Frame{Token: 7, Payload: []byte(`{"t":2,"r":[]}`)}
	require.NoError(t, tr.WriteFrame(sent))

	got, err := tr.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, sent.Token, got.Token)
	assert.Equal(t, sent.Payload, got.Payload)
}

func TestTCPTransport_CloseIdempotent(t *testing.T) {
	addr := echoTCPServer(t)

	tr, err := DialTCP(addr, time.Second)
	require.NoError(t, err)

	require.NoError(t, tr.Close())
	assert.NoError(t, tr.Close())
}

func TestTCPTransport_ReadAfterClose(t *testing.T) {
	addr := echoTCPServer(t)

	tr, err := DialTCP(addr, time.Second)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := tr.ReadFrame()
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, tr.Close())

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("ReadFrame did not unblock after Close")
	}
}

func TestTCPTransport_DialFailure(t *testing.T) {
	_, err := DialTCP("127.0.0.1:1", 100*time.Millisecond)
	assert.Error(t, err)
}

// echoWSServer upgrades one connection and echoes binary messages back
func echoWSServer(t *testing.T) string {
	t.Helper()

	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			msgType, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(msgType, data); err != nil {
				return
			}
		}
	}))
	t.Cleanup(server.Close)

	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestWebSocketTransport_RoundTrip(t *testing.T) {
	url := echoWSServer(t)

	tr, err := DialWebSocket(url, time.Second)
	require.NoError(t, err)
	defer tr.Close()

	sent := &wire.Frame{Token: 99, Payload: []byte(`{"t":3,"r":[{"id":1}],"n":[1]}`)}
	require.NoError(t, tr.WriteFrame(sent))

	got, err := tr.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, sent.Token, got.Token)
	assert.Equal(t, sent.Payload, got.Payload)
}

func TestWebSocketTransport_CloseIdempotent(t *testing.T) {
	url := echoWSServer(t)

	tr, err := DialWebSocket(url, time.Second)
	require.NoError(t, err)

	require.NoError(t, tr.Close())
	assert.NoError(t, tr.Close())
}

func TestDialers(t *testing.T) {
	addr := echoTCPServer(t)

	dial := TCPDialer(addr, time.Second)
	tr, err := dial()
	require.NoError(t, err)
	require.NoError(t, tr.Close())

	// Dialers are reusable for reconnects
	addr2 := echoTCPServer(t)
	tr2, err := TCPDialer(addr2, time.Second)()
	require.NoError(t, err)
	require.NoError(t, tr2.Close())
}
