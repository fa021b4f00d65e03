package fansly

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	errs "fanslydl/pkg/errors"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthFrame(t *testing.T) {
	frame, err := authFrame("abc")
	require.NoError(t, err)
	assert.Equal(t, `{"t":1,"d":"{\"token\":\"abc\"}"}`, string(frame))
}

func TestParseSessionFrame(t *testing.T) {
	id, err := parseSessionFrame([]byte(`{"t":1,"d":"{\"session\":{\"id\":\"777\"}}"}`))
	require.NoError(t, err)
	assert.Equal(t, "777", id)

	_, err = parseSessionFrame([]byte(`{"t":0,"d":"bad token"}`))
	assert.Error(t, err)

	_, err = parseSessionFrame([]byte(`not json`))
	assert.Error(t, err)

	_, err = parseSessionFrame([]byte(`{"t":1,"d":"{\"session\":{}}"}`))
	assert.Error(t, err)
}

type wsCapture struct {
	header http.Header
	frame  string
}

func wsServer(t *testing.T, reply string) (*httptest.Server, <-chan wsCapture) {
	t.Helper()
	captured := make(chan wsCapture, 1)
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Clone()
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		captured <- wsCapture{header: header, frame: string(data)}
		_ = conn.WriteMessage(websocket.TextMessage, []byte(reply))
		_, _, _ = conn.ReadMessage()
	}))
	t.Cleanup(srv.Close)
	return srv, captured
}

func TestWebsocketHandshakerSessionID(t *testing.T) {
	srv, captured := wsServer(t, `{"t":1,"d":"{\"session\":{\"id\":\"sess-42\"}}"}`)

	h := &WebsocketHandshaker{
		URL:     "ws" + strings.TrimPrefix(srv.URL, "http"),
		Timeout: 2 * time.Second,
	}
	id, err := h.SessionID(context.Background(), "tok", "agent/1.0")
	require.NoError(t, err)
	assert.Equal(t, "sess-42", id)

	got := <-captured
	assert.Equal(t, `{"t":1,"d":"{\"token\":\"tok\"}"}`, got.frame)
	assert.Equal(t, "agent/1.0", got.header.Get("User-Agent"))
	assert.Equal(t, "https://fansly.com", got.header.Get("Origin"))
}

func TestWebsocketHandshakerRejected(t *testing.T) {
	srv, _ := wsServer(t, `{"t":0,"d":"unauthorized"}`)

	h := &WebsocketHandshaker{URL: "ws" + strings.TrimPrefix(srv.URL, "http"), Timeout: 2 * time.Second}
	_, err := h.SessionID(context.Background(), "tok", "agent")
	assert.ErrorIs(t, err, errs.ErrSessionHandshake)
}

func TestWebsocketHandshakerDialFailure(t *testing.T) {
	h := &WebsocketHandshaker{URL: "ws://127.0.0.1:1", Timeout: time.Second}
	_, err := h.SessionID(context.Background(), "tok", "agent")
	require.Error(t, err)
	assert.True(t, errs.IsType(err, errs.ErrorTypeNetwork))
}
