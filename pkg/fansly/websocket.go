package fansly

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	errs "fanslydl/pkg/errors"

	"github.com/gorilla/websocket"
)

const (
	// WebsocketURL is the platform's real-time endpoint
	WebsocketURL     = "wss://wsv3.fansly.com"
	websocketOrigin  = "https://fansly.com"
	websocketTimeout = 10 * time.Second
)

// Handshaker obtains a live session id for a token
type Handshaker interface {
	SessionID(ctx context.Context, token, userAgent string) (string, error)
}

// WebsocketHandshaker performs the session handshake over a transient websocket
type WebsocketHandshaker struct {
	URL     string
	Dialer  *websocket.Dialer
	Timeout time.Duration
}

// NewWebsocketHandshaker returns a handshaker for the production endpoint
func NewWebsocketHandshaker() *WebsocketHandshaker {
	return &WebsocketHandshaker{
		URL:     WebsocketURL,
		Dialer:  websocket.DefaultDialer,
		Timeout: websocketTimeout,
	}
}

// authFrame builds {"t":1,"d":"{\"token\":\"<token>\"}"}
func authFrame(token string) ([]byte, error) {
	inner, err := json.Marshal(map[string]string{"token": token})
	if err != nil {
		return nil, err
	}
	return json.Marshal(wsFrame{T: 1, D: string(inner)})
}

// parseSessionFrame extracts the session id from the first server frame
func parseSessionFrame(data []byte) (string, error) {
	var frame wsFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return "", fmt.Errorf("decode frame: %w", err)
	}
	if frame.T == 0 {
		return "", fmt.Errorf("server rejected token: %s", string(data))
	}
	if frame.D == "" {
		return "", fmt.Errorf("frame has no payload")
	}

	var session wsSessionData
	if err := json.Unmarshal([]byte(frame.D), &session); err != nil {
		return "", fmt.Errorf("decode session payload: %w", err)
	}
	if session.Session.ID == "" {
		return "", fmt.Errorf("payload has no session id")
	}
	return session.Session.ID, nil
}

// SessionID opens the websocket, authenticates, reads one frame and closes
func (h *WebsocketHandshaker) SessionID(ctx context.Context, token, userAgent string) (string, error) {
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = websocketTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	dialer := h.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	header := http.Header{}
	header.Set("User-Agent", userAgent)
	header.Set("Origin", websocketOrigin)

	conn, _, err := dialer.DialContext(ctx, h.URL, header)
	if err != nil {
		return "", errs.Wrap(errs.ErrorTypeNetwork, err, "websocket dial failed")
	}
	defer conn.Close()

	frame, err := authFrame(token)
	if err != nil {
		return "", err
	}
	deadline, _ := ctx.Deadline()
	_ = conn.SetWriteDeadline(deadline)
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return "", errs.Wrap(errs.ErrorTypeNetwork, err, "websocket write failed")
	}

	_ = conn.SetReadDeadline(deadline)
	_, data, err := conn.ReadMessage()
	if err != nil {
		return "", errs.Wrap(errs.ErrorTypeNetwork, err, "websocket read failed")
	}

	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))

	id, err := parseSessionFrame(data)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errs.ErrSessionHandshake, err)
	}
	return id, nil
}
