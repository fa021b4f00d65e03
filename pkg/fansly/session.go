package fansly

import (
	"context"
	"math/rand"
	"net/http"
	"strconv"
	"sync"
	"time"

	errs "fanslydl/pkg/errors"
)

// DeviceIDMaxAge is how long a device id stays valid after it was issued
const DeviceIDMaxAge = 180 * time.Minute

// Credentials are the user-supplied values a session is built from
type Credentials struct {
	Token     string
	UserAgent string
	CheckKey  string
	DeviceID  string
	// DeviceIDAt is when DeviceID was issued; zero means unknown
	DeviceIDAt time.Time
}

// Session holds authentication state shared by every API request.
// It is safe for concurrent use.
type Session struct {
	creds      Credentials
	handshaker Handshaker

	mu        sync.Mutex
	sessionID string
	lastTS    int64
	rng       *rand.Rand
	now       func() time.Time
}

// NewSession creates a session; the session id is obtained lazily
func NewSession(creds Credentials, handshaker Handshaker) *Session {
	if handshaker == nil {
		handshaker = NewWebsocketHandshaker()
	}
	return &Session{
		creds:      creds,
		handshaker: handshaker,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		now:        time.Now,
	}
}

// Token returns the authorization token
func (s *Session) Token() string { return s.creds.Token }

// UserAgent returns the configured user agent
func (s *Session) UserAgent() string { return s.creds.UserAgent }

// DeviceID returns the current device id and when it was issued
func (s *Session) DeviceID() (string, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creds.DeviceID, s.creds.DeviceIDAt
}

// SetDeviceID replaces the device id
func (s *Session) SetDeviceID(id string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds.DeviceID = id
	s.creds.DeviceIDAt = at
}

// DeviceIDExpired reports whether the device id must be refreshed
func (s *Session) DeviceIDExpired() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return DeviceIDExpired(s.creds.DeviceID, s.creds.DeviceIDAt, s.now())
}

// DeviceIDExpired reports whether a device id issued at `at` is stale at `now`.
// A missing id counts as expired; an id exactly DeviceIDMaxAge old does not.
func DeviceIDExpired(id string, at, now time.Time) bool {
	if id == "" || at.IsZero() {
		return true
	}
	return now.Sub(at) > DeviceIDMaxAge
}

// SessionID returns the cached session id, performing the handshake if needed
func (s *Session) SessionID(ctx context.Context) (string, error) {
	s.mu.Lock()
	id := s.sessionID
	s.mu.Unlock()
	if id != "" {
		return id, nil
	}

	id, err := s.handshaker.SessionID(ctx, s.creds.Token, s.creds.UserAgent)
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", errs.ErrSessionHandshake
	}

	s.mu.Lock()
	s.sessionID = id
	s.mu.Unlock()
	return id, nil
}

// Invalidate drops the cached session id so the next request re-handshakes
func (s *Session) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessionID = ""
}

// NextTimestamp returns a client timestamp that never decreases
func (s *Session) NextTimestamp() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts := clientTimestamp(s.now(), s.rng)
	if ts > s.lastTS {
		s.lastTS = ts
	}
	return s.lastTS
}

// Sign returns the authentication headers for a request path.
// urlPath is the path plus query exactly as requested, without the bypass parameter.
func (s *Session) Sign(urlPath string, ts int64) http.Header {
	s.mu.Lock()
	deviceID := s.creds.DeviceID
	sessionID := s.sessionID
	s.mu.Unlock()

	h := http.Header{}
	h.Set("authorization", s.creds.Token)
	h.Set("fansly-client-id", deviceID)
	h.Set("fansly-client-ts", strconv.FormatInt(ts, 10))
	h.Set("fansly-client-check", CheckHash(s.creds.CheckKey, urlPath, deviceID))
	if sessionID != "" {
		h.Set("fansly-session-id", sessionID)
	}
	return h
}
