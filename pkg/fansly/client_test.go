package fansly

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	errs "fanslydl/pkg/errors"
	"fanslydl/pkg/logger"
	"fanslydl/pkg/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu       sync.Mutex
	requests []*http.Request
}

func (r *recorder) add(req *http.Request) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, req)
	return len(r.requests)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.requests)
}

func (r *recorder) last() *http.Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.requests[len(r.requests)-1]
}

func newTestClient(t *testing.T, handler func(w http.ResponseWriter, r *http.Request, n int)) (*Client, *recorder, *fakeHandshaker) {
	t.Helper()
	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := rec.add(r.Clone(context.Background()))
		handler(w, r, n)
	}))
	t.Cleanup(srv.Close)

	hs := &fakeHandshaker{ids: []string{"sess-1", "sess-2"}}
	session := NewSession(Credentials{
		Token:      "tok",
		UserAgent:  "agent",
		CheckKey:   "key",
		DeviceID:   "dev",
		DeviceIDAt: time.Now(),
	}, hs)
	client := NewClient(session, Options{
		BaseURL: srv.URL,
		Backoff: &retry.ConstantBackoff{Delay: time.Millisecond},
	}, logger.NewTestLogger())
	return client, rec, hs
}

func TestClientSignsRequests(t *testing.T) {
	client, rec, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request, n int) {
		fmt.Fprint(w, `{"success":true,"response":{"account":{"id":"1","username":"me"}}}`)
	})

	acct, err := client.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "me", acct.Username)

	req := rec.last()
	assert.Equal(t, "/api/v1/account/me", req.URL.Path)
	assert.Equal(t, "true", req.URL.Query().Get("ngsw-bypass"))
	assert.Equal(t, "tok", req.Header.Get("authorization"))
	assert.Equal(t, "dev", req.Header.Get("fansly-client-id"))
	assert.Equal(t, "sess-1", req.Header.Get("fansly-session-id"))
	assert.Equal(t, CheckHash("key", "/api/v1/account/me", "dev"), req.Header.Get("fansly-client-check"))
	assert.NotEmpty(t, req.Header.Get("fansly-client-ts"))
	assert.Equal(t, "agent", req.Header.Get("User-Agent"))
}

func TestAccountByUsernameNotFound(t *testing.T) {
	client, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request, n int) {
		fmt.Fprint(w, `{"success":true,"response":[]}`)
	})

	_, err := client.AccountByUsername(context.Background(), "ghost")
	assert.ErrorIs(t, err, errs.ErrAccountNotFound)
	assert.Equal(t, errs.ExitAPIError, errs.ExitCode(err))
}

func TestAccountByID(t *testing.T) {
	client, rec, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request, n int) {
		fmt.Fprint(w, `{"success":true,"response":[{"id":"42","username":"somecreator"}]}`)
	})

	acct, err := client.AccountByID(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, "somecreator", acct.Username)
	assert.Equal(t, "42", rec.last().URL.Query().Get("ids"))
}

func TestTimelinePath(t *testing.T) {
	client, rec, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request, n int) {
		fmt.Fprint(w, `{"success":true,"response":{"posts":[{"id":"p1"}],"accountMedia":[{"id":"m1","access":true}]}}`)
	})

	page, err := client.Timeline(context.Background(), "42", "0")
	require.NoError(t, err)
	require.Len(t, page.Posts, 1)
	require.Len(t, page.AccountMedia, 1)

	req := rec.last()
	assert.Equal(t, "/api/v1/timelinenew/42", req.URL.Path)
	assert.Equal(t, "0", req.URL.Query().Get("before"))
	assert.Equal(t, "0", req.URL.Query().Get("after"))
	signed := "/api/v1/timelinenew/42?before=0&after=0&wallId=&contentSearch="
	assert.Equal(t, CheckHash("key", signed, "dev"), req.Header.Get("fansly-client-check"))
}

func TestGroupsMissingGroupIDMeansEmpty(t *testing.T) {
	client, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request, n int) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"success":false,"error":{"details":"missing groupId"}}`)
	})

	groups, err := client.Groups(context.Background())
	require.NoError(t, err)
	assert.Empty(t, groups)

	_, err = client.GroupWith(context.Background(), "42")
	assert.ErrorIs(t, err, errs.ErrNoMessageGroup)
}

func TestGroupWith(t *testing.T) {
	client, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request, n int) {
		fmt.Fprint(w, `{"success":true,"response":{"groups":[{"id":"g1","users":[{"userId":"7"}]},{"id":"g2","users":[{"userId":"42"}]}]}}`)
	})

	group, err := client.GroupWith(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, "g2", group.ID)
}

func TestAuthErrorRefreshesSessionOnce(t *testing.T) {
	client, rec, hs := newTestClient(t, func(w http.ResponseWriter, r *http.Request, n int) {
		if n == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `{"success":true,"response":{"account":{"id":"1","username":"me"}}}`)
	})

	_, err := client.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, rec.count())
	assert.Equal(t, 2, hs.calls)
	assert.Equal(t, "sess-2", rec.last().Header.Get("fansly-session-id"))
}

func TestAuthErrorPersists(t *testing.T) {
	client, rec, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request, n int) {
		w.WriteHeader(http.StatusForbidden)
	})

	_, err := client.Me(context.Background())
	require.Error(t, err)
	assert.True(t, errs.IsType(err, errs.ErrorTypeAuth))
	assert.Equal(t, 2, rec.count())
}

func TestRateLimitIsRetried(t *testing.T) {
	client, rec, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request, n int) {
		if n == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"success":true,"response":{"account":{"id":"1"}}}`)
	})

	_, err := client.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, rec.count())
}

func TestUnsuccessfulEnvelope(t *testing.T) {
	client, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request, n int) {
		fmt.Fprint(w, `{"success":false,"response":null}`)
	})

	_, err := client.Collections(context.Background())
	assert.Error(t, err)
}

func TestMediaInfoBatches(t *testing.T) {
	client, rec, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request, n int) {
		ids := strings.Split(r.URL.Query().Get("ids"), ",")
		parts := make([]string, len(ids))
		for i, id := range ids {
			parts[i] = fmt.Sprintf(`{"id":%q,"access":true}`, id)
		}
		fmt.Fprintf(w, `{"success":true,"response":[%s]}`, strings.Join(parts, ","))
	})

	ids := make([]string, 151)
	for i := range ids {
		ids[i] = fmt.Sprintf("%d", 1000+i)
	}
	media, err := client.MediaInfo(context.Background(), ids)
	require.NoError(t, err)
	assert.Len(t, media, 151)
	assert.Equal(t, 2, rec.count())
}

func TestBatches(t *testing.T) {
	assert.Nil(t, Batches(nil, 150))
	assert.Len(t, Batches(make([]string, 150), 150), 1)
	got := Batches([]string{"a", "b", "c"}, 2)
	assert.Equal(t, [][]string{{"a", "b"}, {"c"}}, got)
}

func TestStartRefreshesExpiredDeviceID(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.add(r.Clone(context.Background()))
		fmt.Fprint(w, `{"success":true,"response":"fresh-device"}`)
	}))
	defer srv.Close()

	session := NewSession(Credentials{Token: "tok", UserAgent: "agent"}, &fakeHandshaker{ids: []string{"s"}})
	var saved string
	client := NewClient(session, Options{
		BaseURL:    srv.URL,
		OnDeviceID: func(id string, at time.Time) { saved = id },
	}, logger.NewTestLogger())

	require.NoError(t, client.Start(context.Background()))
	id, at := session.DeviceID()
	assert.Equal(t, "fresh-device", id)
	assert.False(t, at.IsZero())
	assert.Equal(t, "fresh-device", saved)
	assert.Equal(t, "/api/v1/device/id", rec.last().URL.Path)
}

func TestDeviceIDObjectForm(t *testing.T) {
	var d deviceIDResponse
	require.NoError(t, d.UnmarshalJSON([]byte(`{"deviceId":"abc"}`)))
	assert.Equal(t, deviceIDResponse("abc"), d)
}

func TestOpenMediaSendsCloudFrontCookies(t *testing.T) {
	var cookieHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookieHeader = r.Header.Get("Cookie")
		fmt.Fprint(w, "data")
	}))
	defer srv.Close()

	session := NewSession(Credentials{Token: "tok", UserAgent: "agent"}, &fakeHandshaker{ids: []string{"s"}})
	client := NewClient(session, Options{}, logger.NewTestLogger())

	resp, err := client.OpenMedia(context.Background(), srv.URL+"/v.m3u8", map[string]string{
		"Policy":      "p",
		"Key-Pair-Id": "k",
		"Signature":   "s",
	})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Contains(t, cookieHeader, "CloudFront-Policy=p")
	assert.Contains(t, cookieHeader, "CloudFront-Key-Pair-Id=k")
	assert.Contains(t, cookieHeader, "CloudFront-Signature=s")
}

func TestOpenMediaHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	session := NewSession(Credentials{}, &fakeHandshaker{ids: []string{"s"}})
	client := NewClient(session, Options{}, logger.NewTestLogger())
	_, err := client.OpenMedia(context.Background(), srv.URL, nil)
	require.Error(t, err)
	assert.True(t, errs.IsType(err, errs.ErrorTypeDownload))
}
