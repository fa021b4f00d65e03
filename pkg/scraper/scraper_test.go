package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"fanslydl/pkg/config"
	"fanslydl/pkg/dedup"
	errs "fanslydl/pkg/errors"
	"fanslydl/pkg/fansly"
	"fanslydl/pkg/fetcher"
	"fanslydl/pkg/logger"
	"fanslydl/pkg/media"
	"fanslydl/pkg/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClient serves one creator account with canned pages
type fakeClient struct {
	mu          sync.Mutex
	accounts    map[string]fansly.Account
	timeline    map[string]*fansly.TimelineResponse
	messages    map[string]*fansly.MessagesResponse
	group       *fansly.MessageGroup
	messagesErr error
	post        *fansly.PostResponse
	orders      []fansly.MediaOrder
	info        map[string]fansly.AccountMedia
	startErr    error
	starts      int
}

func (c *fakeClient) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.starts++
	return c.startErr
}

func (c *fakeClient) AccountByUsername(ctx context.Context, username string) (*fansly.Account, error) {
	if a, ok := c.accounts[username]; ok {
		return &a, nil
	}
	return nil, fmt.Errorf("%w: %s", errs.ErrAccountNotFound, username)
}

func (c *fakeClient) AccountByID(ctx context.Context, id string) (*fansly.Account, error) {
	for _, a := range c.accounts {
		if a.ID == id {
			return &a, nil
		}
	}
	return nil, errs.ErrAccountNotFound
}

func (c *fakeClient) Timeline(ctx context.Context, creatorID, cursor string) (*fansly.TimelineResponse, error) {
	if resp, ok := c.timeline[cursor]; ok {
		return resp, nil
	}
	return &fansly.TimelineResponse{}, nil
}

func (c *fakeClient) GroupWith(ctx context.Context, userID string) (*fansly.MessageGroup, error) {
	if c.group == nil {
		return nil, errs.ErrNoMessageGroup
	}
	return c.group, nil
}

func (c *fakeClient) Messages(ctx context.Context, groupID, cursor string) (*fansly.MessagesResponse, error) {
	if c.messagesErr != nil {
		return nil, c.messagesErr
	}
	if resp, ok := c.messages[cursor]; ok {
		return resp, nil
	}
	return &fansly.MessagesResponse{}, nil
}

func (c *fakeClient) Post(ctx context.Context, postID string) (*fansly.PostResponse, error) {
	if c.post == nil {
		return &fansly.PostResponse{}, nil
	}
	return c.post, nil
}

func (c *fakeClient) Collections(ctx context.Context) ([]fansly.MediaOrder, error) {
	return c.orders, nil
}

func (c *fakeClient) MediaInfo(ctx context.Context, ids []string) ([]fansly.AccountMedia, error) {
	var out []fansly.AccountMedia
	for _, id := range ids {
		if am, ok := c.info[id]; ok {
			out = append(out, am)
		}
	}
	return out, nil
}

type fakeOpener struct {
	mu     sync.Mutex
	bodies map[string][]byte
	calls  int
}

func (o *fakeOpener) OpenMedia(ctx context.Context, url string, cookies map[string]string) (*http.Response, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls++
	body, ok := o.bodies[url]
	if !ok {
		return nil, &errs.Error{Type: errs.ErrorTypeDownload, Message: "not found", Code: http.StatusNotFound}
	}
	return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(bytes.NewReader(body))}, nil
}

func video(id string) fansly.AccountMedia {
	return fansly.AccountMedia{
		ID:     id,
		Access: true,
		Media: &fansly.MediaDetails{
			ID:        "f" + id,
			CreatedAt: 1700000000,
			Mimetype:  "video/mp4",
			Locations: []fansly.MediaLocation{{Location: "https://cdn.example/" + id + ".mp4"}},
		},
	}
}

func timelinePage(postID string, items ...fansly.AccountMedia) *fansly.TimelineResponse {
	return &fansly.TimelineResponse{
		Posts:     []fansly.Post{{ID: postID}},
		MediaPage: fansly.MediaPage{AccountMedia: items},
	}
}

type fixture struct {
	root    string
	client  *fakeClient
	opener  *fakeOpener
	options Options
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	return &fixture{
		root: root,
		client: &fakeClient{
			accounts: map[string]fansly.Account{
				"somecreator": {ID: "42", Username: "somecreator"},
			},
			timeline: map[string]*fansly.TimelineResponse{
				"0": timelinePage("p1", video("100001"), video("100002")),
			},
			group: &fansly.MessageGroup{ID: "g1"},
			messages: map[string]*fansly.MessagesResponse{
				"0": {
					Messages:  []fansly.Message{{ID: "x1"}},
					MediaPage: fansly.MediaPage{AccountMedia: []fansly.AccountMedia{video("100003")}},
				},
			},
		},
		opener: &fakeOpener{bodies: map[string][]byte{
			"https://cdn.example/100001.mp4": []byte("first video"),
			"https://cdn.example/100002.mp4": []byte("second video"),
			"https://cdn.example/100003.mp4": []byte("third video"),
		}},
		options: Options{
			Mode: config.ModeNormal,
			Layout: storage.Layout{
				Root:             root,
				UseFolderSuffix:  true,
				SeparateTimeline: true,
				SeparateMessages: true,
			},
			DownloadPreviews: true,
			ItemRetries:      1,
			Dedup:            dedup.Options{Perceptual: true, ImageThreshold: dedup.DefaultImageThreshold},
		},
	}
}

func (f *fixture) scraper() *Scraper {
	return New(f.client, f.opener, nil, storage.NewManager(nil), f.options, logger.NewNopLogger())
}

func files(t *testing.T, pattern string) []string {
	t.Helper()
	matches, err := filepath.Glob(pattern)
	require.NoError(t, err)
	return matches
}

func TestRunNormalMode(t *testing.T) {
	f := newFixture(t)

	run, err := f.scraper().Run(context.Background(), []string{"somecreator"})
	require.NoError(t, err)
	require.NoError(t, run.Err())

	require.Len(t, run.Creators, 1)
	stats := run.Creators[0]
	assert.Equal(t, "somecreator", stats.Creator)
	assert.Equal(t, 3, stats.Videos)
	assert.Equal(t, int64(len("first video")+len("second video")+len("third video")), stats.Bytes)
	assert.Equal(t, 1, run.Processed)

	creatorDir := filepath.Join(f.root, "somecreator_fansly")
	assert.Len(t, files(t, filepath.Join(creatorDir, "Timeline", "Videos", "*_id_*_hash2_*.mp4")), 2)
	assert.Len(t, files(t, filepath.Join(creatorDir, "Messages", "Videos", "*_id_100003_hash2_*.mp4")), 1)
	assert.Empty(t, files(t, filepath.Join(creatorDir, "*", "*", "*.tmp")))
}

func TestSecondRunSkipsExistingFiles(t *testing.T) {
	f := newFixture(t)

	_, err := f.scraper().Run(context.Background(), []string{"somecreator"})
	require.NoError(t, err)
	opened := f.opener.calls

	run, err := f.scraper().Run(context.Background(), []string{"somecreator"})
	require.NoError(t, err)

	stats := run.Creators[0]
	assert.Equal(t, 0, stats.Written())
	assert.Equal(t, 3, stats.Duplicates)
	assert.Equal(t, opened, f.opener.calls, "known ids must not be downloaded again")
}

func TestCreatorFailureDoesNotAbortRun(t *testing.T) {
	f := newFixture(t)

	run, err := f.scraper().Run(context.Background(), []string{"ghostcreator", "somecreator"})
	require.NoError(t, err)

	assert.Equal(t, 1, run.Failed)
	assert.Equal(t, 1, run.Processed)
	assert.ErrorIs(t, run.Creators[0].Err, errs.ErrAccountNotFound)
	assert.Equal(t, 3, run.Creators[1].Videos)

	runErr := run.Err()
	require.Error(t, runErr)
	assert.Equal(t, errs.ExitSomeUsersFailed, ExitCode(runErr))
}

func TestAllCreatorsFailed(t *testing.T) {
	f := newFixture(t)

	run, err := f.scraper().Run(context.Background(), []string{"ghostcreator"})
	require.NoError(t, err)
	assert.Equal(t, errs.ExitAPIError, ExitCode(run.Err()))
}

func TestStartFailureIsFatal(t *testing.T) {
	f := newFixture(t)
	f.client.startErr = errs.ErrSessionHandshake

	_, err := f.scraper().Run(context.Background(), []string{"somecreator"})
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrSessionHandshake)
	assert.Zero(t, f.opener.calls)
}

func TestMessagesFailureIsWarningInNormalMode(t *testing.T) {
	f := newFixture(t)
	f.client.messagesErr = errs.New(errs.ErrorTypeServerError, "unavailable")

	run, err := f.scraper().Run(context.Background(), []string{"somecreator"})
	require.NoError(t, err)
	assert.NoError(t, run.Creators[0].Err)
	assert.Equal(t, 2, run.Creators[0].Videos)
}

func TestMessagesFailureFailsMessagesMode(t *testing.T) {
	f := newFixture(t)
	f.options.Mode = config.ModeMessages
	f.client.messagesErr = errs.New(errs.ErrorTypeServerError, "unavailable")

	run, err := f.scraper().Run(context.Background(), []string{"somecreator"})
	require.NoError(t, err)
	assert.Error(t, run.Creators[0].Err)
	assert.Equal(t, errs.ExitAPIError, ExitCode(run.Err()))
}

func TestTimelineModeSkipsMessages(t *testing.T) {
	f := newFixture(t)
	f.options.Mode = config.ModeTimeline

	run, err := f.scraper().Run(context.Background(), []string{"somecreator"})
	require.NoError(t, err)
	assert.Equal(t, 2, run.Creators[0].Videos)
	require.Len(t, run.Creators[0].Sources, 1)
	assert.Equal(t, media.SourceTimeline, run.Creators[0].Sources[0].Source)
}

func TestDuplicateThresholdStopsSource(t *testing.T) {
	f := newFixture(t)
	f.options.Mode = config.ModeTimeline
	f.options.DuplicateThreshold = 5

	items := make([]fansly.AccountMedia, 0, 8)
	for i := 1; i <= 8; i++ {
		id := fmt.Sprintf("20000%d", i)
		items = append(items, video(id))
		f.opener.bodies["https://cdn.example/"+id+".mp4"] = []byte("the same bytes every time")
	}
	f.client.timeline = map[string]*fansly.TimelineResponse{"0": timelinePage("p1", items...)}

	run, err := f.scraper().Run(context.Background(), []string{"somecreator"})
	require.NoError(t, err)

	stats := run.Creators[0]
	assert.Equal(t, 1, stats.Videos)
	assert.Equal(t, 5, stats.Duplicates)
	assert.Equal(t, 6, f.opener.calls)
	require.Len(t, stats.Sources, 1)
	assert.True(t, stats.Sources[0].Stopped)
}

func TestFailedItemsAreCounted(t *testing.T) {
	f := newFixture(t)
	f.options.Mode = config.ModeTimeline
	delete(f.opener.bodies, "https://cdn.example/100002.mp4")

	run, err := f.scraper().Run(context.Background(), []string{"somecreator"})
	require.NoError(t, err)

	stats := run.Creators[0]
	assert.NoError(t, stats.Err)
	assert.Equal(t, 1, stats.Videos)
	assert.Equal(t, 1, stats.Failed)
}

func TestSingleMode(t *testing.T) {
	f := newFixture(t)
	f.options.Mode = config.ModeSingle
	f.options.PostID = "https://fansly.com/post/1234567890123"
	f.client.post = &fansly.PostResponse{
		Posts:     []fansly.Post{{ID: "1234567890123", AccountID: "42"}},
		MediaPage: fansly.MediaPage{AccountMedia: []fansly.AccountMedia{video("100001")}},
	}

	run, err := f.scraper().Run(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, run.Creators, 1)
	assert.Equal(t, "somecreator", run.Creators[0].Creator)
	assert.Len(t, files(t, filepath.Join(f.root, "somecreator_fansly", "Single", "Videos", "*.mp4")), 1)
}

func TestSingleModeBadPostID(t *testing.T) {
	f := newFixture(t)
	f.options.Mode = config.ModeSingle
	f.options.PostID = "12"

	run, err := f.scraper().Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, errs.ExitConfigError, ExitCode(run.Err()))
}

func TestCollectionMode(t *testing.T) {
	f := newFixture(t)
	f.options.Mode = config.ModeCollection
	f.client.orders = []fansly.MediaOrder{{AccountMediaID: "100001"}, {AccountMediaID: "100002"}}
	f.client.info = map[string]fansly.AccountMedia{"100001": video("100001"), "100002": video("100002")}

	run, err := f.scraper().Run(context.Background(), nil)
	require.NoError(t, err)
	require.NoError(t, run.Err())
	assert.Len(t, files(t, filepath.Join(f.root, "Collections", "Videos", "*.mp4")), 2)
}

func TestLockedCreatorFails(t *testing.T) {
	f := newFixture(t)
	dir := filepath.Join(f.root, "somecreator_fansly")
	lock, err := storage.LockCreator(dir)
	require.NoError(t, err)
	defer lock.Unlock()

	run, err := f.scraper().Run(context.Background(), []string{"somecreator"})
	require.NoError(t, err)
	assert.Error(t, run.Creators[0].Err)
	assert.Zero(t, f.opener.calls)
}

func TestLeftoverTempFilesRemoved(t *testing.T) {
	f := newFixture(t)
	stale := filepath.Join(f.root, "somecreator_fansly", "Timeline", "Videos", "old.mp4.tmp")
	require.NoError(t, os.MkdirAll(filepath.Dir(stale), 0o755))
	require.NoError(t, os.WriteFile(stale, []byte("partial"), 0o644))

	_, err := f.scraper().Run(context.Background(), []string{"somecreator"})
	require.NoError(t, err)
	_, statErr := os.Stat(stale)
	assert.True(t, os.IsNotExist(statErr))
}

func TestCancelledRun(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.scraper().Run(ctx, []string{"somecreator"})
	assert.True(t, errors.Is(err, context.Canceled))
}

type recordingObserver struct {
	started  []string
	sources  []media.Source
	items    int
	finished []*CreatorStats
}

func (r *recordingObserver) CreatorStarted(c string) { r.started = append(r.started, c) }
func (r *recordingObserver) SourceStarted(c string, s media.Source) {
	r.sources = append(r.sources, s)
}
func (r *recordingObserver) ItemDone(string, media.Descriptor, fetcher.Result) { r.items++ }
func (r *recordingObserver) CreatorFinished(s *CreatorStats)                   { r.finished = append(r.finished, s) }

func TestObserverEvents(t *testing.T) {
	f := newFixture(t)
	obs := &recordingObserver{}
	f.options.Observer = obs

	_, err := f.scraper().Run(context.Background(), []string{"somecreator"})
	require.NoError(t, err)

	assert.Equal(t, []string{"somecreator"}, obs.started)
	assert.Equal(t, []media.Source{media.SourceTimeline, media.SourceMessages}, obs.sources)
	assert.Equal(t, 3, obs.items)
	require.Len(t, obs.finished, 1)
	assert.Equal(t, 3, obs.finished[0].Written())
}

func TestCreatorStatsAdd(t *testing.T) {
	var s CreatorStats
	s.Add(media.Descriptor{Kind: media.KindImage}, fetcher.Result{Outcome: fetcher.OutcomeWritten, Size: 10})
	s.Add(media.Descriptor{Kind: media.KindAudio}, fetcher.Result{Outcome: fetcher.OutcomeWritten, Size: 5})
	s.Add(media.Descriptor{Kind: media.KindVideo}, fetcher.Result{Outcome: fetcher.OutcomeDuplicate})
	s.Add(media.Descriptor{Kind: media.KindVideo}, fetcher.Result{Outcome: fetcher.OutcomeSkippedPreview})
	s.Add(media.Descriptor{Kind: media.KindVideo}, fetcher.Result{Outcome: fetcher.OutcomeFailed})

	assert.Equal(t, 1, s.Pictures)
	assert.Equal(t, 1, s.Audio)
	assert.Equal(t, 2, s.Written())
	assert.Equal(t, 1, s.Duplicates)
	assert.Equal(t, 1, s.PreviewsSkipped)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, int64(15), s.Bytes)
}

func TestRunStatsTotals(t *testing.T) {
	run := &RunStats{Creators: []*CreatorStats{
		{Pictures: 2, Bytes: 100},
		{Videos: 1, Duplicates: 3, Bytes: 50},
	}}
	total := run.Totals()
	assert.Equal(t, 3, total.Written())
	assert.Equal(t, 3, total.Duplicates)
	assert.Equal(t, int64(150), total.Bytes)
	assert.NoError(t, run.Err())
}
