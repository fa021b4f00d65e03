package traversal

import (
	"context"
	stderrors "errors"
	"fmt"
	"regexp"
	"strings"

	errs "fanslydl/pkg/errors"
	"fanslydl/pkg/fansly"
	"fanslydl/pkg/logger"
	"fanslydl/pkg/media"
)

const firstCursor = "0"

// Timeline pages through a creator's posts, newest first
type Timeline struct {
	api       API
	creatorID string
}

// NewTimeline creates the timeline driver
func NewTimeline(api API, creatorID string) *Timeline {
	return &Timeline{api: api, creatorID: creatorID}
}

func (t *Timeline) Source() media.Source { return media.SourceTimeline }

func (t *Timeline) Start(ctx context.Context) (Cursor, error) {
	return Cursor{Token: firstCursor}, nil
}

func (t *Timeline) Fetch(ctx context.Context, cursor Cursor) (*Page, error) {
	resp, err := t.api.Timeline(ctx, t.creatorID, cursor.Token)
	if err != nil {
		return nil, err
	}

	parents := make([]media.Parent, 0, len(resp.Posts))
	for _, p := range resp.Posts {
		parents = append(parents, media.Parent{ID: p.ID, Attachments: p.Attachments})
	}
	page, err := buildPage(ctx, t.api, resp.MediaPage, parents)
	if err != nil {
		return nil, err
	}
	page.Items = len(resp.Posts)
	page.Next = nextCursor(resp.Posts, func(p fansly.Post) string { return p.ID })
	return page, nil
}

// Messages pages through the direct message group shared with a creator
type Messages struct {
	api       API
	creatorID string
	groupID   string
	logger    logger.Logger
}

// NewMessages creates the messages driver
func NewMessages(api API, creatorID string, log logger.Logger) *Messages {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Messages{api: api, creatorID: creatorID, logger: log}
}

func (m *Messages) Source() media.Source { return media.SourceMessages }

// Start locates the group; having no conversation with the creator is not an error
func (m *Messages) Start(ctx context.Context) (Cursor, error) {
	group, err := m.api.GroupWith(ctx, m.creatorID)
	if stderrors.Is(err, errs.ErrNoMessageGroup) {
		m.logger.WarnWithFields("No message history with creator", map[string]interface{}{
			"creator_id": m.creatorID,
		})
		return Cursor{Exhausted: true}, nil
	}
	if err != nil {
		return Cursor{}, err
	}
	m.groupID = group.ID
	return Cursor{Token: firstCursor}, nil
}

func (m *Messages) Fetch(ctx context.Context, cursor Cursor) (*Page, error) {
	if m.groupID == "" {
		return nil, fmt.Errorf("messages fetched before Start")
	}
	resp, err := m.api.Messages(ctx, m.groupID, cursor.Token)
	if err != nil {
		return nil, err
	}

	parents := make([]media.Parent, 0, len(resp.Messages))
	for _, msg := range resp.Messages {
		parents = append(parents, media.Parent{ID: msg.ID, Attachments: msg.Attachments})
	}
	page, err := buildPage(ctx, m.api, resp.MediaPage, parents)
	if err != nil {
		return nil, err
	}
	page.Items = len(resp.Messages)
	page.Next = nextCursor(resp.Messages, func(msg fansly.Message) string { return msg.ID })
	return page, nil
}

// SinglePost fetches the media of one post
type SinglePost struct {
	api    API
	postID string
}

// NewSinglePost creates the single post driver
func NewSinglePost(api API, postID string) *SinglePost {
	return &SinglePost{api: api, postID: postID}
}

func (s *SinglePost) Source() media.Source { return media.SourceSingle }

func (s *SinglePost) Start(ctx context.Context) (Cursor, error) {
	return Cursor{Token: s.postID}, nil
}

func (s *SinglePost) Fetch(ctx context.Context, cursor Cursor) (*Page, error) {
	resp, err := s.api.Post(ctx, s.postID)
	if err != nil {
		return nil, err
	}
	if len(resp.Posts) == 0 {
		return nil, errs.New(errs.ErrorTypeNotFound, fmt.Sprintf("post not found: %s", s.postID))
	}

	parents := make([]media.Parent, 0, len(resp.Posts))
	for _, p := range resp.Posts {
		parents = append(parents, media.Parent{ID: p.ID, Attachments: p.Attachments})
	}
	page, err := buildPage(ctx, s.api, resp.MediaPage, parents)
	if err != nil {
		return nil, err
	}
	page.Items = len(resp.Posts)
	page.Next = Cursor{Exhausted: true}
	return page, nil
}

// Collection fetches every purchased media item
type Collection struct {
	api API
}

// NewCollection creates the collection driver
func NewCollection(api API) *Collection {
	return &Collection{api: api}
}

func (c *Collection) Source() media.Source { return media.SourceCollection }

func (c *Collection) Start(ctx context.Context) (Cursor, error) {
	return Cursor{Token: firstCursor}, nil
}

func (c *Collection) Fetch(ctx context.Context, cursor Cursor) (*Page, error) {
	orders, err := c.api.Collections(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(orders))
	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		if o.AccountMediaID == "" {
			continue
		}
		if _, ok := seen[o.AccountMediaID]; ok {
			continue
		}
		seen[o.AccountMediaID] = struct{}{}
		ids = append(ids, o.AccountMediaID)
	}

	page := &Page{Items: len(orders), Next: Cursor{Exhausted: true}}
	if len(ids) == 0 {
		return page, nil
	}
	entries, err := c.api.MediaInfo(ctx, ids)
	if err != nil {
		return nil, err
	}
	page.Descriptors = media.Descriptors(entries, nil)
	return page, nil
}

func buildPage(ctx context.Context, api API, mp fansly.MediaPage, parents []media.Parent) (*Page, error) {
	entries, err := resolve(ctx, api, mp)
	if err != nil {
		return nil, err
	}
	index := media.ParentIndex(parents, mp.AccountMediaBundles)
	return &Page{Descriptors: media.Descriptors(entries, index)}, nil
}

// nextCursor continues from the last item; an empty page ends the source
func nextCursor[T any](items []T, id func(T) string) Cursor {
	if len(items) == 0 {
		return Cursor{Exhausted: true}
	}
	return Cursor{Token: id(items[len(items)-1])}
}

var (
	postURLPattern = regexp.MustCompile(`/post/(\d{10,})`)
	postIDPattern  = regexp.MustCompile(`^\d{10,}$`)
)

// ParsePostID accepts a bare post id of 10 or more digits or a post URL
func ParsePostID(input string) (string, error) {
	input = strings.TrimSpace(input)
	if strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://") {
		if m := postURLPattern.FindStringSubmatch(input); m != nil {
			return m[1], nil
		}
		return "", errs.New(errs.ErrorTypeConfig, fmt.Sprintf("could not extract post id from URL: %s", input))
	}
	if postIDPattern.MatchString(input) {
		return input, nil
	}
	return "", errs.New(errs.ErrorTypeConfig, fmt.Sprintf("invalid post id %q: must be 10+ digits or a post URL", input))
}
