package traversal

import (
	"context"

	"fanslydl/pkg/fansly"
	"fanslydl/pkg/media"
)

// API is the part of the platform client the drivers use
type API interface {
	Timeline(ctx context.Context, creatorID, cursor string) (*fansly.TimelineResponse, error)
	GroupWith(ctx context.Context, userID string) (*fansly.MessageGroup, error)
	Messages(ctx context.Context, groupID, cursor string) (*fansly.MessagesResponse, error)
	Post(ctx context.Context, postID string) (*fansly.PostResponse, error)
	Collections(ctx context.Context) ([]fansly.MediaOrder, error)
	MediaInfo(ctx context.Context, ids []string) ([]fansly.AccountMedia, error)
}

// Cursor is an opaque page token; Exhausted means there is nothing left to fetch
type Cursor struct {
	Token     string
	Exhausted bool
}

// Page is one fetched page turned into descriptors
type Page struct {
	// Items is the number of posts or messages on the page
	Items       int
	Descriptors []media.Descriptor
	Next        Cursor
}

// Empty reports whether the page carried nothing at all
func (p *Page) Empty() bool {
	return p.Items == 0 && len(p.Descriptors) == 0
}

// PageSource pages through one content source
type PageSource interface {
	Source() media.Source
	// Start returns the first cursor; an exhausted cursor means the source has no content
	Start(ctx context.Context) (Cursor, error)
	Fetch(ctx context.Context, cursor Cursor) (*Page, error)
}

// resolve returns the media referenced by page in reference order, fetching
// entries the page did not inline with their details
func resolve(ctx context.Context, api API, page fansly.MediaPage) ([]fansly.AccountMedia, error) {
	ids := media.IDs(page)
	if len(ids) == 0 {
		return nil, nil
	}

	inline := make([]fansly.AccountMedia, 0, len(page.AccountMedia))
	for _, am := range page.AccountMedia {
		if am.Media != nil || am.Preview != nil {
			inline = append(inline, am)
		}
	}
	found, missing := media.Split(ids, inline)
	if len(missing) > 0 {
		fetched, err := api.MediaInfo(ctx, missing)
		if err != nil {
			return nil, err
		}
		found = append(found, fetched...)
	}

	byID := make(map[string]fansly.AccountMedia, len(found))
	for _, am := range found {
		byID[am.ID] = am
	}
	ordered := make([]fansly.AccountMedia, 0, len(ids))
	for _, id := range ids {
		if am, ok := byID[id]; ok {
			ordered = append(ordered, am)
		}
	}
	return ordered, nil
}
