package fansly

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	errs "fanslydl/pkg/errors"
)

// MediaBatchSize is the maximum number of ids per media info request
const MediaBatchSize = 150

// Me returns the account that owns the token
func (c *Client) Me(ctx context.Context) (*Account, error) {
	var out accountMe
	if err := c.getJSON(ctx, "/api/v1/account/me", &out); err != nil {
		return nil, err
	}
	return &out.Account, nil
}

// AccountByUsername resolves a creator account
func (c *Client) AccountByUsername(ctx context.Context, username string) (*Account, error) {
	var out []Account
	path := "/api/v1/account?usernames=" + url.QueryEscape(username)
	if err := c.getJSON(ctx, path, &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s", errs.ErrAccountNotFound, username)
	}
	return &out[0], nil
}

// AccountByID resolves an account from its numeric id
func (c *Client) AccountByID(ctx context.Context, id string) (*Account, error) {
	var out []Account
	if err := c.getJSON(ctx, "/api/v1/account?ids="+url.QueryEscape(id), &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: id %s", errs.ErrAccountNotFound, id)
	}
	return &out[0], nil
}

// Timeline returns the page of posts older than cursor; "0" is the newest page
func (c *Client) Timeline(ctx context.Context, creatorID, cursor string) (*TimelineResponse, error) {
	path := fmt.Sprintf("/api/v1/timelinenew/%s?before=%s&after=0&wallId=&contentSearch=", creatorID, cursor)
	var out TimelineResponse
	if err := c.getJSON(ctx, path, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Groups lists the message groups of the account
func (c *Client) Groups(ctx context.Context) ([]MessageGroup, error) {
	var out groupsResponse
	err := c.getJSON(ctx, "/api/v1/group", &out)
	if isMissingGroup(err) {
		c.logger.Debug("no message groups found")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return out.Groups, nil
}

// the API answers 400 "missing groupId" when the account has no conversations
func isMissingGroup(err error) bool {
	var apiErr *errs.Error
	if !stderrors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == http.StatusBadRequest && strings.Contains(apiErr.Message, "missing groupId")
}

// GroupWith returns the group whose participants include userID
func (c *Client) GroupWith(ctx context.Context, userID string) (*MessageGroup, error) {
	groups, err := c.Groups(ctx)
	if err != nil {
		return nil, err
	}
	for i := range groups {
		for _, u := range groups[i].Users {
			if u.UserID == userID {
				return &groups[i], nil
			}
		}
	}
	return nil, errs.ErrNoMessageGroup
}

// Messages returns up to 25 messages older than cursor
func (c *Client) Messages(ctx context.Context, groupID, cursor string) (*MessagesResponse, error) {
	path := fmt.Sprintf("/api/v1/message?groupId=%s&limit=25&before=%s", groupID, cursor)
	var out MessagesResponse
	if err := c.getJSON(ctx, path, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Post fetches a single post with its media
func (c *Client) Post(ctx context.Context, postID string) (*PostResponse, error) {
	var out PostResponse
	if err := c.getJSON(ctx, "/api/v1/post?ids="+postID, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Collections lists purchased media
func (c *Client) Collections(ctx context.Context) ([]MediaOrder, error) {
	var out collectionsResponse
	if err := c.getJSON(ctx, "/api/v1/account/media/orders/", &out); err != nil {
		return nil, err
	}
	return out.AccountMediaOrders, nil
}

// MediaInfo resolves account media ids, MediaBatchSize at a time
func (c *Client) MediaInfo(ctx context.Context, ids []string) ([]AccountMedia, error) {
	var all []AccountMedia
	for _, batch := range Batches(ids, MediaBatchSize) {
		var out []AccountMedia
		if err := c.getJSON(ctx, "/api/v1/account/media?ids="+strings.Join(batch, ","), &out); err != nil {
			return all, err
		}
		all = append(all, out...)
	}
	return all, nil
}

// Batches splits ids into consecutive chunks of at most size
func Batches(ids []string, size int) [][]string {
	if size <= 0 {
		size = MediaBatchSize
	}
	var out [][]string
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		out = append(out, ids[start:end])
	}
	return out
}
