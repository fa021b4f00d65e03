package fansly

import "encoding/json"

// apiResponse is the envelope every endpoint returns
type apiResponse[T any] struct {
	Success  bool `json:"success"`
	Response T    `json:"response"`
}

// Account is a platform account
type Account struct {
	ID            string         `json:"id"`
	Username      string         `json:"username"`
	DisplayName   string         `json:"displayName,omitempty"`
	Following     bool           `json:"following,omitempty"`
	Subscribed    bool           `json:"subscribed,omitempty"`
	TimelineStats *TimelineStats `json:"timelineStats,omitempty"`
}

// TimelineStats holds the creator's advertised media counts
type TimelineStats struct {
	ImageCount int64 `json:"imageCount"`
	VideoCount int64 `json:"videoCount"`
}

type accountMe struct {
	Account Account `json:"account"`
}

// Post is a timeline post
type Post struct {
	ID          string       `json:"id"`
	AccountID   string       `json:"accountId"`
	CreatedAt   int64        `json:"createdAt"`
	Attachments []Attachment `json:"attachments"`
}

// Message is a direct message
type Message struct {
	ID          string       `json:"id"`
	SenderID    string       `json:"senderId"`
	CreatedAt   int64        `json:"createdAt"`
	Attachments []Attachment `json:"attachments"`
}

// Attachment links a post or message to media content
type Attachment struct {
	ContentID   string `json:"contentId"`
	ContentType int    `json:"contentType"`
}

// AccountMedia is one media entry with its optional preview
type AccountMedia struct {
	ID        string        `json:"id"`
	AccountID string        `json:"accountId"`
	PreviewID string        `json:"previewId,omitempty"`
	Access    bool          `json:"access"`
	Media     *MediaDetails `json:"media,omitempty"`
	Preview   *MediaDetails `json:"preview,omitempty"`
}

// MediaDetails describes a stored media file and its variants
type MediaDetails struct {
	ID        string          `json:"id"`
	CreatedAt int64           `json:"createdAt"`
	Mimetype  string          `json:"mimetype"`
	Width     int             `json:"width,omitempty"`
	Height    int             `json:"height,omitempty"`
	Locations []MediaLocation `json:"locations"`
	Variants  []MediaVariant  `json:"variants"`
}

// MediaVariant is an alternative encoding of a media file
type MediaVariant struct {
	ID        string          `json:"id"`
	Mimetype  string          `json:"mimetype"`
	Width     int             `json:"width,omitempty"`
	Height    int             `json:"height,omitempty"`
	Locations []MediaLocation `json:"locations"`
}

// MediaLocation is a download URL plus signing metadata
type MediaLocation struct {
	Location string            `json:"location"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// MediaBundle groups several account media under one post
type MediaBundle struct {
	ID              string   `json:"id"`
	AccountID       string   `json:"accountId"`
	AccountMediaIDs []string `json:"accountMediaIds"`
	PreviewID       string   `json:"previewId,omitempty"`
	CreatedAt       int64    `json:"createdAt"`
}

// MediaPage is the media-bearing part shared by timeline, message and post responses
type MediaPage struct {
	AccountMedia        []AccountMedia `json:"accountMedia"`
	AccountMediaBundles []MediaBundle  `json:"accountMediaBundles"`
}

// TimelineResponse is one page of a creator's timeline
type TimelineResponse struct {
	Posts []Post `json:"posts"`
	MediaPage
}

// MessagesResponse is one page of a message group
type MessagesResponse struct {
	Messages []Message `json:"messages"`
	MediaPage
}

// PostResponse is the result of a single post lookup
type PostResponse struct {
	Posts []Post `json:"posts"`
	MediaPage
}

// MessageGroup is a conversation
type MessageGroup struct {
	ID    string      `json:"id"`
	Users []GroupUser `json:"users"`
}

// GroupUser is a participant in a message group
type GroupUser struct {
	UserID   string `json:"userId"`
	Username string `json:"username,omitempty"`
}

type groupsResponse struct {
	Groups []MessageGroup `json:"groups"`
}

// MediaOrder is a purchased media entry
type MediaOrder struct {
	AccountID      string `json:"accountId"`
	AccountMediaID string `json:"accountMediaId"`
	Type           int    `json:"type"`
	CreatedAt      int64  `json:"createdAt"`
	BundleID       string `json:"bundleId,omitempty"`
}

type collectionsResponse struct {
	AccountMediaOrders []MediaOrder `json:"accountMediaOrders"`
}

// deviceIDResponse accepts both a bare string and {"deviceId": "..."}
type deviceIDResponse string

func (d *deviceIDResponse) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*d = deviceIDResponse(s)
		return nil
	}
	var obj struct {
		DeviceID string `json:"deviceId"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*d = deviceIDResponse(obj.DeviceID)
	return nil
}

// wsFrame is a real-time endpoint frame
type wsFrame struct {
	T int    `json:"t"`
	D string `json:"d"`
}

type wsSessionData struct {
	Session struct {
		ID string `json:"id"`
	} `json:"session"`
}
