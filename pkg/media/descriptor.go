package media

import (
	"strings"
	"time"
)

// Kind is the media category a descriptor falls into
type Kind int

const (
	KindUnknown Kind = iota
	KindImage
	KindVideo
	KindAudio
)

func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindVideo:
		return "video"
	case KindAudio:
		return "audio"
	default:
		return "unknown"
	}
}

// Folder is the output subdirectory for the kind
func (k Kind) Folder() string {
	switch k {
	case KindImage:
		return "Pictures"
	case KindVideo:
		return "Videos"
	case KindAudio:
		return "Audio"
	default:
		return "Other"
	}
}

// KindFromMimetype classifies a mime type; HLS playlists are video
func KindFromMimetype(mimetype string) Kind {
	switch {
	case strings.HasPrefix(mimetype, "image"):
		return KindImage
	case strings.HasPrefix(mimetype, "video"), strings.Contains(mimetype, "mpegurl"):
		return KindVideo
	case strings.HasPrefix(mimetype, "audio"):
		return KindAudio
	default:
		return KindUnknown
	}
}

// KindFromFolder is the inverse of Kind.Folder
func KindFromFolder(name string) Kind {
	switch name {
	case "Pictures":
		return KindImage
	case "Videos":
		return KindVideo
	case "Audio":
		return KindAudio
	default:
		return KindUnknown
	}
}

// KindFromExtension classifies a file extension (without the dot)
func KindFromExtension(ext string) Kind {
	switch strings.ToLower(ext) {
	case "jpg", "jpeg", "png", "gif", "webp":
		return KindImage
	case "mp4", "webm", "mov", "m4v", "ts":
		return KindVideo
	case "mp3", "m4a", "ogg", "wav", "aac", "flac":
		return KindAudio
	default:
		return KindUnknown
	}
}

// Descriptor is one downloadable media item. It is never mutated after creation.
type Descriptor struct {
	ID        string
	PostID    string
	Kind      Kind
	Preview   bool
	CreatedAt int64
	Mimetype  string
	URL       string
	Extension string
	Width     int
	Height    int
	// Size is the expected byte count, 0 when unknown; the response
	// Content-Length is checked instead when it is 0
	Size int64
	// Metadata carries CDN signing values for the location
	Metadata map[string]string
}

// NormalizeTimestamp converts a source timestamp to time.
// Values below 1e12 are seconds, anything else milliseconds.
func NormalizeTimestamp(ts int64) time.Time {
	if ts < 1_000_000_000_000 {
		ts *= 1000
	}
	return time.UnixMilli(ts).UTC()
}

// Time returns the normalised creation time
func (d Descriptor) Time() time.Time {
	return NormalizeTimestamp(d.CreatedAt)
}

// IsHLS reports whether the locator is an HLS playlist
func (d Descriptor) IsHLS() bool {
	return strings.Contains(d.Mimetype, "mpegurl") || strings.Contains(d.URL, ".m3u8")
}

// EffectiveExtension is the extension of the file on disk; HLS streams end up as mp4
func (d Descriptor) EffectiveExtension() string {
	if d.IsHLS() {
		return "mp4"
	}
	return d.Extension
}

// Resolution is width times height
func (d Descriptor) Resolution() int64 {
	return int64(d.Width) * int64(d.Height)
}

// Source is the content source a descriptor was found in
type Source string

const (
	SourceTimeline   Source = "timeline"
	SourceMessages   Source = "messages"
	SourceSingle     Source = "single"
	SourceCollection Source = "collection"
)
