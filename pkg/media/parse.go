package media

import (
	"net/url"
	"strings"

	"fanslydl/pkg/fansly"
)

// Attachment content types
const (
	contentTypeMedia  = 1
	contentTypeBundle = 2
)

// FromAccountMedia builds the descriptor for an account media entry.
// Accessible entries yield the full media; otherwise the preview is returned
// flagged as such and the caller applies the preview policy.
func FromAccountMedia(am fansly.AccountMedia, postID string) (Descriptor, bool) {
	details, preview := am.Media, false
	if !am.Access {
		details, preview = am.Preview, true
	}
	if details == nil {
		return Descriptor{}, false
	}

	best, ok := bestVariant(details)
	if !ok {
		return Descriptor{}, false
	}

	return Descriptor{
		ID:        am.ID,
		PostID:    postID,
		Kind:      KindFromMimetype(best.mimetype),
		Preview:   preview,
		CreatedAt: details.CreatedAt,
		Mimetype:  best.mimetype,
		URL:       best.url,
		Extension: Extension(best.url, best.mimetype),
		Width:     best.width,
		Height:    best.height,
		Metadata:  best.metadata,
	}, true
}

type variantChoice struct {
	url      string
	mimetype string
	width    int
	height   int
	metadata map[string]string
}

// bestVariant picks the largest resolution with a location among the media
// itself and its variants sharing the same base mime type
func bestVariant(details *fansly.MediaDetails) (variantChoice, bool) {
	best := variantChoice{
		mimetype: details.Mimetype,
		width:    details.Width,
		height:   details.Height,
	}
	found := false
	if len(details.Locations) > 0 {
		best.url = details.Locations[0].Location
		best.metadata = details.Locations[0].Metadata
		found = true
	}
	bestRes := int64(best.width) * int64(best.height)

	for _, v := range details.Variants {
		if baseType(v.Mimetype) != baseType(details.Mimetype) || len(v.Locations) == 0 {
			continue
		}
		res := int64(v.Width) * int64(v.Height)
		if found && res <= bestRes {
			continue
		}
		best = variantChoice{
			url:      v.Locations[0].Location,
			mimetype: v.Mimetype,
			width:    v.Width,
			height:   v.Height,
			metadata: v.Locations[0].Metadata,
		}
		bestRes = res
		found = true
	}
	return best, found && best.url != ""
}

func baseType(mimetype string) string {
	base, _, _ := strings.Cut(mimetype, "/")
	return base
}

var mimeExtensions = map[string]string{
	"image/jpeg":                    "jpg",
	"image/png":                     "png",
	"image/gif":                     "gif",
	"image/webp":                    "webp",
	"video/mp4":                     "mp4",
	"video/webm":                    "webm",
	"video/quicktime":               "mov",
	"application/vnd.apple.mpegurl": "mp4",
	"application/x-mpegurl":         "mp4",
	"audio/mpeg":                    "mp3",
	"audio/mp4":                     "m4a",
	"audio/ogg":                     "ogg",
	"audio/wav":                     "wav",
}

// Extension returns the file extension for a URL, falling back to the mime type
func Extension(rawURL, mimetype string) string {
	if ext, ok := extensionFromURL(rawURL); ok {
		return ext
	}
	if ext, ok := mimeExtensions[strings.ToLower(mimetype)]; ok {
		return ext
	}
	return "bin"
}

func extensionFromURL(rawURL string) (string, bool) {
	path := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		path = u.Path
	} else if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}

	name := path[strings.LastIndexByte(path, '/')+1:]
	dot := strings.LastIndexByte(name, '.')
	if dot < 0 {
		return "", false
	}
	ext := name[dot+1:]
	if ext == "" || len(ext) > 10 {
		return "", false
	}
	for _, c := range ext {
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9') {
			return "", false
		}
	}
	return strings.ToLower(ext), true
}

// IDs returns the account media ids referenced by a page, including
// bundle members, deduplicated in first-seen order
func IDs(page fansly.MediaPage) []string {
	seen := make(map[string]struct{})
	var ids []string
	add := func(id string) {
		if id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	for _, am := range page.AccountMedia {
		add(am.ID)
	}
	for _, b := range page.AccountMediaBundles {
		for _, id := range b.AccountMediaIDs {
			add(id)
		}
	}
	return ids
}

// Split separates ids into the entries already present in inline and the ids still to fetch
func Split(ids []string, inline []fansly.AccountMedia) ([]fansly.AccountMedia, []string) {
	byID := make(map[string]fansly.AccountMedia, len(inline))
	for _, am := range inline {
		byID[am.ID] = am
	}

	var found []fansly.AccountMedia
	var missing []string
	for _, id := range ids {
		if am, ok := byID[id]; ok {
			found = append(found, am)
		} else {
			missing = append(missing, id)
		}
	}
	return found, missing
}

// Parent is a post or message carrying attachments
type Parent struct {
	ID          string
	Attachments []fansly.Attachment
}

// ParentIndex maps account media ids to the id of the post or message that attached them
func ParentIndex(parents []Parent, bundles []fansly.MediaBundle) map[string]string {
	bundleMembers := make(map[string][]string, len(bundles))
	for _, b := range bundles {
		bundleMembers[b.ID] = b.AccountMediaIDs
	}

	index := make(map[string]string)
	for _, p := range parents {
		for _, a := range p.Attachments {
			switch a.ContentType {
			case contentTypeMedia:
				index[a.ContentID] = p.ID
			case contentTypeBundle:
				for _, id := range bundleMembers[a.ContentID] {
					index[id] = p.ID
				}
			}
		}
	}
	return index
}

// Descriptors resolves entries into descriptors in order, dropping entries with nothing downloadable
func Descriptors(entries []fansly.AccountMedia, parents map[string]string) []Descriptor {
	out := make([]Descriptor, 0, len(entries))
	for _, am := range entries {
		if d, ok := FromAccountMedia(am, parents[am.ID]); ok {
			out = append(out, d)
		}
	}
	return out
}
