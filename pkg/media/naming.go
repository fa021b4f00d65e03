package media

import (
	"strings"
	"unicode"
)

const timestampLayout = "2006-01-02T15-04-05"

// Hash fragments recognised in filenames, current first
var hashMarkers = []string{"_hash2_", "_hash1_", "_hash_"}

// Filename returns the deterministic on-disk name without a content hash
func (d Descriptor) Filename() string {
	return d.stem() + "." + d.EffectiveExtension()
}

// FilenameWithHash returns the on-disk name carrying the content hash
func (d Descriptor) FilenameWithHash(hash string) string {
	if hash == "" {
		return d.Filename()
	}
	return d.stem() + "_hash2_" + hash + "." + d.EffectiveExtension()
}

func (d Descriptor) stem() string {
	prefix := "id"
	if d.Preview {
		prefix = "preview_id"
	}
	return d.Time().Format(timestampLayout) + "_" + prefix + "_" + d.ID
}

// FileInfo is what can be recovered from an existing file's name
type FileInfo struct {
	MediaID string
	Hash    string
	Preview bool
	Kind    Kind
}

// ParseFilename extracts the media id, content hash and kind from a file name.
// ok is false when neither an id nor a hash could be found.
func ParseFilename(name string) (FileInfo, bool) {
	stem, ext := name, ""
	if dot := strings.LastIndexByte(name, '.'); dot >= 0 {
		stem, ext = name[:dot], name[dot+1:]
	}
	info := FileInfo{Kind: KindFromExtension(ext)}

	for _, marker := range hashMarkers {
		if i := strings.Index(stem, marker); i >= 0 {
			info.Hash = stem[i+len(marker):]
			stem = stem[:i]
			break
		}
	}

	switch {
	case strings.Contains(stem, "_preview_id_"):
		info.Preview = true
		info.MediaID = afterMarker(stem, "_preview_id_")
	case strings.Contains(stem, "_id_"):
		info.MediaID = afterMarker(stem, "_id_")
	}
	if info.MediaID == "" {
		info.MediaID = lastLongNumber(stem)
	}

	return info, info.MediaID != "" || info.Hash != ""
}

func afterMarker(s, marker string) string {
	i := strings.LastIndex(s, marker)
	rest := s[i+len(marker):]
	if j := strings.IndexByte(rest, '_'); j >= 0 {
		rest = rest[:j]
	}
	if !isDigits(rest) {
		return ""
	}
	return rest
}

// lastLongNumber returns the last underscore separated part of more than five digits
func lastLongNumber(stem string) string {
	parts := strings.Split(stem, "_")
	for i := len(parts) - 1; i >= 0; i-- {
		if len(parts[i]) > 5 && isDigits(parts[i]) {
			return parts[i]
		}
	}
	return ""
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// SanitizeName replaces characters that are unsafe in a single path component
func SanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		if unicode.IsControl(r) {
			return '_'
		}
		return r
	}, name)
}
