package storage

import (
	"fmt"
	"path/filepath"
	"strings"

	errs "fanslydl/pkg/errors"
	"fanslydl/pkg/media"
)

// Layout decides where files land under the download directory
type Layout struct {
	Root             string
	UseFolderSuffix  bool
	SeparateTimeline bool
	SeparateMessages bool
	SeparatePreviews bool
}

// CreatorDir returns the directory holding everything for a creator
func (l Layout) CreatorDir(creator string) (string, error) {
	name, err := safeComponent(creator)
	if err != nil {
		return "", err
	}
	if l.UseFolderSuffix {
		name += "_fansly"
	}
	return l.within(filepath.Join(l.Root, name))
}

// CollectionsDir returns the shared directory for purchased media
func (l Layout) CollectionsDir() string {
	return filepath.Join(l.Root, "Collections")
}

// Dir returns the directory for a descriptor of the given kind found in source
func (l Layout) Dir(creator string, source media.Source, kind media.Kind, preview bool) (string, error) {
	var base string
	if source == media.SourceCollection {
		base = l.CollectionsDir()
	} else {
		dir, err := l.CreatorDir(creator)
		if err != nil {
			return "", err
		}
		base = dir
		switch {
		case source == media.SourceTimeline && l.SeparateTimeline:
			base = filepath.Join(base, "Timeline")
		case source == media.SourceMessages && l.SeparateMessages:
			base = filepath.Join(base, "Messages")
		case source == media.SourceSingle:
			base = filepath.Join(base, "Single")
		}
	}

	dir := filepath.Join(base, kind.Folder())
	if preview && l.SeparatePreviews {
		dir = filepath.Join(dir, "Previews")
	}
	return l.within(dir)
}

// Path returns the full destination path for a file name
func (l Layout) Path(creator string, source media.Source, d media.Descriptor, filename string) (string, error) {
	dir, err := l.Dir(creator, source, d.Kind, d.Preview)
	if err != nil {
		return "", err
	}
	name, err := safeComponent(filename)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// within rejects paths that resolve outside the root
func (l Layout) within(path string) (string, error) {
	root := filepath.Clean(l.Root)
	rel, err := filepath.Rel(root, filepath.Clean(path))
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errs.New(errs.ErrorTypeFilesystem, fmt.Sprintf("path %q escapes download directory", path))
	}
	return filepath.Join(root, rel), nil
}

// safeComponent sanitises a single path element and rejects traversal
func safeComponent(name string) (string, error) {
	if strings.Contains(name, "..") {
		return "", errs.New(errs.ErrorTypeFilesystem, fmt.Sprintf("invalid name %q", name))
	}
	clean := strings.TrimSpace(media.SanitizeName(name))
	if clean == "" || clean == "." {
		return "", errs.New(errs.ErrorTypeFilesystem, fmt.Sprintf("invalid name %q", name))
	}
	return clean, nil
}
