package dedup

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"fanslydl/pkg/media"
)

// Bootstrap seeds the engine from file names under root and returns the
// number of files recognised. A missing root is not an error.
func (e *Engine) Bootstrap(fsys afero.Fs, root string) (int, error) {
	if _, err := fsys.Stat(root); err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	count := 0
	err := afero.Walk(fsys, root, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		parsed, ok := media.ParseFilename(info.Name())
		if !ok {
			return nil
		}
		kind := folderKind(path)
		if kind == media.KindUnknown {
			kind = parsed.Kind
		}
		e.record(kind, parsed.Preview, Record{ID: parsed.MediaID, Hash: parsed.Hash, Filename: info.Name()})
		count++
		return nil
	})
	return count, err
}

// folderKind reads the kind from the Pictures, Videos or Audio directory a
// file was written to, looking through a Previews subdirectory
func folderKind(path string) media.Kind {
	dir := filepath.Dir(path)
	if filepath.Base(dir) == "Previews" {
		dir = filepath.Dir(dir)
	}
	return media.KindFromFolder(filepath.Base(dir))
}
