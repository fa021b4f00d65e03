package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	errs "fanslydl/pkg/errors"
)

const tempSuffix = ".tmp"

// Manager performs file operations with atomic writes
type Manager struct {
	fs afero.Fs
}

// NewManager creates a manager over the given filesystem; nil means the OS filesystem
func NewManager(fs afero.Fs) *Manager {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Manager{fs: fs}
}

// Fs returns the underlying filesystem
func (m *Manager) Fs() afero.Fs { return m.fs }

// EnsureDir creates a directory and its parents
func (m *Manager) EnsureDir(dir string) error {
	if err := m.fs.MkdirAll(dir, 0o755); err != nil {
		return errs.Wrap(errs.ErrorTypeFilesystem, err, "failed to create directory "+dir)
	}
	return nil
}

// Exists reports whether path exists
func (m *Manager) Exists(path string) bool {
	_, err := m.fs.Stat(path)
	return err == nil
}

// TempPath is where an in-progress write to dest lives
func TempPath(dest string) string {
	return dest + tempSuffix
}

// PendingFile is an in-progress write that only appears under its final
// name after Commit
type PendingFile struct {
	m      *Manager
	file   afero.File
	tmp    string
	dest   string
	closed bool
	done   bool
}

// Create opens a temporary file next to dest
func (m *Manager) Create(dest string) (*PendingFile, error) {
	if err := m.EnsureDir(filepath.Dir(dest)); err != nil {
		return nil, err
	}
	tmp := TempPath(dest)
	f, err := m.fs.Create(tmp)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeFilesystem, err, "failed to create temporary file")
	}
	return &PendingFile{m: m, file: f, tmp: tmp, dest: dest}, nil
}

func (p *PendingFile) Write(b []byte) (int, error) { return p.file.Write(b) }

// Name is the temporary path being written
func (p *PendingFile) Name() string { return p.tmp }

// Close flushes the temporary file
func (p *PendingFile) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	if err := p.file.Close(); err != nil {
		return errs.Wrap(errs.ErrorTypeFilesystem, err, "failed to close file")
	}
	return nil
}

// Commit closes the temporary file and renames it to final, which may
// differ from the destination given to Create
func (p *PendingFile) Commit(final string) error {
	if p.done {
		return fmt.Errorf("pending file already finished")
	}
	p.done = true

	if err := p.Close(); err != nil {
		p.m.fs.Remove(p.tmp)
		return err
	}
	if final == "" {
		final = p.dest
	}
	if err := p.m.fs.Rename(p.tmp, final); err != nil {
		p.m.fs.Remove(p.tmp)
		return errs.Wrap(errs.ErrorTypeFilesystem, err, "failed to rename temporary file")
	}
	return nil
}

// Abort closes and removes the temporary file; it is a no-op after Commit
func (p *PendingFile) Abort() {
	if p.done {
		return
	}
	p.done = true
	p.Close()
	p.m.fs.Remove(p.tmp)
}

// Save writes r to dest atomically
func (m *Manager) Save(r io.Reader, dest string) (int64, error) {
	pf, err := m.Create(dest)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(pf, r)
	if err != nil {
		pf.Abort()
		return n, errs.Wrap(errs.ErrorTypeDownload, err, "failed to write data")
	}
	return n, pf.Commit("")
}

// Remove deletes a file, ignoring a missing one
func (m *Manager) Remove(path string) error {
	if err := m.fs.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// CleanTemp removes leftover temporary files below dir and returns how many were removed
func (m *Manager) CleanTemp(dir string) (int, error) {
	if !m.Exists(dir) {
		return 0, nil
	}
	var stale []string
	err := afero.Walk(m.fs, dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == tempSuffix {
			stale = append(stale, path)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	for _, p := range stale {
		m.fs.Remove(p)
	}
	return len(stale), nil
}

// Promote renames a finished temporary file produced outside the manager into place
func (m *Manager) Promote(tmp, final string) error {
	if err := m.fs.Rename(tmp, final); err != nil {
		m.fs.Remove(tmp)
		return errs.Wrap(errs.ErrorTypeFilesystem, err, "failed to rename temporary file")
	}
	return nil
}
