package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"fanslydl/pkg/logger"
	"fanslydl/pkg/media"

	"github.com/spf13/afero"
)

const currentVersion = 1

// Checkpoint is the resume point of one source of one creator
type Checkpoint struct {
	Creator   string       `json:"creator"`
	CreatorID string       `json:"creator_id"`
	Source    media.Source `json:"source"`
	// Cursor is the last fully processed cursor
	Cursor    string    `json:"cursor"`
	Pages     int       `json:"pages"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Version   int       `json:"version"`
}

// Manager handles checkpoint files in one directory
type Manager struct {
	fs     afero.Fs
	dir    string
	logger logger.Logger
}

// NewManager creates a manager rooted in the user data directory
func NewManager(log logger.Logger) (*Manager, error) {
	dataDir, err := getDataDirectory()
	if err != nil {
		return nil, fmt.Errorf("failed to get data directory: %w", err)
	}
	return NewManagerAt(afero.NewOsFs(), filepath.Join(dataDir, "checkpoints"), log), nil
}

// NewManagerAt creates a manager storing checkpoints in dir on fs
func NewManagerAt(fs afero.Fs, dir string, log logger.Logger) *Manager {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Manager{fs: fs, dir: dir, logger: log}
}

func (m *Manager) path(creator string, source media.Source) string {
	return filepath.Join(m.dir, fmt.Sprintf("%s.%s.checkpoint.json", creator, source))
}

// New returns a fresh, unsaved checkpoint
func New(creator, creatorID string, source media.Source) *Checkpoint {
	now := time.Now()
	return &Checkpoint{
		Creator:   creator,
		CreatorID: creatorID,
		Source:    source,
		CreatedAt: now,
		UpdatedAt: now,
		Version:   currentVersion,
	}
}

// Load returns the stored checkpoint, or nil when none exists
func (m *Manager) Load(creator string, source media.Source) (*Checkpoint, error) {
	data, err := afero.ReadFile(m.fs, m.path(creator, source))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}
	if cp.Version != currentVersion {
		m.logger.WarnWithFields("Ignoring checkpoint with unknown version", map[string]interface{}{
			"creator": creator,
			"version": cp.Version,
		})
		return nil, nil
	}

	m.logger.InfoWithFields("Checkpoint loaded", map[string]interface{}{
		"creator":    cp.Creator,
		"source":     string(cp.Source),
		"cursor":     cp.Cursor,
		"updated_at": cp.UpdatedAt,
	})
	return &cp, nil
}

// Save writes the checkpoint atomically
func (m *Manager) Save(cp *Checkpoint) error {
	if err := m.fs.MkdirAll(m.dir, 0755); err != nil {
		return fmt.Errorf("failed to create checkpoint directory: %w", err)
	}
	cp.UpdatedAt = time.Now()

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	target := m.path(cp.Creator, cp.Source)
	tempPath := target + ".tmp"
	file, err := m.fs.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary checkpoint file: %w", err)
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		m.fs.Remove(tempPath)
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		m.fs.Remove(tempPath)
		return fmt.Errorf("failed to sync checkpoint file: %w", err)
	}
	if err := file.Close(); err != nil {
		m.fs.Remove(tempPath)
		return fmt.Errorf("failed to close checkpoint file: %w", err)
	}
	if err := m.fs.Rename(tempPath, target); err != nil {
		m.fs.Remove(tempPath)
		return fmt.Errorf("failed to replace checkpoint file: %w", err)
	}

	m.logger.DebugWithFields("Checkpoint saved", map[string]interface{}{
		"creator": cp.Creator,
		"source":  string(cp.Source),
		"cursor":  cp.Cursor,
	})
	return nil
}

// Advance records cursor as fully processed and saves
func (m *Manager) Advance(cp *Checkpoint, cursor string) error {
	cp.Cursor = cursor
	cp.Pages++
	return m.Save(cp)
}

// Clear removes the checkpoint of a completed source
func (m *Manager) Clear(creator string, source media.Source) error {
	if err := m.fs.Remove(m.path(creator, source)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	m.logger.DebugWithFields("Checkpoint cleared", map[string]interface{}{
		"creator": creator,
		"source":  string(source),
	})
	return nil
}

// Exists reports whether a checkpoint is stored
func (m *Manager) Exists(creator string, source media.Source) bool {
	ok, err := afero.Exists(m.fs, m.path(creator, source))
	return err == nil && ok
}

// getDataDirectory returns the appropriate data directory for the current OS
func getDataDirectory() (string, error) {
	var dataDir string

	switch runtime.GOOS {
	case "linux":
		if xdgDataHome := os.Getenv("XDG_DATA_HOME"); xdgDataHome != "" {
			dataDir = filepath.Join(xdgDataHome, "fanslydl")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			dataDir = filepath.Join(home, ".local", "share", "fanslydl")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dataDir = filepath.Join(home, "Library", "Application Support", "fanslydl")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		dataDir = filepath.Join(appData, "fanslydl")
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}
	return dataDir, nil
}
