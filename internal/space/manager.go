package space

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"danesh/internal/config"
	"danesh/internal/rag/vectorstore"
	"danesh/pkg/logger"
)

// Space-management misuse is surfaced verbatim to the caller.
var (
	ErrNotFound      = errors.New("space not found")
	ErrAlreadyExists = errors.New("space already exists")
	ErrInvalidName   = errors.New("invalid space name")
)

// Settings is the free-form configuration persisted per space. The "enabled"
// key is always present, defaulting to false.
type Settings map[string]interface{}

// Info describes one space for listing.
type Info struct {
	Name     string   `json:"name"`
	Enabled  bool     `json:"enabled"`
	Settings Settings `json:"settings"`
}

// Manager owns the directory layout and lifecycle of tenant spaces. Every
// space is a fully independent resource domain:
//
//	<root>/spaces/<name>/docs/           uploaded documents + media sidecars
//	<root>/spaces/<name>/vectorstore/    index.json, algos/, media_index.json
//	<root>/spaces/<name>/config.json     {"enabled": bool, ...settings}
type Manager struct {
	root string
	log  *logger.Logger
}

// NewManager creates a Manager rooted at the configured spaces directory.
func NewManager(cfg *config.AppConfig, log *logger.Logger) (*Manager, error) {
	root := filepath.Join(cfg.Spaces.Root, "spaces")
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create spaces root: %w", err)
	}
	return &Manager{root: root, log: log}, nil
}

// validateName rejects anything that could escape the spaces directory when
// used as a path component. Space names are opaque identifiers.
func validateName(name string) error {
	if name == "" || name == "." || name == ".." {
		return ErrInvalidName
	}
	if strings.ContainsAny(name, `/\`) || filepath.Base(filepath.Clean(name)) != name {
		return ErrInvalidName
	}
	return nil
}

// Dir returns the directory of a space after validating the name.
func (m *Manager) Dir(name string) (string, error) {
	if err := validateName(name); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return filepath.Join(m.root, name), nil
}

// DocsDir returns the document directory of a space.
func (m *Manager) DocsDir(name string) (string, error) {
	dir, err := m.Dir(name)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "docs"), nil
}

// IndexDir returns the vector index directory of a space.
func (m *Manager) IndexDir(name string) (string, error) {
	dir, err := m.Dir(name)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "vectorstore"), nil
}

// AlgoIndexDir returns the algorithm index directory of a space.
func (m *Manager) AlgoIndexDir(name string) (string, error) {
	dir, err := m.IndexDir(name)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "algos"), nil
}

// MediaIndexPath returns the media sidecar index path of a space.
func (m *Manager) MediaIndexPath(name string) (string, error) {
	dir, err := m.IndexDir(name)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, vectorstore.MediaIndexFileName), nil
}

// Exists reports whether a space directory is present.
func (m *Manager) Exists(name string) bool {
	dir, err := m.Dir(name)
	if err != nil {
		return false
	}
	info, err := os.Stat(dir)
	return err == nil && info.IsDir()
}

// Create builds the directory tree for a new space and writes its settings,
// with enabled defaulting to false. Fails with ErrAlreadyExists if the space
// directory is already present.
func (m *Manager) Create(name string, settings Settings) error {
	dir, err := m.Dir(name)
	if err != nil {
		return err
	}
	if _, err := os.Stat(dir); err == nil {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, name)
	}

	if err := os.MkdirAll(filepath.Join(dir, "docs"), 0o755); err != nil {
		return fmt.Errorf("failed to create space: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "vectorstore"), 0o755); err != nil {
		return fmt.Errorf("failed to create space: %w", err)
	}

	merged := Settings{"enabled": false}
	for k, v := range settings {
		merged[k] = v
	}
	if err := m.writeSettings(dir, merged); err != nil {
		return err
	}

	m.log.WithSpace(name).Info("space created")
	return nil
}

// Update merges new settings into an existing space's config.
func (m *Manager) Update(name string, updates Settings) error {
	dir, err := m.Dir(name)
	if err != nil {
		return err
	}
	current, err := m.readSettings(dir)
	if err != nil {
		return err
	}
	for k, v := range updates {
		current[k] = v
	}
	return m.writeSettings(dir, current)
}

// Delete removes a space and everything it owns. The removal is atomic from
// the caller's point of view: the space directory is first renamed out of
// the spaces tree (so a failure leaves it either fully present or fully
// gone from view), then reclaimed.
func (m *Manager) Delete(name string) error {
	dir, err := m.Dir(name)
	if err != nil {
		return err
	}
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	trash := dir + fmt.Sprintf(".trash-%d", time.Now().UnixNano())
	if err := os.Rename(dir, trash); err != nil {
		return fmt.Errorf("failed to delete space: %w", err)
	}
	if err := os.RemoveAll(trash); err != nil {
		// The space is already invisible; reclamation can be retried later.
		m.log.WithSpace(name).WithError(err).Warn("failed to reclaim deleted space directory")
	}

	m.log.WithSpace(name).Info("space deleted")
	return nil
}

// List returns every space with its persisted settings, in no guaranteed
// order.
func (m *Manager) List() ([]Info, error) {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		return nil, fmt.Errorf("failed to list spaces: %w", err)
	}

	var infos []Info
	for _, e := range entries {
		if !e.IsDir() || validateName(e.Name()) != nil || strings.Contains(e.Name(), ".trash-") {
			continue
		}
		settings, err := m.readSettings(filepath.Join(m.root, e.Name()))
		if err != nil {
			m.log.WithSpace(e.Name()).WithError(err).Warn("skipping space with unreadable config")
			continue
		}
		enabled, _ := settings["enabled"].(bool)
		infos = append(infos, Info{Name: e.Name(), Enabled: enabled, Settings: settings})
	}
	return infos, nil
}

func (m *Manager) writeSettings(dir string, settings Settings) error {
	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode space settings: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.json"), data, 0o644); err != nil {
		return fmt.Errorf("failed to write space settings: %w", err)
	}
	return nil
}

func (m *Manager) readSettings(dir string) (Settings, error) {
	data, err := os.ReadFile(filepath.Join(dir, "config.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, filepath.Base(dir))
		}
		return nil, fmt.Errorf("failed to read space settings: %w", err)
	}
	settings := Settings{}
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("failed to decode space settings: %w", err)
	}
	return settings, nil
}
