// Package session persists the signed-in identity and a few display
// preferences across restarts. Each value lives in its own JSON file
// under the config directory so preferences restore even without a
// session.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/caixaflow/ledger/internal/domain"
)

// Fixed file names under the store directory.
const (
	profileFile  = "profile.json"
	darkModeFile = "darkmode.json"
	groupsFile   = "balance_groups.json"
)

// Manager reads and writes the session files.
type Manager struct {
	dir string
}

// NewManager creates a manager rooted at dir, creating it if needed.
func NewManager(dir string) (*Manager, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("NewManager: create %s: %w", dir, err)
	}
	return &Manager{dir: dir}, nil
}

// DefaultDir returns the per-user config directory for the ledger.
func DefaultDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("DefaultDir: %w", err)
	}
	return filepath.Join(base, "caixaflow"), nil
}

// SaveProfile persists the signed-in identity.
func (m *Manager) SaveProfile(profile domain.UserProfile) error {
	return m.write(profileFile, profile)
}

// LoadProfile restores the signed-in identity. Returns nil with no
// error when no session is stored.
func (m *Manager) LoadProfile() (*domain.UserProfile, error) {
	var profile domain.UserProfile
	found, err := m.read(profileFile, &profile)
	if err != nil || !found {
		return nil, err
	}
	return &profile, nil
}

// ClearProfile removes the stored session on logout. Preferences stay.
func (m *Manager) ClearProfile() error {
	err := os.Remove(filepath.Join(m.dir, profileFile))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("ClearProfile: %w", err)
	}
	return nil
}

// SaveDarkMode persists the dark-mode preference.
func (m *Manager) SaveDarkMode(enabled bool) error {
	return m.write(darkModeFile, enabled)
}

// LoadDarkMode restores the dark-mode preference, false when unset.
func (m *Manager) LoadDarkMode() (bool, error) {
	var enabled bool
	if _, err := m.read(darkModeFile, &enabled); err != nil {
		return false, err
	}
	return enabled, nil
}

// groupSelections is the stored shape of the two dashboard groups.
type groupSelections struct {
	GroupA []string `json:"groupA"`
	GroupB []string `json:"groupB"`
}

// SaveGroupSelections persists the two dashboard balance-group
// establishment selections.
func (m *Manager) SaveGroupSelections(groupA, groupB []string) error {
	return m.write(groupsFile, groupSelections{GroupA: groupA, GroupB: groupB})
}

// LoadGroupSelections restores the dashboard selections, empty when
// unset.
func (m *Manager) LoadGroupSelections() (groupA, groupB []string, err error) {
	var sel groupSelections
	if _, err := m.read(groupsFile, &sel); err != nil {
		return nil, nil, err
	}
	return sel.GroupA, sel.GroupB, nil
}

func (m *Manager) write(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("session: marshal %s: %w", name, err)
	}
	if err := os.WriteFile(filepath.Join(m.dir, name), data, 0o600); err != nil {
		return fmt.Errorf("session: write %s: %w", name, err)
	}
	return nil
}

// read returns found=false when the file does not exist.
func (m *Manager) read(name string, v any) (bool, error) {
	data, err := os.ReadFile(filepath.Join(m.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("session: read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("session: decode %s: %w", name, err)
	}
	return true, nil
}
