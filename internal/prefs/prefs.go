// Package prefs persists device-local preferences that are not part of the
// synchronized document.
package prefs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// View selects the active navigation view.
type View string

const (
	ViewDashboard View = "dashboard"
	ViewPlanner   View = "planner"
	ViewTasks     View = "tasks"
	ViewAnalytics View = "analytics"
	ViewSettings  View = "settings"
)

// DefaultView is used when no valid view is stored.
const DefaultView = ViewDashboard

// Views lists every valid view in navigation order.
var Views = []View{ViewDashboard, ViewPlanner, ViewTasks, ViewAnalytics, ViewSettings}

// ErrInvalidView is returned for a view name outside Views.
var ErrInvalidView = errors.New("invalid view")

// Valid reports whether v is one of Views.
func (v View) Valid() bool {
	for _, known := range Views {
		if v == known {
			return true
		}
	}
	return false
}

// ParseView validates s as a view name. Matching is case-insensitive.
func ParseView(s string) (View, error) {
	v := View(strings.ToLower(strings.TrimSpace(s)))
	if !v.Valid() {
		return "", fmt.Errorf("%w: %q (valid: %s)", ErrInvalidView, s, joinViews())
	}
	return v, nil
}

func joinViews() string {
	names := make([]string, len(Views))
	for i, v := range Views {
		names[i] = string(v)
	}
	return strings.Join(names, ", ")
}

// Prefs is the content of the preferences file.
type Prefs struct {
	View View `yaml:"view"`
}

// FileName is the preferences file inside the state directory.
const FileName = "prefs.yaml"

// Store reads and writes the preferences file.
type Store struct {
	path string
}

// NewStore returns a store for <stateDir>/prefs.yaml.
func NewStore(stateDir string) *Store {
	return &Store{path: filepath.Join(stateDir, FileName)}
}

// Path returns the preferences file path.
func (s *Store) Path() string {
	return s.path
}

// Load returns the stored preferences. A missing file yields defaults. A
// stored view that is not valid is replaced by DefaultView. An unreadable
// or malformed file yields defaults along with the error.
func (s *Store) Load() (Prefs, error) {
	p := Prefs{View: DefaultView}

	// #nosec G304 - path is derived from the configured state directory
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return p, nil
	}
	if err != nil {
		return p, fmt.Errorf("failed to read preferences: %w", err)
	}

	var stored Prefs
	if err := yaml.Unmarshal(data, &stored); err != nil {
		return p, fmt.Errorf("failed to parse preferences %s: %w", s.path, err)
	}
	if stored.View.Valid() {
		p.View = stored.View
	}
	return p, nil
}

// View returns the stored view, or DefaultView.
func (s *Store) View() View {
	p, _ := s.Load()
	return p.View
}

// SetView validates and persists v.
func (s *Store) SetView(v View) error {
	if !v.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidView, v)
	}
	p, _ := s.Load()
	p.View = v
	return s.save(p)
}

func (s *Store) save(p Prefs) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal preferences: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
