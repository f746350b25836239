package config

import (
	"os"
	"path/filepath"
	"strings"
)

const defaultBaseDir = ".matchchat"

// Paths holds resolved filesystem paths for client data.
type Paths struct {
	Base    string // ~/.matchchat
	Config  string // ~/.matchchat/config.yaml
	Data    string // ~/.matchchat/data
	Session string // ~/.matchchat/data/session.db
}

// ResolvePaths computes all standard paths from the home directory.
// MATCHCHAT_HOME overrides the default base directory.
func ResolvePaths() (Paths, error) {
	base := os.Getenv("MATCHCHAT_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Paths{}, err
		}
		base = filepath.Join(home, defaultBaseDir)
	}

	data := filepath.Join(base, "data")
	return Paths{
		Base:    base,
		Config:  filepath.Join(base, "config.yaml"),
		Data:    data,
		Session: filepath.Join(data, "session.db"),
	}, nil
}

// EnsureDirs creates the base and data directories.
func (p Paths) EnsureDirs() error {
	dirs := []string{p.Base, p.Data}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o700); err != nil {
			return err
		}
	}
	return nil
}

// ParseConfigPath splits a dot-separated config path into segments.
// Returns an error if any segment is empty.
func ParseConfigPath(raw string) ([]string, error) {
	if raw == "" {
		return nil, &ConfigError{Message: "empty config path"}
	}
	parts := strings.Split(raw, ".")
	for _, p := range parts {
		if p == "" {
			return nil, &ConfigError{Message: "config path contains empty segment"}
		}
	}
	return parts, nil
}

// GetValueAtPath traverses a nested map using the given path segments.
func GetValueAtPath(root map[string]any, path []string) (any, bool) {
	parent, ok := walk(root, path, false)
	if !ok {
		return nil, false
	}
	v, ok := parent[path[len(path)-1]]
	return v, ok
}

// SetValueAtPath sets a value, creating or replacing intermediate maps as needed.
func SetValueAtPath(root map[string]any, path []string, value any) {
	parent, _ := walk(root, path, true)
	parent[path[len(path)-1]] = value
}

// UnsetValueAtPath removes the value at path. Returns true if something was removed.
func UnsetValueAtPath(root map[string]any, path []string) bool {
	parent, ok := walk(root, path, false)
	if !ok {
		return false
	}
	last := path[len(path)-1]
	if _, ok := parent[last]; !ok {
		return false
	}
	delete(parent, last)
	return true
}

// walk returns the map holding the final segment of path. With create set,
// missing or non-map intermediates are replaced by empty maps.
func walk(root map[string]any, path []string, create bool) (map[string]any, bool) {
	current := root
	for _, key := range path[:len(path)-1] {
		m, ok := current[key].(map[string]any)
		if !ok {
			if !create {
				return nil, false
			}
			m = map[string]any{}
			current[key] = m
		}
		current = m
	}
	return current, true
}
