// Package changelog loads and renders the release notes shipped with wopt.
package changelog

import (
	"fmt"
	"io"
	"io/fs"

	"gopkg.in/yaml.v3"
)

// File is the resource name of the changelog.
const File = "changelog.yaml"

// Entry is one release.
type Entry struct {
	Version string   `yaml:"version"`
	Date    string   `yaml:"date"`
	Changes []string `yaml:"changes"`
	Notes   string   `yaml:"notes,omitempty"`
}

// Load reads the changelog from fsys, oldest release first.
func Load(fsys fs.FS) ([]Entry, error) {
	data, err := fs.ReadFile(fsys, File)
	if err != nil {
		return nil, fmt.Errorf("changelog: reading %s: %w", File, err)
	}
	var entries []Entry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("changelog: parsing %s: %w", File, err)
	}
	for i, e := range entries {
		if e.Version == "" {
			return nil, fmt.Errorf("changelog: entry %d: version is required", i)
		}
	}
	return entries, nil
}

// Render writes entries newest first.
func Render(w io.Writer, entries []Entry) {
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		fmt.Fprintf(w, "Version %s (%s)\n", e.Version, e.Date)
		for _, c := range e.Changes {
			fmt.Fprintf(w, "  - %s\n", c)
		}
		if e.Notes != "" {
			fmt.Fprintf(w, "  Note: %s\n", e.Notes)
		}
		if i > 0 {
			fmt.Fprintln(w)
		}
	}
}
