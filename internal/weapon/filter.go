package weapon

import (
	"fmt"
	"io/fs"
	"strings"

	"gopkg.in/yaml.v3"
)

// Filter returns the weapons whose name contains term, case-insensitively,
// in their original order. An empty term matches everything.
func Filter(weapons []Weapon, term string) []Weapon {
	term = strings.ToLower(strings.TrimSpace(term))
	out := make([]Weapon, 0, len(weapons))
	for _, w := range weapons {
		if term == "" || strings.Contains(strings.ToLower(w.Name), term) {
			out = append(out, w)
		}
	}
	return out
}

// ClassesFile is the resource name of the weapon class table.
const ClassesFile = "classes.yaml"

// Classes groups weapons whose DPS is not comparable with the rest.
type Classes struct {
	Sniper []string `yaml:"sniper"`

	sniper map[string]bool
}

// LoadClasses reads the class table from fsys.
func LoadClasses(fsys fs.FS) (Classes, error) {
	data, err := fs.ReadFile(fsys, ClassesFile)
	if err != nil {
		return Classes{}, fmt.Errorf("weapon: reading %s: %w", ClassesFile, err)
	}
	var c Classes
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Classes{}, fmt.Errorf("weapon: parsing %s: %w", ClassesFile, err)
	}
	return NewClasses(c.Sniper), nil
}

// NewClasses builds a class table from a sniper list.
func NewClasses(sniper []string) Classes {
	c := Classes{Sniper: sniper, sniper: make(map[string]bool, len(sniper))}
	for _, n := range sniper {
		c.sniper[n] = true
	}
	return c
}

// IsSniper reports whether name is a sniper weapon.
func (c Classes) IsSniper(name string) bool {
	return c.sniper[name]
}
