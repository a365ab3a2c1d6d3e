package board

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Layout is a named starting position.
type Layout struct {
	ID     string   `yaml:"id"`
	Name   string   `yaml:"name"`
	Radius int      `yaml:"radius"`
	First  Color    `yaml:"first"`
	Black  [][2]int `yaml:"black"`
	White  [][2]int `yaml:"white"`
}

// Validate checks that every stone is on the board and no cell is used twice.
func (l Layout) Validate() error {
	if l.ID == "" {
		return errors.New("layout id must not be empty")
	}
	if l.Radius < 1 {
		return fmt.Errorf("layout %s: radius must be >= 1, got %d", l.ID, l.Radius)
	}
	if len(l.Black) == 0 || len(l.White) == 0 {
		return fmt.Errorf("layout %s: both sides need at least one stone", l.ID)
	}
	b := NewBoard(l.Radius)
	seen := make(map[AxialCoord]bool, len(l.Black)+len(l.White))
	for _, side := range [][][2]int{l.Black, l.White} {
		for _, p := range side {
			c := AxialCoord{Q: p[0], R: p[1]}
			if !b.Contains(c) {
				return fmt.Errorf("layout %s: %v is off the board", l.ID, c)
			}
			if seen[c] {
				return fmt.Errorf("layout %s: %v is used twice", l.ID, c)
			}
			seen[c] = true
		}
	}
	return nil
}

// LayoutSet holds the layouts a server offers.
type LayoutSet struct {
	layouts map[string]Layout
}

// NewLayoutSet validates and indexes layouts by id.
//
// Postcondition: Returns an error on an invalid layout or duplicate id.
func NewLayoutSet(layouts ...Layout) (*LayoutSet, error) {
	s := &LayoutSet{layouts: make(map[string]Layout, len(layouts))}
	for _, l := range layouts {
		if err := l.Validate(); err != nil {
			return nil, err
		}
		if _, dup := s.layouts[l.ID]; dup {
			return nil, fmt.Errorf("duplicate layout id %q", l.ID)
		}
		s.layouts[l.ID] = l
	}
	return s, nil
}

// Get returns the layout with the given id.
func (s *LayoutSet) Get(id string) (Layout, bool) {
	l, ok := s.layouts[id]
	return l, ok
}

// IDs returns all layout ids in sorted order.
func (s *LayoutSet) IDs() []string {
	ids := make([]string, 0, len(s.layouts))
	for id := range s.layouts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// NewGame starts a game from the layout with the given id.
func (s *LayoutSet) NewGame(id, black, white string) (*Game, error) {
	l, ok := s.layouts[id]
	if !ok {
		return nil, fmt.Errorf("unknown layout %q", id)
	}
	return NewGame(l, black, white)
}

// LoadLayoutFromBytes parses and validates a single layout.
func LoadLayoutFromBytes(data []byte) (Layout, error) {
	var l Layout
	if err := yaml.Unmarshal(data, &l); err != nil {
		return Layout{}, fmt.Errorf("parsing layout YAML: %w", err)
	}
	if err := l.Validate(); err != nil {
		return Layout{}, fmt.Errorf("validating layout: %w", err)
	}
	return l, nil
}

// LoadLayoutsFromDir loads every .yaml/.yml file in dir.
//
// Precondition: dir must be a readable directory.
// Postcondition: Returns a LayoutSet or the first error encountered.
func LoadLayoutsFromDir(dir string) (*LayoutSet, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading layouts directory %s: %w", dir, err)
	}
	var layouts []Layout
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !(strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("reading layout %s: %w", name, err)
		}
		l, err := LoadLayoutFromBytes(data)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", name, err)
		}
		layouts = append(layouts, l)
	}
	return NewLayoutSet(layouts...)
}
