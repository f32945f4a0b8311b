// Package patterns persists named formation patterns as YAML files so a
// custom point set can be replayed across runs.
package patterns

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/picogrid/swarm-nav/pkg/formation"
	"github.com/picogrid/swarm-nav/pkg/geom"
	"gopkg.in/yaml.v3"
)

const fileExt = ".yaml"

var (
	// ErrNotFound is returned when no pattern has the requested name
	ErrNotFound = errors.New("pattern not found")
	// ErrInvalidName is returned for empty names or names with path
	// characters
	ErrInvalidName = errors.New("invalid pattern name")

	validName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)
)

// Pattern is a named set of formation slots
type Pattern struct {
	Name        string          `yaml:"name"`
	Description string          `yaml:"description,omitempty"`
	Shape       formation.Shape `yaml:"shape"`
	Altitude    float64         `yaml:"altitude"`
	Spacing     float64         `yaml:"spacing,omitempty"`
	Positions   []geom.Vector3  `yaml:"positions"`
	CreatedAt   time.Time       `yaml:"created_at"`
}

// FromFormation captures a formation under a name
func FromFormation(name string, f formation.Formation, altitude, spacing float64) Pattern {
	positions := make([]geom.Vector3, len(f.Positions))
	copy(positions, f.Positions)
	return Pattern{
		Name:      name,
		Shape:     f.Shape,
		Altitude:  altitude,
		Spacing:   spacing,
		Positions: positions,
		CreatedAt: time.Now().UTC(),
	}
}

// Formation returns the stored slots as a formation
func (p Pattern) Formation() formation.Formation {
	return formation.Formation{Shape: p.Shape, Positions: p.Positions}.Clone()
}

// Validate checks the name and that the pattern has slots
func (p Pattern) Validate() error {
	if !validName.MatchString(p.Name) {
		return fmt.Errorf("%q: %w", p.Name, ErrInvalidName)
	}
	if len(p.Positions) == 0 {
		return fmt.Errorf("pattern %s has no positions", p.Name)
	}
	return nil
}

// Store keeps one YAML file per pattern in a directory
type Store struct {
	dir string
}

// NewStore opens a pattern directory, creating it if needed
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create pattern directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir is the backing directory
func (s *Store) Dir() string {
	return s.dir
}

// Save writes a pattern, replacing any pattern with the same name
func (s *Store) Save(p Pattern) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	data, err := yaml.Marshal(&p)
	if err != nil {
		return fmt.Errorf("failed to marshal pattern: %w", err)
	}
	if err := os.WriteFile(s.path(p.Name), data, 0644); err != nil {
		return fmt.Errorf("failed to write pattern: %w", err)
	}
	return nil
}

// Load reads a pattern by name
func (s *Store) Load(name string) (Pattern, error) {
	if !validName.MatchString(name) {
		return Pattern{}, fmt.Errorf("%q: %w", name, ErrInvalidName)
	}

	data, err := os.ReadFile(s.path(name))
	if errors.Is(err, os.ErrNotExist) {
		return Pattern{}, fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	if err != nil {
		return Pattern{}, fmt.Errorf("failed to read pattern: %w", err)
	}

	var p Pattern
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Pattern{}, fmt.Errorf("failed to parse pattern %s: %w", name, err)
	}
	if p.Name == "" {
		p.Name = name
	}
	return p, nil
}

// List returns the stored pattern names in order
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list patterns: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != fileExt {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), fileExt))
	}
	sort.Strings(names)
	return names, nil
}

// Delete removes a pattern
func (s *Store) Delete(name string) error {
	if !validName.MatchString(name) {
		return fmt.Errorf("%q: %w", name, ErrInvalidName)
	}
	err := os.Remove(s.path(name))
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	return err
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name+fileExt)
}
