// Package catalog resolves objective ids to their canonical description and
// point value. Lookups are pure reads; a miss is a normal outcome.
package catalog

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"io"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"pps/pkg/domain"
)

//go:embed objectives.yaml
var defaultObjectives []byte

// Entry is a catalog objective. Points is already scaled by the catalog's
// scoring policy.
type Entry struct {
	Description string
	Points      int64
}

// Catalog looks up objectives by (stage, area, subline).
type Catalog interface {
	Lookup(ctx context.Context, stage domain.Stage, area domain.Area, subline string) (Entry, bool, error)
}

// Policy scales base points per stage and area. Missing multipliers are 1.
type Policy struct {
	StageMultipliers map[domain.Stage]float64 `yaml:"stage_multipliers"`
	AreaMultipliers  map[domain.Area]float64  `yaml:"area_multipliers"`
}

// Points applies the multipliers to base, rounding to the nearest integer.
func (p Policy) Points(stage domain.Stage, area domain.Area, base int64) int64 {
	m := 1.0
	if v, ok := p.StageMultipliers[stage]; ok {
		m *= v
	}
	if v, ok := p.AreaMultipliers[area]; ok {
		m *= v
	}
	return int64(math.Round(float64(base) * m))
}

type fileObjective struct {
	Stage       string `yaml:"stage"`
	Area        string `yaml:"area"`
	Subline     string `yaml:"subline"`
	Description string `yaml:"description"`
	Points      int64  `yaml:"points"`
}

type file struct {
	Scoring    Policy          `yaml:"scoring"`
	Objectives []fileObjective `yaml:"objectives"`
}

// Static is an immutable in-memory catalog loaded from YAML.
type Static struct {
	policy  Policy
	entries map[string]fileObjective
}

// Load parses a YAML catalog document.
func Load(r io.Reader) (*Static, error) {
	var f file
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	s := &Static{policy: f.Scoring, entries: make(map[string]fileObjective, len(f.Objectives))}
	for i, o := range f.Objectives {
		id, err := domain.NewObjectiveID(o.Stage, o.Area, o.Subline)
		if err != nil {
			return nil, fmt.Errorf("catalog objective %d: %w", i, err)
		}
		if o.Points < 0 {
			return nil, fmt.Errorf("catalog objective %s: negative points", id)
		}
		if _, dup := s.entries[id.String()]; dup {
			return nil, fmt.Errorf("catalog objective %s: duplicate", id)
		}
		s.entries[id.String()] = o
	}
	return s, nil
}

// LoadFile reads a catalog from path.
func LoadFile(path string) (*Static, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Default returns the catalog shipped with the binary.
func Default() (*Static, error) {
	return Load(bytes.NewReader(defaultObjectives))
}

func (s *Static) Lookup(_ context.Context, stage domain.Stage, area domain.Area, subline string) (Entry, bool, error) {
	o, ok := s.entries[domain.JoinKey(string(stage), string(area), subline)]
	if !ok {
		return Entry{}, false, nil
	}
	return Entry{
		Description: o.Description,
		Points:      s.policy.Points(stage, area, o.Points),
	}, true, nil
}

// Len reports the number of objectives.
func (s *Static) Len() int {
	return len(s.entries)
}
