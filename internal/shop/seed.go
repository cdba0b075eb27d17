package shop

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"pps/internal/keyedstore"
	"pps/internal/storage"
)

//go:embed items.yaml
var defaultItems []byte

// SeedItem is an item with an explicit id, as listed in a shop file.
type SeedItem struct {
	Category    string `yaml:"category"`
	Release     int64  `yaml:"release"`
	ID          int64  `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Price       int64  `yaml:"price"`
}

func (si SeedItem) item() Item {
	return Item{
		Category:    si.Category,
		ReleaseID:   ReleaseID(si.Release, si.ID),
		Name:        si.Name,
		Description: si.Description,
		Price:       si.Price,
	}
}

type seedFile struct {
	Items []SeedItem `yaml:"items"`
}

// LoadSeed parses a YAML shop document and validates every entry.
func LoadSeed(r io.Reader) ([]SeedItem, error) {
	var f seedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode shop items: %w", err)
	}
	seen := make(map[string]struct{}, len(f.Items))
	for i, si := range f.Items {
		if err := ValidateCategory(si.Category); err != nil {
			return nil, fmt.Errorf("shop item %d: %w", i, err)
		}
		switch {
		case si.Release < 0:
			return nil, fmt.Errorf("shop item %d: negative release", i)
		case si.ID < 0 || si.ID >= ReleaseStride:
			return nil, fmt.Errorf("shop item %d: id out of range", i)
		case strings.TrimSpace(si.Name) == "":
			return nil, fmt.Errorf("shop item %d: name is required", i)
		case si.Price <= 0:
			return nil, fmt.Errorf("shop item %d: price must be positive", i)
		}
		key := si.item().PurchaseKey()
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("shop item %s: duplicate", key)
		}
		seen[key] = struct{}{}
	}
	return f.Items, nil
}

// LoadSeedFile reads a shop file from path.
func LoadSeedFile(path string) ([]SeedItem, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open shop items: %w", err)
	}
	defer f.Close()
	return LoadSeed(f)
}

// DefaultSeed returns the items shipped with the binary.
func DefaultSeed() ([]SeedItem, error) {
	return LoadSeed(bytes.NewReader(defaultItems))
}

// Seed writes items that are not stored yet and leaves existing ones as they
// are, so it can run on every start. It returns how many items were added.
func (s *Service) Seed(ctx context.Context, items []SeedItem) (int, error) {
	added := 0
	for _, si := range items {
		it := si.item()
		key := keyedstore.Key{Partition: it.Category, Sort: it.ReleaseID}
		err := s.items.Create(ctx, key, it.toItem(), keyedstore.GuardPartition, keyedstore.GuardSort)
		if errors.Is(err, keyedstore.ErrAlreadyExists) {
			continue
		}
		if err != nil {
			return added, storage.Translate(err, "failed to seed shop item "+it.PurchaseKey())
		}
		added++
	}
	s.logger.InfoContext(ctx, "shop seeded",
		"items", len(items),
		"added", added,
	)
	return added, nil
}
