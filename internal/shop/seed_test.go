package shop

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pps/internal/storage"
)

func TestLoadSeed(t *testing.T) {
	t.Run("embedded items are valid", func(t *testing.T) {
		items, err := DefaultSeed()
		require.NoError(t, err)
		assert.NotEmpty(t, items)
	})

	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"bad category", "items:\n  - {category: 'a.b', release: 0, id: 1, name: x, price: 1}\n", "category"},
		{"id out of range", "items:\n  - {category: a, release: 0, id: 100000, name: x, price: 1}\n", "id out of range"},
		{"free item", "items:\n  - {category: a, release: 0, id: 1, name: x, price: 0}\n", "price"},
		{"duplicate", "items:\n  - {category: a, release: 0, id: 1, name: x, price: 1}\n  - {category: a, release: 0, id: 1, name: y, price: 2}\n", "duplicate"},
		{"unknown field", "items:\n  - {category: a, release: 0, id: 1, name: x, price: 1, color: red}\n", "color"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadSeed(strings.NewReader(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestSeedIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc := New(storage.NewMemory().Items)
	items, err := DefaultSeed()
	require.NoError(t, err)

	added, err := svc.Seed(ctx, items)
	require.NoError(t, err)
	assert.Equal(t, len(items), added)

	added, err = svc.Seed(ctx, items)
	require.NoError(t, err)
	assert.Zero(t, added)

	got, err := svc.Get(ctx, "gear", 0, 1)
	require.NoError(t, err)
	assert.Equal(t, "Compass", got.Name)
	assert.Equal(t, int64(120), got.Price)

	badges, err := svc.ListRelease(ctx, "badges", 0)
	require.NoError(t, err)
	assert.Len(t, badges, 2)
	badges, err = svc.ListRelease(ctx, "badges", 1)
	require.NoError(t, err)
	assert.Len(t, badges, 3)
}
