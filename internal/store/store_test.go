package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/classbell/internal/model"
)

func TestNewStore(t *testing.T) {
	s := NewStore(nil)
	assert.NotNil(t, s)
	assert.Equal(t, 0, s.Count())
}

func TestStore_Add(t *testing.T) {
	s := NewStore(nil)

	o := testOutcome(t, "Maths", model.StateFired, 1)
	require.NoError(t, s.Add(o))
	assert.Equal(t, 1, s.Count())

	// Duplicate IDs are ignored
	require.NoError(t, s.Add(o))
	assert.Equal(t, 1, s.Count())

	got := s.GetByID(o.ID)
	require.NotNil(t, got)
	assert.Equal(t, o, *got)
	assert.Nil(t, s.GetByID("missing"))
}

func TestStore_AllNewestFirst(t *testing.T) {
	s := NewStore(nil)
	require.NoError(t, s.Add(testOutcome(t, "first", model.StateFired, 10)))
	require.NoError(t, s.Add(testOutcome(t, "third", model.StateFired, 30)))
	require.NoError(t, s.Add(testOutcome(t, "second", model.StateFired, 20)))

	all := s.All()
	require.Len(t, all, 3)
	assert.Equal(t, "third", all[0].Entry.Name)
	assert.Equal(t, "second", all[1].Entry.Name)
	assert.Equal(t, "first", all[2].Entry.Name)
}

func TestStore_Filter(t *testing.T) {
	s := NewStore(nil)
	base := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base.Add(time.Hour) }

	require.NoError(t, s.Add(testOutcome(t, "Maths", model.StateFired, 60)))
	require.NoError(t, s.Add(testOutcome(t, "Maths", model.StateAbandoned, 3000)))
	require.NoError(t, s.Add(testOutcome(t, "Art", model.StateFailed, 3500)))

	tests := []struct {
		name string
		opts FilterOptions
		want []string
	}{
		{"all", FilterOptions{}, []string{"Art", "Maths", "Maths"}},
		{"by state", FilterOptions{State: model.StateFailed}, []string{"Art"}},
		{"by name", FilterOptions{Name: "Maths"}, []string{"Maths", "Maths"}},
		{"since", FilterOptions{Since: 15 * time.Minute}, []string{"Art", "Maths"}},
		{"limit", FilterOptions{Limit: 1}, []string{"Art"}},
		{"ascending", FilterOptions{Order: "asc", Limit: 1}, []string{"Maths"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Filter(tt.opts)
			names := make([]string, len(got))
			for i, o := range got {
				names[i] = o.Entry.Name
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestStore_Prune(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.jsonl")
	p, err := NewJSONLPersistence(path)
	require.NoError(t, err)

	s := NewStore(p)
	base := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base.Add(48 * time.Hour) }

	require.NoError(t, s.Add(testOutcome(t, "old1", model.StateFired, 1)))
	require.NoError(t, s.Add(testOutcome(t, "old2", model.StateFired, 2)))
	require.NoError(t, s.Add(testOutcome(t, "recent", model.StateFired, int64(47*time.Hour/time.Second))))

	removed, err := s.Prune(24*time.Hour, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, s.Count())
	require.NoError(t, s.Close())

	// Persisted file reflects the prune
	p2, err := NewJSONLPersistence(path)
	require.NoError(t, err)
	s2 := NewStore(p2)
	defer s2.Close()
	require.NoError(t, s2.Hydrate())
	require.Equal(t, 1, s2.Count())
	assert.Equal(t, "recent", s2.All()[0].Entry.Name)
}

func TestStore_PruneKeepsNewest(t *testing.T) {
	s := NewStore(nil)
	base := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base.Add(365 * 24 * time.Hour) }

	require.NoError(t, s.Add(testOutcome(t, "a", model.StateFired, 1)))
	require.NoError(t, s.Add(testOutcome(t, "b", model.StateFired, 2)))
	require.NoError(t, s.Add(testOutcome(t, "c", model.StateFired, 3)))

	removed, err := s.Prune(time.Hour, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	all := s.All()
	require.Len(t, all, 2)
	assert.Equal(t, "c", all[0].Entry.Name)
	assert.Equal(t, "b", all[1].Entry.Name)
	assert.NotNil(t, s.GetByID(all[1].ID))
}

func TestStoreWithPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.jsonl")

	p, err := NewJSONLPersistence(path)
	require.NoError(t, err)
	s := NewStore(p)
	require.NoError(t, s.Add(testOutcome(t, "a", model.StateFired, 1)))
	require.NoError(t, s.Add(testOutcome(t, "b", model.StateAbandoned, 2)))
	require.NoError(t, s.Close())

	p2, err := NewJSONLPersistence(path)
	require.NoError(t, err)
	s2 := NewStore(p2)
	defer s2.Close()

	require.NoError(t, s2.Hydrate())
	assert.Equal(t, 2, s2.Count())

	// Hydrating twice doesn't duplicate
	require.NoError(t, s2.Hydrate())
	assert.Equal(t, 2, s2.Count())
}

func TestStore_Clear(t *testing.T) {
	s := NewStore(nil)
	require.NoError(t, s.Add(testOutcome(t, "a", model.StateFired, 1)))

	require.NoError(t, s.Clear())
	assert.Equal(t, 0, s.Count())
}

func TestStore_Close(t *testing.T) {
	s := NewStore(nil)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	assert.ErrorIs(t, s.Add(testOutcome(t, "a", model.StateFired, 1)), ErrStoreClosed)
	assert.ErrorIs(t, s.Clear(), ErrStoreClosed)
}
