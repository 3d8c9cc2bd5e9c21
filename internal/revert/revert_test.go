package revert

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rede-Latitude-Tech/remove-duplicidade-localizacao/internal/domain"
	"github.com/Rede-Latitude-Tech/remove-duplicidade-localizacao/internal/merge"
	"github.com/Rede-Latitude-Tech/remove-duplicidade-localizacao/internal/storage"
	"github.com/Rede-Latitude-Tech/remove-duplicidade-localizacao/internal/storage/memory"
)

func seedAndMerge(t *testing.T, store *memory.Store) *domain.DuplicateGroup {
	t.Helper()
	store.AddEntity(memory.Entity{ID: "n1", Kind: domain.KindNeighborhood, Name: "Centro", ParentID: "city-1"})
	store.AddEntity(memory.Entity{ID: "n2", Kind: domain.KindNeighborhood, Name: "Centro Velho", ParentID: "city-1"})
	store.AddFKRow("streets", "s1", map[string]string{"neighborhood_id": "n2"})
	store.AddFKRow("addresses", "a1", map[string]string{"neighborhood_id": "n2"})

	ctx := context.Background()
	g := &domain.DuplicateGroup{
		EntityKind:  domain.KindNeighborhood,
		MemberIDs:   []string{"n1", "n2"},
		MemberNames: []string{"Centro", "Centro Velho"},
		Status:      domain.StatusPending,
	}
	require.NoError(t, store.CreateGroup(ctx, g))

	m := merge.New(store, 0)
	got, err := m.Execute(ctx, merge.Request{GroupID: g.ID, ChosenCanonicalID: "n1"})
	require.NoError(t, err)
	return got
}

// S6 from spec.md §8: merge/revert round trip restores prior state.
func TestExecuteRestoresPriorFKValuesAndUnexcludes(t *testing.T) {
	store := memory.New()
	g := seedAndMerge(t, store)

	r := New(store, 0)
	got, err := r.Execute(context.Background(), g.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReverted, got.Status)

	v1, ok1 := store.FKValue("streets", "s1", "neighborhood_id")
	require.True(t, ok1)
	assert.Equal(t, "n2", v1)
	v2, ok2 := store.FKValue("addresses", "a1", "neighborhood_id")
	require.True(t, ok2)
	assert.Equal(t, "n2", v2)

	e, ok := store.Entity(domain.KindNeighborhood, "n2")
	require.True(t, ok)
	assert.False(t, e.Excluded)
}

func TestExecuteRejectsNonExecutedGroup(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	g := &domain.DuplicateGroup{
		EntityKind: domain.KindNeighborhood,
		MemberIDs:  []string{"n1", "n2"},
		Status:     domain.StatusPending,
	}
	require.NoError(t, store.CreateGroup(ctx, g))

	r := New(store, 0)
	_, err := r.Execute(ctx, g.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrPrecondition)
}

func TestExecuteIsNoOpWithoutLogRows(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	g := &domain.DuplicateGroup{
		EntityKind: domain.KindNeighborhood,
		MemberIDs:  []string{"n1", "n2"},
		Status:     domain.StatusExecuted,
	}
	require.NoError(t, store.CreateGroup(ctx, g))

	r := New(store, 0)
	got, err := r.Execute(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusExecuted, got.Status, "no-op must leave status unchanged")
}
