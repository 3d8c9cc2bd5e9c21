package detect

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rede-Latitude-Tech/remove-duplicidade-localizacao/internal/domain"
	"github.com/Rede-Latitude-Tech/remove-duplicidade-localizacao/internal/storage/memory"
)

func TestRunDropsPairsFullyInExistingGroups(t *testing.T) {
	store := memory.New()
	store.AddEntity(memory.Entity{ID: "n1", Kind: domain.KindNeighborhood, Name: "Centro", ParentID: "city-1"})
	store.AddEntity(memory.Entity{ID: "n2", Kind: domain.KindNeighborhood, Name: "Centro", ParentID: "city-1"})
	store.AddEntity(memory.Entity{ID: "n3", Kind: domain.KindNeighborhood, Name: "Centro", ParentID: "city-1"})

	ctx := context.Background()
	require.NoError(t, store.CreateGroup(ctx, &domain.DuplicateGroup{
		EntityKind: domain.KindNeighborhood,
		MemberIDs:  []string{"n1", "n2"},
		Status:     domain.StatusPending,
	}))

	d := New(store, store, nil)
	pairs, err := d.Run(ctx, domain.KindNeighborhood, Config{Threshold: 0.3, Limit: 200})
	require.NoError(t, err)

	for _, p := range pairs {
		assert.False(t, p.IDA == "n1" && p.IDB == "n2", "pair fully covered by an existing group must be dropped")
	}
}

func TestRunKeepsPairWithOneNewEndpoint(t *testing.T) {
	store := memory.New()
	store.AddEntity(memory.Entity{ID: "n1", Kind: domain.KindNeighborhood, Name: "Centro", ParentID: "city-1"})
	store.AddEntity(memory.Entity{ID: "n2", Kind: domain.KindNeighborhood, Name: "Centro", ParentID: "city-1"})

	ctx := context.Background()
	require.NoError(t, store.CreateGroup(ctx, &domain.DuplicateGroup{
		EntityKind: domain.KindNeighborhood,
		MemberIDs:  []string{"n1"},
		Status:     domain.StatusPending,
	}))

	d := New(store, store, nil)
	pairs, err := d.Run(ctx, domain.KindNeighborhood, Config{Threshold: 0.3, Limit: 200})
	require.NoError(t, err)
	require.Len(t, pairs, 1, "newcomer n2 must still be allowed to attach to n1")
}

func TestRunRejectsInvalidKind(t *testing.T) {
	store := memory.New()
	d := New(store, store, nil)
	_, err := d.Run(context.Background(), domain.EntityKind("bogus"), Config{})
	assert.Error(t, err)
}
