package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rede-Latitude-Tech/remove-duplicidade-localizacao/internal/domain"
	"github.com/Rede-Latitude-Tech/remove-duplicidade-localizacao/internal/fkmap"
	"github.com/Rede-Latitude-Tech/remove-duplicidade-localizacao/internal/storage"
)

func TestSimilarPairsScopesByParent(t *testing.T) {
	s := New()
	s.AddEntity(Entity{ID: "n1", Kind: domain.KindNeighborhood, Name: "Jardim America", ParentID: "city-1"})
	s.AddEntity(Entity{ID: "n2", Kind: domain.KindNeighborhood, Name: "Jardim America", ParentID: "city-1"})
	s.AddEntity(Entity{ID: "n3", Kind: domain.KindNeighborhood, Name: "Jardim America", ParentID: "city-2"})

	pairs, err := s.SimilarPairs(context.Background(), domain.KindNeighborhood, 0.5, 10)
	require.NoError(t, err)
	require.Len(t, pairs, 1, "only n1/n2 share a parent scope")
	assert.Equal(t, "n1", pairs[0].IDA)
	assert.Equal(t, "n2", pairs[0].IDB)
	assert.Equal(t, "city-1", pairs[0].ParentID)
}

func TestSimilarPairsExcludesSoftDeleted(t *testing.T) {
	s := New()
	s.AddEntity(Entity{ID: "n1", Kind: domain.KindNeighborhood, Name: "Centro", ParentID: "city-1"})
	s.AddEntity(Entity{ID: "n2", Kind: domain.KindNeighborhood, Name: "Centro", ParentID: "city-1", Excluded: true})

	pairs, err := s.SimilarPairs(context.Background(), domain.KindNeighborhood, 0.5, 10)
	require.NoError(t, err)
	assert.Empty(t, pairs)
}

func TestMemberHierarchyStreet(t *testing.T) {
	s := New()
	s.AddEntity(Entity{ID: "city-1", Kind: domain.KindCity, Name: "Sao Paulo", StateCode: "SP"})
	s.AddEntity(Entity{ID: "nb-1", Kind: domain.KindNeighborhood, Name: "Centro", ParentID: "city-1"})
	s.AddEntity(Entity{ID: "st-1", Kind: domain.KindStreet, Name: "Rua A", ParentID: "nb-1", PostalCode: "01000-000"})

	mc, err := s.MemberHierarchy(context.Background(), domain.KindStreet, "st-1", 5)
	require.NoError(t, err)
	require.NotNil(t, mc.CityName)
	assert.Equal(t, "Sao Paulo", *mc.CityName)
	require.NotNil(t, mc.NeighborhoodName)
	assert.Equal(t, "Centro", *mc.NeighborhoodName)
	require.NotNil(t, mc.StateCode)
	assert.Equal(t, "SP", *mc.StateCode)
	assert.Equal(t, []string{"01000-000"}, mc.PostalCodes)
}

func TestExecuteRedirectsFKsAndSoftDeletes(t *testing.T) {
	s := New()
	s.AddEntity(Entity{ID: "nb-canon", Kind: domain.KindNeighborhood, Name: "Centro"})
	s.AddEntity(Entity{ID: "nb-dup", Kind: domain.KindNeighborhood, Name: "Centro Antigo"})
	s.AddFKRow("streets", "st-1", map[string]string{"neighborhood_id": "nb-dup"})
	s.AddFKRow("addresses", "ad-1", map[string]string{"neighborhood_id": "nb-dup"})

	entries, total, err := s.Execute(context.Background(), domain.KindNeighborhood, "nb-canon", []string{"nb-dup"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, entries, 2)

	v, ok := s.FKValue("streets", "st-1", "neighborhood_id")
	require.True(t, ok)
	assert.Equal(t, "nb-canon", v)

	e, ok := s.Entity(domain.KindNeighborhood, "nb-dup")
	require.True(t, ok)
	assert.True(t, e.Excluded)
}

func TestRevertRestoresOldValuesAndClearsExcluded(t *testing.T) {
	s := New()
	s.AddEntity(Entity{ID: "nb-canon", Kind: domain.KindNeighborhood, Name: "Centro"})
	s.AddEntity(Entity{ID: "nb-dup", Kind: domain.KindNeighborhood, Name: "Centro Antigo"})
	s.AddFKRow("streets", "st-1", map[string]string{"neighborhood_id": "nb-dup"})

	entries, _, err := s.Execute(context.Background(), domain.KindNeighborhood, "nb-canon", []string{"nb-dup"}, nil)
	require.NoError(t, err)

	reverted, err := s.Revert(context.Background(), domain.KindNeighborhood, entries)
	require.NoError(t, err)
	for _, r := range reverted {
		assert.True(t, r.Reverted)
	}

	v, ok := s.FKValue("streets", "st-1", "neighborhood_id")
	require.True(t, ok)
	assert.Equal(t, "nb-dup", v)

	e, ok := s.Entity(domain.KindNeighborhood, "nb-dup")
	require.True(t, ok)
	assert.False(t, e.Excluded)
}

func TestCountReferencesUsesFKMap(t *testing.T) {
	s := New()
	s.AddFKRow("streets", "st-1", map[string]string{"neighborhood_id": "nb-1"})
	s.AddFKRow("streets", "st-2", map[string]string{"neighborhood_id": "nb-1"})
	s.AddFKRow("streets", "st-3", map[string]string{"neighborhood_id": "nb-2"})

	fk := fkmap.ForeignKeysFor(domain.KindNeighborhood)[0]
	n, err := s.CountReferences(context.Background(), fk, "nb-1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	s := New()
	s.AddEntity(Entity{ID: "nb-1", Kind: domain.KindNeighborhood, Name: "Centro"})
	s.AddFKRow("streets", "st-1", map[string]string{"neighborhood_id": "nb-1"})

	boom := errors.New("boom")
	err := s.WithTx(context.Background(), 0, func(ctx context.Context) error {
		_, _, execErr := s.Execute(ctx, domain.KindNeighborhood, "nb-2", []string{"nb-1"}, nil)
		require.NoError(t, execErr)
		return boom
	})
	require.ErrorIs(t, err, boom)

	v, ok := s.FKValue("streets", "st-1", "neighborhood_id")
	require.True(t, ok)
	assert.Equal(t, "nb-1", v, "failed transaction must leave FK rows untouched")
}

func TestListGroupsFilterAndPaginate(t *testing.T) {
	s := New()
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		g := &domain.DuplicateGroup{
			EntityKind:     domain.KindNeighborhood,
			NormalizedName: "centro",
			MemberIDs:      []string{"a", "b"},
			MemberNames:    []string{"Centro", "Centro Velho"},
			Status:         domain.StatusPending,
		}
		require.NoError(t, s.CreateGroup(ctx, g))
	}

	kind := domain.KindNeighborhood
	got, total, err := s.ListGroups(ctx, storage.GroupFilter{Kind: &kind, Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, got, 2)
}
