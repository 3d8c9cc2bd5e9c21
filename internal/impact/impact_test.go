package impact

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rede-Latitude-Tech/remove-duplicidade-localizacao/internal/domain"
	"github.com/Rede-Latitude-Tech/remove-duplicidade-localizacao/internal/storage/memory"
)

func TestAnalyzeSortsByTotalReferencesDescending(t *testing.T) {
	store := memory.New()
	store.AddEntity(memory.Entity{ID: "n1", Kind: domain.KindNeighborhood, Name: "Centro", ParentID: "city-1"})
	store.AddEntity(memory.Entity{ID: "n2", Kind: domain.KindNeighborhood, Name: "Centro Velho", ParentID: "city-1"})

	store.AddFKRow("streets", "s1", map[string]string{"neighborhood_id": "n1"})
	store.AddFKRow("streets", "s2", map[string]string{"neighborhood_id": "n1"})
	store.AddFKRow("addresses", "a1", map[string]string{"neighborhood_id": "n2"})

	a := New(store)
	got, err := a.Analyze(context.Background(), domain.KindNeighborhood, []string{"n2", "n1"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "n1", got[0].MemberID, "n1 has more total references and must sort first")
	assert.Equal(t, 2, got[0].TotalReferences)
	assert.Equal(t, 1, got[1].TotalReferences)
}

func TestAnalyzeOmitsZeroCountTables(t *testing.T) {
	store := memory.New()
	store.AddEntity(memory.Entity{ID: "n1", Kind: domain.KindNeighborhood, Name: "Centro", ParentID: "city-1"})

	a := New(store)
	got, err := a.Analyze(context.Background(), domain.KindNeighborhood, []string{"n1"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Empty(t, got[0].ByTable)
	assert.Equal(t, 0, got[0].TotalReferences)
}
