package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rede-Latitude-Tech/remove-duplicidade-localizacao/internal/domain"
	"github.com/Rede-Latitude-Tech/remove-duplicidade-localizacao/internal/storage"
)

// S1 from spec.md §8: variant clustering within one parent scope.
func TestClusterVariantClustering(t *testing.T) {
	pairs := []storage.SimilarPair{
		{IDA: "a", IDB: "b", NameA: "Jardim Aurora", NameB: "Jd Aurora", ParentID: "100", Score: 0.85},
		{IDA: "b", IDB: "c", NameA: "Jd Aurora", NameB: "JARDIM AURORA", ParentID: "100", Score: 0.90},
	}

	groups := Cluster(domain.KindNeighborhood, pairs)
	require.Len(t, groups, 1)
	g := groups[0]
	assert.ElementsMatch(t, []string{"a", "b", "c"}, g.MemberIDs)
	assert.Equal(t, 0.88, g.MeanScore)
	require.NotNil(t, g.ParentID)
	assert.Equal(t, "100", *g.ParentID)
	assert.Equal(t, "aurora", g.NormalizedName)
}

// S2 from spec.md §8: pairs from different parent scopes never merge.
func TestClusterCrossScopeNonMerging(t *testing.T) {
	pairs := []storage.SimilarPair{
		{IDA: "1a", IDB: "1b", NameA: "Centro", NameB: "Centro Histórico", ParentID: "100", Score: 0.70},
		{IDA: "2a", IDB: "2b", NameA: "Centro", NameB: "Centro Histórico", ParentID: "200", Score: 0.70},
	}

	groups := Cluster(domain.KindNeighborhood, pairs)
	require.Len(t, groups, 2)

	parents := map[string]bool{}
	for _, g := range groups {
		require.NotNil(t, g.ParentID)
		parents[*g.ParentID] = true
		assert.Len(t, g.MemberIDs, 2)
	}
	assert.True(t, parents["100"])
	assert.True(t, parents["200"])
}

func TestClusterSinglePairFormsOneGroup(t *testing.T) {
	pairs := []storage.SimilarPair{
		{IDA: "a", IDB: "b", NameA: "X", NameB: "X2", ParentID: "1", Score: 0.5},
	}
	groups := Cluster(domain.KindStreet, pairs)
	require.Len(t, groups, 1)
	assert.Len(t, groups[0].MemberIDs, 2)
}

func TestClusterEmptyInput(t *testing.T) {
	assert.Nil(t, Cluster(domain.KindCity, nil))
}

func TestClusterTransitiveChainAggregatesAllEdgeScores(t *testing.T) {
	// a-b-c-d chain: verifies scores are attributed post-hoc to the final
	// root rather than lost when an intermediate root gets re-parented.
	pairs := []storage.SimilarPair{
		{IDA: "a", IDB: "b", NameA: "X", NameB: "X", ParentID: "1", Score: 1.0},
		{IDA: "c", IDB: "d", NameA: "X", NameB: "X", ParentID: "1", Score: 1.0},
		{IDA: "b", IDB: "c", NameA: "X", NameB: "X", ParentID: "1", Score: 0.5},
	}
	groups := Cluster(domain.KindStreet, pairs)
	require.Len(t, groups, 1)
	assert.ElementsMatch(t, []string{"a", "b", "c", "d"}, groups[0].MemberIDs)
	assert.Equal(t, 0.83, groups[0].MeanScore)
}
