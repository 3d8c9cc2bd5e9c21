// Package cluster turns a detector's scored pairs into candidate
// duplicate groups via weighted union-find with path compression
// (spec.md §4.3), grounded on the address-clustering engine pattern
// used for entity resolution over evidence edges.
package cluster

import (
	"sort"

	"github.com/Rede-Latitude-Tech/remove-duplicidade-localizacao/internal/domain"
	"github.com/Rede-Latitude-Tech/remove-duplicidade-localizacao/internal/normalizer"
	"github.com/Rede-Latitude-Tech/remove-duplicidade-localizacao/internal/storage"
)

// unionFind is a weighted union-find over opaque member ids.
type unionFind struct {
	parent map[string]string
	rank   map[string]int
	order  []string // first-seen discovery order, for deterministic output
}

func newUnionFind() *unionFind {
	return &unionFind{parent: make(map[string]string), rank: make(map[string]int)}
}

func (u *unionFind) find(id string) string {
	if _, ok := u.parent[id]; !ok {
		u.parent[id] = id
		u.rank[id] = 0
		u.order = append(u.order, id)
	}
	if u.parent[id] != id {
		u.parent[id] = u.find(u.parent[id])
	}
	return u.parent[id]
}

func (u *unionFind) union(a, b string) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	switch {
	case u.rank[ra] < u.rank[rb]:
		u.parent[ra] = rb
	case u.rank[ra] > u.rank[rb]:
		u.parent[rb] = ra
	default:
		u.parent[rb] = ra
		u.rank[ra]++
	}
}

// Cluster groups pairs into connected components of size >= 2 and
// builds one candidate DuplicateGroup per component (spec.md §4.3).
// kind selects the FoldWithPrefixes prefix table used for
// normalized_name; pairs must already be scoped to a single parent_id
// per component (the Detector guarantees this except for Condo, whose
// parent_id is a uniformly attached enclosing-scope label).
func Cluster(kind domain.EntityKind, pairs []storage.SimilarPair) []*domain.DuplicateGroup {
	if len(pairs) == 0 {
		return nil
	}

	uf := newUnionFind()
	names := make(map[string]string)
	parents := make(map[string]string)

	for _, p := range pairs {
		uf.union(p.IDA, p.IDB)
		names[p.IDA] = p.NameA
		names[p.IDB] = p.NameB
		parents[p.IDA] = p.ParentID
		parents[p.IDB] = p.ParentID
	}

	// Aggregate edge scores by FINAL root only after every union has been
	// applied — a pair's root at union time can be re-parented by a later
	// union, so scores must be attributed post-hoc, not incrementally.
	scoreSum := make(map[string]float64)
	scoreCount := make(map[string]int)
	for _, p := range pairs {
		root := uf.find(p.IDA)
		scoreSum[root] += p.Score
		scoreCount[root]++
	}

	components := make(map[string][]string)
	for _, id := range uf.order {
		root := uf.find(id)
		components[root] = append(components[root], id)
	}

	var groups []*domain.DuplicateGroup
	// Iterate roots in the order their component first appeared, so
	// output is deterministic for a given input pair order.
	seenRoot := make(map[string]bool)
	var rootOrder []string
	for _, id := range uf.order {
		root := uf.find(id)
		if !seenRoot[root] {
			seenRoot[root] = true
			rootOrder = append(rootOrder, root)
		}
	}

	for _, root := range rootOrder {
		members := components[root]
		if len(members) < 2 {
			continue
		}

		memberNames := make([]string, len(members))
		for i, id := range members {
			memberNames[i] = names[id]
		}

		sum := scoreSum[root]
		count := scoreCount[root]
		mean := 0.0
		if count > 0 {
			mean = round2(sum / float64(count))
		}

		parentID := parents[members[0]]
		g := &domain.DuplicateGroup{
			EntityKind:     kind,
			ParentID:       strPtrOrNil(parentID),
			NormalizedName: normalizer.FoldWithPrefixes(memberNames[0], kind),
			MemberIDs:      members,
			MemberNames:    memberNames,
			MeanScore:      mean,
			Source:         domain.SourceTrigram,
			Status:         domain.StatusPending,
		}
		groups = append(groups, g)
	}

	return groups
}

func strPtrOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func round2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}

// SortPairsByScoreDesc returns a copy of pairs ordered by descending
// score, keeping the input order among equal scores. Cluster does not
// reorder its input: member discovery order follows the order in which
// the pairs are passed to it.
func SortPairsByScoreDesc(pairs []storage.SimilarPair) []storage.SimilarPair {
	out := append([]storage.SimilarPair(nil), pairs...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}
