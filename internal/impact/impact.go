// Package impact is the Impact Analyzer (C8, spec.md §4.8): for each
// member of a candidate group, it counts inbound rows across every
// declared foreign key and reports totals sorted descending, letting an
// operator see the blast radius of a merge before executing it.
package impact

import (
	"context"
	"fmt"
	"sort"

	"github.com/Rede-Latitude-Tech/remove-duplicidade-localizacao/internal/domain"
	"github.com/Rede-Latitude-Tech/remove-duplicidade-localizacao/internal/fkmap"
	"github.com/Rede-Latitude-Tech/remove-duplicidade-localizacao/internal/storage"
)

// MemberImpact is one member's per-table reference counts.
type MemberImpact struct {
	MemberID        string
	MemberName      string
	ByTable         []storage.ImpactRow
	TotalReferences int
}

// Analyzer computes reference counts via the host store.
type Analyzer struct {
	host storage.HostStore
}

// New builds an Analyzer.
func New(host storage.HostStore) *Analyzer {
	return &Analyzer{host: host}
}

// Analyze returns one MemberImpact per member id, sorted by
// TotalReferences descending (spec.md §4.8 "Output ordering").
func (a *Analyzer) Analyze(ctx context.Context, kind domain.EntityKind, memberIDs []string) ([]MemberImpact, error) {
	fks := fkmap.ForeignKeysFor(kind)
	out := make([]MemberImpact, 0, len(memberIDs))

	for _, id := range memberIDs {
		name, err := a.host.MemberName(ctx, kind, id)
		if err != nil {
			return nil, fmt.Errorf("impact: member name for %s: %w", id, err)
		}

		mi := MemberImpact{MemberID: id, MemberName: name}
		for _, fk := range fks {
			count, err := a.host.CountReferences(ctx, fk, id)
			if err != nil {
				return nil, fmt.Errorf("impact: count references %s.%s for %s: %w", fk.Table, fk.Column, id, err)
			}
			if count == 0 {
				continue
			}
			mi.ByTable = append(mi.ByTable, storage.ImpactRow{Table: fk.Table, Count: count})
			mi.TotalReferences += count
		}
		out = append(out, mi)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TotalReferences > out[j].TotalReferences
	})
	return out, nil
}
