// Package detect issues the scoped trigram-similarity query for one
// entity kind and filters it against already-known groups (spec.md
// §4.2).
package detect

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Rede-Latitude-Tech/remove-duplicidade-localizacao/internal/domain"
	"github.com/Rede-Latitude-Tech/remove-duplicidade-localizacao/internal/storage"
)

// Config bounds one detection pass.
type Config struct {
	Threshold float64 // τ, default 0.4
	Limit     int     // L, default 200
}

// Detector wraps a HostStore + GroupStore pair to produce de-duplicated
// candidate pairs for one entity kind.
type Detector struct {
	host   storage.HostStore
	groups storage.GroupStore
	log    *zap.Logger
}

// New builds a Detector.
func New(host storage.HostStore, groups storage.GroupStore, log *zap.Logger) *Detector {
	if log == nil {
		log = zap.NewNop()
	}
	return &Detector{host: host, groups: groups, log: log}
}

// Run issues the scoped query for kind and drops any pair whose both
// endpoints already belong to an existing Pending or Executed group
// (spec.md §4.2 "pre-cluster de-duplication"). A query failure aborts
// only this kind's pass; the caller is expected to continue with other
// kinds (spec.md §4.2 "Failure semantics").
func (d *Detector) Run(ctx context.Context, kind domain.EntityKind, cfg Config) ([]storage.SimilarPair, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("detect: invalid entity kind %q", kind)
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = 0.4
	}
	if cfg.Limit <= 0 {
		cfg.Limit = 200
	}

	pairs, err := d.host.SimilarPairs(ctx, kind, cfg.Threshold, cfg.Limit)
	if err != nil {
		return nil, fmt.Errorf("detect(%s): %w", kind, err)
	}

	existing, err := d.groups.ExistingMemberIDs(ctx, kind)
	if err != nil {
		d.log.Warn("existing member lookup failed, proceeding without pre-cluster dedup",
			zap.String("kind", string(kind)), zap.Error(err))
		existing = nil
	}

	if len(existing) == 0 {
		return pairs, nil
	}

	out := pairs[:0:0]
	for _, p := range pairs {
		if existing[p.IDA] && existing[p.IDB] {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}
