// Package revert is the Reverser (C10, spec.md §4.10): thin
// orchestration over storage.Store that restores a previously executed
// merge from its change log, inside a single bounded transaction.
package revert

import (
	"context"
	"fmt"
	"time"

	"github.com/Rede-Latitude-Tech/remove-duplicidade-localizacao/internal/domain"
	"github.com/Rede-Latitude-Tech/remove-duplicidade-localizacao/internal/storage"
)

const defaultTimeout = 30 * time.Second

// Reverser undoes merges against a storage.Store.
type Reverser struct {
	store   storage.Store
	timeout time.Duration
}

// New builds a Reverser. timeout <= 0 uses the spec default of 30s.
func New(store storage.Store, timeout time.Duration) *Reverser {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Reverser{store: store, timeout: timeout}
}

// Execute reverts the merge recorded for groupID. If the group has no
// unreverted log rows, this is a no-op returning the group unchanged
// (spec.md §4.10 "If no log rows exist, the call is a no-op").
func (r *Reverser) Execute(ctx context.Context, groupID string) (*domain.DuplicateGroup, error) {
	var result *domain.DuplicateGroup

	err := r.store.WithTx(ctx, r.timeout, func(ctx context.Context) error {
		g, err := r.store.GetGroup(ctx, groupID)
		if err != nil {
			return fmt.Errorf("revert: load group: %w", err)
		}
		if g.Status != domain.StatusExecuted {
			return fmt.Errorf("revert: group %s has status %s: %w", g.ID, g.Status, storage.ErrPrecondition)
		}

		entries, err := r.store.MergeLogForGroup(ctx, groupID, true)
		if err != nil {
			return fmt.Errorf("revert: load log: %w", err)
		}
		if len(entries) == 0 {
			result = g
			return nil
		}

		reverted, err := r.store.Revert(ctx, g.EntityKind, entries)
		if err != nil {
			return fmt.Errorf("revert: apply: %w", err)
		}

		now := time.Now()
		if err := r.store.MarkLogReverted(ctx, reverted, now); err != nil {
			return fmt.Errorf("revert: mark log: %w", err)
		}

		g.Status = domain.StatusReverted
		g.RevertedAt = &now
		if err := r.store.UpdateGroup(ctx, g); err != nil {
			return fmt.Errorf("revert: update group: %w", err)
		}

		result = g
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
