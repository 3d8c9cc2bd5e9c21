// Package merge is the Merger (C9, spec.md §4.9): a thin orchestration
// layer over storage.Store that enforces merge preconditions and runs
// the FK-redirect algorithm inside a single bounded transaction.
package merge

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Rede-Latitude-Tech/remove-duplicidade-localizacao/internal/domain"
	"github.com/Rede-Latitude-Tech/remove-duplicidade-localizacao/internal/storage"
)

const defaultTimeout = 30 * time.Second

// Request is the caller-supplied input to a merge (spec.md §4.9).
type Request struct {
	GroupID          string
	ChosenCanonicalID string
	ChosenName       *string
	ExecutedBy       *string
	DecisionContext  json.RawMessage
}

// Merger executes merges against a storage.Store.
type Merger struct {
	store   storage.Store
	timeout time.Duration
}

// New builds a Merger. timeout <= 0 uses the spec default of 30s.
func New(store storage.Store, timeout time.Duration) *Merger {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Merger{store: store, timeout: timeout}
}

// Execute runs the merge described by req. On success, the group passed
// back has status Executed and its execution fields populated.
func (m *Merger) Execute(ctx context.Context, req Request) (*domain.DuplicateGroup, error) {
	var result *domain.DuplicateGroup

	err := m.store.WithTx(ctx, m.timeout, func(ctx context.Context) error {
		g, err := m.store.GetGroup(ctx, req.GroupID)
		if err != nil {
			return fmt.Errorf("merge: load group: %w", err)
		}

		if g.Status != domain.StatusPending && g.Status != domain.StatusReverted {
			return fmt.Errorf("merge: group %s has status %s: %w", g.ID, g.Status, storage.ErrPrecondition)
		}
		if !g.HasMember(req.ChosenCanonicalID) {
			return fmt.Errorf("merge: %w", storage.ErrCanonicalNotMember)
		}

		absorbed := make([]string, 0, len(g.MemberIDs)-1)
		for _, id := range g.MemberIDs {
			if id != req.ChosenCanonicalID {
				absorbed = append(absorbed, id)
			}
		}

		entries, totalRedirected, err := m.store.Execute(ctx, g.EntityKind, req.ChosenCanonicalID, absorbed, req.ChosenName)
		if err != nil {
			return fmt.Errorf("merge: execute: %w", err)
		}
		for i := range entries {
			entries[i].GroupID = g.ID
		}
		if err := m.store.SaveMergeLog(ctx, entries); err != nil {
			return fmt.Errorf("merge: save log: %w", err)
		}

		now := time.Now()
		g.Status = domain.StatusExecuted
		g.ChosenCanonicalID = &req.ChosenCanonicalID
		if req.ChosenName != nil {
			g.ChosenName = req.ChosenName
		}
		g.ExecutedAt = &now
		g.ExecutedBy = req.ExecutedBy
		g.DecisionContext = req.DecisionContext
		total := totalRedirected
		g.TotalFKsRedirected = &total

		if err := m.store.UpdateGroup(ctx, g); err != nil {
			return fmt.Errorf("merge: update group: %w", err)
		}

		result = g
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
