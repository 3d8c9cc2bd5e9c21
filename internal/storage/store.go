// Package storage defines the persistence contract the pipeline depends
// on: the host database's reference tables (read for detection and
// context resolution, written only via declared FK redirection and the
// `excluded`/`name` columns) and the pipeline's own four tables
// (DuplicateGroup, MemberContext, MergeLogEntry, RunLog — spec.md §3).
//
// Pipeline tables are prefixed `geodup_` to stay isolated from the host
// schema (spec.md §6 "Persisted state layout").
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/Rede-Latitude-Tech/remove-duplicidade-localizacao/internal/domain"
	"github.com/Rede-Latitude-Tech/remove-duplicidade-localizacao/internal/fkmap"
)

// Sentinel errors, wrapped with operation context via fmt.Errorf("%w", ...)
// at call sites (mirrors the teacher's internal/storage/sqlite/errors.go
// wrapDBError idiom).
var (
	ErrNotFound            = errors.New("not found")
	ErrPrecondition        = errors.New("precondition failed")
	ErrCanonicalNotMember  = errors.New("chosen canonical id is not a group member")
	ErrInvalidTransition   = errors.New("invalid status transition")
)

// SimilarPair is one scored candidate pair emitted by a Detector query
// (spec.md §4.2).
type SimilarPair struct {
	IDA      string
	IDB      string
	NameA    string
	NameB    string
	ParentID string
	Score    float64
}

// GroupFilter narrows a group listing (backs `GET /grupos`, spec.md §6).
type GroupFilter struct {
	Kind     *domain.EntityKind
	Status   *domain.GroupStatus
	ParentID *string
	Search   string // case-insensitive substring of normalized_name; accents are not folded
	Page     int    // 1-based
	PageSize int
}

// ImpactRow is one inbound-FK row count for a member, used by the Impact
// Analyzer (spec.md §4.8).
type ImpactRow struct {
	Table string
	Count int
}

// HostStore is the subset of persistence operations that touch the host
// database's own reference tables (cities/neighborhoods/streets/condos
// and whatever tables the FK map names).
type HostStore interface {
	// SimilarPairs issues the scoped trigram query for kind (spec.md
	// §4.2), returning at most limit pairs scoring above threshold,
	// ordered by score descending. Both members of a pair share a scope:
	// the state code for City, city_id for Neighborhood, neighborhood_id
	// for Street and street_id for Condo. SimilarPair.ParentID carries
	// that scope, except for Condo, where it is the enclosing city id.
	SimilarPairs(ctx context.Context, kind domain.EntityKind, threshold float64, limit int) ([]SimilarPair, error)

	// MemberHierarchy resolves the context fields for kind/memberID per
	// the table in spec.md §4.5(a): parent names/ids, state code, and
	// (for Neighborhood/Street/Condo) postal codes capped at capK.
	MemberHierarchy(ctx context.Context, kind domain.EntityKind, memberID string, capK int) (domain.MemberContext, error)

	// CountReferences issues `SELECT COUNT(*) FROM <table> WHERE <column>
	// = id` for the given foreign key (spec.md §4.8).
	CountReferences(ctx context.Context, fk fkmap.ForeignKey, memberID string) (int, error)

	// MemberName returns the current name of an entity row, used by the
	// Impact Analyzer.
	MemberName(ctx context.Context, kind domain.EntityKind, memberID string) (string, error)
}

// MergeExecutor runs the transactional FK-redirect merge and its
// reversal (spec.md §4.9, §4.10). Neither method opens a transaction of
// its own: the Merger and Reverser call them inside Store.WithTx with the
// configured timeout, so a failure anywhere rolls the whole operation
// back.
type MergeExecutor interface {
	// Execute redirects every inbound FK row from each member of
	// absorbed to canonical, soft-deletes the absorbed rows (when the
	// entity table carries `excluded`), optionally renames the
	// canonical row, and returns the written MergeLogEntry rows plus the
	// total count redirected.
	Execute(ctx context.Context, kind domain.EntityKind, canonical string, absorbed []string, newName *string) ([]domain.MergeLogEntry, int, error)

	// Revert undoes entries (all with Reverted=false, for one group):
	// restores old_value on each affected row, clears `excluded` on absorbed
	// members, and returns the entries with Reverted=true stamped.
	Revert(ctx context.Context, kind domain.EntityKind, entries []domain.MergeLogEntry) ([]domain.MergeLogEntry, error)
}

// GroupStore persists DuplicateGroup, MergeLogEntry and RunLog rows.
type GroupStore interface {
	CreateGroup(ctx context.Context, g *domain.DuplicateGroup) error
	GetGroup(ctx context.Context, id string) (*domain.DuplicateGroup, error)
	UpdateGroup(ctx context.Context, g *domain.DuplicateGroup) error
	ListGroups(ctx context.Context, f GroupFilter) ([]*domain.DuplicateGroup, int, error)
	// ExistingMemberIDs returns the union of member ids across all groups
	// of kind whose status is Pending or Executed (spec.md §4.2
	// pre-cluster de-duplication).
	ExistingMemberIDs(ctx context.Context, kind domain.EntityKind) (map[string]bool, error)

	SaveMergeLog(ctx context.Context, entries []domain.MergeLogEntry) error
	MergeLogForGroup(ctx context.Context, groupID string, onlyActive bool) ([]domain.MergeLogEntry, error)
	MarkLogReverted(ctx context.Context, entries []domain.MergeLogEntry, revertedAt time.Time) error

	SaveMemberContext(ctx context.Context, mc []domain.MemberContext) error
	MemberContextForGroup(ctx context.Context, groupID string) ([]domain.MemberContext, error)

	CreateRunLog(ctx context.Context, r *domain.RunLog) error
	UpdateRunLog(ctx context.Context, r *domain.RunLog) error
	RecentRunLogs(ctx context.Context, limit int) ([]*domain.RunLog, error)
}

// Store is the full persistence surface the pipeline depends on.
type Store interface {
	HostStore
	MergeExecutor
	GroupStore

	// WithTx runs fn inside one host-database transaction with the
	// given timeout, committing on success and rolling back on error or
	// panic. Merger and Reverser use this directly so their multi-step
	// algorithms (spec.md §4.9 steps 1-5, §4.10 steps 1-5) are atomic.
	WithTx(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error
}
