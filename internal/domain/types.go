// Package domain holds the pipeline's own persisted entities: duplicate
// groups, their per-member context, the merge change log, and detection
// run history. Host-database rows (cities, neighborhoods, streets,
// condominiums) are represented only by their opaque ids and names here —
// the pipeline never owns them, it only rewrites references into them.
package domain

import (
	"encoding/json"
	"time"
)

// EntityKind identifies one of the four reference-data tables the
// pipeline deduplicates.
type EntityKind string

const (
	KindCity          EntityKind = "city"
	KindNeighborhood  EntityKind = "neighborhood"
	KindStreet        EntityKind = "street"
	KindCondo         EntityKind = "condo"
)

// Valid reports whether k is one of the four recognized entity kinds.
func (k EntityKind) Valid() bool {
	switch k {
	case KindCity, KindNeighborhood, KindStreet, KindCondo:
		return true
	}
	return false
}

// GroupStatus is the lifecycle state of a DuplicateGroup (spec.md §3/§4.9).
type GroupStatus string

const (
	StatusPending   GroupStatus = "pending"
	StatusExecuted  GroupStatus = "executed"
	StatusDiscarded GroupStatus = "discarded"
	StatusReverted  GroupStatus = "reverted"
)

// CanTransitionTo reports whether a status change from s to next is a legal
// edge per spec.md §3/§4.9: Pending -> Executed | Discarded; Executed ->
// Reverted; Reverted -> Executed (re-unification).
func (s GroupStatus) CanTransitionTo(next GroupStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusExecuted || next == StatusDiscarded
	case StatusReverted:
		return next == StatusExecuted
	case StatusExecuted:
		return next == StatusReverted
	default:
		return false
	}
}

// GroupSource records how a group's members were established.
type GroupSource string

const (
	SourceTrigram    GroupSource = "trigram"
	SourceTrigramLLM GroupSource = "trigram+llm"
)

// DuplicateGroup is a candidate (or executed/discarded/reverted) cluster
// of host-database rows believed to denote the same real-world place.
// See spec.md §3.
type DuplicateGroup struct {
	ID                 string
	EntityKind         EntityKind
	ParentID           *string
	NormalizedName     string
	MemberIDs          []string
	MemberNames        []string
	MeanScore          float64
	Source             GroupSource
	LLMDetails         json.RawMessage
	CanonicalName      *string
	CanonicalSource    *string
	CanonicalAddress   *string
	SuggestedCanonical *string
	Status             GroupStatus
	ChosenCanonicalID  *string
	ChosenName         *string
	ExecutedAt         *time.Time
	ExecutedBy         *string
	RevertedAt         *time.Time
	DecisionContext    json.RawMessage
	CreatedAt          time.Time
	TotalFKsRedirected *int
}

// MemberCount returns |member_ids|, the invariant quantity that must stay
// >= 2 for a live group (spec.md §3 invariants).
func (g *DuplicateGroup) MemberCount() int { return len(g.MemberIDs) }

// HasMember reports whether id is one of the group's current members.
func (g *DuplicateGroup) HasMember(id string) bool {
	for _, m := range g.MemberIDs {
		if m == id {
			return true
		}
	}
	return false
}

// NameOf returns the original spelling recorded for member id, or "" if
// id is not a member. MemberIDs and MemberNames are parallel slices.
func (g *DuplicateGroup) NameOf(id string) string {
	for i, m := range g.MemberIDs {
		if m == id {
			return g.MemberNames[i]
		}
	}
	return ""
}

// PostalCode is a capped, deduplicated set of postal codes resolved for a
// member's hierarchy (spec.md §4.5(a), capped at K).
type PostalCode = string

// MemberContext is the hierarchy resolved for one (group, member) pair —
// spec.md §3 MemberContext.
type MemberContext struct {
	GroupID         string
	MemberID        string
	CityID          *string
	CityName        *string
	NeighborhoodID  *string
	NeighborhoodName *string
	StreetID        *string
	StreetName      *string
	StateCode       *string
	PostalCodes     []PostalCode
	DescendantCount int
}

// MergeLogEntry is one row-level change applied during a merge, granular
// enough that a revert can restore the exact prior value (spec.md §3).
type MergeLogEntry struct {
	ID                int64
	GroupID           string
	AbsorbedMemberID  string
	Table             string
	Column            string
	AffectedRowPK     string
	OldValue          string
	NewValue          string
	Reverted          bool
	RevertedAt        *time.Time
	ExecutedAt        time.Time
}

// RunStatus is the lifecycle of a detection RunLog.
type RunStatus string

const (
	RunStarted   RunStatus = "started"
	RunCompleted RunStatus = "completed"
	RunErrored   RunStatus = "errored"
)

// RunLog records one detection batch execution (spec.md §3).
type RunLog struct {
	ID            string
	StartedAt     time.Time
	EndedAt       *time.Time
	Status        RunStatus
	TotalAnalyzed int
	TotalGroups   int
	ErrorText     *string
}
