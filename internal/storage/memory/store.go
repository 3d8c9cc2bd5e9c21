// Package memory implements storage.Store entirely in process memory.
// It backs unit tests for every component that depends on storage.Store
// (detect, merge, revert, enrich, impact, pipeline) without a running
// database; the HTTP tests also run against it. It mirrors the role of the teacher's internal/storage/memory
// package (an in-memory Storage double used by tests), rebuilt for this
// domain's entities and FK-redirect semantics instead of issue tracking.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Rede-Latitude-Tech/remove-duplicidade-localizacao/internal/domain"
	"github.com/Rede-Latitude-Tech/remove-duplicidade-localizacao/internal/fkmap"
	"github.com/Rede-Latitude-Tech/remove-duplicidade-localizacao/internal/normalizer"
	"github.com/Rede-Latitude-Tech/remove-duplicidade-localizacao/internal/similarity"
	"github.com/Rede-Latitude-Tech/remove-duplicidade-localizacao/internal/storage"
)

// Entity is one host-database reference row (city/neighborhood/street/condo).
type Entity struct {
	ID         string
	Kind       domain.EntityKind
	Name       string
	ParentID   string // "" for City
	StateCode  string // only meaningful for City
	PostalCode string
	Excluded   bool
}

// fkRow is one row of a referencing table, generic over whatever columns
// the FK map declares.
type fkRow struct {
	pk   string
	cols map[string]string
}

// Store is an in-memory storage.Store.
type Store struct {
	mu sync.Mutex

	entities map[domain.EntityKind]map[string]*Entity
	fkTables map[string][]*fkRow

	groups     map[string]*domain.DuplicateGroup
	memberCtx  map[string][]domain.MemberContext
	mergeLog   map[string][]*domain.MergeLogEntry
	nextLogID  int64
	runLogs    map[string]*domain.RunLog
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		entities:  make(map[domain.EntityKind]map[string]*Entity),
		fkTables:  make(map[string][]*fkRow),
		groups:    make(map[string]*domain.DuplicateGroup),
		memberCtx: make(map[string][]domain.MemberContext),
		mergeLog:  make(map[string][]*domain.MergeLogEntry),
		runLogs:   make(map[string]*domain.RunLog),
	}
}

// --- test/seed helpers ---------------------------------------------------

// AddEntity registers a host-database row.
func (s *Store) AddEntity(e Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entities[e.Kind] == nil {
		s.entities[e.Kind] = make(map[string]*Entity)
	}
	ec := e
	s.entities[e.Kind][e.ID] = &ec
}

// AddFKRow registers one row of a referencing table with the given
// primary key and column values.
func (s *Store) AddFKRow(table, pk string, cols map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fkTables[table] = append(s.fkTables[table], &fkRow{pk: pk, cols: cloneCols(cols)})
}

func cloneCols(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Entity returns the current state of a host row, for test assertions.
func (s *Store) Entity(kind domain.EntityKind, id string) (Entity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entities[kind][id]
	if !ok {
		return Entity{}, false
	}
	return *e, true
}

// FKValue returns the current value of column on the row identified by
// pk in table, for test assertions.
func (s *Store) FKValue(table, pk, column string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.fkTables[table] {
		if r.pk == pk {
			v, ok := r.cols[column]
			return v, ok
		}
	}
	return "", false
}

// --- storage.HostStore ----------------------------------------------------

func (s *Store) SimilarPairs(_ context.Context, kind domain.EntityKind, threshold float64, limit int) ([]storage.SimilarPair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := s.entities[kind]
	ids := make([]string, 0, len(rows))
	for id, e := range rows {
		if e.Excluded {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []storage.SimilarPair
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			a, b := rows[ids[i]], rows[ids[j]]
			parent := scopeOf(kind, a)
			if scopeOf(kind, b) != parent {
				continue
			}
			score := similarity.TrigramLike(normalizer.Fold(a.Name), normalizer.Fold(b.Name))
			if score <= threshold {
				continue
			}
			idA, idB, nameA, nameB := a.ID, b.ID, a.Name, b.Name
			if idA > idB {
				idA, idB = idB, idA
				nameA, nameB = nameB, nameA
			}
			// Condos pair within a street but are labelled with the city.
			label := parent
			if kind == domain.KindCondo {
				label = ""
				if st, ok := s.entities[domain.KindStreet][parent]; ok {
					if nb, ok := s.entities[domain.KindNeighborhood][st.ParentID]; ok {
						label = nb.ParentID
					}
				}
			}
			out = append(out, storage.SimilarPair{
				IDA: idA, IDB: idB, NameA: nameA, NameB: nameB,
				ParentID: label, Score: round2(score),
			})
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func scopeOf(kind domain.EntityKind, e *Entity) string {
	if kind == domain.KindCity {
		return e.StateCode
	}
	return e.ParentID
}

func round2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}

func (s *Store) MemberHierarchy(_ context.Context, kind domain.EntityKind, memberID string, capK int) (domain.MemberContext, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entities[kind][memberID]
	if !ok {
		return domain.MemberContext{}, fmt.Errorf("member hierarchy: %w", storage.ErrNotFound)
	}

	mc := domain.MemberContext{MemberID: memberID}

	switch kind {
	case domain.KindCity:
		sc := e.StateCode
		mc.StateCode = &sc
	case domain.KindNeighborhood:
		if city, ok := s.entities[domain.KindCity][e.ParentID]; ok {
			mc.CityID, mc.CityName = ptr(city.ID), ptr(city.Name)
			mc.StateCode = ptr(city.StateCode)
		}
		mc.PostalCodes = s.postalCodesUnder(domain.KindStreet, "neighborhood_id_proxy", memberID, capK)
	case domain.KindStreet:
		if nb, ok := s.entities[domain.KindNeighborhood][e.ParentID]; ok {
			mc.NeighborhoodID, mc.NeighborhoodName = ptr(nb.ID), ptr(nb.Name)
			if city, ok := s.entities[domain.KindCity][nb.ParentID]; ok {
				mc.CityID, mc.CityName = ptr(city.ID), ptr(city.Name)
				mc.StateCode = ptr(city.StateCode)
			}
		}
		if e.PostalCode != "" {
			mc.PostalCodes = []string{e.PostalCode}
		}
	case domain.KindCondo:
		if st, ok := s.entities[domain.KindStreet][e.ParentID]; ok {
			mc.StreetID, mc.StreetName = ptr(st.ID), ptr(st.Name)
			if nb, ok := s.entities[domain.KindNeighborhood][st.ParentID]; ok {
				mc.NeighborhoodID, mc.NeighborhoodName = ptr(nb.ID), ptr(nb.Name)
				if city, ok := s.entities[domain.KindCity][nb.ParentID]; ok {
					mc.CityID, mc.CityName = ptr(city.ID), ptr(city.Name)
					mc.StateCode = ptr(city.StateCode)
				}
			}
			if st.PostalCode != "" {
				mc.PostalCodes = []string{st.PostalCode}
			}
		}
	}

	return mc, nil
}

// postalCodesUnder collects distinct postal codes of streets under a
// neighborhood, capped at capK. The "proxy" column argument is unused in
// this simplified in-memory model (all streets already carry ParentID
// pointing at their neighborhood); it exists only to keep the call site
// symmetric with the real query this models.
func (s *Store) postalCodesUnder(streetKind domain.EntityKind, _ string, neighborhoodID string, capK int) []string {
	seen := map[string]bool{}
	var out []string
	ids := make([]string, 0, len(s.entities[streetKind]))
	for id := range s.entities[streetKind] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		st := s.entities[streetKind][id]
		if st.ParentID != neighborhoodID || st.PostalCode == "" || seen[st.PostalCode] {
			continue
		}
		seen[st.PostalCode] = true
		out = append(out, st.PostalCode)
		if capK > 0 && len(out) >= capK {
			break
		}
	}
	return out
}

func ptr[T any](v T) *T { return &v }

func (s *Store) CountReferences(_ context.Context, fk fkmap.ForeignKey, memberID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.fkTables[fk.Table] {
		if r.cols[fk.Column] == memberID {
			n++
		}
	}
	return n, nil
}

func (s *Store) MemberName(_ context.Context, kind domain.EntityKind, memberID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entities[kind][memberID]
	if !ok {
		return "", fmt.Errorf("member name: %w", storage.ErrNotFound)
	}
	return e.Name, nil
}

// --- storage.MergeExecutor --------------------------------------------------

func (s *Store) Execute(_ context.Context, kind domain.EntityKind, canonical string, absorbed []string, newName *string) ([]domain.MergeLogEntry, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	et, ok := fkmap.EntityTableFor(kind)
	if !ok {
		return nil, 0, fmt.Errorf("merge execute: unknown entity kind %q", kind)
	}

	var entries []domain.MergeLogEntry
	now := time.Now()

	for _, m := range absorbed {
		for _, fk := range fkmap.ForeignKeysFor(kind) {
			for _, r := range s.fkTables[fk.Table] {
				if r.cols[fk.Column] != m {
					continue
				}
				old := r.cols[fk.Column]
				r.cols[fk.Column] = canonical
				s.nextLogID++
				entries = append(entries, domain.MergeLogEntry{
					ID:               s.nextLogID,
					AbsorbedMemberID: m,
					Table:            fk.Table,
					Column:           fk.Column,
					AffectedRowPK:    r.pk,
					OldValue:         old,
					NewValue:         canonical,
					ExecutedAt:       now,
				})
			}
		}
		if et.HasExcluded {
			if e, ok := s.entities[kind][m]; ok {
				e.Excluded = true
			}
		}
	}

	if newName != nil {
		if e, ok := s.entities[kind][canonical]; ok {
			e.Name = *newName
		}
	}

	return entries, len(entries), nil
}

func (s *Store) Revert(_ context.Context, kind domain.EntityKind, entries []domain.MergeLogEntry) ([]domain.MergeLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	et, _ := fkmap.EntityTableFor(kind)
	reverted := make([]domain.MergeLogEntry, len(entries))
	absorbedSeen := map[string]bool{}

	for i, entry := range entries {
		for _, r := range s.fkTables[entry.Table] {
			if r.pk == entry.AffectedRowPK {
				r.cols[entry.Column] = entry.OldValue
				break
			}
		}
		absorbedSeen[entry.AbsorbedMemberID] = true
		now := time.Now()
		entry.Reverted = true
		entry.RevertedAt = &now
		reverted[i] = entry
	}

	if et.HasExcluded {
		for m := range absorbedSeen {
			if e, ok := s.entities[kind][m]; ok {
				e.Excluded = false
			}
		}
	}

	return reverted, nil
}

// --- storage.GroupStore ----------------------------------------------------

func (s *Store) CreateGroup(_ context.Context, g *domain.DuplicateGroup) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now()
	}
	if g.Status == "" {
		g.Status = domain.StatusPending
	}
	cp := *g
	cp.MemberIDs = append([]string(nil), g.MemberIDs...)
	cp.MemberNames = append([]string(nil), g.MemberNames...)
	s.groups[g.ID] = &cp
	return nil
}

func (s *Store) GetGroup(_ context.Context, id string) (*domain.DuplicateGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[id]
	if !ok {
		return nil, fmt.Errorf("get group %s: %w", id, storage.ErrNotFound)
	}
	cp := *g
	return &cp, nil
}

func (s *Store) UpdateGroup(_ context.Context, g *domain.DuplicateGroup) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[g.ID]; !ok {
		return fmt.Errorf("update group %s: %w", g.ID, storage.ErrNotFound)
	}
	cp := *g
	s.groups[g.ID] = &cp
	return nil
}

func (s *Store) ListGroups(_ context.Context, f storage.GroupFilter) ([]*domain.DuplicateGroup, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []*domain.DuplicateGroup
	ids := make([]string, 0, len(s.groups))
	for id := range s.groups {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		g := s.groups[id]
		if f.Kind != nil && g.EntityKind != *f.Kind {
			continue
		}
		if f.Status != nil && g.Status != *f.Status {
			continue
		}
		if f.ParentID != nil && (g.ParentID == nil || *g.ParentID != *f.ParentID) {
			continue
		}
		if f.Search != "" && !similarity.ContainsFold(g.NormalizedName, f.Search) {
			continue
		}
		cp := *g
		matched = append(matched, &cp)
	}

	total := len(matched)
	page, size := f.Page, f.PageSize
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		return matched, total, nil
	}
	start := (page - 1) * size
	if start >= len(matched) {
		return nil, total, nil
	}
	end := start + size
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (s *Store) ExistingMemberIDs(_ context.Context, kind domain.EntityKind) (map[string]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]bool)
	for _, g := range s.groups {
		if g.EntityKind != kind {
			continue
		}
		if g.Status != domain.StatusPending && g.Status != domain.StatusExecuted {
			continue
		}
		for _, m := range g.MemberIDs {
			out[m] = true
		}
	}
	return out, nil
}

func (s *Store) SaveMergeLog(_ context.Context, entries []domain.MergeLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		ec := e
		s.mergeLog[e.GroupID] = append(s.mergeLog[e.GroupID], &ec)
	}
	return nil
}

func (s *Store) MergeLogForGroup(_ context.Context, groupID string, onlyActive bool) ([]domain.MergeLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.MergeLogEntry
	for _, e := range s.mergeLog[groupID] {
		if onlyActive && e.Reverted {
			continue
		}
		out = append(out, *e)
	}
	return out, nil
}

func (s *Store) MarkLogReverted(_ context.Context, entries []domain.MergeLogEntry, revertedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byID := make(map[int64]bool, len(entries))
	for _, e := range entries {
		byID[e.ID] = true
	}
	for groupID := range s.mergeLog {
		for _, stored := range s.mergeLog[groupID] {
			if byID[stored.ID] {
				stored.Reverted = true
				t := revertedAt
				stored.RevertedAt = &t
			}
		}
	}
	return nil
}

func (s *Store) SaveMemberContext(_ context.Context, mc []domain.MemberContext) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range mc {
		s.memberCtx[c.GroupID] = append(s.memberCtx[c.GroupID], c)
	}
	return nil
}

func (s *Store) MemberContextForGroup(_ context.Context, groupID string) ([]domain.MemberContext, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.MemberContext(nil), s.memberCtx[groupID]...), nil
}

func (s *Store) CreateRunLog(_ context.Context, r *domain.RunLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	cp := *r
	s.runLogs[r.ID] = &cp
	return nil
}

func (s *Store) UpdateRunLog(_ context.Context, r *domain.RunLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runLogs[r.ID]; !ok {
		return fmt.Errorf("update run log %s: %w", r.ID, storage.ErrNotFound)
	}
	cp := *r
	s.runLogs[r.ID] = &cp
	return nil
}

func (s *Store) RecentRunLogs(_ context.Context, limit int) ([]*domain.RunLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.RunLog, 0, len(s.runLogs))
	for _, r := range s.runLogs {
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// WithTx deep-copies the store's entities, FK rows, groups and merge log
// before running fn against the live store, and restores that copy if fn
// returns an error. This gives the
// in-memory store the same all-or-nothing semantics real transactions
// provide (spec.md §4.9 "partial application is not acceptable"),
// without requiring a real database in unit tests.
func (s *Store) WithTx(ctx context.Context, _ time.Duration, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	if err := fn(ctx); err != nil {
		s.mu.Lock()
		s.restoreLocked(snapshot)
		s.mu.Unlock()
		return err
	}
	return nil
}

type txSnapshot struct {
	entities map[domain.EntityKind]map[string]*Entity
	fkTables map[string][]*fkRow
	groups   map[string]*domain.DuplicateGroup
	mergeLog map[string][]*domain.MergeLogEntry
}

func (s *Store) snapshotLocked() txSnapshot {
	snap := txSnapshot{
		entities: make(map[domain.EntityKind]map[string]*Entity, len(s.entities)),
		fkTables: make(map[string][]*fkRow, len(s.fkTables)),
		groups:   make(map[string]*domain.DuplicateGroup, len(s.groups)),
		mergeLog: make(map[string][]*domain.MergeLogEntry, len(s.mergeLog)),
	}
	for kind, rows := range s.entities {
		m := make(map[string]*Entity, len(rows))
		for id, e := range rows {
			ec := *e
			m[id] = &ec
		}
		snap.entities[kind] = m
	}
	for table, rows := range s.fkTables {
		cp := make([]*fkRow, len(rows))
		for i, r := range rows {
			cp[i] = &fkRow{pk: r.pk, cols: cloneCols(r.cols)}
		}
		snap.fkTables[table] = cp
	}
	for id, g := range s.groups {
		cp := *g
		snap.groups[id] = &cp
	}
	for gid, entries := range s.mergeLog {
		cp := make([]*domain.MergeLogEntry, len(entries))
		for i, e := range entries {
			ec := *e
			cp[i] = &ec
		}
		snap.mergeLog[gid] = cp
	}
	return snap
}

func (s *Store) restoreLocked(snap txSnapshot) {
	s.entities = snap.entities
	s.fkTables = snap.fkTables
	s.groups = snap.groups
	s.mergeLog = snap.mergeLog
}

var _ storage.Store = (*Store)(nil)

// NewMemberID generates an opaque host-row id suitable for seeding
// tests; production ids come from the host schema itself.
func NewMemberID(prefix string, n int) string {
	return prefix + "-" + strconv.Itoa(n)
}
