// Package postgres is the pgx/v5-backed implementation of storage.Store,
// targeting a Postgres host database whose pg_trgm extension backs the
// scoped similarity queries in spec.md §4.2. It mirrors the teacher's
// internal/storage/sqlite package's role (the production storage
// backend, tested alongside a pure in-memory double) while trading
// SQLite/database-sql for pgx's pool + context-aware query API, since
// pg_trgm trigram similarity is a Postgres-only feature the spec's
// Detector depends on directly.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/Rede-Latitude-Tech/remove-duplicidade-localizacao/internal/domain"
	"github.com/Rede-Latitude-Tech/remove-duplicidade-localizacao/internal/fkmap"
	"github.com/Rede-Latitude-Tech/remove-duplicidade-localizacao/internal/storage"
)

// dbtx is the subset of *pgxpool.Pool and pgx.Tx this package needs,
// letting every query method run unmodified whether or not it is
// currently inside a Store.WithTx block.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// pool is the slice of *pgxpool.Pool's surface Store depends on. Tests
// substitute github.com/pashagolub/pgxmock/v4's pool mock for this
// interface instead of running against a real database.
type pool interface {
	dbtx
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

// Store implements storage.Store against a pgxpool.Pool.
type Store struct {
	pool pool
	log  *zap.Logger
}

// New wraps pool for use as the pipeline's Store.
func New(p *pgxpool.Pool, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{pool: p, log: log}
}

// newWithPool builds a Store over an arbitrary pool implementation,
// used by this package's tests to inject a pgxmock pool.
func newWithPool(p pool, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{pool: p, log: log}
}

type txKey struct{}

func (s *Store) db(ctx context.Context) dbtx {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return s.pool
}

// WithTx runs fn inside one transaction, committing on success and
// rolling back on error or panic (mirrors the teacher's sqlite
// transaction helpers, adapted to pgx's explicit Begin/Commit/Rollback).
func (s *Store) WithTx(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return wrapDBError("begin tx", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	txCtx := context.WithValue(ctx, txKey{}, tx)
	if err := fn(txCtx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return wrapDBError("commit tx", err)
	}
	return nil
}

// --- HostStore --------------------------------------------------------

func (s *Store) SimilarPairs(ctx context.Context, kind domain.EntityKind, threshold float64, limit int) ([]storage.SimilarPair, error) {
	var q string
	switch kind {
	case domain.KindCity:
		q = `
			SELECT a.id::text, b.id::text, a.name, b.name, a.state_code,
			       similarity(a.name, b.name) AS score
			FROM cities a JOIN cities b
			  ON a.state_code = b.state_code AND a.id < b.id
			WHERE similarity(a.name, b.name) > $1
			ORDER BY score DESC
			LIMIT $2`
	case domain.KindNeighborhood:
		q = `
			SELECT a.id::text, b.id::text, a.name, b.name, a.city_id::text,
			       similarity(a.name, b.name) AS score
			FROM neighborhoods a JOIN neighborhoods b
			  ON a.city_id = b.city_id AND a.id < b.id
			WHERE a.excluded = false AND b.excluded = false
			  AND similarity(a.name, b.name) > $1
			ORDER BY score DESC
			LIMIT $2`
	case domain.KindStreet:
		q = `
			SELECT a.id::text, b.id::text, a.name, b.name, a.neighborhood_id::text,
			       similarity(a.name, b.name) AS score
			FROM streets a JOIN streets b
			  ON a.neighborhood_id = b.neighborhood_id AND a.id < b.id
			WHERE a.excluded = false AND b.excluded = false
			  AND similarity(a.name, b.name) > $1
			ORDER BY score DESC
			LIMIT $2`
	case domain.KindCondo:
		// Condos pair within the same street, but the group's parent_id is
		// the enclosing city (not the street) so the UI groups condo
		// duplicates under the city view.
		q = `
			SELECT a.id::text, b.id::text, a.name, b.name, city.id::text,
			       similarity(a.name, b.name) AS score
			FROM condos a JOIN condos b
			  ON a.street_id = b.street_id AND a.id < b.id
			JOIN streets st ON st.id = a.street_id
			JOIN neighborhoods nb ON nb.id = st.neighborhood_id
			JOIN cities city ON city.id = nb.city_id
			WHERE a.excluded = false AND b.excluded = false
			  AND similarity(a.name, b.name) > $1
			ORDER BY score DESC
			LIMIT $2`
	default:
		return nil, fmt.Errorf("similar pairs: unknown entity kind %q", kind)
	}

	rows, err := s.db(ctx).Query(ctx, q, threshold, limit)
	if err != nil {
		return nil, wrapDBErrorf(err, "similar pairs(%s)", kind)
	}
	defer rows.Close()

	var out []storage.SimilarPair
	for rows.Next() {
		var p storage.SimilarPair
		if err := rows.Scan(&p.IDA, &p.IDB, &p.NameA, &p.NameB, &p.ParentID, &p.Score); err != nil {
			return nil, wrapDBErrorf(err, "scan similar pair(%s)", kind)
		}
		out = append(out, p)
	}
	return out, wrapDBErrorf(rows.Err(), "similar pairs(%s) rows", kind)
}

func (s *Store) MemberHierarchy(ctx context.Context, kind domain.EntityKind, memberID string, capK int) (domain.MemberContext, error) {
	mc := domain.MemberContext{MemberID: memberID}

	switch kind {
	case domain.KindCity:
		row := s.db(ctx).QueryRow(ctx, `SELECT state_code FROM cities WHERE id = $1`, memberID)
		var state string
		if err := row.Scan(&state); err != nil {
			return mc, wrapDBErrorf(err, "member hierarchy(city, %s)", memberID)
		}
		mc.StateCode = &state

	case domain.KindNeighborhood:
		row := s.db(ctx).QueryRow(ctx, `
			SELECT city.id::text, city.name, city.state_code
			FROM neighborhoods nb JOIN cities city ON city.id = nb.city_id
			WHERE nb.id = $1`, memberID)
		var cityID, cityName, state string
		if err := row.Scan(&cityID, &cityName, &state); err != nil {
			return mc, wrapDBErrorf(err, "member hierarchy(neighborhood, %s)", memberID)
		}
		mc.CityID, mc.CityName, mc.StateCode = &cityID, &cityName, &state

		rows, err := s.db(ctx).Query(ctx, `
			SELECT DISTINCT st.postal_code FROM streets st
			WHERE st.neighborhood_id = $1 AND st.postal_code IS NOT NULL AND st.postal_code != ''
			LIMIT $2`, memberID, capK)
		if err != nil {
			return mc, wrapDBErrorf(err, "member hierarchy postal codes(neighborhood, %s)", memberID)
		}
		defer rows.Close()
		for rows.Next() {
			var pc string
			if err := rows.Scan(&pc); err != nil {
				return mc, wrapDBErrorf(err, "scan postal code(neighborhood, %s)", memberID)
			}
			mc.PostalCodes = append(mc.PostalCodes, pc)
		}

	case domain.KindStreet:
		row := s.db(ctx).QueryRow(ctx, `
			SELECT nb.id::text, nb.name, city.id::text, city.name, city.state_code, st.postal_code
			FROM streets st
			JOIN neighborhoods nb ON nb.id = st.neighborhood_id
			JOIN cities city ON city.id = nb.city_id
			WHERE st.id = $1`, memberID)
		var nbID, nbName, cityID, cityName, state string
		var postal *string
		if err := row.Scan(&nbID, &nbName, &cityID, &cityName, &state, &postal); err != nil {
			return mc, wrapDBErrorf(err, "member hierarchy(street, %s)", memberID)
		}
		mc.NeighborhoodID, mc.NeighborhoodName = &nbID, &nbName
		mc.CityID, mc.CityName, mc.StateCode = &cityID, &cityName, &state
		if postal != nil && *postal != "" {
			mc.PostalCodes = []string{*postal}
		}

	case domain.KindCondo:
		row := s.db(ctx).QueryRow(ctx, `
			SELECT st.id::text, st.name, nb.id::text, nb.name, city.id::text, city.name, city.state_code, st.postal_code
			FROM condos c
			JOIN streets st ON st.id = c.street_id
			JOIN neighborhoods nb ON nb.id = st.neighborhood_id
			JOIN cities city ON city.id = nb.city_id
			WHERE c.id = $1`, memberID)
		var stID, stName, nbID, nbName, cityID, cityName, state string
		var postal *string
		if err := row.Scan(&stID, &stName, &nbID, &nbName, &cityID, &cityName, &state, &postal); err != nil {
			return mc, wrapDBErrorf(err, "member hierarchy(condo, %s)", memberID)
		}
		mc.StreetID, mc.StreetName = &stID, &stName
		mc.NeighborhoodID, mc.NeighborhoodName = &nbID, &nbName
		mc.CityID, mc.CityName, mc.StateCode = &cityID, &cityName, &state
		if postal != nil && *postal != "" {
			mc.PostalCodes = []string{*postal}
		}

	default:
		return mc, fmt.Errorf("member hierarchy: unknown entity kind %q", kind)
	}

	return mc, nil
}

func (s *Store) CountReferences(ctx context.Context, fk fkmap.ForeignKey, memberID string) (int, error) {
	q := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s = $1`, fk.Table, fk.Column)
	var n int
	err := s.db(ctx).QueryRow(ctx, q, memberID).Scan(&n)
	return n, wrapDBErrorf(err, "count references(%s.%s)", fk.Table, fk.Column)
}

func (s *Store) MemberName(ctx context.Context, kind domain.EntityKind, memberID string) (string, error) {
	et, ok := fkmap.EntityTableFor(kind)
	if !ok {
		return "", fmt.Errorf("member name: unknown entity kind %q", kind)
	}
	q := fmt.Sprintf(`SELECT name FROM %s WHERE id = $1`, et.Table)
	var name string
	err := s.db(ctx).QueryRow(ctx, q, memberID).Scan(&name)
	return name, wrapDBErrorf(err, "member name(%s, %s)", kind, memberID)
}

// --- MergeExecutor ------------------------------------------------------

func (s *Store) Execute(ctx context.Context, kind domain.EntityKind, canonical string, absorbed []string, newName *string) ([]domain.MergeLogEntry, int, error) {
	et, ok := fkmap.EntityTableFor(kind)
	if !ok {
		return nil, 0, fmt.Errorf("merge execute: unknown entity kind %q", kind)
	}

	now := time.Now()
	var entries []domain.MergeLogEntry

	for _, member := range absorbed {
		for _, fk := range fkmap.ForeignKeysFor(kind) {
			q := fmt.Sprintf(
				`UPDATE %s SET %s = $1 WHERE %s = $2 RETURNING %s::text`,
				fk.Table, fk.Column, fk.Column, fk.PK(),
			)
			rows, err := s.db(ctx).Query(ctx, q, canonical, member)
			if err != nil {
				return nil, 0, wrapDBErrorf(err, "redirect %s.%s", fk.Table, fk.Column)
			}
			for rows.Next() {
				var pk string
				if err := rows.Scan(&pk); err != nil {
					rows.Close()
					return nil, 0, wrapDBErrorf(err, "scan redirected row(%s)", fk.Table)
				}
				entries = append(entries, domain.MergeLogEntry{
					AbsorbedMemberID: member,
					Table:            fk.Table,
					Column:           fk.Column,
					AffectedRowPK:    pk,
					OldValue:         member,
					NewValue:         canonical,
					ExecutedAt:       now,
				})
			}
			rows.Close()
			if err := rows.Err(); err != nil {
				return nil, 0, wrapDBErrorf(err, "redirected rows(%s)", fk.Table)
			}
		}

		if et.HasExcluded {
			q := fmt.Sprintf(`UPDATE %s SET excluded = true WHERE id = $1`, et.Table)
			if _, err := s.db(ctx).Exec(ctx, q, member); err != nil {
				return nil, 0, wrapDBErrorf(err, "soft-delete %s(%s)", et.Table, member)
			}
		}
	}

	if newName != nil {
		q := fmt.Sprintf(`UPDATE %s SET name = $1 WHERE id = $2`, et.Table)
		if _, err := s.db(ctx).Exec(ctx, q, *newName, canonical); err != nil {
			return nil, 0, wrapDBErrorf(err, "rename canonical %s(%s)", et.Table, canonical)
		}
	}

	return entries, len(entries), nil
}

func (s *Store) Revert(ctx context.Context, kind domain.EntityKind, entries []domain.MergeLogEntry) ([]domain.MergeLogEntry, error) {
	et, ok := fkmap.EntityTableFor(kind)
	if !ok {
		return nil, fmt.Errorf("merge revert: unknown entity kind %q", kind)
	}

	absorbedSeen := map[string]bool{}
	reverted := make([]domain.MergeLogEntry, len(entries))
	now := time.Now()

	for i, entry := range entries {
		q := fmt.Sprintf(`UPDATE %s SET %s = $1 WHERE %s::text = $2`, entry.Table, entry.Column, pkColumnOf(kind, entry.Table))
		if _, err := s.db(ctx).Exec(ctx, q, entry.OldValue, entry.AffectedRowPK); err != nil {
			return nil, wrapDBErrorf(err, "revert row(%s, pk=%s)", entry.Table, entry.AffectedRowPK)
		}
		absorbedSeen[entry.AbsorbedMemberID] = true

		entry.Reverted = true
		entry.RevertedAt = &now
		reverted[i] = entry
	}

	if et.HasExcluded {
		for member := range absorbedSeen {
			q := fmt.Sprintf(`UPDATE %s SET excluded = false WHERE id = $1`, et.Table)
			if _, err := s.db(ctx).Exec(ctx, q, member); err != nil {
				return nil, wrapDBErrorf(err, "un-exclude %s(%s)", et.Table, member)
			}
		}
	}

	return reverted, nil
}

// pkColumnOf resolves the primary key column of a referencing table from
// the fk map, so Revert can target the exact row Execute recorded in
// AffectedRowPK without re-deriving it from the table name.
func pkColumnOf(kind domain.EntityKind, table string) string {
	for _, fk := range fkmap.ForeignKeysFor(kind) {
		if fk.Table == table {
			return fk.PK()
		}
	}
	return "id"
}

// --- GroupStore -----------------------------------------------------------

func (s *Store) CreateGroup(ctx context.Context, g *domain.DuplicateGroup) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	if g.Status == "" {
		g.Status = domain.StatusPending
	}
	q := `
		INSERT INTO geodup_groups (
			id, entity_kind, parent_id, normalized_name, member_ids, member_names,
			mean_score, source, llm_details, canonical_name, canonical_source,
			canonical_address, suggested_canonical, status, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,now())`
	_, err := s.db(ctx).Exec(ctx, q,
		g.ID, string(g.EntityKind), g.ParentID, g.NormalizedName, g.MemberIDs, g.MemberNames,
		g.MeanScore, string(g.Source), nullableJSON(g.LLMDetails), g.CanonicalName, g.CanonicalSource,
		g.CanonicalAddress, g.SuggestedCanonical, string(g.Status),
	)
	return wrapDBErrorf(err, "create group(%s)", g.ID)
}

func nullableJSON(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return raw
}

func (s *Store) GetGroup(ctx context.Context, id string) (*domain.DuplicateGroup, error) {
	row := s.db(ctx).QueryRow(ctx, groupSelectColumns+` FROM geodup_groups WHERE id = $1`, id)
	g, err := scanGroup(row)
	if err != nil {
		return nil, wrapDBErrorf(err, "get group(%s)", id)
	}
	return g, nil
}

const groupSelectColumns = `
	SELECT id, entity_kind, parent_id, normalized_name, member_ids, member_names,
	       mean_score, source, llm_details, canonical_name, canonical_source,
	       canonical_address, suggested_canonical, status, chosen_canonical_id,
	       chosen_name, executed_at, executed_by, reverted_at, decision_context,
	       created_at, total_fks_redirected`

func scanGroup(row pgx.Row) (*domain.DuplicateGroup, error) {
	var g domain.DuplicateGroup
	var kind, source, status string
	if err := row.Scan(
		&g.ID, &kind, &g.ParentID, &g.NormalizedName, &g.MemberIDs, &g.MemberNames,
		&g.MeanScore, &source, &g.LLMDetails, &g.CanonicalName, &g.CanonicalSource,
		&g.CanonicalAddress, &g.SuggestedCanonical, &status, &g.ChosenCanonicalID,
		&g.ChosenName, &g.ExecutedAt, &g.ExecutedBy, &g.RevertedAt, &g.DecisionContext,
		&g.CreatedAt, &g.TotalFKsRedirected,
	); err != nil {
		return nil, err
	}
	g.EntityKind = domain.EntityKind(kind)
	g.Source = domain.GroupSource(source)
	g.Status = domain.GroupStatus(status)
	return &g, nil
}

func (s *Store) UpdateGroup(ctx context.Context, g *domain.DuplicateGroup) error {
	q := `
		UPDATE geodup_groups SET
			canonical_name = $2, canonical_source = $3, canonical_address = $4,
			suggested_canonical = $5, status = $6, chosen_canonical_id = $7,
			chosen_name = $8, executed_at = $9, executed_by = $10, reverted_at = $11,
			decision_context = $12, total_fks_redirected = $13
		WHERE id = $1`
	tag, err := s.db(ctx).Exec(ctx, q,
		g.ID, g.CanonicalName, g.CanonicalSource, g.CanonicalAddress,
		g.SuggestedCanonical, string(g.Status), g.ChosenCanonicalID,
		g.ChosenName, g.ExecutedAt, g.ExecutedBy, g.RevertedAt,
		nullableJSON(g.DecisionContext), g.TotalFKsRedirected,
	)
	if err != nil {
		return wrapDBErrorf(err, "update group(%s)", g.ID)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update group(%s): %w", g.ID, storage.ErrNotFound)
	}
	return nil
}

func (s *Store) ListGroups(ctx context.Context, f storage.GroupFilter) ([]*domain.DuplicateGroup, int, error) {
	where := "WHERE 1=1"
	args := []any{}
	n := 0
	arg := func(v any) string {
		n++
		args = append(args, v)
		return fmt.Sprintf("$%d", n)
	}

	if f.Kind != nil {
		where += fmt.Sprintf(" AND entity_kind = %s", arg(string(*f.Kind)))
	}
	if f.Status != nil {
		where += fmt.Sprintf(" AND status = %s", arg(string(*f.Status)))
	}
	if f.ParentID != nil {
		where += fmt.Sprintf(" AND parent_id = %s", arg(*f.ParentID))
	}
	if f.Search != "" {
		where += fmt.Sprintf(" AND normalized_name ILIKE %s", arg("%"+f.Search+"%"))
	}

	var total int
	countQ := "SELECT COUNT(*) FROM geodup_groups " + where
	if err := s.db(ctx).QueryRow(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, 0, wrapDBError("count groups", err)
	}

	listQ := groupSelectColumns + " FROM geodup_groups " + where + " ORDER BY created_at DESC"
	page, size := f.Page, f.PageSize
	if size > 0 {
		if page < 1 {
			page = 1
		}
		listQ += fmt.Sprintf(" LIMIT %s OFFSET %s", arg(size), arg((page-1)*size))
	}

	rows, err := s.db(ctx).Query(ctx, listQ, args...)
	if err != nil {
		return nil, total, wrapDBError("list groups", err)
	}
	defer rows.Close()

	var out []*domain.DuplicateGroup
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, total, wrapDBError("scan group", err)
		}
		out = append(out, g)
	}
	return out, total, wrapDBError("list groups rows", rows.Err())
}

func (s *Store) ExistingMemberIDs(ctx context.Context, kind domain.EntityKind) (map[string]bool, error) {
	q := `
		SELECT member_ids FROM geodup_groups
		WHERE entity_kind = $1 AND status IN ('pending', 'executed')`
	rows, err := s.db(ctx).Query(ctx, q, string(kind))
	if err != nil {
		return nil, wrapDBErrorf(err, "existing members(%s)", kind)
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var ids []string
		if err := rows.Scan(&ids); err != nil {
			return nil, wrapDBErrorf(err, "scan existing members(%s)", kind)
		}
		for _, id := range ids {
			out[id] = true
		}
	}
	return out, wrapDBErrorf(rows.Err(), "existing members(%s) rows", kind)
}

func (s *Store) SaveMergeLog(ctx context.Context, entries []domain.MergeLogEntry) error {
	for _, e := range entries {
		q := `
			INSERT INTO geodup_merge_log
				(group_id, absorbed_member_id, table_name, column_name, affected_row_pk, old_value, new_value, executed_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`
		if _, err := s.db(ctx).Exec(ctx, q, e.GroupID, e.AbsorbedMemberID, e.Table, e.Column, e.AffectedRowPK, e.OldValue, e.NewValue, e.ExecutedAt); err != nil {
			return wrapDBErrorf(err, "save merge log(group=%s)", e.GroupID)
		}
	}
	return nil
}

func (s *Store) MergeLogForGroup(ctx context.Context, groupID string, onlyActive bool) ([]domain.MergeLogEntry, error) {
	q := `
		SELECT id, group_id, absorbed_member_id, table_name, column_name, affected_row_pk,
		       old_value, new_value, reverted, reverted_at, executed_at
		FROM geodup_merge_log WHERE group_id = $1`
	if onlyActive {
		q += " AND reverted = false"
	}
	rows, err := s.db(ctx).Query(ctx, q, groupID)
	if err != nil {
		return nil, wrapDBErrorf(err, "merge log(group=%s)", groupID)
	}
	defer rows.Close()

	var out []domain.MergeLogEntry
	for rows.Next() {
		var e domain.MergeLogEntry
		if err := rows.Scan(&e.ID, &e.GroupID, &e.AbsorbedMemberID, &e.Table, &e.Column,
			&e.AffectedRowPK, &e.OldValue, &e.NewValue, &e.Reverted, &e.RevertedAt, &e.ExecutedAt); err != nil {
			return nil, wrapDBErrorf(err, "scan merge log(group=%s)", groupID)
		}
		out = append(out, e)
	}
	return out, wrapDBErrorf(rows.Err(), "merge log(group=%s) rows", groupID)
}

func (s *Store) MarkLogReverted(ctx context.Context, entries []domain.MergeLogEntry, revertedAt time.Time) error {
	for _, e := range entries {
		q := `UPDATE geodup_merge_log SET reverted = true, reverted_at = $2 WHERE id = $1`
		if _, err := s.db(ctx).Exec(ctx, q, e.ID, revertedAt); err != nil {
			return wrapDBErrorf(err, "mark log reverted(id=%d)", e.ID)
		}
	}
	return nil
}

func (s *Store) SaveMemberContext(ctx context.Context, mc []domain.MemberContext) error {
	for _, c := range mc {
		q := `
			INSERT INTO geodup_member_context
				(group_id, member_id, city_id, city_name, neighborhood_id, neighborhood_name,
				 street_id, street_name, state_code, postal_codes, descendant_count)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
			ON CONFLICT (group_id, member_id) DO UPDATE SET
				city_id = EXCLUDED.city_id, city_name = EXCLUDED.city_name,
				neighborhood_id = EXCLUDED.neighborhood_id, neighborhood_name = EXCLUDED.neighborhood_name,
				street_id = EXCLUDED.street_id, street_name = EXCLUDED.street_name,
				state_code = EXCLUDED.state_code, postal_codes = EXCLUDED.postal_codes,
				descendant_count = EXCLUDED.descendant_count`
		_, err := s.db(ctx).Exec(ctx, q,
			c.GroupID, c.MemberID, c.CityID, c.CityName, c.NeighborhoodID, c.NeighborhoodName,
			c.StreetID, c.StreetName, c.StateCode, c.PostalCodes, c.DescendantCount,
		)
		if err != nil {
			return wrapDBErrorf(err, "save member context(group=%s, member=%s)", c.GroupID, c.MemberID)
		}
	}
	return nil
}

func (s *Store) MemberContextForGroup(ctx context.Context, groupID string) ([]domain.MemberContext, error) {
	q := `
		SELECT group_id, member_id, city_id, city_name, neighborhood_id, neighborhood_name,
		       street_id, street_name, state_code, postal_codes, descendant_count
		FROM geodup_member_context WHERE group_id = $1`
	rows, err := s.db(ctx).Query(ctx, q, groupID)
	if err != nil {
		return nil, wrapDBErrorf(err, "member context(group=%s)", groupID)
	}
	defer rows.Close()

	var out []domain.MemberContext
	for rows.Next() {
		var c domain.MemberContext
		if err := rows.Scan(&c.GroupID, &c.MemberID, &c.CityID, &c.CityName, &c.NeighborhoodID,
			&c.NeighborhoodName, &c.StreetID, &c.StreetName, &c.StateCode, &c.PostalCodes, &c.DescendantCount); err != nil {
			return nil, wrapDBErrorf(err, "scan member context(group=%s)", groupID)
		}
		out = append(out, c)
	}
	return out, wrapDBErrorf(rows.Err(), "member context(group=%s) rows", groupID)
}

func (s *Store) CreateRunLog(ctx context.Context, r *domain.RunLog) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Status == "" {
		r.Status = domain.RunStarted
	}
	q := `
		INSERT INTO geodup_run_log (id, started_at, status, total_analyzed, total_groups)
		VALUES ($1, now(), $2, $3, $4)`
	_, err := s.db(ctx).Exec(ctx, q, r.ID, string(r.Status), r.TotalAnalyzed, r.TotalGroups)
	return wrapDBErrorf(err, "create run log(%s)", r.ID)
}

func (s *Store) UpdateRunLog(ctx context.Context, r *domain.RunLog) error {
	q := `
		UPDATE geodup_run_log SET
			ended_at = $2, status = $3, total_analyzed = $4, total_groups = $5, error_text = $6
		WHERE id = $1`
	tag, err := s.db(ctx).Exec(ctx, q, r.ID, r.EndedAt, string(r.Status), r.TotalAnalyzed, r.TotalGroups, r.ErrorText)
	if err != nil {
		return wrapDBErrorf(err, "update run log(%s)", r.ID)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update run log(%s): %w", r.ID, storage.ErrNotFound)
	}
	return nil
}

func (s *Store) RecentRunLogs(ctx context.Context, limit int) ([]*domain.RunLog, error) {
	q := `
		SELECT id, started_at, ended_at, status, total_analyzed, total_groups, error_text
		FROM geodup_run_log ORDER BY started_at DESC LIMIT $1`
	rows, err := s.db(ctx).Query(ctx, q, limit)
	if err != nil {
		return nil, wrapDBError("recent run logs", err)
	}
	defer rows.Close()

	var out []*domain.RunLog
	for rows.Next() {
		var r domain.RunLog
		var status string
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.EndedAt, &status, &r.TotalAnalyzed, &r.TotalGroups, &r.ErrorText); err != nil {
			return nil, wrapDBError("scan run log", err)
		}
		r.Status = domain.RunStatus(status)
		out = append(out, &r)
	}
	return out, wrapDBError("recent run logs rows", rows.Err())
}

var _ storage.Store = (*Store)(nil)
