// Package fkmap is the declarative registry of inbound foreign-key
// edges per entity kind (spec.md §4.9, §9 "FK-map as declarative data,
// not polymorphism"). Adding a new inbound FK requires only a new entry
// here — the merge/revert/impact engines are entirely table-driven over
// this registry and never branch on entity kind.
package fkmap

import "github.com/Rede-Latitude-Tech/remove-duplicidade-localizacao/internal/domain"

// IDKind is the SQL type an FK column is stored as, which determines how
// the merger casts the absorbed/canonical member id in generated SQL.
type IDKind string

const (
	IDKindUUID IDKind = "uuid"
	IDKindInt  IDKind = "int"
)

// ForeignKey describes one inbound reference to an entity-kind table.
type ForeignKey struct {
	// Table is the referencing table name.
	Table string
	// Column is the FK column on Table pointing at the entity kind's id.
	Column string
	// IDKind is the column's storage type.
	IDKind IDKind
	// PKColumn is the referencing table's primary key column, read back
	// to produce MergeLogEntry.AffectedRowPK. Defaults to "id" when empty.
	PKColumn string
}

// PK returns fk.PKColumn, defaulting to "id".
func (fk ForeignKey) PK() string {
	if fk.PKColumn == "" {
		return "id"
	}
	return fk.PKColumn
}

// EntityTable is the entity kind's own reference-data table, including
// whether it carries a soft-delete `excluded` flag and its parent column
// (empty for City, whose parent scope is the state code column itself).
type EntityTable struct {
	Table          string
	HasExcluded    bool
	ParentColumn   string
	StateColumn    string
}

// entityTables declares each entity kind's own table.
var entityTables = map[domain.EntityKind]EntityTable{
	domain.KindCity:         {Table: "cities", HasExcluded: false, StateColumn: "state_code"},
	domain.KindNeighborhood: {Table: "neighborhoods", HasExcluded: true, ParentColumn: "city_id"},
	domain.KindStreet:       {Table: "streets", HasExcluded: true, ParentColumn: "neighborhood_id"},
	domain.KindCondo:        {Table: "condos", HasExcluded: true, ParentColumn: "street_id"},
}

// EntityTableFor returns the entity-kind's own table descriptor.
func EntityTableFor(kind domain.EntityKind) (EntityTable, bool) {
	t, ok := entityTables[kind]
	return t, ok
}

// registry is the default inbound-FK map for the CRM schema this
// pipeline targets. It is read-only after process start (spec.md §5
// "Shared resources").
var registry = map[domain.EntityKind][]ForeignKey{
	domain.KindCity: {
		{Table: "neighborhoods", Column: "city_id", IDKind: IDKindUUID},
		{Table: "streets", Column: "city_id", IDKind: IDKindUUID},
		{Table: "condos", Column: "city_id", IDKind: IDKindUUID},
		{Table: "addresses", Column: "city_id", IDKind: IDKindUUID},
		{Table: "companies", Column: "city_id", IDKind: IDKindUUID},
		{Table: "leads", Column: "city_id", IDKind: IDKindUUID},
	},
	domain.KindNeighborhood: {
		{Table: "streets", Column: "neighborhood_id", IDKind: IDKindUUID},
		{Table: "condos", Column: "neighborhood_id", IDKind: IDKindUUID},
		{Table: "addresses", Column: "neighborhood_id", IDKind: IDKindUUID},
		{Table: "companies", Column: "neighborhood_id", IDKind: IDKindUUID},
	},
	domain.KindStreet: {
		{Table: "condos", Column: "street_id", IDKind: IDKindUUID},
		{Table: "addresses", Column: "street_id", IDKind: IDKindUUID},
		{Table: "companies", Column: "street_id", IDKind: IDKindUUID},
	},
	domain.KindCondo: {
		{Table: "addresses", Column: "condo_id", IDKind: IDKindUUID},
		{Table: "units", Column: "condo_id", IDKind: IDKindUUID, PKColumn: "unit_id"},
	},
}

// ForeignKeysFor returns the declared inbound foreign keys for kind, or
// nil if kind is unrecognized. The returned slice is shared and must not
// be mutated by callers.
func ForeignKeysFor(kind domain.EntityKind) []ForeignKey {
	return registry[kind]
}

// Registry exposes the full map for callers (e.g. the Impact Analyzer)
// that need to iterate every kind.
func Registry() map[domain.EntityKind][]ForeignKey {
	return registry
}
