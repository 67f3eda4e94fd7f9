package domain

import "fmt"

// AccessLevel describes the strongest capability a user holds on a resource.
type AccessLevel string

const (
	AccessNone  AccessLevel = "none"
	AccessRead  AccessLevel = "read"
	AccessWrite AccessLevel = "write"
	AccessAdmin AccessLevel = "admin"
)

// StringSet is a set of strings with order-irrelevant membership.
type StringSet map[string]struct{}

// NewStringSet builds a set from the given members.
func NewStringSet(members ...string) StringSet {
	s := make(StringSet, len(members))
	for _, m := range members {
		s[m] = struct{}{}
	}
	return s
}

// Add inserts a member.
func (s StringSet) Add(member string) { s[member] = struct{}{} }

// Contains reports membership.
func (s StringSet) Contains(member string) bool {
	_, ok := s[member]
	return ok
}

// DataAccessScope describes which catalog resources and row/column
// restrictions apply to one user. Schemas are qualified "catalog.schema",
// tables "catalog.schema.table". Wildcard entries ("*", "catalog.*",
// "catalog.schema.*") match as prefixes.
//
// Scopes are computed on demand per request and never persisted; callers
// should compute one per logical request and pass it down.
type DataAccessScope struct {
	AccessibleCatalogs StringSet
	AccessibleSchemas  StringSet
	AccessibleTables   StringSet

	// RowLevelFilters maps qualified table name to a SQL boolean expression.
	RowLevelFilters map[string]string

	// RestrictedColumns maps qualified table name to columns that must never
	// be returned.
	RestrictedColumns map[string]StringSet

	// AccessLevels maps qualified resource name to the user's access level.
	AccessLevels map[string]AccessLevel
}

// NewDataAccessScope returns an empty scope with all maps initialised.
func NewDataAccessScope() *DataAccessScope {
	return &DataAccessScope{
		AccessibleCatalogs: NewStringSet(),
		AccessibleSchemas:  NewStringSet(),
		AccessibleTables:   NewStringSet(),
		RowLevelFilters:    map[string]string{},
		RestrictedColumns:  map[string]StringSet{},
		AccessLevels:       map[string]AccessLevel{},
	}
}

// CanAccessCatalog checks exact membership or the global wildcard.
func (s *DataAccessScope) CanAccessCatalog(catalog string) bool {
	return s.AccessibleCatalogs.Contains(catalog) || s.AccessibleCatalogs.Contains("*")
}

// CanAccessSchema checks exact membership, then the catalog wildcard, then
// the global wildcard.
func (s *DataAccessScope) CanAccessSchema(catalog, schema string) bool {
	return s.AccessibleSchemas.Contains(fmt.Sprintf("%s.%s", catalog, schema)) ||
		s.AccessibleSchemas.Contains(catalog+".*") ||
		s.AccessibleSchemas.Contains("*.*")
}

// CanAccessTable checks exact membership, then schema and catalog wildcards,
// then the global wildcard.
func (s *DataAccessScope) CanAccessTable(catalog, schema, table string) bool {
	return s.AccessibleTables.Contains(fmt.Sprintf("%s.%s.%s", catalog, schema, table)) ||
		s.AccessibleTables.Contains(fmt.Sprintf("%s.%s.*", catalog, schema)) ||
		s.AccessibleTables.Contains(catalog+".*.*") ||
		s.AccessibleTables.Contains("*.*.*")
}

// RowFilter returns the row-level filter expression for a qualified table,
// or "" when none applies.
func (s *DataAccessScope) RowFilter(table string) string {
	return s.RowLevelFilters[table]
}

// ColumnsRestricted returns the restricted column set for a qualified table.
func (s *DataAccessScope) ColumnsRestricted(table string) StringSet {
	return s.RestrictedColumns[table]
}

// Level returns the access level recorded for a qualified resource,
// defaulting to AccessNone.
func (s *DataAccessScope) Level(resource string) AccessLevel {
	if lvl, ok := s.AccessLevels[resource]; ok {
		return lvl
	}
	return AccessNone
}
