package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDataAccessScope_ExactMatch(t *testing.T) {
	scope := NewDataAccessScope()
	scope.AccessibleCatalogs.Add("cat")
	scope.AccessibleSchemas.Add("cat.sch")
	scope.AccessibleTables.Add("cat.sch.orders")

	assert.True(t, scope.CanAccessCatalog("cat"))
	assert.False(t, scope.CanAccessCatalog("other"))
	assert.True(t, scope.CanAccessSchema("cat", "sch"))
	assert.False(t, scope.CanAccessSchema("cat", "other"))
	assert.True(t, scope.CanAccessTable("cat", "sch", "orders"))
	assert.False(t, scope.CanAccessTable("cat", "sch", "users"))
}

func TestDataAccessScope_SchemaWildcard(t *testing.T) {
	scope := NewDataAccessScope()
	scope.AccessibleTables.Add("cat.sch.*")

	assert.True(t, scope.CanAccessTable("cat", "sch", "anytable"))
	assert.False(t, scope.CanAccessTable("cat", "other", "x"))
}

func TestDataAccessScope_GlobalWildcards(t *testing.T) {
	scope := NewDataAccessScope()
	scope.AccessibleCatalogs.Add("*")
	scope.AccessibleSchemas.Add("*.*")
	scope.AccessibleTables.Add("*.*.*")

	assert.True(t, scope.CanAccessCatalog("anything"))
	assert.True(t, scope.CanAccessSchema("any", "thing"))
	assert.True(t, scope.CanAccessTable("any", "thing", "at_all"))
}

func TestDataAccessScope_CatalogWildcardForTables(t *testing.T) {
	scope := NewDataAccessScope()
	scope.AccessibleTables.Add("cat.*.*")

	assert.True(t, scope.CanAccessTable("cat", "a", "b"))
	assert.False(t, scope.CanAccessTable("dog", "a", "b"))
}

func TestDataAccessScope_FiltersAndColumns(t *testing.T) {
	scope := NewDataAccessScope()
	scope.RowLevelFilters["cat.sch.orders"] = "region = 'west'"
	scope.RestrictedColumns["cat.sch.orders"] = NewStringSet("ssn", "salary")

	assert.Equal(t, "region = 'west'", scope.RowFilter("cat.sch.orders"))
	assert.Empty(t, scope.RowFilter("cat.sch.users"))
	assert.True(t, scope.ColumnsRestricted("cat.sch.orders").Contains("ssn"))
	assert.Equal(t, AccessNone, scope.Level("cat.sch.orders"))

	scope.AccessLevels["cat"] = AccessRead
	assert.Equal(t, AccessRead, scope.Level("cat"))
}
