package domain

import "context"

// Securable types in the three-level namespace hierarchy.
const (
	SecurableCatalog = "catalog"
	SecurableSchema  = "schema"
	SecurableTable   = "table"
)

// Privileges grantable on securables.
const (
	PrivSelect        = "SELECT"
	PrivUsage         = "USAGE"
	PrivModify        = "MODIFY"
	PrivCreate        = "CREATE"
	PrivAllPrivileges = "ALL_PRIVILEGES"
)

// Identity is the result of a successful credential lookup.
type Identity struct {
	Email  string
	UserID string
	Groups []string
}

// IdentityProvider validates a bearer credential and resolves the identity
// behind it. A failed lookup means the credential is invalid.
type IdentityProvider interface {
	Lookup(ctx context.Context, credential string) (*Identity, error)
}

// PrivilegeStore reports the privileges effectively granted to a principal
// on a securable.
type PrivilegeStore interface {
	EffectivePrivileges(ctx context.Context, securableType, qualifiedName, principal string) ([]string, error)
}

// ResourceEnumerator lists child resources of the catalog hierarchy for
// scope aggregation.
type ResourceEnumerator interface {
	ListCatalogs(ctx context.Context) ([]string, error)
	ListSchemas(ctx context.Context, catalog string) ([]string, error)
	ListTables(ctx context.Context, catalog, schema string) ([]string, error)
}

// MetadataStore executes a query against the governed configuration tables
// and returns rows as column-name -> raw value maps. Values arrive as
// strings; typed and JSON columns are decoded by the caller.
type MetadataStore interface {
	Query(ctx context.Context, sql string) ([]map[string]string, error)
}
