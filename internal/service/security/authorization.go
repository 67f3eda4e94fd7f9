// Package security implements the authorization engine and the query
// authorization pipeline: hierarchical access checks, scope aggregation,
// row-level security injection, and query validation.
package security

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"lakeboard/internal/domain"
)

// tableRefPattern finds FROM/JOIN followed by a dotted identifier of two or
// three segments. This is a best-effort scan, not a SQL parser: it may
// under- or over-match on subqueries, CTEs, or quoted identifiers. Anything
// it does match is access-checked, and unparsed references simply never
// reach execution with elevated rights because checks fail closed.
var tableRefPattern = regexp.MustCompile(`(?i)(?:FROM|JOIN)\s+([a-zA-Z0-9_]+(?:\.[a-zA-Z0-9_]+){1,2})`)

// wherePattern locates the first WHERE keyword for RLS predicate injection.
var wherePattern = regexp.MustCompile(`(?i)\bWHERE\b`)

// Engine answers "can this user do X to resource Y" and builds per-user data
// access scopes.
//
// Permission cache entries never expire automatically: a grant change in the
// underlying catalog takes effect only after an explicit ClearCache or a
// process restart.
type Engine struct {
	privileges domain.PrivilegeStore
	resources  domain.ResourceEnumerator
	audit      domain.AuditSink
	logger     *slog.Logger

	// defaultCatalog qualifies two-part table references.
	defaultCatalog string

	permCache  *lru.Cache[string, bool]
	scopeGroup singleflight.Group
}

// NewEngine creates an authorization engine with its own permission cache.
func NewEngine(
	privileges domain.PrivilegeStore,
	resources domain.ResourceEnumerator,
	audit domain.AuditSink,
	logger *slog.Logger,
	defaultCatalog string,
	permCacheSize int,
) (*Engine, error) {
	if permCacheSize <= 0 {
		permCacheSize = 65536
	}
	permCache, err := lru.New[string, bool](permCacheSize)
	if err != nil {
		return nil, fmt.Errorf("permission cache: %w", err)
	}
	if defaultCatalog == "" {
		defaultCatalog = "hive_metastore"
	}
	return &Engine{
		privileges:     privileges,
		resources:      resources,
		audit:          audit,
		logger:         logger,
		defaultCatalog: defaultCatalog,
		permCache:      permCache,
	}, nil
}

// CheckCatalogAccess reports whether the user holds the privilege on a
// catalog. Admins bypass all lookups.
func (e *Engine) CheckCatalogAccess(ctx context.Context, user *domain.UserContext, catalog, privilege string) bool {
	if user.IsAdmin {
		return true
	}
	return e.checkAccess(ctx, user, domain.SecurableCatalog, catalog, privilege)
}

// CheckSchemaAccess reports whether the user holds the privilege on a
// schema. Schema access first requires USAGE on the parent catalog; when the
// catalog gate fails, the schema-level privilege store is never consulted.
func (e *Engine) CheckSchemaAccess(ctx context.Context, user *domain.UserContext, catalog, schema, privilege string) bool {
	if user.IsAdmin {
		return true
	}
	if !e.CheckCatalogAccess(ctx, user, catalog, domain.PrivUsage) {
		return false
	}
	return e.checkAccess(ctx, user, domain.SecurableSchema, catalog+"."+schema, privilege)
}

// CheckTableAccess reports whether the user holds the privilege on a table,
// gated on USAGE for the parent schema (which is itself gated on the
// catalog).
func (e *Engine) CheckTableAccess(ctx context.Context, user *domain.UserContext, catalog, schema, table, privilege string) bool {
	if user.IsAdmin {
		return true
	}
	if !e.CheckSchemaAccess(ctx, user, catalog, schema, domain.PrivUsage) {
		return false
	}
	return e.checkAccess(ctx, user, domain.SecurableTable,
		fmt.Sprintf("%s.%s.%s", catalog, schema, table), privilege)
}

// checkAccess consults the permission cache, then the privilege store.
// Collaborator failures deny (fail closed). Each resolved decision is
// emitted to the audit sink.
func (e *Engine) checkAccess(ctx context.Context, user *domain.UserContext, securableType, qualifiedName, privilege string) bool {
	cacheKey := fmt.Sprintf("%s:%s:%s", user.Email, qualifiedName, privilege)
	if granted, ok := e.permCache.Get(cacheKey); ok {
		return granted
	}

	granted := false
	privs, err := e.privileges.EffectivePrivileges(ctx, securableType, qualifiedName, user.Email)
	if err != nil {
		e.logger.Warn("permission check failed, denying",
			"user", user.Email, "resource", qualifiedName, "privilege", privilege, "error", err)
	} else {
		for _, p := range privs {
			if p == privilege || p == domain.PrivAllPrivileges {
				granted = true
				break
			}
		}
		// Collaborator errors are not cached; a transient failure should not
		// pin a denial for the rest of the process lifetime.
		e.permCache.Add(cacheKey, granted)
	}

	e.emit(ctx, user, qualifiedName, privilege, granted)
	return granted
}

// GetUserDataScope aggregates the user's full access scope by walking the
// catalog hierarchy. This is O(catalogs x schemas); results should be passed
// down rather than recomputed within a logical request. Concurrent requests
// for the same user share a single walk.
//
// Enumeration failures are logged and the affected subtree omitted: a
// partial scope is preferable to no scope.
func (e *Engine) GetUserDataScope(ctx context.Context, user *domain.UserContext) *domain.DataAccessScope {
	if user.IsAdmin {
		scope := domain.NewDataAccessScope()
		scope.AccessibleCatalogs.Add("*")
		scope.AccessibleSchemas.Add("*.*")
		scope.AccessibleTables.Add("*.*.*")
		scope.AccessLevels["*"] = domain.AccessAdmin
		return scope
	}

	v, _, _ := e.scopeGroup.Do(user.Email, func() (interface{}, error) {
		return e.buildScope(ctx, user), nil
	})
	return v.(*domain.DataAccessScope)
}

func (e *Engine) buildScope(ctx context.Context, user *domain.UserContext) *domain.DataAccessScope {
	scope := domain.NewDataAccessScope()

	catalogs, err := e.resources.ListCatalogs(ctx)
	if err != nil {
		e.logger.Warn("could not list catalogs for scope", "user", user.Email, "error", err)
		return scope
	}

	for _, catalog := range catalogs {
		if !e.CheckCatalogAccess(ctx, user, catalog, domain.PrivUsage) {
			continue
		}
		scope.AccessibleCatalogs.Add(catalog)
		scope.AccessLevels[catalog] = domain.AccessRead

		schemas, err := e.resources.ListSchemas(ctx, catalog)
		if err != nil {
			e.logger.Debug("could not list schemas", "catalog", catalog, "error", err)
			continue
		}
		for _, schema := range schemas {
			if e.CheckSchemaAccess(ctx, user, catalog, schema, domain.PrivUsage) {
				qualified := catalog + "." + schema
				scope.AccessibleSchemas.Add(qualified)
				scope.AccessLevels[qualified] = domain.AccessRead
			}
		}
	}

	return scope
}

// InjectRowLevelSecurity rewrites the statement with row-level security
// predicates. Admins pass through unchanged.
//
// When no per-table filters are supplied, a default identity predicate is
// combined with an existing WHERE clause. Statements without a WHERE clause
// are returned unchanged: without a statement-structure-aware rewrite there
// is no uniformly safe insertion point, so predicates are only anchored to an
// existing clause.
func (e *Engine) InjectRowLevelSecurity(sql string, user *domain.UserContext, tableFilters map[string]string) string {
	if user.IsAdmin {
		return sql
	}

	if len(tableFilters) == 0 {
		predicate := fmt.Sprintf("current_user() = '%s'", user.Email)
		return andIntoWhere(sql, predicate)
	}

	rewritten := sql
	for _, ref := range ExtractTableReferences(sql) {
		if filter, ok := tableFilters[ref]; ok && filter != "" {
			rewritten = andIntoWhere(rewritten, filter)
		}
	}
	return rewritten
}

// andIntoWhere combines the predicate with the first WHERE clause via AND,
// or returns the statement unchanged when it has no WHERE clause.
func andIntoWhere(sql, predicate string) string {
	loc := wherePattern.FindStringIndex(sql)
	if loc == nil {
		return sql
	}
	return sql[:loc[1]] + " " + predicate + " AND" + sql[loc[1]:]
}

// ValidateQueryPermissions extracts table references and checks SELECT on
// each. The first denied reference aborts validation with a reason naming
// the resource. Admins always pass.
func (e *Engine) ValidateQueryPermissions(ctx context.Context, sql string, user *domain.UserContext) (bool, string) {
	if user.IsAdmin {
		return true, ""
	}

	for _, ref := range ExtractTableReferences(sql) {
		parts := strings.Split(ref, ".")
		var catalog, schema, table string
		switch len(parts) {
		case 3:
			catalog, schema, table = parts[0], parts[1], parts[2]
		case 2:
			catalog, schema, table = e.defaultCatalog, parts[0], parts[1]
		default:
			continue
		}
		if !e.CheckTableAccess(ctx, user, catalog, schema, table, domain.PrivSelect) {
			return false, fmt.Sprintf("Access denied to table %s", ref)
		}
	}

	return true, ""
}

// ExtractTableReferences scans for FROM/JOIN references with two or three
// dotted segments. Best-effort; see tableRefPattern.
func ExtractTableReferences(sql string) []string {
	matches := tableRefPattern.FindAllStringSubmatch(sql, -1)
	refs := make([]string, 0, len(matches))
	for _, m := range matches {
		refs = append(refs, m[1])
	}
	return refs
}

// ClearCache drops all permission cache entries immediately.
func (e *Engine) ClearCache() {
	e.permCache.Purge()
}

// ClearUserCache drops cached permissions for one user.
func (e *Engine) ClearUserCache(email string) {
	prefix := email + ":"
	for _, key := range e.permCache.Keys() {
		if strings.HasPrefix(key, prefix) {
			e.permCache.Remove(key)
		}
	}
}

// emit sends one authorization decision to the audit sink.
func (e *Engine) emit(ctx context.Context, user *domain.UserContext, resource, action string, granted bool) {
	if e.audit == nil {
		return
	}
	e.audit.Record(ctx, domain.AccessEvent{
		UserEmail: user.Email,
		UserID:    user.UserID,
		Resource:  resource,
		Action:    action,
		Granted:   granted,
		Groups:    user.Groups,
	})
}
