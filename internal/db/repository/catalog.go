package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// CatalogRepo implements domain.ResourceEnumerator on the catalog hierarchy
// tables.
type CatalogRepo struct {
	db *sql.DB
}

func NewCatalogRepo(db *sql.DB) *CatalogRepo {
	return &CatalogRepo{db: db}
}

func (r *CatalogRepo) ListCatalogs(ctx context.Context) ([]string, error) {
	return r.listNames(ctx, `SELECT name FROM catalogs ORDER BY name`)
}

func (r *CatalogRepo) ListSchemas(ctx context.Context, catalog string) ([]string, error) {
	return r.listNames(ctx, `SELECT name FROM schemas WHERE catalog_name = ? ORDER BY name`, catalog)
}

func (r *CatalogRepo) ListTables(ctx context.Context, catalog, schema string) ([]string, error) {
	return r.listNames(ctx,
		`SELECT name FROM tables WHERE catalog_name = ? AND schema_name = ? ORDER BY name`,
		catalog, schema)
}

func (r *CatalogRepo) listNames(ctx context.Context, query string, args ...interface{}) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list resources: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("scan resource name: %w", err)
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// CreateCatalog registers a catalog. Idempotent.
func (r *CatalogRepo) CreateCatalog(ctx context.Context, name string) error {
	_, err := r.db.ExecContext(ctx, `INSERT OR IGNORE INTO catalogs (name) VALUES (?)`, name)
	if err != nil {
		return fmt.Errorf("create catalog %q: %w", name, err)
	}
	return nil
}

// CreateSchema registers a schema under a catalog. Idempotent.
func (r *CatalogRepo) CreateSchema(ctx context.Context, catalog, name string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO schemas (catalog_name, name) VALUES (?, ?)`, catalog, name)
	if err != nil {
		return fmt.Errorf("create schema %q.%q: %w", catalog, name, err)
	}
	return nil
}

// CreateTable registers a table under a schema. Idempotent.
func (r *CatalogRepo) CreateTable(ctx context.Context, catalog, schema, name string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO tables (catalog_name, schema_name, name) VALUES (?, ?, ?)`,
		catalog, schema, name)
	if err != nil {
		return fmt.Errorf("create table %q.%q.%q: %w", catalog, schema, name, err)
	}
	return nil
}
