// Package repository provides SQLite-backed implementations of the
// collaborator ports: privilege store, resource enumerators, metadata store,
// and audit sink.
package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// GrantRepo implements domain.PrivilegeStore on the grants table.
type GrantRepo struct {
	db *sql.DB
}

func NewGrantRepo(db *sql.DB) *GrantRepo {
	return &GrantRepo{db: db}
}

// EffectivePrivileges returns all privileges granted to the principal on the
// securable, including ALL_PRIVILEGES when present.
func (r *GrantRepo) EffectivePrivileges(ctx context.Context, securableType, qualifiedName, principal string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT privilege FROM grants WHERE principal = ? AND securable_type = ? AND qualified_name = ?`,
		principal, securableType, qualifiedName)
	if err != nil {
		return nil, fmt.Errorf("query grants for %s on %s: %w", principal, qualifiedName, err)
	}
	defer rows.Close()

	var privileges []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan grant: %w", err)
		}
		privileges = append(privileges, p)
	}
	return privileges, rows.Err()
}

// Grant records a privilege for a principal. Idempotent.
func (r *GrantRepo) Grant(ctx context.Context, principal, securableType, qualifiedName, privilege string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO grants (principal, securable_type, qualified_name, privilege) VALUES (?, ?, ?, ?)`,
		principal, securableType, qualifiedName, privilege)
	if err != nil {
		return fmt.Errorf("insert grant: %w", err)
	}
	return nil
}

// Revoke removes a privilege from a principal.
func (r *GrantRepo) Revoke(ctx context.Context, principal, securableType, qualifiedName, privilege string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM grants WHERE principal = ? AND securable_type = ? AND qualified_name = ? AND privilege = ?`,
		principal, securableType, qualifiedName, privilege)
	if err != nil {
		return fmt.Errorf("delete grant: %w", err)
	}
	return nil
}
