package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// MetadataRepo implements domain.MetadataStore against the local SQLite
// metastore. Callers address configuration tables by their governed
// three-part names (catalog.schema.table); SQLite has no catalog/schema
// qualification, so the configured prefix is stripped before execution.
type MetadataRepo struct {
	db     *sql.DB
	prefix string // "catalog.schema." prefix to strip
}

func NewMetadataRepo(db *sql.DB, metadataCatalog, metadataSchema string) *MetadataRepo {
	return &MetadataRepo{
		db:     db,
		prefix: metadataCatalog + "." + metadataSchema + ".",
	}
}

// Query executes a SELECT and returns rows as column-name -> string maps.
// NULL columns map to the empty string.
func (r *MetadataRepo) Query(ctx context.Context, query string) ([]map[string]string, error) {
	localized := strings.ReplaceAll(query, r.prefix, "")

	rows, err := r.db.QueryContext(ctx, localized)
	if err != nil {
		return nil, fmt.Errorf("metadata query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("metadata columns: %w", err)
	}

	var out []map[string]string
	for rows.Next() {
		raw := make([]sql.NullString, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("metadata scan: %w", err)
		}

		row := make(map[string]string, len(cols))
		for i, c := range cols {
			if raw[i].Valid {
				row[c] = raw[i].String
			} else {
				row[c] = ""
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
