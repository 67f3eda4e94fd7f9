package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SeedFile is the YAML fixture loaded at startup when SEED_FILE is set. It
// carries the catalog hierarchy, grants, and dashboard configuration rows.
type SeedFile struct {
	Catalogs []SeedCatalog `yaml:"catalogs"`
	Grants   []SeedGrant   `yaml:"grants"`

	Queries        []SeedQuery       `yaml:"queries"`
	Filters        []SeedFilter      `yaml:"filters"`
	Visualizations []SeedViz         `yaml:"visualizations"`
	SystemConfig   map[string]string `yaml:"system_config"`
}

type SeedCatalog struct {
	Name    string       `yaml:"name"`
	Schemas []SeedSchema `yaml:"schemas"`
}

type SeedSchema struct {
	Name   string   `yaml:"name"`
	Tables []string `yaml:"tables"`
}

type SeedGrant struct {
	Principal     string   `yaml:"principal"`
	SecurableType string   `yaml:"securable_type"`
	QualifiedName string   `yaml:"qualified_name"`
	Privileges    []string `yaml:"privileges"`
}

// SeedParam mirrors domain.QueryParameter with YAML tags for fixture files
// and JSON tags matching what the configuration store decodes.
type SeedParam struct {
	Name         string `yaml:"name" json:"name"`
	Required     bool   `yaml:"required" json:"required"`
	DefaultValue string `yaml:"default_value" json:"default_value"`
}

type SeedOption struct {
	Label string `yaml:"label" json:"label"`
	Value string `yaml:"value" json:"value"`
}

type SeedQuery struct {
	ID                  string      `yaml:"id"`
	Name                string      `yaml:"name"`
	Description         string      `yaml:"description"`
	Category            string      `yaml:"category"`
	SQLTemplate         string      `yaml:"sql_template"`
	Parameters          []SeedParam `yaml:"parameters"`
	RequiredPermissions []string    `yaml:"required_permissions"`
	AllowDrillDown      bool        `yaml:"allow_drill_down"`
	DrillDownQueryID    string      `yaml:"drill_down_query_id"`
	CacheTTLSeconds     int         `yaml:"cache_ttl_seconds"`
	Tags                []string    `yaml:"tags"`
}

type SeedFilter struct {
	ID                       string       `yaml:"id"`
	FilterName               string       `yaml:"filter_name"`
	Label                    string       `yaml:"label"`
	FilterType               string       `yaml:"filter_type"`
	DataType                 string       `yaml:"data_type"`
	DataSource               string       `yaml:"data_source"`
	StaticOptions            []SeedOption `yaml:"static_options"`
	OptionsQuery             string       `yaml:"options_query"`
	DefaultValue             string       `yaml:"default_value"`
	AppliesToTabs            []string     `yaml:"applies_to_tabs"`
	AppliesToQueries         []string     `yaml:"applies_to_queries"`
	FilterExpressionTemplate string       `yaml:"filter_expression_template"`
	DisplayOrder             int          `yaml:"display_order"`
	IsRequired               bool         `yaml:"is_required"`
}

type SeedViz struct {
	ID             string            `yaml:"id"`
	VizName        string            `yaml:"viz_name"`
	VizType        string            `yaml:"viz_type"`
	QueryID        string            `yaml:"query_id"`
	DataKey        string            `yaml:"data_key"`
	XAxisField     string            `yaml:"x_axis_field"`
	YAxisField     string            `yaml:"y_axis_field"`
	ColorScheme    []string          `yaml:"color_scheme"`
	Title          string            `yaml:"title"`
	Subtitle       string            `yaml:"subtitle"`
	AllowDrillDown bool              `yaml:"allow_drill_down"`
	ChartOptions   map[string]string `yaml:"chart_options"`
	DefaultForTab  string            `yaml:"default_for_tab"`
	DisplayOrder   int               `yaml:"display_order"`
}

// Seed loads the fixture file and applies it. All inserts are idempotent:
// existing rows with the same key are replaced, so re-running a seed
// converges rather than duplicating.
func (a *App) Seed(ctx context.Context, db *sql.DB, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading seed file: %w", err)
	}
	var seed SeedFile
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		return fmt.Errorf("parsing seed file: %w", err)
	}

	for _, c := range seed.Catalogs {
		if err := a.Catalogs.CreateCatalog(ctx, c.Name); err != nil {
			return fmt.Errorf("seeding catalog %s: %w", c.Name, err)
		}
		for _, s := range c.Schemas {
			if err := a.Catalogs.CreateSchema(ctx, c.Name, s.Name); err != nil {
				return fmt.Errorf("seeding schema %s.%s: %w", c.Name, s.Name, err)
			}
			for _, table := range s.Tables {
				if err := a.Catalogs.CreateTable(ctx, c.Name, s.Name, table); err != nil {
					return fmt.Errorf("seeding table %s.%s.%s: %w", c.Name, s.Name, table, err)
				}
			}
		}
	}

	for _, g := range seed.Grants {
		for _, privilege := range g.Privileges {
			if err := a.Grants.Grant(ctx, g.Principal, g.SecurableType, g.QualifiedName, privilege); err != nil {
				return fmt.Errorf("seeding grant for %s on %s: %w", g.Principal, g.QualifiedName, err)
			}
		}
	}

	if err := seedConfigRows(ctx, db, seed); err != nil {
		return err
	}

	// Stale cached records would shadow the fresh rows.
	a.Store.ClearCache()
	return nil
}

func seedConfigRows(ctx context.Context, db *sql.DB, seed SeedFile) error {
	for _, q := range seed.Queries {
		params, err := jsonColumn(q.Parameters, "[]")
		if err != nil {
			return fmt.Errorf("seeding query %s: %w", q.ID, err)
		}
		perms, _ := jsonColumn(q.RequiredPermissions, "[]")
		tags, _ := jsonColumn(q.Tags, "[]")
		ttl := q.CacheTTLSeconds
		if ttl <= 0 {
			ttl = 300
		}
		_, err = db.ExecContext(ctx, `
			INSERT OR REPLACE INTO dashboard_queries
			(id, name, description, category, sql_template, parameters,
			 required_permissions, allow_drill_down, drill_down_query_id,
			 cache_ttl_seconds, tags, is_active)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)`,
			q.ID, q.Name, q.Description, q.Category, q.SQLTemplate, params,
			perms, boolInt(q.AllowDrillDown), q.DrillDownQueryID, ttl, tags)
		if err != nil {
			return fmt.Errorf("seeding query %s: %w", q.ID, err)
		}
	}

	for _, f := range seed.Filters {
		options, err := jsonColumn(f.StaticOptions, "[]")
		if err != nil {
			return fmt.Errorf("seeding filter %s: %w", f.ID, err)
		}
		tabs, _ := jsonColumn(f.AppliesToTabs, "[]")
		queries, _ := jsonColumn(f.AppliesToQueries, "[]")
		_, err = db.ExecContext(ctx, `
			INSERT OR REPLACE INTO filter_definitions
			(id, filter_name, label, filter_type, data_type, data_source,
			 static_options, options_query, default_value, applies_to_tabs,
			 applies_to_queries, filter_expression_template, display_order,
			 is_required, is_active)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)`,
			f.ID, f.FilterName, f.Label,
			orDefault(f.FilterType, "global"), orDefault(f.DataType, "select"), orDefault(f.DataSource, "static"),
			options, f.OptionsQuery, f.DefaultValue, tabs, queries,
			f.FilterExpressionTemplate, f.DisplayOrder, boolInt(f.IsRequired))
		if err != nil {
			return fmt.Errorf("seeding filter %s: %w", f.ID, err)
		}
	}

	for _, v := range seed.Visualizations {
		colors, err := jsonColumn(v.ColorScheme, "[]")
		if err != nil {
			return fmt.Errorf("seeding visualization %s: %w", v.ID, err)
		}
		options, _ := jsonColumn(v.ChartOptions, "{}")
		_, err = db.ExecContext(ctx, `
			INSERT OR REPLACE INTO visualization_configs
			(id, viz_name, viz_type, query_id, data_key, x_axis_field,
			 y_axis_field, color_scheme, title, subtitle, allow_drill_down,
			 chart_options, default_for_tab, display_order, is_active)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)`,
			v.ID, v.VizName, v.VizType, v.QueryID, v.DataKey, v.XAxisField,
			v.YAxisField, colors, v.Title, v.Subtitle, boolInt(v.AllowDrillDown),
			options, v.DefaultForTab, v.DisplayOrder)
		if err != nil {
			return fmt.Errorf("seeding visualization %s: %w", v.ID, err)
		}
	}

	for key, value := range seed.SystemConfig {
		_, err := db.ExecContext(ctx, `
			INSERT OR REPLACE INTO system_config (config_key, config_value, config_type)
			VALUES (?, ?, 'string')`, key, value)
		if err != nil {
			return fmt.Errorf("seeding system config %s: %w", key, err)
		}
	}
	return nil
}

func jsonColumn(v any, empty string) (string, error) {
	if v == nil {
		return empty, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	s := string(raw)
	if s == "null" {
		return empty, nil
	}
	return s, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
