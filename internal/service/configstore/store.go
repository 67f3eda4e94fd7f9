// Package configstore reads dashboard configuration (queries, filters,
// visualizations, system settings) from the governed metadata tables and
// builds executable SQL from parameterized templates.
package configstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"lakeboard/internal/domain"
)

// placeholderPattern matches ${name} substitution sites in SQL templates.
var placeholderPattern = regexp.MustCompile(`\$\{([A-Za-z0-9_]+)\}`)

// requiredTables are the metadata tables the store depends on.
var requiredTables = []string{
	"dashboard_queries",
	"filter_definitions",
	"visualization_configs",
	"system_config",
}

// Store is a read-through cache over the governed configuration tables.
// Cache entries expire after a fixed store-level TTL; per-query
// CacheTTLSeconds governs result caching downstream, not these records.
type Store struct {
	meta    domain.MetadataStore
	logger  *slog.Logger
	catalog string
	schema  string
	cache   *expirable.LRU[string, any]
}

// NewStore creates a configuration store reading from
// catalog.schema-qualified metadata tables. ttl <= 0 defaults to 5 minutes.
func NewStore(meta domain.MetadataStore, logger *slog.Logger, catalog, schema string, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Store{
		meta:    meta,
		logger:  logger,
		catalog: catalog,
		schema:  schema,
		cache:   expirable.NewLRU[string, any](1024, nil, ttl),
	}
}

func (s *Store) qualify(table string) string {
	return fmt.Sprintf("%s.%s.%s", s.catalog, s.schema, table)
}

// quote escapes a literal for embedding in a single-quoted SQL string.
func quote(v string) string {
	return strings.ReplaceAll(v, "'", "''")
}

// GetQueryConfig returns one active query definition by id.
func (s *Store) GetQueryConfig(ctx context.Context, id string) (*domain.QueryConfig, error) {
	cacheKey := "query:" + id
	if v, ok := s.cache.Get(cacheKey); ok {
		return v.(*domain.QueryConfig), nil
	}

	sql := fmt.Sprintf("SELECT * FROM %s WHERE id = '%s'", s.qualify("dashboard_queries"), quote(id))
	rows, err := s.meta.Query(ctx, sql)
	if err != nil {
		return nil, domain.ErrCollaborator(err, "loading query configuration %q", id)
	}
	if len(rows) == 0 {
		return nil, domain.ErrNotFound("query configuration %q", id)
	}

	cfg, err := s.decodeQuery(rows[0])
	if err != nil {
		return nil, err
	}
	s.cache.Add(cacheKey, cfg)
	return cfg, nil
}

// GetAllQueries returns active query definitions, optionally filtered by
// category. An empty category returns everything active.
func (s *Store) GetAllQueries(ctx context.Context, category string) ([]domain.QueryConfig, error) {
	cacheKey := "queries:" + category
	if v, ok := s.cache.Get(cacheKey); ok {
		return v.([]domain.QueryConfig), nil
	}

	sql := fmt.Sprintf("SELECT * FROM %s WHERE is_active = 1", s.qualify("dashboard_queries"))
	if category != "" {
		sql += fmt.Sprintf(" AND category = '%s'", quote(category))
	}
	rows, err := s.meta.Query(ctx, sql)
	if err != nil {
		return nil, domain.ErrCollaborator(err, "loading query configurations")
	}

	configs := make([]domain.QueryConfig, 0, len(rows))
	for _, row := range rows {
		cfg, err := s.decodeQuery(row)
		if err != nil {
			return nil, err
		}
		configs = append(configs, *cfg)
	}
	s.cache.Add(cacheKey, configs)
	return configs, nil
}

// GetFilterConfigs returns active filter definitions ordered by
// display_order, optionally narrowed by filter type and tab.
func (s *Store) GetFilterConfigs(ctx context.Context, filterType, tab string) ([]domain.FilterConfig, error) {
	cacheKey := "filters:" + filterType + ":" + tab
	if v, ok := s.cache.Get(cacheKey); ok {
		return v.([]domain.FilterConfig), nil
	}

	sql := fmt.Sprintf("SELECT * FROM %s WHERE is_active = 1", s.qualify("filter_definitions"))
	if filterType != "" {
		sql += fmt.Sprintf(" AND filter_type = '%s'", quote(filterType))
	}
	sql += " ORDER BY display_order"
	rows, err := s.meta.Query(ctx, sql)
	if err != nil {
		return nil, domain.ErrCollaborator(err, "loading filter definitions")
	}

	configs := make([]domain.FilterConfig, 0, len(rows))
	for _, row := range rows {
		cfg, err := s.decodeFilter(row)
		if err != nil {
			return nil, err
		}
		// Tab narrowing happens here: an empty applies_to_tabs list means
		// the filter applies everywhere.
		if tab != "" && len(cfg.AppliesToTabs) > 0 && !contains(cfg.AppliesToTabs, tab) {
			continue
		}
		configs = append(configs, *cfg)
	}
	s.cache.Add(cacheKey, configs)
	return configs, nil
}

// GetVizConfigs returns active visualization configs ordered by
// display_order, optionally narrowed to one tab's defaults.
func (s *Store) GetVizConfigs(ctx context.Context, tab string) ([]domain.VisualizationConfig, error) {
	cacheKey := "viz:" + tab
	if v, ok := s.cache.Get(cacheKey); ok {
		return v.([]domain.VisualizationConfig), nil
	}

	sql := fmt.Sprintf("SELECT * FROM %s WHERE is_active = 1", s.qualify("visualization_configs"))
	if tab != "" {
		sql += fmt.Sprintf(" AND default_for_tab = '%s'", quote(tab))
	}
	sql += " ORDER BY display_order"
	rows, err := s.meta.Query(ctx, sql)
	if err != nil {
		return nil, domain.ErrCollaborator(err, "loading visualization configs")
	}

	configs := make([]domain.VisualizationConfig, 0, len(rows))
	for _, row := range rows {
		cfg, err := s.decodeViz(row)
		if err != nil {
			return nil, err
		}
		configs = append(configs, *cfg)
	}
	s.cache.Add(cacheKey, configs)
	return configs, nil
}

// GetSystemConfig returns one system configuration value by key.
func (s *Store) GetSystemConfig(ctx context.Context, key string) (string, error) {
	cacheKey := "system:" + key
	if v, ok := s.cache.Get(cacheKey); ok {
		return v.(string), nil
	}

	sql := fmt.Sprintf("SELECT config_value FROM %s WHERE config_key = '%s'",
		s.qualify("system_config"), quote(key))
	rows, err := s.meta.Query(ctx, sql)
	if err != nil {
		return "", domain.ErrCollaborator(err, "loading system config %q", key)
	}
	if len(rows) == 0 {
		return "", domain.ErrNotFound("system config %q", key)
	}

	value := rows[0]["config_value"]
	s.cache.Add(cacheKey, value)
	return value, nil
}

// BuildQueryFromTemplate resolves a query definition and substitutes its
// ${param} placeholders. Supplied values win over declared defaults; a
// missing required parameter and any undeclared placeholder left after
// substitution are authoring or caller errors, reported explicitly rather
// than passed downstream as broken SQL.
func (s *Store) BuildQueryFromTemplate(ctx context.Context, id string, params map[string]string) (string, error) {
	cfg, err := s.GetQueryConfig(ctx, id)
	if err != nil {
		var notFound *domain.NotFoundError
		if errors.As(err, &notFound) {
			return "", domain.ErrConfiguration("unknown query configuration %q", id)
		}
		return "", err
	}
	if !cfg.IsActive {
		return "", domain.ErrConfiguration("query configuration %q is inactive", id)
	}

	sql := cfg.SQLTemplate
	for _, p := range cfg.Parameters {
		value, supplied := params[p.Name]
		if !supplied {
			if p.Required {
				return "", domain.ErrConfiguration(
					"missing required parameter %q for query %q", p.Name, id)
			}
			value = p.DefaultValue
		}
		sql = strings.ReplaceAll(sql, "${"+p.Name+"}", value)
	}

	if m := placeholderPattern.FindStringSubmatch(sql); m != nil {
		return "", domain.ErrConfiguration(
			"undeclared placeholder ${%s} in query %q", m[1], id)
	}
	return sql, nil
}

// ValidateConfigTablesExist probes every required metadata table. Missing
// tables are a deployment problem worth a warning, not a startup failure.
func (s *Store) ValidateConfigTablesExist(ctx context.Context) bool {
	ok := true
	for _, table := range requiredTables {
		sql := fmt.Sprintf("SELECT COUNT(*) AS n FROM %s LIMIT 1", s.qualify(table))
		if _, err := s.meta.Query(ctx, sql); err != nil {
			s.logger.Warn("config table not reachable", "table", s.qualify(table), "error", err)
			ok = false
		}
	}
	return ok
}

// ClearCache drops every cached configuration record.
func (s *Store) ClearCache() {
	s.cache.Purge()
}

func (s *Store) decodeQuery(row map[string]string) (*domain.QueryConfig, error) {
	cfg := &domain.QueryConfig{
		ID:               row["id"],
		Name:             row["name"],
		Description:      row["description"],
		Category:         row["category"],
		SQLTemplate:      row["sql_template"],
		DrillDownQueryID: row["drill_down_query_id"],
		AllowDrillDown:   decodeBool(row["allow_drill_down"]),
		CacheTTLSeconds:  decodeInt(row["cache_ttl_seconds"], 300),
		IsActive:         decodeBool(row["is_active"]),
	}
	if err := decodeJSONColumn(row["parameters"], &cfg.Parameters, "parameters", cfg.ID); err != nil {
		return nil, err
	}
	if err := decodeJSONColumn(row["required_permissions"], &cfg.RequiredPermissions, "required_permissions", cfg.ID); err != nil {
		return nil, err
	}
	if err := decodeJSONColumn(row["tags"], &cfg.Tags, "tags", cfg.ID); err != nil {
		return nil, err
	}

	// Surface template/parameter drift at load time, before anyone tries to
	// build the query.
	declared := make(map[string]bool, len(cfg.Parameters))
	for _, p := range cfg.Parameters {
		declared[p.Name] = true
	}
	for _, m := range placeholderPattern.FindAllStringSubmatch(cfg.SQLTemplate, -1) {
		if !declared[m[1]] {
			s.logger.Warn("template references undeclared parameter",
				"query", cfg.ID, "parameter", m[1])
		}
	}
	return cfg, nil
}

func (s *Store) decodeFilter(row map[string]string) (*domain.FilterConfig, error) {
	cfg := &domain.FilterConfig{
		ID:                       row["id"],
		FilterName:               row["filter_name"],
		Label:                    row["label"],
		FilterType:               defaultString(row["filter_type"], "global"),
		DataType:                 defaultString(row["data_type"], "select"),
		DataSource:               defaultString(row["data_source"], "static"),
		OptionsQuery:             row["options_query"],
		DefaultValue:             row["default_value"],
		FilterExpressionTemplate: row["filter_expression_template"],
		DisplayOrder:             decodeInt(row["display_order"], 0),
		IsRequired:               decodeBool(row["is_required"]),
		IsActive:                 decodeBool(row["is_active"]),
	}
	if err := decodeJSONColumn(row["static_options"], &cfg.StaticOptions, "static_options", cfg.ID); err != nil {
		return nil, err
	}
	if err := decodeJSONColumn(row["applies_to_tabs"], &cfg.AppliesToTabs, "applies_to_tabs", cfg.ID); err != nil {
		return nil, err
	}
	if err := decodeJSONColumn(row["applies_to_queries"], &cfg.AppliesToQueries, "applies_to_queries", cfg.ID); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (s *Store) decodeViz(row map[string]string) (*domain.VisualizationConfig, error) {
	cfg := &domain.VisualizationConfig{
		ID:             row["id"],
		VizName:        row["viz_name"],
		VizType:        row["viz_type"],
		QueryID:        row["query_id"],
		DataKey:        row["data_key"],
		XAxisField:     row["x_axis_field"],
		YAxisField:     row["y_axis_field"],
		Title:          row["title"],
		Subtitle:       row["subtitle"],
		AllowDrillDown: decodeBool(row["allow_drill_down"]),
		DefaultForTab:  row["default_for_tab"],
		DisplayOrder:   decodeInt(row["display_order"], 0),
		IsActive:       decodeBool(row["is_active"]),
	}
	if err := decodeJSONColumn(row["color_scheme"], &cfg.ColorScheme, "color_scheme", cfg.ID); err != nil {
		return nil, err
	}
	if err := decodeJSONColumn(row["chart_options"], &cfg.ChartOptions, "chart_options", cfg.ID); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeJSONColumn(raw string, dst any, column, id string) error {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return domain.ErrConfiguration("invalid %s JSON on record %q: %v", column, id, err)
	}
	return nil
}

func decodeBool(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "t", "yes":
		return true
	}
	return false
}

func decodeInt(raw string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fallback
	}
	return n
}

func defaultString(raw, fallback string) string {
	if raw == "" {
		return fallback
	}
	return raw
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
