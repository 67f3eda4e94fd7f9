package configstore

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lakeboard/internal/domain"
)

// stubMetadata answers Query by substring match against registered keys and
// counts every call.
type stubMetadata struct {
	mu      sync.Mutex
	results map[string][]map[string]string // substring of SQL -> rows
	err     error
	calls   int
	queries []string
}

func newStubMetadata() *stubMetadata {
	return &stubMetadata{results: map[string][]map[string]string{}}
}

func (s *stubMetadata) Query(_ context.Context, sql string) ([]map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.queries = append(s.queries, sql)
	if s.err != nil {
		return nil, s.err
	}
	// Longest matching key wins, so a narrower registration beats a broad one.
	var best string
	for key := range s.results {
		if strings.Contains(sql, key) && len(key) > len(best) {
			best = key
		}
	}
	if best != "" {
		return s.results[best], nil
	}
	return nil, nil
}

func (s *stubMetadata) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func queryRow(id string, overrides map[string]string) map[string]string {
	row := map[string]string{
		"id":                   id,
		"name":                 "Query " + id,
		"description":          "",
		"category":             "sales",
		"sql_template":         "SELECT * FROM cat.sch.orders WHERE region = '${region}'",
		"parameters":           `[{"name":"region","required":true,"default_value":""}]`,
		"required_permissions": `[]`,
		"allow_drill_down":     "0",
		"drill_down_query_id":  "",
		"cache_ttl_seconds":    "300",
		"tags":                 `["sales"]`,
		"is_active":            "1",
	}
	for k, v := range overrides {
		row[k] = v
	}
	return row
}

func newTestStore(t *testing.T, meta *stubMetadata, ttl time.Duration) *Store {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewStore(meta, logger, "mv_catalog", "config_schema", ttl)
}

func TestStore_GetQueryConfig(t *testing.T) {
	meta := newStubMetadata()
	meta.results["WHERE id = 'q1'"] = []map[string]string{queryRow("q1", nil)}
	store := newTestStore(t, meta, 0)

	cfg, err := store.GetQueryConfig(context.Background(), "q1")
	require.NoError(t, err)
	assert.Equal(t, "q1", cfg.ID)
	assert.Equal(t, "sales", cfg.Category)
	require.Len(t, cfg.Parameters, 1)
	assert.Equal(t, "region", cfg.Parameters[0].Name)
	assert.True(t, cfg.Parameters[0].Required)
	assert.Equal(t, []string{"sales"}, cfg.Tags)
	assert.True(t, cfg.IsActive)
}

func TestStore_GetQueryConfig_QueriesQualifiedTable(t *testing.T) {
	meta := newStubMetadata()
	meta.results["WHERE id = 'q1'"] = []map[string]string{queryRow("q1", nil)}
	store := newTestStore(t, meta, 0)

	_, err := store.GetQueryConfig(context.Background(), "q1")
	require.NoError(t, err)
	require.Len(t, meta.queries, 1)
	assert.Contains(t, meta.queries[0], "mv_catalog.config_schema.dashboard_queries")
}

func TestStore_GetQueryConfig_NotFound(t *testing.T) {
	store := newTestStore(t, newStubMetadata(), 0)

	_, err := store.GetQueryConfig(context.Background(), "nope")
	var notFound *domain.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestStore_ReadThroughCache(t *testing.T) {
	meta := newStubMetadata()
	meta.results["WHERE id = 'q1'"] = []map[string]string{queryRow("q1", nil)}
	store := newTestStore(t, meta, time.Minute)
	ctx := context.Background()

	_, err := store.GetQueryConfig(ctx, "q1")
	require.NoError(t, err)
	_, err = store.GetQueryConfig(ctx, "q1")
	require.NoError(t, err)

	assert.Equal(t, 1, meta.callCount(), "second read must come from the cache")
}

func TestStore_ClearCacheForcesReload(t *testing.T) {
	meta := newStubMetadata()
	meta.results["WHERE id = 'q1'"] = []map[string]string{queryRow("q1", nil)}
	store := newTestStore(t, meta, time.Minute)
	ctx := context.Background()

	_, _ = store.GetQueryConfig(ctx, "q1")
	store.ClearCache()
	_, _ = store.GetQueryConfig(ctx, "q1")

	assert.Equal(t, 2, meta.callCount())
}

func TestStore_GetAllQueries_CategoryFilter(t *testing.T) {
	meta := newStubMetadata()
	meta.results["category = 'sales'"] = []map[string]string{queryRow("q1", nil)}
	meta.results["is_active = 1"] = []map[string]string{queryRow("q1", nil), queryRow("q2", nil)}
	store := newTestStore(t, meta, 0)
	ctx := context.Background()

	filtered, err := store.GetAllQueries(ctx, "sales")
	require.NoError(t, err)
	assert.Len(t, filtered, 1)

	all, err := store.GetAllQueries(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestStore_GetFilterConfigs_TabNarrowing(t *testing.T) {
	meta := newStubMetadata()
	meta.results["filter_definitions"] = []map[string]string{
		{
			"id": "f1", "filter_name": "region", "label": "Region",
			"filter_type": "global", "data_type": "select", "data_source": "static",
			"static_options":  `[{"label":"West","value":"west"}]`,
			"applies_to_tabs": `["overview"]`, "applies_to_queries": `[]`,
			"display_order": "1", "is_required": "0", "is_active": "1",
		},
		{
			"id": "f2", "filter_name": "date", "label": "Date",
			"filter_type": "global", "data_type": "daterange", "data_source": "static",
			"static_options":  `[]`,
			"applies_to_tabs": `[]`, "applies_to_queries": `[]`,
			"display_order": "2", "is_required": "0", "is_active": "1",
		},
	}
	store := newTestStore(t, meta, 0)

	overview, err := store.GetFilterConfigs(context.Background(), "global", "overview")
	require.NoError(t, err)
	assert.Len(t, overview, 2, "empty applies_to_tabs means the filter applies everywhere")

	other, err := store.GetFilterConfigs(context.Background(), "global", "finance")
	require.NoError(t, err)
	require.Len(t, other, 1)
	assert.Equal(t, "f2", other[0].ID)
}

func TestStore_GetVizConfigs(t *testing.T) {
	meta := newStubMetadata()
	meta.results["default_for_tab = 'overview'"] = []map[string]string{
		{
			"id": "v1", "viz_name": "orders_by_region", "viz_type": "bar",
			"query_id": "q1", "data_key": "rows",
			"x_axis_field": "region", "y_axis_field": "total",
			"color_scheme": `["#123456"]`, "chart_options": `{"stacked":"true"}`,
			"allow_drill_down": "1", "default_for_tab": "overview",
			"display_order": "1", "is_active": "1",
		},
	}
	store := newTestStore(t, meta, 0)

	configs, err := store.GetVizConfigs(context.Background(), "overview")
	require.NoError(t, err)
	require.Len(t, configs, 1)
	assert.Equal(t, "bar", configs[0].VizType)
	assert.Equal(t, []string{"#123456"}, configs[0].ColorScheme)
	assert.Equal(t, "true", configs[0].ChartOptions["stacked"])
	assert.True(t, configs[0].AllowDrillDown)
}

func TestStore_GetSystemConfig(t *testing.T) {
	meta := newStubMetadata()
	meta.results["config_key = 'default_date_range'"] = []map[string]string{
		{"config_value": "30d"},
	}
	store := newTestStore(t, meta, 0)

	value, err := store.GetSystemConfig(context.Background(), "default_date_range")
	require.NoError(t, err)
	assert.Equal(t, "30d", value)

	_, err = store.GetSystemConfig(context.Background(), "missing")
	var notFound *domain.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestStore_BuildQueryFromTemplate(t *testing.T) {
	meta := newStubMetadata()
	meta.results["WHERE id = 'q1'"] = []map[string]string{queryRow("q1", nil)}
	store := newTestStore(t, meta, 0)

	sql, err := store.BuildQueryFromTemplate(context.Background(), "q1",
		map[string]string{"region": "west"})
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM cat.sch.orders WHERE region = 'west'", sql)
}

func TestStore_BuildQueryFromTemplate_MissingRequired(t *testing.T) {
	meta := newStubMetadata()
	meta.results["WHERE id = 'q1'"] = []map[string]string{queryRow("q1", nil)}
	store := newTestStore(t, meta, 0)

	_, err := store.BuildQueryFromTemplate(context.Background(), "q1", nil)
	var cfgErr *domain.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Message, `"region"`)
}

func TestStore_BuildQueryFromTemplate_OptionalDefault(t *testing.T) {
	meta := newStubMetadata()
	meta.results["WHERE id = 'q1'"] = []map[string]string{queryRow("q1", map[string]string{
		"sql_template": "SELECT * FROM t WHERE lookback = ${days}",
		"parameters":   `[{"name":"days","required":false,"default_value":"30"}]`,
	})}
	store := newTestStore(t, meta, 0)

	sql, err := store.BuildQueryFromTemplate(context.Background(), "q1", nil)
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM t WHERE lookback = 30", sql)
}

func TestStore_BuildQueryFromTemplate_SuppliedBeatsDefault(t *testing.T) {
	meta := newStubMetadata()
	meta.results["WHERE id = 'q1'"] = []map[string]string{queryRow("q1", map[string]string{
		"sql_template": "SELECT * FROM t WHERE lookback = ${days}",
		"parameters":   `[{"name":"days","required":false,"default_value":"30"}]`,
	})}
	store := newTestStore(t, meta, 0)

	sql, err := store.BuildQueryFromTemplate(context.Background(), "q1",
		map[string]string{"days": "7"})
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM t WHERE lookback = 7", sql)
}

func TestStore_BuildQueryFromTemplate_UnknownID(t *testing.T) {
	store := newTestStore(t, newStubMetadata(), 0)

	_, err := store.BuildQueryFromTemplate(context.Background(), "ghost", nil)
	var cfgErr *domain.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Message, "unknown query configuration")
}

func TestStore_BuildQueryFromTemplate_Inactive(t *testing.T) {
	meta := newStubMetadata()
	meta.results["WHERE id = 'q1'"] = []map[string]string{queryRow("q1", map[string]string{
		"is_active": "0",
	})}
	store := newTestStore(t, meta, 0)

	_, err := store.BuildQueryFromTemplate(context.Background(), "q1", nil)
	var cfgErr *domain.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Message, "inactive")
}

func TestStore_BuildQueryFromTemplate_UndeclaredPlaceholder(t *testing.T) {
	meta := newStubMetadata()
	meta.results["WHERE id = 'q1'"] = []map[string]string{queryRow("q1", map[string]string{
		"sql_template": "SELECT * FROM t WHERE a = '${region}' AND b = '${mystery}'",
	})}
	store := newTestStore(t, meta, 0)

	_, err := store.BuildQueryFromTemplate(context.Background(), "q1",
		map[string]string{"region": "west"})
	var cfgErr *domain.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Message, "${mystery}")
}

func TestStore_DecodeError_BadJSON(t *testing.T) {
	meta := newStubMetadata()
	meta.results["WHERE id = 'q1'"] = []map[string]string{queryRow("q1", map[string]string{
		"parameters": "{not json",
	})}
	store := newTestStore(t, meta, 0)

	_, err := store.GetQueryConfig(context.Background(), "q1")
	var cfgErr *domain.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestStore_CollaboratorErrorWrapped(t *testing.T) {
	meta := newStubMetadata()
	meta.err = fmt.Errorf("warehouse unreachable")
	store := newTestStore(t, meta, 0)

	_, err := store.GetAllQueries(context.Background(), "")
	var collab *domain.CollaboratorError
	require.ErrorAs(t, err, &collab)
	assert.ErrorContains(t, collab.Err, "warehouse unreachable")
}

func TestStore_ValidateConfigTablesExist(t *testing.T) {
	meta := newStubMetadata()
	store := newTestStore(t, meta, 0)

	assert.True(t, store.ValidateConfigTablesExist(context.Background()))
	assert.Equal(t, 4, meta.callCount())

	meta.err = fmt.Errorf("no such table")
	assert.False(t, store.ValidateConfigTablesExist(context.Background()))
}

func TestStore_CacheExpiry(t *testing.T) {
	meta := newStubMetadata()
	meta.results["config_key = 'k'"] = []map[string]string{{"config_value": "v"}}
	store := newTestStore(t, meta, 30*time.Millisecond)
	ctx := context.Background()

	_, err := store.GetSystemConfig(ctx, "k")
	require.NoError(t, err)
	time.Sleep(60 * time.Millisecond)
	_, err = store.GetSystemConfig(ctx, "k")
	require.NoError(t, err)

	assert.Equal(t, 2, meta.callCount(), "expired entries must be reloaded")
}
