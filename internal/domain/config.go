package domain

// QueryParameter declares one substitutable parameter of a query template.
type QueryParameter struct {
	Name         string `json:"name"`
	Required     bool   `json:"required"`
	DefaultValue string `json:"default_value"`
}

// QueryConfig is a named, parameterized query definition authored in the
// governed metadata store. SQLTemplate contains ${param} placeholders; every
// placeholder must correspond to a declared parameter.
//
// CacheTTLSeconds describes result caching, which is handled elsewhere; the
// configuration store caches these records with its own fixed TTL.
type QueryConfig struct {
	ID                  string
	Name                string
	Description         string
	Category            string
	SQLTemplate         string
	Parameters          []QueryParameter
	RequiredPermissions []string
	AllowDrillDown      bool
	DrillDownQueryID    string
	CacheTTLSeconds     int
	Tags                []string
	IsActive            bool
}

// FilterOption is one selectable value of a static filter.
type FilterOption struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// FilterConfig describes a UI-facing filter definition.
type FilterConfig struct {
	ID                       string
	FilterName               string
	Label                    string
	FilterType               string // "global" or "local"
	DataType                 string // "select", "multiselect", "daterange", "text"
	DataSource               string // "static", "dynamic", "query"
	StaticOptions            []FilterOption
	OptionsQuery             string
	DefaultValue             string
	AppliesToTabs            []string
	AppliesToQueries         []string
	FilterExpressionTemplate string
	DisplayOrder             int
	IsRequired               bool
	IsActive                 bool
}

// VisualizationConfig binds a chart to a configured query.
type VisualizationConfig struct {
	ID             string
	VizName        string
	VizType        string
	QueryID        string
	DataKey        string
	XAxisField     string
	YAxisField     string
	ColorScheme    []string
	Title          string
	Subtitle       string
	AllowDrillDown bool
	ChartOptions   map[string]string
	DefaultForTab  string
	DisplayOrder   int
	IsActive       bool
}
