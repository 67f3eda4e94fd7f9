// Package api exposes the dashboard backend over HTTP. The layer is thin:
// handlers decode the request, call one service, and encode the result.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"lakeboard/internal/domain"
	"lakeboard/internal/middleware"
	"lakeboard/internal/service/auth"
	"lakeboard/internal/service/configstore"
	"lakeboard/internal/service/security"
)

type Handler struct {
	gateway  *auth.Gateway
	engine   *security.Engine
	pipeline *security.Pipeline
	store    *configstore.Store
	logger   *slog.Logger
}

func NewHandler(
	gateway *auth.Gateway,
	engine *security.Engine,
	pipeline *security.Pipeline,
	store *configstore.Store,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		gateway:  gateway,
		engine:   engine,
		pipeline: pipeline,
		store:    store,
		logger:   logger,
	}
}

// RouterConfig carries the HTTP-layer knobs.
type RouterConfig struct {
	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int
}

// NewRouter assembles the full middleware chain and route table.
func NewRouter(h *Handler, authn *middleware.Authenticator, cfg RouterConfig) chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", h.Health)

	r.Route("/v1", func(r chi.Router) {
		if cfg.RateLimitRPS > 0 {
			r.Use(middleware.RateLimiter(middleware.RateLimitConfig{
				RequestsPerSecond: cfg.RateLimitRPS,
				Burst:             cfg.RateLimitBurst,
			}))
		}
		r.Use(authn.Middleware)

		r.Get("/me", h.Me)
		r.Get("/scope", h.Scope)
		r.Get("/queries", h.ListQueries)
		r.Get("/queries/{id}", h.GetQuery)
		r.Post("/queries/{id}/sql", h.BuildQuerySQL)
		r.Get("/filters", h.ListFilters)
		r.Get("/visualizations", h.ListVisualizations)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin)
			r.Post("/admin/cache/clear", h.ClearCaches)
		})
	})

	return r
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type meResponse struct {
	Email           string    `json:"email"`
	UserID          string    `json:"user_id"`
	DisplayName     string    `json:"display_name"`
	Groups          []string  `json:"groups"`
	Roles           []string  `json:"roles"`
	IsAdmin         bool      `json:"is_admin"`
	SessionID       string    `json:"session_id"`
	AuthenticatedAt time.Time `json:"authenticated_at"`
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := domain.UserFromContext(r.Context())
	if !ok {
		writeError(w, domain.ErrAuthentication("missing authentication token"))
		return
	}
	writeJSON(w, http.StatusOK, meResponse{
		Email:           user.Email,
		UserID:          user.UserID,
		DisplayName:     user.DisplayName,
		Groups:          user.Groups,
		Roles:           user.Roles,
		IsAdmin:         user.IsAdmin,
		SessionID:       user.SessionID,
		AuthenticatedAt: user.AuthenticatedAt,
	})
}

type scopeResponse struct {
	Catalogs     []string                      `json:"catalogs"`
	Schemas      []string                      `json:"schemas"`
	Tables       []string                      `json:"tables"`
	AccessLevels map[string]domain.AccessLevel `json:"access_levels"`
}

func (h *Handler) Scope(w http.ResponseWriter, r *http.Request) {
	user, ok := domain.UserFromContext(r.Context())
	if !ok {
		writeError(w, domain.ErrAuthentication("missing authentication token"))
		return
	}
	scope := h.engine.GetUserDataScope(r.Context(), user)
	writeJSON(w, http.StatusOK, scopeResponse{
		Catalogs:     sortedMembers(scope.AccessibleCatalogs),
		Schemas:      sortedMembers(scope.AccessibleSchemas),
		Tables:       sortedMembers(scope.AccessibleTables),
		AccessLevels: scope.AccessLevels,
	})
}

type querySummary struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	Category       string   `json:"category"`
	AllowDrillDown bool     `json:"allow_drill_down"`
	Tags           []string `json:"tags"`
}

func (h *Handler) ListQueries(w http.ResponseWriter, r *http.Request) {
	configs, err := h.store.GetAllQueries(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]querySummary, 0, len(configs))
	for _, c := range configs {
		out = append(out, querySummary{
			ID:             c.ID,
			Name:           c.Name,
			Description:    c.Description,
			Category:       c.Category,
			AllowDrillDown: c.AllowDrillDown,
			Tags:           c.Tags,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type queryDetail struct {
	querySummary
	Parameters       []domain.QueryParameter `json:"parameters"`
	DrillDownQueryID string                  `json:"drill_down_query_id,omitempty"`
	CacheTTLSeconds  int                     `json:"cache_ttl_seconds"`
}

func (h *Handler) GetQuery(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.store.GetQueryConfig(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, queryDetail{
		querySummary: querySummary{
			ID:             cfg.ID,
			Name:           cfg.Name,
			Description:    cfg.Description,
			Category:       cfg.Category,
			AllowDrillDown: cfg.AllowDrillDown,
			Tags:           cfg.Tags,
		},
		Parameters:       cfg.Parameters,
		DrillDownQueryID: cfg.DrillDownQueryID,
		CacheTTLSeconds:  cfg.CacheTTLSeconds,
	})
}

type buildSQLRequest struct {
	Parameters map[string]string `json:"parameters"`
}

type buildSQLResponse struct {
	SQL string `json:"sql"`
}

// BuildQuerySQL resolves a configured query template and runs the result
// through the authorization pipeline. The returned SQL already carries the
// user's row-level security predicates.
func (h *Handler) BuildQuerySQL(w http.ResponseWriter, r *http.Request) {
	user, ok := domain.UserFromContext(r.Context())
	if !ok {
		writeError(w, domain.ErrAuthentication("missing authentication token"))
		return
	}

	var req buildSQLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, domain.ErrValidation("invalid request body: %v", err))
		return
	}

	sql, err := h.store.BuildQueryFromTemplate(r.Context(), chi.URLParam(r, "id"), req.Parameters)
	if err != nil {
		writeError(w, err)
		return
	}

	authorized, err := h.pipeline.AuthorizeQuery(r.Context(), sql, user)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, buildSQLResponse{SQL: authorized})
}

func (h *Handler) ListFilters(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	configs, err := h.store.GetFilterConfigs(r.Context(), q.Get("type"), q.Get("tab"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, configs)
}

func (h *Handler) ListVisualizations(w http.ResponseWriter, r *http.Request) {
	configs, err := h.store.GetVizConfigs(r.Context(), r.URL.Query().Get("tab"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, configs)
}

// ClearCaches drops permission, configuration, and session caches. The next
// request re-resolves everything from the stores.
func (h *Handler) ClearCaches(w http.ResponseWriter, r *http.Request) {
	h.engine.ClearCache()
	h.store.ClearCache()
	h.gateway.ClearSessions()
	if user, ok := domain.UserFromContext(r.Context()); ok {
		h.logger.Info("caches cleared", "by", user.Email)
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func sortedMembers(set domain.StringSet) []string {
	out := make([]string, 0, len(set))
	for member := range set {
		out = append(out, member)
	}
	sort.Strings(out)
	return out
}
