package domain

import (
	"strings"
	"time"
)

// DefaultSessionMaxAge is the default window for IsSessionValid.
const DefaultSessionMaxAge = 60 * time.Minute

// Role names derived from group membership at authentication time.
const (
	RoleDashboardAdmin = "dashboard_admin"
	RoleQueryAdmin     = "query_admin"
	RoleFilterAdmin    = "filter_admin"
	RoleAnalyst        = "analyst"
	RoleViewer         = "viewer"
)

// adminGroups are group names that confer admin, compared case-insensitively.
var adminGroups = []string{"admins", "account admins", "workspace admins", "dashboard_admins"}

// analystGroups are group names that confer the analyst role.
var analystGroups = []string{"analysts", "data_analysts", "analytics_team"}

// UserContext is an authenticated identity plus role flags derived once at
// authentication time. It is immutable after construction.
type UserContext struct {
	Email       string
	UserID      string
	DisplayName string
	Groups      []string
	Roles       []string

	IsAdmin   bool
	IsAnalyst bool
	IsViewer  bool

	SessionID       string
	AuthenticatedAt time.Time
}

// NewUserContext builds a UserContext from a resolved identity, deriving the
// admin/analyst/viewer flags and role list from group membership.
func NewUserContext(email, userID string, groups []string, sessionID string, now time.Time) *UserContext {
	isAdmin, isAnalyst, isViewer := rolesFromGroups(groups)

	var roles []string
	if isAdmin {
		roles = append(roles, RoleDashboardAdmin, RoleQueryAdmin, RoleFilterAdmin)
	}
	if isAnalyst {
		roles = append(roles, RoleAnalyst)
	}
	if isViewer {
		roles = append(roles, RoleViewer)
	}

	displayName := email
	if at := strings.IndexByte(email, '@'); at > 0 {
		displayName = email[:at]
	}

	return &UserContext{
		Email:           email,
		UserID:          userID,
		DisplayName:     displayName,
		Groups:          groups,
		Roles:           roles,
		IsAdmin:         isAdmin,
		IsAnalyst:       isAnalyst,
		IsViewer:        isViewer,
		SessionID:       sessionID,
		AuthenticatedAt: now,
	}
}

// rolesFromGroups derives (admin, analyst, viewer) from group membership.
// Admin implies analyst; any group membership implies viewer.
func rolesFromGroups(groups []string) (isAdmin, isAnalyst, isViewer bool) {
	lowered := make(map[string]bool, len(groups))
	for _, g := range groups {
		lowered[strings.ToLower(g)] = true
	}

	for _, g := range adminGroups {
		if lowered[g] {
			isAdmin = true
			break
		}
	}
	for _, g := range analystGroups {
		if lowered[g] {
			isAnalyst = true
			break
		}
	}
	isAnalyst = isAnalyst || isAdmin
	isViewer = len(groups) > 0 || isAnalyst

	return isAdmin, isAnalyst, isViewer
}

// HasGroup reports whether the user belongs to the named group.
func (u *UserContext) HasGroup(group string) bool {
	for _, g := range u.Groups {
		if g == group {
			return true
		}
	}
	return false
}

// HasRole reports whether the user carries the named role. Admins hold every
// role implicitly.
func (u *UserContext) HasRole(role string) bool {
	if u.IsAdmin {
		return true
	}
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsSessionValid reports whether the session is younger than maxAge.
// The session validity window is independent of any credential cache TTL;
// callers that require a fresh session must check this explicitly.
func (u *UserContext) IsSessionValid(maxAge time.Duration, now time.Time) bool {
	if maxAge <= 0 {
		maxAge = DefaultSessionMaxAge
	}
	return now.Sub(u.AuthenticatedAt) < maxAge
}
