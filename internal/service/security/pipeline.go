package security

import (
	"context"

	"lakeboard/internal/domain"
)

// Pipeline is the single choke point through which every configuration-driven
// or ad-hoc query passes before execution.
type Pipeline struct {
	engine *Engine
	audit  domain.AuditSink
}

func NewPipeline(engine *Engine, audit domain.AuditSink) *Pipeline {
	return &Pipeline{engine: engine, audit: audit}
}

// AuthorizeQuery validates table-level permissions, injects row-level
// security, and returns the rewritten SQL for execution. Exactly one audit
// event is emitted per invocation; repeated calls with the same SQL are
// independent decisions, since access can change between calls.
func (p *Pipeline) AuthorizeQuery(ctx context.Context, sql string, user *domain.UserContext) (string, error) {
	ok, reason := p.engine.ValidateQueryPermissions(ctx, sql, user)
	if !ok {
		p.emit(ctx, user, false)
		return "", domain.ErrAccessDeniedOn("query", "execute", "%s", reason)
	}

	rewritten := p.engine.InjectRowLevelSecurity(sql, user, nil)

	p.emit(ctx, user, true)
	return rewritten, nil
}

func (p *Pipeline) emit(ctx context.Context, user *domain.UserContext, granted bool) {
	if p.audit == nil {
		return
	}
	p.audit.Record(ctx, domain.AccessEvent{
		UserEmail: user.Email,
		UserID:    user.UserID,
		Resource:  "query",
		Action:    "execute",
		Granted:   granted,
		Groups:    user.Groups,
	})
}
