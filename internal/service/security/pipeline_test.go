package security

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lakeboard/internal/domain"
)

func newTestPipeline(t *testing.T, privs *stubPrivileges, sink *stubSink) *Pipeline {
	t.Helper()
	var audit domain.AuditSink
	if sink != nil {
		audit = sink
	}
	engine := newTestEngine(t, privs, nil, audit)
	return NewPipeline(engine, audit)
}

func TestPipeline_DeniedQuery(t *testing.T) {
	sink := &stubSink{}
	pipeline := newTestPipeline(t, newStubPrivileges(), sink)

	_, err := pipeline.AuthorizeQuery(context.Background(),
		"SELECT * FROM cat.sch.secret_table", analystUser())

	var denied *domain.AccessDeniedError
	require.ErrorAs(t, err, &denied)
	assert.Contains(t, denied.Message, "Access denied to table cat.sch.secret_table")
	assert.Equal(t, "query", denied.Resource)
	assert.Equal(t, "execute", denied.Privilege)

	events := sink.withAction("execute")
	require.Len(t, events, 1)
	assert.False(t, events[0].Granted)
	assert.Equal(t, "a@b.com", events[0].UserEmail)
}

func TestPipeline_GrantedQueryGetsRLS(t *testing.T) {
	privs := newStubPrivileges()
	privs.grant(domain.SecurableCatalog, "cat", "a@b.com", domain.PrivUsage)
	privs.grant(domain.SecurableSchema, "cat.sch", "a@b.com", domain.PrivUsage)
	privs.grant(domain.SecurableTable, "cat.sch.orders", "a@b.com", domain.PrivSelect)
	sink := &stubSink{}
	pipeline := newTestPipeline(t, privs, sink)

	got, err := pipeline.AuthorizeQuery(context.Background(),
		"SELECT * FROM cat.sch.orders WHERE amount > 10", analystUser())

	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM cat.sch.orders WHERE current_user() = 'a@b.com' AND amount > 10", got)

	events := sink.withAction("execute")
	require.Len(t, events, 1)
	assert.True(t, events[0].Granted)
}

func TestPipeline_AdminPassthrough(t *testing.T) {
	sink := &stubSink{}
	pipeline := newTestPipeline(t, newStubPrivileges(), sink)

	sql := "SELECT * FROM any.place.at_all WHERE 1=1"
	got, err := pipeline.AuthorizeQuery(context.Background(), sql, adminUser())

	require.NoError(t, err)
	assert.Equal(t, sql, got, "admin statements are not rewritten")
	require.Len(t, sink.withAction("execute"), 1)
}

func TestPipeline_ExactlyOneEventPerInvocation(t *testing.T) {
	privs := newStubPrivileges()
	privs.grant(domain.SecurableCatalog, "cat", "a@b.com", domain.PrivUsage)
	privs.grant(domain.SecurableSchema, "cat.sch", "a@b.com", domain.PrivUsage)
	privs.grant(domain.SecurableTable, "cat.sch.orders", "a@b.com", domain.PrivSelect)
	sink := &stubSink{}
	pipeline := newTestPipeline(t, privs, sink)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := pipeline.AuthorizeQuery(ctx, "SELECT * FROM cat.sch.orders", analystUser())
		require.NoError(t, err)
	}

	assert.Len(t, sink.withAction("execute"), 3,
		"each invocation is an independent decision with its own event")
}

func TestPipeline_NilSink(t *testing.T) {
	pipeline := newTestPipeline(t, newStubPrivileges(), nil)

	got, err := pipeline.AuthorizeQuery(context.Background(), "SELECT 1 FROM a.b.c", adminUser())
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1 FROM a.b.c", got)
}
