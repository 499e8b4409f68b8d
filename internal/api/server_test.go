package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agora/internal/adapters/kafka"
	"agora/internal/adapters/postgres"
	"agora/internal/api/health"
	"agora/internal/discussion"
	"agora/internal/domain/conversation"
	"agora/internal/domain/knowledge"
	"agora/internal/metrics"
	"agora/internal/workflow"
	"agora/pkg/errors"
	"agora/pkg/logger"
)

type stubChat struct {
	req workflow.Request
	err error
}

func (s *stubChat) Run(_ context.Context, req workflow.Request) (*workflow.Response, error) {
	s.req = req
	if s.err != nil {
		return nil, s.err
	}
	return &workflow.Response{TurnID: uuid.New(), SessionID: "s1", Answer: "hi there"}, nil
}

type stubDiscussions struct {
	opts    discussion.Options
	outcome *discussion.Outcome
	err     error
}

func (s *stubDiscussions) Options() discussion.Options { return discussion.DefaultOptions() }

func (s *stubDiscussions) RunWith(_ context.Context, query, _ string, opts discussion.Options) (*discussion.Outcome, error) {
	s.opts = opts
	if s.err != nil {
		return nil, s.err
	}
	return s.outcome, nil
}

type stubHistory struct {
	turns []*conversation.Turn
	err   error
}

func (s *stubHistory) History(_ context.Context, sessionID string, limit int) ([]*conversation.Turn, error) {
	if s.err != nil {
		return nil, s.err
	}
	if sessionID == "missing" {
		return nil, errors.ErrNotFound
	}
	if limit < len(s.turns) {
		return s.turns[:limit], nil
	}
	return s.turns, nil
}

func (s *stubHistory) Sessions(context.Context, string) ([]*conversation.SessionSummary, error) {
	return nil, nil
}

type stubBusiness struct{}

func (stubBusiness) Databases() []string { return []string{"shop"} }

func (stubBusiness) ListTables(_ context.Context, database string) ([]string, error) {
	if database == "nope" {
		return nil, errors.Wrapf(errors.ErrNotFound, "business database %q", database)
	}
	return []string{"orders", "users"}, nil
}

func (stubBusiness) TableInfo(_ context.Context, database, table string) (*postgres.TableInfo, error) {
	return &postgres.TableInfo{Name: table, Database: "shop", PrimaryKeys: []string{"id"}}, nil
}

func (stubBusiness) CountRows(context.Context, string, string) (int64, error) { return 42, nil }

func (stubBusiness) Query(_ context.Context, _, statement string, _ map[string]interface{}) (*postgres.QueryResult, error) {
	if statement == "DELETE FROM users" {
		return nil, errors.ErrReadOnlyViolation
	}
	return &postgres.QueryResult{Rows: []map[string]interface{}{{"id": 1}, {"id": 2}}}, nil
}

type stubKnowledge struct{}

func (stubKnowledge) ListCollections(context.Context) ([]*knowledge.Collection, error) {
	return nil, nil
}

func (stubKnowledge) CreateCollection(_ context.Context, name, description string) (*knowledge.Collection, error) {
	if name == "dup" {
		return nil, errors.ErrAlreadyExists
	}
	return &knowledge.Collection{Name: name, Description: description}, nil
}

func (stubKnowledge) GetCollection(_ context.Context, name string) (*knowledge.Collection, error) {
	return nil, errors.Wrapf(errors.ErrNotFound, "collection %q", name)
}

func (stubKnowledge) AddDocuments(_ context.Context, _ string, docs []knowledge.NewDocument) ([]*knowledge.Document, error) {
	out := make([]*knowledge.Document, len(docs))
	for i, d := range docs {
		out[i] = &knowledge.Document{ID: uuid.New(), Content: d.Content}
	}
	return out, nil
}

func (stubKnowledge) Search(_ context.Context, _, query string, _ int) ([]*knowledge.SearchResult, error) {
	return []*knowledge.SearchResult{{Document: knowledge.Document{Content: query}, Similarity: 0.9}}, nil
}

type sinkRecorder struct{ events []kafka.DiscussionCompletedEvent }

func (s *sinkRecorder) DiscussionCompleted(_ context.Context, e kafka.DiscussionCompletedEvent) {
	s.events = append(s.events, e)
}

type denyAll struct{}

func (denyAll) AllowKey(context.Context, string) (bool, error) { return false, nil }

func newTestRouter(svc Services) *gin.Engine {
	gin.SetMode(gin.TestMode)
	metrics.Init()
	checks := map[string]health.Checker{"postgres": health.CheckFunc(func(context.Context) error { return nil })}
	return NewRouter(ServerConfig{ServiceName: "agora", Version: "test"}, health.New(checks, "agora", "test"), svc)
}

func do(t *testing.T, r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestChat(t *testing.T) {
	chat := &stubChat{}
	r := newTestRouter(Services{Chat: chat})

	w := do(t, r, http.MethodPost, "/api/chat", map[string]string{"session_id": "s1", "message": "hello"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "hi there", decode(t, w)["answer"])
	assert.Equal(t, "hello", chat.req.Message)
	assert.Equal(t, "s1", chat.req.SessionID)

	w = do(t, r, http.MethodPost, "/api/chat", map[string]string{"session_id": "s1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChatMapsErrors(t *testing.T) {
	r := newTestRouter(Services{Chat: &stubChat{err: errors.Wrap(errors.ErrTimeout, "agent intent_agent")}})
	w := do(t, r, http.MethodPost, "/api/chat", map[string]string{"message": "hello"})
	assert.Equal(t, http.StatusGatewayTimeout, w.Code)

	r = newTestRouter(Services{Chat: &stubChat{err: errors.New("boom")}})
	w = do(t, r, http.MethodPost, "/api/chat", map[string]string{"message": "hello"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal error", decode(t, w)["error"])
}

func TestDiscussion(t *testing.T) {
	score := 8.5
	d := &stubDiscussions{outcome: &discussion.Outcome{Transcript: "[leader_agent]\ndone", Score: &score, RoundsRun: 2, ReachedThreshold: true}}
	sink := &sinkRecorder{}
	r := newTestRouter(Services{Discussions: d, Events: sink})

	w := do(t, r, http.MethodPost, "/api/discussions", map[string]interface{}{"query": "Is Go good?", "max_rounds": 5})
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, "threshold", body["outcome"])
	assert.Equal(t, 8.5, body["score"])
	assert.Equal(t, float64(2), body["rounds_run"])
	assert.Equal(t, 5, d.opts.MaxRounds)
	assert.Equal(t, discussion.DefaultScoreThreshold, d.opts.ScoreThreshold)

	require.Len(t, sink.events, 1)
	assert.Equal(t, metrics.OutcomeThreshold, sink.events[0].Outcome)
	assert.Equal(t, "Is Go good?", sink.events[0].Query)
}

func TestDiscussionDegraded(t *testing.T) {
	d := &stubDiscussions{outcome: &discussion.Outcome{Transcript: "t", RoundsRun: 1, Degraded: errors.New("round 2: judge down")}}
	r := newTestRouter(Services{Discussions: d})

	w := do(t, r, http.MethodPost, "/api/discussions", map[string]interface{}{"query": "q"})
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "degraded", body["outcome"])
	assert.Equal(t, "round 2: judge down", body["degraded"])
	assert.Nil(t, body["score"])
}

func TestDiscussionFailure(t *testing.T) {
	d := &stubDiscussions{err: errors.Wrap(errors.ErrDiscussionFailed, "ensemble down")}
	sink := &sinkRecorder{}
	r := newTestRouter(Services{Discussions: d, Events: sink})

	w := do(t, r, http.MethodPost, "/api/discussions", map[string]interface{}{"query": "q"})
	assert.Equal(t, http.StatusBadGateway, w.Code)
	require.Len(t, sink.events, 1)
	assert.Equal(t, metrics.OutcomeFailed, sink.events[0].Outcome)
	assert.NotEmpty(t, sink.events[0].Error)

	d.err = errors.NewValidationError("max_rounds", "must be at least 1", 0)
	w = do(t, r, http.MethodPost, "/api/discussions", map[string]interface{}{"query": "q", "max_rounds": 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "max_rounds", decode(t, w)["field"])
	assert.Len(t, sink.events, 1)
}

func TestSessionTurns(t *testing.T) {
	h := &stubHistory{turns: []*conversation.Turn{{Query: "a"}, {Query: "b"}, {Query: "c"}}}
	r := newTestRouter(Services{History: h})

	w := do(t, r, http.MethodGet, "/api/sessions/s1/turns?limit=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["turns"], 2)

	w = do(t, r, http.MethodGet, "/api/sessions/s1/turns?limit=x", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodGet, "/api/sessions/missing/turns", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, r, http.MethodGet, "/api/users/u1/sessions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []interface{}{}, decode(t, w)["sessions"])
}

func TestQuery(t *testing.T) {
	r := newTestRouter(Services{Business: stubBusiness{}})

	w := do(t, r, http.MethodPost, "/api/query", map[string]interface{}{"sql": "SELECT id FROM users"})
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(2), body["count"])

	w = do(t, r, http.MethodPost, "/api/query", map[string]interface{}{"sql": "DELETE FROM users"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	body = decode(t, w)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, []interface{}{}, body["data"])
	assert.Contains(t, body["message"], "read-only")
}

func TestTables(t *testing.T) {
	r := newTestRouter(Services{Business: stubBusiness{}})

	w := do(t, r, http.MethodGet, "/api/tables", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var tables []string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tables))
	assert.Equal(t, []string{"orders", "users"}, tables)

	w = do(t, r, http.MethodGet, "/api/tables?database=nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, r, http.MethodGet, "/api/tables/orders/count", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(42), decode(t, w)["count"])

	w = do(t, r, http.MethodGet, "/api/tables/orders/info", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "orders", decode(t, w)["name"])

	w = do(t, r, http.MethodGet, "/api/databases", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []interface{}{"shop"}, decode(t, w)["databases"])
}

func TestKnowledgeRoutes(t *testing.T) {
	r := newTestRouter(Services{Knowledge: stubKnowledge{}})

	w := do(t, r, http.MethodGet, "/api/knowledge/collections", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []interface{}{}, decode(t, w)["collections"])

	w = do(t, r, http.MethodPost, "/api/knowledge/collections", map[string]string{"name": "faq"})
	assert.Equal(t, http.StatusCreated, w.Code)

	w = do(t, r, http.MethodPost, "/api/knowledge/collections", map[string]string{"name": "dup"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, r, http.MethodGet, "/api/knowledge/collections/faq", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, r, http.MethodPost, "/api/knowledge/collections/faq/documents",
		map[string]interface{}{"documents": []map[string]string{{"content": "a"}, {"content": "b"}}})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, float64(2), decode(t, w)["count"])

	w = do(t, r, http.MethodPost, "/api/knowledge/search", map[string]interface{}{"collection": "faq", "query": "refunds"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["results"], 1)
}

func TestRateLimit(t *testing.T) {
	r := newTestRouter(Services{Chat: &stubChat{}, Limiter: denyAll{}})

	w := do(t, r, http.MethodPost, "/api/chat", map[string]string{"message": "hello"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	// health and metrics sit outside the limited group
	w = do(t, r, http.MethodGet, "/live", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestDisabledRoutes(t *testing.T) {
	r := newTestRouter(Services{})

	w := do(t, r, http.MethodPost, "/api/chat", map[string]string{"message": "hello"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, r, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, r, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "running", decode(t, w)["status"])
}

func TestCORS(t *testing.T) {
	r := newTestRouter(Services{Chat: &stubChat{}})

	req := httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

type capturingTracker struct {
	errs     []error
	sessions []string
}

func (c *capturingTracker) CaptureError(ctx context.Context, err error, _ map[string]string) error {
	c.errs = append(c.errs, err)
	id, _ := errors.SessionIDFromContext(ctx)
	c.sessions = append(c.sessions, id)
	return nil
}

func (c *capturingTracker) CaptureMessage(context.Context, string, errors.Level, map[string]string) error {
	return nil
}

func (c *capturingTracker) AddBreadcrumb(context.Context, string, string, errors.Level, map[string]interface{}) {
}

func (c *capturingTracker) Flush(context.Context) error { return nil }

func TestServerErrorsReachErrorTracker(t *testing.T) {
	tracker := &capturingTracker{}
	logger.SetErrorTracker(tracker)
	t.Cleanup(func() { logger.SetErrorTracker(nil) })

	boom := errors.New("boom")
	chat := &stubChat{err: boom}
	h := &stubHistory{err: errors.Wrap(errors.ErrUnavailable, "postgres")}
	r := newTestRouter(Services{Chat: chat, History: h})

	w := do(t, r, http.MethodPost, "/api/chat", map[string]string{"session_id": "s9", "message": "hello"})
	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.Len(t, tracker.errs, 1)
	assert.True(t, errors.Is(tracker.errs[0], boom))
	assert.Equal(t, "s9", tracker.sessions[0])

	// client errors are not reported
	w = do(t, r, http.MethodPost, "/api/chat", map[string]string{"session_id": "s9"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Len(t, tracker.errs, 1)

	w = do(t, r, http.MethodGet, "/api/sessions/s7/turns", nil)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	require.Len(t, tracker.errs, 2)
	assert.True(t, errors.Is(tracker.errs[1], errors.ErrUnavailable))
	assert.Equal(t, "s7", tracker.sessions[1])
}
