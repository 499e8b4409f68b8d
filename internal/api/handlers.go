package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"agora/internal/adapters/kafka"
	"agora/internal/adapters/postgres"
	"agora/internal/discussion"
	"agora/internal/domain/conversation"
	"agora/internal/domain/knowledge"
	"agora/internal/metrics"
	"agora/internal/workflow"
	"agora/pkg/errors"
	"agora/pkg/logger"
)

// Chatter answers chat messages.
type Chatter interface {
	Run(ctx context.Context, req workflow.Request) (*workflow.Response, error)
}

// Discussions runs standalone discussions.
type Discussions interface {
	RunWith(ctx context.Context, query, related string, opts discussion.Options) (*discussion.Outcome, error)
	Options() discussion.Options
}

// History reads stored conversation turns.
type History interface {
	History(ctx context.Context, sessionID string, limit int) ([]*conversation.Turn, error)
	Sessions(ctx context.Context, userID string) ([]*conversation.SessionSummary, error)
}

// BusinessDB is the read-only business database surface.
type BusinessDB interface {
	Databases() []string
	ListTables(ctx context.Context, database string) ([]string, error)
	TableInfo(ctx context.Context, database, table string) (*postgres.TableInfo, error)
	CountRows(ctx context.Context, database, table string) (int64, error)
	Query(ctx context.Context, database, statement string, params map[string]interface{}) (*postgres.QueryResult, error)
}

// Knowledge is the knowledge store surface.
type Knowledge interface {
	ListCollections(ctx context.Context) ([]*knowledge.Collection, error)
	CreateCollection(ctx context.Context, name, description string) (*knowledge.Collection, error)
	GetCollection(ctx context.Context, name string) (*knowledge.Collection, error)
	AddDocuments(ctx context.Context, collection string, docs []knowledge.NewDocument) ([]*knowledge.Document, error)
	Search(ctx context.Context, collection, query string, limit int) ([]*knowledge.SearchResult, error)
}

// DiscussionSink receives discussion completion events.
type DiscussionSink interface {
	DiscussionCompleted(ctx context.Context, event kafka.DiscussionCompletedEvent)
}

type handlers struct {
	svc Services
	log *logger.Logger
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	Message   string `json:"message" binding:"required"`
}

func (h *handlers) chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	withSession(c, req.SessionID)

	res, err := h.svc.Chat.Run(c.Request.Context(), workflow.Request{
		SessionID: req.SessionID,
		UserID:    req.UserID,
		Message:   req.Message,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type discussionRequest struct {
	SessionID      string   `json:"session_id"`
	Query          string   `json:"query" binding:"required"`
	Context        string   `json:"context"`
	MaxRounds      *int     `json:"max_rounds"`
	ScoreThreshold *float64 `json:"score_threshold"`
}

type discussionResponse struct {
	Transcript       string   `json:"transcript"`
	Score            *float64 `json:"score"`
	RoundsRun        int      `json:"rounds_run"`
	ReachedThreshold bool     `json:"reached_threshold"`
	Outcome          string   `json:"outcome"`
	// Degraded carries the later-round failure that ended the discussion early.
	Degraded string `json:"degraded,omitempty"`
}

func (h *handlers) discuss(c *gin.Context) {
	var req discussionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	withSession(c, req.SessionID)

	opts := h.svc.Discussions.Options()
	if req.MaxRounds != nil {
		opts.MaxRounds = *req.MaxRounds
	}
	if req.ScoreThreshold != nil {
		opts.ScoreThreshold = *req.ScoreThreshold
	}

	outcome, err := h.svc.Discussions.RunWith(c.Request.Context(), req.Query, req.Context, opts)
	h.publishDiscussion(c.Request.Context(), req, outcome, err)
	if err != nil {
		h.fail(c, err)
		return
	}

	res := discussionResponse{
		Transcript:       outcome.Transcript,
		Score:            outcome.Score,
		RoundsRun:        outcome.RoundsRun,
		ReachedThreshold: outcome.ReachedThreshold,
		Outcome:          outcomeLabel(outcome),
	}
	if outcome.Degraded != nil {
		res.Degraded = outcome.Degraded.Error()
	}
	c.JSON(http.StatusOK, res)
}

func (h *handlers) publishDiscussion(ctx context.Context, req discussionRequest, outcome *discussion.Outcome, err error) {
	if h.svc.Events == nil {
		return
	}
	// invalid requests never started a discussion
	if errors.Is(err, errors.ErrInvalidInput) {
		return
	}

	event := kafka.DiscussionCompletedEvent{
		SessionID:   req.SessionID,
		Query:       req.Query,
		Outcome:     metrics.OutcomeFailed,
		CompletedAt: time.Now().UTC(),
	}
	if err != nil {
		event.Error = err.Error()
	} else {
		event.Outcome = outcomeLabel(outcome)
		event.RoundsRun = outcome.RoundsRun
		event.Score = outcome.Score
		event.ReachedThreshold = outcome.ReachedThreshold
		if outcome.Degraded != nil {
			event.Error = outcome.Degraded.Error()
		}
	}
	h.svc.Events.DiscussionCompleted(ctx, event)
}

func outcomeLabel(o *discussion.Outcome) string {
	switch {
	case o == nil:
		return metrics.OutcomeFailed
	case o.Degraded != nil:
		return metrics.OutcomeDegraded
	case o.ReachedThreshold:
		return metrics.OutcomeThreshold
	default:
		return metrics.OutcomeExhausted
	}
}

func (h *handlers) sessionTurns(c *gin.Context) {
	limit, err := intQuery(c, "limit", conversation.DefaultHistoryLimit)
	if err != nil {
		badRequest(c, err)
		return
	}

	turns, err := h.svc.History.History(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	if turns == nil {
		turns = []*conversation.Turn{}
	}
	c.JSON(http.StatusOK, gin.H{"session_id": c.Param("id"), "turns": turns})
}

func (h *handlers) userSessions(c *gin.Context) {
	sessions, err := h.svc.History.Sessions(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if sessions == nil {
		sessions = []*conversation.SessionSummary{}
	}
	c.JSON(http.StatusOK, gin.H{"user_id": c.Param("id"), "sessions": sessions})
}

func (h *handlers) databases(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"databases": h.svc.Business.Databases()})
}

type queryRequest struct {
	SQL      string                 `json:"sql" binding:"required"`
	Params   map[string]interface{} `json:"params"`
	Database string                 `json:"database"`
}

type queryResponse struct {
	Success   bool                     `json:"success"`
	Data      []map[string]interface{} `json:"data"`
	Count     int                      `json:"count"`
	Truncated bool                     `json:"truncated,omitempty"`
	Message   string                   `json:"message"`
}

// query runs a read-only statement. Failures still answer with the result
// envelope so callers can show the database message.
func (h *handlers) query(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, queryResponse{Data: []map[string]interface{}{}, Message: err.Error()})
		return
	}

	res, err := h.svc.Business.Query(c.Request.Context(), req.Database, req.SQL, req.Params)
	if err != nil {
		h.log.Warnw("Query failed", "database", req.Database, "error", err)
		code := http.StatusBadRequest
		if s := statusFor(err); s == http.StatusNotFound || s == http.StatusServiceUnavailable {
			code = s
		}
		c.JSON(code, queryResponse{Data: []map[string]interface{}{}, Message: err.Error()})
		return
	}

	rows := res.Rows
	if rows == nil {
		rows = []map[string]interface{}{}
	}
	c.JSON(http.StatusOK, queryResponse{
		Success:   true,
		Data:      rows,
		Count:     len(rows),
		Truncated: res.Truncated,
		Message:   "query succeeded",
	})
}

func (h *handlers) tables(c *gin.Context) {
	tables, err := h.svc.Business.ListTables(c.Request.Context(), c.Query("database"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if tables == nil {
		tables = []string{}
	}
	c.JSON(http.StatusOK, tables)
}

func (h *handlers) tableInfo(c *gin.Context) {
	info, err := h.svc.Business.TableInfo(c.Request.Context(), c.Query("database"), c.Param("table"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (h *handlers) tableCount(c *gin.Context) {
	table := c.Param("table")
	n, err := h.svc.Business.CountRows(c.Request.Context(), c.Query("database"), table)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"table": table, "count": n})
}

func (h *handlers) listCollections(c *gin.Context) {
	cols, err := h.svc.Knowledge.ListCollections(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	if cols == nil {
		cols = []*knowledge.Collection{}
	}
	c.JSON(http.StatusOK, gin.H{"collections": cols})
}

type createCollectionRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

func (h *handlers) createCollection(c *gin.Context) {
	var req createCollectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	col, err := h.svc.Knowledge.CreateCollection(c.Request.Context(), req.Name, req.Description)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, col)
}

func (h *handlers) getCollection(c *gin.Context) {
	col, err := h.svc.Knowledge.GetCollection(c.Request.Context(), c.Param("name"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, col)
}

type addDocumentsRequest struct {
	Documents []knowledge.NewDocument `json:"documents" binding:"required"`
}

func (h *handlers) addDocuments(c *gin.Context) {
	var req addDocumentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	docs, err := h.svc.Knowledge.AddDocuments(c.Request.Context(), c.Param("name"), req.Documents)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"collection": c.Param("name"), "count": len(docs), "documents": docs})
}

type searchRequest struct {
	Collection string `json:"collection" binding:"required"`
	Query      string `json:"query" binding:"required"`
	Limit      int    `json:"limit"`
}

func (h *handlers) searchKnowledge(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	hits, err := h.svc.Knowledge.Search(c.Request.Context(), req.Collection, req.Query, req.Limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	if hits == nil {
		hits = []*knowledge.SearchResult{}
	}
	c.JSON(http.StatusOK, gin.H{"collection": req.Collection, "results": hits})
}

func intQuery(c *gin.Context, name string, def int) (int, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.NewValidationError(name, "must be a non-negative integer", raw)
	}
	return n, nil
}
