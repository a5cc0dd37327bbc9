package benevolence

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/SlpAus/standing-backend/internal/user"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type membershipResponse struct {
	Message     string    `json:"message"`
	Error       string    `json:"error"`
	Benevolence OwnerView `json:"benevolence"`
}

func newTestRouter(t *testing.T, names ...string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	engine, _ := newTestEngine(t, names...)
	h := NewHandler(engine)

	// 测试中用请求头代替会话中间件
	asActor := func(c *gin.Context) {
		if id := c.GetHeader("X-Actor"); id != "" {
			c.Set(user.ActorIDKey, id)
		}
	}

	r := gin.New()
	g := r.Group("/api/benevolence", asActor)
	g.GET("", h.GetByAuthor)
	g.GET("/mine", h.GetMine)
	g.PUT("/nominate", h.Nominate)
	g.PUT("/report", h.Report)
	return r
}

func do(r *gin.Engine, method, path, actor, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if actor != "" {
		req.Header.Set("X-Actor", actor)
	}
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) membershipResponse {
	t.Helper()
	var resp membershipResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestNominateHandler(t *testing.T) {
	r := newTestRouter(t, "alice", "b1", "b2", "b3", "b4")

	w := do(r, http.MethodPut, "/api/benevolence/nominate", "u-alice", `{"user":"b1"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	resp := decode(t, w)
	assert.NotEmpty(t, resp.Message)
	assert.Equal(t, []string{"b1"}, resp.Benevolence.MyVotes)
	assert.Equal(t, 2, resp.Benevolence.VotesLeft)

	w = do(r, http.MethodPut, "/api/benevolence/nominate", "u-alice", `{"user":"b1"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	do(r, http.MethodPut, "/api/benevolence/nominate", "u-alice", `{"user":"b2"}`)
	do(r, http.MethodPut, "/api/benevolence/nominate", "u-alice", `{"user":"b3"}`)
	w = do(r, http.MethodPut, "/api/benevolence/nominate", "u-alice", `{"user":"b4"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)
	resp = decode(t, w)
	assert.NotEmpty(t, resp.Error)
	assert.Len(t, resp.Benevolence.MyVotes, 3)
}

func TestNominateHandlerErrors(t *testing.T) {
	r := newTestRouter(t, "alice")

	tests := []struct {
		name     string
		body     string
		wantCode int
	}{
		{"缺少user字段", `{}`, http.StatusBadRequest},
		{"非法JSON", `{"user":`, http.StatusBadRequest},
		{"用户不存在", `{"user":"nobody"}`, http.StatusNotFound},
		{"提名自己", `{"user":"alice"}`, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, http.MethodPut, "/api/benevolence/nominate", "u-alice", tt.body)
			assert.Equal(t, tt.wantCode, w.Code)
			assert.Contains(t, w.Body.String(), `"error"`)
		})
	}
}

func TestReportHandler(t *testing.T) {
	r := newTestRouter(t, "alice", "bob")

	w := do(r, http.MethodPut, "/api/benevolence/report", "u-alice", `{"user":"bob"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, []string{"bob"}, decode(t, w).Benevolence.MyReports)

	w = do(r, http.MethodPut, "/api/benevolence/report", "u-alice", `{"user":"bob"}`)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGetHandlers(t *testing.T) {
	r := newTestRouter(t, "alice", "bob")
	do(r, http.MethodPut, "/api/benevolence/nominate", "u-alice", `{"user":"bob"}`)

	w := do(r, http.MethodGet, "/api/benevolence?author=bob", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	var public map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &public))
	assert.Equal(t, "bob", public["author"])
	assert.Equal(t, true, public["granted"])
	assert.NotContains(t, public, "myVotes")

	w = do(r, http.MethodGet, "/api/benevolence", "", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodGet, "/api/benevolence/mine", "u-alice", "")
	require.Equal(t, http.StatusOK, w.Code)
	var owner OwnerView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &owner))
	assert.Equal(t, []string{"bob"}, owner.MyVotes)
}
