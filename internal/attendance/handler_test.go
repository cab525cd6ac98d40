package attendance

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kidshive/internal/auth"
)

const (
	testKey    = "test-key"
	testIssuer = "kidshive"
)

type guardianSet map[string]string

func (g guardianSet) IsGuardian(_ context.Context, childID, parentID string) (bool, error) {
	return g[childID] == parentID, nil
}

type stubAudit struct{ entries []DiscardedLog }

func (s stubAudit) ListForChild(context.Context, string) ([]DiscardedLog, error) { return s.entries, nil }

func newTestRouter(st Store) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	v1 := r.Group("/v1", auth.BearerAuth(testKey, testIssuer))
	h := NewHandler(NewService(st, nil, time.UTC), stubAudit{entries: []DiscardedLog{{ID: "01J"}}})
	RegisterRoutes(v1, h, guardianSet{"C1": "parent-1"})
	return r
}

func bearer(t *testing.T, sub, role string) string {
	t.Helper()
	tok, err := auth.Issue(sub, role, testIssuer, testKey, time.Minute)
	require.NoError(t, err)
	return "Bearer " + tok
}

func do(r http.Handler, method, path, authz, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Error.Code
}

func TestGetRangeRoutes(t *testing.T) {
	r := newTestRouter(&fakeStore{})
	staff := bearer(t, "staff-1", auth.RoleAssistant)
	parent := bearer(t, "parent-1", auth.RoleParent)
	stranger := bearer(t, "parent-2", auth.RoleParent)

	w := do(r, http.MethodGet, "/v1/children/C1/attendance?startDate=2024-03-01&endDate=2024-03-31", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(r, http.MethodGet, "/v1/children/C1/attendance?startDate=2024-03-01", staff, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_ARGUMENT", errorCode(t, w))

	w = do(r, http.MethodGet, "/v1/children/C1/attendance?startDate=2024-03-01&endDate=2024-03-31", staff, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = do(r, http.MethodGet, "/v1/children/C1/attendance?startDate=2024-03-01&endDate=2024-03-31", parent, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodGet, "/v1/children/C1/attendance?startDate=2024-03-01&endDate=2024-03-31", stranger, "")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestUpsertRoutes(t *testing.T) {
	st := &fakeStore{}
	r := newTestRouter(st)
	body := `{"date":"2024-03-01","status":"PRESENT","checkIn":"09:00","meals":{"LUNCH":{"food":"pasta","quantity":"GOOD"}}}`

	w := do(r, http.MethodPost, "/v1/children/C1/attendance", bearer(t, "parent-1", auth.RoleParent), body)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Zero(t, st.calls)

	w = do(r, http.MethodPost, "/v1/children/C1/attendance", bearer(t, "staff-1", auth.RoleAssistant), body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var rec Record
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
	assert.Equal(t, "C1", rec.ChildID)
	assert.Equal(t, "2024-03-01", rec.Date)
	require.Len(t, st.lastWrite.Meals, 1)

	w = do(r, http.MethodPost, "/v1/children/C1/attendance", bearer(t, "admin-1", auth.RoleAdmin), `{"date":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpsertStorageFailureIs500(t *testing.T) {
	r := newTestRouter(&fakeStore{err: errors.New("connection refused")})

	w := do(r, http.MethodPost, "/v1/children/C1/attendance", bearer(t, "admin-1", auth.RoleAdmin), `{"date":"2024-03-01"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
}

func TestDiscardedLogsAdminOnly(t *testing.T) {
	r := newTestRouter(&fakeStore{})

	w := do(r, http.MethodGet, "/v1/children/C1/discarded-logs", bearer(t, "staff-1", auth.RoleAssistant), "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(r, http.MethodGet, "/v1/children/C1/discarded-logs", bearer(t, "admin-1", auth.RoleAdmin), "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"id":"01J"`)
}
