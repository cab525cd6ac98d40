package child

import (
	"encoding/json"
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

func newRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	svc, _ := newService(t)
	r := gin.New()
	RegisterRoutes(r.Group("/v1", auth.BearerAuth(testKey, testIssuer)), NewHandler(svc))
	return r
}

func call(t *testing.T, r http.Handler, method, path, sub, role, body string) *httptest.ResponseRecorder {
	t.Helper()
	tok, err := auth.Issue(sub, role, testIssuer, testKey, time.Minute)
	require.NoError(t, err)
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestChildRoutes(t *testing.T) {
	r := newRouter(t)

	w := call(t, r, http.MethodPost, "/v1/children", "s1", auth.RoleAssistant, `{"name":"Ada","parentIds":["p1"]}`)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = call(t, r, http.MethodPost, "/v1/children", "a1", auth.RoleAdmin, `{"name":"Ada"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = call(t, r, http.MethodPost, "/v1/children", "a1", auth.RoleAdmin, `{"name":"Ada","dob":"2021-05-04","parentIds":["p1"]}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created Child
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	path := "/v1/children/" + created.ID

	w = call(t, r, http.MethodGet, path, "p1", auth.RoleParent, "")
	assert.Equal(t, http.StatusOK, w.Code)
	w = call(t, r, http.MethodGet, path, "p2", auth.RoleParent, "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = call(t, r, http.MethodGet, "/v1/children/missing", "s1", auth.RoleAssistant, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = call(t, r, http.MethodGet, "/v1/children", "p1", auth.RoleParent, "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = call(t, r, http.MethodGet, "/v1/children", "s1", auth.RoleAssistant, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"name":"Ada"`)

	w = call(t, r, http.MethodGet, "/v1/me/children", "p1", auth.RoleParent, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), created.ID)

	w = call(t, r, http.MethodPatch, path, "a1", auth.RoleAdmin, `{"name":"Ada Lovelace"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Ada Lovelace")

	w = call(t, r, http.MethodDelete, path, "a1", auth.RoleAdmin, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = call(t, r, http.MethodDelete, path, "a1", auth.RoleAdmin, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
