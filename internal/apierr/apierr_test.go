package apierr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(Invalid("bad %s", "date")))
	assert.Equal(t, http.StatusNotFound, HTTPStatus(fmt.Errorf("wrapped: %w", NotFound("child"))))
	assert.Equal(t, http.StatusForbidden, HTTPStatus(Forbidden("no")))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("disk full")))
}

func TestWriteKeepsStorageMessage(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", nil)

	Write(c, errors.New("database is locked"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var got body
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, CodeInternal, got.Error.Code)
	assert.Equal(t, "database is locked", got.Error.Message)
}

func TestFromValidationUsesJSONNames(t *testing.T) {
	type input struct {
		Status string `json:"status" validate:"oneof=PRESENT ABSENT"`
		Born   string `json:"dob" validate:"required"`
	}
	v := NewValidator()

	err := FromValidation(v.Struct(input{Status: "SICK", Born: "x"}))
	assert.Equal(t, CodeInvalidArgument, CodeOf(err))
	assert.Contains(t, err.Error(), "status must be one of [PRESENT ABSENT]")

	err = FromValidation(v.Struct(input{Status: "ABSENT"}))
	assert.Contains(t, err.Error(), "dob is required")
}
