package errors

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(t *testing.T, h gin.HandlerFunc) (*httptest.ResponseRecorder, APIError) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	h(c)

	var body APIError
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w, body
}

func TestHelpers_StatusAndDefaultMessage(t *testing.T) {
	tests := []struct {
		name    string
		h       gin.HandlerFunc
		status  int
		code    string
		message string
	}{
		{"unauthorized", func(c *gin.Context) { Unauthorized(c, "") }, http.StatusUnauthorized, ErrCodeUnauthorized, "Authentication required"},
		{"access denied", func(c *gin.Context) { AccessDenied(c, "") }, http.StatusForbidden, ErrCodeAccessDenied, "Requested view is outside your scope"},
		{"not found custom", func(c *gin.Context) { NotFound(c, "Task not found") }, http.StatusNotFound, ErrCodeNotFound, "Task not found"},
		{"conflict", func(c *gin.Context) { VersionConflict(c, "") }, http.StatusConflict, ErrCodeVersionConflict, "Resource was modified by someone else"},
		{"unavailable", func(c *gin.Context) { ServiceUnavailable(c, "") }, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Service temporarily unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, body := record(t, tt.h)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, body.Code)
			assert.Equal(t, tt.message, body.Message)
		})
	}
}

func TestPasswordChangeRequired_AbortsWithState(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	PasswordChangeRequired(c, "FORCED_CHANGE_REQUIRED")

	assert.True(t, c.IsAborted())
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.JSONEq(t, `{"code":"PASSWORD_CHANGE_REQUIRED","message":"Password must be changed before continuing","details":{"state":"FORCED_CHANGE_REQUIRED"}}`, w.Body.String())
}

func TestValidationFailed_NamesField(t *testing.T) {
	w, body := record(t, func(c *gin.Context) { ValidationFailed(c, "title", "title is required") })
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, map[string]interface{}{"field": "title"}, body.Details)
}

func TestStatus_UnknownCodeIsInternal(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, NewAPIError("SOMETHING_ELSE", "x").Status())
}
