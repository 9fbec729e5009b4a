package dto

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetHTTPStatus(t *testing.T) {
	tests := map[string]int{
		ErrCodeValidation:   http.StatusBadRequest,
		ErrCodeUnauthorized: http.StatusUnauthorized,
		ErrCodeNotFound:     http.StatusNotFound,
		ErrCodeForbidden:    http.StatusForbidden,
		ErrCodeRateLimited:  http.StatusTooManyRequests,
		"ERR_SOMETHING_NEW": http.StatusInternalServerError,
	}
	for code, want := range tests {
		assert.Equal(t, want, GetHTTPStatus(code), code)
	}
}

func TestErrorCodesAreMapped(t *testing.T) {
	for code := range ErrorCodeHTTPStatus {
		assert.True(t, strings.HasPrefix(code, "ERR_"), code)
		assert.Equal(t, strings.ToUpper(code), code)
	}
}

func TestErrorResponseJSON(t *testing.T) {
	resp := NewValidationErrorResponse("Request validation failed", "req-1", []ValidationDetail{
		{Field: "platform_type", Message: "This field is required"},
	})

	raw, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, false, decoded["success"])
	assert.NotContains(t, decoded, "data")

	errInfo := decoded["error"].(map[string]any)
	assert.Equal(t, ErrCodeValidation, errInfo["code"])
	assert.Equal(t, "req-1", errInfo["request_id"])
	assert.Len(t, errInfo["details"], 1)
	assert.NotEmpty(t, errInfo["timestamp"])
}

func TestNewSuccessResponse(t *testing.T) {
	resp := NewSuccessResponse(map[string]int{"synced_count": 3})
	assert.True(t, resp.Success)
	assert.Nil(t, resp.Error)

	plain := NewErrorResponse(ErrCodeInternal, "boom")
	assert.Empty(t, plain.Error.RequestID)
}
