package dto

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		expected int
	}{
		{"not found", ErrCodeNotFound, http.StatusNotFound},
		{"quota exceeded", ErrCodeQuotaExceeded, http.StatusTooManyRequests},
		{"rate limited", ErrCodeRateLimited, http.StatusTooManyRequests},
		{"usage commit failed", ErrCodeUsageCommitFailed, http.StatusInternalServerError},
		{"validation", ErrCodeValidation, http.StatusBadRequest},
		{"conflict", ErrCodeConflict, http.StatusConflict},
		{"unknown code falls back to 500", "ERR_SOMETHING_ELSE", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetHTTPStatus(tt.code))
		})
	}
}

func TestNormalizeErrorCode(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		expected string
	}{
		{"domain not found", "NOT_FOUND", ErrCodeNotFound},
		{"domain quota exceeded", "QUOTA_EXCEEDED", ErrCodeQuotaExceeded},
		{"domain quota key unknown", "QUOTA_KEY_UNKNOWN", ErrCodeInvalidInput},
		{"domain commit failed", "USAGE_COMMIT_FAILED", ErrCodeUsageCommitFailed},
		{"already normalized", ErrCodeNotFound, ErrCodeNotFound},
		{"unknown code passes through", "CUSTOM_CODE", "CUSTOM_CODE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeErrorCode(tt.code))
		})
	}
}

func TestNewErrorResponseWithRequestID(t *testing.T) {
	resp := NewErrorResponseWithRequestID(ErrCodeNotFound, "profile not found", "req-123")

	assert.False(t, resp.Success)
	assert.Nil(t, resp.Data)
	assert.Equal(t, ErrCodeNotFound, resp.Error.Code)
	assert.Equal(t, "profile not found", resp.Error.Message)
	assert.Equal(t, "req-123", resp.Error.RequestID)
}

func TestNewValidationErrorResponse(t *testing.T) {
	details := []ValidationDetail{
		{Field: "quota_key", Message: "must be one of generate, publish"},
	}
	resp := NewValidationErrorResponse("Request validation failed", "req-456", details)

	assert.False(t, resp.Success)
	assert.Equal(t, ErrCodeValidation, resp.Error.Code)
	assert.Len(t, resp.Error.Details, 1)
	assert.Equal(t, "quota_key", resp.Error.Details[0].Field)
}
