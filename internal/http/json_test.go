package httpx

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/sitetrack/sitetrack-api/internal/errors"
)

func TestWriteAppError_StatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"validation", apperrors.ValidationField("password", "too short"), http.StatusBadRequest},
		{"unauthorized", apperrors.Unauthorized("sign in"), http.StatusUnauthorized},
		{"forbidden", apperrors.Forbidden("wrong role"), http.StatusForbidden},
		{"conflict", apperrors.Conflict("busy"), http.StatusConflict},
		{"not found", apperrors.NotFound("missing"), http.StatusNotFound},
		{"plain error", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteAppError(rec, tt.err)
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestWriteAppError_IncludesField(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteAppError(rec, apperrors.ValidationField("confirm_password", "does not match"))
	assert.Contains(t, rec.Body.String(), `"field":"confirm_password"`)
}

func TestDecodeJSON_RejectsUnknownFields(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a","bogus":1}`))
	var dst struct {
		Email string `json:"email"`
	}
	ok := DecodeJSON(rec, req, &dst)
	require.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSafeRedirectPath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/dashboard", "/dashboard"},
		{"/admin?tab=sites", "/admin?tab=sites"},
		{"", "/"},
		{"https://evil.example.com/", "/"},
		{"//evil.example.com", "/"},
		{"dashboard", "/"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, safeRedirectPath(tt.in), "input %q", tt.in)
	}
}
