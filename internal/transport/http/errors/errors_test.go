package errors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pribylovaa/books-auth/internal/service"
	"github.com/stretchr/testify/require"
)

func TestToHTTP_Mapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{name: "nil", err: nil, status: http.StatusInternalServerError, code: "internal"},
		{name: "invalid_input", err: service.ErrInvalidInput, status: http.StatusBadRequest, code: "invalid_input"},
		{name: "incorrect_old_password", err: service.ErrIncorrectOldPassword, status: http.StatusBadRequest, code: "incorrect_old_password"},
		{name: "duplicate", err: service.ErrDuplicateUser, status: http.StatusConflict, code: "already_exists"},
		{name: "user_not_found", err: service.ErrUserNotFound, status: http.StatusUnauthorized, code: "unauthorized"},
		{name: "incorrect_password", err: service.ErrIncorrectPassword, status: http.StatusUnauthorized, code: "unauthorized"},
		{name: "signature", err: service.ErrSignatureInvalid, status: http.StatusUnauthorized, code: "unauthorized"},
		{name: "expired", err: service.ErrExpired, status: http.StatusUnauthorized, code: "unauthorized"},
		{name: "revoked", err: service.ErrRevoked, status: http.StatusUnauthorized, code: "unauthorized"},
		{name: "malformed", err: service.ErrMalformedToken, status: http.StatusUnauthorized, code: "unauthorized"},
		{name: "wrong_kind", err: service.ErrWrongTokenKind, status: http.StatusUnauthorized, code: "unauthorized"},
		{name: "unauthorized", err: service.ErrUnauthorized, status: http.StatusUnauthorized, code: "unauthorized"},
		{name: "forbidden", err: service.ErrForbidden, status: http.StatusForbidden, code: "forbidden"},
		{name: "profile_not_found", err: service.ErrProfileNotFound, status: http.StatusNotFound, code: "not_found"},
		{name: "storage", err: service.ErrStorage, status: http.StatusInternalServerError, code: "internal"},
		{name: "canceled", err: context.Canceled, status: StatusClientClosedRequest, code: "canceled"},
		{name: "deadline", err: context.DeadlineExceeded, status: http.StatusGatewayTimeout, code: "deadline_exceeded"},
		{name: "wrapped", err: fmt.Errorf("service.auth.Login: %w", service.ErrIncorrectPassword), status: http.StatusUnauthorized, code: "unauthorized"},
		{name: "unknown", err: fmt.Errorf("boom"), status: http.StatusInternalServerError, code: "internal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			status, resp := ToHTTP(tt.err)
			require.Equal(t, tt.status, status)
			require.Equal(t, tt.code, resp.Error.Code)
			require.NotEmpty(t, resp.Error.Message)
		})
	}
}

// TestToHTTP_AuthFailuresIndistinguishable — клиент не различает
// неизвестного пользователя и неверный пароль.
func TestToHTTP_AuthFailuresIndistinguishable(t *testing.T) {
	t.Parallel()

	s1, r1 := ToHTTP(service.ErrUserNotFound)
	s2, r2 := ToHTTP(service.ErrIncorrectPassword)

	require.Equal(t, s1, s2)
	require.Equal(t, r1, r2)
}

func TestWriteError_Envelope(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/profile/alice", nil)
	req.Header.Set("X-Request-Id", "rid-1")
	rr := httptest.NewRecorder()

	WriteError(rr, req, service.ErrRevoked)

	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	require.Contains(t, rr.Header().Get("WWW-Authenticate"), "Bearer")

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, "unauthorized", resp.Error.Code)
	require.Equal(t, "rid-1", resp.Error.RequestID)
}

func TestWriteError_NoRequestID(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodPost, "/auth/register", nil)
	rr := httptest.NewRecorder()

	WriteError(rr, req, service.ErrDuplicateUser)

	require.Equal(t, http.StatusConflict, rr.Code)
	require.Empty(t, rr.Header().Get("WWW-Authenticate"))

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Empty(t, resp.Error.RequestID)
}
