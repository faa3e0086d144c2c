package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cicadacove/storefront/internal/auth"
	"github.com/cicadacove/storefront/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoUser() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-User", auth.UserID(r.Context()))
		w.Header().Set("X-Session", auth.CartSession(r.Context()))
		w.WriteHeader(http.StatusNoContent)
	})
}

func newTestAuth(sessions *mockSessions) *Auth {
	profiles := &mockProfiles{profiles: map[string]*domain.Profile{
		"admin-1":    {ID: "admin-1", Role: domain.RoleAdmin},
		"customer-1": {ID: "customer-1", Role: domain.RoleCustomer},
	}}
	return NewAuth(sessions, profiles, quietLogger())
}

func TestAuthenticate(t *testing.T) {
	a := newTestAuth(&mockSessions{tokens: map[string]string{"tok-admin": "admin-1"}})
	handler := a.Authenticate(echoUser())

	t.Run("anonymous", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusNoContent, rec.Code)
		assert.Empty(t, rec.Header().Get("X-User"))
	})

	t.Run("valid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer tok-admin")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "admin-1", rec.Header().Get("X-User"))
	})

	t.Run("unknown token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer stale")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "invalid_token", decodeError(t, rec).Code)
	})

	t.Run("session store down", func(t *testing.T) {
		handler := newTestAuth(&mockSessions{err: errors.New("redis: connection refused")}).Authenticate(echoUser())
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer tok-admin")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestRequireAdmin(t *testing.T) {
	a := newTestAuth(&mockSessions{})
	handler := a.RequireAdmin(echoUser())

	tests := []struct {
		name       string
		userID     string
		wantStatus int
	}{
		{"no session", "", http.StatusUnauthorized},
		{"customer", "customer-1", http.StatusForbidden},
		{"no profile row", "newcomer-1", http.StatusForbidden},
		{"admin", "admin-1", http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.userID != "" {
				req = req.WithContext(auth.WithUser(req.Context(), tt.userID))
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}

	t.Run("profile store down", func(t *testing.T) {
		a := NewAuth(&mockSessions{}, &mockProfiles{err: errors.New("db down")}, quietLogger())
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		a.RequireAdmin(echoUser()).ServeHTTP(rec, req.WithContext(auth.WithUser(req.Context(), "admin-1")))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestCartSessionMiddleware(t *testing.T) {
	handler := CartSession(false)(echoUser())

	t.Run("mints a session for new visitors", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		minted := rec.Header().Get(auth.CartSessionHeader)
		require.NotEmpty(t, minted)
		assert.Equal(t, minted, rec.Header().Get("X-Session"))

		cookies := rec.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, auth.CartSessionCookie, cookies[0].Name)
		assert.Equal(t, minted, cookies[0].Value)
		assert.False(t, cookies[0].Secure)
	})

	t.Run("keeps the session the client sent", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(auth.CartSessionHeader, "existing-session-1")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, "existing-session-1", rec.Header().Get("X-Session"))
		assert.Empty(t, rec.Result().Cookies())
	})
}
