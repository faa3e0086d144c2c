package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/cicadacove/storefront/internal/auth"
	"github.com/cicadacove/storefront/internal/domain"
	"github.com/cicadacove/storefront/internal/repository"
	"github.com/sirupsen/logrus"
)

type SessionResolver interface {
	Resolve(ctx context.Context, token string) (string, error)
}

type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (*domain.Profile, error)
}

// Auth attaches the caller's identity to requests and guards admin routes.
type Auth struct {
	sessions SessionResolver
	profiles ProfileStore
	log      logrus.FieldLogger
}

func NewAuth(sessions SessionResolver, profiles ProfileStore, log logrus.FieldLogger) *Auth {
	return &Auth{
		sessions: sessions,
		profiles: profiles,
		log:      log.WithField("component", "auth"),
	}
}

// Authenticate resolves a bearer token when one is sent. Requests without a
// token continue anonymously.
func (a *Auth) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := auth.BearerToken(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		userID, err := a.sessions.Resolve(r.Context(), token)
		if errors.Is(err, auth.ErrInvalidToken) {
			respondError(w, http.StatusUnauthorized, "invalid_token", err.Error())
			return
		}
		if err != nil {
			a.log.WithError(err).Error("session lookup failed")
			respondInternal(w, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.WithUser(r.Context(), userID)))
	})
}

func (a *Auth) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		profile, err := a.profile(r.Context())
		if errors.Is(err, errNoSession) {
			respondError(w, http.StatusUnauthorized, "unauthorized", err.Error())
			return
		}
		if err != nil {
			respondInternal(w, err)
			return
		}
		if !profile.IsAdmin() {
			respondError(w, http.StatusForbidden, "forbidden", "admin role required")
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.WithProfile(r.Context(), profile)))
	})
}

var errNoSession = errors.New("authentication required")

// profile loads the signed-in caller's profile. A caller without a stored
// profile is treated as a plain customer.
func (a *Auth) profile(ctx context.Context) (*domain.Profile, error) {
	if p := auth.Profile(ctx); p != nil {
		return p, nil
	}
	userID := auth.UserID(ctx)
	if userID == "" {
		return nil, errNoSession
	}

	p, err := a.profiles.GetProfile(ctx, userID)
	if errors.Is(err, repository.ErrProfileNotFound) {
		return &domain.Profile{ID: userID, Role: domain.RoleCustomer}, nil
	}
	if err != nil {
		a.log.WithError(err).WithField("user_id", userID).Error("profile lookup failed")
		return nil, err
	}
	return p, nil
}

// CartSession makes sure every request carries a cart session, minting one
// for first-time visitors.
func CartSession(secureCookies bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := auth.CartSessionFrom(r)
			if sessionID == "" {
				sessionID = auth.NewCartSession()
				auth.SetCartSession(w, sessionID, secureCookies)
			}
			next.ServeHTTP(w, r.WithContext(auth.WithCartSession(r.Context(), sessionID)))
		})
	}
}
