// Package auth resolves bearer tokens to users and carries the caller's
// identity and cart session through a request context.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/cicadacove/storefront/internal/domain"
	"github.com/redis/go-redis/v9"
)

var ErrInvalidToken = errors.New("invalid or expired session token")

const sessionKeyPrefix = "session:"

// SessionResolver maps bearer tokens issued by the identity provider to user ids.
type SessionResolver struct {
	client redis.UniversalClient
}

func NewSessionResolver(client redis.UniversalClient) *SessionResolver {
	return &SessionResolver{client: client}
}

func (r *SessionResolver) Resolve(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrInvalidToken
	}
	userID, err := r.client.Get(ctx, sessionKeyPrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrInvalidToken
	}
	if err != nil {
		return "", fmt.Errorf("resolve session: %w", err)
	}
	if userID == "" {
		return "", ErrInvalidToken
	}
	return userID, nil
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

type ctxKey int

const (
	userKey ctxKey = iota
	profileKey
	cartSessionKey
)

func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userKey, userID)
}

// UserID returns the signed-in user, or "" for anonymous callers.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(userKey).(string)
	return id
}

func WithProfile(ctx context.Context, p *domain.Profile) context.Context {
	return context.WithValue(ctx, profileKey, p)
}

func Profile(ctx context.Context) *domain.Profile {
	p, _ := ctx.Value(profileKey).(*domain.Profile)
	return p
}

func WithCartSession(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, cartSessionKey, sessionID)
}

func CartSession(ctx context.Context) string {
	id, _ := ctx.Value(cartSessionKey).(string)
	return id
}
