package auth

import (
	"net/http"
	"regexp"
	"time"

	"github.com/google/uuid"
)

const (
	CartSessionHeader = "X-Cart-Session"
	CartSessionCookie = "cicada-cove-cart"

	cartSessionMaxAge = 90 * 24 * time.Hour
)

var cartSessionPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{8,64}$`)

// CartSessionFrom returns the cart session the client sent, preferring the
// header over the cookie. Malformed values are ignored.
func CartSessionFrom(r *http.Request) string {
	if v := r.Header.Get(CartSessionHeader); cartSessionPattern.MatchString(v) {
		return v
	}
	if c, err := r.Cookie(CartSessionCookie); err == nil && cartSessionPattern.MatchString(c.Value) {
		return c.Value
	}
	return ""
}

func NewCartSession() string {
	return uuid.NewString()
}

// SetCartSession hands the session back to the client as both a cookie and a header.
func SetCartSession(w http.ResponseWriter, sessionID string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CartSessionCookie,
		Value:    sessionID,
		Path:     "/",
		MaxAge:   int(cartSessionMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
	w.Header().Set(CartSessionHeader, sessionID)
}
