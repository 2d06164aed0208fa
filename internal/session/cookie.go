package session

import (
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CookieCodec carries the session ID in an HS256-signed token so clients
// cannot forge or swap session references. A cookie that fails signature or
// expiry checks is treated as no session at all.
type CookieCodec struct {
	name   string
	secret []byte
}

type cookieClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

func NewCookieCodec(name string, secret []byte) *CookieCodec {
	return &CookieCodec{name: name, secret: secret}
}

// Encode builds the session cookie. Persistent sessions get a Max-Age
// matching the server-side TTL; others expire with the browser session.
func (cc *CookieCodec) Encode(sessionID string, persistent bool, ttl time.Duration) (*http.Cookie, error) {
	claims := cookieClaims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(cc.secret)
	if err != nil {
		return nil, err
	}

	cookie := &http.Cookie{
		Name:     cc.name,
		Value:    signed,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if persistent {
		cookie.MaxAge = int(ttl.Seconds())
	}
	return cookie, nil
}

// Decode extracts the session ID from the request cookie.
// Returns ("", false) when the cookie is absent, tampered or expired.
func (cc *CookieCodec) Decode(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(cc.name)
	if err != nil {
		return "", false
	}

	claims := &cookieClaims{}
	token, err := jwt.ParseWithClaims(cookie.Value, claims, func(t *jwt.Token) (any, error) {
		return cc.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid || claims.SessionID == "" {
		return "", false
	}
	return claims.SessionID, true
}

// Expired returns a cookie that instructs the client to drop the session.
func (cc *CookieCodec) Expired() *http.Cookie {
	return &http.Cookie{
		Name:     cc.name,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	}
}
