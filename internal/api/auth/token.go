package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/codr1/touchline/internal/api/authz"
)

const (
	DefaultTokenTTL = 8 * time.Hour
	bearerPrefix    = "Bearer "
)

var (
	ErrTokenMissing   = errors.New("auth token missing")
	ErrTokenInvalid   = errors.New("invalid auth token")
	ErrTokenExpired   = errors.New("auth token expired")
	errSecretRequired = errors.New("token secret is required")
)

type tokenClaims struct {
	UserID    int64  `json:"user_id"`
	Role      string `json:"role"`
	ExpiresAt int64  `json:"exp"`
}

// TokenIssuer signs and verifies bearer tokens of the form
// base64url(json claims) "." base64url(hmac-sha256).
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenIssuer(secret string, ttl time.Duration) (*TokenIssuer, error) {
	if secret == "" {
		return nil, errSecretRequired
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

func (ti *TokenIssuer) Issue(user *authz.AuthUser) (string, time.Time, error) {
	if user == nil || user.ID <= 0 {
		return "", time.Time{}, errors.New("token requires a user")
	}
	expiresAt := ti.now().Add(ti.ttl)
	payload, err := json.Marshal(tokenClaims{
		UserID:    user.ID,
		Role:      authz.NormalizeRole(user.Role),
		ExpiresAt: expiresAt.Unix(),
	})
	if err != nil {
		return "", time.Time{}, err
	}
	encodedPayload := base64.RawURLEncoding.EncodeToString(payload)
	return encodedPayload + "." + ti.sign(encodedPayload), expiresAt, nil
}

func (ti *TokenIssuer) Parse(token string) (*authz.AuthUser, error) {
	encodedPayload, signature, ok := strings.Cut(token, ".")
	if !ok || encodedPayload == "" || signature == "" {
		return nil, ErrTokenInvalid
	}
	if !hmac.Equal([]byte(signature), []byte(ti.sign(encodedPayload))) {
		return nil, ErrTokenInvalid
	}

	payload, err := base64.RawURLEncoding.DecodeString(encodedPayload)
	if err != nil {
		return nil, ErrTokenInvalid
	}
	var claims tokenClaims
	if err := json.Unmarshal(payload, &claims); err != nil || claims.UserID <= 0 {
		return nil, ErrTokenInvalid
	}
	if claims.ExpiresAt <= ti.now().Unix() {
		return nil, ErrTokenExpired
	}

	return &authz.AuthUser{
		ID:   claims.UserID,
		Role: authz.NormalizeRole(claims.Role),
	}, nil
}

// FromRequest reads the Authorization header. A request without one
// returns ErrTokenMissing.
func (ti *TokenIssuer) FromRequest(r *http.Request) (*authz.AuthUser, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return nil, ErrTokenMissing
	}
	if len(header) <= len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return nil, ErrTokenInvalid
	}
	return ti.Parse(strings.TrimSpace(header[len(bearerPrefix):]))
}

func (ti *TokenIssuer) sign(payload string) string {
	mac := hmac.New(sha256.New, ti.secret)
	_, _ = mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
