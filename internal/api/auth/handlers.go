package auth

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/touchline/internal/api/apiutil"
	"github.com/codr1/touchline/internal/api/authz"
	"github.com/codr1/touchline/internal/db/dbgen"
	"github.com/codr1/touchline/internal/ratelimit"
)

const authQueryTimeout = 5 * time.Second

var (
	queries    *dbgen.Queries
	tokens     *TokenIssuer
	limiter    *ratelimit.Limiter
	trustProxy bool
)

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type userResponse struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

type loginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      userResponse `json:"user"`
}

// InitHandlers must be called during server startup before handling requests.
func InitHandlers(q *dbgen.Queries, issuer *TokenIssuer, l *ratelimit.Limiter, trustProxyHeaders bool) {
	queries = q
	tokens = issuer
	limiter = l
	trustProxy = trustProxyHeaders
}

// Tokens returns the issuer configured by InitHandlers.
func Tokens() *TokenIssuer {
	return tokens
}

func toUserResponse(user dbgen.User) userResponse {
	return userResponse{
		ID:    user.ID,
		Email: user.Email,
		Name:  user.Name,
		Role:  authz.NormalizeRole(user.Role),
	}
}

// POST /api/auth/login
func HandleLogin(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	if queries == nil || tokens == nil {
		logger.Error().Msg("Auth handlers not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	var req loginRequest
	if err := apiutil.DecodeAndValidate(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	ip := ratelimit.GetClientIP(r, trustProxy)

	if limiter != nil {
		if result := limiter.CheckLogin(email, ip); !result.Allowed {
			ratelimit.LogRateLimitExceeded(email, ip, result.Reason)
			w.Header().Set("Retry-After", strconv.Itoa(int(result.RetryAfter.Seconds())+1))
			http.Error(w, "Too many login attempts. Try again later.", http.StatusTooManyRequests)
			return
		}
		limiter.RecordAttempt(ip)
	}

	ctx, cancel := context.WithTimeout(r.Context(), authQueryTimeout)
	defer cancel()

	user, err := queries.GetUserByEmail(ctx, email)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		logger.Error().Err(err).Msg("Failed to load user for login")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if err != nil || !VerifyPassword(user.PasswordHash, req.Password) {
		if limiter != nil && limiter.RecordFailure(email) {
			logger.Warn().Str("identifier", ratelimit.SanitizeIdentifier(email)).Msg("Login locked after repeated failures")
		}
		http.Error(w, "Invalid email or password", http.StatusUnauthorized)
		return
	}
	if limiter != nil {
		limiter.Reset(email)
	}

	token, expiresAt, err := tokens.Issue(&authz.AuthUser{ID: user.ID, Role: user.Role})
	if err != nil {
		logger.Error().Err(err).Int64("user_id", user.ID).Msg("Failed to issue token")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	logger.Info().Int64("user_id", user.ID).Msg("User logged in")
	if err := apiutil.WriteJSON(w, http.StatusOK, loginResponse{
		Token:     token,
		ExpiresAt: expiresAt.UTC(),
		User:      toUserResponse(user),
	}); err != nil {
		logger.Error().Err(err).Msg("Failed to write login response")
	}
}

// GET /api/auth/me
func HandleMe(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	authUser, err := authz.RequireAuthenticated(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if queries == nil {
		logger.Error().Msg("Database queries not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), authQueryTimeout)
	defer cancel()

	user, err := queries.GetUserByID(ctx, authUser.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		logger.Error().Err(err).Int64("user_id", authUser.ID).Msg("Failed to load current user")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	if err := apiutil.WriteJSON(w, http.StatusOK, toUserResponse(user)); err != nil {
		logger.Error().Err(err).Msg("Failed to write user response")
	}
}
