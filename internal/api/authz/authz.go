package authz

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
)

const (
	RoleCoach = "coach"
	RoleAdmin = "admin"
)

type AuthUser struct {
	ID   int64
	Role string
}

type userContextKey struct{}

func ContextWithUser(ctx context.Context, user *AuthUser) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// UserFromContext retrieves the AuthUser stored in ctx.
// It returns nil if ctx is nil, if no user is stored, or if the stored value has a different type.
func UserFromContext(ctx context.Context) *AuthUser {
	if ctx == nil {
		return nil
	}

	user, ok := ctx.Value(userContextKey{}).(*AuthUser)
	if !ok {
		return nil
	}

	return user
}

// NormalizeRole maps unknown roles to coach, the least privileged role.
func NormalizeRole(role string) string {
	if strings.EqualFold(strings.TrimSpace(role), RoleAdmin) {
		return RoleAdmin
	}
	return RoleCoach
}

func IsAdmin(user *AuthUser) bool {
	return user != nil && user.Role == RoleAdmin
}

func RequireAuthenticated(ctx context.Context) (*AuthUser, error) {
	user := UserFromContext(ctx)
	if user == nil {
		return nil, ErrUnauthenticated
	}
	return user, nil
}

func RequireAdmin(ctx context.Context) error {
	user, err := RequireAuthenticated(ctx)
	if err != nil {
		return err
	}
	if !IsAdmin(user) {
		return ErrForbidden
	}
	return nil
}

// RequireTeamAccess allows admins and the team's own coach.
func RequireTeamAccess(ctx context.Context, coachUserID int64) error {
	user, err := RequireAuthenticated(ctx)
	if err != nil {
		return err
	}
	if IsAdmin(user) || user.ID == coachUserID {
		return nil
	}
	return ErrForbidden
}
