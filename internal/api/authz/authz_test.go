package authz

import (
	"context"
	"errors"
	"testing"
)

func TestRequireTeamAccessUnauthenticated(t *testing.T) {
	err := RequireTeamAccess(context.Background(), 1)
	if !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestRequireTeamAccessOtherCoachForbidden(t *testing.T) {
	ctx := ContextWithUser(context.Background(), &AuthUser{ID: 10, Role: RoleCoach})

	err := RequireTeamAccess(ctx, 11)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestRequireTeamAccessOwnCoachAllowed(t *testing.T) {
	ctx := ContextWithUser(context.Background(), &AuthUser{ID: 10, Role: RoleCoach})

	if err := RequireTeamAccess(ctx, 10); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestRequireTeamAccessAdminAllowed(t *testing.T) {
	ctx := ContextWithUser(context.Background(), &AuthUser{ID: 1, Role: RoleAdmin})

	if err := RequireTeamAccess(ctx, 99); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestRequireAdmin(t *testing.T) {
	if err := RequireAdmin(context.Background()); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
	coach := ContextWithUser(context.Background(), &AuthUser{ID: 2, Role: RoleCoach})
	if err := RequireAdmin(coach); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	admin := ContextWithUser(context.Background(), &AuthUser{ID: 3, Role: RoleAdmin})
	if err := RequireAdmin(admin); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestNormalizeRole(t *testing.T) {
	tests := map[string]string{
		"admin":   RoleAdmin,
		" ADMIN ": RoleAdmin,
		"coach":   RoleCoach,
		"owner":   RoleCoach,
		"":        RoleCoach,
	}
	for input, want := range tests {
		if got := NormalizeRole(input); got != want {
			t.Errorf("NormalizeRole(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestUserFromContextNil(t *testing.T) {
	//nolint:staticcheck
	if UserFromContext(nil) != nil {
		t.Fatal("expected nil user for nil context")
	}
	if UserFromContext(context.Background()) != nil {
		t.Fatal("expected nil user for empty context")
	}
}
