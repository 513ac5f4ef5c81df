package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func requestWithRoles(roles []string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	ctx := context.WithValue(req.Context(), UserRolesKey, roles)
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec)
}

func TestRequireRole_AllowsMatchingRole(t *testing.T) {
	c := requestWithRoles([]string{"professional"})
	called := false
	h := RequireRole("professional")(func(c echo.Context) error {
		called = true
		return nil
	})

	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Error("expected handler to be called")
	}
}

func TestRequireRole_AdminBypass(t *testing.T) {
	c := requestWithRoles([]string{"admin"})
	called := false
	h := RequireRole("professional")(func(c echo.Context) error {
		called = true
		return nil
	})

	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Error("expected admin to bypass role check")
	}
}

func TestRequireRole_RejectsMissingRole(t *testing.T) {
	c := requestWithRoles([]string{"student"})
	h := RequireRole("professional")(func(c echo.Context) error {
		t.Fatal("handler should not be called")
		return nil
	})

	err := h(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected HTTPError, got %v", err)
	}
	if httpErr.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", httpErr.Code)
	}
}

func TestHasRole(t *testing.T) {
	roles := []string{"student", "professional"}
	if !HasRole(roles, "student") {
		t.Error("expected student role to be found")
	}
	if HasRole(roles, "admin") {
		t.Error("did not expect admin role")
	}
	if IsAdmin(roles) {
		t.Error("did not expect IsAdmin to be true")
	}
	if !IsAdmin([]string{"admin"}) {
		t.Error("expected IsAdmin to be true")
	}
}
