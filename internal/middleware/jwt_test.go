package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/freight-load-board/internal/middleware"
)

const testSecret = "unit-test-secret"

func signToken(t *testing.T, secret string, sub uint64, role string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  sub,
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	s, err := tok.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

// probe echoes the context values JWTAuth is expected to set.
func probe(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"user_id": c.Get("user_id"),
		"role":    c.Get("role"),
	})
}

func request(t *testing.T, e *echo.Echo, authHeader string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTAuthAcceptsValidToken(t *testing.T) {
	e := echo.New()
	e.GET("/probe", probe, middleware.JWTAuth(testSecret))

	rec := request(t, e, "Bearer "+signToken(t, testSecret, 7, middleware.RoleDriver))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	if !strings.Contains(body, `"user_id":7`) || !strings.Contains(body, `"role":"DRIVER"`) {
		t.Fatalf("claims not propagated: %s", body)
	}
}

func TestJWTAuthRejectsBadTokens(t *testing.T) {
	e := echo.New()
	e.GET("/probe", probe, middleware.JWTAuth(testSecret))

	cases := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic abc"},
		{"garbage token", "Bearer not.a.jwt"},
		{"wrong secret", "Bearer " + signToken(t, "other-secret", 7, middleware.RoleDriver)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := request(t, e, tc.header)
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rec.Code)
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	e := echo.New()
	e.GET("/probe", probe, middleware.JWTAuth(testSecret), middleware.RequireRole(middleware.RoleBroker))

	rec := request(t, e, "Bearer "+signToken(t, testSecret, 1, middleware.RoleBroker))
	if rec.Code != http.StatusOK {
		t.Fatalf("broker should pass, got %d", rec.Code)
	}

	rec = request(t, e, "Bearer "+signToken(t, testSecret, 7, middleware.RoleDriver))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("driver should be forbidden, got %d", rec.Code)
	}

	rec = request(t, e, "Bearer "+signToken(t, testSecret, 7, ""))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("empty role should be forbidden, got %d", rec.Code)
	}
}
