package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret"

// setupAuthTest builds a router with the auth middleware and a role-gated
// route, mirroring how registerRoutes nests groups.
func setupAuthTest() *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := &Handler{cfg: config{JWTSecret: testSecret}}

	router := gin.New()
	api := router.Group("/api", h.authMiddleware())
	api.GET("/whoami", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetInt("user_id"), "role": c.GetString("role")})
	})
	admin := api.Group("/admin", requireRole(roleAdmin))
	admin.GET("/stats", func(c *gin.Context) { c.Status(http.StatusOK) })
	return router
}

func doAuthRequest(router *gin.Engine, path, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

/* ─── Tokens ─────────────────────────────────────────────────────────── */

func TestIssueAndParseToken(t *testing.T) {
	tok, err := issueToken(testSecret, 42, roleCoach, time.Now())
	if err != nil {
		t.Fatalf("issueToken: %v", err)
	}
	claims, err := parseToken(testSecret, tok)
	if err != nil {
		t.Fatalf("parseToken: %v", err)
	}
	if claims.UserID != 42 || claims.Role != roleCoach {
		t.Errorf("expected user 42 / Coach, got %d / %s", claims.UserID, claims.Role)
	}
	if claims.ID == "" {
		t.Error("expected a token id")
	}
}

func TestParseToken_WrongSecret(t *testing.T) {
	tok, _ := issueToken(testSecret, 1, roleSportif, time.Now())
	if _, err := parseToken("other-secret", tok); err == nil {
		t.Fatal("expected error for wrong secret")
	}
}

func TestParseToken_Expired(t *testing.T) {
	tok, _ := issueToken(testSecret, 1, roleSportif, time.Now().Add(-8*24*time.Hour))
	if _, err := parseToken(testSecret, tok); err == nil {
		t.Fatal("expected error for expired token")
	}
}

func TestParseToken_RejectsNonHMAC(t *testing.T) {
	claims := authClaims{
		UserID: 1,
		Role:   roleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if _, err := parseToken(testSecret, tok); err == nil {
		t.Fatal("expected error for alg none")
	}
}

func TestParseToken_RejectsMissingUser(t *testing.T) {
	tok, _ := issueToken(testSecret, 0, roleSportif, time.Now())
	if _, err := parseToken(testSecret, tok); err == nil {
		t.Fatal("expected error for user_id 0")
	}
}

/* ─── Middleware ─────────────────────────────────────────────────────── */

func TestAuthMiddleware_MissingHeader(t *testing.T) {
	w := doAuthRequest(setupAuthTest(), "/api/whoami", "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestAuthMiddleware_BadToken(t *testing.T) {
	w := doAuthRequest(setupAuthTest(), "/api/whoami", "Bearer not-a-jwt")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	tok, _ := issueToken(testSecret, 7, roleSportif, time.Now())
	w := doAuthRequest(setupAuthTest(), "/api/whoami", "Bearer "+tok)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	want := `{"role":"Sportif","user_id":7}`
	if w.Body.String() != want {
		t.Errorf("expected %s, got %s", want, w.Body.String())
	}
}

func TestRequireRole(t *testing.T) {
	router := setupAuthTest()
	cases := []struct {
		role string
		want int
	}{
		{roleAdmin, http.StatusOK},
		{roleCoach, http.StatusForbidden},
		{roleSportif, http.StatusForbidden},
	}
	for _, tc := range cases {
		tok, _ := issueToken(testSecret, 1, tc.role, time.Now())
		w := doAuthRequest(router, "/api/admin/stats", "Bearer "+tok)
		if w.Code != tc.want {
			t.Errorf("role %s: expected %d, got %d", tc.role, tc.want, w.Code)
		}
	}
}

/* ─── Password change ────────────────────────────────────────────────── */

func TestValidatePasswordChange(t *testing.T) {
	cases := []struct {
		name  string
		body  changePasswordRequest
		valid bool
	}{
		{"valid", changePasswordRequest{CurrentPassword: "old-secret", NewPassword: "new-secret-1"}, true},
		{"missing current", changePasswordRequest{NewPassword: "new-secret-1"}, false},
		{"missing new", changePasswordRequest{CurrentPassword: "old-secret"}, false},
		{"too short", changePasswordRequest{CurrentPassword: "old-secret", NewPassword: "short"}, false},
		{"unchanged", changePasswordRequest{CurrentPassword: "same-secret", NewPassword: "same-secret"}, false},
	}
	for _, tc := range cases {
		msg := validatePasswordChange(tc.body)
		if (msg == "") != tc.valid {
			t.Errorf("%s: expected valid=%v, got %q", tc.name, tc.valid, msg)
		}
	}
}

func TestChangePassword_RejectsShortPassword(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := &Handler{}
	router := gin.New()
	router.PUT("/api/user/change-password", func(c *gin.Context) {
		c.Set("user_id", 1)
		h.changePassword(c)
	})

	req := httptest.NewRequest(http.MethodPut, "/api/user/change-password",
		strings.NewReader(`{"current_password":"old-secret","new_password":"abc"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}
