package main

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestPgErrorCode(t *testing.T) {
	fk := &pgconn.PgError{Code: pgForeignKeyViolation}
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"plain error", errors.New("connection reset"), ""},
		{"foreign key", fk, pgForeignKeyViolation},
		{"wrapped", fmt.Errorf("insert exercise: %w", fk), pgForeignKeyViolation},
		{"unique", &pgconn.PgError{Code: pgUniqueViolation}, pgUniqueViolation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := pgErrorCode(tc.err); got != tc.want {
				t.Errorf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

/* ─── Route table ────────────────────────────────────────────────────── */

func setupRoutesTest(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	h := &Handler{cfg: config{JWTSecret: testSecret}}
	router := gin.New()
	h.registerRoutes(router)
	return router
}

func bearer(t *testing.T, userID int, role string) string {
	t.Helper()
	tok, err := issueToken(testSecret, userID, role, time.Now())
	if err != nil {
		t.Fatalf("issueToken: %v", err)
	}
	return "Bearer " + tok
}

func TestRegisterRoutes_Registered(t *testing.T) {
	router := setupRoutesTest(t)

	have := map[string]bool{}
	for _, r := range router.Routes() {
		have[r.Method+" "+r.Path] = true
	}
	for _, want := range []string{
		"GET /api/exercises",
		"POST /api/exercises",
		"PATCH /api/exercises/:id",
		"DELETE /api/exercises/:id",
		"GET /api/programmes/public",
		"GET /api/programmes/:id",
		"PATCH /api/programmes/:id",
		"DELETE /api/programmes/:id",
		"POST /api/programmes/:id/sessions",
		"PUT /api/programmes/:id/sessions/:sessionId",
		"DELETE /api/programmes/:id/sessions/:sessionId",
		"POST /api/programmes/:id/enroll",
		"GET /api/programmes/:id/enrollment-status",
		"GET /api/training/sessions/:id",
		"GET /api/training/exercises",
		"GET /api/food-analysis/:id",
		"DELETE /api/food-analysis/:id",
		"GET /api/food-analysis/daily/:date",
		"PUT /api/user/change-password",
		"GET /api/admin/recent-users",
	} {
		if !have[want] {
			t.Errorf("expected route %s to be registered", want)
		}
	}
}

func TestRegisterRoutes_RoleGates(t *testing.T) {
	router := setupRoutesTest(t)

	cases := []struct {
		name   string
		method string
		path   string
		role   string
		body   string
		want   int
	}{
		{"sportif cannot add exercises", http.MethodPost, "/api/exercises", roleSportif, `{"name":"Squat"}`, http.StatusForbidden},
		{"coach reaches exercise validation", http.MethodPost, "/api/exercises", roleCoach, `{"name":"  "}`, http.StatusBadRequest},
		{"sportif cannot edit programmes", http.MethodPatch, "/api/programmes/1", roleSportif, `{}`, http.StatusForbidden},
		{"coach cannot self-enroll", http.MethodPost, "/api/programmes/1/enroll", roleCoach, "", http.StatusForbidden},
		{"sportif cannot list recent users", http.MethodGet, "/api/admin/recent-users", roleSportif, "", http.StatusForbidden},
		{"admin recent users bad count", http.MethodGet, "/api/admin/recent-users?count=abc", roleAdmin, "", http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, strings.NewReader(tc.body))
			req.Header.Set("Authorization", bearer(t, 7, tc.role))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			if w.Code != tc.want {
				t.Errorf("expected %d, got %d: %s", tc.want, w.Code, w.Body.String())
			}
		})
	}
}
