package main

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"
)

// tokenTTL is how long a login token stays valid.
const tokenTTL = 7 * 24 * time.Hour

// dummyHash is a pre-computed bcrypt hash used when a login email isn't found.
// Running bcrypt against it (instead of returning early) keeps response time
// constant, preventing timing-based account enumeration.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("dummy"), bcrypt.DefaultCost)

// authClaims is the JWT payload. Role is trusted by requireRole without a
// DB round trip, so role changes take effect on the next login.
type authClaims struct {
	UserID int    `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// issueToken signs a token for the given user.
func issueToken(secret string, userID int, role string, now time.Time) (string, error) {
	claims := authClaims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// parseToken validates the signature, algorithm and expiry.
func parseToken(secret, tokenStr string) (*authClaims, error) {
	claims := &authClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.UserID <= 0 {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// login verifies email/password and returns a signed token.
// POST /api/login (public, no auth required).
func (h *Handler) login(c *gin.Context) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		apiError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	u, lookupErr := queryOne[user](h.db, c,
		"SELECT id, full_name, email, password, role, created_at FROM users WHERE lower(email) = lower(@email)",
		pgx.NamedArgs{"email": strings.TrimSpace(body.Email)})

	// Always run bcrypt so response time doesn't reveal whether the email exists.
	hashToCheck := string(dummyHash)
	if lookupErr == nil {
		hashToCheck = u.Password
	}
	compareErr := bcrypt.CompareHashAndPassword([]byte(hashToCheck), []byte(body.Password))

	if lookupErr != nil || compareErr != nil {
		apiError(c, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := issueToken(h.cfg.JWTSecret, u.ID, u.Role, time.Now())
	if err != nil {
		log.Printf("[login] sign token: %v", err)
		apiError(c, http.StatusInternalServerError, "failed to issue token")
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "user_id": u.ID, "role": u.Role})
}

// register creates a Sportif account with an empty athlete profile.
// POST /api/register (public). Coaches and admins are created via the CLI.
func (h *Handler) register(c *gin.Context) {
	var body struct {
		FullName string `json:"full_name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		apiError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	body.FullName = strings.TrimSpace(body.FullName)
	body.Email = strings.TrimSpace(body.Email)
	if body.FullName == "" {
		apiError(c, http.StatusBadRequest, "full_name is required")
		return
	}
	if _, err := mail.ParseAddress(body.Email); err != nil {
		apiError(c, http.StatusBadRequest, "invalid email")
		return
	}
	if len(body.Password) < minPasswordLength {
		apiError(c, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("[register] hash: %v", err)
		apiError(c, http.StatusInternalServerError, "failed to create account")
		return
	}

	tx, err := h.db.Begin(c)
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to create account")
		return
	}
	defer tx.Rollback(c)

	var userID int
	err = tx.QueryRow(c,
		`INSERT INTO users (full_name, email, password, role)
		 VALUES (@fullName, @email, @password, @role)
		 ON CONFLICT (email) DO NOTHING
		 RETURNING id`,
		pgx.NamedArgs{"fullName": body.FullName, "email": body.Email, "password": string(hash), "role": roleSportif},
	).Scan(&userID)
	if errors.Is(err, pgx.ErrNoRows) {
		apiError(c, http.StatusConflict, "email already registered")
		return
	}
	if err != nil {
		log.Printf("[register] insert user: %v", err)
		apiError(c, http.StatusInternalServerError, "failed to create account")
		return
	}
	if _, err := tx.Exec(c, "INSERT INTO athlete_profiles (user_id) VALUES ($1)", userID); err != nil {
		log.Printf("[register] insert profile: %v", err)
		apiError(c, http.StatusInternalServerError, "failed to create account")
		return
	}
	if err := tx.Commit(c); err != nil {
		apiError(c, http.StatusInternalServerError, "failed to create account")
		return
	}

	token, err := issueToken(h.cfg.JWTSecret, userID, roleSportif, time.Now())
	if err != nil {
		log.Printf("[register] sign token: %v", err)
		apiError(c, http.StatusInternalServerError, "failed to issue token")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"token": token, "user_id": userID, "role": roleSportif})
}

// minPasswordLength applies to registration and password changes.
const minPasswordLength = 8

// changePasswordRequest is the body of PUT /api/user/change-password.
type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func validatePasswordChange(body changePasswordRequest) string {
	if body.CurrentPassword == "" || body.NewPassword == "" {
		return "current_password and new_password are required"
	}
	if len(body.NewPassword) < minPasswordLength {
		return "password must be at least 8 characters"
	}
	if body.NewPassword == body.CurrentPassword {
		return "new password must differ from the current one"
	}
	return ""
}

// changePassword replaces the caller's password after checking the current one.
// PUT /api/user/change-password
func (h *Handler) changePassword(c *gin.Context) {
	userID := c.GetInt("user_id")

	var body changePasswordRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		apiError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := validatePasswordChange(body); msg != "" {
		apiError(c, http.StatusBadRequest, msg)
		return
	}

	var current string
	err := h.db.QueryRow(c, "SELECT password FROM users WHERE id = $1", userID).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		apiError(c, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to change password")
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(current), []byte(body.CurrentPassword)) != nil {
		apiError(c, http.StatusBadRequest, "current password is incorrect")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(body.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("[changePassword] hash: %v", err)
		apiError(c, http.StatusInternalServerError, "failed to change password")
		return
	}
	if _, err := h.db.Exec(c, "UPDATE users SET password = $1 WHERE id = $2", string(hash), userID); err != nil {
		log.Printf("[changePassword] update: %v", err)
		apiError(c, http.StatusInternalServerError, "failed to change password")
		return
	}

	log.Printf("[changePassword] user %d changed password", userID)
	c.JSON(http.StatusOK, gin.H{"message": "password changed"})
}

// authMiddleware validates the Bearer token and sets user_id and role on the context.
func (h *Handler) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			apiError(c, http.StatusUnauthorized, "missing or invalid authorization header")
			c.Abort()
			return
		}

		claims, err := parseToken(h.cfg.JWTSecret, strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			apiError(c, http.StatusUnauthorized, "invalid token")
			c.Abort()
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("role", claims.Role)
		c.Next()
	}
}

// requireRole aborts with 403 unless the authenticated role is in roles.
// Must run after authMiddleware.
func requireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString("role")
		for _, r := range roles {
			if r == role {
				c.Next()
				return
			}
		}
		apiError(c, http.StatusForbidden, "insufficient role")
		c.Abort()
	}
}
