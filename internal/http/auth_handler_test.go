package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"archmap/internal/service"
)

func newAuthRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := newMockUserRepo()
	tokens := service.NewTokenService("secret", 15*time.Minute, 7*24*time.Hour)
	sessions := service.NewMemorySessionRegistry()
	authSvc := service.NewAuthService(zap.NewNop(), repo, tokens, sessions)
	authH := NewAuthHandler(zap.NewNop(), authSvc)

	r := gin.New()
	auth := r.Group("/api/auth")
	auth.POST("/register", authH.Register)
	auth.POST("/login", authH.Login)
	auth.POST("/refresh", authH.Refresh)
	auth.POST("/logout", authH.Logout)
	auth.GET("/me", AuthRequired(authSvc), authH.Me)
	return r
}

func postJSON(t *testing.T, r *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodePair(t *testing.T, rec *httptest.ResponseRecorder) service.TokenPair {
	t.Helper()
	var pair service.TokenPair
	if err := json.Unmarshal(rec.Body.Bytes(), &pair); err != nil {
		t.Fatalf("decode pair: %v", err)
	}
	return pair
}

func TestAuthHandler_RegisterLoginFlow(t *testing.T) {
	r := newAuthRouter(t)

	rec := postJSON(t, r, "/api/auth/register", gin.H{"email": "a@x.com", "password": "secret123"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	pair := decodePair(t, rec)
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("expected credential pair in response")
	}
	if pair.RefreshExpiresAt.IsZero() || pair.AccessExpiresAt.IsZero() {
		t.Fatalf("expected expiries in response")
	}

	rec = postJSON(t, r, "/api/auth/register", gin.H{"email": "a@x.com", "password": "other456"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for duplicate email, got %d", rec.Code)
	}

	rec = postJSON(t, r, "/api/auth/login", gin.H{"email": "a@x.com", "password": "secret123"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = postJSON(t, r, "/api/auth/login", gin.H{"email": "a@x.com", "password": "wrong"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad password, got %d", rec.Code)
	}
}

func TestAuthHandler_RefreshRotationAndLogout(t *testing.T) {
	r := newAuthRouter(t)

	rec := postJSON(t, r, "/api/auth/register", gin.H{"email": "a@x.com", "password": "secret123"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	pair := decodePair(t, rec)

	rec = postJSON(t, r, "/api/auth/refresh", gin.H{"refresh_token": pair.RefreshToken})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	rotated := decodePair(t, rec)

	rec = postJSON(t, r, "/api/auth/refresh", gin.H{"refresh_token": pair.RefreshToken})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for replayed refresh token, got %d", rec.Code)
	}

	rec = postJSON(t, r, "/api/auth/logout", gin.H{"refresh_token": rotated.RefreshToken})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = postJSON(t, r, "/api/auth/refresh", gin.H{"refresh_token": rotated.RefreshToken})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 after logout, got %d", rec.Code)
	}
}

func TestAuthHandler_RefreshRejectsGarbage(t *testing.T) {
	r := newAuthRouter(t)

	rec := postJSON(t, r, "/api/auth/refresh", gin.H{"refresh_token": "garbage"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	rec = postJSON(t, r, "/api/auth/refresh", gin.H{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing body field, got %d", rec.Code)
	}
}

func TestAuthHandler_Me(t *testing.T) {
	r := newAuthRouter(t)

	rec := postJSON(t, r, "/api/auth/register", gin.H{"email": "a@x.com", "password": "secret123"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	pair := decodePair(t, rec)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	rec2 := httptest.NewRecorder()
	r.ServeHTTP(rec2, req)
	if rec2.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec2.Code)
	}

	var body struct {
		User struct {
			Email string `json:"email"`
		} `json:"user"`
	}
	if err := json.Unmarshal(rec2.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode me response: %v", err)
	}
	if body.User.Email != "a@x.com" {
		t.Fatalf("unexpected identity %q", body.User.Email)
	}
}
