package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"archmap/internal/domain"
	"archmap/internal/service"
)

type mockUserRepo struct {
	usersByID    map[string]domain.User
	usersByEmail map[string]string
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{
		usersByID:    make(map[string]domain.User),
		usersByEmail: make(map[string]string),
	}
}

func (m *mockUserRepo) Create(_ context.Context, user domain.User) error {
	m.usersByID[user.ID] = user
	m.usersByEmail[user.Email] = user.ID
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (domain.User, error) {
	user, ok := m.usersByID[id]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return user, nil
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (domain.User, error) {
	id, ok := m.usersByEmail[email]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return m.GetByID(context.Background(), id)
}

func (m *mockUserRepo) List(_ context.Context, _, _ int) ([]domain.User, error) {
	users := make([]domain.User, 0, len(m.usersByID))
	for _, u := range m.usersByID {
		users = append(users, u)
	}
	return users, nil
}

func (m *mockUserRepo) Delete(_ context.Context, id string) error {
	if user, ok := m.usersByID[id]; ok {
		delete(m.usersByEmail, user.Email)
		delete(m.usersByID, id)
	}
	return nil
}

func newTestAuthService(t *testing.T) (*service.AuthService, service.TokenPair, domain.User) {
	t.Helper()
	repo := newMockUserRepo()
	tokens := service.NewTokenService("secret", 15*time.Minute, 7*24*time.Hour)
	sessions := service.NewMemorySessionRegistry()
	authSvc := service.NewAuthService(zap.NewNop(), repo, tokens, sessions)

	user, pair, err := authSvc.Register(context.Background(), service.RegisterInput{
		Email:    "a@x.com",
		Password: "secret123",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return authSvc, pair, user
}

func TestAuthRequired_AllowsValidAccessToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	authSvc, pair, user := newTestAuthService(t)

	r := gin.New()
	r.GET("/protected", AuthRequired(authSvc), func(c *gin.Context) {
		current, ok := GetCurrentUser(c)
		if !ok || current.ID != user.ID {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestAuthRequired_RejectsGarbageToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	authSvc, _, _ := newTestAuthService(t)

	r := gin.New()
	r.GET("/protected", AuthRequired(authSvc), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestAuthRequired_RejectsMissingHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)
	authSvc, _, _ := newTestAuthService(t)

	r := gin.New()
	r.GET("/protected", AuthRequired(authSvc), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	// Sin header falla igual que con token inválido: una sola señal.
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
