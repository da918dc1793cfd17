package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"archmap/internal/domain"
	"archmap/internal/repository"
)

var (
	ErrInvalidEmail        = errors.New("invalid email")
	ErrEmailTaken          = errors.New("email already registered")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrSessionRevoked      = errors.New("refresh session expired or revoked")
	ErrUnknownIdentity     = errors.New("unknown or inactive identity")
	ErrUnauthenticated     = errors.New("not authenticated")
)

// TokenPair es la respuesta de login/register/refresh.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// AuthService coordina registro, login, rotación de refresh tokens y
// resolución de identidad desde headers Bearer. Los errores internos
// precisos se registran en logs y se colapsan hacia afuera.
type AuthService struct {
	logger   *zap.Logger
	users    repository.UserRepository
	tokens   *TokenService
	sessions SessionRegistry
}

func NewAuthService(logger *zap.Logger, users repository.UserRepository, tokens *TokenService, sessions SessionRegistry) *AuthService {
	return &AuthService{
		logger:   logger,
		users:    users,
		tokens:   tokens,
		sessions: sessions,
	}
}

type RegisterInput struct {
	Email    string
	Password string
	FullName string
}

func (s *AuthService) Register(ctx context.Context, input RegisterInput) (domain.User, TokenPair, error) {
	emailAddr := normalizeEmail(input.Email)
	password := strings.TrimSpace(input.Password)
	if emailAddr == "" {
		return domain.User{}, TokenPair{}, ErrInvalidEmail
	}
	if password == "" {
		return domain.User{}, TokenPair{}, ErrInvalidCredentials
	}

	_, err := s.users.GetByEmail(ctx, emailAddr)
	if err == nil {
		return domain.User{}, TokenPair{}, ErrEmailTaken
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, TokenPair{}, err
	}

	hashBytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return domain.User{}, TokenPair{}, err
	}

	now := time.Now().UTC()
	user := domain.User{
		ID:           uuid.NewString(),
		Email:        emailAddr,
		FullName:     strings.TrimSpace(input.FullName),
		PasswordHash: string(hashBytes),
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return domain.User{}, TokenPair{}, err
	}

	pair, err := s.issuePair(ctx, user)
	if err != nil {
		return domain.User{}, TokenPair{}, err
	}
	return user, pair, nil
}

func (s *AuthService) Login(ctx context.Context, emailAddr, password string) (domain.User, TokenPair, error) {
	emailAddr = normalizeEmail(emailAddr)
	password = strings.TrimSpace(password)
	if emailAddr == "" || password == "" {
		return domain.User{}, TokenPair{}, ErrInvalidCredentials
	}

	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, TokenPair{}, ErrInvalidCredentials
		}
		return domain.User{}, TokenPair{}, err
	}
	if user.PasswordHash == "" {
		return domain.User{}, TokenPair{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return domain.User{}, TokenPair{}, ErrInvalidCredentials
	}

	pair, err := s.issuePair(ctx, user)
	if err != nil {
		return domain.User{}, TokenPair{}, err
	}
	return user, pair, nil
}

// Refresh rota una sesión: verifica la credencial, comprueba vigencia,
// resuelve la identidad y recién entonces consume la sesión presentada y
// emite el par nuevo. Toda falla de validación aborta antes de mutar;
// el consumo es atómico, así que un refresh token se canjea a lo sumo
// una vez incluso bajo canjes concurrentes.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := s.tokens.Verify(refreshToken)
	if err != nil {
		s.logWarn("refresh token rejected", err)
		return TokenPair{}, ErrInvalidRefreshToken
	}
	if claims.TokenType != TokenTypeRefresh {
		return TokenPair{}, ErrInvalidRefreshToken
	}

	live, err := s.sessions.IsLive(ctx, claims.ID)
	if err != nil {
		return TokenPair{}, err
	}
	if !live {
		return TokenPair{}, ErrSessionRevoked
	}

	user, err := s.users.GetByEmail(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return TokenPair{}, ErrUnknownIdentity
		}
		return TokenPair{}, err
	}

	if _, ok, err := s.sessions.Consume(ctx, claims.ID); err != nil {
		return TokenPair{}, err
	} else if !ok {
		// Otro canje concurrente ganó la carrera.
		return TokenPair{}, ErrSessionRevoked
	}

	// A partir de acá la sesión vieja ya no existe: cualquier fallo se
	// propaga duro, nunca se devuelven credenciales viejas.
	return s.issuePair(ctx, user)
}

// Logout revoca la sesión del refresh token presentado. Revocar una
// sesión inexistente no es un error.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.tokens.Verify(refreshToken)
	if err != nil {
		s.logWarn("logout token rejected", err)
		return ErrInvalidRefreshToken
	}
	if claims.TokenType != TokenTypeRefresh {
		return ErrInvalidRefreshToken
	}
	return s.sessions.Revoke(ctx, claims.ID)
}

// LogoutAll revoca todas las sesiones vivas del usuario.
func (s *AuthService) LogoutAll(ctx context.Context, userID string) error {
	return s.sessions.RevokeAll(ctx, userID)
}

// ResolveBearer extrae la credencial Bearer del header, la verifica y
// carga la identidad. Identidades inexistentes o inactivas fallan igual
// que cualquier otra verificación: una única señal hacia afuera.
func (s *AuthService) ResolveBearer(ctx context.Context, authorizationHeader string) (domain.User, error) {
	token, ok := bearerToken(authorizationHeader)
	if !ok {
		return domain.User{}, ErrUnauthenticated
	}
	claims, err := s.tokens.Verify(token)
	if err != nil {
		s.logWarn("bearer token rejected", err)
		return domain.User{}, ErrUnauthenticated
	}
	if claims.TokenType != TokenTypeAccess {
		return domain.User{}, ErrUnauthenticated
	}

	user, err := s.users.GetByEmail(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrUnauthenticated
		}
		return domain.User{}, err
	}
	if !user.IsActive {
		return domain.User{}, ErrUnauthenticated
	}
	return user, nil
}

func (s *AuthService) issuePair(ctx context.Context, user domain.User) (TokenPair, error) {
	access, accessExp, _, err := s.tokens.IssueAccess(user.Email)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, refreshExp, jti, err := s.tokens.IssueRefresh(user.Email)
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.sessions.Register(ctx, jti, user.ID, time.Until(refreshExp)); err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func (s *AuthService) logWarn(msg string, err error) {
	if s.logger != nil {
		s.logger.Warn(msg, zap.Error(err))
	}
}

func bearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", false
	}
	const scheme = "bearer "
	if len(header) < len(scheme) || !strings.EqualFold(header[:len(scheme)], scheme) {
		return "", false
	}
	token := strings.TrimSpace(header[len(scheme):])
	return token, token != ""
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
