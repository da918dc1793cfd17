package service

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// Errores internos del codec. Hacia afuera se colapsan en una sola señal
// para no filtrar cuál verificación falló.
var (
	ErrTokenMalformed = errors.New("token malformed")
	ErrTokenSignature = errors.New("token signature invalid")
	ErrTokenExpired   = errors.New("token expired")
)

// Claims es el payload firmado de cada credencial. Forma fija: subject
// (email), jti, typ y expiración; nunca un mapa abierto.
type Claims struct {
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

// TokenService firma y verifica credenciales HS256 con un secreto
// compartido fijado al arranque del proceso.
type TokenService struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewTokenService(secret string, accessTTL, refreshTTL time.Duration) *TokenService {
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}
	if refreshTTL <= 0 {
		refreshTTL = 7 * 24 * time.Hour
	}
	return &TokenService{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// AccessTTL devuelve la vida útil configurada para access tokens.
func (s *TokenService) AccessTTL() time.Duration { return s.accessTTL }

// RefreshTTL devuelve la vida útil configurada para refresh tokens.
func (s *TokenService) RefreshTTL() time.Duration { return s.refreshTTL }

// Issue emite una credencial firmada con jti aleatorio y expiración
// now+ttl. Devuelve el token, su expiración y el jti.
func (s *TokenService) Issue(subject, tokenType string, ttl time.Duration) (string, time.Time, string, error) {
	if len(s.secret) == 0 {
		return "", time.Time{}, "", ErrTokenMalformed
	}
	now := s.now().UTC()
	expiresAt := now.Add(ttl)
	jti := uuid.NewString()
	claims := Claims{
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, "", err
	}
	return signed, expiresAt.Truncate(time.Second), jti, nil
}

// IssueAccess emite un access token con el TTL configurado.
func (s *TokenService) IssueAccess(subject string) (string, time.Time, string, error) {
	return s.Issue(subject, TokenTypeAccess, s.accessTTL)
}

// IssueRefresh emite un refresh token con el TTL configurado.
func (s *TokenService) IssueRefresh(subject string) (string, time.Time, string, error) {
	return s.Issue(subject, TokenTypeRefresh, s.refreshTTL)
}

// Verify valida firma, expiración y forma de los claims, en ese orden.
// Una credencial vale hasta justo antes de su expiración: en el instante
// exacto de exp ya es inválida.
func (s *TokenService) Verify(tokenString string) (Claims, error) {
	if len(s.secret) == 0 || strings.TrimSpace(tokenString) == "" {
		return Claims{}, ErrTokenMalformed
	}
	var claims Claims
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	_, err := parser.ParseWithClaims(tokenString, &claims, func(_ *jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return Claims{}, ErrTokenSignature
		case errors.Is(err, jwt.ErrTokenExpired):
			return Claims{}, ErrTokenExpired
		default:
			return Claims{}, ErrTokenMalformed
		}
	}
	if strings.TrimSpace(claims.Subject) == "" || strings.TrimSpace(claims.ID) == "" {
		return Claims{}, ErrTokenMalformed
	}
	if claims.TokenType != TokenTypeAccess && claims.TokenType != TokenTypeRefresh {
		return Claims{}, ErrTokenMalformed
	}
	return claims, nil
}
