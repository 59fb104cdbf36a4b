package service

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenKind distingue los dos tipos de token firmado que emite el codec.
type TokenKind string

const (
	TokenAccess  TokenKind = "access"
	TokenRefresh TokenKind = "refresh"
)

var (
	// ErrTokenInvalid cubre firma, issuer, audience o tipo incorrectos.
	ErrTokenInvalid = errors.New("token invalid")
	// ErrTokenExpired permite al caller decidir entre re-login y rechazo.
	ErrTokenExpired = errors.New("token expired")
)

// TokenService firma y verifica tokens tipados con expiracion. Rotar la
// clave de firma invalida todos los tokens en circulacion; es una
// consecuencia operativa documentada, no un bug.
type TokenService struct {
	secret     []byte
	issuer     string
	audience   string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// TokenClaims es el resultado de verificar un token firmado.
type TokenClaims struct {
	AccountID string
	Email     string
	Kind      TokenKind
}

type signedClaims struct {
	Email     string `json:"email,omitempty"`
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

func NewTokenService(secret, issuer, audience string, accessTTL, refreshTTL time.Duration) *TokenService {
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}
	if refreshTTL <= 0 {
		refreshTTL = 30 * 24 * time.Hour
	}
	if issuer == "" {
		issuer = "authlink"
	}
	if audience == "" {
		audience = "authlink"
	}
	return &TokenService{
		secret:     []byte(secret),
		issuer:     issuer,
		audience:   audience,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// AccessTTL expone la vigencia de los access tokens para el campo expires_in.
func (s *TokenService) AccessTTL() time.Duration {
	return s.accessTTL
}

// Sign emite un token firmado del tipo pedido para la cuenta dada.
func (s *TokenService) Sign(kind TokenKind, accountID, email string) (string, error) {
	if len(s.secret) == 0 {
		return "", ErrTokenInvalid
	}
	ttl := s.accessTTL
	if kind == TokenRefresh {
		ttl = s.refreshTTL
	}
	now := time.Now().UTC()
	claims := signedClaims{
		Email:     email,
		TokenType: string(kind),
		RegisteredClaims: jwt.RegisteredClaims{
			// El jti hace unico cada token firmado: dos refresh emitidos en
			// el mismo segundo para la misma cuenta no colisionan por hash.
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{s.audience},
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Verify valida firma, issuer, audience y expiracion, y devuelve las claims.
// Expiracion y firma invalida se distinguen para que el caller decida.
func (s *TokenService) Verify(signed string) (TokenClaims, error) {
	if len(s.secret) == 0 || strings.TrimSpace(signed) == "" {
		return TokenClaims{}, ErrTokenInvalid
	}
	var claims signedClaims
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
	)
	_, err := parser.ParseWithClaims(signed, &claims, func(_ *jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return TokenClaims{}, ErrTokenExpired
		}
		return TokenClaims{}, ErrTokenInvalid
	}
	kind := TokenKind(claims.TokenType)
	if kind != TokenAccess && kind != TokenRefresh {
		return TokenClaims{}, ErrTokenInvalid
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return TokenClaims{}, ErrTokenInvalid
	}
	return TokenClaims{
		AccountID: claims.Subject,
		Email:     claims.Email,
		Kind:      kind,
	}, nil
}
