// Package auth authenticates API callers with HMAC signed bearer tokens.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	apperrors "github.com/chainsafe/optimal-wallet/pkg/app/errors"
	apphttp "github.com/chainsafe/optimal-wallet/pkg/app/http"
)

var (
	// ErrMissingToken is returned when the request carries no bearer token
	ErrMissingToken = errors.New("missing bearer token")
	// ErrInvalidIssuer is returned when the iss claim does not match the configured issuer
	ErrInvalidIssuer = errors.New("invalid issuer")
)

// JWTValidator validates HS256 tokens signed with a shared secret
type JWTValidator struct {
	secret []byte
	issuer string
	parser *jwt.Parser
}

// NewJWTValidator creates a validator. An empty issuer accepts any iss claim.
func NewJWTValidator(secret, issuer string) *JWTValidator {
	return &JWTValidator{
		secret: []byte(secret),
		issuer: issuer,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
		),
	}
}

// IsConfigured reports whether a secret is set
func (v *JWTValidator) IsConfigured() bool {
	return len(v.secret) > 0
}

// ValidateToken validates a token and returns its claims
func (v *JWTValidator) ValidateToken(tokenString string) (*Claims, error) {
	if !v.IsConfigured() {
		return nil, errors.New("jwt secret not configured")
	}

	claims := &Claims{}
	token, err := v.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	if v.issuer != "" && claims.Issuer != v.issuer {
		return nil, ErrInvalidIssuer
	}
	return claims, nil
}

// Sign issues a token for claims. Used by the CLI and tests.
func (v *JWTValidator) Sign(claims *Claims) (string, error) {
	if !v.IsConfigured() {
		return "", errors.New("jwt secret not configured")
	}
	if claims.Issuer == "" {
		claims.Issuer = v.issuer
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// Middleware rejects requests without a valid bearer token and stores the claims in
// the request context.
func (v *JWTValidator) Middleware(logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := bearerToken(r)
			if !ok {
				apphttp.WriteError(w, logger, r, apperrors.UnAuthorizedError(ErrMissingToken, ErrMissingToken.Error()))
				return
			}
			claims, err := v.ValidateToken(tokenString)
			if err != nil {
				logger.Debug("Rejected bearer token", zap.String("path", r.URL.Path), zap.Error(err))
				apphttp.WriteError(w, logger, r, apperrors.UnAuthorizedError(err, "invalid bearer token"))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
