package server

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Vartmor/CADLift-sub001/internal/config"
)

// Claims identify the owner of the jobs a token may touch.
type Claims struct {
	UserID uuid.UUID `json:"user_id"`
	jwt.RegisteredClaims
}

// JWTService issues and validates the HS256 tokens that identify job owners.
type JWTService struct {
	config *config.JWTConfig
	now    func() time.Time
}

func NewJWTService(cfg *config.JWTConfig) *JWTService {
	return &JWTService{config: cfg, now: time.Now}
}

// GenerateToken signs a token for userID valid for the configured lifetime.
func (s *JWTService) GenerateToken(userID uuid.UUID) (string, error) {
	if userID == uuid.Nil {
		return "", errors.New("user ID is required")
	}
	issued := s.now()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(issued),
			NotBefore: jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(issued.Add(s.config.Expiration())),
		},
	}).SignedString([]byte(s.config.Secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// parseFailures maps jwt sentinel errors to the prefix reported to callers.
var parseFailures = []struct {
	err    error
	prefix string
}{
	{jwt.ErrTokenMalformed, "malformed token"},
	{jwt.ErrTokenSignatureInvalid, "invalid token signature"},
	{jwt.ErrTokenExpired, "token expired"},
}

// ValidateToken checks signature, algorithm, lifetime and issuer and returns
// the claims of a token that names a user.
func (s *JWTService) ValidateToken(raw string) (*Claims, error) {
	if raw == "" {
		return nil, errors.New("token string is empty")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	}
	if s.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.config.Issuer))
	}

	claims := new(Claims)
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return []byte(s.config.Secret), nil
	}, opts...)
	if err != nil {
		for _, f := range parseFailures {
			if errors.Is(err, f.err) {
				return nil, fmt.Errorf("%s: %w", f.prefix, err)
			}
		}
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if claims.UserID == uuid.Nil {
		return nil, errors.New("token has no user ID")
	}
	return claims, nil
}

// Authenticate satisfies middleware.Authenticator.
func (s *JWTService) Authenticate(raw string) (uuid.UUID, error) {
	claims, err := s.ValidateToken(raw)
	if err != nil {
		return uuid.Nil, err
	}
	return claims.UserID, nil
}
