package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenErrorKind classifies a verification failure.
type TokenErrorKind int

const (
	TokenMalformed TokenErrorKind = iota + 1
	TokenInvalidSignature
	TokenExpired
)

func (k TokenErrorKind) String() string {
	switch k {
	case TokenMalformed:
		return "Malformed"
	case TokenInvalidSignature:
		return "InvalidSignature"
	case TokenExpired:
		return "Expired"
	default:
		return "Unknown"
	}
}

type TokenError struct {
	Kind TokenErrorKind
	Err  error
}

func (e *TokenError) Error() string {
	return fmt.Sprintf("token %s: %v", e.Kind, e.Err)
}

func (e *TokenError) Unwrap() error { return e.Err }

// AppError maps the failure to the client-facing 401.
func (e *TokenError) AppError() *AppError {
	if e.Kind == TokenExpired {
		return NewUnauthorized("Your token has expired, please log in again").WithCause(e)
	}
	return NewUnauthorized("Invalid token, please log in again").WithCause(e)
}

// Claims is the session token payload.
type Claims struct {
	UserID string `json:"id"`
	jwt.RegisteredClaims
}

// IssuedAtTime returns iat, or the zero time when absent.
func (c *Claims) IssuedAtTime() time.Time {
	if c.IssuedAt == nil {
		return time.Time{}
	}
	return c.IssuedAt.Time
}

type TokenService struct {
	secret []byte
	expiry time.Duration
	now    func() time.Time
}

func NewTokenService(secret string, expiry time.Duration) *TokenService {
	return &TokenService{secret: []byte(secret), expiry: expiry, now: time.Now}
}

// WithClock overrides the time source; used by tests.
func (s *TokenService) WithClock(now func() time.Time) *TokenService {
	s.now = now
	return s
}

func (s *TokenService) Expiry() time.Duration { return s.expiry }

// Issue signs a token for userID valid for the configured expiry.
func (s *TokenService) Issue(userID string) (string, error) {
	now := s.now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature and expiry. It does not look at the user record.
func (s *TokenService) Verify(tokenString string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)

	claims := &Claims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		return nil, classifyTokenError(err)
	}
	if !token.Valid || claims.UserID == "" {
		return nil, &TokenError{Kind: TokenMalformed, Err: errors.New("missing subject")}
	}
	return claims, nil
}

func classifyTokenError(err error) *TokenError {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return &TokenError{Kind: TokenExpired, Err: err}
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return &TokenError{Kind: TokenInvalidSignature, Err: err}
	default:
		return &TokenError{Kind: TokenMalformed, Err: err}
	}
}
