package auth

import (
	"errors"
	"time"

	domain "github.com/example/taskboard/domain/user"
	"github.com/golang-jwt/jwt/v5"
)

// TokenTTL is the fixed validity window of a session token.
const TokenTTL = 7 * 24 * time.Hour

var (
	// ErrInvalidToken is returned for every verification failure.
	ErrInvalidToken = errors.New("invalid token")
	// ErrMissingSecret is returned when no signing secret is configured.
	ErrMissingSecret = errors.New("token signing secret is not configured")
)

// JWTConfig holds JWT configuration.
type JWTConfig struct {
	SecretKey string
	TTL       time.Duration
}

// JWTClaims represents the claims carried by a session token.
// The user id travels in the standard "sub" claim.
type JWTClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// JWTManager issues and verifies session tokens.
type JWTManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewJWTManager creates a JWTManager. An empty secret is a configuration error.
func NewJWTManager(config JWTConfig) (*JWTManager, error) {
	if config.SecretKey == "" {
		return nil, ErrMissingSecret
	}
	ttl := config.TTL
	if ttl <= 0 {
		ttl = TokenTTL
	}
	return &JWTManager{
		secret: []byte(config.SecretKey),
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// Issue signs a token for the given user, valid for the configured TTL.
func (m *JWTManager) Issue(userID, email string) (string, error) {
	now := m.now()
	claims := JWTClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Verify checks signature and expiry. Malformed, expired, wrongly signed and
// subject-less tokens all return ErrInvalidToken.
func (m *JWTManager) Verify(tokenString string) (*domain.Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(m.now))
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	return &domain.Claims{
		UserID: claims.Subject,
		Email:  claims.Email,
	}, nil
}

// TTL returns the token validity window.
func (m *JWTManager) TTL() time.Duration {
	return m.ttl
}
