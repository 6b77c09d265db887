package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/example/taskboard/domain/apperr"
	domain "github.com/example/taskboard/domain/user"
	"github.com/example/taskboard/storage"
)

const (
	minPasswordLength = 8
	// bcrypt ignores everything past 72 bytes.
	maxPasswordLength = 72
)

var (
	// ErrMissingFields is returned when a registration field is blank.
	ErrMissingFields = apperr.Validation("Name, email, and password are required")
	// ErrInvalidEmail is returned when email format is invalid.
	ErrInvalidEmail = apperr.Validation("Invalid email format")
	// ErrWeakPassword is returned when password is too short.
	ErrWeakPassword = apperr.Validation("Password must be at least 8 characters")
	// ErrPasswordTooLong is returned when password exceeds bcrypt's 72-byte limit.
	ErrPasswordTooLong = apperr.Validation("Password must be at most 72 characters")
	// ErrUserExists is returned when the email is already registered.
	ErrUserExists = apperr.Conflict("Email already registered")
	// ErrMissingCredentials is returned when login email or password is blank.
	ErrMissingCredentials = apperr.Validation("Email and password are required")
	// ErrInvalidCredentials is returned for an unknown email or a wrong password.
	ErrInvalidCredentials = apperr.Authentication("Invalid email or password")
	// ErrUserNotFound is returned when a user id does not resolve.
	ErrUserNotFound = apperr.NotFound("User not found")
)

// Session is the result of a successful register or login.
type Session struct {
	User  *domain.User
	Token string
}

// AuthService handles authentication business logic.
type AuthService struct {
	users  storage.UserStore
	hasher *PasswordHasher
	jwt    *JWTManager
	now    func() time.Time
}

// NewAuthService creates a new AuthService.
func NewAuthService(users storage.UserStore, hasher *PasswordHasher, jwt *JWTManager) *AuthService {
	return &AuthService{
		users:  users,
		hasher: hasher,
		jwt:    jwt,
		now:    time.Now,
	}
}

// Register creates a new user account and issues a session token for it.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (*Session, error) {
	name = strings.TrimSpace(name)
	email = domain.NormalizeEmail(email)

	if name == "" || email == "" || password == "" {
		return nil, ErrMissingFields
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return nil, ErrInvalidEmail
	}
	if len(password) < minPasswordLength {
		return nil, ErrWeakPassword
	}
	if len(password) > maxPasswordLength {
		return nil, ErrPasswordTooLong
	}

	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &domain.User{
		Email:        email,
		PasswordHash: passwordHash,
		Name:         name,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrDuplicateEmail) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return s.issue(user)
}

// Login authenticates a user and issues a session token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	email = domain.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrMissingCredentials
	}

	user, err := s.users.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	return s.issue(user)
}

// ValidateToken verifies a session token and returns its claims.
func (s *AuthService) ValidateToken(_ context.Context, token string) (*domain.Claims, error) {
	return s.jwt.Verify(token)
}

// GetUser retrieves a user by ID.
func (s *AuthService) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	if userID == "" {
		return nil, ErrUserNotFound
	}
	user, err := s.users.FindUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

func (s *AuthService) issue(user *domain.User) (*Session, error) {
	token, err := s.jwt.Issue(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}
	return &Session{User: user, Token: token}, nil
}
