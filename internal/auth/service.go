package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/vovakirdan/ephemeral-chat/internal/store"
)

var (
	// ErrInvalidCredentials is returned when email/password don't match.
	ErrInvalidCredentials = errors.New("invalid login credentials")
	// ErrUserExists is returned when trying to register an email that is taken.
	ErrUserExists = errors.New("user already registered")
	// ErrInvalidEmail is returned when the email is not an address.
	ErrInvalidEmail = errors.New("unable to validate email address: invalid format")
	// ErrInvalidUsername is returned when username doesn't meet constraints.
	ErrInvalidUsername = errors.New("username should be at most 32 characters")
	// ErrInvalidPassword is returned when password doesn't meet constraints.
	ErrInvalidPassword = errors.New("password should be at least 6 characters")
	// ErrInvalidRefreshToken is returned when a refresh token cannot be used.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
)

const (
	minPasswordLen = 6
	maxUsernameLen = 32
)

// TokenPair is issued on sign-in and refresh.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	User         *store.User
}

// Service provides authentication operations.
type Service struct {
	store     store.UserStore
	jwtConfig *JWTConfig
}

// NewService creates a new authentication service.
func NewService(userStore store.UserStore, jwtConfig *JWTConfig) *Service {
	return &Service{
		store:     userStore,
		jwtConfig: jwtConfig,
	}
}

// SignUp validates the input and creates a user. No tokens are issued; the caller signs in next.
func (s *Service) SignUp(ctx context.Context, email, password, username string) (*store.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return nil, ErrInvalidEmail
	}
	username = strings.TrimSpace(username)
	if len([]rune(username)) > maxUsernameLen {
		return nil, ErrInvalidUsername
	}
	if len(password) < minPasswordLen {
		return nil, ErrInvalidPassword
	}

	hashedPassword, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.store.CreateUser(ctx, email, username, hashedPassword)
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	return user, nil
}

// SignIn validates credentials and issues a token pair.
func (s *Service) SignIn(ctx context.Context, email, password string) (*TokenPair, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	if errPwd := ComparePassword(user.PasswordHash, password); errPwd != nil {
		return nil, ErrInvalidCredentials
	}

	return s.issue(user)
}

// Refresh exchanges a valid refresh token for a new pair.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := ValidateToken(s.jwtConfig, refreshToken, TokenRefresh)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRefreshToken, err)
	}

	user, err := s.store.GetUserByID(ctx, claims.UserID())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRefreshToken, err)
	}

	return s.issue(user)
}

// ValidateToken validates an access token and returns the claims.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	return ValidateToken(s.jwtConfig, tokenString, TokenAccess)
}

// GetUser loads the user behind a validated token.
func (s *Service) GetUser(ctx context.Context, id string) (*store.User, error) {
	return s.store.GetUserByID(ctx, id)
}

func (s *Service) issue(user *store.User) (*TokenPair, error) {
	access, expiresAt, err := GenerateToken(s.jwtConfig, user.ID, user.Email, user.Username, TokenAccess)
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}
	refresh, _, err := GenerateToken(s.jwtConfig, user.ID, user.Email, user.Username, TokenRefresh)
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    expiresAt,
		User:         user,
	}, nil
}
