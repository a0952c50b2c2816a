package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/vovakirdan/pairchat/internal/store"
)

var (
	// ErrInvalidCredentials is returned when email/password don't match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserExists is returned when trying to sign up with an existing email.
	ErrUserExists = errors.New("user already exists")
	// ErrInvalidEmail is returned when the email is not a plain address.
	ErrInvalidEmail = errors.New("invalid email")
	// ErrInvalidName is returned when the full name is empty or too long.
	ErrInvalidName = errors.New("invalid full name")
	// ErrInvalidPassword is returned when password doesn't meet constraints.
	ErrInvalidPassword = errors.New("invalid password")
)

const (
	minPasswordLen = 6
	maxNameLen     = 64
	maxBioLen      = 280
)

// SignupRequest carries the fields of a new account.
type SignupRequest struct {
	Email    string
	FullName string
	Password string
	Bio      string
}

// Session is an issued token together with the user it belongs to.
type Session struct {
	Token string
	User  *store.User
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

// Signup creates a new user with a hashed password and returns a session.
func (s *Service) Signup(ctx context.Context, req SignupRequest) (*Session, error) {
	email := normalizeEmail(req.Email)
	if _, err := mail.ParseAddress(email); err != nil || strings.ContainsAny(email, "<> ") {
		return nil, ErrInvalidEmail
	}
	name := strings.TrimSpace(req.FullName)
	if name == "" || len(name) > maxNameLen {
		return nil, ErrInvalidName
	}
	if len(req.Password) < minPasswordLen {
		return nil, ErrInvalidPassword
	}
	bio := strings.TrimSpace(req.Bio)
	if len(bio) > maxBioLen {
		bio = bio[:maxBioLen]
	}

	hashedPassword, err := HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &store.User{
		Email:        email,
		FullName:     name,
		PasswordHash: hashedPassword,
		Bio:          bio,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	return s.issue(user)
}

// Login validates credentials and returns a session.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.store.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	if errPwd := ComparePassword(user.PasswordHash, password); errPwd != nil {
		return nil, ErrInvalidCredentials
	}

	return s.issue(user)
}

// CurrentUser loads the account behind a validated token.
func (s *Service) CurrentUser(ctx context.Context, userID int64) (*store.User, error) {
	return s.store.GetUserByID(ctx, userID)
}

// ValidateToken validates a JWT token and returns the claims.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	return ValidateToken(s.jwtConfig, tokenString)
}

func (s *Service) issue(user *store.User) (*Session, error) {
	token, err := GenerateToken(s.jwtConfig, user.ID, user.Email, user.FullName)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	return &Session{Token: token, User: user}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
