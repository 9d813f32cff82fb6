package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"project-chat/internal/config"
	"project-chat/internal/database"
	"project-chat/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidRequest     = errors.New("invalid request")
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// Claims carries the user id and role, mirroring what the web client
// receives from the login endpoint.
type Claims struct {
	ID   string      `json:"id"`
	Role models.Role `json:"role"`
	jwt.RegisteredClaims
}

type Service struct {
	users database.UserRepository
	cfg   *config.Config
	now   func() time.Time
}

func NewService(users database.UserRepository, cfg *config.Config) *Service {
	return &Service{
		users: users,
		cfg:   cfg,
		now:   time.Now,
	}
}

func (s *Service) Register(ctx context.Context, req *models.RegisterRequest) (*models.LoginResponse, error) {
	if err := validateRegistrationRequest(req); err != nil {
		return nil, err
	}

	user, err := s.users.CreateUser(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	token, err := s.GenerateToken(user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	return &models.LoginResponse{
		Token: token,
		User:  *user,
	}, nil
}

func (s *Service) Login(ctx context.Context, req *models.LoginRequest) (*models.LoginResponse, error) {
	user, err := s.users.GetUserByEmail(ctx, req.Email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, err := s.GenerateToken(user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	// Remove sensitive data
	user.PasswordHash = ""

	return &models.LoginResponse{
		Token: token,
		User:  *user,
	}, nil
}

// ValidateToken checks signature, algorithm and expiry.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.cfg.JWT.Secret, nil
	}, jwt.WithExpirationRequired(), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.ID == "" {
		return nil, fmt.Errorf("%w: invalid token claims", ErrUnauthenticated)
	}

	return claims, nil
}

// Authenticate resolves a connection credential to its user. It is called
// once per socket, before any channel operation becomes reachable.
func (s *Service) Authenticate(ctx context.Context, tokenString string) (*models.User, error) {
	if strings.TrimSpace(tokenString) == "" {
		return nil, fmt.Errorf("%w: missing token", ErrUnauthenticated)
	}

	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetUserByID(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	return user, nil
}

func (s *Service) GenerateToken(user *models.User) (string, error) {
	now := s.now()
	claims := Claims{
		ID:   user.ID,
		Role: user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.JWT.ExpiresIn)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.cfg.JWT.Secret)
}

func validateRegistrationRequest(req *models.RegisterRequest) error {
	req.FullName = strings.TrimSpace(req.FullName)
	req.Email = strings.TrimSpace(req.Email)

	if req.FullName == "" || req.Email == "" || req.Password == "" {
		return fmt.Errorf("%w: missing required fields", ErrInvalidRequest)
	}

	if !emailRegex.MatchString(req.Email) {
		return fmt.Errorf("%w: invalid email format", ErrInvalidRequest)
	}

	if len(req.Password) < 8 {
		return fmt.Errorf("%w: password must be at least 8 characters long", ErrInvalidRequest)
	}

	switch req.Role {
	case "", models.RoleManager, models.RoleTeamMember:
	default:
		return fmt.Errorf("%w: invalid role %q", ErrInvalidRequest, req.Role)
	}

	return nil
}
