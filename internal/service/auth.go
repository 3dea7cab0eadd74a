package service

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	apperrors "parkgate/internal/errors"
	"parkgate/internal/models"
)

// UserReader looks users up for login
type UserReader interface {
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}

type AuthService struct {
	users  UserReader
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewAuthService(users UserReader, secret string, ttl time.Duration) *AuthService {
	return &AuthService{users: users, secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Login verifies the password and issues an HS256 token
func (s *AuthService) Login(ctx context.Context, username, password string) (*models.LoginResponse, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil || !user.IsActive || !VerifyPassword(user.PasswordHash, password) {
		return nil, fmt.Errorf("%w: invalid username or password", apperrors.ErrUnauthorized)
	}

	sessionUser := models.SessionUser{ID: user.ID, Username: user.Username, Role: user.Role}
	token, err := s.IssueToken(sessionUser)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	return &models.LoginResponse{User: sessionUser, Token: token}, nil
}

func (s *AuthService) IssueToken(user models.SessionUser) (string, error) {
	now := s.now().UTC()
	claims := jwt.MapClaims{
		"sub":      user.ID,
		"role":     user.Role,
		"username": user.Username,
		"exp":      now.Add(s.ttl).Unix(),
		"iat":      now.Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// ParseToken validates signature and expiry and returns the token's user
func (s *AuthService) ParseToken(raw string) (*models.SessionUser, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil || !tok.Valid {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrUnauthorized, err)
	}

	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("%w: invalid claims", apperrors.ErrUnauthorized)
	}
	sub, _ := claims["sub"].(string)
	role, _ := claims["role"].(string)
	username, _ := claims["username"].(string)
	if sub == "" || (role != models.RoleAdmin && role != models.RoleEmployee) {
		return nil, fmt.Errorf("%w: invalid claims", apperrors.ErrUnauthorized)
	}

	return &models.SessionUser{ID: sub, Username: username, Role: role}, nil
}

// HashPassword returns a bcrypt hash with the default cost
func HashPassword(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
