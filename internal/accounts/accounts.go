// Package accounts registers users and logs them in, issuing JWTs. Both the
// gRPC and HTTP surfaces go through it.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"time"

	"github.com/PaulBabatuyi/wastex-messaging/internal/auth"
	"github.com/PaulBabatuyi/wastex-messaging/internal/data"
	"github.com/PaulBabatuyi/wastex-messaging/internal/messaging"
	"github.com/PaulBabatuyi/wastex-messaging/internal/normalize"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 8

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidInput       = errors.New("invalid input")
)

// UserStore is the part of data.UsersStore accounts needs.
type UserStore interface {
	CreateUser(ctx context.Context, in data.NewUser) (*data.User, error)
	GetUserByEmail(ctx context.Context, email string) (*data.User, error)
}

// Token is an issued session token.
type Token struct {
	Token     string
	UserID    string
	ExpiresAt time.Time
}

// RegisterInput is a sign-up request. Password is plain text.
type RegisterInput struct {
	Email       string
	Password    string
	FirstName   string
	LastName    string
	CompanyName string
	Role        messaging.Role
}

type Service struct {
	users UserStore
	jwt   *auth.JWTManager
}

func NewService(users UserStore, jwt *auth.JWTManager) *Service {
	return &Service{users: users, jwt: jwt}
}

func (in RegisterInput) validate() error {
	email := normalize.Email(in.Email)
	if _, err := mail.ParseAddress(email); err != nil {
		return fmt.Errorf("%w: email %q", ErrInvalidInput, in.Email)
	}
	if len(in.Password) < MinPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, MinPasswordLength)
	}
	if !in.Role.Valid() {
		return fmt.Errorf("%w: role %q", ErrInvalidInput, in.Role)
	}
	return nil
}

// Register hashes the password, stores the user and returns a token.
// data.ErrUserExists is returned as is.
func (s *Service) Register(ctx context.Context, in RegisterInput) (Token, error) {
	if err := in.validate(); err != nil {
		return Token{}, err
	}
	hashed, err := auth.HashPassword(in.Password)
	if err != nil {
		return Token{}, fmt.Errorf("hash password: %w", err)
	}
	user, err := s.users.CreateUser(ctx, data.NewUser{
		Email:       in.Email,
		Password:    hashed,
		FirstName:   in.FirstName,
		LastName:    in.LastName,
		CompanyName: in.CompanyName,
		Role:        in.Role,
	})
	if err != nil {
		return Token{}, err
	}
	return s.issue(user)
}

// Login checks the password of the account registered under email. Unknown
// accounts and wrong passwords both yield ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, email, password string) (Token, error) {
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, data.ErrUserNotFound) {
			return Token{}, ErrInvalidCredentials
		}
		return Token{}, err
	}
	if err := auth.CheckPassword(user.Password, password); err != nil {
		return Token{}, ErrInvalidCredentials
	}
	return s.issue(user)
}

func (s *Service) issue(user *data.User) (Token, error) {
	id := user.ID.Hex()
	token, expiresAt, err := s.jwt.GenerateToken(id, user.Email)
	if err != nil {
		return Token{}, fmt.Errorf("generate token: %w", err)
	}
	return Token{Token: token, UserID: id, ExpiresAt: expiresAt}, nil
}
