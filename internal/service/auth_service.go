package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/PrasangJhawar/storefront/internal/auth"
	"github.com/PrasangJhawar/storefront/internal/domain"
	"github.com/PrasangJhawar/storefront/internal/mailer"
	"github.com/PrasangJhawar/storefront/internal/repository"
)

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

type AuthService struct {
	users  repository.UserRepository
	tokens *auth.TokenManager
	mail   mailer.Mailer
}

func NewAuthService(users repository.UserRepository, tokens *auth.TokenManager, mail mailer.Mailer) *AuthService {
	return &AuthService{
		users:  users,
		tokens: tokens,
		mail:   mail,
	}
}

func (s *AuthService) Signup(ctx context.Context, name, email, password string, role domain.UserRole) (*domain.User, error) {
	if name == "" || email == "" || password == "" {
		return nil, fmt.Errorf("%w: name, email and password are required", ErrInvalidInput)
	}
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, role)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		ID:           uuid.New(),
		Name:         name,
		Email:        email,
		Role:         role,
		PasswordHash: hash,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Signin never reveals whether the email or the password was wrong.
func (s *AuthService) Signin(ctx context.Context, email, password string) (*TokenPair, error) {
	user, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !auth.VerifyPassword(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	return s.issueTokens(user)
}

// Refresh exchanges a valid refresh token for a fresh pair. The user is
// re-read so a role change or deletion takes effect immediately.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	identity, err := s.tokens.ParseRefreshToken(refreshToken)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.GetUserByID(ctx, identity.UserID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	return s.issueTokens(user)
}

// ForgotPassword always reports success so the endpoint cannot be used to
// probe which emails are registered.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	token, err := s.tokens.CreateResetToken(user.Email)
	if err != nil {
		return err
	}

	if err := s.mail.SendPasswordReset(ctx, user.Email, token); err != nil {
		log.Printf("failed to send reset email: %v", err)
		return fmt.Errorf("failed to send reset email: %w", err)
	}
	return nil
}

func (s *AuthService) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	if newPassword == "" {
		return fmt.Errorf("%w: new password is required", ErrInvalidInput)
	}

	email, err := s.tokens.ParseResetToken(resetToken)
	if err != nil {
		return ErrInvalidCredentials
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return err
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return err
	}
	return s.users.UpdatePassword(ctx, user.ID, hash)
}

func (s *AuthService) issueTokens(user *domain.User) (*TokenPair, error) {
	access, err := s.tokens.CreateAccessToken(user.ID, user.Role)
	if err != nil {
		return nil, err
	}
	refresh, err := s.tokens.CreateRefreshToken(user.ID, user.Role)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
	}, nil
}
