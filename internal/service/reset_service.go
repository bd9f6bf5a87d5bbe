package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"pepper/internal/auth"
	apperrors "pepper/internal/errors"
	"pepper/internal/mailer"
	"pepper/internal/repository"
)

const resetTokenTTL = time.Hour

// ResetService manages the password-reset token lifecycle.
type ResetService interface {
	// RequestReset issues a reset token and mails the reset link. An unknown
	// email is not an error: the caller responds identically either way so
	// the endpoint cannot be used to enumerate accounts.
	RequestReset(ctx context.Context, email string) error
	// ResetPassword consumes a token and sets the new password.
	ResetPassword(ctx context.Context, token, newPassword string) error
}

type resetService struct {
	repo        repository.UserRepository
	mailer      mailer.Mailer
	frontendURL string
}

// NewResetService creates a new password-reset service.
func NewResetService(repo repository.UserRepository, m mailer.Mailer, frontendURL string) ResetService {
	return &resetService{
		repo:        repo,
		mailer:      m,
		frontendURL: frontendURL,
	}
}

// RequestReset looks the user up case-insensitively, stores a fresh token
// with a one-hour expiry, and dispatches the reset email. A newer request
// replaces any earlier token; only the newest one is valid.
func (s *resetService) RequestReset(ctx context.Context, email string) error {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return fmt.Errorf("find user: %w", err)
	}

	token, err := generateResetToken()
	if err != nil {
		return fmt.Errorf("generate reset token: %w", err)
	}
	expiresAt := time.Now().Add(resetTokenTTL)

	if err := s.repo.SetResetToken(ctx, user.ID, token, expiresAt); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}

	resetLink := fmt.Sprintf("%s/reset-password?token=%s", s.frontendURL, token)
	if err := s.mailer.SendPasswordReset(user.Email, user.Name, resetLink); err != nil {
		// The user must not be left with a valid token that was never
		// delivered: roll it back before reporting the failure.
		if clearErr := s.repo.ClearResetToken(ctx, user.ID); clearErr != nil {
			log.Printf("rollback reset token for %s: %v", user.ID, clearErr)
		}
		return apperrors.ErrDeliveryFailed
	}

	return nil
}

// ResetPassword hashes the new password and consumes the token with a single
// conditional update, enforcing single use and expiry at write time.
func (s *resetService) ResetPassword(ctx context.Context, token, newPassword string) error {
	hashed, err := auth.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.repo.ConsumeResetToken(ctx, token, hashed, time.Now()); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrInvalidOrExpiredToken
		}
		return fmt.Errorf("consume reset token: %w", err)
	}
	return nil
}

// generateResetToken returns 256 bits of entropy, hex encoded.
func generateResetToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
