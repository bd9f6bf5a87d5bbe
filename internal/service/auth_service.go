package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"pepper/internal/auth"
	apperrors "pepper/internal/errors"
	"pepper/internal/model"
	"pepper/internal/repository"
)

// AuthService handles local credential registration and login.
type AuthService interface {
	Register(ctx context.Context, name, email, password, referralCode string) (*model.User, error)
	Login(ctx context.Context, email, password string) (*model.User, error)
}

type authService struct {
	repo         repository.UserRepository
	ledger       *ReferralLedger
	welcomeBonus decimal.Decimal
}

// NewAuthService creates a new authentication service.
func NewAuthService(repo repository.UserRepository, ledger *ReferralLedger, welcomeBonus decimal.Decimal) AuthService {
	return &authService{
		repo:         repo,
		ledger:       ledger,
		welcomeBonus: welcomeBonus,
	}
}

// Register creates a local account with a hashed password and the welcome
// bonus, applying referral linkage when a code is supplied.
func (s *authService) Register(ctx context.Context, name, email, password, referralCode string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	existing, err := s.repo.FindByEmail(ctx, email)
	if err == nil && existing != nil {
		return nil, apperrors.ErrDuplicateEmail
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("check user existence: %w", err)
	}

	hashed, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &model.User{
		Name:         name,
		Email:        email,
		PasswordHash: &hashed,
		Balance:      s.welcomeBonus,
		ReferralCode: GenerateReferralCode(),
	}

	if err := s.ledger.CreateUser(ctx, user, referralCode); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperrors.ErrDuplicateEmail
		}
		return nil, err
	}

	return user, nil
}

// Login verifies local credentials. All failure modes return the same
// ErrInvalidCredentials so the response cannot reveal whether the email is
// registered.
func (s *authService) Login(ctx context.Context, email, password string) (*model.User, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, apperrors.ErrInvalidCredentials
	}

	if !user.HasPassword() {
		// OAuth-only account
		return nil, apperrors.ErrInvalidCredentials
	}

	if !auth.VerifyPassword(password, *user.PasswordHash) {
		return nil, apperrors.ErrInvalidCredentials
	}

	return user, nil
}
