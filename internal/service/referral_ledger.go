package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"pepper/internal/cache"
	"pepper/internal/model"
	"pepper/internal/repository"
)

const (
	referralCodeLength  = 8
	referralCodeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

	// Referral code collisions are rare; a duplicate-key error on insert is
	// retried with a fresh code this many times before giving up.
	maxCreateAttempts = 3
)

// ReferralLedger applies account-creation side effects: it resolves an
// optional referral code, links the new user to the referrer, and credits the
// referrer's balance. It runs exactly once per user creation and never on
// login, so a user can never acquire a second referrer.
type ReferralLedger struct {
	repo  repository.UserRepository
	cache *cache.Client
	bonus decimal.Decimal
}

// NewReferralLedger creates a ledger crediting the given bonus per referral.
func NewReferralLedger(repo repository.UserRepository, cache *cache.Client, bonus decimal.Decimal) *ReferralLedger {
	return &ReferralLedger{repo: repo, cache: cache, bonus: bonus}
}

// CreateUser persists a new user, applying referral linkage when a referral
// code is supplied. The code is untrusted input: it is looked up by exact
// match and an unknown or stale code is skipped silently, not an error.
func (l *ReferralLedger) CreateUser(ctx context.Context, user *model.User, referralCode string) error {
	var referrer *model.User
	if referralCode != "" {
		found, err := l.repo.FindByReferralCode(ctx, referralCode)
		switch {
		case err == nil:
			referrer = found
		case errors.Is(err, gorm.ErrRecordNotFound):
			// stale or mistyped code
		default:
			return fmt.Errorf("lookup referrer: %w", err)
		}
	}

	if referrer != nil {
		user.ReferredByID = &referrer.ID
	}

	if err := l.create(ctx, user, referrer); err != nil {
		return err
	}

	if referrer != nil {
		// The referrer's cached profile now carries a stale balance.
		_ = l.cache.Delete(ctx, userCacheKey(referrer.ID))
	}
	return nil
}

func (l *ReferralLedger) create(ctx context.Context, user *model.User, referrer *model.User) error {
	for attempt := 0; attempt < maxCreateAttempts; attempt++ {
		var err error
		if referrer != nil {
			err = l.repo.CreateWithReferrer(ctx, user, referrer.ID, l.bonus)
		} else {
			err = l.repo.Create(ctx, user)
		}
		if err == nil {
			return nil
		}
		// Email duplicates are pre-checked by callers, so a duplicate key
		// here is almost always a referral code collision. Regenerate and
		// retry; if the email raced, the retry fails the same way and the
		// error propagates.
		if errors.Is(err, gorm.ErrDuplicatedKey) && attempt < maxCreateAttempts-1 {
			user.ReferralCode = GenerateReferralCode()
			continue
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// GenerateReferralCode returns a random 8-character alphanumeric code.
func GenerateReferralCode() string {
	code := make([]byte, referralCodeLength)
	max := big.NewInt(int64(len(referralCodeCharset)))
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand failing means the process is in a bad state
			panic(fmt.Sprintf("generate referral code: %v", err))
		}
		code[i] = referralCodeCharset[n.Int64()]
	}
	return string(code)
}
