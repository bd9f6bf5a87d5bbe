package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"pepper/internal/model"
)

// UserRepository defines user persistence operations.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	// CreateWithReferrer atomically credits the referrer and inserts the new
	// user in a single transaction. The credit is a single SQL increment, so
	// concurrent registrations against the same referral code cannot lose
	// updates.
	CreateWithReferrer(ctx context.Context, user *model.User, referrerID uuid.UUID, bonus decimal.Decimal) error
	Update(ctx context.Context, user *model.User) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByGoogleID(ctx context.Context, googleID string) (*model.User, error)
	FindByReferralCode(ctx context.Context, code string) (*model.User, error)
	ListReferrals(ctx context.Context, referrerID uuid.UUID) ([]model.User, error)
	SetGoogleID(ctx context.Context, id uuid.UUID, googleID string) error
	SetAdmin(ctx context.Context, id uuid.UUID, isAdmin bool) error
	SetResetToken(ctx context.Context, id uuid.UUID, token string, expiresAt time.Time) error
	ClearResetToken(ctx context.Context, id uuid.UUID) error
	// ConsumeResetToken sets the new password hash and clears the token in one
	// conditional update. Returns gorm.ErrRecordNotFound when the token does
	// not match any user or is already expired or consumed.
	ConsumeResetToken(ctx context.Context, token, passwordHash string, now time.Time) error
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new user repository.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// Create creates a new user.
func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

// CreateWithReferrer credits the referrer and inserts the new user atomically.
func (r *userRepository) CreateWithReferrer(ctx context.Context, user *model.User, referrerID uuid.UUID, bonus decimal.Decimal) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.User{}).
			Where("id = ?", referrerID).
			Updates(map[string]interface{}{
				"balance":        gorm.Expr("balance + ?", bonus),
				"referral_count": gorm.Expr("referral_count + 1"),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Create(user).Error
	})
}

// Update updates an existing user.
func (r *userRepository) Update(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Save(user).Error
}

// FindByID finds a user by ID.
func (r *userRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByEmail finds a user by email. The match is case-insensitive.
func (r *userRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("LOWER(email) = LOWER(?)", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByGoogleID finds a user by their Google identity.
func (r *userRepository) FindByGoogleID(ctx context.Context, googleID string) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("google_id = ?", googleID).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByReferralCode finds a user by exact referral code match.
func (r *userRepository) FindByReferralCode(ctx context.Context, code string) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("referral_code = ?", code).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// ListReferrals lists the users referred by the given user, oldest first.
func (r *userRepository) ListReferrals(ctx context.Context, referrerID uuid.UUID) ([]model.User, error) {
	var users []model.User
	if err := r.db.WithContext(ctx).
		Where("referred_by_id = ?", referrerID).
		Order("created_at ASC").
		Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// SetGoogleID backfills the Google identity on an existing account.
func (r *userRepository) SetGoogleID(ctx context.Context, id uuid.UUID, googleID string) error {
	return r.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", id).
		Update("google_id", googleID).Error
}

// SetAdmin persists a recomputed admin flag.
func (r *userRepository) SetAdmin(ctx context.Context, id uuid.UUID, isAdmin bool) error {
	return r.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", id).
		Update("is_admin", isAdmin).Error
}

// SetResetToken stores a reset token and its expiry, replacing any active one.
func (r *userRepository) SetResetToken(ctx context.Context, id uuid.UUID, token string, expiresAt time.Time) error {
	return r.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"reset_token":            token,
			"reset_token_expires_at": expiresAt,
		}).Error
}

// ClearResetToken removes the active reset token, if any.
func (r *userRepository) ClearResetToken(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"reset_token":            nil,
			"reset_token_expires_at": nil,
		}).Error
}

// ConsumeResetToken performs the conditional single-use update. The token and
// expiry are re-checked at write time, so a token superseded by a newer reset
// request between lookup and write cannot be consumed.
func (r *userRepository) ConsumeResetToken(ctx context.Context, token, passwordHash string, now time.Time) error {
	res := r.db.WithContext(ctx).Model(&model.User{}).
		Where("reset_token = ? AND reset_token_expires_at > ?", token, now).
		Updates(map[string]interface{}{
			"password_hash":          passwordHash,
			"reset_token":            nil,
			"reset_token_expires_at": nil,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
