package service

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"gorm.io/gorm"

	"pepper/internal/model"
)

var testBonus = decimal.NewFromInt(65)

func newUser(email string) *model.User {
	return &model.User{
		ID:           uuid.New(),
		Name:         "User",
		Email:        email,
		Balance:      decimal.NewFromInt(50),
		ReferralCode: GenerateReferralCode(),
	}
}

func TestReferralLedger_CreateUser_WithReferrer(t *testing.T) {
	referrer := newUser("referrer@example.com")

	mockRepo := new(MockUserRepository)
	mockRepo.On("FindByReferralCode", mock.Anything, referrer.ReferralCode).Return(referrer, nil)
	mockRepo.On("CreateWithReferrer", mock.Anything, mock.AnythingOfType("*model.User"), referrer.ID, testBonus).Return(nil)

	ledger := NewReferralLedger(mockRepo, testCache(), testBonus)

	user := newUser("new@example.com")
	err := ledger.CreateUser(context.Background(), user, referrer.ReferralCode)

	assert.NoError(t, err)
	if assert.NotNil(t, user.ReferredByID) {
		assert.Equal(t, referrer.ID, *user.ReferredByID)
	}
	mockRepo.AssertExpectations(t)
	mockRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestReferralLedger_CreateUser_UnknownCodeSkipsSilently(t *testing.T) {
	mockRepo := new(MockUserRepository)
	mockRepo.On("FindByReferralCode", mock.Anything, "stale-code").Return(nil, gorm.ErrRecordNotFound)
	mockRepo.On("Create", mock.Anything, mock.AnythingOfType("*model.User")).Return(nil)

	ledger := NewReferralLedger(mockRepo, testCache(), testBonus)

	user := newUser("new@example.com")
	err := ledger.CreateUser(context.Background(), user, "stale-code")

	assert.NoError(t, err)
	assert.Nil(t, user.ReferredByID)
	mockRepo.AssertExpectations(t)
	mockRepo.AssertNotCalled(t, "CreateWithReferrer", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestReferralLedger_CreateUser_NoCode(t *testing.T) {
	mockRepo := new(MockUserRepository)
	mockRepo.On("Create", mock.Anything, mock.AnythingOfType("*model.User")).Return(nil)

	ledger := NewReferralLedger(mockRepo, testCache(), testBonus)

	user := newUser("new@example.com")
	err := ledger.CreateUser(context.Background(), user, "")

	assert.NoError(t, err)
	assert.Nil(t, user.ReferredByID)
	mockRepo.AssertNotCalled(t, "FindByReferralCode", mock.Anything, mock.Anything)
	mockRepo.AssertExpectations(t)
}

func TestReferralLedger_CreateUser_RetriesCodeCollision(t *testing.T) {
	mockRepo := new(MockUserRepository)
	mockRepo.On("Create", mock.Anything, mock.AnythingOfType("*model.User")).Return(gorm.ErrDuplicatedKey).Once()
	mockRepo.On("Create", mock.Anything, mock.AnythingOfType("*model.User")).Return(nil).Once()

	ledger := NewReferralLedger(mockRepo, testCache(), testBonus)

	user := newUser("new@example.com")
	firstCode := user.ReferralCode
	err := ledger.CreateUser(context.Background(), user, "")

	assert.NoError(t, err)
	assert.NotEqual(t, firstCode, user.ReferralCode)
	mockRepo.AssertExpectations(t)
}

// Two registrations racing on the same referral code must both reach the
// storage-layer increment; the referrer credit is a single SQL statement so
// neither update can be lost.
func TestReferralLedger_CreateUser_ConcurrentSameReferrer(t *testing.T) {
	referrer := newUser("referrer@example.com")

	mockRepo := new(MockUserRepository)
	mockRepo.On("FindByReferralCode", mock.Anything, referrer.ReferralCode).Return(referrer, nil)
	mockRepo.On("CreateWithReferrer", mock.Anything, mock.AnythingOfType("*model.User"), referrer.ID, testBonus).Return(nil)

	ledger := NewReferralLedger(mockRepo, testCache(), testBonus)

	users := []*model.User{newUser("b@example.com"), newUser("c@example.com")}
	var wg sync.WaitGroup
	errs := make([]error, len(users))
	for i, u := range users {
		wg.Add(1)
		go func(i int, u *model.User) {
			defer wg.Done()
			errs[i] = ledger.CreateUser(context.Background(), u, referrer.ReferralCode)
		}(i, u)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	for _, u := range users {
		if assert.NotNil(t, u.ReferredByID) {
			assert.Equal(t, referrer.ID, *u.ReferredByID)
		}
	}
	mockRepo.AssertNumberOfCalls(t, "CreateWithReferrer", 2)
}

func TestGenerateReferralCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		code := GenerateReferralCode()
		assert.Len(t, code, 8)
		for _, r := range code {
			assert.Contains(t, referralCodeCharset, string(r))
		}
		seen[code] = true
	}
	// 100 draws from 62^8 should not collide
	assert.Len(t, seen, 100)
}
