package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"gorm.io/gorm"

	"pepper/internal/cache"
	apperrors "pepper/internal/errors"
	"pepper/internal/model"
	"pepper/internal/repository"
)

// GoogleProfile is the identity assertion extracted from Google's userinfo
// endpoint.
type GoogleProfile struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// OAuthConfig holds Google OAuth configuration.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	CallbackURL  string
	AdminEmails  []string
	WelcomeBonus decimal.Decimal
}

// OAuthService resolves Google identity assertions to user records, creating
// them on first login.
type OAuthService struct {
	repo        repository.UserRepository
	ledger      *ReferralLedger
	cache       *cache.Client
	oauth       *oauth2.Config
	adminEmails map[string]bool
	welcome     decimal.Decimal
}

// NewOAuthService creates a new Google OAuth service.
func NewOAuthService(repo repository.UserRepository, ledger *ReferralLedger, cache *cache.Client, cfg OAuthConfig) *OAuthService {
	admins := make(map[string]bool, len(cfg.AdminEmails))
	for _, e := range cfg.AdminEmails {
		admins[strings.ToLower(e)] = true
	}
	return &OAuthService{
		repo:   repo,
		ledger: ledger,
		cache:  cache,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{"openid", "profile", "email"},
			RedirectURL:  cfg.CallbackURL,
		},
		adminEmails: admins,
		welcome:     cfg.WelcomeBonus,
	}
}

// AuthURL returns the Google consent page URL. The state parameter carries
// the referral code opaquely through the OAuth round trip.
func (s *OAuthService) AuthURL(state string) string {
	return s.oauth.AuthCodeURL(state, oauth2.SetAuthURLParam("prompt", "select_account"))
}

// Callback exchanges the authorization code and resolves the user.
func (s *OAuthService) Callback(ctx context.Context, code, state string) (*model.User, error) {
	token, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: token exchange: %v", apperrors.ErrAuthenticationFailed, err)
	}

	profile, err := fetchGoogleProfile(ctx, token.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch profile: %v", apperrors.ErrAuthenticationFailed, err)
	}

	return s.Resolve(ctx, profile, state)
}

// Resolve finds or creates the user for a Google profile. Lookup order is
// google_id first, then email (backfilling google_id on accounts registered
// locally before their first Google login). The referral code riding in the
// OAuth state applies only when a user is created. Admin status is recomputed
// from the allowlist on every login and persisted when it changed.
func (s *OAuthService) Resolve(ctx context.Context, profile *GoogleProfile, referralCode string) (*model.User, error) {
	if profile.ID == "" || profile.Email == "" {
		return nil, apperrors.ErrAuthenticationFailed
	}
	email := strings.ToLower(profile.Email)

	user, err := s.repo.FindByGoogleID(ctx, profile.ID)
	if err == nil {
		return user, s.refreshAdmin(ctx, user)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("find by google id: %w", err)
	}

	user, err = s.repo.FindByEmail(ctx, email)
	if err == nil {
		if err := s.repo.SetGoogleID(ctx, user.ID, profile.ID); err != nil {
			return nil, fmt.Errorf("backfill google id: %w", err)
		}
		googleID := profile.ID
		user.GoogleID = &googleID
		return user, s.refreshAdmin(ctx, user)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("find by email: %w", err)
	}

	googleID := profile.ID
	user = &model.User{
		GoogleID:     &googleID,
		Name:         profile.Name,
		Email:        email,
		Balance:      s.welcome,
		ReferralCode: GenerateReferralCode(),
		IsAdmin:      s.adminEmails[email],
	}
	if profile.Picture != "" {
		avatar := profile.Picture
		user.Avatar = &avatar
	}

	if err := s.ledger.CreateUser(ctx, user, referralCode); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *OAuthService) refreshAdmin(ctx context.Context, user *model.User) error {
	want := s.adminEmails[strings.ToLower(user.Email)]
	if want == user.IsAdmin {
		return nil
	}
	if err := s.repo.SetAdmin(ctx, user.ID, want); err != nil {
		return fmt.Errorf("update admin flag: %w", err)
	}
	user.IsAdmin = want
	_ = s.cache.Delete(ctx, userCacheKey(user.ID))
	return nil
}

func fetchGoogleProfile(ctx context.Context, accessToken string) (*GoogleProfile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		"https://www.googleapis.com/oauth2/v2/userinfo", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google user info returned status %d", resp.StatusCode)
	}

	var profile GoogleProfile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("decode user info: %w", err)
	}
	return &profile, nil
}
