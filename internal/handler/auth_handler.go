package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"pepper/internal/auth"
	"pepper/internal/errors"
	"pepper/internal/model"
	"pepper/internal/service"
)

// SessionContextKey is where the session middleware stores parsed claims.
const SessionContextKey = "session"

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	authService  service.AuthService
	oauthService *service.OAuthService
	resetService service.ResetService
	userService  service.UserService
	sessions     *auth.SessionService
	sessionStore auth.SessionStoreInterface
	frontendURL  string
	secureCookie bool
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(
	authService service.AuthService,
	oauthService *service.OAuthService,
	resetService service.ResetService,
	userService service.UserService,
	sessions *auth.SessionService,
	sessionStore auth.SessionStoreInterface,
	frontendURL string,
	secureCookie bool,
) *AuthHandler {
	return &AuthHandler{
		authService:  authService,
		oauthService: oauthService,
		resetService: resetService,
		userService:  userService,
		sessions:     sessions,
		sessionStore: sessionStore,
		frontendURL:  frontendURL,
		secureCookie: secureCookie,
	}
}

// RegisterRequest represents a local registration request.
type RegisterRequest struct {
	Name         string `json:"name" validate:"required"`
	Email        string `json:"email" validate:"required,email"`
	Password     string `json:"password" validate:"required,min=6"`
	ReferralCode string `json:"referralCode"`
}

// LoginRequest represents a local login request.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// ForgotPasswordRequest represents a reset-request body.
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ResetPasswordRequest represents a reset-consumption body.
type ResetPasswordRequest struct {
	NewPassword string `json:"newPassword" validate:"required,min=6"`
}

// UserSummary is the user shape returned by register and login.
type UserSummary struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Email        string          `json:"email"`
	Balance      decimal.Decimal `json:"balance"`
	ReferredBy   *string         `json:"referredBy"`
	ReferralCode string          `json:"referralCode"`
}

// ProfileResponse is the user shape returned by /auth/me.
type ProfileResponse struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Email        string          `json:"email"`
	Avatar       string          `json:"avatar,omitempty"`
	IsAdmin      bool            `json:"isAdmin"`
	Balance      decimal.Decimal `json:"balance"`
	ReferralCode string          `json:"referralCode"`
}

func summarize(u *model.User) UserSummary {
	var referredBy *string
	if u.ReferredByID != nil {
		id := u.ReferredByID.String()
		referredBy = &id
	}
	return UserSummary{
		ID:           u.ID.String(),
		Name:         u.Name,
		Email:        u.Email,
		Balance:      u.Balance,
		ReferredBy:   referredBy,
		ReferralCode: u.ReferralCode,
	}
}

// Register godoc
// @Summary Register a local account
// @Tags auth
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Registration data"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /auth/register [post]
func (h *AuthHandler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
			Error: "invalid request body",
			Code:  "INVALID_BODY",
		})
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
			Error: "all fields are required",
			Code:  "VALIDATION_ERROR",
		})
	}

	user, err := h.authService.Register(c.Request().Context(), req.Name, req.Email, req.Password, req.ReferralCode)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusCreated, map[string]interface{}{
		"message": "user registered successfully",
		"user":    summarize(user),
	})
}

// Login godoc
// @Summary Login with local credentials
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login credentials"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
			Error: "invalid request body",
			Code:  "INVALID_BODY",
		})
	}
	if err := c.Validate(&req); err != nil {
		// Same response as a wrong password: see ErrInvalidCredentials.
		return httpError(errors.ErrInvalidCredentials)
	}

	user, err := h.authService.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return httpError(err)
	}

	if err := h.createSession(c, user); err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "login successful",
		"user":    summarize(user),
	})
}

// GoogleRedirect godoc
// @Summary Redirect to Google's consent page
// @Tags auth
// @Param referralCode query string false "Referral code forwarded as OAuth state"
// @Success 307
// @Router /auth/google [get]
func (h *AuthHandler) GoogleRedirect(c echo.Context) error {
	state := c.QueryParam("referralCode")
	return c.Redirect(http.StatusTemporaryRedirect, h.oauthService.AuthURL(state))
}

// GoogleCallback godoc
// @Summary Google OAuth callback
// @Tags auth
// @Success 302
// @Router /auth/google/callback [get]
func (h *AuthHandler) GoogleCallback(c echo.Context) error {
	code := c.QueryParam("code")
	if code == "" || c.QueryParam("error") != "" {
		return c.Redirect(http.StatusFound, h.frontendURL+"/login")
	}

	user, err := h.oauthService.Callback(c.Request().Context(), code, c.QueryParam("state"))
	if err != nil {
		c.Logger().Errorf("google callback: %v", err)
		return c.Redirect(http.StatusFound, h.frontendURL+"/login")
	}

	if err := h.createSession(c, user); err != nil {
		c.Logger().Errorf("create session: %v", err)
		return c.Redirect(http.StatusFound, h.frontendURL+"/login")
	}

	if user.IsAdmin {
		return c.Redirect(http.StatusFound, h.frontendURL+"/joker/dashboard")
	}
	return c.Redirect(http.StatusFound, h.frontendURL+"/user/dashboard")
}

// Me godoc
// @Summary Current user profile
// @Tags auth
// @Produce json
// @Success 200 {object} ProfileResponse
// @Failure 401 {object} errors.ErrorResponse
// @Router /auth/me [get]
func (h *AuthHandler) Me(c echo.Context) error {
	userID, err := sessionUserID(c)
	if err != nil {
		return httpError(errors.ErrNotAuthenticated)
	}

	user, err := h.userService.GetUser(c.Request().Context(), userID)
	if err != nil {
		return httpError(err)
	}

	resp := ProfileResponse{
		ID:           user.ID.String(),
		Name:         user.Name,
		Email:        user.Email,
		IsAdmin:      user.IsAdmin,
		Balance:      user.Balance,
		ReferralCode: user.ReferralCode,
	}
	if user.Avatar != nil {
		resp.Avatar = *user.Avatar
	}
	return c.JSON(http.StatusOK, resp)
}

// MyReferrals godoc
// @Summary Users referred by the current user
// @Tags auth
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} errors.ErrorResponse
// @Router /auth/me/referrals [get]
func (h *AuthHandler) MyReferrals(c echo.Context) error {
	userID, err := sessionUserID(c)
	if err != nil {
		return httpError(errors.ErrNotAuthenticated)
	}

	referrals, err := h.userService.ListReferrals(c.Request().Context(), userID)
	if err != nil {
		return httpError(err)
	}

	out := make([]UserSummary, 0, len(referrals))
	for i := range referrals {
		out = append(out, summarize(&referrals[i]))
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"referrals": out,
		"count":     len(out),
	})
}

// Logout godoc
// @Summary Destroy the current session
// @Tags auth
// @Produce json
// @Success 200 {object} map[string]string
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	if cookie, err := c.Cookie(auth.SessionCookieName); err == nil {
		if claims, err := h.sessions.Parse(cookie.Value); err == nil {
			_ = h.sessionStore.Delete(c.Request().Context(), claims.ID)
		}
	}
	h.clearSessionCookie(c)

	return c.JSON(http.StatusOK, map[string]string{
		"message": "logged out successfully",
	})
}

// ForgotPassword godoc
// @Summary Request a password reset email
// @Tags auth
// @Accept json
// @Produce json
// @Param request body ForgotPasswordRequest true "Account email"
// @Success 200 {object} map[string]string
// @Failure 400 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /auth/forgot-password [post]
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req ForgotPasswordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
			Error: "invalid request body",
			Code:  "INVALID_BODY",
		})
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
			Error: "email is required",
			Code:  "VALIDATION_ERROR",
		})
	}

	if err := h.resetService.RequestReset(c.Request().Context(), req.Email); err != nil {
		return httpError(err)
	}

	// Identical body whether or not the email exists. The token itself is
	// delivered only by mail.
	return c.JSON(http.StatusOK, map[string]string{
		"message": "if an account exists, a reset email has been sent",
	})
}

// ResetPassword godoc
// @Summary Consume a reset token and set a new password
// @Tags auth
// @Accept json
// @Produce json
// @Param token path string true "Reset token"
// @Param request body ResetPasswordRequest true "New password"
// @Success 200 {object} map[string]string
// @Failure 400 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /auth/reset-password/{token} [post]
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req ResetPasswordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
			Error: "invalid request body",
			Code:  "INVALID_BODY",
		})
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
			Error: "new password is required",
			Code:  "VALIDATION_ERROR",
		})
	}

	if err := h.resetService.ResetPassword(c.Request().Context(), c.Param("token"), req.NewPassword); err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, map[string]string{
		"message": "password reset successful",
	})
}

func (h *AuthHandler) createSession(c echo.Context, user *model.User) error {
	token, sessionID, err := h.sessions.Issue(user.ID)
	if err != nil {
		return err
	}
	if err := h.sessionStore.Create(c.Request().Context(), sessionID, user.ID, auth.SessionTTL); err != nil {
		return err
	}

	c.SetCookie(&http.Cookie{
		Name:     auth.SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(auth.SessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (h *AuthHandler) clearSessionCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     auth.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

// sessionUserID extracts the authenticated user ID placed in context by the
// session middleware.
func sessionUserID(c echo.Context) (uuid.UUID, error) {
	claims, ok := c.Get(SessionContextKey).(*auth.SessionClaims)
	if !ok {
		return uuid.Nil, errors.ErrNotAuthenticated
	}
	return uuid.Parse(claims.UserID)
}

// httpError translates a domain error into an echo HTTP error with the
// standard response body.
func httpError(err error) *echo.HTTPError {
	he := errors.MapErrorToHTTP(err)
	return echo.NewHTTPError(he.StatusCode, he.ToErrorResponse())
}
