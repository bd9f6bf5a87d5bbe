package router

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	echoSwagger "github.com/swaggo/echo-swagger"

	"pepper/internal/auth"
	"pepper/internal/config"
	"pepper/internal/errors"
	"pepper/internal/handler"
)

// Register wires routes and middleware.
func Register(
	e *echo.Echo,
	cfg *config.Config,
	authHandler *handler.AuthHandler,
	sessions *auth.SessionService,
	sessionStore auth.SessionStoreInterface,
) {
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{cfg.FrontendURL},
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowCredentials: true,
	}))

	// Add validator
	e.Validator = &CustomValidator{validator: validator.New()}

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "OK"})
	})

	e.GET("/swagger/*", echoSwagger.WrapHandler)

	// Public auth routes
	e.GET("/auth/google", authHandler.GoogleRedirect)
	e.GET("/auth/google/callback", authHandler.GoogleCallback)
	e.POST("/auth/register", authHandler.Register)
	e.POST("/auth/login", authHandler.Login)
	e.POST("/auth/logout", authHandler.Logout)
	e.POST("/auth/forgot-password", authHandler.ForgotPassword)
	e.POST("/auth/reset-password/:token", authHandler.ResetPassword)

	// Session-protected routes: the cookie is a signed token whose jti must
	// still resolve to a live session record in Redis.
	secured := e.Group("", SessionMiddleware(sessions, sessionStore))
	secured.GET("/auth/me", authHandler.Me)
	secured.GET("/auth/me/referrals", authHandler.MyReferrals)
}

// SessionMiddleware validates the session cookie and loads the server-side
// session record, placing the claims in context.
func SessionMiddleware(sessions *auth.SessionService, store auth.SessionStoreInterface) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		TokenLookup: "cookie:" + auth.SessionCookieName,
		ContextKey:  handler.SessionContextKey,
		ParseTokenFunc: func(c echo.Context, token string) (interface{}, error) {
			claims, err := sessions.Parse(token)
			if err != nil {
				return nil, err
			}
			userID, err := store.Get(c.Request().Context(), claims.ID)
			if err != nil {
				return nil, err
			}
			if userID != claims.UserID {
				return nil, errors.ErrNotAuthenticated
			}
			return claims, nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			he := errors.MapErrorToHTTP(errors.ErrNotAuthenticated)
			return echo.NewHTTPError(he.StatusCode, he.ToErrorResponse())
		},
	})
}

// CustomValidator wraps validator for Echo.
type CustomValidator struct {
	validator *validator.Validate
}

// Validate implements echo.Validator interface.
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}
