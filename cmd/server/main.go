package main

import (
	"context"
	"log"
	"net/http"
	"time"

	_ "pepper/docs" // swagger docs

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"pepper/internal/auth"
	"pepper/internal/cache"
	"pepper/internal/config"
	"pepper/internal/db"
	"pepper/internal/handler"
	"pepper/internal/mailer"
	"pepper/internal/model"
	"pepper/internal/repository"
	"pepper/internal/router"
	"pepper/internal/service"
)

// @title Pepper Auth API
// @version 1.0
// @description Authentication API with Google OAuth, local accounts, referral bonuses and password reset.
// @host localhost:8080
// @BasePath /
// @schemes http
func main() {
	cfg := config.Load()

	e := echo.New()
	e.Use(middleware.RequestID())

	gormDB, err := db.NewMySQL(cfg.MySQLDSN)
	if err != nil {
		log.Fatalf("database init: %v", err)
	}

	if err := gormDB.AutoMigrate(&model.User{}); err != nil {
		log.Fatalf("auto-migrate: %v", err)
	}

	cacheClient := cache.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	{
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := cacheClient.Ping(ctx); err != nil {
			log.Fatalf("redis init: %v", err)
		}
		cancel()
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(gormDB)

	// Initialize auth components
	sessionService := auth.NewSessionService(cfg.SessionSecret)
	sessionStore := auth.NewSessionStore(cacheClient)

	var mail mailer.Mailer
	if cfg.SMTPHost != "" {
		mail = mailer.NewSMTP(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.MailFrom)
	} else {
		log.Println("SMTP_HOST not set, reset links are written to the log")
		mail = mailer.LogMailer{}
	}

	// Initialize services
	ledger := service.NewReferralLedger(userRepo, cacheClient, cfg.ReferralBonus)
	authService := service.NewAuthService(userRepo, ledger, cfg.WelcomeBonus)
	oauthService := service.NewOAuthService(userRepo, ledger, cacheClient, service.OAuthConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		CallbackURL:  cfg.GoogleCallbackURL,
		AdminEmails:  cfg.AdminEmails,
		WelcomeBonus: cfg.WelcomeBonus,
	})
	resetService := service.NewResetService(userRepo, mail, cfg.FrontendURL)
	userService := service.NewUserService(userRepo, cacheClient)

	// Initialize handlers
	authHandler := handler.NewAuthHandler(
		authService,
		oauthService,
		resetService,
		userService,
		sessionService,
		sessionStore,
		cfg.FrontendURL,
		cfg.IsProduction(),
	)

	// Register routes
	router.Register(e, cfg, authHandler, sessionService, sessionStore)

	addr := ":" + cfg.ServerPort
	if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server start: %v", err)
	}
}
