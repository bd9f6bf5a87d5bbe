package main

import (
	"context"
	"log"

	"pepper/internal/cache"
	"pepper/internal/config"
	"pepper/internal/db"
	"pepper/internal/model"
	"pepper/internal/repository"
	"pepper/internal/service"
)

// Demo users seeded through the service layer so the welcome bonus and the
// referral ledger run exactly as they do for real registrations. Each entry
// may refer to an earlier entry by email; its referral code is resolved after
// that user is created.
type seedUser struct {
	name            string
	email           string
	password        string
	referredByEmail string
}

var seedUsers = []seedUser{
	{name: "Alice Demo", email: "alice@pepper.test", password: "pepper-demo-1"},
	{name: "Bob Demo", email: "bob@pepper.test", password: "pepper-demo-2", referredByEmail: "alice@pepper.test"},
	{name: "Carol Demo", email: "carol@pepper.test", password: "pepper-demo-3", referredByEmail: "alice@pepper.test"},
	{name: "Dave Demo", email: "dave@pepper.test", password: "pepper-demo-4", referredByEmail: "bob@pepper.test"},
}

func main() {
	log.Println("Starting seed script...")

	cfg := config.Load()

	gormDB, err := db.NewMySQL(cfg.MySQLDSN)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	log.Println("Connected to database")

	if err := gormDB.AutoMigrate(&model.User{}); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Database migrations completed")

	cacheClient := cache.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	userRepo := repository.NewUserRepository(gormDB)
	ledger := service.NewReferralLedger(userRepo, cacheClient, cfg.ReferralBonus)
	authService := service.NewAuthService(userRepo, ledger, cfg.WelcomeBonus)

	ctx := context.Background()
	created, skipped := 0, 0

	for _, su := range seedUsers {
		referralCode := ""
		if su.referredByEmail != "" {
			referrer, err := userRepo.FindByEmail(ctx, su.referredByEmail)
			if err != nil {
				log.Printf("Referrer %s not found for %s, seeding without referral", su.referredByEmail, su.email)
			} else {
				referralCode = referrer.ReferralCode
			}
		}

		user, err := authService.Register(ctx, su.name, su.email, su.password, referralCode)
		if err != nil {
			log.Printf("Skipping %s: %v", su.email, err)
			skipped++
			continue
		}
		log.Printf("Created %s (referral code %s)", user.Email, user.ReferralCode)
		created++
	}

	log.Printf("Seed completed: %d created, %d skipped", created, skipped)
}
