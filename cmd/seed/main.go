// seed inserts development sample accounts for local testing.
// Idempotent: skips inserts if the owner user (owner@example.com) already exists.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"modelplane/authcore/internal/config"
	"modelplane/authcore/internal/db"
	identitydomain "modelplane/authcore/internal/identity/domain"
	"modelplane/authcore/internal/identity/repository"
	"modelplane/authcore/internal/security"
)

const (
	ownerEmail   = "owner@example.com"
	viewerEmail  = "viewer@example.com"
	seedPassword = "local-dev-password"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	users := repository.NewPostgresUserRepo(conn)
	identities := repository.NewPostgresIdentityRepo(conn)
	ctx := context.Background()

	existing, err := users.GetByEmail(ctx, ownerEmail)
	if err != nil {
		log.Fatalf("seed check: %v", err)
	}
	if existing != nil {
		log.Println("Seed already applied (owner@example.com exists). Skipping.")
		os.Exit(0)
	}

	hasher := security.NewPasswordHasher(cfg.BcryptCost)
	passwordHash, err := hasher.Hash([]byte(seedPassword))
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}

	now := time.Now().UTC()
	for _, seed := range []struct {
		email, name, role string
	}{
		{ownerEmail, "Owner User", "owner"},
		{viewerEmail, "Viewer User", "viewer"},
	} {
		userID := uuid.NewString()
		if err := users.Create(ctx, &identitydomain.User{
			ID:        userID,
			Email:     seed.email,
			Name:      seed.name,
			Role:      seed.role,
			Status:    identitydomain.UserStatusActive,
			CreatedAt: now,
			UpdatedAt: now,
		}); err != nil {
			log.Fatalf("create user %s: %v", seed.email, err)
		}
		if err := identities.Create(ctx, &identitydomain.Identity{
			ID:           uuid.NewString(),
			UserID:       userID,
			Provider:     identitydomain.ProviderLocal,
			ProviderID:   seed.email,
			PasswordHash: passwordHash,
			CreatedAt:    now,
		}); err != nil {
			log.Fatalf("create identity %s: %v", seed.email, err)
		}
	}

	log.Println("Seed completed successfully.")
	fmt.Printf("Owner login: %s / %s\n", ownerEmail, seedPassword)
	fmt.Printf("Viewer login: %s / %s\n", viewerEmail, seedPassword)
}
