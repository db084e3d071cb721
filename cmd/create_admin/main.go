package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/fashionfolio/portfolio-auth/application/port/outbound"
	"github.com/fashionfolio/portfolio-auth/domain/entity"
	"github.com/fashionfolio/portfolio-auth/domain/valueobject"
	"github.com/fashionfolio/portfolio-auth/infrastructure/adapter/store"
	"github.com/fashionfolio/portfolio-auth/infrastructure/config"
	"github.com/fashionfolio/portfolio-auth/infrastructure/service/password"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	username := flag.String("username", cfg.AdminUsername, "admin username")
	email := flag.String("email", cfg.AdminEmail, "admin email")
	plaintext := flag.String("password", cfg.AdminPassword, "admin password")
	flag.Parse()

	st, err := store.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open user store: %v", err)
	}
	defer st.Close()

	created, user, err := ensureAdmin(ctx, st.Users, password.NewBcryptPasswordService(), *username, *email, *plaintext)
	if err != nil {
		log.Fatalf("Failed to create admin user: %v", err)
	}
	if !created {
		fmt.Printf("Admin user %q already exists (id %s), nothing to do\n", user.Username, user.ID)
		return
	}

	fmt.Println("Admin user created")
	fmt.Printf("  Username: %s\n", user.Username)
	fmt.Printf("  Email:    %s\n", user.Email)
	fmt.Printf("  Role:     %s\n", user.Role)
	fmt.Printf("  ID:       %s\n", user.ID)
}

// ensureAdmin creates the admin account unless a user with that username
// already exists. It reports whether a user was created.
func ensureAdmin(ctx context.Context, users outbound.UserRepository, hasher outbound.PasswordService, username, email, plaintext string) (bool, *entity.User, error) {
	existing, err := users.FindByUsername(ctx, username)
	if err == nil {
		return false, existing, nil
	}
	if !errors.Is(err, outbound.ErrUserNotFound) {
		return false, nil, err
	}

	registration, err := valueobject.NewRegistration(username, email, plaintext)
	if err != nil {
		return false, nil, err
	}

	hash, err := hasher.Hash(registration.Password)
	if err != nil {
		return false, nil, err
	}

	admin := entity.NewUser(uuid.NewString(), registration.Username, registration.Email, hash, entity.RoleAdmin)
	if err := users.Create(ctx, admin); err != nil {
		return false, nil, err
	}
	return true, admin, nil
}
