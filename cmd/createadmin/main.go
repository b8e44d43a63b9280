// createadmin bootstraps an administrator account. It prompts for email,
// username, and password, then registers the account with the admin role.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"golang.org/x/term"

	"account-platform/backend/internal/auth/service"
	"account-platform/backend/internal/config"
	"account-platform/backend/internal/db"
	"account-platform/backend/internal/security"
	"account-platform/backend/internal/user/domain"
	"account-platform/backend/internal/user/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	ctx := context.Background()

	database, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer database.Close()

	stdin := bufio.NewReader(os.Stdin)
	email, err := prompt(stdin, "Email: ")
	if err != nil {
		log.Fatalf("read email: %v", err)
	}
	username, err := prompt(stdin, "Username: ")
	if err != nil {
		log.Fatalf("read username: %v", err)
	}
	password, err := promptPassword(stdin, "Password: ")
	if err != nil {
		log.Fatalf("read password: %v", err)
	}
	confirm, err := promptPassword(stdin, "Confirm password: ")
	if err != nil {
		log.Fatalf("read password: %v", err)
	}
	if password != confirm {
		log.Fatal("passwords do not match")
	}

	repo := repository.NewPostgresRepository(database)
	hasher := security.NewHasher(cfg.BcryptCost)
	tokens := security.NewTokenProvider(cfg.JWTSecret, cfg.AccessTTL(), cfg.RefreshTTL())
	auth := service.NewAuthService(repo, hasher, tokens)

	u, err := auth.Register(ctx, email, username, password, domain.RoleAdmin)
	if err != nil {
		if errors.Is(err, service.ErrAlreadyExists) {
			log.Fatal("an account with that email or username already exists")
		}
		log.Fatalf("register: %v", err)
	}

	fmt.Printf("Admin account created: %s (%s)\n", u.Username, u.Email)
}

func prompt(r *bufio.Reader, label string) (string, error) {
	fmt.Print(label)
	line, err := r.ReadString('\n')
	if err != nil {
		return "", err
	}
	value := strings.TrimSpace(line)
	if value == "" {
		return "", errors.New("value must not be empty")
	}
	return value, nil
}

// promptPassword disables terminal echo when stdin is a terminal, and falls
// back to a plain line read otherwise (e.g. piped input).
func promptPassword(r *bufio.Reader, label string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return prompt(r, label)
	}
	fmt.Print(label)
	raw, err := term.ReadPassword(fd)
	fmt.Println()
	if err != nil {
		return "", err
	}
	password := strings.TrimSpace(string(raw))
	if password == "" {
		return "", errors.New("value must not be empty")
	}
	return password, nil
}
