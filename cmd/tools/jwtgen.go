package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"asset-custody-api/internal/auth"
	"asset-custody-api/internal/config"
	"asset-custody-api/internal/models"
)

func main() {
	var (
		userID     = flag.String("user", "admin-1", "Principal ID (token subject)")
		role       = flag.String("role", "admin", "Role: admin or employee")
		name       = flag.String("name", "", "Display name")
		email      = flag.String("email", "", "Email address")
		expiryMins = flag.Int("expiry", 1440, "Token expiry in minutes (default: 24 hours)")
		secret     = flag.String("secret", "", "JWT secret (overrides JWT_SECRET env var)")
		issuer     = flag.String("issuer", "", "JWT issuer (overrides JWT_ISS env var)")
		audience   = flag.String("audience", "", "JWT audience (overrides JWT_AUD env var)")
	)
	flag.Parse()

	// Load config
	if err := config.LoadEnvFile(); err != nil {
		log.Fatalf("Failed to load .env: %v", err)
	}
	cfg := config.Load()

	// Override with command line flags if provided
	if *secret != "" {
		cfg.JWTSecret = *secret
	}
	if *issuer != "" {
		cfg.JWTIssuer = *issuer
	}
	if *audience != "" {
		cfg.JWTAudience = *audience
	}

	// Create JWT manager
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience, time.Duration(*expiryMins)*time.Minute)

	// Generate token
	token, err := jwtManager.GenerateToken(models.Principal{
		ID:          *userID,
		Role:        models.Role(*role),
		DisplayName: *name,
		Email:       *email,
	})
	if err != nil {
		log.Fatalf("Failed to generate token: %v", err)
	}

	// Print token info
	fmt.Printf("JWT Token generated successfully!\n\n")
	fmt.Printf("Principal: %s\n", *userID)
	fmt.Printf("Role: %s\n", *role)
	fmt.Printf("Expiry: %d minutes\n", *expiryMins)
	fmt.Printf("Issuer: %s\n", cfg.JWTIssuer)
	fmt.Printf("Audience: %s\n", cfg.JWTAudience)
	fmt.Printf("\nToken:\n%s\n\n", token)

	// Print usage example
	fmt.Printf("Usage example:\n")
	fmt.Printf("curl -H \"Authorization: Bearer %s\" http://localhost:8080/assets\n", token)
}
