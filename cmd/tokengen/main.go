// Package main mints legacy auth-token cookies for local testing. Tokens are
// signed with TOKEN_SIGNING_KEY (or -key) and only work against a server
// using the same key.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"gatehouse/internal/auth/legacytoken"
	"gatehouse/internal/auth/models"
	id "gatehouse/pkg/domain"
)

type tokenOutput struct {
	Token     string            `json:"token"`
	Cookie    string            `json:"cookie"`
	ExpiresAt time.Time         `json:"expires_at"`
	Claims    *models.Claims    `json:"claims"`
	Usage     map[string]string `json:"usage"`
}

func main() {
	userID := flag.String("user-id", "", "User ID (UUID). Generated if empty.")
	email := flag.String("email", "admin@example.com", "Email claim")
	name := flag.String("name", "Site Admin", "Name claim")
	role := flag.String("role", string(models.RoleAdmin), "Role claim: ADMIN, MODERATOR or USER")
	ttl := flag.Duration("ttl", legacytoken.DefaultTTL, "Token time-to-live")
	key := flag.String("key", os.Getenv("TOKEN_SIGNING_KEY"), "Signing key (defaults to TOKEN_SIGNING_KEY)")
	baseURL := flag.String("url", "http://localhost:8080", "Server base URL used in the usage hint")
	jsonOutput := flag.Bool("json", false, "Output as JSON")
	flag.Parse()

	if *key == "" {
		fail("a signing key is required: set TOKEN_SIGNING_KEY or pass -key")
	}
	parsedRole, err := models.ParseRole(*role)
	if err != nil {
		fail(err.Error())
	}
	uid := parseOrGenerateUserID(*userID)

	issuer := legacytoken.NewIssuer(*key, *ttl)
	token, claims, err := issuer.Issue(context.Background(), &models.Identity{
		ID:    uid,
		Email: *email,
		Name:  *name,
		Role:  parsedRole,
	})
	if err != nil {
		fail(fmt.Sprintf("failed to sign token: %v", err))
	}

	cookie := legacytoken.CookieName + "=" + token
	curl := fmt.Sprintf("curl -H 'Cookie: %s' %s/api/protected/profile", cookie, *baseURL)

	if *jsonOutput {
		printJSON(tokenOutput{
			Token:     token,
			Cookie:    cookie,
			ExpiresAt: claims.ExpiresAt,
			Claims:    claims,
			Usage:     map[string]string{"curl": curl},
		})
		return
	}

	fmt.Printf("User ID:     %s\n", uid)
	fmt.Printf("Role:        %s\n", parsedRole)
	fmt.Printf("Expires At:  %s\n", claims.ExpiresAt.Format(time.RFC3339))
	fmt.Println()
	fmt.Println(token)
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  " + curl)
}

func parseOrGenerateUserID(input string) id.UserID {
	if input == "" {
		return id.UserID(uuid.New())
	}
	parsed, err := id.ParseUserID(input)
	if err != nil {
		fail(fmt.Sprintf("invalid user-id: %v", err))
	}
	return parsed
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fail(fmt.Sprintf("failed to encode output: %v", err))
	}
}

func fail(msg string) {
	fmt.Fprintln(os.Stderr, "Error:", msg)
	os.Exit(1)
}
