// Package main signs session tokens for local testing of protected
// endpoints. Tokens use JWT_SECRET from the environment, or the development
// default when it is unset, so they only work against a matching server.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	jwttoken "eshop/internal/jwt_token"
	"eshop/internal/platform/config"
)

type tokenOutput struct {
	Token     string            `json:"token"`
	UserID    string            `json:"user_id"`
	ExpiresAt time.Time         `json:"expires_at"`
	Usage     map[string]string `json:"usage"`
}

func main() {
	userID := flag.String("user-id", "", "ID of an existing user (required)")
	ttl := flag.Duration("ttl", 0, "Token time-to-live. Defaults to JWT_EXPIRES_IN.")
	asJSON := flag.Bool("json", false, "Output as JSON")
	flag.Parse()

	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}
	if err := uuid.Validate(*userID); err != nil {
		fmt.Fprintln(os.Stderr, "usage: tokengen -user-id <uuid> [-ttl 1h] [-json]")
		os.Exit(2)
	}
	if *ttl <= 0 {
		*ttl = cfg.Auth.TokenTTL
	}

	token, err := jwttoken.NewJWTService(cfg.Auth.JWTSecret, *ttl).IssueSessionToken(context.Background(), *userID)
	if err != nil {
		fmt.Fprintln(os.Stderr, "sign token:", err)
		os.Exit(1)
	}

	if !*asJSON {
		fmt.Println(token.Value)
		return
	}
	out := tokenOutput{
		Token:     token.Value,
		UserID:    *userID,
		ExpiresAt: token.ExpiresAt,
		Usage: map[string]string{
			"header": "Authorization: Bearer " + token.Value,
			"curl":   fmt.Sprintf("curl -H 'Authorization: Bearer %s' %s/api/v1/users/me", token.Value, cfg.APIURL),
		},
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
