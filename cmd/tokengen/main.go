// Package main provides a CLI tool for generating test dashboard tokens.
// These tokens use the dev signing key and will NOT work in production.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"tabhq/internal/token"
)

// Dev signing key - matches config.go when JWT_SIGNING_KEY is not set.
const devSigningKey = "dev-secret-key-change-in-production"

type tokenOutput struct {
	Token     string `json:"token"`
	UserID    string `json:"user_id"`
	OrgID     string `json:"org_id"`
	ExpiresIn string `json:"expires_in"`
	Usage     string `json:"usage"`
}

func main() {
	userID := flag.String("user-id", "", "User ID. Generated if empty.")
	orgID := flag.String("org-id", "", "Organization ID (UUID). Generated if empty.")
	ttl := flag.Duration("ttl", 15*time.Minute, "Token time-to-live")
	key := flag.String("signing-key", devSigningKey, "JWT signing key (must match the server)")
	asJSON := flag.Bool("json", false, "Output as JSON")
	flag.Parse()

	if *userID == "" {
		*userID = uuid.NewString()
	}
	if *orgID == "" {
		*orgID = uuid.NewString()
	}

	raw, err := token.NewValidator(*key).Issue(*userID, *orgID, *ttl)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to sign token:", err)
		os.Exit(1)
	}

	if *asJSON {
		out := tokenOutput{
			Token:     raw,
			UserID:    *userID,
			OrgID:     *orgID,
			ExpiresIn: ttl.String(),
			Usage:     "Authorization: Bearer <token>",
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(out)
		return
	}

	fmt.Println(raw)
	fmt.Fprintln(os.Stderr, "user:", *userID)
	fmt.Fprintln(os.Stderr, "org: ", *orgID)
}
