// Command devtoken prints a signed bearer token for local testing against the API.
// Production tokens come from the identity provider.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"kidshive/internal/auth"
	"kidshive/internal/config"
)

func main() {
	cfg := config.Load()

	sub := flag.String("sub", "", "subject (user id) to put in the token")
	role := flag.String("role", auth.RoleAdmin, "ADMIN, ASSISTANT or PARENT")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	if *sub == "" {
		flag.Usage()
		os.Exit(2)
	}
	r := strings.ToUpper(*role)
	switch r {
	case auth.RoleAdmin, auth.RoleAssistant, auth.RoleParent:
	default:
		log.Fatalf("unknown role %q", *role)
	}
	if cfg.Env == "production" || cfg.Env == "prod" {
		log.Fatal("refusing to mint tokens with APP_ENV=production")
	}

	tok, err := auth.Issue(*sub, r, cfg.JWTIssuer, cfg.JWTSigningKey, *ttl)
	if err != nil {
		log.Fatalf("sign token: %v", err)
	}
	fmt.Println(tok)
}
