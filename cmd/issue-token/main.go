// Command issue-token prints a delivery JWT for the job that sends the
// daily menu. It signs with DELIVERY_JWT_SECRET, read the same way the
// server reads it (environment, then .env).
//
// Usage:
//
//	issue-token -subject daily-job -ttl 720h
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sakif/menu-subscriptions/internal/auth"
	"github.com/sakif/menu-subscriptions/internal/config"
)

func main() {
	subject := flag.String("subject", "daily-job", "caller name recorded in the token's sub claim")
	ttl := flag.Duration("ttl", auth.DefaultDeliveryTTL, "how long the token stays valid")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if !cfg.DeliveryEnabled() {
		fmt.Fprintln(os.Stderr, "DELIVERY_JWT_SECRET is not set")
		os.Exit(1)
	}
	if *ttl <= 0 {
		fmt.Fprintln(os.Stderr, "-ttl must be positive")
		os.Exit(2)
	}

	tokens, err := auth.NewTokenService(cfg.DeliveryJWTSecret)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	token, err := tokens.Generate(*subject, *ttl)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(token)
}
