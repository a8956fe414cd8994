package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/tandemhq/tandem/internal/auth"
)

func main() {
	secret := flag.String("secret", "", "HMAC signing secret (same as ACCESS_TOKEN_SECRET)")
	userID := flag.String("user", "", "User UUID")
	email := flag.String("email", "", "User email")
	name := flag.String("name", "", "Display name")
	ttl := flag.Duration("ttl", time.Hour, "Token lifetime")
	flag.Parse()

	if *secret == "" || *userID == "" {
		fmt.Fprintln(os.Stderr, "Usage: mktoken -secret <signing-secret> -user <user-uuid> [-email <email>] [-name <name>] [-ttl <duration>]")
		os.Exit(1)
	}

	token, err := auth.Sign(*secret, auth.Identity{
		UserID: *userID,
		Email:  *email,
		Name:   *name,
	}, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to sign token: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(token)
}
