// Operator CLI: mint a JWT for the admin-gated backfill endpoints. The
// secret must match the server's WASTETRACK_JWT_SECRET.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/ecotrack-io/wastetrack/pkg/auth"
)

func main() {
	subject := flag.String("subject", "operator", "Token subject")
	role := flag.String("role", auth.RoleAdmin, "Token role claim")
	ttl := flag.Duration("ttl", 12*time.Hour, "Token lifetime")
	flag.Parse()

	secret := os.Getenv("WASTETRACK_JWT_SECRET")
	if secret == "" {
		fmt.Fprintln(os.Stderr, "WASTETRACK_JWT_SECRET is required")
		os.Exit(1)
	}

	token, err := auth.New([]byte(secret)).Token(*subject, *role, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to mint token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
