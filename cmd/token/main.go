// Command token mints a bearer token for local testing against the API.
//
//	go run ./cmd/token -sub 11111111-1111-1111-1111-111111111111 -ttl 8h
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	_ "github.com/joho/godotenv/autoload"

	"edms/internal/config"
	"edms/internal/http/middleware"
)

func main() {
	sub := flag.String("sub", "", "user id to put in the subject claim")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	if *sub == "" {
		fmt.Fprintln(os.Stderr, "-sub is required")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if cfg.Auth.JWTSecret == "" {
		fmt.Fprintln(os.Stderr, "JWT_SECRET is not configured")
		os.Exit(1)
	}

	now := time.Now()
	token, err := middleware.SignToken([]byte(cfg.Auth.JWTSecret), *sub, jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(*ttl)),
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(token)
}
