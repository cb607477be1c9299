//go:build ignore

package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"macman/internal/config"
)

func main() {
	var configPath, subject string
	var ttl time.Duration
	flag.StringVar(&configPath, "config", "config.yaml", "Path to config file")
	flag.StringVar(&subject, "sub", "admin", "Operator name recorded in the admin action log")
	flag.DurationVar(&ttl, "ttl", 0, "Token lifetime (0 = no expiry)")
	flag.Parse()

	cfg, err := config.LoadFromPath(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	claims := jwt.MapClaims{
		"sub": subject,
		"iss": "macman-admin",
		"iat": time.Now().Unix(),
	}
	if ttl > 0 {
		claims["exp"] = time.Now().Add(ttl).Unix()
	}

	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.AdminSecret))
	if err != nil {
		log.Fatalf("Error signing token: %v", err)
	}

	fmt.Println(tokenString)
}
