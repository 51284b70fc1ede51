// Command issue_token signs a development token with JWT_SECRET so the live endpoints
// can be exercised without the recruitment backend's login flow.
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"

	"github.com/recruai/interview-sync/internal/auth"
	"github.com/recruai/interview-sync/internal/models"
	"github.com/recruai/interview-sync/internal/utils"
)

func main() {
	userID := flag.String("user", "", "user id placed in the token subject")
	role := flag.String("role", "candidate", "candidate or organization")
	name := flag.String("name", "", "display name")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := utils.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	svc, err := auth.NewService(cfg.JWTSecret, *ttl)
	if err != nil {
		log.Fatalf("auth: %v", err)
	}

	token, expiresAt, err := svc.IssueToken(models.User{
		ID:   models.ID(*userID),
		Name: *name,
		Role: models.ParseUserRole(*role),
	})
	if err != nil {
		log.Fatalf("issue token: %v", err)
	}

	fmt.Println(token)
	fmt.Printf("expires %s\n", expiresAt.Format(time.RFC3339))
}
