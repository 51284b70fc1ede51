package main

import (
	"context"
	"fmt"
	"log"

	"github.com/joho/godotenv"

	"github.com/recruai/interview-sync/internal/db"
	"github.com/recruai/interview-sync/internal/utils"
)

func main() {
	_ = godotenv.Load()

	cfg, err := utils.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()
	postgres, err := db.NewPostgres(ctx, cfg.Postgres)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer postgres.Close()

	const columnsQuery = `SELECT column_name, data_type FROM information_schema.columns WHERE table_schema = 'public' AND table_name = 'user_preferences' ORDER BY ordinal_position`
	rows, err := postgres.Pool.Query(ctx, columnsQuery)
	if err != nil {
		log.Fatalf("query columns: %v", err)
	}

	fmt.Println("columns:")
	for rows.Next() {
		var name, dataType string
		if err := rows.Scan(&name, &dataType); err != nil {
			log.Fatalf("scan column: %v", err)
		}
		fmt.Printf("- %s (%s)\n", name, dataType)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		log.Fatalf("iterate columns: %v", err)
	}

	const zonesQuery = `SELECT timezone, COUNT(*) FROM user_preferences GROUP BY timezone ORDER BY COUNT(*) DESC, timezone`
	rows, err = postgres.Pool.Query(ctx, zonesQuery)
	if err != nil {
		log.Fatalf("query timezones: %v", err)
	}
	defer rows.Close()

	fmt.Println("timezones:")
	for rows.Next() {
		var tz string
		var count int64
		if err := rows.Scan(&tz, &count); err != nil {
			log.Fatalf("scan timezone: %v", err)
		}
		fmt.Printf("- %s: %d\n", tz, count)
	}
	if err := rows.Err(); err != nil {
		log.Fatalf("iterate timezones: %v", err)
	}
}
