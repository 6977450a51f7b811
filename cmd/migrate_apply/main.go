package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"wishbot/internal/db"
	"wishbot/internal/logger"
)

func main() {
	apply := flag.Bool("apply", false, "apply migrations (default: list them)")
	flag.Parse()

	if !*apply {
		names, err := db.MigrationNames()
		if err != nil {
			logger.Fatal("list migrations", "error", err)
		}
		for _, name := range names {
			fmt.Println(name)
		}
		return
	}

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		logger.Fatal("DATABASE_URL not set")
	}

	pool := db.Connect(dsn)
	defer pool.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := db.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", "error", err)
	}
	fmt.Println("migrations applied")
}
