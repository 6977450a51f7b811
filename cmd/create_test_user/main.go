package main

import (
	"context"
	"flag"
	"log"
	"os"

	"wishbot/internal/db"
	"wishbot/internal/repository"
	"wishbot/internal/service"
)

// Seeds a referrer and an invitee with a wish, for poking at the bot and
// the admin API by hand.
func main() {
	referrerID := flag.Int64("referrer", 1234567890, "referrer telegram id")
	userID := flag.Int64("user", 1234567891, "invitee telegram id")
	wish := flag.String("wish", "Мира и снега", "invitee's wish")
	flag.Parse()

	// expects DATABASE_URL env var
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL not set")
	}

	pool := db.Connect(dsn)
	defer pool.Close()

	ctx := context.Background()
	if err := db.Migrate(ctx, pool); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	ledger := service.NewLedgerService(repository.NewLedgerRepository(pool), 0)

	refName, userName := "testreferrer", "testuser"
	if _, _, err := ledger.TouchUser(ctx, *referrerID, &refName, nil); err != nil {
		log.Fatalf("create referrer: %v", err)
	}
	if _, _, err := ledger.TouchUser(ctx, *userID, &userName, referrerID); err != nil {
		log.Fatalf("create user: %v", err)
	}

	ok, err := ledger.AddWish(ctx, *userID, *wish)
	if err != nil {
		log.Fatalf("add wish: %v", err)
	}
	log.Printf("wish added=%v\n", ok)

	for _, id := range []int64{*referrerID, *userID} {
		u, err := ledger.GetUser(ctx, id)
		if err != nil || u == nil {
			log.Fatalf("get user %d: %v", id, err)
		}
		log.Printf("user id=%d username=%s tickets=%d has_wished=%v\n", u.UserID, u.DisplayName(), u.Tickets, u.HasWished)
	}

	// print an admin API token for the referrer when a secret is configured
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		service.InitJWT(secret)
		token, err := service.GenerateAdminJWT(*referrerID)
		if err != nil {
			log.Fatalf("failed to generate token: %v", err)
		}
		log.Printf("token=%s\n", token)
	}
}
