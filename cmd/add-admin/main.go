// Command add-admin creates a back-office account.
//
//	go run ./cmd/add-admin -email admin@example.com -name "Office" -password secret123
package main

import (
	"context"
	"flag"
	"log"
	"time"

	config "github.com/phillip/newvision-backend/config"
	services "github.com/phillip/newvision-backend/services"
)

func main() {
	email := flag.String("email", "", "admin email")
	name := flag.String("name", "", "display name")
	password := flag.String("password", "", "password (min 8 characters)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.StoreDriver == "memory" {
		log.Fatal("add-admin needs a persistent store, set STORE_DRIVER=mongo")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := cfg.Open(ctx); err != nil {
		log.Fatalf("startup: %v", err)
	}
	defer cfg.Store.Close(context.Background())

	admin, err := services.NewAuth(cfg.Store, cfg.JWTSecret, cfg.JWTTTL).CreateAdmin(ctx, *name, *email, *password)
	if err != nil {
		log.Fatalf("create admin: %v", err)
	}
	log.Printf("created admin %s (%s)", admin.Email, admin.ID.Hex())
}
