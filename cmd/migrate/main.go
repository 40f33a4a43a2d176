// Command migrate aplica as migrations do PostgreSQL (STORE_BACKEND=postgres).
package main

import (
	"context"
	"log"
	"time"

	"clinica-lembretes/internal/config"
	"clinica-lembretes/internal/database"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Erro config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("❌ DATABASE_URL is required")
	}

	db, err := database.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("❌ Erro DB: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := db.Migrate(ctx); err != nil {
		log.Fatalf("❌ Erro ao aplicar migrations: %v", err)
	}
	log.Println("✅ Migrations aplicadas")
}
