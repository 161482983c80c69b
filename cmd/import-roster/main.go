// Command import-roster pulls the client roster from a ClickUp list view
// into the clickup_clients table. It is run by hand, not by the API.
package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"

	"quarterly/api/internal/clickup"
	"quarterly/api/internal/config"
	"quarterly/api/internal/store"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	ctx := context.Background()

	if cfg.ClickUpAPIKey == "" {
		log.Fatal("CLICKUP_API_KEY is required")
	}
	if cfg.ClickUpViewID == "" {
		log.Fatal("CLICKUP_VIEW_ID is required")
	}

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	importer := clickup.NewImporter(clickup.NewClient(cfg.ClickUpAPIKey), store.NewPostgresStore(db))
	if _, err := importer.Run(ctx, cfg.ClickUpViewID); err != nil {
		log.Fatalf("import failed: %v", err)
	}
}
