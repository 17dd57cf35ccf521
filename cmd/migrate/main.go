// Command migrate creates the POS schema and optionally seeds a starter menu.
package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/uptrace/bun"

	"yurica-pos/internal/config"
	"yurica-pos/internal/database"
	"yurica-pos/internal/logger"
	menudb "yurica-pos/internal/menu/db"
	"yurica-pos/internal/models"
)

var starterMenu = []models.MenuItem{
	{Name: "Salmon Nigiri", Category: "Sushi", PriceCents: 1200, Allergies: "fish"},
	{Name: "Tuna Roll", Category: "Sushi", PriceCents: 950, Allergies: "fish"},
	{Name: "Edamame", Category: "Sides", PriceCents: 600, Allergies: "soy"},
	{Name: "Miso Soup", Category: "Sides", PriceCents: 450, Allergies: "soy"},
	{Name: "Chicken Udon", Category: "Noodles", PriceCents: 1800, Allergies: "gluten"},
	{Name: "Matcha Ice Cream", Category: "Dessert", PriceCents: 700, Allergies: "dairy"},
}

func main() {
	reset := flag.Bool("reset", false, "drop and recreate every table")
	seed := flag.Bool("seed", false, "insert the starter menu when the menu is empty")
	flag.Parse()

	config.LoadDotEnv()
	cfg := config.Load()
	log := logger.NewLogger(logger.Options{Level: cfg.Log.Level, NoColor: cfg.Log.NoColor})
	defer log.Close()

	ctx := context.Background()
	bunDB, err := database.Open(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}
	defer bunDB.Close()

	if *reset {
		log.Warn("MIGRATE", "Dropping tables...")
		err = database.Reset(ctx, bunDB)
	} else {
		log.Info("MIGRATE", "Creating tables...")
		err = database.Migrate(ctx, bunDB)
	}
	if err != nil {
		log.Fatal("MIGRATE", err.Error())
	}

	if *seed {
		n, err := seedMenu(ctx, bunDB)
		if err != nil {
			log.Fatal("MIGRATE", fmt.Sprintf("Seeding menu: %v", err))
		}
		log.Info("MIGRATE", fmt.Sprintf("Seeded %d menu items", n))
	}

	log.Info("MIGRATE", "✅ Done.")
}

func seedMenu(ctx context.Context, bunDB *bun.DB) (int, error) {
	store := menudb.New(bunDB)
	existing, err := store.ListItems(ctx)
	if err != nil {
		return 0, err
	}
	if len(existing) > 0 {
		return 0, nil
	}
	for _, item := range starterMenu {
		if _, err := store.CreateItem(ctx, item); err != nil {
			return 0, fmt.Errorf("insert %s: %w", item.Name, err)
		}
	}
	return len(starterMenu), nil
}
