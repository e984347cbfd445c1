package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"masterclass-pods/internal/config"
	"masterclass-pods/internal/logger"
	"masterclass-pods/internal/pod"
	"masterclass-pods/internal/scripts"
	"masterclass-pods/internal/sequence"
	"masterclass-pods/models"
)

func usage() {
	fmt.Println("Usage: go run ./cmd/migrate <command> [args]")
	fmt.Println("Commands:")
	fmt.Println("  indexes                 - Create collection indexes")
	fmt.Println("  seed-personas <file>    - Upsert peer personas from a JSON array")
	fmt.Println("  validate                - Check scripts and blueprints without touching the database")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger.InitLogger(cfg)

	if os.Args[1] == "validate" {
		if err := validate(cfg); err != nil {
			log.Fatalf("Validation failed: %v", err)
		}
		fmt.Println("Scripts and blueprints are valid")
		return
	}

	client, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer client.Disconnect(context.Background())
	db := client.Database(cfg.DBName)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	switch os.Args[1] {
	case "indexes":
		if err := config.CreateIndexes(ctx, db); err != nil {
			log.Fatalf("Index creation failed: %v", err)
		}
		fmt.Println("Indexes created")

	case "seed-personas":
		if len(os.Args) < 3 {
			usage()
			os.Exit(1)
		}
		n, err := seedPersonas(ctx, pod.NewMongoStore(db), os.Args[2])
		if err != nil {
			log.Fatalf("Seeding failed: %v", err)
		}
		fmt.Printf("Upserted %d personas\n", n)

	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		usage()
		os.Exit(1)
	}
}

func validate(cfg *config.Config) error {
	nicheScripts, err := scripts.LoadDir(cfg.ScriptsDir)
	if err != nil {
		return err
	}
	if _, ok := nicheScripts[cfg.DefaultNiche]; !ok {
		return fmt.Errorf("no script for default niche %q", cfg.DefaultNiche)
	}
	bps, err := sequence.LoadBlueprintDir(cfg.BlueprintsDir)
	if err != nil {
		return err
	}
	for niche, s := range nicheScripts {
		fmt.Printf("  script %-20s days %d-%d\n", niche, s.FirstDay(), s.LastDay())
	}
	for _, bp := range bps {
		fmt.Printf("  blueprint %-17s %d pain points, %d objections\n", bp.Niche, len(bp.PainPoints), len(bp.Objections))
	}
	return nil
}

func seedPersonas(ctx context.Context, store pod.Store, path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	var personas []models.Persona
	if err := json.Unmarshal(raw, &personas); err != nil {
		return 0, fmt.Errorf("decode %s: %w", path, err)
	}
	for i := range personas {
		if personas[i].Niche == "" || personas[i].Name == "" {
			return i, fmt.Errorf("persona %d: niche and name are required", i)
		}
		if err := store.UpsertPersona(ctx, &personas[i]); err != nil {
			return i, err
		}
	}
	return len(personas), nil
}
