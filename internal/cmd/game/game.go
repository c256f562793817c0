// Package game parses game service flags and launches the service.
package game

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/Monroeshindelar/lw-game-service/internal/api/rest"
	"github.com/Monroeshindelar/lw-game-service/internal/encounter"
	entrypoint "github.com/Monroeshindelar/lw-game-service/internal/platform/cmd"
	"github.com/Monroeshindelar/lw-game-service/internal/platform/random"
	"github.com/Monroeshindelar/lw-game-service/internal/pokeapi"
	"github.com/Monroeshindelar/lw-game-service/internal/squadlocke/service"
	"github.com/Monroeshindelar/lw-game-service/internal/storage/sqlite"
)

// Config holds game command configuration.
type Config struct {
	Port       int    `env:"LW_GAME_SERVICE_PORT" envDefault:"8080"`
	DBPath     string `env:"LW_GAME_SERVICE_DB_PATH" envDefault:"data/lw-game.db"`
	CatalogURL string `env:"LW_GAME_SERVICE_CATALOG_URL" envDefault:"https://pokeapi.co/api/v2"`
	// Seed fixes the encounter RNG; zero draws a random seed at startup.
	Seed int64 `env:"LW_GAME_SERVICE_ENCOUNTER_SEED" envDefault:"0"`
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The game HTTP server port")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "Path to the sqlite database")
	fs.StringVar(&cfg.CatalogURL, "catalog-url", cfg.CatalogURL, "Species catalog base URL")
	fs.Int64Var(&cfg.Seed, "seed", cfg.Seed, "Encounter RNG seed (0 = random)")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the game HTTP API service.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceGame, func(ctx context.Context) error {
		store, err := openStore(cfg.DBPath)
		if err != nil {
			return err
		}
		defer func() {
			if err := store.Close(); err != nil {
				log.Printf("close store: %v", err)
			}
		}()

		seed := cfg.Seed
		if seed == 0 {
			seed, err = random.NewSeed()
			if err != nil {
				return fmt.Errorf("generate encounter seed: %w", err)
			}
		}

		svc := service.New(service.Config{
			Sessions:  store,
			Pools:     store,
			Catalog:   pokeapi.NewClient(cfg.CatalogURL),
			Generator: encounter.NewWeightedGenerator(seed),
		})

		server, err := rest.New(cfg.Port, rest.NewHandler(svc))
		if err != nil {
			return err
		}
		defer server.Close()
		return server.Serve(ctx)
	})
}

func openStore(path string) (*sqlite.Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	store, err := sqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	return store, nil
}
