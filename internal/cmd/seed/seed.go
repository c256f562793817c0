// Package seed loads encounter candidate pools into the game database.
package seed

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/Monroeshindelar/lw-game-service/internal/encounter"
	entrypoint "github.com/Monroeshindelar/lw-game-service/internal/platform/cmd"
	"github.com/Monroeshindelar/lw-game-service/internal/storage/sqlite"
)

// Config holds seed command configuration.
type Config struct {
	DBPath string `env:"LW_GAME_SERVICE_DB_PATH" envDefault:"data/lw-game.db"`
	// File points at a JSON array of encounter candidates.
	File string
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "Path to the sqlite database")
	fs.StringVar(&cfg.File, "file", "", "JSON file of encounter candidates")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	if cfg.File == "" {
		return Config{}, errors.New("-file is required")
	}
	return cfg, nil
}

// Run loads the candidate file into the database.
func Run(ctx context.Context, cfg Config) error {
	candidates, err := loadCandidates(cfg.File)
	if err != nil {
		return err
	}

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open sqlite store: %w", err)
	}
	defer func() { _ = store.Close() }()

	if err := store.PutCandidates(ctx, candidates); err != nil {
		return fmt.Errorf("store candidates: %w", err)
	}
	fmt.Printf("loaded %d encounter candidates from %s\n", len(candidates), cfg.File)
	return nil
}

func loadCandidates(path string) ([]encounter.Candidate, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read candidate file: %w", err)
	}
	var candidates []encounter.Candidate
	if err := json.Unmarshal(payload, &candidates); err != nil {
		return nil, fmt.Errorf("decode candidate file: %w", err)
	}
	if len(candidates) == 0 {
		return nil, errors.New("candidate file is empty")
	}
	return candidates, nil
}
