// Package main loads encounter candidate pools into the game database.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	seedcmd "github.com/Monroeshindelar/lw-game-service/internal/cmd/seed"
)

func main() {
	cfg, err := seedcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	log.SetPrefix("[SEED] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := seedcmd.Run(ctx, cfg); err != nil {
		log.Fatalf("seed: %v", err)
	}
}
