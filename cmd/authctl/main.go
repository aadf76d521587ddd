package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/aussiebroadwan/authclient/internal/authctl"
)

func main() {
	cfg, err := authctl.LoadConfig("")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	cli, err := authctl.New(cfg)
	if err != nil {
		stop()
		log.Fatalf("failed to initialize authctl: %v", err)
	}

	code := cli.Run(ctx, os.Args[1:])
	if err := cli.Close(); err != nil {
		log.Printf("close: %v", err)
	}
	stop()
	os.Exit(code)
}
