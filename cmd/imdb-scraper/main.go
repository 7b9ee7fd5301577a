package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/ilyamil/IMDB-scraper/cmd/imdb-scraper/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	commands.ExecuteContext(ctx)
}
