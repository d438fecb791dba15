// Package main provides the gridstat CLI.
package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/born-ml/gridstat/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := cli.Main(ctx, os.Args[1:], os.Getenv, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
