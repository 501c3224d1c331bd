// Package main starts the lecture capture preferences service and handles
// termination.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	preferencescmd "github.com/louisbranch/capture-preferences/internal/cmd/preferences"
	"github.com/louisbranch/capture-preferences/internal/platform/config"
)

func main() {
	cfg, err := preferencescmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := preferencescmd.Run(ctx, cfg); err != nil {
		config.Exitf("failed to serve: %v", err)
	}
}
