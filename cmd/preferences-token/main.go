// Package main mints bearer tokens for local development against the
// preferences API.
package main

import (
	"flag"
	"os"

	"github.com/louisbranch/capture-preferences/internal/platform/config"
	"github.com/louisbranch/capture-preferences/internal/tools/token"
)

func main() {
	cfg, err := token.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}
	if err := token.Run(cfg, os.Stdout, nil, nil); err != nil {
		config.Exitf("token: %v", err)
	}
}
