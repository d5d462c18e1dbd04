// Package main provides the entry point for the esios CLI.
package main

import (
	"github.com/datons/esios-go/internal/cli"
	"github.com/datons/esios-go/internal/logging"
	"github.com/datons/esios-go/internal/metrics"
)

func main() {
	defer logging.Sync()
	if err := metrics.Register(nil); err != nil {
		logging.L().Warnw("metrics registration failed", "err", err)
	}
	cli.Execute()
}
