// Package main implements cmsctl, the command-line console of the openZIM
// Content Management System.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/openzim/cmsctl/internal/runtime"
)

var (
	// Version is set at build time
	version = "0.1.0-dev"
	// BuildDate is set at build time
	buildDate = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt := runtime.New(runtime.Options{
		CLIName:   "cmsctl",
		Version:   version,
		BuildDate: buildDate,
	})
	if err := rt.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
