// Copyright 2025 KrakLabs
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/cie-engine/internal/errors"
	"github.com/kraklabs/cie-engine/internal/ui"
)

// runStop executes the 'stop' CLI command, stopping the local model
// runtime container. Indexed data is untouched: the store lives under
// ~/.cie/data, not in the container.
func runStop(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("stop", flag.ExitOnError)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: cie stop [options]

Description:
  Stop the local model runtime (the Ollama container). All indexed data
  is preserved; it lives in ~/.cie/data, outside the container.

  To delete the indexed data itself, use 'cie reset --yes'.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  cie stop
`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	ui.Header("Stopping local model runtime")

	// Check if docker is running
	if err := checkDocker(); err != nil {
		errors.FatalError(err, globals.JSON)
	}

	// Run docker compose down
	ui.Info("Stopping containers...")
	if err := runCommand("docker", "compose", "down"); err != nil {
		errors.FatalError(errors.NewInternalError(
			"Failed to stop containers",
			"Docker Compose down failed",
			"Check Docker logs for details",
			err,
		), globals.JSON)
	}

	ui.Success("Local model runtime stopped")
}