package main

import (
	"os"

	"github.com/agentregistry-dev/promptregistry/pkg/cli"
	"github.com/agentregistry-dev/promptregistry/pkg/cli/config"
)

func main() {
	// Interactive use should confirm before deleting prompts.
	config.SetConfirmDeletes(true)

	if err := cli.Root().Execute(); err != nil {
		os.Exit(1)
	}
}
