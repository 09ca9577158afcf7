package main

import (
	"github.com/spf13/cobra"

	"github.com/famworld/famagent/internal/configuration"
	"github.com/famworld/famagent/shell"
	"github.com/famworld/famagent/store"
)

const configFilepath = "~/.config/famagent/config.json"

var rootCmd = &cobra.Command{
	Use:     "famagent",
	Short:   "A workspace-based AI chat client",
	Version: "1.0",
}

func main() {
	config, err := configuration.Parse(configFilepath)
	if err != nil {
		panic(err)
	}

	// Create the durable document store.
	documents, err := store.New(config.Database)
	if err != nil {
		panic(err)
	}
	// Ensure store is closed when the program exits normally
	defer documents.Close()

	rootCmd.AddCommand(shell.NewCmd(config, documents))
	rootCmd.Execute()
}
