package main

import (
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:          "rufus",
		Short:        "Host-side controller for the Rufus robot",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "rufus.yaml", "path to the config file")

	cmd.AddCommand(
		newServeCmd(&configPath),
		newGestureCmd(&configPath),
		newMoveCmd(&configPath),
		newGesturesCmd(),
		newVersionCmd(),
	)
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Println("rufus " + version)
		},
	}
}
