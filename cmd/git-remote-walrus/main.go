package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wbbradley/git-remote-walrus/pkg/log"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "git-remote-walrus: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "git-remote-walrus <remote-name> <remote-url>",
	Short: "Git remote helper backed by a content-addressed blob store and ledger",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runProtocolEngine(args[0], args[1])
	},
}

func init() {
	cobra.OnInitialize(func() {
		log.Init(log.Config{Level: log.InfoLevel})
	})

	rootCmd.AddCommand(deployCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(configCmd)
}
