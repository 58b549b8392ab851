package main

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wbbradley/git-remote-walrus/pkg/config"
	"github.com/wbbradley/git-remote-walrus/pkg/log"
)

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Compile and publish the on-chain contract",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDeploy()
	},
}

// runDeploy shells out to the ledger's own publish tooling. Compiling and
// publishing Move bytecode is not reimplemented here; this only invokes
// the external CLI and reports what it did.
func runDeploy() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to determine working directory: %w", err)
	}

	args := []string{"client", "publish", "--gas-budget", "100000000", "--json"}
	if cfg.WalletPath != "" {
		args = append([]string{"--client.config", cfg.WalletPath}, args...)
	}

	cmdExec := exec.Command("sui", append(args, wd)...)
	var stdout, stderr bytes.Buffer
	cmdExec.Stdout = &stdout
	cmdExec.Stderr = &stderr

	log.Info("publishing contract package via sui client publish")
	if err := cmdExec.Run(); err != nil {
		return fmt.Errorf("sui client publish failed: %w (%s)", err, strings.TrimSpace(stderr.String()))
	}

	fmt.Print(stdout.String())
	log.Info("contract package published")
	return nil
}
