package main

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/wbbradley/git-remote-walrus/pkg/config"
)

var configEdit bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Display or edit the configuration file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if configEdit {
			return runConfigEdit()
		}
		return runConfigShow()
	},
}

func init() {
	configCmd.Flags().BoolVar(&configEdit, "edit", false, "open the configuration file in $EDITOR")
}

func runConfigShow() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to serialize configuration: %w", err)
	}
	fmt.Print(string(out))
	return nil
}

func runConfigEdit() error {
	path, err := config.ConfigFilePath()
	if err != nil {
		return err
	}

	if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if err := config.Save(cfg, path); err != nil {
			return err
		}
	}

	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = "vi"
	}

	cmdExec := exec.Command(editor, path)
	cmdExec.Stdin = os.Stdin
	cmdExec.Stdout = os.Stdout
	cmdExec.Stderr = os.Stderr
	if err := cmdExec.Run(); err != nil {
		return fmt.Errorf("failed to launch editor %s: %w", editor, err)
	}
	return nil
}
