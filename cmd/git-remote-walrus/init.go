package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wbbradley/git-remote-walrus/pkg/config"
	"github.com/wbbradley/git-remote-walrus/pkg/ledger"
	"github.com/wbbradley/git-remote-walrus/pkg/log"
)

var (
	initShared bool
	initAllow  []string
)

var initCmd = &cobra.Command{
	Use:   "init <package-id>",
	Short: "Create a new remote-state object on the ledger",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInit(args[0], initShared, initAllow)
	},
}

func init() {
	initCmd.Flags().BoolVar(&initShared, "shared", false, "convert the remote-state object to a shared object with an allow list")
	initCmd.Flags().StringArrayVar(&initAllow, "allow", nil, "address permitted to write when --shared is set (repeatable)")
}

func runInit(packageID string, shared bool, allow []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	signer, err := ledger.LoadSigner(cfg.WalletPath)
	if err != nil {
		return fmt.Errorf("failed to load wallet keystore %s: %w", cfg.WalletPath, err)
	}

	client := ledger.NewClientForInit(ledger.DefaultRPCURL, packageID, signer)

	ctx := context.Background()
	objectID, err := client.CreateRemote(ctx)
	if err != nil {
		return fmt.Errorf("failed to create remote-state object: %w", err)
	}
	log.Info(fmt.Sprintf("created remote-state object %s", objectID))

	if shared {
		if err := client.ShareRemote(ctx, objectID, allow); err != nil {
			return fmt.Errorf("failed to share remote-state object %s: %w", objectID, err)
		}
		log.Info(fmt.Sprintf("shared remote-state object %s with %d allowed address(es)", objectID, len(allow)))
	}

	fmt.Println(objectID)
	return nil
}
