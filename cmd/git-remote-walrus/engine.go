package main

import (
	"context"
	"fmt"
	"os"

	"github.com/wbbradley/git-remote-walrus/pkg/config"
	"github.com/wbbradley/git-remote-walrus/pkg/ledger"
	"github.com/wbbradley/git-remote-walrus/pkg/log"
	"github.com/wbbradley/git-remote-walrus/pkg/protocolengine"
	"github.com/wbbradley/git-remote-walrus/pkg/remoteurl"
	"github.com/wbbradley/git-remote-walrus/pkg/storage"
	"github.com/wbbradley/git-remote-walrus/pkg/storage/fsstore"
	"github.com/wbbradley/git-remote-walrus/pkg/storage/walrusstore"
)

// runProtocolEngine resolves remoteURL to a storage backend and runs the
// remote-helper command loop against it until stdin closes.
func runProtocolEngine(_, remoteURL string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	backend, err := openBackend(cfg, remoteurl.Parse(remoteURL))
	if err != nil {
		return err
	}

	if err := backend.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize storage backend: %w", err)
	}

	log.Info("git-remote-walrus protocol engine started")
	if err := protocolengine.Run(os.Stdin, os.Stdout, backend); err != nil {
		return fmt.Errorf("protocol engine failed: %w", err)
	}
	log.Info("git-remote-walrus protocol engine exiting")
	return nil
}

func openBackend(cfg config.Config, target remoteurl.Target) (storage.Backend, error) {
	switch target.Kind {
	case remoteurl.Filesystem:
		return fsstore.New(target.Address), nil
	case remoteurl.Distributed:
		signer, err := ledger.LoadSigner(cfg.WalletPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load wallet keystore %s: %w", cfg.WalletPath, err)
		}
		ledgerClient, err := ledger.NewClientFromStateObject(
			context.Background(), ledger.DefaultRPCURL, target.Address, signer)
		if err != nil {
			return nil, err
		}
		store, err := walrusstore.New(cfg, ledgerClient)
		if err != nil {
			return nil, fmt.Errorf("failed to construct distributed storage backend: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unrecognized remote url %q", target.Address)
	}
}
