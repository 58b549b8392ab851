// Package packtransfer bridges the git pack protocol and a content-addressed
// storage.Backend: ReceivePack unpacks an inbound pack into loose objects and
// stores them, SendPack materializes wanted objects as loose objects and
// repacks them for the caller.
//
// Neither direction reimplements the pack format itself — both shell out to
// the real git binary for that — this package only owns the scratch
// repository bookkeeping around it.
package packtransfer

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// scratchRepo is a disposable bare repository used to stage loose objects
// on either side of a pack transfer.
type scratchRepo struct {
	root   string
	gitDir string
}

func newScratchRepo() (*scratchRepo, error) {
	root, err := os.MkdirTemp("", "git-remote-walrus-"+uuid.New().String())
	if err != nil {
		return nil, fmt.Errorf("failed to create scratch directory: %w", err)
	}

	gitDir := filepath.Join(root, "repo.git")
	if err := initBareRepo(gitDir); err != nil {
		os.RemoveAll(root)
		return nil, err
	}

	return &scratchRepo{root: root, gitDir: gitDir}, nil
}

func (r *scratchRepo) objectsDir() string {
	return filepath.Join(r.gitDir, "objects")
}

// Close removes the entire scratch directory tree.
func (r *scratchRepo) Close() error {
	return os.RemoveAll(r.root)
}

// initBareRepo lays out the minimal structure `git unpack-objects` and
// `git pack-objects` need: an objects dir, a refs dir, and a HEAD file.
func initBareRepo(gitDir string) error {
	if err := os.MkdirAll(filepath.Join(gitDir, "objects"), 0o755); err != nil {
		return fmt.Errorf("failed to create objects dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(gitDir, "refs"), 0o755); err != nil {
		return fmt.Errorf("failed to create refs dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(gitDir, "HEAD"), []byte("ref: refs/heads/main\n"), 0o644); err != nil {
		return fmt.Errorf("failed to write HEAD: %w", err)
	}
	return nil
}

// collectLooseObjectPaths walks the two-hex-char fan-out directories under
// objects/, skipping "pack" and "info", and returns every loose object file
// path found.
func collectLooseObjectPaths(objectsDir string) ([]string, error) {
	fanoutEntries, err := os.ReadDir(objectsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read objects dir %s: %w", objectsDir, err)
	}

	var paths []string
	for _, fanout := range fanoutEntries {
		name := fanout.Name()
		if !fanout.IsDir() || name == "pack" || name == "info" || len(name) != 2 {
			continue
		}

		dir := filepath.Join(objectsDir, name)
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("failed to read object subdir %s: %w", dir, err)
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}

	return paths, nil
}
