package walrusblob

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// SizeInfo describes the blob size limits the connected network enforces.
type SizeInfo struct {
	StorageUnitSize uint64 `yaml:"storage_unit_size"`
	MaxBlobSize     uint64 `yaml:"max_blob_size"`
}

// NetworkInfo caches queried network size parameters, along with when they
// were last queried.
type NetworkInfo struct {
	SizeInfo  SizeInfo `yaml:"size_info"`
	QueriedAt string   `yaml:"queried_at,omitempty"`
}

// LoadNetworkInfo reads cached network info from path. Returns nil, nil if
// no cache file exists yet.
func LoadNetworkInfo(path string) (*NetworkInfo, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read network info from %s: %w", path, err)
	}

	var info NetworkInfo
	if err := yaml.Unmarshal(content, &info); err != nil {
		return nil, fmt.Errorf("failed to parse network info from %s: %w", path, err)
	}
	return &info, nil
}

// Save writes the network info to path, creating parent directories as
// needed.
func (n *NetworkInfo) Save(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	out, err := yaml.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to serialize network info: %w", err)
	}

	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("failed to write network info to %s: %w", path, err)
	}
	return nil
}

// MaxBlobSize returns the maximum blob size the network accepts.
func (n *NetworkInfo) MaxBlobSize() uint64 {
	return n.SizeInfo.MaxBlobSize
}

type walrusInfoOutput struct {
	SizeInfo struct {
		StorageUnitSize uint64 `json:"storageUnitSize"`
		MaxBlobSize     uint64 `json:"maxBlobSize"`
	} `json:"sizeInfo"`
}

// QueryNetworkInfo shells out to `walrus [--config <path>] info --json` and
// parses the network's size limits from its output.
func QueryNetworkInfo(walrusConfigPath string) (*NetworkInfo, error) {
	args := []string{}
	if walrusConfigPath != "" {
		args = append(args, "--config", walrusConfigPath)
	}
	args = append(args, "info", "--json")

	cmd := exec.Command("walrus", args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("walrus info command failed: %s: %w", stderr.String(), err)
	}

	var parsed walrusInfoOutput
	if err := json.Unmarshal(stdout.Bytes(), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse walrus info JSON: %w", err)
	}

	return &NetworkInfo{
		SizeInfo: SizeInfo{
			StorageUnitSize: parsed.SizeInfo.StorageUnitSize,
			MaxBlobSize:     parsed.SizeInfo.MaxBlobSize,
		},
		QueriedAt: time.Now().UTC().Format(time.RFC3339),
	}, nil
}

// NetworkInfoPath returns the conventional network info cache path under a
// cache directory.
func NetworkInfoPath(cacheDir string) string {
	return filepath.Join(cacheDir, "network_info.yaml")
}
