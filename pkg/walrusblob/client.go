package walrusblob

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strconv"
)

// BlobInfo is what the walrus CLI reports after a successful store: the
// blob id used to read the content back, and the shared object id used to
// query its on-chain lifetime.
type BlobInfo struct {
	SharedObjectID string
	BlobID         string
}

// BlobStatus is the walrus CLI's reported status for a blob.
type BlobStatus struct {
	BlobID   string  `json:"blob_id"`
	Status   string  `json:"status"`
	EndEpoch *uint64 `json:"end_epoch"`
}

// EpochInfo is the walrus CLI's reported current epoch state.
type EpochInfo struct {
	CurrentEpoch   uint64 `json:"currentEpoch"`
	MaxEpochsAhead *uint64 `json:"maxEpochsAhead,omitempty"`
}

// Client wraps the external walrus CLI binary. Every method shells out;
// none of the Walrus wire protocol is reimplemented here.
type Client struct {
	configPath    string
	defaultEpochs uint32
}

// NewClient constructs a client that prepends --config configPath to every
// invocation when configPath is non-empty, and defaults store's epoch
// duration to defaultEpochs.
func NewClient(configPath string, defaultEpochs uint32) *Client {
	return &Client{configPath: configPath, defaultEpochs: defaultEpochs}
}

func (c *Client) baseArgs() []string {
	if c.configPath == "" {
		return nil
	}
	return []string{"--config", c.configPath}
}

// Store uploads content using the client's default epoch duration.
func (c *Client) Store(content []byte) (BlobInfo, error) {
	return c.StoreWithEpochs(content, c.defaultEpochs)
}

// StoreWithEpochs uploads content, requesting it be retained for epochs
// epochs, shared and permanent so later reads and status queries can find
// it without the uploader's keystore.
func (c *Client) StoreWithEpochs(content []byte, epochs uint32) (BlobInfo, error) {
	tmp, err := os.CreateTemp("", "git-remote-walrus-upload-*")
	if err != nil {
		return BlobInfo{}, fmt.Errorf("failed to create temporary file for walrus upload: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return BlobInfo{}, fmt.Errorf("failed to write content to temporary file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return BlobInfo{}, fmt.Errorf("failed to flush temporary file: %w", err)
	}

	args := append(c.baseArgs(),
		"store", "--json", "--share", "--permanent", "--force",
		"--epochs", strconv.FormatUint(uint64(epochs), 10),
		tmp.Name(),
	)

	cmd := exec.Command("walrus", args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return BlobInfo{}, fmt.Errorf("walrus store failed: %s: %w", stderr.String(), err)
	}

	return parseBlobInfo(stdout.Bytes())
}

// Read downloads a blob's content by blob id.
func (c *Client) Read(blobID string) ([]byte, error) {
	args := append(c.baseArgs(), "read", blobID)

	cmd := exec.Command("walrus", args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("walrus read failed: %s: %w", stderr.String(), err)
	}
	return stdout.Bytes(), nil
}

// BlobStatusByID queries the walrus CLI's own view of a blob's status.
// Prefer resolving status through the ledger client when a shared object
// id is available; this exists for diagnostics and for blobs without a
// known shared object id.
func (c *Client) BlobStatusByID(blobID string) (BlobStatus, error) {
	args := append(c.baseArgs(), "blob-status", "--json", "--blob-id", blobID)

	cmd := exec.Command("walrus", args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return BlobStatus{}, fmt.Errorf("walrus blob-status failed: %s: %w", stderr.String(), err)
	}

	var status BlobStatus
	if err := json.Unmarshal(stdout.Bytes(), &status); err != nil {
		return BlobStatus{}, fmt.Errorf("failed to parse blob status JSON: %w", err)
	}
	return status, nil
}

// QueryNetworkInfo shells out to `walrus info --json` and reports the
// network's current blob size limits.
func (c *Client) QueryNetworkInfo() (*NetworkInfo, error) {
	return QueryNetworkInfo(c.configPath)
}

// CurrentEpoch queries the network's current epoch.
func (c *Client) CurrentEpoch() (EpochInfo, error) {
	args := append(c.baseArgs(), "info", "epoch", "--json")

	cmd := exec.Command("walrus", args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return EpochInfo{}, fmt.Errorf("walrus info epoch failed: %s: %w", stderr.String(), err)
	}

	var info EpochInfo
	if err := json.Unmarshal(stdout.Bytes(), &info); err != nil {
		return EpochInfo{}, fmt.Errorf("failed to parse epoch info JSON: %w", err)
	}
	return info, nil
}

// parseBlobInfo extracts the blob id and shared object id from the
// `walrus store --json` output. The CLI has shipped at least four
// observed shapes: a bare object with newlyCreated or alreadyCertified at
// the top level, and an array of {blobStoreResult, path} wrapping either
// of those same two variants.
func parseBlobInfo(output []byte) (BlobInfo, error) {
	var asArray []struct {
		BlobStoreResult json.RawMessage `json:"blobStoreResult"`
	}
	if err := json.Unmarshal(output, &asArray); err == nil && len(asArray) > 0 {
		if info, ok := parseBlobStoreResult(asArray[0].BlobStoreResult); ok {
			return info, nil
		}
	}

	if info, ok := parseBlobStoreResult(output); ok {
		return info, nil
	}

	return BlobInfo{}, fmt.Errorf("failed to parse blob info from walrus output: %s", output)
}

func parseBlobStoreResult(raw json.RawMessage) (BlobInfo, bool) {
	if len(raw) == 0 {
		return BlobInfo{}, false
	}

	var shape struct {
		NewlyCreated *struct {
			BlobObject struct {
				BlobID string `json:"blobId"`
			} `json:"blobObject"`
			SharedBlobObject string `json:"sharedBlobObject"`
		} `json:"newlyCreated"`
		AlreadyCertified *struct {
			BlobID           string `json:"blobId"`
			SharedBlobObject string `json:"sharedBlobObject"`
		} `json:"alreadyCertified"`
	}
	if err := json.Unmarshal(raw, &shape); err != nil {
		return BlobInfo{}, false
	}

	if shape.NewlyCreated != nil && shape.NewlyCreated.BlobObject.BlobID != "" && shape.NewlyCreated.SharedBlobObject != "" {
		return BlobInfo{
			BlobID:         shape.NewlyCreated.BlobObject.BlobID,
			SharedObjectID: shape.NewlyCreated.SharedBlobObject,
		}, true
	}
	if shape.AlreadyCertified != nil && shape.AlreadyCertified.BlobID != "" && shape.AlreadyCertified.SharedBlobObject != "" {
		return BlobInfo{
			BlobID:         shape.AlreadyCertified.BlobID,
			SharedObjectID: shape.AlreadyCertified.SharedBlobObject,
		}, true
	}
	return BlobInfo{}, false
}
