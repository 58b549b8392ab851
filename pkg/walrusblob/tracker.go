package walrusblob

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// TrackedBlob records the lifetime of a single tracked blob.
type TrackedBlob struct {
	BlobID   string `yaml:"blob_id"`
	EndEpoch uint64 `yaml:"end_epoch"`
	Size     *uint64 `yaml:"size,omitempty"`
}

// BlobTracker records which epoch each uploaded blob expires at, so the
// backend can warn about blobs that are about to fall out of the network
// before anyone extends their storage.
type BlobTracker struct {
	Blobs map[string]TrackedBlob `yaml:"blobs"`
}

// NewBlobTracker returns an empty tracker.
func NewBlobTracker() *BlobTracker {
	return &BlobTracker{Blobs: make(map[string]TrackedBlob)}
}

// LoadBlobTracker reads the tracker from path, returning an empty tracker
// if the file does not exist.
func LoadBlobTracker(path string) (*BlobTracker, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewBlobTracker(), nil
		}
		return nil, fmt.Errorf("failed to read blob tracker from %s: %w", path, err)
	}

	t := NewBlobTracker()
	if err := yaml.Unmarshal(content, t); err != nil {
		return nil, fmt.Errorf("failed to parse blob tracker from %s: %w", path, err)
	}
	if t.Blobs == nil {
		t.Blobs = make(map[string]TrackedBlob)
	}
	return t, nil
}

// Save writes the tracker to path, creating parent directories as needed.
func (t *BlobTracker) Save(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	out, err := yaml.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to serialize blob tracker: %w", err)
	}

	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("failed to write blob tracker to %s: %w", path, err)
	}
	return nil
}

// TrackBlob records or replaces expiration info for blobID.
func (t *BlobTracker) TrackBlob(blobID string, endEpoch uint64, size *uint64) {
	t.Blobs[blobID] = TrackedBlob{BlobID: blobID, EndEpoch: endEpoch, Size: size}
}

// GetBlob returns tracked info for blobID, if any.
func (t *BlobTracker) GetBlob(blobID string) (TrackedBlob, bool) {
	info, ok := t.Blobs[blobID]
	return info, ok
}

// MinEndEpoch returns the earliest expiration epoch across all tracked
// blobs, or false if nothing is tracked.
func (t *BlobTracker) MinEndEpoch() (uint64, bool) {
	if len(t.Blobs) == 0 {
		return 0, false
	}
	min := uint64(0)
	first := true
	for _, info := range t.Blobs {
		if first || info.EndEpoch < min {
			min = info.EndEpoch
			first = false
		}
	}
	return min, true
}

// ExpiringBefore returns every tracked blob whose end epoch is at or
// before epoch, soonest-expiring first (blob id breaks ties so output stays
// deterministic).
func (t *BlobTracker) ExpiringBefore(epoch uint64) []TrackedBlob {
	var out []TrackedBlob
	for _, info := range t.Blobs {
		if info.EndEpoch <= epoch {
			out = append(out, info)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EndEpoch != out[j].EndEpoch {
			return out[i].EndEpoch < out[j].EndEpoch
		}
		return out[i].BlobID < out[j].BlobID
	})
	return out
}

// UntrackBlob removes blobID from tracking, returning the info it had, if
// any.
func (t *BlobTracker) UntrackBlob(blobID string) (TrackedBlob, bool) {
	info, ok := t.Blobs[blobID]
	if ok {
		delete(t.Blobs, blobID)
	}
	return info, ok
}

// Count returns the number of tracked blobs.
func (t *BlobTracker) Count() int {
	return len(t.Blobs)
}

// CheckExpirationWarning reports whether any tracked blob expires within
// warningThreshold epochs of currentEpoch, the minimum end epoch across
// all tracked blobs, and the set of blobs expiring soon.
func (t *BlobTracker) CheckExpirationWarning(currentEpoch, warningThreshold uint64) (bool, *uint64, []TrackedBlob) {
	minEpoch, ok := t.MinEndEpoch()
	if !ok {
		return false, nil, nil
	}

	warnEpoch := currentEpoch + warningThreshold
	expiringSoon := t.ExpiringBefore(warnEpoch)
	if len(expiringSoon) > 0 {
		m := minEpoch
		return true, &m, expiringSoon
	}

	m := minEpoch
	return false, &m, nil
}

// BlobTrackerPath returns the conventional tracker file path under a cache
// directory.
func BlobTrackerPath(cacheDir string) string {
	return filepath.Join(cacheDir, "blob_tracker.yaml")
}
