package walrusstore

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sync"

	"github.com/wbbradley/git-remote-walrus/pkg/ledger"
	"github.com/wbbradley/git-remote-walrus/pkg/walrusblob"
)

// fakeBlobStore is an in-memory stand-in for the external blob store CLI,
// keyed by a synthetic shared object id derived from content hash.
type fakeBlobStore struct {
	mu          sync.Mutex
	blobs       map[string][]byte // shared object id -> content
	epoch       uint64
	maxBlobSize uint64
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{blobs: make(map[string][]byte), epoch: 100, maxBlobSize: 64 << 20}
}

func (f *fakeBlobStore) Store(content []byte) (walrusblob.BlobInfo, error) {
	return f.StoreWithEpochs(content, 5)
}

func (f *fakeBlobStore) StoreWithEpochs(content []byte, _ uint32) (walrusblob.BlobInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	sum := sha256.Sum256(content)
	objectID := fmt.Sprintf("0x%x", sum)
	f.blobs[objectID] = append([]byte{}, content...)

	return walrusblob.BlobInfo{SharedObjectID: objectID, BlobID: "blob-" + objectID}, nil
}

func (f *fakeBlobStore) Read(blobID string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for objectID, content := range f.blobs {
		if "blob-"+objectID == blobID {
			return append([]byte{}, content...), nil
		}
	}
	return nil, fmt.Errorf("blob not found: %s", blobID)
}

func (f *fakeBlobStore) CurrentEpoch() (walrusblob.EpochInfo, error) {
	return walrusblob.EpochInfo{CurrentEpoch: f.epoch}, nil
}

// QueryNetworkInfo reports a generous max blob size so tests exercise
// batching behavior explicitly rather than being tripped by the fake's
// default limits.
func (f *fakeBlobStore) QueryNetworkInfo() (*walrusblob.NetworkInfo, error) {
	return &walrusblob.NetworkInfo{
		SizeInfo: walrusblob.SizeInfo{MaxBlobSize: f.maxBlobSize},
	}, nil
}

// fakeLedger is an in-memory stand-in for the consensus ledger.
type fakeLedger struct {
	mu                  sync.Mutex
	refs                map[string]string
	objectsBlobObjectID string
	locked              bool
	blobs               *fakeBlobStore
}

func newFakeLedger(blobs *fakeBlobStore) *fakeLedger {
	return &fakeLedger{refs: make(map[string]string), blobs: blobs}
}

func (f *fakeLedger) ReadRefs(_ context.Context) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make(map[string]string, len(f.refs))
	for k, v := range f.refs {
		out[k] = v
	}
	return out, nil
}

func (f *fakeLedger) GetObjectsBlobObjectID(_ context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.objectsBlobObjectID, nil
}

func (f *fakeLedger) GetSharedBlobStatus(_ context.Context, objectID string) (ledger.SharedBlobStatus, error) {
	f.blobs.mu.Lock()
	_, ok := f.blobs.blobs[objectID]
	f.blobs.mu.Unlock()
	if !ok {
		return ledger.SharedBlobStatus{}, fmt.Errorf("shared blob object not found: %s", objectID)
	}

	return ledger.SharedBlobStatus{
		ObjectID: objectID,
		BlobID:   "blob-" + objectID,
		EndEpoch: f.blobs.epoch + 50,
	}, nil
}

func (f *fakeLedger) AcquireLock(_ context.Context, _ uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.locked {
		return fmt.Errorf("lock already held")
	}
	f.locked = true
	return nil
}

func (f *fakeLedger) UpsertRefsAndUpdateObjects(_ context.Context, refs map[string]string, objectsBlobObjectID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for k, v := range refs {
		f.refs[k] = v
	}
	f.objectsBlobObjectID = objectsBlobObjectID
	f.locked = false
	return nil
}
