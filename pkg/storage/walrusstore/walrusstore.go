// Package walrusstore implements the distributed remote backend: git
// objects live in a decentralized blob store addressed by shared-object
// wrappers on a consensus ledger, refs and the objects map live in the
// ledger's mutable RemoteState object, and a local filesystem cache
// absorbs repeat reads and writes within one working copy.
package walrusstore

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/wbbradley/git-remote-walrus/pkg/config"
	"github.com/wbbradley/git-remote-walrus/pkg/contentid"
	"github.com/wbbradley/git-remote-walrus/pkg/ledger"
	"github.com/wbbradley/git-remote-walrus/pkg/log"
	"github.com/wbbradley/git-remote-walrus/pkg/state"
	"github.com/wbbradley/git-remote-walrus/pkg/storage/fsstore"
	"github.com/wbbradley/git-remote-walrus/pkg/walrusblob"
)

// lockTimeoutMs is how long a write holds the remote-state's write lock
// before another writer may force its release.
const lockTimeoutMs = 300_000

// defaultMaxBatchBytes is the configured cap on one batched upload's total
// size (spec.md §4.7.2's "configured-max-batch"). There is no config
// surface for this value — the env/config-key list is closed — so every
// invocation uses the same built-in limit, further narrowed against
// whatever the connected network's own max-blob-size reports.
const defaultMaxBatchBytes = 10 << 20 // 10 MiB

// expirationAdvisoryLimit caps how many of the soonest-expiring blobs
// a single advisory lists (spec.md §4.7.5: "up to five").
const expirationAdvisoryLimit = 5

// blobStore is the subset of walrusblob.Client this package depends on.
// Factored out so tests can substitute an in-memory fake.
type blobStore interface {
	Store(content []byte) (walrusblob.BlobInfo, error)
	StoreWithEpochs(content []byte, epochs uint32) (walrusblob.BlobInfo, error)
	Read(blobID string) ([]byte, error)
	CurrentEpoch() (walrusblob.EpochInfo, error)
	QueryNetworkInfo() (*walrusblob.NetworkInfo, error)
}

// ledgerClient is the subset of ledger.Client this package depends on.
// Factored out so tests can substitute an in-memory fake.
type ledgerClient interface {
	ReadRefs(ctx context.Context) (map[string]string, error)
	GetObjectsBlobObjectID(ctx context.Context) (string, error)
	GetSharedBlobStatus(ctx context.Context, objectID string) (ledger.SharedBlobStatus, error)
	AcquireLock(ctx context.Context, timeoutMs uint64) error
	UpsertRefsAndUpdateObjects(ctx context.Context, refs map[string]string, objectsBlobObjectID string) error
}

// Store is the distributed storage backend.
type Store struct {
	cfg    config.Config
	cache  *fsstore.Store
	blobs  blobStore
	ledger ledgerClient
}

// New constructs a distributed backend bound to an existing remote-state
// object via ledgerClient, using cfg for local cache location and upload
// defaults.
func New(cfg config.Config, ledgerClient *ledger.Client) (*Store, error) {
	return newWithDeps(cfg, walrusblob.NewClient(cfg.BlobConfigPath, cfg.DefaultEpochs), ledgerClient)
}

func newWithDeps(cfg config.Config, blobs blobStore, ledg ledgerClient) (*Store, error) {
	cacheDir, err := cfg.EnsureCacheDir()
	if err != nil {
		return nil, err
	}

	return &Store{
		cfg:    cfg,
		cache:  fsstore.New(cacheDir),
		blobs:  blobs,
		ledger: ledg,
	}, nil
}

func cacheIndexPath(cacheDir string) string {
	return cacheDir + "/cache_index.yaml"
}

// Initialize prepares the local cache and emits any blob-expiration
// warnings for previously-tracked blobs.
func (s *Store) Initialize() error {
	log.Info("initializing distributed storage")

	if err := s.cache.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize local cache: %w", err)
	}

	s.checkBlobExpiration()
	return nil
}

func (s *Store) loadCacheIndex() (*walrusblob.CacheIndex, error) {
	cacheDir, err := s.cfg.EnsureCacheDir()
	if err != nil {
		return nil, err
	}
	return walrusblob.LoadCacheIndex(cacheIndexPath(cacheDir))
}

func (s *Store) saveCacheIndex(idx *walrusblob.CacheIndex) error {
	cacheDir, err := s.cfg.EnsureCacheDir()
	if err != nil {
		return err
	}
	return idx.Save(cacheIndexPath(cacheDir))
}

func (s *Store) loadBlobTracker() (*walrusblob.BlobTracker, error) {
	cacheDir, err := s.cfg.EnsureCacheDir()
	if err != nil {
		return nil, err
	}
	return walrusblob.LoadBlobTracker(walrusblob.BlobTrackerPath(cacheDir))
}

func (s *Store) saveBlobTracker(t *walrusblob.BlobTracker) error {
	cacheDir, err := s.cfg.EnsureCacheDir()
	if err != nil {
		return err
	}
	return t.Save(walrusblob.BlobTrackerPath(cacheDir))
}

func computeSHA256(content []byte) string {
	sum := sha256.Sum256(content)
	return fmt.Sprintf("%x", sum)
}

// checkBlobExpiration logs a warning if any tracked blob is close to
// falling out of the network. Failures here are advisory only and never
// block the caller.
func (s *Store) checkBlobExpiration() {
	tracker, err := s.loadBlobTracker()
	if err != nil || tracker.Count() == 0 {
		return
	}

	epochInfo, err := s.blobs.CurrentEpoch()
	if err != nil {
		log.Warn("failed to query current epoch for expiration check")
		return
	}

	shouldWarn, minEpoch, expiringSoon := tracker.CheckExpirationWarning(
		epochInfo.CurrentEpoch, s.cfg.ExpirationWarningThreshold,
	)

	if shouldWarn {
		listed := expiringSoon
		if len(listed) > expirationAdvisoryLimit {
			listed = listed[:expirationAdvisoryLimit]
		}

		var b strings.Builder
		fmt.Fprintf(&b, "%d blob(s) expiring soon (current epoch %d, earliest expiration %d):",
			len(expiringSoon), epochInfo.CurrentEpoch, *minEpoch)
		for _, blob := range listed {
			fmt.Fprintf(&b, " %s(end_epoch=%d)", blob.BlobID, blob.EndEpoch)
		}
		if len(expiringSoon) > len(listed) {
			fmt.Fprintf(&b, " and %d more", len(expiringSoon)-len(listed))
		}
		log.Warn(b.String())
	}
}

// WriteObject uploads content as its own blob and returns a legacy
// content-id addressing that blob directly. If the cache index already
// records content, the recorded content-id (legacy or batched) is returned
// and nothing is uploaded.
func (s *Store) WriteObject(content []byte) (contentid.ContentId, error) {
	ids, err := s.WriteObjects([][]byte{content})
	if err != nil {
		return contentid.ContentId{}, err
	}
	return ids[0], nil
}

// WriteObjects hashes and dedups every content against the local cache
// index, then partitions whatever remains into groups bounded by
// spec.md §4.7.2's min(configured-max-batch, network-max-blob), uploading
// each group as one blob. A singleton group gets a legacy content-id; a
// multi-entry group gets each member a batched content-id carrying its
// offset and length within the uploaded concatenation. This amortizes the
// blob store's per-upload overhead across many small git objects, unlike
// the local filesystem backend which has no such cost.
func (s *Store) WriteObjects(contents [][]byte) ([]contentid.ContentId, error) {
	if len(contents) == 0 {
		return nil, nil
	}

	cacheIndex, err := s.loadCacheIndex()
	if err != nil {
		return nil, err
	}

	ids := make([]contentid.ContentId, len(contents))
	var toUpload [][]byte
	var toUploadIndices []int

	for i, content := range contents {
		sha256 := computeSHA256(content)
		if id, ok := cacheIndex.ContentID(sha256); ok {
			ids[i] = id
			continue
		}
		toUpload = append(toUpload, content)
		toUploadIndices = append(toUploadIndices, i)
	}

	if len(toUpload) == 0 {
		return ids, nil
	}

	maxBatchBytes, err := s.maxBatchBytes()
	if err != nil {
		return nil, err
	}

	groups, err := partitionBySize(toUpload, maxBatchBytes)
	if err != nil {
		return nil, err
	}

	cacheReady := s.cache.Initialize() == nil

	for _, group := range groups {
		var batch []byte
		offsets := make([]uint64, len(group))
		lengths := make([]uint64, len(group))
		for gi, idx := range group {
			offsets[gi] = uint64(len(batch))
			lengths[gi] = uint64(len(toUpload[idx]))
			batch = append(batch, toUpload[idx]...)
		}

		blobInfo, err := s.blobs.Store(batch)
		if err != nil {
			return nil, fmt.Errorf("failed to upload batch of %d objects: %w", len(group), err)
		}

		if cacheReady {
			_, _ = s.cache.WriteObject(batch)
		}

		for gi, idx := range group {
			var id contentid.ContentId
			if len(group) == 1 {
				id = contentid.Legacy(blobInfo.SharedObjectID)
			} else {
				id = contentid.Batch(blobInfo.SharedObjectID, offsets[gi], lengths[gi])
			}
			ids[toUploadIndices[idx]] = id
			cacheIndex.InsertContentID(computeSHA256(toUpload[idx]), id)
		}
		cacheIndex.Insert(blobInfo.SharedObjectID, computeSHA256(batch))

		if status, err := s.ledger.GetSharedBlobStatus(context.Background(), blobInfo.SharedObjectID); err == nil {
			tracker, err := s.loadBlobTracker()
			if err == nil {
				size := uint64(len(batch))
				tracker.TrackBlob(status.ObjectID, status.EndEpoch, &size)
				_ = s.saveBlobTracker(tracker)
			}
		} else {
			log.Warn(fmt.Sprintf("failed to resolve blob status for %s: %v", blobInfo.SharedObjectID, err))
		}
	}

	if err := s.saveCacheIndex(cacheIndex); err != nil {
		return nil, err
	}

	return ids, nil
}

// maxBatchBytes resolves spec.md §4.7.2's min(configured-max-batch,
// network-max-blob), caching the queried network limits alongside the
// other walrus-derived sidecar state.
func (s *Store) maxBatchBytes() (uint64, error) {
	cacheDir, err := s.cfg.EnsureCacheDir()
	if err != nil {
		return 0, err
	}

	path := walrusblob.NetworkInfoPath(cacheDir)
	info, err := walrusblob.LoadNetworkInfo(path)
	if err != nil {
		return 0, err
	}
	if info == nil {
		info, err = s.blobs.QueryNetworkInfo()
		if err != nil {
			return 0, fmt.Errorf("failed to query network size limits: %w", err)
		}
		if err := info.Save(path); err != nil {
			log.Warn(fmt.Sprintf("failed to cache network info: %v", err))
		}
	}

	max := uint64(defaultMaxBatchBytes)
	if networkMax := info.MaxBlobSize(); networkMax > 0 && networkMax < max {
		max = networkMax
	}
	return max, nil
}

// partitionBySize groups contents, in input order, into index groups whose
// concatenated size never exceeds maxBytes. A content larger than maxBytes
// on its own cannot be split and is reported as an error, per spec.md
// §4.7.2's oversized-singleton tie-break.
func partitionBySize(contents [][]byte, maxBytes uint64) ([][]int, error) {
	var groups [][]int
	var current []int
	var currentSize uint64

	for i, content := range contents {
		size := uint64(len(content))
		if size > maxBytes {
			return nil, fmt.Errorf("object of %d bytes exceeds the maximum batchable size of %d bytes", size, maxBytes)
		}
		if len(current) > 0 && currentSize+size > maxBytes {
			groups = append(groups, current)
			current = nil
			currentSize = 0
		}
		current = append(current, i)
		currentSize += size
	}
	if len(current) > 0 {
		groups = append(groups, current)
	}
	return groups, nil
}

// ReadObject resolves and downloads a single object, preferring the local
// cache when the underlying blob bytes are already known.
func (s *Store) ReadObject(id contentid.ContentId) ([]byte, error) {
	results, err := s.ReadObjects([]contentid.ContentId{id})
	if err != nil {
		return nil, err
	}
	return results[0], nil
}

// ReadObjects resolves and downloads a batch of objects. Distinct ids
// sharing the same underlying blob are only downloaded once; downloads
// for distinct blobs run concurrently.
func (s *Store) ReadObjects(ids []contentid.ContentId) ([][]byte, error) {
	out := make([][]byte, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	cacheIndex, err := s.loadCacheIndex()
	if err != nil {
		return nil, err
	}

	blobBytes := make(map[string][]byte)
	var toFetch []string
	seen := make(map[string]bool)
	for _, id := range ids {
		if seen[id.BlobID] {
			continue
		}
		seen[id.BlobID] = true
		if sha256, ok := cacheIndex.SHA256(id.BlobID); ok {
			if content, err := s.cache.ReadObject(contentid.Legacy(sha256)); err == nil {
				blobBytes[id.BlobID] = content
				continue
			}
		}
		toFetch = append(toFetch, id.BlobID)
	}

	if len(toFetch) > 0 {
		fetched := make([][]byte, len(toFetch))
		group, ctx := errgroup.WithContext(context.Background())
		for i, blobID := range toFetch {
			i, blobID := i, blobID
			group.Go(func() error {
				status, err := s.ledger.GetSharedBlobStatus(ctx, blobID)
				if err != nil {
					return fmt.Errorf("failed to resolve blob status for %s: %w", blobID, err)
				}
				content, err := s.blobs.Read(status.BlobID)
				if err != nil {
					return fmt.Errorf("failed to download blob %s: %w", status.BlobID, err)
				}
				fetched[i] = content
				return nil
			})
		}
		if err := group.Wait(); err != nil {
			return nil, err
		}

		for i, blobID := range toFetch {
			blobBytes[blobID] = fetched[i]
			sha256 := computeSHA256(fetched[i])
			if err := s.cache.Initialize(); err == nil {
				_, _ = s.cache.WriteObject(fetched[i])
			}
			cacheIndex.Insert(blobID, sha256)
		}
		_ = s.saveCacheIndex(cacheIndex)
	}

	for i, id := range ids {
		content, ok := blobBytes[id.BlobID]
		if !ok {
			return nil, fmt.Errorf("object %s was not resolved", id)
		}
		if id.Batched {
			end := id.Offset + id.Length
			if end > uint64(len(content)) {
				return nil, fmt.Errorf("batched content-id %s exceeds blob size %d", id, len(content))
			}
			out[i] = content[id.Offset:end]
		} else {
			out[i] = content
		}
	}

	return out, nil
}

// DeleteObject removes a local cache entry for id. The blob store is
// immutable, so this never removes canonical data, only the local copy.
func (s *Store) DeleteObject(id contentid.ContentId) error {
	cacheIndex, err := s.loadCacheIndex()
	if err != nil {
		return err
	}
	sha256, ok := cacheIndex.SHA256(id.BlobID)
	if !ok {
		return nil
	}
	return s.cache.DeleteObject(contentid.Legacy(sha256))
}

// ObjectExists reports whether id is known to the local cache index. This
// mirrors the upstream behavior of never querying the ledger for
// existence, which means an object uploaded from a different cache
// directory will report as absent even though it really exists on the
// network.
func (s *Store) ObjectExists(id contentid.ContentId) (bool, error) {
	cacheIndex, err := s.loadCacheIndex()
	if err != nil {
		return false, err
	}
	return cacheIndex.ContainsObject(id.BlobID), nil
}

// ReadState reads refs from the ledger's ref table and, if an objects map
// blob has been recorded, downloads and decodes it.
func (s *Store) ReadState() (state.State, error) {
	ctx := context.Background()

	refs, err := s.ledger.ReadRefs(ctx)
	if err != nil {
		return state.State{}, fmt.Errorf("failed to read refs from ledger: %w", err)
	}

	objectsBlobObjectID, err := s.ledger.GetObjectsBlobObjectID(ctx)
	if err != nil {
		return state.State{}, fmt.Errorf("failed to get objects blob pointer: %w", err)
	}

	st := state.New()
	for k, v := range refs {
		st.Refs[k] = v
	}

	if objectsBlobObjectID != "" {
		status, err := s.ledger.GetSharedBlobStatus(ctx, objectsBlobObjectID)
		if err != nil {
			return state.State{}, fmt.Errorf("failed to resolve objects map blob: %w", err)
		}
		objectsYAML, err := s.blobs.Read(status.BlobID)
		if err != nil {
			return state.State{}, fmt.Errorf("failed to download objects map: %w", err)
		}
		var objects map[string]contentid.ContentId
		if err := yaml.Unmarshal(objectsYAML, &objects); err != nil {
			return state.State{}, fmt.Errorf("failed to parse objects map: %w", err)
		}
		for k, v := range objects {
			st.Objects[k] = v
		}
	}

	return st, nil
}

// WriteState uploads the objects map and atomically updates refs and the
// objects pointer on the ledger, serialized by the ledger's write lock.
func (s *Store) WriteState(st state.State) error {
	s.checkBlobExpiration()

	ctx := context.Background()

	if err := s.ledger.AcquireLock(ctx, lockTimeoutMs); err != nil {
		return fmt.Errorf("failed to acquire write lock: %w", err)
	}

	objectsYAML, err := yaml.Marshal(st.Objects)
	if err != nil {
		return fmt.Errorf("failed to serialize objects map: %w", err)
	}

	blobInfo, err := s.blobs.StoreWithEpochs(objectsYAML, s.cfg.DefaultEpochs)
	if err != nil {
		return fmt.Errorf("failed to upload objects map: %w", err)
	}

	if err := s.ledger.UpsertRefsAndUpdateObjects(ctx, st.Refs, blobInfo.SharedObjectID); err != nil {
		return fmt.Errorf("failed to update ledger state: %w", err)
	}

	return nil
}

// UpdateState reads the state, applies fn, and writes the result with
// WriteState. The ledger's write lock is taken inside WriteState, after the
// read, so it serializes the write but does not cover the read.
func (s *Store) UpdateState(fn func(*state.State) error) error {
	st, err := s.ReadState()
	if err != nil {
		return err
	}
	if err := fn(&st); err != nil {
		return err
	}
	return s.WriteState(st)
}
