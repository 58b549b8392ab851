package packtransfer

import (
	"bytes"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/wbbradley/git-remote-walrus/pkg/contentid"
	"github.com/wbbradley/git-remote-walrus/pkg/gitobj"
	"github.com/wbbradley/git-remote-walrus/pkg/log"
	"github.com/wbbradley/git-remote-walrus/pkg/storage"
)

// ObjectMapping records that a git object-id was stored under a given
// content-id.
type ObjectMapping struct {
	ObjectID  gitobj.ObjectId
	ContentID contentid.ContentId
}

// ReceivedPack is the result of unpacking an inbound packfile: the object
// mappings that were written to the store, plus the still-live scratch
// repository `git unpack-objects` populated, kept around so the caller can
// resolve each pushed ref's head commit against it via ResolveRef. The
// caller must call Close once it is done resolving refs.
type ReceivedPack struct {
	Mappings []ObjectMapping
	scratch  *scratchRepo
}

// Close removes the scratch repository backing this ReceivedPack.
func (p *ReceivedPack) Close() error {
	return p.scratch.Close()
}

// ResolveRef runs `git rev-parse ref` against the scratch repository that
// received this pack, resolving a push source ref to the object-id it
// names. A raw object-id src is returned as rev-parse prints it.
// `git unpack-objects` creates no refs, so a named ref (or HEAD) does not
// resolve there; in that case the single commit that `git fsck` reports as
// dangling (no other unpacked commit or tag points to it) is returned.
// When the pack holds zero or several such commits, a named ref is an
// error.
func (p *ReceivedPack) ResolveRef(ref string) (string, error) {
	cmd := exec.Command("git", "--git-dir", p.scratch.gitDir, "rev-parse", ref)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		fsck := exec.Command("git", "--git-dir", p.scratch.gitDir, "fsck", "--no-progress")
		fsckOut, _ := fsck.Output()
		var tips []string
		for _, line := range strings.Split(string(fsckOut), "\n") {
			if id, ok := strings.CutPrefix(line, "dangling commit "); ok {
				tips = append(tips, strings.TrimSpace(id))
			}
		}
		if len(tips) == 1 {
			return tips[0], nil
		}
		return "", fmt.Errorf("git rev-parse %s failed: %w (%s)", ref, err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(stdout.String()), nil
}

// ReceivePack reads a packfile from packStream to completion, unpacks it
// into loose objects via `git unpack-objects` in a disposable scratch
// repository, and stores all resulting objects as a single batched write.
// The returned ReceivedPack's scratch repository stays alive until Close is
// called, so callers can still resolve push refspecs against it.
func ReceivePack(packStream io.Reader, store storage.ImmutableStore) (*ReceivedPack, error) {
	scratch, err := newScratchRepo()
	if err != nil {
		return nil, err
	}

	packData, err := io.ReadAll(packStream)
	if err != nil {
		scratch.Close()
		return nil, fmt.Errorf("failed to read packfile from stdin: %w", err)
	}
	log.Info(fmt.Sprintf("received pack of %d bytes", len(packData)))

	cmd := exec.Command("git", "--git-dir", scratch.gitDir, "unpack-objects")
	cmd.Stdin = bytes.NewReader(packData)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		scratch.Close()
		return nil, fmt.Errorf(
			"git unpack-objects failed: %w (stdout: %s, stderr: %s)",
			err, stdout.String(), strings.TrimSpace(stderr.String()),
		)
	}
	log.Info(fmt.Sprintf("git unpack-objects: %s", strings.TrimSpace(stderr.String())))

	paths, err := collectLooseObjectPaths(scratch.objectsDir())
	if err != nil {
		scratch.Close()
		return nil, err
	}

	objects := make([]gitobj.Object, 0, len(paths))
	for _, path := range paths {
		obj, err := gitobj.ReadLoose(path)
		if err != nil {
			log.Warn(fmt.Sprintf("failed to read loose object %s: %v", path, err))
			continue
		}
		objects = append(objects, obj)
	}
	log.Info(fmt.Sprintf("unpacked %d objects", len(objects)))

	contents := make([][]byte, len(objects))
	for i, obj := range objects {
		contents[i] = obj.ToLooseFormat()
	}

	contentIDs, err := store.WriteObjects(contents)
	if err != nil {
		scratch.Close()
		return nil, fmt.Errorf("failed to store unpacked objects: %w", err)
	}

	mappings := make([]ObjectMapping, len(objects))
	for i, obj := range objects {
		mappings[i] = ObjectMapping{ObjectID: obj.ID, ContentID: contentIDs[i]}
		log.Info(fmt.Sprintf("stored object %s -> %s", obj.ID, contentIDs[i]))
	}

	return &ReceivedPack{Mappings: mappings, scratch: scratch}, nil
}
