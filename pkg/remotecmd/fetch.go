package remotecmd

import (
	"fmt"
	"io"

	"github.com/wbbradley/git-remote-walrus/pkg/log"
	"github.com/wbbradley/git-remote-walrus/pkg/packtransfer"
	"github.com/wbbradley/git-remote-walrus/pkg/storage"
)

// Fetch builds a pack covering every object the caller needs for refs and
// streams it directly to w, followed by a blank terminator line. This
// writes raw pack bytes to the same stream as protocol replies: the
// VCS client's own pack-indexer consumes them, not a line-based reader, so
// the blank line after the pack is the only textual reply this command
// produces.
func Fetch(w io.Writer, store storage.Backend, refs []string) error {
	log.Info(fmt.Sprintf("fetch requested for refs: %v", refs))

	if err := packtransfer.SendPack(refs, store, w); err != nil {
		return fmt.Errorf("failed to send pack: %w", err)
	}

	if _, err := fmt.Fprintln(w); err != nil {
		return fmt.Errorf("failed to write fetch terminator: %w", err)
	}

	log.Info("fetch completed")
	return nil
}
