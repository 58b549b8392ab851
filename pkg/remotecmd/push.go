package remotecmd

import (
	"fmt"
	"io"

	"github.com/wbbradley/git-remote-walrus/pkg/log"
	"github.com/wbbradley/git-remote-walrus/pkg/packtransfer"
	"github.com/wbbradley/git-remote-walrus/pkg/state"
	"github.com/wbbradley/git-remote-walrus/pkg/storage"
)

// RefUpdate is one parsed "<src>:<dst>" push spec.
type RefUpdate struct {
	Src string
	Dst string
}

// Push receives a packfile from packStream, unpacks and stores its objects,
// resolves each update's head commit against the unpacked scratch
// repository, and atomically records the new objects and refs. It writes
// "ok <dst>" per accepted update followed by a blank terminator.
func Push(w io.Writer, packStream io.Reader, store storage.Backend, updates []RefUpdate) error {
	if len(updates) == 0 {
		log.Info("no refs to push")
		_, err := fmt.Fprintln(w)
		return err
	}

	log.Info("receiving packfile")
	received, err := packtransfer.ReceivePack(packStream, store)
	if err != nil {
		return fmt.Errorf("failed to receive pack: %w", err)
	}
	defer received.Close()

	log.Info(fmt.Sprintf("stored %d objects", len(received.Mappings)))

	heads := make(map[string]string, len(updates))
	for _, u := range updates {
		head, err := received.ResolveRef(u.Src)
		if err != nil {
			return fmt.Errorf("failed to resolve push source %q: %w", u.Src, err)
		}
		heads[u.Dst] = head
	}

	if err := store.UpdateState(func(st *state.State) error {
		for _, m := range received.Mappings {
			st.Objects[m.ObjectID] = m.ContentID
		}
		for dst, head := range heads {
			st.Refs[dst] = head
			log.Info(fmt.Sprintf("updated ref %s to %s", dst, head))
		}
		return nil
	}); err != nil {
		return fmt.Errorf("failed to update state: %w", err)
	}

	for _, u := range updates {
		if _, err := fmt.Fprintf(w, "ok %s\n", u.Dst); err != nil {
			return fmt.Errorf("failed to write push reply: %w", err)
		}
	}

	if _, err := fmt.Fprintln(w); err != nil {
		return fmt.Errorf("failed to write push terminator: %w", err)
	}

	log.Info("push completed")
	return nil
}
