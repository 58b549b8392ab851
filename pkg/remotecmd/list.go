package remotecmd

import (
	"fmt"
	"io"

	"github.com/wbbradley/git-remote-walrus/pkg/storage"
)

// List reads state once and emits one line per ref as "<object-id>
// <ref-name>", followed by a "@<ref> HEAD" pointer line (preferring
// refs/heads/main, falling back to the first ref in sorted order) and a
// blank terminator. forPush is accepted for protocol-shape parity with the
// "list for-push" variant but does not change the output: both directions
// need the same ref table.
func List(w io.Writer, store storage.MutableStateStore, forPush bool) error {
	_ = forPush

	st, err := store.ReadState()
	if err != nil {
		return fmt.Errorf("failed to read state: %w", err)
	}

	for _, name := range st.SortedRefNames() {
		if _, err := fmt.Fprintf(w, "%s %s\n", st.Refs[name], name); err != nil {
			return fmt.Errorf("failed to write ref line: %w", err)
		}
	}

	names := st.SortedRefNames()
	switch {
	case st.Refs["refs/heads/main"] != "":
		if _, err := fmt.Fprintln(w, "@refs/heads/main HEAD"); err != nil {
			return fmt.Errorf("failed to write HEAD pointer: %w", err)
		}
	case len(names) > 0:
		if _, err := fmt.Fprintf(w, "@%s HEAD\n", names[0]); err != nil {
			return fmt.Errorf("failed to write HEAD pointer: %w", err)
		}
	}

	if _, err := fmt.Fprintln(w); err != nil {
		return fmt.Errorf("failed to write list terminator: %w", err)
	}
	return nil
}
