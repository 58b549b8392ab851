// Package remotecmd implements the four remote-helper command handlers
// (capabilities, list, fetch, push) the protocol engine dispatches to.
package remotecmd

import (
	"fmt"
	"io"
)

// Capabilities emits the static capability advertisement: fetch/push
// support and the two blanket refspecs, terminated by a blank line. No
// part of this is dynamic.
func Capabilities(w io.Writer) error {
	for _, line := range []string{
		"fetch",
		"push",
		"refspec refs/heads/*:refs/heads/*",
		"refspec refs/tags/*:refs/tags/*",
		"",
	} {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return fmt.Errorf("failed to write capabilities: %w", err)
		}
	}
	return nil
}
