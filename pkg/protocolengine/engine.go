// Package protocolengine implements the remote-helper command loop: a
// single-threaded, line-oriented read-eval-reply dispatcher running on the
// process's standard streams.
package protocolengine

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/wbbradley/git-remote-walrus/pkg/log"
	"github.com/wbbradley/git-remote-walrus/pkg/remotecmd"
	"github.com/wbbradley/git-remote-walrus/pkg/storage"
)

// Run reads commands from in, dispatches them against store, and writes
// replies to out, until end-of-input or a top-level blank line. Any
// handler error is fatal and returned to the caller, which is expected to
// log it to stderr and exit non-zero.
//
// in is wrapped in a single bufio.Reader for the entire loop's lifetime:
// when a push batch ends, the pack bytes that follow immediately are read
// off the same buffered reader, picking up right where line-tokenization
// left off rather than from a second, independent read of in.
func Run(in io.Reader, out io.Writer, store storage.Backend) error {
	reader := bufio.NewReader(in)
	writer := bufio.NewWriter(out)

	for {
		line, err := readLine(reader)
		if err == io.EOF && line == "" {
			return nil
		}
		if err != nil && err != io.EOF {
			return fmt.Errorf("failed to read command: %w", err)
		}

		log.Info(fmt.Sprintf("received command: %s", line))

		fields := strings.Fields(line)
		if len(fields) == 0 {
			return nil
		}

		switch fields[0] {
		case "capabilities":
			if err := remotecmd.Capabilities(writer); err != nil {
				return err
			}
		case "list":
			forPush := len(fields) > 1 && fields[1] == "for-push"
			if err := remotecmd.List(writer, store, forPush); err != nil {
				return err
			}
		case "fetch":
			refs, err := collectFetchRefs(reader, fields)
			if err != nil {
				return err
			}
			if err := remotecmd.Fetch(writer, store, refs); err != nil {
				return err
			}
		case "push":
			updates, err := collectPushUpdates(reader, fields)
			if err != nil {
				return err
			}
			if err := remotecmd.Push(writer, reader, store, updates); err != nil {
				return err
			}
		default:
			log.Warn(fmt.Sprintf("unknown command: %s", fields[0]))
		}

		if err := writer.Flush(); err != nil {
			return fmt.Errorf("failed to flush output: %w", err)
		}
	}
}

// readLine reads one line with its trailing newline stripped. It returns
// io.EOF alongside a non-empty line when the stream ends without a final
// newline, and alongside an empty line when the stream is simply
// exhausted.
func readLine(reader *bufio.Reader) (string, error) {
	line, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	trimmed := strings.TrimRight(line, "\r\n")
	if trimmed == "" && err == io.EOF {
		return "", io.EOF
	}
	return trimmed, err
}

// collectFetchRefs parses the ref-name from firstFields (a "fetch
// <object-id> <ref-name>" line already split) and then reads subsequent
// "fetch ..." lines until a blank line, collecting each one's ref-name in
// order, deduplicated.
func collectFetchRefs(reader *bufio.Reader, firstFields []string) ([]string, error) {
	var refs []string
	seen := make(map[string]bool)

	addRef := func(fields []string) {
		if len(fields) < 3 {
			return
		}
		ref := fields[2]
		if !seen[ref] {
			seen[ref] = true
			refs = append(refs, ref)
		}
	}
	addRef(firstFields)

	for {
		line, err := readLine(reader)
		if err != nil && err != io.EOF {
			return nil, fmt.Errorf("failed to read fetch batch: %w", err)
		}
		if line == "" {
			return refs, nil
		}
		fields := strings.Fields(line)
		if len(fields) == 0 || fields[0] != "fetch" {
			if err == io.EOF {
				return refs, nil
			}
			continue
		}
		addRef(fields)
		if err == io.EOF {
			return refs, nil
		}
	}
}

// collectPushUpdates parses the "<src>:<dst>" spec from firstFields (a
// "push <src>:<dst>" line already split) and then reads subsequent "push
// ..." lines until a blank line, collecting each update in order.
func collectPushUpdates(reader *bufio.Reader, firstFields []string) ([]remotecmd.RefUpdate, error) {
	var updates []remotecmd.RefUpdate

	addUpdate := func(fields []string) {
		if len(fields) < 2 {
			return
		}
		parts := strings.SplitN(fields[1], ":", 2)
		if len(parts) != 2 {
			return
		}
		updates = append(updates, remotecmd.RefUpdate{Src: parts[0], Dst: parts[1]})
	}
	addUpdate(firstFields)

	for {
		line, err := readLine(reader)
		if err != nil && err != io.EOF {
			return nil, fmt.Errorf("failed to read push batch: %w", err)
		}
		if line == "" {
			return updates, nil
		}
		fields := strings.Fields(line)
		if len(fields) == 0 || fields[0] != "push" {
			if err == io.EOF {
				return updates, nil
			}
			continue
		}
		addUpdate(fields)
		if err == io.EOF {
			return updates, nil
		}
	}
}
