// Package gitobj implements the native "loose object" encoding: a one-line
// "<type> <size>\0" header followed by the object's raw payload, zlib
// compressed when stored on disk, keyed by the SHA-1 hash of header+payload.
//
// This is not a reimplementation of the pack format — the external
// pack-objects/unpack-objects tools own that — it is the minimal shim
// needed to feed and drain them.
package gitobj

import (
	"bytes"
	"compress/zlib"
	"crypto/sha1"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Kind is the object type named in a loose-object header.
type Kind string

const (
	KindCommit Kind = "commit"
	KindTree   Kind = "tree"
	KindBlob   Kind = "blob"
	KindTag    Kind = "tag"
)

// ObjectId is a 40-hex-character SHA-1 object identifier.
type ObjectId = string

// Object is a single versioned object: its id, type, and payload (without
// the loose-object header).
type Object struct {
	ID   ObjectId
	Kind Kind
	Data []byte
}

// FromRaw builds an Object from its type and payload, computing the id.
func FromRaw(kind Kind, data []byte) Object {
	return Object{ID: computeObjectID(kind, data), Kind: kind, Data: data}
}

// FromLooseFormat parses "<type> <size>\0<payload>" into an Object,
// computing its id from the type and payload. The declared size is not
// checked against the payload length — the caller trusts the content it
// just decompressed from a git-produced loose object file.
func FromLooseFormat(content []byte) (Object, error) {
	nullPos := bytes.IndexByte(content, 0)
	if nullPos < 0 {
		return Object{}, fmt.Errorf("no null terminator in object header")
	}
	var kindStr string
	var size int
	if _, err := fmt.Sscanf(string(content[:nullPos]), "%s %d", &kindStr, &size); err != nil {
		return Object{}, fmt.Errorf("invalid object header %q: %w", content[:nullPos], err)
	}
	kind, err := parseKind(kindStr)
	if err != nil {
		return Object{}, err
	}
	data := content[nullPos+1:]
	return Object{ID: computeObjectID(kind, data), Kind: kind, Data: data}, nil
}

// ToLooseFormat serializes the object with its header, uncompressed.
func (o Object) ToLooseFormat() []byte {
	header := fmt.Sprintf("%s %d\x00", o.Kind, len(o.Data))
	out := make([]byte, 0, len(header)+len(o.Data))
	out = append(out, header...)
	out = append(out, o.Data...)
	return out
}

func parseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindCommit, KindTree, KindBlob, KindTag:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("unknown object type: %s", s)
	}
}

func computeObjectID(kind Kind, data []byte) ObjectId {
	header := fmt.Sprintf("%s %d\x00", kind, len(data))
	h := sha1.New()
	h.Write([]byte(header))
	h.Write(data)
	return fmt.Sprintf("%x", h.Sum(nil))
}

// ReadLoose reads and decompresses a loose object file from path.
func ReadLoose(path string) (Object, error) {
	f, err := os.Open(path)
	if err != nil {
		return Object{}, fmt.Errorf("failed to open object file %s: %w", path, err)
	}
	defer f.Close()

	zr, err := zlib.NewReader(f)
	if err != nil {
		return Object{}, fmt.Errorf("failed to decompress object %s: %w", path, err)
	}
	defer zr.Close()

	content, err := io.ReadAll(zr)
	if err != nil {
		return Object{}, fmt.Errorf("failed to decompress object %s: %w", path, err)
	}
	return FromLooseFormat(content)
}

// WriteLoose writes obj as a zlib-compressed loose object under
// basePath/<first-two-hex>/<remaining-hex>, creating intermediate
// directories as needed, and returns the path written.
func WriteLoose(obj Object, basePath string) (string, error) {
	if len(obj.ID) < 2 {
		return "", fmt.Errorf("object id too short: %q", obj.ID)
	}
	dir, file := obj.ID[:2], obj.ID[2:]
	objDir := filepath.Join(basePath, dir)
	if err := os.MkdirAll(objDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create object directory %s: %w", objDir, err)
	}

	objPath := filepath.Join(objDir, file)
	f, err := os.Create(objPath)
	if err != nil {
		return "", fmt.Errorf("failed to create object file %s: %w", objPath, err)
	}
	defer f.Close()

	zw := zlib.NewWriter(f)
	if _, err := zw.Write(obj.ToLooseFormat()); err != nil {
		zw.Close()
		return "", fmt.Errorf("failed to write compressed object: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("failed to finish compression: %w", err)
	}
	return objPath, nil
}
