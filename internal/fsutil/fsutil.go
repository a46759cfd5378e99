// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package fsutil writes downloaded documents into the destination
// directory: chunked streaming to a temp file, rename on success, and the
// filename rules shared by every strategy.
package fsutil

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ChunkSize is the buffer used when streaming a body to disk.
const ChunkSize = 64 * 1024

// DefaultFileName is used when neither the response nor the URL yields a name.
const DefaultFileName = "document.pdf"

// FilesystemError reports that the destination directory could not be
// created or a file in it could not be written.
type FilesystemError struct {
	Op   string
	Path string
	Err  error
}

func (e *FilesystemError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FilesystemError) Unwrap() error { return e.Err }

// EnsureDir creates dir and its parents.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &FilesystemError{Op: "creating directory", Path: dir, Err: err}
	}
	return nil
}

// WriteStream copies r into destPath through a temporary file in the same
// directory, renaming it into place only after the copy succeeded. Reads
// that return no bytes are skipped. It returns the number of bytes written.
func WriteStream(destPath string, r io.Reader) (int64, error) {
	dir := filepath.Dir(destPath)
	if err := EnsureDir(dir); err != nil {
		return 0, err
	}

	tmpFile, err := os.CreateTemp(dir, ".harvest-*.tmp")
	if err != nil {
		return 0, &FilesystemError{Op: "creating temp file", Path: dir, Err: err}
	}
	tmpPath := tmpFile.Name()

	n, copyErr := copyChunks(tmpFile, r)
	closeErr := tmpFile.Close()
	if copyErr != nil {
		os.Remove(tmpPath)
		return 0, copyErr
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return 0, &FilesystemError{Op: "closing temp file", Path: tmpPath, Err: closeErr}
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return 0, &FilesystemError{Op: "renaming temp file", Path: destPath, Err: err}
	}
	return n, nil
}

// WriteBytes is WriteStream for a body already held in memory.
func WriteBytes(destPath string, data []byte) (int64, error) {
	return WriteStream(destPath, bytes.NewReader(data))
}

// copyChunks reads r in ChunkSize pieces. Write errors are filesystem
// errors; read errors are returned as they are so callers can tell a
// dropped connection from a full disk.
func copyChunks(w io.Writer, r io.Reader) (int64, error) {
	buf := make([]byte, ChunkSize)
	var total int64
	for {
		n, rerr := r.Read(buf)
		if n > 0 {
			written, werr := w.Write(buf[:n])
			total += int64(written)
			if werr != nil {
				return total, &FilesystemError{Op: "writing", Path: fileName(w), Err: werr}
			}
		}
		if errors.Is(rerr, io.EOF) {
			return total, nil
		}
		if rerr != nil {
			return total, fmt.Errorf("reading body: %w", rerr)
		}
	}
}

func fileName(w io.Writer) string {
	if f, ok := w.(*os.File); ok {
		return f.Name()
	}
	return ""
}

// EnsurePDFSuffix appends ".pdf" unless name already ends with it in any case.
func EnsurePDFSuffix(name string) string {
	if strings.HasSuffix(strings.ToLower(name), ".pdf") {
		return name
	}
	return name + ".pdf"
}

// CleanName reduces name to a single path element safe to join with the
// destination directory. It returns "" when nothing usable remains.
func CleanName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(strings.TrimSpace(name))
	name = strings.Map(func(r rune) rune {
		if r < 0x20 || strings.ContainsRune(`<>:"|?*`, r) {
			return '_'
		}
		return r
	}, name)
	name = strings.Trim(name, " .")
	if name == "" || name == "/" {
		return ""
	}
	return name
}

// NameFromURLPath returns the percent-decoded basename of the URL path,
// with ".pdf" enforced, or "" when the path has no basename.
func NameFromURLPath(u *url.URL) string {
	if u == nil {
		return ""
	}
	p := u.EscapedPath()
	if p == "" || strings.HasSuffix(p, "/") {
		return ""
	}
	base := path.Base(p)
	if decoded, err := url.PathUnescape(base); err == nil {
		base = decoded
	}
	base = CleanName(base)
	if base == "" {
		return ""
	}
	return EnsurePDFSuffix(base)
}
