// Package fsutil implements the atomic-write-then-rename pattern vecdb's
// two durable file formats both depend on: the registry snapshot
// (persistence/snapshot.go) and the WAL's checkpoint rewrite
// (walpkg/wal.go). Both need the same guarantee — a reader never
// observes a half-written file — so the temp-file/fsync/rename/dir-fsync
// sequence lives here once instead of twice.
package fsutil

import (
	"bufio"
	"os"
	"path/filepath"
)

const bufferSize = 256 * 1024

// WriteAtomic writes the content produced by writeFunc to filename
// atomically: the content lands in a temp file in the same directory,
// is fsynced, then renamed over the target, and the directory itself is
// fsynced so the rename survives a crash on POSIX filesystems. A reader
// opening filename either sees the previous complete content or the new
// complete content, never a partial write.
func WriteAtomic(filename string, writeFunc func(*bufio.Writer) error) error {
	dir := filepath.Dir(filename)
	base := filepath.Base(filename)

	tmp, err := os.CreateTemp(dir, base+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	_ = tmp.Chmod(0o644)

	buf := bufio.NewWriterSize(tmp, bufferSize)
	if err := writeFunc(buf); err != nil {
		return err
	}
	if err := buf.Flush(); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Rename(tmpName, filename); err != nil {
		return err
	}

	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}

	tmpName = ""
	return nil
}

// ReadBuffered opens filename and streams it through readFunc via a
// buffered reader.
func ReadBuffered(filename string, readFunc func(*bufio.Reader) error) error {
	f, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	buf := bufio.NewReaderSize(f, bufferSize)
	return readFunc(buf)
}
