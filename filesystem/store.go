// Package filesystem provides the local file system backend for xupload.
// Objects are written with exclusive creates through an *os.Root, so paths
// (and symlinks) can never reach outside the data root, and eviction removes
// whole collection directories.
package filesystem

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"syscall"

	"github.com/sagarc03/xupload"
)

const (
	chunkSize = 4 << 10
	dirMode   = 0o770
	fileMode  = 0o660
)

// Store provides object storage operations on a local directory tree.
type Store struct {
	root *os.Root
}

// NewFileStorage creates a new Store with the given root directory.
// The root provides sandboxed file operations preventing path traversal.
func NewFileStorage(root *os.Root) *Store {
	return &Store{root: root}
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (r *ctxReader) Read(p []byte) (n int, err error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}

// Create writes the data artifact and then the metadata artifact of loc.
// Both are created exclusively; if anything fails after the data file was
// created, it is removed again before the error is returned.
func (s *Store) Create(ctx context.Context, loc xupload.Location, contentType string, length int64, body io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if dir := filepath.Dir(loc.Rel); dir != "." {
		if err := s.root.MkdirAll(dir, dirMode); err != nil {
			if outsideRoot(err) {
				return fmt.Errorf("create object: %s: %w", dir, xupload.ErrInvalidPath)
			}
			return fmt.Errorf("create object: could not create directories: %w", err)
		}
	}

	dataName := loc.DataName()
	f, err := s.root.OpenFile(dataName, os.O_WRONLY|os.O_CREATE|os.O_EXCL, fileMode)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("create object: %s exists: %w", dataName, xupload.ErrConflict)
		}
		if outsideRoot(err) {
			return fmt.Errorf("create object: %s: %w", dataName, xupload.ErrInvalidPath)
		}
		return fmt.Errorf("create object: could not open data file: %w", err)
	}

	success := false
	defer func() {
		if success {
			return
		}
		if rmErr := s.root.Remove(dataName); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			slog.Warn("failed to remove partial data file", "path", dataName, "err", rmErr)
		}
	}()

	if err := writeData(ctx, f, body, length); err != nil {
		return fmt.Errorf("create object: %w", err)
	}

	if err := s.writeMetadata(loc.MetaName(), xupload.NewMetadata(contentType)); err != nil {
		return fmt.Errorf("create object: %w", err)
	}

	success = true
	return nil
}

// writeData streams length bytes into f, syncs and closes it.
// f is closed on every path.
func writeData(ctx context.Context, f *os.File, body io.Reader, length int64) (err error) {
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("could not close data file: %w", closeErr)
		}
	}()

	if _, err := copyExact(f, &ctxReader{ctx: ctx, r: body}, length); err != nil {
		return err
	}

	if err := f.Sync(); err != nil {
		return fmt.Errorf("could not sync data file: %w", err)
	}
	return nil
}

func (s *Store) writeMetadata(name string, meta xupload.Metadata) (err error) {
	f, err := s.root.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, fileMode)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%s exists: %w", name, xupload.ErrConflict)
		}
		return fmt.Errorf("could not open metadata file: %w", err)
	}

	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("could not close metadata file: %w", closeErr)
		}
		if err != nil {
			if rmErr := s.root.Remove(name); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
				slog.Warn("failed to remove metadata file", "path", name, "err", rmErr)
			}
		}
	}()

	if err := json.NewEncoder(f).Encode(meta); err != nil {
		return fmt.Errorf("could not write metadata: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("could not sync metadata file: %w", err)
	}
	return nil
}

// copyExact copies exactly n bytes from src to dst in chunkSize pieces.
// Running out of input, or any read error, is reported as ErrTruncatedUpload;
// write errors are returned as they are.
func copyExact(dst io.Writer, src io.Reader, n int64) (int64, error) {
	buf := make([]byte, chunkSize)
	var written int64
	idle := 0

	for written < n {
		want := min(int64(len(buf)), n-written)
		nr, rerr := src.Read(buf[:want])
		if nr > 0 {
			idle = 0
			nw, werr := dst.Write(buf[:nr])
			written += int64(nw)
			if werr != nil {
				return written, fmt.Errorf("could not write data: %w", werr)
			}
			if nw != nr {
				return written, fmt.Errorf("could not write data: %w", io.ErrShortWrite)
			}
		}

		if rerr != nil {
			if written < n {
				return written, fmt.Errorf("%w: got %d of %d bytes: %w", xupload.ErrTruncatedUpload, written, n, rerr)
			}
			break
		}

		if nr == 0 {
			idle++
			if idle >= 100 {
				return written, fmt.Errorf("%w: %w", xupload.ErrTruncatedUpload, io.ErrNoProgress)
			}
		}
	}

	return written, nil
}

// Open opens the object at loc. Any failure to read either artifact is
// reported as xupload.ErrNotFound, so callers cannot tell a missing object
// from one the root refuses to reach.
func (s *Store) Open(ctx context.Context, loc xupload.Location) (xupload.Object, error) {
	obj, err := s.Stat(ctx, loc)
	if err != nil {
		return xupload.Object{}, err
	}

	f, err := s.root.Open(loc.DataName())
	if err != nil {
		return xupload.Object{}, notFound(loc.DataName(), err)
	}

	obj.Content = f
	return obj, nil
}

// Stat loads the metadata of loc and the size of its data artifact.
func (s *Store) Stat(ctx context.Context, loc xupload.Location) (xupload.Object, error) {
	if err := ctx.Err(); err != nil {
		return xupload.Object{}, err
	}

	meta, err := s.loadMetadata(loc.MetaName())
	if err != nil {
		return xupload.Object{}, err
	}

	info, err := s.root.Stat(loc.DataName())
	if err != nil {
		return xupload.Object{}, notFound(loc.DataName(), err)
	}
	if !info.Mode().IsRegular() {
		return xupload.Object{}, xupload.ErrNotFound
	}

	return xupload.Object{
		Location: loc,
		Metadata: meta,
		Size:     info.Size(),
		ModTime:  info.ModTime(),
	}, nil
}

func (s *Store) loadMetadata(name string) (xupload.Metadata, error) {
	data, err := s.root.ReadFile(name)
	if err != nil {
		return xupload.Metadata{}, notFound(name, err)
	}

	var meta xupload.Metadata
	if err := json.Unmarshal(data, &meta); err != nil || meta.Headers == nil {
		return xupload.Metadata{}, xupload.ErrNotFound
	}
	return meta, nil
}

// notFound reports a read failure on an artifact as xupload.ErrNotFound.
// Failures other than plain absence (root escapes, symlink loops,
// permissions) are only visible in debug logs.
func notFound(name string, err error) error {
	if !errors.Is(err, fs.ErrNotExist) && !errors.Is(err, syscall.ENOTDIR) {
		slog.Debug("artifact unreadable, reporting not found", "path", name, "err", err)
	}
	return xupload.ErrNotFound
}

// pathEscapesMsg is the message of the unexported error os.Root returns
// when a path, usually through a symlink, leads outside the root.
const pathEscapesMsg = "path escapes from parent"

// outsideRoot reports write errors caused by the path itself rather than the
// disk: a component that escapes the root, a symlink loop, or a component
// that exists but is not a directory. MkdirAll fails with EEXIST on a
// symlink that points outside the root.
func outsideRoot(err error) bool {
	if errors.Is(err, fs.ErrExist) || errors.Is(err, syscall.ENOTDIR) || errors.Is(err, syscall.ELOOP) {
		return true
	}
	var pe *fs.PathError
	return errors.As(err, &pe) && pe.Err != nil && pe.Err.Error() == pathEscapesMsg
}
