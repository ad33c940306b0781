package filesystem_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"testing/iotest"

	"github.com/sagarc03/xupload"
	"github.com/sagarc03/xupload/filesystem"
	xuploadhttp "github.com/sagarc03/xupload/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) (*filesystem.Store, *xupload.Resolver, string) {
	t.Helper()
	tempDir := t.TempDir()

	root, err := os.OpenRoot(tempDir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = root.Close() })

	resolver, err := xupload.NewResolver(tempDir)
	require.NoError(t, err)

	return filesystem.NewFileStorage(root), resolver, tempDir
}

func resolve(t *testing.T, r *xupload.Resolver, p string) xupload.Location {
	t.Helper()
	loc, err := r.Resolve(p)
	require.NoError(t, err)
	return loc
}

func TestStore_Create_Success(t *testing.T) {
	store, resolver, tempDir := newStore(t)
	loc := resolve(t, resolver, "abc/f.txt")

	err := store.Create(context.Background(), loc, "text/plain", 5, strings.NewReader("hello"))
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(tempDir, "abc", "f.txt.data"))
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)

	raw, err := os.ReadFile(filepath.Join(tempDir, "abc", "f.txt.meta"))
	require.NoError(t, err)

	var meta map[string]map[string]string
	require.NoError(t, json.Unmarshal(raw, &meta))
	assert.Equal(t, map[string]map[string]string{
		"headers": {"Content-Type": "text/plain"},
	}, meta)
}

func TestStore_Create_DefaultContentType(t *testing.T) {
	store, resolver, _ := newStore(t)
	loc := resolve(t, resolver, "abc/blob")

	err := store.Create(context.Background(), loc, "", 3, strings.NewReader("abc"))
	require.NoError(t, err)

	obj, err := store.Stat(context.Background(), loc)
	require.NoError(t, err)
	assert.Equal(t, xupload.DefaultContentType, obj.Metadata.ContentType())
}

func TestStore_Create_CreatesDirectories(t *testing.T) {
	store, resolver, tempDir := newStore(t)
	loc := resolve(t, resolver, "a/b/c/file.bin")

	err := store.Create(context.Background(), loc, "", 1, strings.NewReader("x"))
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(tempDir, "a", "b", "c"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestStore_Create_ZeroLength(t *testing.T) {
	store, resolver, tempDir := newStore(t)
	loc := resolve(t, resolver, "abc/empty")

	err := store.Create(context.Background(), loc, "", 0, strings.NewReader(""))
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(tempDir, "abc", "empty.data"))
	require.NoError(t, err)
	assert.Equal(t, int64(0), info.Size())
}

func TestStore_Create_IgnoresBytesBeyondLength(t *testing.T) {
	store, resolver, tempDir := newStore(t)
	loc := resolve(t, resolver, "abc/f")

	err := store.Create(context.Background(), loc, "", 3, strings.NewReader("abcdef"))
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(tempDir, "abc", "f.data"))
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), data)
}

func TestStore_Create_Conflict(t *testing.T) {
	store, resolver, tempDir := newStore(t)
	loc := resolve(t, resolver, "abc/f.txt")
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, loc, "text/plain", 5, strings.NewReader("hello")))

	err := store.Create(ctx, loc, "image/png", 5, strings.NewReader("world"))
	assert.ErrorIs(t, err, xupload.ErrConflict)

	data, err := os.ReadFile(filepath.Join(tempDir, "abc", "f.txt.data"))
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)

	obj, err := store.Stat(ctx, loc)
	require.NoError(t, err)
	assert.Equal(t, "text/plain", obj.Metadata.ContentType())
}

func TestStore_Create_MetadataConflictRollsBackData(t *testing.T) {
	store, resolver, tempDir := newStore(t)
	loc := resolve(t, resolver, "abc/f.txt")

	require.NoError(t, os.MkdirAll(filepath.Join(tempDir, "abc"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(tempDir, "abc", "f.txt.meta"), []byte("stale"), 0o644))

	err := store.Create(context.Background(), loc, "", 5, strings.NewReader("hello"))
	assert.ErrorIs(t, err, xupload.ErrConflict)

	assert.NoFileExists(t, filepath.Join(tempDir, "abc", "f.txt.data"))
	stale, err := os.ReadFile(filepath.Join(tempDir, "abc", "f.txt.meta"))
	require.NoError(t, err)
	assert.Equal(t, []byte("stale"), stale)
}

func TestStore_Create_Truncated(t *testing.T) {
	store, resolver, tempDir := newStore(t)
	loc := resolve(t, resolver, "abc/f.txt")

	err := store.Create(context.Background(), loc, "", 10, strings.NewReader("hello"))
	assert.ErrorIs(t, err, xupload.ErrTruncatedUpload)

	assert.NoFileExists(t, filepath.Join(tempDir, "abc", "f.txt.data"))
	assert.NoFileExists(t, filepath.Join(tempDir, "abc", "f.txt.meta"))
}

func TestStore_Create_ReadErrorIsTruncated(t *testing.T) {
	store, resolver, tempDir := newStore(t)
	loc := resolve(t, resolver, "abc/f.txt")

	body := io.MultiReader(strings.NewReader("hel"), iotest.ErrReader(errors.New("connection reset")))
	err := store.Create(context.Background(), loc, "", 5, body)
	assert.ErrorIs(t, err, xupload.ErrTruncatedUpload)

	assert.NoFileExists(t, filepath.Join(tempDir, "abc", "f.txt.data"))
	assert.NoFileExists(t, filepath.Join(tempDir, "abc", "f.txt.meta"))
}

func TestStore_Create_ContextCanceledDuringCopy(t *testing.T) {
	store, resolver, tempDir := newStore(t)
	loc := resolve(t, resolver, "abc/big")

	ctx, cancel := context.WithCancel(context.Background())
	body := &cancelingReader{data: bytes.Repeat([]byte("x"), 64<<10), cancel: cancel, after: 2}

	err := store.Create(ctx, loc, "", int64(len(body.data)), body)
	assert.ErrorIs(t, err, xupload.ErrTruncatedUpload)
	assert.ErrorIs(t, err, context.Canceled)

	assert.NoFileExists(t, filepath.Join(tempDir, "abc", "big.data"))
}

func TestStore_Create_ReadsInBoundedChunks(t *testing.T) {
	store, resolver, _ := newStore(t)
	loc := resolve(t, resolver, "abc/big")

	body := &sizeRecorder{r: bytes.NewReader(bytes.Repeat([]byte("y"), 100<<10))}
	err := store.Create(context.Background(), loc, "", 100<<10, body)
	require.NoError(t, err)

	assert.LessOrEqual(t, body.max, 4096)
	assert.Greater(t, body.calls, 1)
}

func TestStore_Create_ConcurrentSamePath(t *testing.T) {
	store, resolver, tempDir := newStore(t)
	loc := resolve(t, resolver, "abc/race")

	const writers = 8
	errs := make([]error, writers)
	var wg sync.WaitGroup
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = store.Create(context.Background(), loc, "", 4, strings.NewReader("data"))
		}()
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, xupload.ErrConflict)
	}
	assert.Equal(t, 1, succeeded)

	assert.FileExists(t, filepath.Join(tempDir, "abc", "race.data"))
	assert.FileExists(t, filepath.Join(tempDir, "abc", "race.meta"))
}

func TestStore_Open_Success(t *testing.T) {
	store, resolver, _ := newStore(t)
	loc := resolve(t, resolver, "abc/f.txt")
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, loc, "text/plain", 5, strings.NewReader("hello")))

	obj, err := store.Open(ctx, loc)
	require.NoError(t, err)
	defer func() { _ = obj.Content.Close() }()

	content, err := io.ReadAll(obj.Content)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), content)
	assert.Equal(t, int64(5), obj.Size)
	assert.Equal(t, "text/plain", obj.Metadata.ContentType())
	assert.False(t, obj.ModTime.IsZero())
}

func TestStore_Open_NotFound(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, dir string)
	}{
		{
			name:  "nothing stored",
			setup: func(t *testing.T, dir string) {},
		},
		{
			name: "data without metadata",
			setup: func(t *testing.T, dir string) {
				require.NoError(t, os.WriteFile(filepath.Join(dir, "abc", "f.data"), []byte("x"), 0o644))
			},
		},
		{
			name: "metadata without data",
			setup: func(t *testing.T, dir string) {
				require.NoError(t, os.WriteFile(filepath.Join(dir, "abc", "f.meta"), []byte(`{"headers":{}}`), 0o644))
			},
		},
		{
			name: "unparsable metadata",
			setup: func(t *testing.T, dir string) {
				require.NoError(t, os.WriteFile(filepath.Join(dir, "abc", "f.data"), []byte("x"), 0o644))
				require.NoError(t, os.WriteFile(filepath.Join(dir, "abc", "f.meta"), []byte(`{"head`), 0o644))
			},
		},
		{
			name: "metadata without headers",
			setup: func(t *testing.T, dir string) {
				require.NoError(t, os.WriteFile(filepath.Join(dir, "abc", "f.data"), []byte("x"), 0o644))
				require.NoError(t, os.WriteFile(filepath.Join(dir, "abc", "f.meta"), []byte(`{}`), 0o644))
			},
		},
		{
			name: "data is a directory",
			setup: func(t *testing.T, dir string) {
				require.NoError(t, os.Mkdir(filepath.Join(dir, "abc", "f.data"), 0o755))
				require.NoError(t, os.WriteFile(filepath.Join(dir, "abc", "f.meta"), []byte(`{"headers":{}}`), 0o644))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, resolver, tempDir := newStore(t)
			require.NoError(t, os.MkdirAll(filepath.Join(tempDir, "abc"), 0o755))
			tt.setup(t, tempDir)

			loc := resolve(t, resolver, "abc/f")

			_, err := store.Open(context.Background(), loc)
			assert.ErrorIs(t, err, xupload.ErrNotFound)

			_, err = store.Stat(context.Background(), loc)
			assert.ErrorIs(t, err, xupload.ErrNotFound)
		})
	}
}

func TestStore_Open_SymlinkOutsideRoot(t *testing.T) {
	store, resolver, tempDir := newStore(t)
	outside := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(outside, "secret.data"), []byte("secret"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(outside, "secret.meta"), []byte(`{"headers":{"Content-Type":"text/plain"}}`), 0o644))
	require.NoError(t, os.Symlink(outside, filepath.Join(tempDir, "link")))

	loc := resolve(t, resolver, "link/secret")

	obj, err := store.Open(context.Background(), loc)
	assert.ErrorIs(t, err, xupload.ErrNotFound)
	assert.Nil(t, obj.Content)

	_, err = store.Stat(context.Background(), loc)
	assert.ErrorIs(t, err, xupload.ErrNotFound)
	code, _ := xuploadhttp.StatusFor(err)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestStore_Open_ArtifactSymlinkOutsideRoot(t *testing.T) {
	store, resolver, tempDir := newStore(t)
	outside := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(outside, "secret"), []byte("secret"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(tempDir, "abc"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(tempDir, "abc", "f.meta"), []byte(`{"headers":{"Content-Type":"text/plain"}}`), 0o644))
	require.NoError(t, os.Symlink(filepath.Join(outside, "secret"), filepath.Join(tempDir, "abc", "f.data")))

	_, err := store.Open(context.Background(), resolve(t, resolver, "abc/f"))
	assert.ErrorIs(t, err, xupload.ErrNotFound)
}

func TestStore_Create_SymlinkOutsideRoot(t *testing.T) {
	store, resolver, tempDir := newStore(t)
	outside := t.TempDir()
	require.NoError(t, os.Symlink(outside, filepath.Join(tempDir, "link")))

	err := store.Create(context.Background(), resolve(t, resolver, "link/new"), "text/plain", 2, strings.NewReader("hi"))
	assert.ErrorIs(t, err, xupload.ErrInvalidPath)
	code, _ := xuploadhttp.StatusFor(err)
	assert.Equal(t, http.StatusNotFound, code)

	entries, err := os.ReadDir(outside)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStore_Create_NestedSymlinkOutsideRoot(t *testing.T) {
	store, resolver, tempDir := newStore(t)
	outside := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(tempDir, "alice"), 0o755))
	require.NoError(t, os.Symlink(outside, filepath.Join(tempDir, "alice", "link")))

	err := store.Create(context.Background(), resolve(t, resolver, "alice/link/deep/new"), "", 2, strings.NewReader("hi"))
	assert.ErrorIs(t, err, xupload.ErrInvalidPath)
	assert.NoDirExists(t, filepath.Join(outside, "deep"))
}

func TestStore_Stat_ContextCanceled(t *testing.T) {
	store, resolver, _ := newStore(t)
	loc := resolve(t, resolver, "abc/f")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Stat(ctx, loc)
	assert.Equal(t, context.Canceled, err)
}

type cancelingReader struct {
	data   []byte
	cancel context.CancelFunc
	after  int
	calls  int
}

func (r *cancelingReader) Read(p []byte) (int, error) {
	r.calls++
	if r.calls == r.after {
		r.cancel()
	}
	n := copy(p, r.data)
	r.data = r.data[n:]
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

type sizeRecorder struct {
	r     io.Reader
	max   int
	calls int
}

func (s *sizeRecorder) Read(p []byte) (int, error) {
	s.calls++
	s.max = max(s.max, len(p))
	return s.r.Read(p)
}
