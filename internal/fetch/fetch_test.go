package fetch

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"fedigraph/internal/catalog"
	"fedigraph/internal/errs"
	"fedigraph/internal/retry"
	"fedigraph/internal/testutil"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type archiveServer struct {
	*httptest.Server
	hits atomic.Int32
}

func serveArchive(t *testing.T, handler func(w http.ResponseWriter, r *http.Request, hit int32)) *archiveServer {
	t.Helper()
	s := &archiveServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler(w, r, s.hits.Add(1))
	}))
	t.Cleanup(s.Close)
	return s
}

func fastRetry() retry.Config {
	return retry.Config{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}
}

func TestHTTPFetcher_EnsureLocal(t *testing.T) {
	archive := testutil.ZipTree(t, testutil.Dataset(t), "")
	srv := serveArchive(t, func(w http.ResponseWriter, r *http.Request, _ int32) {
		user, key, ok := r.BasicAuth()
		if !ok || user != "marc" || key != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write(archive)
	})

	root := filepath.Join(t.TempDir(), "cache", "fediverse")
	f := NewHTTPFetcher(srv.URL, WithCredentials("marc", "secret"), WithRetry(fastRetry()))

	require.NoError(t, f.EnsureLocal(context.Background(), root))
	assert.FileExists(t, filepath.Join(root, CompleteMarker))

	c, err := catalog.Build(root)
	require.NoError(t, err)
	assert.Equal(t, 4, c.Len())

	t.Run("Second call is a no-op", func(t *testing.T) {
		require.NoError(t, f.EnsureLocal(context.Background(), root))
		assert.Equal(t, int32(1), srv.hits.Load())
	})

	t.Run("No staging leftovers", func(t *testing.T) {
		entries, err := os.ReadDir(filepath.Dir(root))
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "fediverse", entries[0].Name())
	})
}

func TestHTTPFetcher_AuthFailureIsNotRetried(t *testing.T) {
	srv := serveArchive(t, func(w http.ResponseWriter, _ *http.Request, _ int32) {
		w.WriteHeader(http.StatusForbidden)
	})

	root := filepath.Join(t.TempDir(), "data")
	err := NewHTTPFetcher(srv.URL, WithRetry(fastRetry())).EnsureLocal(context.Background(), root)
	assert.ErrorIs(t, err, errs.ErrFetch)
	assert.Equal(t, int32(1), srv.hits.Load())
	assert.NoDirExists(t, root)
}

func TestHTTPFetcher_RetriesTransientFailures(t *testing.T) {
	archive := testutil.ZipTree(t, testutil.Dataset(t), "")
	srv := serveArchive(t, func(w http.ResponseWriter, _ *http.Request, hit int32) {
		if hit < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("partial garbage"))
			return
		}
		_, _ = w.Write(archive)
	})

	root := filepath.Join(t.TempDir(), "data")
	require.NoError(t, NewHTTPFetcher(srv.URL, WithRetry(fastRetry())).EnsureLocal(context.Background(), root))
	assert.Equal(t, int32(3), srv.hits.Load())

	_, err := catalog.Build(root)
	assert.NoError(t, err)
}

func TestHTTPFetcher_GivesUp(t *testing.T) {
	srv := serveArchive(t, func(w http.ResponseWriter, _ *http.Request, _ int32) {
		w.WriteHeader(http.StatusBadGateway)
	})

	err := NewHTTPFetcher(srv.URL, WithRetry(fastRetry())).EnsureLocal(context.Background(), filepath.Join(t.TempDir(), "data"))
	assert.ErrorIs(t, err, errs.ErrFetch)
	assert.Equal(t, int32(3), srv.hits.Load())
}

func TestHTTPFetcher_StripComponents(t *testing.T) {
	archive := testutil.ZipTree(t, testutil.Dataset(t), "fediverse-graph-dataset/")
	srv := serveArchive(t, func(w http.ResponseWriter, _ *http.Request, _ int32) {
		_, _ = w.Write(archive)
	})

	root := filepath.Join(t.TempDir(), "data")
	require.NoError(t, NewHTTPFetcher(srv.URL, WithStripComponents(1), WithHTTPClient(srv.Client())).EnsureLocal(context.Background(), root))
	assert.FileExists(t, filepath.Join(root, "peertube", "follow", "20250324", "interactions.csv"))
}

func TestHTTPFetcher_RejectsEscapingEntries(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("../evil.csv")
	require.NoError(t, err)
	_, _ = w.Write([]byte("x"))
	require.NoError(t, zw.Close())

	srv := serveArchive(t, func(w http.ResponseWriter, _ *http.Request, _ int32) {
		_, _ = w.Write(buf.Bytes())
	})

	dir := t.TempDir()
	root := filepath.Join(dir, "data")
	err = NewHTTPFetcher(srv.URL).EnsureLocal(context.Background(), root)
	assert.ErrorIs(t, err, errs.ErrFetch)
	assert.NoFileExists(t, filepath.Join(dir, "evil.csv"))
	assert.NoDirExists(t, root)
}

func TestHTTPFetcher_NotAnArchive(t *testing.T) {
	srv := serveArchive(t, func(w http.ResponseWriter, _ *http.Request, _ int32) {
		_, _ = w.Write([]byte("<html>login</html>"))
	})

	err := NewHTTPFetcher(srv.URL).EnsureLocal(context.Background(), filepath.Join(t.TempDir(), "data"))
	assert.ErrorIs(t, err, errs.ErrFetch)
}

func TestHTTPFetcher_ReplacesEmptyRoot(t *testing.T) {
	archive := testutil.ZipTree(t, testutil.Dataset(t), "")
	srv := serveArchive(t, func(w http.ResponseWriter, _ *http.Request, _ int32) {
		_, _ = w.Write(archive)
	})

	root := t.TempDir()
	require.NoError(t, NewHTTPFetcher(srv.URL).EnsureLocal(context.Background(), root))
	assert.FileExists(t, filepath.Join(root, CompleteMarker))
}

func TestHTTPFetcher_RefusesFileRoot(t *testing.T) {
	archive := testutil.ZipTree(t, testutil.Dataset(t), "")
	srv := serveArchive(t, func(w http.ResponseWriter, _ *http.Request, _ int32) {
		_, _ = w.Write(archive)
	})

	root := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(root, []byte("user data"), 0o644))

	err := NewHTTPFetcher(srv.URL).EnsureLocal(context.Background(), root)
	assert.ErrorIs(t, err, errs.ErrFetch)
	assert.Contains(t, err.Error(), "not a directory")
	assert.Equal(t, int32(0), srv.hits.Load(), "nothing is downloaded for an unusable root")

	content, err := os.ReadFile(root)
	require.NoError(t, err)
	assert.Equal(t, "user data", string(content))
}

func TestPublish_RefusesNonDirectoryRoot(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "data")
	require.NoError(t, os.WriteFile(root, []byte("keep me"), 0o644))

	staging := filepath.Join(dir, "staging")
	require.NoError(t, os.MkdirAll(filepath.Join(staging, "peertube"), 0o755))

	assert.Error(t, publish(staging, root))
	assert.FileExists(t, root)
}

func TestHTTPFetcher_KeepsExistingCollection(t *testing.T) {
	srv := serveArchive(t, func(w http.ResponseWriter, _ *http.Request, _ int32) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	root := testutil.Dataset(t)
	require.NoError(t, NewHTTPFetcher(srv.URL).EnsureLocal(context.Background(), root))
	assert.Equal(t, int32(0), srv.hits.Load())
}

func TestPublish_LosingRaceIsSuccess(t *testing.T) {
	root := testutil.Dataset(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, CompleteMarker), nil, 0o644))

	staging := filepath.Join(t.TempDir(), "staging")
	require.NoError(t, os.MkdirAll(filepath.Join(staging, "other"), 0o755))

	require.NoError(t, publish(staging, root))
	assert.NoDirExists(t, filepath.Join(root, "other"), "winner's tree is left untouched")
}

type countingFetcher struct {
	calls int
	err   error
}

func (c *countingFetcher) EnsureLocal(context.Context, string) error {
	c.calls++
	return c.err
}

func TestOnce(t *testing.T) {
	inner := &countingFetcher{}
	once := NewOnce(inner, nil)
	ctx := context.Background()

	require.NoError(t, once.EnsureLocal(ctx, "/data/fedi"))
	require.NoError(t, once.EnsureLocal(ctx, "/data/fedi/"))
	assert.Equal(t, 1, inner.calls)

	require.NoError(t, once.EnsureLocal(ctx, "/data/other"))
	assert.Equal(t, 2, inner.calls)
}

func TestOnce_FailureIsRetried(t *testing.T) {
	inner := &countingFetcher{err: errs.Fetch("download", errors.New("offline"))}
	once := NewOnce(inner, nil)
	ctx := context.Background()

	assert.ErrorIs(t, once.EnsureLocal(ctx, "/data"), errs.ErrFetch)
	inner.err = nil
	assert.NoError(t, once.EnsureLocal(ctx, "/data"))
	assert.Equal(t, 2, inner.calls)
}

func TestLocal(t *testing.T) {
	assert.NoError(t, Local{}.EnsureLocal(context.Background(), testutil.Dataset(t)))
	assert.ErrorIs(t, Local{}.EnsureLocal(context.Background(), t.TempDir()), errs.ErrFetch)
}

func TestRemove(t *testing.T) {
	t.Run("Collection is deleted and fetched again", func(t *testing.T) {
		archive := testutil.ZipTree(t, testutil.Dataset(t), "")
		srv := serveArchive(t, func(w http.ResponseWriter, _ *http.Request, _ int32) {
			_, _ = w.Write(archive)
		})
		root := filepath.Join(t.TempDir(), "data")
		f := NewHTTPFetcher(srv.URL)

		require.NoError(t, f.EnsureLocal(context.Background(), root))
		require.NoError(t, Remove(root))
		assert.NoDirExists(t, root)

		require.NoError(t, f.EnsureLocal(context.Background(), root))
		assert.Equal(t, int32(2), srv.hits.Load())
	})

	t.Run("Missing root", func(t *testing.T) {
		assert.NoError(t, Remove(filepath.Join(t.TempDir(), "nope")))
	})

	t.Run("File root is kept", func(t *testing.T) {
		p := filepath.Join(t.TempDir(), "file")
		require.NoError(t, os.WriteFile(p, nil, 0o644))
		assert.ErrorIs(t, Remove(p), errs.ErrFetch)
		assert.FileExists(t, p)
	})
}

func TestStripComponents(t *testing.T) {
	name, ok := stripComponents("root/peertube/follow/", 1)
	assert.True(t, ok)
	assert.Equal(t, "peertube/follow", name)

	_, ok = stripComponents("root/", 1)
	assert.False(t, ok)
}
