package vfs_test

import (
	"bytes"
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	vfs "github.com/worldiety/forestvfs"
	"github.com/worldiety/forestvfs/backend/memory"
	"github.com/worldiety/forestvfs/catalog"
)

// forest wires an engine to an in-memory catalog and in-memory backends.
type forest struct {
	engine   *vfs.Engine
	catalog  *catalog.Catalog
	pool     *memory.Pool
	registry *vfs.Registry
	created  map[uuid.UUID]int
}

func newForest(t *testing.T) *forest {
	f := &forest{
		catalog:  catalog.New(),
		pool:     memory.NewPool(),
		registry: vfs.NewRegistry(),
		created:  make(map[uuid.UUID]int),
	}
	f.registry.Register(memory.Type, func(ctx context.Context, storage vfs.Storage) (vfs.Backend, error) {
		f.created[storage.UUID]++
		return f.pool.Factory(ctx, storage)
	})
	f.engine = vfs.NewEngine(f.catalog, f.registry, vfs.WithLogger(zaptest.NewLogger(t)))
	t.Cleanup(func() {
		require.NoError(t, f.engine.Shutdown())
	})
	return f
}

// claim mounts a new container with the given replica backend types and returns it.
func (f *forest) claim(t *testing.T, mount vfs.Path, types ...string) (uuid.UUID, []vfs.Storage) {
	if len(types) == 0 {
		types = []string{memory.Type}
	}
	id := uuid.New()
	storages := make([]vfs.Storage, len(types))
	for i, typ := range types {
		storages[i] = vfs.Storage{Name: "replica", UUID: uuid.New(), BackendType: typ}
	}
	require.NoError(t, f.catalog.Claim(mount, id, storages...))
	return id, storages
}

func (f *forest) backend(s vfs.Storage) *memory.Backend {
	return f.pool.Get(s.UUID)
}

func put(t *testing.T, b vfs.Backend, path vfs.Path, data string) {
	t.Helper()
	d, err := b.CreateFile(context.Background(), path)
	require.NoError(t, err)
	_, err = d.Write([]byte(data))
	require.NoError(t, err)
	require.NoError(t, d.Close())
}

func tag(id uuid.UUID) string {
	return "@" + strings.ReplaceAll(id.String(), "-", "")[:8]
}

func requireKind(t *testing.T, kind vfs.Kind, err error) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, kind, vfs.KindOf(err), "unexpected error %v", err)
}

func TestFallbackToNextReplica(t *testing.T) {
	ctx := context.Background()
	f := newForest(t)
	_, storages := f.claim(t, "/docs", memory.Type, memory.Type)
	f.backend(storages[0]).SetDown(true)
	put(t, f.backend(storages[1]), "/readme.txt", "hello")

	sub := f.engine.Subscribe()
	md, err := f.engine.Metadata(ctx, "/docs/readme.txt")
	require.NoError(t, err)
	require.Equal(t, uint64(5), md.Size)

	ev, ok := sub.Poll(time.Second)
	require.True(t, ok)
	require.Equal(t, vfs.UnresponsiveBackend, ev.Cause)
	require.Equal(t, memory.Type, ev.BackendType)
	require.Equal(t, "metadata", ev.Operation)
	require.Equal(t, vfs.Path("/docs/readme.txt"), ev.OperationPath)
	_, ok = sub.Poll(0)
	require.False(t, ok, "exactly one event expected")
}

func TestAllReplicasDown(t *testing.T) {
	ctx := context.Background()
	f := newForest(t)
	_, storages := f.claim(t, "/docs", memory.Type, memory.Type)
	for _, s := range storages {
		f.backend(s).SetDown(true)
	}

	sub := f.engine.Subscribe()
	_, err := f.engine.ReadDir(ctx, "/docs")
	require.True(t, errors.Is(err, vfs.ErrStorageNotResponsive), "got %v", err)
	require.False(t, vfs.IsLogical(err))

	for _, cause := range []vfs.Cause{vfs.UnresponsiveBackend, vfs.UnresponsiveBackend, vfs.AllBackendsUnresponsive} {
		ev, ok := sub.Poll(time.Second)
		require.True(t, ok)
		require.Equal(t, cause, ev.Cause)
	}
	_, ok := sub.Poll(0)
	require.False(t, ok)
}

func TestUnsupportedBackendType(t *testing.T) {
	ctx := context.Background()
	f := newForest(t)
	_, storages := f.claim(t, "/docs", "tape", memory.Type)
	put(t, f.backend(storages[1]), "/a", "x")

	sub := f.engine.Subscribe()
	_, err := f.engine.Metadata(ctx, "/docs/a")
	require.NoError(t, err)
	ev, ok := sub.Poll(time.Second)
	require.True(t, ok)
	require.Equal(t, vfs.UnsupportedBackendType, ev.Cause)
	require.Equal(t, "tape", ev.BackendType)
}

func TestLogicalAnswerIsNotRetried(t *testing.T) {
	ctx := context.Background()
	f := newForest(t)
	_, storages := f.claim(t, "/docs", memory.Type, memory.Type)
	put(t, f.backend(storages[1]), "/only-on-second", "x")

	sub := f.engine.Subscribe()
	_, err := f.engine.Metadata(ctx, "/docs/only-on-second")
	require.True(t, errors.Is(err, vfs.ErrNoSuchPath))
	require.Equal(t, vfs.Path("/docs/only-on-second"), err.(*vfs.Error).Path)
	_, ok := sub.Poll(0)
	require.False(t, ok)
}

func TestOpenNeverOpensDirectories(t *testing.T) {
	ctx := context.Background()
	f := newForest(t)
	f.claim(t, "/home/alice")

	_, err := f.engine.Open(ctx, "/nothing/here")
	requireKind(t, vfs.KindNoSuchPath, err)
	_, err = f.engine.Open(ctx, "/home")
	requireKind(t, vfs.KindNoSuchPath, err)
	_, err = f.engine.Open(ctx, "/")
	requireKind(t, vfs.KindNoSuchPath, err)
	_, err = f.engine.Open(ctx, "/home/alice")
	requireKind(t, vfs.KindNotAFile, err)
}

func TestWriteReadSeek(t *testing.T) {
	ctx := context.Background()
	f := newForest(t)
	f.claim(t, "/docs")

	h, err := f.engine.CreateFile(ctx, "/docs/data.bin")
	require.NoError(t, err)
	n, err := f.engine.Write(h, []byte{1, 2, 3, 4, 5, 6})
	require.NoError(t, err)
	require.Equal(t, 6, n)

	buf, err := f.engine.Read(h, 5)
	require.NoError(t, err)
	require.Empty(t, buf)

	pos, err := f.engine.Seek(h, vfs.Start(1))
	require.NoError(t, err)
	require.Equal(t, int64(1), pos)
	buf, err = f.engine.Read(h, 3)
	require.NoError(t, err)
	require.Equal(t, []byte{2, 3, 4}, buf)

	_, err = f.engine.Seek(h, vfs.Start(7))
	requireKind(t, vfs.KindInvalidSeek, err)
	require.NoError(t, f.engine.Close(h))

	md, err := f.engine.Metadata(ctx, "/docs/data.bin")
	require.NoError(t, err)
	require.Equal(t, uint64(6), md.Size)
}

func TestIndependentCursors(t *testing.T) {
	ctx := context.Background()
	f := newForest(t)
	_, storages := f.claim(t, "/docs")
	put(t, f.backend(storages[0]), "/f", "abcdef")

	h1, err := f.engine.Open(ctx, "/docs/f")
	require.NoError(t, err)
	h2, err := f.engine.Open(ctx, "/docs/f")
	require.NoError(t, err)
	require.NotEqual(t, h1, h2)

	buf, err := f.engine.Read(h1, 4)
	require.NoError(t, err)
	require.Equal(t, "abcd", string(buf))
	buf, err = f.engine.Read(h2, 2)
	require.NoError(t, err)
	require.Equal(t, "ab", string(buf))
	require.Equal(t, []vfs.Handle{h1, h2}, f.engine.OpenHandles())
}

func TestDoubleClose(t *testing.T) {
	ctx := context.Background()
	f := newForest(t)
	f.claim(t, "/docs")

	h, err := f.engine.CreateFile(ctx, "/docs/f")
	require.NoError(t, err)
	require.NoError(t, f.engine.Close(h))
	require.NoError(t, f.engine.Close(h))
	require.NoError(t, f.engine.Close(vfs.Handle(4711)))

	_, err = f.engine.Read(h, 1)
	require.True(t, errors.Is(err, vfs.ErrBadHandle))
	_, err = f.engine.Write(h, []byte{1})
	require.True(t, errors.Is(err, vfs.ErrBadHandle))
	_, err = f.engine.Seek(h, vfs.Start(0))
	require.True(t, errors.Is(err, vfs.ErrBadHandle))
	require.Empty(t, f.engine.OpenHandles())
}

func TestShutdownReleasesHandles(t *testing.T) {
	ctx := context.Background()
	f := newForest(t)
	f.claim(t, "/docs")

	h1, err := f.engine.CreateFile(ctx, "/docs/a")
	require.NoError(t, err)
	_, err = f.engine.CreateFile(ctx, "/docs/b")
	require.NoError(t, err)
	require.Len(t, f.engine.OpenHandles(), 2)

	require.NoError(t, f.engine.Shutdown())
	require.Empty(t, f.engine.OpenHandles())
	_, err = f.engine.Read(h1, 1)
	require.True(t, errors.Is(err, vfs.ErrBadHandle))

	// the engine stays usable
	_, err = f.engine.Metadata(ctx, "/docs/a")
	require.NoError(t, err)
}

func TestWithFile(t *testing.T) {
	ctx := context.Background()
	f := newForest(t)
	_, storages := f.claim(t, "/docs")
	put(t, f.backend(storages[0]), "/f", "content")

	failure := errors.New("failed on purpose")
	err := f.engine.WithFile(ctx, "/docs/f", func(h vfs.Handle) error {
		require.Len(t, f.engine.OpenHandles(), 1)
		return failure
	})
	require.Equal(t, failure, err)
	require.Empty(t, f.engine.OpenHandles())

	require.Panics(t, func() {
		_ = f.engine.WithFile(ctx, "/docs/f", func(h vfs.Handle) error {
			panic("boom")
		})
	})
	require.Empty(t, f.engine.OpenHandles())

	data, err := f.engine.ReadAll(ctx, "/docs/f")
	require.NoError(t, err)
	require.Equal(t, "content", string(data))
}

func TestMergedDirectoryIsReadOnly(t *testing.T) {
	ctx := context.Background()
	f := newForest(t)
	a, sa := f.claim(t, "/shared")
	b, sb := f.claim(t, "/shared")
	require.NoError(t, f.backend(sa[0]).CreateDir(ctx, "/x"))
	require.NoError(t, f.backend(sb[0]).CreateDir(ctx, "/x"))
	put(t, f.backend(sa[0]), "/x/file", "a")

	requireKind(t, vfs.KindReadOnlyPath, f.engine.CreateDir(ctx, "/shared/y"))
	requireKind(t, vfs.KindReadOnlyPath, f.engine.CreateDir(ctx, vfs.Path("/shared"+tag(a)+"/y")))
	requireKind(t, vfs.KindReadOnlyPath, f.engine.RemoveDir(ctx, vfs.Path("/shared"+tag(b)+"/x")))
	requireKind(t, vfs.KindReadOnlyPath, f.engine.RemoveFile(ctx, vfs.Path("/shared"+tag(a)+"/x/file")))
	_, err := f.engine.CreateFile(ctx, vfs.Path("/shared"+tag(a)+"/new"))
	requireKind(t, vfs.KindReadOnlyPath, err)
	requireKind(t, vfs.KindReadOnlyPath, f.engine.Rename(ctx, vfs.Path("/shared"+tag(a)+"/x/file"), vfs.Path("/shared"+tag(a)+"/x/moved")))

	// reads still work through the tagged names
	entries, err := f.engine.ReadDir(ctx, "/")
	require.NoError(t, err)
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
		require.True(t, e.Metadata.IsDir())
	}
	require.ElementsMatch(t, []string{"shared" + tag(a), "shared" + tag(b)}, names)

	data, err := f.engine.ReadAll(ctx, vfs.Path("/shared"+tag(a)+"/x/file"))
	require.NoError(t, err)
	require.Equal(t, "a", string(data))

	_, err = f.engine.Metadata(ctx, "/shared/x")
	requireKind(t, vfs.KindNoSuchPath, err)
	_, err = f.engine.Metadata(ctx, vfs.Path("/shared"+tag(b)+"/x/file"))
	requireKind(t, vfs.KindNoSuchPath, err)
}

func TestVirtualDirectories(t *testing.T) {
	ctx := context.Background()
	f := newForest(t)
	f.claim(t, "/home/alice")
	f.claim(t, "/home/bob")

	md, err := f.engine.Metadata(ctx, "/home")
	require.NoError(t, err)
	require.True(t, md.IsDir())
	require.Equal(t, uint64(0), md.Size)
	require.True(t, md.Modified.IsZero())

	entries, err := f.engine.ReadDir(ctx, "/home")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "alice", entries[0].Name)
	require.Equal(t, "bob", entries[1].Name)

	requireKind(t, vfs.KindPathAlreadyExists, f.engine.CreateDir(ctx, "/home"))
	requireKind(t, vfs.KindPathAlreadyExists, f.engine.CreateDir(ctx, "/"))
	requireKind(t, vfs.KindReadOnlyPath, f.engine.RemoveDir(ctx, "/home"))
	requireKind(t, vfs.KindReadOnlyPath, f.engine.RemoveFile(ctx, "/home"))
	requireKind(t, vfs.KindReadOnlyPath, f.engine.SetPermissions(ctx, "/home", 0o777))
	requireKind(t, vfs.KindReadOnlyPath, f.engine.Rename(ctx, "/home", "/house"))
	requireKind(t, vfs.KindReadOnlyPath, f.engine.CreateDir(ctx, "/home/carol"))
	requireKind(t, vfs.KindParentDoesNotExist, f.engine.CreateDir(ctx, "/nope/deeper"))
	_, err = f.engine.CreateFile(ctx, "/home/new.txt")
	requireKind(t, vfs.KindReadOnlyPath, err)

	_, err = f.engine.StatFS(ctx, "/home")
	requireKind(t, vfs.KindNotSupported, err)
	stats, err := f.engine.StatFS(ctx, "/home/alice")
	require.NoError(t, err)
	require.NotZero(t, stats.TotalBytes)
}

func TestNestedClaims(t *testing.T) {
	ctx := context.Background()
	f := newForest(t)
	a, sa := f.claim(t, "/a")
	b, sb := f.claim(t, "/a/b")
	put(t, f.backend(sa[0]), "/in-a", "a")
	put(t, f.backend(sb[0]), "/in-b", "b")

	entries, err := f.engine.ReadDir(ctx, "/")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "a", entries[0].Name)
	require.Equal(t, "a"+tag(a), entries[1].Name)

	entries, err = f.engine.ReadDir(ctx, "/a")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "b"+tag(b), entries[0].Name)

	entries, err = f.engine.ReadDir(ctx, vfs.Path("/a"+tag(a)))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "in-a", entries[0].Name)

	data, err := f.engine.ReadAll(ctx, vfs.Path("/a/b"+tag(b)+"/in-b"))
	require.NoError(t, err)
	require.Equal(t, "b", string(data))
}

func TestEscapedNames(t *testing.T) {
	ctx := context.Background()
	f := newForest(t)
	_, storages := f.claim(t, "/mail")
	put(t, f.backend(storages[0]), "/me@example.org", "hi")

	entries, err := f.engine.ReadDir(ctx, "/mail")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "me@@example.org", entries[0].Name)

	data, err := f.engine.ReadAll(ctx, "/mail/me@@example.org")
	require.NoError(t, err)
	require.Equal(t, "hi", string(data))
}

func TestMutations(t *testing.T) {
	ctx := context.Background()
	f := newForest(t)
	f.claim(t, "/docs")
	f.claim(t, "/other")

	require.NoError(t, f.engine.CreateDir(ctx, "/docs/dir"))
	requireKind(t, vfs.KindPathAlreadyExists, f.engine.CreateDir(ctx, "/docs/dir"))
	requireKind(t, vfs.KindParentDoesNotExist, f.engine.CreateDir(ctx, "/docs/missing/dir"))
	_, err := f.engine.WriteAll(ctx, "/docs/dir/file", []byte("data"))
	require.NoError(t, err)
	requireKind(t, vfs.KindDirNotEmpty, f.engine.RemoveDir(ctx, "/docs/dir"))
	requireKind(t, vfs.KindNotAFile, f.engine.RemoveFile(ctx, "/docs/dir"))

	requireKind(t, vfs.KindSourceIsParentOfTarget, f.engine.Rename(ctx, "/docs/dir", "/docs/dir/inner"))
	requireKind(t, vfs.KindReadOnlyPath, f.engine.Rename(ctx, "/docs/dir/file", "/other/file"))
	requireKind(t, vfs.KindReadOnlyPath, f.engine.Rename(ctx, "/docs", "/docs2"))
	requireKind(t, vfs.KindNoSuchPath, f.engine.Rename(ctx, "/docs/missing", "/docs/x"))
	requireKind(t, vfs.KindNoSuchPath, f.engine.Rename(ctx, "/docs/missing", "/docs/missing"))
	require.NoError(t, f.engine.Rename(ctx, "/docs/dir/file", "/docs/renamed"))
	require.NoError(t, f.engine.Rename(ctx, "/docs/renamed", "/docs/renamed"))
	requireKind(t, vfs.KindTargetPathAlreadyExists, f.engine.Rename(ctx, "/docs/dir", "/docs/renamed"))

	require.NoError(t, f.engine.SetPermissions(ctx, "/docs/renamed", 0o600))
	md, err := f.engine.Metadata(ctx, "/docs/renamed")
	require.NoError(t, err)
	require.Equal(t, uint64(4), md.Size)
	require.EqualValues(t, 0o600, md.Permissions.Perm())

	require.NoError(t, f.engine.RemoveDir(ctx, "/docs/dir"))
	require.NoError(t, f.engine.RemoveFile(ctx, "/docs/renamed"))
	requireKind(t, vfs.KindReadOnlyPath, f.engine.RemoveDir(ctx, "/docs"))

	entries, err := f.engine.ReadDir(ctx, "/docs")
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestCopyAcrossContainers(t *testing.T) {
	ctx := context.Background()
	f := newForest(t)
	f.claim(t, "/src")
	f.claim(t, "/dst")

	require.NoError(t, f.engine.CreateDir(ctx, "/src/dir"))
	_, err := f.engine.WriteAll(ctx, "/src/dir/a", []byte("first"))
	require.NoError(t, err)
	_, err = f.engine.WriteAll(ctx, "/src/b", []byte("second"))
	require.NoError(t, err)

	var copied int64
	opts := &vfs.CopyOptions{OnCopied: func(obj vfs.Path, objects int64, bytes int64) {
		copied = objects
	}}
	require.NoError(t, f.engine.Copy(ctx, "/src", "/dst/copy", opts))
	require.Equal(t, int64(4), copied)

	data, err := f.engine.ReadAll(ctx, "/dst/copy/dir/a")
	require.NoError(t, err)
	require.Equal(t, "first", string(data))
	data, err = f.engine.ReadAll(ctx, "/dst/copy/b")
	require.NoError(t, err)
	require.Equal(t, "second", string(data))

	var walked []vfs.Path
	require.NoError(t, f.engine.Walk(ctx, "/dst", func(path vfs.Path, info vfs.Metadata, err error) error {
		walked = append(walked, path)
		return err
	}))
	require.Equal(t, []vfs.Path{"/dst/copy", "/dst/copy/b", "/dst/copy/dir", "/dst/copy/dir/a"}, walked)
}

func TestBackendsAreCreatedOncePerEngine(t *testing.T) {
	ctx := context.Background()
	f := newForest(t)
	_, storages := f.claim(t, "/docs")

	for i := 0; i < 5; i++ {
		_, err := f.engine.ReadDir(ctx, "/docs")
		require.NoError(t, err)
	}
	require.Equal(t, 1, f.created[storages[0].UUID])

	other := vfs.NewEngine(f.catalog, f.registry)
	_, err := other.ReadDir(ctx, "/docs")
	require.NoError(t, err)
	require.Equal(t, 2, f.created[storages[0].UUID])
}

func TestCancelledContext(t *testing.T) {
	f := newForest(t)
	f.claim(t, "/docs")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.engine.ReadDir(ctx, "/docs")
	require.True(t, errors.Is(err, context.Canceled))
}

func TestReadCountIsBounded(t *testing.T) {
	ctx := context.Background()
	f := newForest(t)
	_, storages := f.claim(t, "/docs")
	put(t, f.backend(storages[0]), "/small", "abc")

	h, err := f.engine.Open(ctx, "/docs/small")
	require.NoError(t, err)
	buf, err := f.engine.Read(h, math.MaxInt)
	require.NoError(t, err)
	require.Equal(t, "abc", string(buf))

	large := bytes.Repeat([]byte{7}, vfs.MaxReadChunk+10)
	_, err = f.engine.WriteAll(ctx, "/docs/large", large)
	require.NoError(t, err)
	h, err = f.engine.Open(ctx, "/docs/large")
	require.NoError(t, err)
	buf, err = f.engine.Read(h, math.MaxInt)
	require.NoError(t, err)
	require.Len(t, buf, vfs.MaxReadChunk)
	buf, err = f.engine.Read(h, math.MaxInt)
	require.NoError(t, err)
	require.Len(t, buf, 10)

	data, err := f.engine.ReadAll(ctx, "/docs/large")
	require.NoError(t, err)
	require.Equal(t, large, data)
}

func TestCopyOntoItself(t *testing.T) {
	ctx := context.Background()
	f := newForest(t)
	id, storages := f.claim(t, "/docs")
	require.NoError(t, f.backend(storages[0]).CreateDir(ctx, "/dir"))
	put(t, f.backend(storages[0]), "/dir/f", "precious")

	requireKind(t, vfs.KindTargetPathAlreadyExists, f.engine.Copy(ctx, "/docs/dir/f", "/docs/dir/f", nil))
	requireKind(t, vfs.KindTargetPathAlreadyExists, f.engine.Copy(ctx, "/docs/dir", "/docs/dir", nil))
	// a stale tag still names the same container
	requireKind(t, vfs.KindTargetPathAlreadyExists, f.engine.Copy(ctx, "/docs/dir/f", vfs.Path("/docs"+tag(id)+"/dir/f"), nil))

	data, err := f.engine.ReadAll(ctx, "/docs/dir/f")
	require.NoError(t, err)
	require.Equal(t, "precious", string(data))

	require.NoError(t, f.engine.Copy(ctx, "/docs/dir/f", "/docs/dir/g", nil))
	data, err = f.engine.ReadAll(ctx, "/docs/dir/g")
	require.NoError(t, err)
	require.Equal(t, "precious", string(data))
}

// closingBackend counts Close calls on top of a memory backend.
type closingBackend struct {
	*memory.Backend
	closed int
}

func (b *closingBackend) Close() error {
	b.closed++
	return nil
}

func TestShutdownClosesBackends(t *testing.T) {
	ctx := context.Background()
	f := newForest(t)
	f.claim(t, "/docs")
	var created []*closingBackend
	f.registry.Register(memory.Type, func(ctx context.Context, storage vfs.Storage) (vfs.Backend, error) {
		b := &closingBackend{Backend: f.pool.Get(storage.UUID)}
		created = append(created, b)
		return b, nil
	})
	_, err := f.engine.WriteAll(ctx, "/docs/f", []byte("x"))
	require.NoError(t, err)
	require.Len(t, created, 1)

	require.NoError(t, f.engine.Shutdown())
	require.Equal(t, 1, created[0].closed)

	// the next operation creates a fresh backend on the same storage
	data, err := f.engine.ReadAll(ctx, "/docs/f")
	require.NoError(t, err)
	require.Equal(t, "x", string(data))
	require.Len(t, created, 2)
	require.NotSame(t, created[0], created[1])
	require.Same(t, created[0].Backend, created[1].Backend)
}

func TestRootClaimIsHiddenByMounts(t *testing.T) {
	ctx := context.Background()
	f := newForest(t)
	_, root := f.claim(t, "/")
	f.claim(t, "/a")
	put(t, f.backend(root[0]), "/f", "root content")

	entries, err := f.engine.ReadDir(ctx, "/")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "a", entries[0].Name)

	// direct paths into the root container keep working
	data, err := f.engine.ReadAll(ctx, "/f")
	require.NoError(t, err)
	require.Equal(t, "root content", string(data))
}
