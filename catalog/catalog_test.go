package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	vfs "github.com/worldiety/forestvfs"
)

func storage(name string) vfs.Storage {
	return vfs.Storage{Name: name, UUID: uuid.New(), BackendType: "memory"}
}

func TestResolveNested(t *testing.T) {
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()
	cat := New()
	require.NoError(t, cat.Claim("/a", a, storage("a")))
	require.NoError(t, cat.Claim("/a/b", b, storage("b")))

	res, err := cat.Resolve(ctx, "/a")
	require.NoError(t, err)
	require.Len(t, res, 2)
	require.Equal(t, vfs.Path("/"), res[0].(*vfs.PathWithStorages).PathWithinStorage)
	require.Equal(t, a, res[0].(*vfs.PathWithStorages).StoragesID)
	require.Equal(t, vfs.Path("/a"), res[1].(*vfs.VirtualPath).AbsolutePath)

	res, err = cat.Resolve(ctx, "/a/b/c")
	require.NoError(t, err)
	require.Len(t, res, 2)
	require.Equal(t, vfs.Path("/b/c"), res[0].(*vfs.PathWithStorages).PathWithinStorage)
	require.Equal(t, vfs.Path("/c"), res[1].(*vfs.PathWithStorages).PathWithinStorage)
	require.Equal(t, b, res[1].(*vfs.PathWithStorages).StoragesID)

	res, err = cat.Resolve(ctx, "/unknown")
	require.NoError(t, err)
	require.Empty(t, res)
}

func TestResolveRoot(t *testing.T) {
	ctx := context.Background()
	cat := New()

	res, err := cat.Resolve(ctx, "/")
	require.NoError(t, err)
	require.Len(t, res, 1)
	require.IsType(t, &vfs.VirtualPath{}, res[0])

	root := uuid.New()
	require.NoError(t, cat.Claim("/", root, storage("root")))
	res, err = cat.Resolve(ctx, "/")
	require.NoError(t, err)
	require.Len(t, res, 1)
	require.IsType(t, &vfs.PathWithStorages{}, res[0])

	res, err = cat.Resolve(ctx, "/x/y")
	require.NoError(t, err)
	require.Len(t, res, 1)
	require.Equal(t, vfs.Path("/x/y"), res[0].(*vfs.PathWithStorages).PathWithinStorage)
}

func TestOverlappingClaims(t *testing.T) {
	ctx := context.Background()
	cat := New()
	require.NoError(t, cat.Claim("/photos", uuid.New(), storage("one")))
	require.NoError(t, cat.Claim("/photos", uuid.New(), storage("two")))

	res, err := cat.Resolve(ctx, "/photos/2019")
	require.NoError(t, err)
	require.Len(t, res, 2)

	names, err := cat.Children(ctx, "/")
	require.NoError(t, err)
	require.Equal(t, []string{"photos"}, names)
}

func TestClaimRejects(t *testing.T) {
	cat := New()
	id := uuid.New()
	require.Error(t, cat.Claim("/a", id))
	require.Error(t, cat.Claim("/a/../b", id, storage("s")))
	require.NoError(t, cat.Claim("/a", id, storage("s")))
	require.Error(t, cat.Claim("/b", id, storage("s")))
}

func TestRelease(t *testing.T) {
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()
	cat := New()
	require.NoError(t, cat.Claim("/x/a", a, storage("a")))
	require.NoError(t, cat.Claim("/y", b, storage("b")))

	require.True(t, cat.Release(a))
	require.False(t, cat.Release(a))

	names, err := cat.Children(ctx, "/")
	require.NoError(t, err)
	require.Equal(t, []string{"y"}, names)
	require.Equal(t, []uuid.UUID{b}, cat.Containers())
}

func TestChildren(t *testing.T) {
	ctx := context.Background()
	cat := New()
	require.NoError(t, cat.Claim("/m/z", uuid.New(), storage("z")))
	require.NoError(t, cat.Claim("/m/a", uuid.New(), storage("a")))

	names, err := cat.Children(ctx, "/m")
	require.NoError(t, err)
	require.Equal(t, []string{"a", "z"}, names)

	names, err = cat.Children(ctx, "/nothing")
	require.NoError(t, err)
	require.Empty(t, names)
}

func TestLoadFile(t *testing.T) {
	const doc = `
containers:
  - name: photos
    uuid: 3f2a9c1e-5d1b-4e8e-9a57-0c6f00f1a2b3
    mount: /photos
    storages:
      - name: nas
        uuid: 9b8d3f7e-10a4-4c55-b7f0-6a2f0e9d8c11
        type: local
        payload:
          root: /srv/photos
      - name: cloud
        uuid: 1c2d3e4f-0000-4000-8000-000000000001
        type: objstore
        payload:
          url: mem://
`
	file := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(file, []byte(doc), 0o600))

	cat, err := LoadFile(file)
	require.NoError(t, err)

	res, err := cat.Resolve(context.Background(), "/photos/2019")
	require.NoError(t, err)
	require.Len(t, res, 1)
	claimed := res[0].(*vfs.PathWithStorages)
	require.Equal(t, uuid.MustParse("3f2a9c1e-5d1b-4e8e-9a57-0c6f00f1a2b3"), claimed.StoragesID)
	require.Len(t, claimed.Storages, 2)
	require.Equal(t, "local", claimed.Storages[0].BackendType)
	require.Equal(t, "/srv/photos", claimed.Storages[0].PayloadValue("root"))
	require.Equal(t, "objstore", claimed.Storages[1].BackendType)
}

func TestBuildRejectsMissingType(t *testing.T) {
	cfg, err := Parse([]byte(`
containers:
  - name: x
    uuid: 3f2a9c1e-5d1b-4e8e-9a57-0c6f00f1a2b3
    mount: /x
    storages:
      - name: s
        uuid: 9b8d3f7e-10a4-4c55-b7f0-6a2f0e9d8c11
`))
	require.NoError(t, err)
	_, err = cfg.Build()
	require.Error(t, err)
}
