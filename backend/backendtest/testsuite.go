// Package backendtest contains the conformance checks every vfs.Backend has to pass.
package backendtest

import (
	"bytes"
	"context"
	"io"
	"os"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	vfs "github.com/worldiety/forestvfs"
)

// TestSuite runs all conformance checks against the backends returned by newBackend. Every subtest gets its own
// empty backend; newBackend should register cleanup of the returned object using testing.T.Cleanup.
// All of the subtests call t.Parallel, but the top level test does not.
func TestSuite(t *testing.T, newBackend func(t testing.TB) vfs.Backend) {
	ctx := context.Background()

	t.Run("Empty", func(t *testing.T) {
		t.Parallel()
		b := newBackend(t)
		list, err := b.ReadDir(ctx, vfs.Root)
		require.NoError(t, err)
		require.Empty(t, list)

		md, err := b.Metadata(ctx, vfs.Root)
		require.NoError(t, err)
		require.True(t, md.IsDir())
	})

	t.Run("WriteVariousLengths", func(t *testing.T) {
		t.Parallel()
		b := newBackend(t)
		dirs := []vfs.Path{"/", "/canWrite0", "/canWrite0/subfolder"}
		for _, dir := range dirs[1:] {
			require.NoError(t, b.CreateDir(ctx, dir))
		}
		lengths := []int{0, 1, 2, 3, 9, 512, 1024, 4096, 4097, 8193}
		for _, dir := range dirs {
			for _, testLen := range lengths {
				file := dir.Child(strconv.Itoa(testLen) + ".bin")
				expected := GenerateTestSlice(testLen)
				writeFile(t, b, file, expected)
				require.Equal(t, expected, readFile(t, b, file), "file %s", file)

				md, err := b.Metadata(ctx, file)
				require.NoError(t, err)
				require.Equal(t, vfs.TypeFile, md.Type)
				require.Equal(t, uint64(testLen), md.Size)
			}
			list, err := b.ReadDir(ctx, dir)
			require.NoError(t, err)
			require.GreaterOrEqual(t, len(list), len(lengths))
		}
	})

	t.Run("Cursor", func(t *testing.T) {
		t.Parallel()
		b := newBackend(t)
		d, err := b.CreateFile(ctx, "/cursor.bin")
		require.NoError(t, err)
		defer d.Close()

		n, err := d.Write([]byte{1, 2, 3, 4, 5, 6})
		require.NoError(t, err)
		require.Equal(t, 6, n)

		// the cursor is at the end after writing
		buf := make([]byte, 5)
		n, err = d.Read(buf)
		require.Equal(t, 0, n)
		require.ErrorIs(t, err, io.EOF)

		pos, err := d.Seek(vfs.Start(1))
		require.NoError(t, err)
		require.Equal(t, int64(1), pos)
		buf = make([]byte, 3)
		n, err = io.ReadFull(descriptorReader{d}, buf)
		require.NoError(t, err)
		require.Equal(t, []byte{2, 3, 4}, buf[:n])

		pos, err = d.Seek(vfs.End(2))
		require.NoError(t, err)
		require.Equal(t, int64(4), pos)

		pos, err = d.Seek(vfs.Current(-4))
		require.NoError(t, err)
		require.Equal(t, int64(0), pos)

		_, err = d.Seek(vfs.Start(7))
		require.Error(t, err)
		_, err = d.Seek(vfs.End(7))
		require.Error(t, err)
		_, err = d.Seek(vfs.Current(-1))
		require.Error(t, err)

		// writing beyond the end extends the file
		_, err = d.Seek(vfs.End(0))
		require.NoError(t, err)
		_, err = d.Write([]byte{7, 8})
		require.NoError(t, err)
		pos, err = d.Seek(vfs.End(0))
		require.NoError(t, err)
		require.Equal(t, int64(8), pos)

		// overwriting in the middle keeps the size
		_, err = d.Seek(vfs.Start(2))
		require.NoError(t, err)
		_, err = d.Write([]byte{9})
		require.NoError(t, err)
		pos, err = d.Seek(vfs.End(0))
		require.NoError(t, err)
		require.Equal(t, int64(8), pos)
		require.NoError(t, d.Close())

		require.Equal(t, []byte{1, 2, 9, 4, 5, 6, 7, 8}, readFile(t, b, "/cursor.bin"))
	})

	t.Run("MissingPaths", func(t *testing.T) {
		t.Parallel()
		b := newBackend(t)
		_, err := b.Metadata(ctx, "/missing")
		requireKind(t, vfs.KindNoSuchPath, err)
		_, err = b.ReadDir(ctx, "/missing")
		requireKind(t, vfs.KindNoSuchPath, err)
		_, err = b.Open(ctx, "/missing", vfs.ReadWrite)
		requireKind(t, vfs.KindNoSuchPath, err)
		requireKind(t, vfs.KindNoSuchPath, b.RemoveFile(ctx, "/missing"))
		requireKind(t, vfs.KindNoSuchPath, b.RemoveDir(ctx, "/missing"))
		requireKind(t, vfs.KindParentDoesNotExist, b.CreateDir(ctx, "/missing/child"))
		_, err = b.CreateFile(ctx, "/missing/child")
		requireKind(t, vfs.KindParentDoesNotExist, err)
	})

	t.Run("Directories", func(t *testing.T) {
		t.Parallel()
		b := newBackend(t)
		require.NoError(t, b.CreateDir(ctx, "/dir"))
		requireKind(t, vfs.KindPathAlreadyExists, b.CreateDir(ctx, "/dir"))
		writeFile(t, b, "/dir/file", []byte("x"))

		requireKind(t, vfs.KindDirNotEmpty, b.RemoveDir(ctx, "/dir"))
		requireKind(t, vfs.KindNotADirectory, b.RemoveDir(ctx, "/dir/file"))
		requireKind(t, vfs.KindNotAFile, b.RemoveFile(ctx, "/dir"))
		_, err := b.Open(ctx, "/dir", vfs.ReadWrite)
		requireKind(t, vfs.KindNotAFile, err)
		_, err = b.ReadDir(ctx, "/dir/file")
		requireKind(t, vfs.KindNotADirectory, err)

		list, err := b.ReadDir(ctx, "/dir")
		require.NoError(t, err)
		require.Len(t, list, 1)
		require.Equal(t, "file", list[0].Name)
		require.Equal(t, vfs.TypeFile, list[0].Metadata.Type)

		require.NoError(t, b.RemoveFile(ctx, "/dir/file"))
		require.NoError(t, b.RemoveDir(ctx, "/dir"))
		list, err = b.ReadDir(ctx, vfs.Root)
		require.NoError(t, err)
		require.Empty(t, list)
	})

	t.Run("CreateFileTruncates", func(t *testing.T) {
		t.Parallel()
		b := newBackend(t)
		writeFile(t, b, "/file", []byte("hello world"))
		writeFile(t, b, "/file", []byte("bye"))
		require.Equal(t, []byte("bye"), readFile(t, b, "/file"))
	})

	t.Run("Rename", func(t *testing.T) {
		t.Parallel()
		b := newBackend(t)
		require.NoError(t, b.CreateDir(ctx, "/a"))
		require.NoError(t, b.CreateDir(ctx, "/b"))
		writeFile(t, b, "/a/file", []byte("content"))

		require.NoError(t, b.Rename(ctx, "/a/file", "/b/moved"))
		_, err := b.Metadata(ctx, "/a/file")
		requireKind(t, vfs.KindNoSuchPath, err)
		require.Equal(t, []byte("content"), readFile(t, b, "/b/moved"))

		writeFile(t, b, "/a/other", nil)
		requireKind(t, vfs.KindTargetPathAlreadyExists, b.Rename(ctx, "/a/other", "/b/moved"))
		requireKind(t, vfs.KindNoSuchPath, b.Rename(ctx, "/a/missing", "/b/x"))
		requireKind(t, vfs.KindSourceIsParentOfTarget, b.Rename(ctx, "/a", "/a/inner"))

		require.NoError(t, b.Rename(ctx, "/b", "/c"))
		require.Equal(t, []byte("content"), readFile(t, b, "/c/moved"))
	})

	t.Run("Permissions", func(t *testing.T) {
		t.Parallel()
		b := newBackend(t)
		writeFile(t, b, "/file", []byte("x"))
		require.NoError(t, b.SetPermissions(ctx, "/file", 0o600))
		md, err := b.Metadata(ctx, "/file")
		require.NoError(t, err)
		require.Equal(t, os.FileMode(0o600), md.Permissions.Perm())
		requireKind(t, vfs.KindNoSuchPath, b.SetPermissions(ctx, "/missing", 0o600))
	})

	t.Run("StatFS", func(t *testing.T) {
		t.Parallel()
		b := newBackend(t)
		stats, err := b.StatFS(ctx)
		require.NoError(t, err)
		require.LessOrEqual(t, stats.FreeBytes, stats.TotalBytes)
	})

	t.Run("IndependentCursors", func(t *testing.T) {
		t.Parallel()
		b := newBackend(t)
		writeFile(t, b, "/file", []byte("abcdef"))
		d1, err := b.Open(ctx, "/file", vfs.ReadWrite)
		require.NoError(t, err)
		defer d1.Close()
		d2, err := b.Open(ctx, "/file", vfs.ReadWrite)
		require.NoError(t, err)
		defer d2.Close()

		buf := make([]byte, 3)
		_, err = io.ReadFull(descriptorReader{d1}, buf)
		require.NoError(t, err)
		require.Equal(t, "abc", string(buf))
		_, err = io.ReadFull(descriptorReader{d2}, buf)
		require.NoError(t, err)
		require.Equal(t, "abc", string(buf))
	})
}

// GenerateTestSlice returns len bytes counting up from zero.
func GenerateTestSlice(len int) []byte {
	tmp := make([]byte, len)
	for i := 0; i < len; i++ {
		tmp[i] = byte(i)
	}
	return tmp
}

type descriptorReader struct {
	d vfs.FileDescriptor
}

func (r descriptorReader) Read(p []byte) (int, error) {
	return r.d.Read(p)
}

func writeFile(t testing.TB, b vfs.Backend, path vfs.Path, data []byte) {
	t.Helper()
	d, err := b.CreateFile(context.Background(), path)
	require.NoError(t, err)
	n, err := d.Write(data)
	require.NoError(t, err)
	require.Equal(t, len(data), n)
	require.NoError(t, d.Close())
}

func readFile(t testing.TB, b vfs.Backend, path vfs.Path) []byte {
	t.Helper()
	d, err := b.Open(context.Background(), path, vfs.OpenFlags{Read: true})
	require.NoError(t, err)
	buf := &bytes.Buffer{}
	_, err = io.Copy(buf, descriptorReader{d})
	require.NoError(t, err)
	require.NoError(t, d.Close())
	return buf.Bytes()
}

func requireKind(t testing.TB, kind vfs.Kind, err error) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, kind, vfs.KindOf(err), "unexpected error %v", err)
}
