package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	vfs "github.com/worldiety/forestvfs"
)

const catalogTemplate = `containers:
  - name: photos
    uuid: 3f2a9c1e-5d1b-4e8e-9a57-0c6f00f1a2b3
    mount: /photos
    storages:
      - name: down
        uuid: 11111111-1111-4111-8111-111111111111
        type: tape
      - name: disk
        uuid: 9b8d3f7e-10a4-4c55-b7f0-6a2f0e9d8c11
        type: local
        payload:
          root: %s
  - name: backup
    uuid: 7b00c0de-5d1b-4e8e-9a57-0c6f00f1a2b3
    mount: /backup
    storages:
      - name: disk
        uuid: 2c8d3f7e-10a4-4c55-b7f0-6a2f0e9d8c11
        type: local
        payload:
          root: %s
`

func newCatalog(t *testing.T) (file, photos, backup string) {
	dir := t.TempDir()
	photos = filepath.Join(dir, "photos")
	backup = filepath.Join(dir, "backup")
	require.NoError(t, os.Mkdir(photos, 0o755))
	require.NoError(t, os.Mkdir(backup, 0o755))
	file = filepath.Join(dir, "forest.yaml")
	require.NoError(t, os.WriteFile(file, []byte(fmt.Sprintf(catalogTemplate, photos, backup)), 0o600))
	return file, photos, backup
}

func run(t *testing.T, catalog string, stdin string, args ...string) (string, error) {
	t.Helper()
	out, _, err := runObserved(t, catalog, stdin, args...)
	return out, err
}

// runObserved executes one command line and returns stdout and everything logged.
func runObserved(t *testing.T, catalog string, stdin string, args ...string) (string, *observer.ObservedLogs, error) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	e := &env{logger: zap.New(core)}
	var out bytes.Buffer
	err := execute(e, append([]string{"--catalog", catalog}, args...), func(cmd *cobra.Command) {
		cmd.SetOut(&out)
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetIn(strings.NewReader(stdin))
	})
	require.Nil(t, e.engine, "engine left open")
	return out.String(), logs, err
}

func TestPutCatAndList(t *testing.T) {
	catalog, photos, _ := newCatalog(t)

	_, err := run(t, catalog, "", "mkdir", "-p", "/photos/2019/summer")
	require.NoError(t, err)
	_, err = run(t, catalog, "hello forest", "put", "-", "/photos/2019/summer/note.txt")
	require.NoError(t, err)

	buf, err := os.ReadFile(filepath.Join(photos, "2019", "summer", "note.txt"))
	require.NoError(t, err)
	require.Equal(t, "hello forest", string(buf))

	out, err := run(t, catalog, "", "cat", "/photos/2019/summer/note.txt")
	require.NoError(t, err)
	require.Equal(t, "hello forest", out)

	out, err = run(t, catalog, "", "ls", "/")
	require.NoError(t, err)
	require.Contains(t, out, "backup")
	require.Contains(t, out, "photos")

	out, err = run(t, catalog, "", "stat", "/photos/2019/summer/note.txt")
	require.NoError(t, err)
	require.Contains(t, out, "12 bytes")
}

func TestCopyBetweenContainers(t *testing.T) {
	catalog, photos, backup := newCatalog(t)
	require.NoError(t, os.MkdirAll(filepath.Join(photos, "2019"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(photos, "2019", "a.jpg"), []byte("jpeg"), 0o644))

	_, err := run(t, catalog, "", "cp", "/photos/2019", "/backup/2019")
	require.NoError(t, err)
	buf, err := os.ReadFile(filepath.Join(backup, "2019", "a.jpg"))
	require.NoError(t, err)
	require.Equal(t, "jpeg", string(buf))

	_, err = run(t, catalog, "", "mv", "/photos/2019/a.jpg", "/backup/a.jpg")
	require.Error(t, err)
	_, err = run(t, catalog, "", "mv", "/photos/2019/a.jpg", "/photos/2019/b.jpg")
	require.NoError(t, err)
	_, err = run(t, catalog, "", "rm", "/photos/2019/b.jpg")
	require.NoError(t, err)
	_, err = run(t, catalog, "", "rmdir", "/photos/2019")
	require.NoError(t, err)
	require.NoDirExists(t, filepath.Join(photos, "2019"))
}

func TestMissingCatalog(t *testing.T) {
	_, err := run(t, filepath.Join(t.TempDir(), "missing.yaml"), "", "ls")
	require.Error(t, err)
}

func TestDiskFree(t *testing.T) {
	catalog, _, _ := newCatalog(t)
	out, err := run(t, catalog, "", "df", "/photos", "/backup")
	require.NoError(t, err)
	require.Contains(t, out, "/photos")
	require.Contains(t, out, "/backup")

	_, err = run(t, catalog, "", "df", "/")
	require.Error(t, err)
}

const unreachableCatalog = `containers:
  - name: broken
    uuid: 5e0d9c1e-5d1b-4e8e-9a57-0c6f00f1a2b3
    mount: /broken
    storages:
      - name: first
        uuid: 6e0d9c1e-10a4-4c55-b7f0-6a2f0e9d8c11
        type: local
        payload:
          root: %s
      - name: second
        uuid: 7e0d9c1e-10a4-4c55-b7f0-6a2f0e9d8c11
        type: local
        payload:
          root: %s
`

func TestEventsAreLoggedWhenCommandFails(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "forest.yaml")
	doc := fmt.Sprintf(unreachableCatalog, filepath.Join(dir, "gone-1"), filepath.Join(dir, "gone-2"))
	require.NoError(t, os.WriteFile(file, []byte(doc), 0o600))

	_, logs, err := runObserved(t, file, "", "ls", "/broken")
	require.True(t, errors.Is(err, vfs.ErrStorageNotResponsive), "got %v", err)

	events := logs.FilterMessage("replica event").All()
	require.Len(t, events, 3)
	for i, cause := range []vfs.Cause{vfs.UnresponsiveBackend, vfs.UnresponsiveBackend, vfs.AllBackendsUnresponsive} {
		require.Equal(t, cause.String(), events[i].ContextMap()["cause"])
		require.Equal(t, "/broken", events[i].ContextMap()["path"])
	}
}
