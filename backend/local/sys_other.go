//go:build !linux && !darwin

package local

import (
	vfs "github.com/worldiety/forestvfs"
)

func errnoKind(err error) (vfs.Kind, bool) {
	return vfs.KindUnknown, false
}

func statFS(prefix string) (vfs.FilesystemStats, error) {
	return vfs.FilesystemStats{}, vfs.NewError(vfs.KindNotSupported, "statfs", "")
}
