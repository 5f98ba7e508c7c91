//go:build !linux

package local

import (
	"os"

	vfs "github.com/worldiety/forestvfs"
)

// fillTimes leaves access and change time empty, only the modification time is portable.
func fillTimes(info os.FileInfo, md *vfs.Metadata) {}
