package local

import (
	"os"
	"syscall"
	"time"

	vfs "github.com/worldiety/forestvfs"
)

func fillTimes(info os.FileInfo, md *vfs.Metadata) {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return
	}
	md.Accessed = time.Unix(st.Atim.Unix())
	md.Changed = time.Unix(st.Ctim.Unix())
}
