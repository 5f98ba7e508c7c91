package memory

import (
	"io"

	vfs "github.com/worldiety/forestvfs"
)

type state uint8

const (
	stateOpen state = iota
	stateClosed
)

// descriptor is an independent cursor on a file node. It keeps working if the file is removed or renamed.
type descriptor struct {
	backend *Backend
	file    *node
	flags   vfs.OpenFlags
	pos     int64
	state   state
}

func (d *descriptor) checkRead(op string) error {
	if d.state == stateClosed {
		return vfs.NewError(vfs.KindBadHandle, op, "")
	}
	if !d.flags.Read {
		return vfs.NewError(vfs.KindNotSupported, op, "")
	}
	return nil
}

func (d *descriptor) checkWrite(op string) error {
	if d.state == stateClosed {
		return vfs.NewError(vfs.KindBadHandle, op, "")
	}
	if !d.flags.Write {
		return vfs.NewError(vfs.KindNotSupported, op, "")
	}
	return nil
}

func (d *descriptor) Read(p []byte) (int, error) {
	d.backend.mutex.Lock()
	defer d.backend.mutex.Unlock()

	if err := d.checkRead("read"); err != nil {
		return 0, err
	}
	if d.pos >= int64(len(d.file.data)) {
		return 0, io.EOF
	}
	n := copy(p, d.file.data[d.pos:])
	d.pos += int64(n)
	d.file.accessed = d.backend.now()
	return n, nil
}

// Write writes at the cursor. The file grows to max(cursor after write, size).
func (d *descriptor) Write(p []byte) (int, error) {
	d.backend.mutex.Lock()
	defer d.backend.mutex.Unlock()

	if err := d.checkWrite("write"); err != nil {
		return 0, err
	}
	end := d.pos + int64(len(p))
	if end > int64(len(d.file.data)) {
		grown := make([]byte, end)
		copy(grown, d.file.data)
		d.file.data = grown
	}
	copy(d.file.data[d.pos:end], p)
	d.pos = end
	d.file.modified = d.backend.now()
	return len(p), nil
}

func (d *descriptor) Seek(pos vfs.SeekFrom) (int64, error) {
	d.backend.mutex.Lock()
	defer d.backend.mutex.Unlock()

	if d.state == stateClosed {
		return 0, vfs.NewError(vfs.KindBadHandle, "seek", "")
	}
	next, ok := pos.Resolve(d.pos, int64(len(d.file.data)))
	if !ok {
		return d.pos, vfs.NewError(vfs.KindInvalidSeek, "seek", "")
	}
	d.pos = next
	return next, nil
}

func (d *descriptor) Close() error {
	d.backend.mutex.Lock()
	defer d.backend.mutex.Unlock()

	d.state = stateClosed
	return nil
}
