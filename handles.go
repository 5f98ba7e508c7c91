package vfs

import (
	"sort"
	"sync"
)

// A Handle addresses an open file within one engine. Handles are never reused.
type Handle uint64

// openFile guards a backend descriptor, so that it is closed exactly once, whichever comes first: an explicit
// close, or the shutdown of the engine owning it.
type openFile struct {
	mutex      sync.Mutex
	descriptor FileDescriptor
	exposed    Path
	closed     bool
	closeErr   error
}

// release closes the descriptor on the first call and returns the result of that close on every call.
func (f *openFile) release() error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	if !f.closed {
		f.closed = true
		f.closeErr = f.descriptor.Close()
	}
	return f.closeErr
}

// use runs fn with exclusive access to a descriptor which is still open.
func (f *openFile) use(fn func(d FileDescriptor) error) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	if f.closed {
		return ErrBadHandle
	}
	return fn(f.descriptor)
}

type handleTable struct {
	mutex sync.Mutex
	last  Handle
	files map[Handle]*openFile
}

func newHandleTable() *handleTable {
	return &handleTable{files: make(map[Handle]*openFile)}
}

func (t *handleTable) add(f *openFile) Handle {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.last++
	t.files[t.last] = f
	return t.last
}

func (t *handleTable) get(h Handle) (*openFile, bool) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	f, ok := t.files[h]
	return f, ok
}

// take removes the entry, so that only the first caller gets it.
func (t *handleTable) take(h Handle) (*openFile, bool) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	f, ok := t.files[h]
	if ok {
		delete(t.files, h)
	}
	return f, ok
}

// drain removes all entries in handle order.
func (t *handleTable) drain() []*openFile {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	handles := make([]Handle, 0, len(t.files))
	for h := range t.files {
		handles = append(handles, h)
	}
	sort.Slice(handles, func(i, j int) bool { return handles[i] < handles[j] })
	res := make([]*openFile, 0, len(handles))
	for _, h := range handles {
		res = append(res, t.files[h])
		delete(t.files, h)
	}
	return res
}

func (t *handleTable) handles() []Handle {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	res := make([]Handle, 0, len(t.files))
	for h := range t.files {
		res = append(res, h)
	}
	sort.Slice(res, func(i, j int) bool { return res[i] < res[j] })
	return res
}
