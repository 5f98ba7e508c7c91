// Package memory contains a vfs.Backend which keeps its whole tree in process memory. It is the reference for the
// cursor model and is used by the tests of every layer above it.
package memory

import (
	"context"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	vfs "github.com/worldiety/forestvfs"
)

// Type is the backend type name to register the Factory under.
const Type = "memory"

// ErrUnavailable is the transport failure returned by a backend which has been taken down with SetDown.
var ErrUnavailable = errors.New("memory backend unavailable")

var _ vfs.Backend = (*Backend)(nil)

type node struct {
	dir      bool
	children map[string]*node
	data     []byte
	perm     os.FileMode
	accessed time.Time
	modified time.Time
	changed  time.Time
}

func (n *node) metadata() vfs.Metadata {
	md := vfs.Metadata{
		Type:        vfs.TypeFile,
		Size:        uint64(len(n.data)),
		Accessed:    n.accessed,
		Modified:    n.modified,
		Changed:     n.changed,
		Permissions: n.perm,
	}
	if n.dir {
		md.Type = vfs.TypeDir
		md.Size = 0
		md.Permissions |= os.ModeDir
	}
	return md
}

// A Backend is one in-memory storage. The zero value is not usable, use New.
type Backend struct {
	mutex    sync.Mutex
	root     *node
	down     bool
	capacity uint64
	logger   *zap.Logger
	now      func() time.Time
}

// An Option configures a Backend.
type Option func(b *Backend)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(b *Backend) {
		b.logger = logger
	}
}

// WithCapacity sets the number of bytes reported as total by StatFS. Writes are not limited.
func WithCapacity(bytes uint64) Option {
	return func(b *Backend) {
		b.capacity = bytes
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(b *Backend) {
		b.now = now
	}
}

func New(opts ...Option) *Backend {
	b := &Backend{
		logger:   zap.NewNop(),
		now:      time.Now,
		capacity: 1 << 30,
	}
	for _, opt := range opts {
		opt(b)
	}
	now := b.now()
	b.root = &node{dir: true, children: make(map[string]*node), perm: 0o755, accessed: now, modified: now, changed: now}
	return b
}

// SetDown simulates an outage: while down, every call fails with ErrUnavailable. Open descriptors are not affected.
func (b *Backend) SetDown(down bool) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.down = down
	b.logger.Info("availability changed", zap.Bool("down", down))
}

// lock acquires the backend or fails if it is down. Callers must unlock on success.
func (b *Backend) lock() error {
	b.mutex.Lock()
	if b.down {
		b.mutex.Unlock()
		return errors.WithStack(ErrUnavailable)
	}
	return nil
}

// find walks to path, failing with NoSuchPath or NotADirectory.
func (b *Backend) find(op string, path vfs.Path) (*node, error) {
	n := b.root
	for _, name := range path.Names() {
		if !n.dir {
			return nil, vfs.NewError(vfs.KindNotADirectory, op, path)
		}
		child, ok := n.children[name]
		if !ok {
			return nil, vfs.NewError(vfs.KindNoSuchPath, op, path)
		}
		n = child
	}
	return n, nil
}

// findParent returns the directory which contains path.
func (b *Backend) findParent(op string, path vfs.Path) (*node, error) {
	parent, err := b.find(op, path.Parent())
	if err != nil {
		if vfs.KindOf(err) == vfs.KindNoSuchPath {
			return nil, vfs.NewError(vfs.KindParentDoesNotExist, op, path)
		}
		return nil, err
	}
	if !parent.dir {
		return nil, vfs.NewError(vfs.KindNotADirectory, op, path)
	}
	return parent, nil
}

func (b *Backend) ReadDir(ctx context.Context, path vfs.Path) ([]vfs.DirEntry, error) {
	if err := b.lock(); err != nil {
		return nil, err
	}
	defer b.mutex.Unlock()

	n, err := b.find("read_dir", path)
	if err != nil {
		return nil, err
	}
	if !n.dir {
		return nil, vfs.NewError(vfs.KindNotADirectory, "read_dir", path)
	}
	res := make([]vfs.DirEntry, 0, len(n.children))
	for name, child := range n.children {
		res = append(res, vfs.DirEntry{Name: name, Metadata: child.metadata()})
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Name < res[j].Name })
	n.accessed = b.now()
	return res, nil
}

func (b *Backend) Metadata(ctx context.Context, path vfs.Path) (vfs.Metadata, error) {
	if err := b.lock(); err != nil {
		return vfs.Metadata{}, err
	}
	defer b.mutex.Unlock()

	n, err := b.find("metadata", path)
	if err != nil {
		return vfs.Metadata{}, err
	}
	return n.metadata(), nil
}

func (b *Backend) Open(ctx context.Context, path vfs.Path, flags vfs.OpenFlags) (vfs.FileDescriptor, error) {
	if err := b.lock(); err != nil {
		return nil, err
	}
	defer b.mutex.Unlock()

	n, err := b.find("open", path)
	if err != nil {
		return nil, err
	}
	if n.dir {
		return nil, vfs.NewError(vfs.KindNotAFile, "open", path)
	}
	if flags.Truncate && flags.Write {
		n.data = nil
		n.modified = b.now()
	}
	return &descriptor{backend: b, file: n, flags: flags}, nil
}

func (b *Backend) CreateDir(ctx context.Context, path vfs.Path) error {
	if err := b.lock(); err != nil {
		return err
	}
	defer b.mutex.Unlock()

	if path.IsRoot() {
		return vfs.NewError(vfs.KindPathAlreadyExists, "create_dir", path)
	}
	parent, err := b.findParent("create_dir", path)
	if err != nil {
		return err
	}
	if _, exists := parent.children[path.Name()]; exists {
		return vfs.NewError(vfs.KindPathAlreadyExists, "create_dir", path)
	}
	now := b.now()
	parent.children[path.Name()] = &node{dir: true, children: make(map[string]*node), perm: 0o755, accessed: now, modified: now, changed: now}
	parent.modified = now
	return nil
}

func (b *Backend) RemoveDir(ctx context.Context, path vfs.Path) error {
	if err := b.lock(); err != nil {
		return err
	}
	defer b.mutex.Unlock()

	if path.IsRoot() {
		return vfs.NewError(vfs.KindNotSupported, "remove_dir", path)
	}
	n, err := b.find("remove_dir", path)
	if err != nil {
		return err
	}
	if !n.dir {
		return vfs.NewError(vfs.KindNotADirectory, "remove_dir", path)
	}
	if len(n.children) > 0 {
		return vfs.NewError(vfs.KindDirNotEmpty, "remove_dir", path)
	}
	parent, _ := b.find("remove_dir", path.Parent())
	delete(parent.children, path.Name())
	parent.modified = b.now()
	return nil
}

func (b *Backend) CreateFile(ctx context.Context, path vfs.Path) (vfs.FileDescriptor, error) {
	if err := b.lock(); err != nil {
		return nil, err
	}
	defer b.mutex.Unlock()

	if path.IsRoot() {
		return nil, vfs.NewError(vfs.KindNotAFile, "create_file", path)
	}
	parent, err := b.findParent("create_file", path)
	if err != nil {
		return nil, err
	}
	now := b.now()
	n, exists := parent.children[path.Name()]
	switch {
	case exists && n.dir:
		return nil, vfs.NewError(vfs.KindNotAFile, "create_file", path)
	case exists:
		n.data = nil
		n.modified = now
	default:
		n = &node{perm: 0o644, accessed: now, modified: now, changed: now}
		parent.children[path.Name()] = n
		parent.modified = now
	}
	return &descriptor{backend: b, file: n, flags: vfs.ReadWrite}, nil
}

func (b *Backend) RemoveFile(ctx context.Context, path vfs.Path) error {
	if err := b.lock(); err != nil {
		return err
	}
	defer b.mutex.Unlock()

	n, err := b.find("remove_file", path)
	if err != nil {
		return err
	}
	if n.dir {
		return vfs.NewError(vfs.KindNotAFile, "remove_file", path)
	}
	parent, _ := b.find("remove_file", path.Parent())
	delete(parent.children, path.Name())
	parent.modified = b.now()
	return nil
}

func (b *Backend) Rename(ctx context.Context, src, dst vfs.Path) error {
	if err := b.lock(); err != nil {
		return err
	}
	defer b.mutex.Unlock()

	if src.IsRoot() {
		return vfs.NewError(vfs.KindNotSupported, "rename", src)
	}
	if dst.StartsWith(src) && !dst.Equals(src) {
		return vfs.NewError(vfs.KindSourceIsParentOfTarget, "rename", src)
	}
	n, err := b.find("rename", src)
	if err != nil {
		return err
	}
	if dst.Equals(src) {
		return nil
	}
	target, err := b.findParent("rename", dst)
	if err != nil {
		return err
	}
	if _, exists := target.children[dst.Name()]; exists {
		return vfs.NewError(vfs.KindTargetPathAlreadyExists, "rename", dst)
	}
	source, _ := b.find("rename", src.Parent())
	delete(source.children, src.Name())
	target.children[dst.Name()] = n
	now := b.now()
	source.modified = now
	target.modified = now
	n.changed = now
	return nil
}

func (b *Backend) SetPermissions(ctx context.Context, path vfs.Path, perm os.FileMode) error {
	if err := b.lock(); err != nil {
		return err
	}
	defer b.mutex.Unlock()

	n, err := b.find("set_permissions", path)
	if err != nil {
		return err
	}
	n.perm = perm.Perm()
	n.changed = b.now()
	return nil
}

func (b *Backend) StatFS(ctx context.Context) (vfs.FilesystemStats, error) {
	if err := b.lock(); err != nil {
		return vfs.FilesystemStats{}, err
	}
	defer b.mutex.Unlock()

	var used, files uint64
	var walk func(n *node)
	walk = func(n *node) {
		files++
		used += uint64(len(n.data))
		for _, child := range n.children {
			walk(child)
		}
	}
	walk(b.root)
	stats := vfs.FilesystemStats{TotalBytes: b.capacity, TotalFiles: files}
	if used < b.capacity {
		stats.FreeBytes = b.capacity - used
	}
	return stats, nil
}

// A Pool hands out one Backend per storage UUID, so that all engines of a process see the same data.
type Pool struct {
	mutex    sync.Mutex
	opts     []Option
	backends map[uuid.UUID]*Backend
}

// NewPool creates a pool whose backends are created with opts.
func NewPool(opts ...Option) *Pool {
	return &Pool{opts: opts, backends: make(map[uuid.UUID]*Backend)}
}

// Get returns the backend of a storage, creating it on first use.
func (p *Pool) Get(storage uuid.UUID) *Backend {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	b, ok := p.backends[storage]
	if !ok {
		b = New(p.opts...)
		p.backends[storage] = b
	}
	return b
}

// Factory is a vfs.Factory backed by the pool.
func (p *Pool) Factory(ctx context.Context, storage vfs.Storage) (vfs.Backend, error) {
	return p.Get(storage.UUID), nil
}
