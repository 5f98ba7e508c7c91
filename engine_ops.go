package vfs

import (
	"context"
	"io"
	"os"
	"sort"

	"github.com/pkg/errors"
)

// virtualMetadata is what a directory which only exists because of its descendants looks like.
var virtualMetadata = Metadata{Type: TypeDir, Permissions: os.ModeDir | 0o555}

// ReadDir lists the directory at the exposed path. Entry names are exposed names: escaped, and tagged where a
// child collides with another container claiming the same name.
func (e *Engine) ReadDir(ctx context.Context, path Path) ([]DirEntry, error) {
	const op = "read_dir"
	l, err := e.lookup(ctx, op, path)
	if err != nil {
		return nil, err
	}
	node, ok := e.target(l)
	if !ok {
		return nil, NewError(KindNoSuchPath, op, l.exposed)
	}
	switch n := node.(type) {
	case *VirtualNode:
		return e.virtualEntries(ctx, op, l)
	case *PhysicalNode:
		entries, err := execute(ctx, e, op, l.exposed, n, func(ctx context.Context, b Backend, inner Path) ([]DirEntry, error) {
			return b.ReadDir(ctx, inner)
		})
		if err != nil {
			return nil, err
		}
		res := make([]DirEntry, len(entries))
		for i, entry := range entries {
			res[i] = DirEntry{Name: e.translator.EscapeName(entry.Name), Metadata: entry.Metadata}
		}
		sort.Slice(res, func(i, j int) bool { return res[i].Name < res[j].Name })
		return res, nil
	default:
		return nil, NewError(KindNoSuchPath, op, l.exposed)
	}
}

// virtualEntries lists the claims and virtual directories below a virtual directory. Every child is resolved and
// conflict-solved on its own, and only those exposures which are located directly below the requested directory are
// listed. Claim roots are reported as directories without asking their backends.
func (e *Engine) virtualEntries(ctx context.Context, op string, l *lookup) ([]DirEntry, error) {
	names, err := e.resolver.Children(ctx, l.absolute)
	if err != nil {
		return nil, errors.Wrapf(err, "%s: children of %s", op, l.absolute)
	}
	sort.Strings(names)
	var res []DirEntry
	for _, name := range names {
		child := l.absolute.Child(name)
		resolved, err := e.resolver.Resolve(ctx, child)
		if err != nil {
			return nil, errors.Wrapf(err, "%s: resolve %s", op, child)
		}
		for _, exposure := range e.translator.SolveConflicts(nodesOf(child, resolved)) {
			if !exposure.Ok || !exposure.Exposed.Parent().Equals(l.exposed) {
				continue
			}
			res = append(res, DirEntry{Name: exposure.Exposed.Name(), Metadata: virtualMetadata})
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Name < res[j].Name })
	return res, nil
}

// Metadata returns the stat information of the exposed path.
func (e *Engine) Metadata(ctx context.Context, path Path) (Metadata, error) {
	const op = "metadata"
	l, err := e.lookup(ctx, op, path)
	if err != nil {
		return Metadata{}, err
	}
	node, ok := e.target(l)
	if !ok {
		return Metadata{}, NewError(KindNoSuchPath, op, l.exposed)
	}
	n, ok := node.(*PhysicalNode)
	if !ok {
		return virtualMetadata, nil
	}
	return execute(ctx, e, op, l.exposed, n, func(ctx context.Context, b Backend, inner Path) (Metadata, error) {
		return b.Metadata(ctx, inner)
	})
}

// Open opens an existing file for reading and writing, with the cursor at the start. Every call yields an
// independent cursor.
func (e *Engine) Open(ctx context.Context, path Path) (Handle, error) {
	const op = "open"
	l, err := e.lookup(ctx, op, path)
	if err != nil {
		return 0, err
	}
	node, ok := e.target(l)
	if !ok {
		return 0, NewError(KindNoSuchPath, op, l.exposed)
	}
	n, ok := node.(*PhysicalNode)
	if !ok {
		return 0, NewError(KindNoSuchPath, op, l.exposed)
	}
	descriptor, err := execute(ctx, e, op, l.exposed, n, func(ctx context.Context, b Backend, inner Path) (FileDescriptor, error) {
		return b.Open(ctx, inner, ReadWrite)
	})
	if err != nil {
		return 0, err
	}
	return e.handles.add(&openFile{descriptor: descriptor, exposed: l.exposed}), nil
}

// CreateFile creates an empty file, or truncates an existing one, and opens it for reading and writing.
func (e *Engine) CreateFile(ctx context.Context, path Path) (Handle, error) {
	const op = "create_file"
	l, err := e.lookup(ctx, op, path)
	if err != nil {
		return 0, err
	}
	if len(l.nodes) == 0 {
		return 0, e.unclaimed(ctx, op, l)
	}
	node, err := e.mutable(op, l)
	if err != nil {
		return 0, err
	}
	n, ok := node.(*PhysicalNode)
	if !ok {
		return 0, NewError(KindReadOnlyPath, op, l.exposed)
	}
	descriptor, err := execute(ctx, e, op, l.exposed, n, func(ctx context.Context, b Backend, inner Path) (FileDescriptor, error) {
		return b.CreateFile(ctx, inner)
	})
	if err != nil {
		return 0, err
	}
	return e.handles.add(&openFile{descriptor: descriptor, exposed: l.exposed}), nil
}

// MaxReadChunk bounds the bytes returned by a single Read, larger counts are served partially.
const MaxReadChunk = 1 << 20

// Read reads up to count bytes at the cursor of h. The result is shorter at the end of the file and empty
// beyond it. At most MaxReadChunk bytes are returned per call.
func (e *Engine) Read(h Handle, count int) ([]byte, error) {
	const op = "read"
	f, ok := e.handles.get(h)
	if !ok {
		return nil, NewError(KindBadHandle, op, "")
	}
	if count <= 0 {
		return []byte{}, nil
	}
	if count > MaxReadChunk {
		count = MaxReadChunk
	}
	buf := make([]byte, count)
	n := 0
	err := f.use(func(d FileDescriptor) error {
		var err error
		n, err = d.Read(buf)
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	})
	if err != nil {
		return nil, descriptorError(err, op, f.exposed)
	}
	return buf[:n], nil
}

// Write writes data at the cursor of h, extending the file if needed, and returns the number of written bytes.
func (e *Engine) Write(h Handle, data []byte) (int, error) {
	const op = "write"
	f, ok := e.handles.get(h)
	if !ok {
		return 0, NewError(KindBadHandle, op, "")
	}
	n := 0
	err := f.use(func(d FileDescriptor) error {
		var err error
		n, err = d.Write(data)
		return err
	})
	if err != nil {
		return n, descriptorError(err, op, f.exposed)
	}
	return n, nil
}

// Seek moves the cursor of h and returns the new absolute position.
func (e *Engine) Seek(h Handle, pos SeekFrom) (int64, error) {
	const op = "seek"
	f, ok := e.handles.get(h)
	if !ok {
		return 0, NewError(KindBadHandle, op, "")
	}
	var next int64
	err := f.use(func(d FileDescriptor) error {
		var err error
		next, err = d.Seek(pos)
		return err
	})
	if err != nil {
		return 0, descriptorError(err, op, f.exposed)
	}
	return next, nil
}

// Close releases h. Closing an unknown or already closed handle is a no-op.
func (e *Engine) Close(h Handle) error {
	f, ok := e.handles.take(h)
	if !ok {
		return nil
	}
	if err := f.release(); err != nil {
		return descriptorError(err, "close", f.exposed)
	}
	return nil
}

// descriptorError relabels logical descriptor failures. There is no replica to fall back to once a file is open,
// so transport failures are only wrapped.
func descriptorError(err error, op string, path Path) error {
	if IsLogical(err) {
		return relabel(err, op, path)
	}
	return errors.Wrapf(err, "%s %s", op, path)
}

// CreateDir creates a single directory. The parent must exist.
func (e *Engine) CreateDir(ctx context.Context, path Path) error {
	const op = "create_dir"
	l, err := e.lookup(ctx, op, path)
	if err != nil {
		return err
	}
	if len(l.nodes) == 0 {
		return e.unclaimed(ctx, op, l)
	}
	node, err := e.mutable(op, l)
	if err != nil {
		return err
	}
	n, ok := node.(*PhysicalNode)
	if !ok {
		return NewError(KindPathAlreadyExists, op, l.exposed)
	}
	_, err = execute(ctx, e, op, l.exposed, n, func(ctx context.Context, b Backend, inner Path) (struct{}, error) {
		return struct{}{}, b.CreateDir(ctx, inner)
	})
	return err
}

// RemoveDir removes an empty directory. Container roots belong to the catalog and cannot be removed.
func (e *Engine) RemoveDir(ctx context.Context, path Path) error {
	const op = "remove_dir"
	n, l, err := e.physicalMutation(ctx, op, path)
	if err != nil {
		return err
	}
	if n.Storages().Path.IsRoot() {
		return NewError(KindReadOnlyPath, op, l.exposed)
	}
	_, err = execute(ctx, e, op, l.exposed, n, func(ctx context.Context, b Backend, inner Path) (struct{}, error) {
		return struct{}{}, b.RemoveDir(ctx, inner)
	})
	return err
}

// RemoveFile removes a file.
func (e *Engine) RemoveFile(ctx context.Context, path Path) error {
	const op = "remove_file"
	n, l, err := e.physicalMutation(ctx, op, path)
	if err != nil {
		return err
	}
	_, err = execute(ctx, e, op, l.exposed, n, func(ctx context.Context, b Backend, inner Path) (struct{}, error) {
		return struct{}{}, b.RemoveFile(ctx, inner)
	})
	return err
}

// SetPermissions changes the permission bits of a file or directory.
func (e *Engine) SetPermissions(ctx context.Context, path Path, perm os.FileMode) error {
	const op = "set_permissions"
	n, l, err := e.physicalMutation(ctx, op, path)
	if err != nil {
		return err
	}
	_, err = execute(ctx, e, op, l.exposed, n, func(ctx context.Context, b Backend, inner Path) (struct{}, error) {
		return struct{}{}, b.SetPermissions(ctx, inner, perm.Perm())
	})
	return err
}

// physicalMutation selects the single physical node an in-place mutation addresses.
func (e *Engine) physicalMutation(ctx context.Context, op string, path Path) (*PhysicalNode, *lookup, error) {
	l, err := e.lookup(ctx, op, path)
	if err != nil {
		return nil, nil, err
	}
	node, err := e.mutable(op, l)
	if err != nil {
		return nil, nil, err
	}
	n, ok := node.(*PhysicalNode)
	if !ok {
		return nil, nil, NewError(KindReadOnlyPath, op, l.exposed)
	}
	return n, l, nil
}

// Rename moves a file or directory within one container. Use Copy to move data between containers.
func (e *Engine) Rename(ctx context.Context, src, dst Path) error {
	const op = "rename"
	ls, err := e.lookup(ctx, op, src)
	if err != nil {
		return err
	}
	ld, err := e.lookup(ctx, op, dst)
	if err != nil {
		return err
	}
	srcNode, err := e.mutable(op, ls)
	if err != nil {
		return err
	}
	from, ok := srcNode.(*PhysicalNode)
	if !ok || from.Storages().Path.IsRoot() {
		return NewError(KindReadOnlyPath, op, ls.exposed)
	}
	dstNode, err := e.mutable(op, ld)
	if err != nil {
		return NewError(KindReadOnlyPath, op, ld.exposed)
	}
	to, ok := dstNode.(*PhysicalNode)
	if !ok || from.Storages().ContainerUUID != to.Storages().ContainerUUID {
		return NewError(KindReadOnlyPath, op, ld.exposed)
	}
	if ld.absolute.StartsWith(ls.absolute) && !ld.absolute.Equals(ls.absolute) {
		return NewError(KindSourceIsParentOfTarget, op, ls.exposed)
	}
	target := to.Storages().Path
	_, err = execute(ctx, e, op, ls.exposed, from, func(ctx context.Context, b Backend, inner Path) (struct{}, error) {
		return struct{}{}, b.Rename(ctx, inner, target)
	})
	return err
}

// StatFS returns the capacity of the first responsive replica of the container claiming path. Virtual directories
// have no capacity of their own.
func (e *Engine) StatFS(ctx context.Context, path Path) (FilesystemStats, error) {
	const op = "statfs"
	l, err := e.lookup(ctx, op, path)
	if err != nil {
		return FilesystemStats{}, err
	}
	node, ok := e.target(l)
	if !ok {
		return FilesystemStats{}, NewError(KindNoSuchPath, op, l.exposed)
	}
	n, ok := node.(*PhysicalNode)
	if !ok {
		return FilesystemStats{}, NewError(KindNotSupported, op, l.exposed)
	}
	return execute(ctx, e, op, l.exposed, n, func(ctx context.Context, b Backend, _ Path) (FilesystemStats, error) {
		return b.StatFS(ctx)
	})
}

// Touch is a shortcut which creates path if needed, without truncating existing content, and returns its metadata.
func (e *Engine) Touch(ctx context.Context, path Path) (Metadata, error) {
	if _, err := e.Metadata(ctx, path); errors.Is(err, ErrNoSuchPath) {
		h, err := e.CreateFile(ctx, path)
		if err != nil {
			return Metadata{}, err
		}
		if err := e.Close(h); err != nil {
			return Metadata{}, err
		}
	} else if err != nil {
		return Metadata{}, err
	}
	return e.Metadata(ctx, path)
}
