// Package local contains a vfs.Backend which works with a directory of the local filesystem.
package local

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	vfs "github.com/worldiety/forestvfs"
)

// Type is the backend type name to register the Factory under.
const Type = "local"

// PayloadRoot is the storage payload key naming the directory to serve.
const PayloadRoot = "root"

var _ vfs.Backend = (*Backend)(nil)

// A Backend serves the directory Prefix. Paths are always resolved below Prefix, relative segments are ignored.
type Backend struct {
	Prefix string
	logger *zap.Logger
}

// New checks that prefix is a directory and returns a backend serving it.
func New(prefix string, logger *zap.Logger) (*Backend, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	info, err := os.Stat(prefix)
	if err != nil {
		return nil, errors.Wrapf(err, "local backend root %s", prefix)
	}
	if !info.IsDir() {
		return nil, errors.Errorf("local backend root %s is not a directory", prefix)
	}
	return &Backend{Prefix: prefix, logger: logger}, nil
}

// NewFactory returns a vfs.Factory which creates backends from the "root" payload of a storage.
func NewFactory(logger *zap.Logger) vfs.Factory {
	return func(ctx context.Context, storage vfs.Storage) (vfs.Backend, error) {
		root := storage.PayloadValue(PayloadRoot)
		if root == "" {
			return nil, errors.Errorf("storage %s: missing payload %q", storage, PayloadRoot)
		}
		return New(root, logger.With(zap.Stringer("storage", storage)))
	}
}

// Resolve creates a platform specific filename from the given invariant path by adding the Prefix and using
// the platform specific name separator.
func (b *Backend) Resolve(path vfs.Path) string {
	names := make([]string, 0, path.NameCount())
	for _, name := range path.Names() {
		if name == "." || name == ".." {
			continue
		}
		names = append(names, name)
	}
	return filepath.Join(b.Prefix, filepath.Join(names...))
}

// translate maps os errors to logical outcomes. Everything unknown is a transport failure.
func translate(op string, path vfs.Path, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, fs.ErrNotExist):
		return vfs.NewError(vfs.KindNoSuchPath, op, path)
	case errors.Is(err, fs.ErrExist):
		return vfs.NewError(vfs.KindPathAlreadyExists, op, path)
	}
	if kind, ok := errnoKind(err); ok {
		return vfs.NewError(kind, op, path)
	}
	return errors.Wrapf(err, "%s %s", op, path)
}

func (b *Backend) stat(op string, path vfs.Path) (os.FileInfo, error) {
	info, err := os.Lstat(b.Resolve(path))
	if err != nil {
		return nil, translate(op, path, err)
	}
	return info, nil
}

// parent ensures that the parent of path is an existing directory.
func (b *Backend) parent(op string, path vfs.Path) error {
	info, err := b.stat(op, path.Parent())
	switch {
	case vfs.KindOf(err) == vfs.KindNoSuchPath:
		return vfs.NewError(vfs.KindParentDoesNotExist, op, path)
	case err != nil:
		return err
	case !info.IsDir():
		return vfs.NewError(vfs.KindNotADirectory, op, path)
	}
	return nil
}

func metadataOf(info os.FileInfo) vfs.Metadata {
	md := vfs.Metadata{
		Type:        vfs.TypeFile,
		Size:        uint64(info.Size()),
		Modified:    info.ModTime(),
		Permissions: info.Mode() & (os.ModePerm | os.ModeDir),
	}
	switch {
	case info.IsDir():
		md.Type = vfs.TypeDir
		md.Size = 0
	case info.Mode()&os.ModeSymlink != 0:
		md.Type = vfs.TypeSymlink
	}
	fillTimes(info, &md)
	return md
}

func (b *Backend) ReadDir(ctx context.Context, path vfs.Path) ([]vfs.DirEntry, error) {
	info, err := b.stat("read_dir", path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, vfs.NewError(vfs.KindNotADirectory, "read_dir", path)
	}
	list, err := os.ReadDir(b.Resolve(path))
	if err != nil {
		return nil, translate("read_dir", path, err)
	}
	res := make([]vfs.DirEntry, 0, len(list))
	for _, entry := range list {
		info, err := entry.Info()
		if err != nil {
			// removed concurrently
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, translate("read_dir", path, err)
		}
		res = append(res, vfs.DirEntry{Name: entry.Name(), Metadata: metadataOf(info)})
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Name < res[j].Name })
	return res, nil
}

func (b *Backend) Metadata(ctx context.Context, path vfs.Path) (vfs.Metadata, error) {
	info, err := b.stat("metadata", path)
	if err != nil {
		return vfs.Metadata{}, err
	}
	return metadataOf(info), nil
}

func (b *Backend) Open(ctx context.Context, path vfs.Path, flags vfs.OpenFlags) (vfs.FileDescriptor, error) {
	info, err := b.stat("open", path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, vfs.NewError(vfs.KindNotAFile, "open", path)
	}
	mode := os.O_RDONLY
	switch {
	case flags.Write && flags.Read:
		mode = os.O_RDWR
	case flags.Write:
		mode = os.O_WRONLY
	}
	if flags.Write && flags.Truncate {
		mode |= os.O_TRUNC
	}
	f, err := os.OpenFile(b.Resolve(path), mode, 0)
	if err != nil {
		return nil, translate("open", path, err)
	}
	return &descriptor{file: f, path: path}, nil
}

func (b *Backend) CreateDir(ctx context.Context, path vfs.Path) error {
	if path.IsRoot() {
		return vfs.NewError(vfs.KindPathAlreadyExists, "create_dir", path)
	}
	if err := b.parent("create_dir", path); err != nil {
		return err
	}
	return translate("create_dir", path, os.Mkdir(b.Resolve(path), 0o755))
}

func (b *Backend) RemoveDir(ctx context.Context, path vfs.Path) error {
	if path.IsRoot() {
		return vfs.NewError(vfs.KindNotSupported, "remove_dir", path)
	}
	info, err := b.stat("remove_dir", path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return vfs.NewError(vfs.KindNotADirectory, "remove_dir", path)
	}
	err = os.Remove(b.Resolve(path))
	if vfs.KindOf(translate("remove_dir", path, err)) == vfs.KindPathAlreadyExists {
		// some platforms report a non-empty directory with EEXIST
		return vfs.NewError(vfs.KindDirNotEmpty, "remove_dir", path)
	}
	return translate("remove_dir", path, err)
}

func (b *Backend) CreateFile(ctx context.Context, path vfs.Path) (vfs.FileDescriptor, error) {
	if path.IsRoot() {
		return nil, vfs.NewError(vfs.KindNotAFile, "create_file", path)
	}
	if err := b.parent("create_file", path); err != nil {
		return nil, err
	}
	if info, err := b.stat("create_file", path); err == nil && info.IsDir() {
		return nil, vfs.NewError(vfs.KindNotAFile, "create_file", path)
	}
	f, err := os.OpenFile(b.Resolve(path), os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, translate("create_file", path, err)
	}
	return &descriptor{file: f, path: path}, nil
}

func (b *Backend) RemoveFile(ctx context.Context, path vfs.Path) error {
	info, err := b.stat("remove_file", path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return vfs.NewError(vfs.KindNotAFile, "remove_file", path)
	}
	return translate("remove_file", path, os.Remove(b.Resolve(path)))
}

func (b *Backend) Rename(ctx context.Context, src, dst vfs.Path) error {
	if src.IsRoot() {
		return vfs.NewError(vfs.KindNotSupported, "rename", src)
	}
	if dst.StartsWith(src) && !dst.Equals(src) {
		return vfs.NewError(vfs.KindSourceIsParentOfTarget, "rename", src)
	}
	if _, err := b.stat("rename", src); err != nil {
		return err
	}
	if dst.Equals(src) {
		return nil
	}
	if err := b.parent("rename", dst); err != nil {
		return err
	}
	if _, err := b.stat("rename", dst); err == nil {
		return vfs.NewError(vfs.KindTargetPathAlreadyExists, "rename", dst)
	}
	return translate("rename", src, os.Rename(b.Resolve(src), b.Resolve(dst)))
}

func (b *Backend) SetPermissions(ctx context.Context, path vfs.Path, perm os.FileMode) error {
	return translate("set_permissions", path, os.Chmod(b.Resolve(path), perm.Perm()))
}

func (b *Backend) StatFS(ctx context.Context) (vfs.FilesystemStats, error) {
	return statFS(b.Prefix)
}

type descriptor struct {
	file *os.File
	path vfs.Path
}

func (d *descriptor) Read(p []byte) (int, error) {
	n, err := d.file.Read(p)
	if err != nil && err != io.EOF {
		return n, translate("read", d.path, err)
	}
	return n, err
}

func (d *descriptor) Write(p []byte) (int, error) {
	n, err := d.file.Write(p)
	return n, translate("write", d.path, err)
}

func (d *descriptor) Seek(pos vfs.SeekFrom) (int64, error) {
	cur, err := d.file.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, translate("seek", d.path, err)
	}
	info, err := d.file.Stat()
	if err != nil {
		return cur, translate("seek", d.path, err)
	}
	next, ok := pos.Resolve(cur, info.Size())
	if !ok {
		return cur, vfs.NewError(vfs.KindInvalidSeek, "seek", d.path)
	}
	if _, err := d.file.Seek(next, io.SeekStart); err != nil {
		return cur, translate("seek", d.path, err)
	}
	return next, nil
}

func (d *descriptor) Close() error {
	return translate("close", d.path, d.file.Close())
}
