// Package objstore contains a vfs.Backend on top of a gocloud blob bucket, e.g. S3, a local directory or memory.
//
// Object stores have no directories. A directory is represented by an empty marker object whose key ends with a
// slash, e.g. "photos/2019/". Objects below a prefix without marker are reported as implicit directories. Files are
// loaded into memory when opened and uploaded on close if they have been written to.
package objstore

import (
	"context"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob" // file:// urls
	_ "gocloud.dev/blob/memblob"  // mem:// urls
	_ "gocloud.dev/blob/s3blob"   // s3:// urls
	"gocloud.dev/gcerrors"

	vfs "github.com/worldiety/forestvfs"
)

// Type is the backend type name to register the Factory under.
const Type = "objstore"

// PayloadURL is the storage payload key holding the bucket url, e.g. "s3://bucket?region=eu-central-1".
const PayloadURL = "url"

// DefaultCacheSize is the number of attribute entries kept per backend.
const DefaultCacheSize = 4096

const (
	metadataMode = "mode"
	defaultFile  = os.FileMode(0o644)
	defaultDir   = os.FileMode(0o755)
)

var _ vfs.Backend = (*Backend)(nil)

// A Backend serves one bucket.
type Backend struct {
	bucket *blob.Bucket
	attrs  *lru.Cache[string, vfs.Metadata]
	logger *zap.Logger
}

// New wraps an open bucket. The backend takes ownership of it, see Close.
func New(bucket *blob.Bucket, logger *zap.Logger) (*Backend, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	attrs, err := lru.New[string, vfs.Metadata](DefaultCacheSize)
	if err != nil {
		return nil, errors.Wrap(err, "attribute cache")
	}
	return &Backend{bucket: bucket, attrs: attrs, logger: logger}, nil
}

// Open opens the bucket at url and wraps it.
func Open(ctx context.Context, url string, logger *zap.Logger) (*Backend, error) {
	bucket, err := blob.OpenBucket(ctx, url)
	if err != nil {
		return nil, errors.Wrapf(err, "open bucket %s", url)
	}
	return New(bucket, logger)
}

// NewFactory returns a vfs.Factory which opens the bucket named by the "url" payload of a storage.
func NewFactory(logger *zap.Logger) vfs.Factory {
	return func(ctx context.Context, storage vfs.Storage) (vfs.Backend, error) {
		url := storage.PayloadValue(PayloadURL)
		if url == "" {
			return nil, errors.Errorf("storage %s: missing payload %q", storage, PayloadURL)
		}
		return Open(ctx, url, logger.With(zap.Stringer("storage", storage)))
	}
}

// Close closes the bucket.
func (b *Backend) Close() error {
	return errors.Wrap(b.bucket.Close(), "close bucket")
}

func fileKey(path vfs.Path) string {
	return strings.Join(path.Names(), "/")
}

func dirKey(path vfs.Path) string {
	if path.IsRoot() {
		return ""
	}
	return fileKey(path) + "/"
}

// translate maps bucket errors to logical outcomes. Everything unknown is a transport failure.
func translate(op string, path vfs.Path, err error) error {
	switch {
	case err == nil:
		return nil
	case gcerrors.Code(err) == gcerrors.NotFound:
		return vfs.NewError(vfs.KindNoSuchPath, op, path)
	}
	return errors.Wrapf(err, "%s %s", op, path)
}

func modeOf(md map[string]string, def os.FileMode) os.FileMode {
	if s, ok := md[metadataMode]; ok {
		if v, err := strconv.ParseUint(s, 8, 32); err == nil {
			return os.FileMode(v).Perm()
		}
	}
	return def
}

func modeMetadata(mode os.FileMode) map[string]string {
	return map[string]string{metadataMode: strconv.FormatUint(uint64(mode.Perm()), 8)}
}

// file returns the metadata of the file at path, or NoSuchPath.
func (b *Backend) file(ctx context.Context, op string, path vfs.Path) (vfs.Metadata, error) {
	key := fileKey(path)
	if key == "" {
		return vfs.Metadata{}, vfs.NewError(vfs.KindNoSuchPath, op, path)
	}
	if md, ok := b.attrs.Get(key); ok {
		return md, nil
	}
	attrs, err := b.bucket.Attributes(ctx, key)
	if err != nil {
		return vfs.Metadata{}, translate(op, path, err)
	}
	md := vfs.Metadata{
		Type:        vfs.TypeFile,
		Size:        uint64(attrs.Size),
		Modified:    attrs.ModTime,
		Changed:     attrs.ModTime,
		Permissions: modeOf(attrs.Metadata, defaultFile),
	}
	b.attrs.Add(key, md)
	return md, nil
}

// dir returns the metadata of the directory at path, which either has a marker or contains objects.
func (b *Backend) dir(ctx context.Context, op string, path vfs.Path) (vfs.Metadata, error) {
	md := vfs.Metadata{Type: vfs.TypeDir, Permissions: os.ModeDir | defaultDir}
	if path.IsRoot() {
		return md, nil
	}
	attrs, err := b.bucket.Attributes(ctx, dirKey(path))
	if err == nil {
		md.Modified = attrs.ModTime
		md.Changed = attrs.ModTime
		md.Permissions = os.ModeDir | modeOf(attrs.Metadata, defaultDir)
		return md, nil
	}
	if gcerrors.Code(err) != gcerrors.NotFound {
		return vfs.Metadata{}, translate(op, path, err)
	}
	iter := b.bucket.List(&blob.ListOptions{Prefix: dirKey(path)})
	if _, err := iter.Next(ctx); err != nil {
		if err == io.EOF {
			return vfs.Metadata{}, vfs.NewError(vfs.KindNoSuchPath, op, path)
		}
		return vfs.Metadata{}, translate(op, path, err)
	}
	return md, nil
}

// stat looks for a file first and for a directory afterwards.
func (b *Backend) stat(ctx context.Context, op string, path vfs.Path) (vfs.Metadata, error) {
	md, err := b.file(ctx, op, path)
	if vfs.KindOf(err) != vfs.KindNoSuchPath {
		return md, err
	}
	return b.dir(ctx, op, path)
}

// parent ensures that the parent of path is an existing directory.
func (b *Backend) parent(ctx context.Context, op string, path vfs.Path) error {
	md, err := b.stat(ctx, op, path.Parent())
	switch {
	case vfs.KindOf(err) == vfs.KindNoSuchPath:
		return vfs.NewError(vfs.KindParentDoesNotExist, op, path)
	case err != nil:
		return err
	case !md.IsDir():
		return vfs.NewError(vfs.KindNotADirectory, op, path)
	}
	return nil
}

func (b *Backend) ReadDir(ctx context.Context, path vfs.Path) ([]vfs.DirEntry, error) {
	md, err := b.stat(ctx, "read_dir", path)
	if err != nil {
		return nil, err
	}
	if !md.IsDir() {
		return nil, vfs.NewError(vfs.KindNotADirectory, "read_dir", path)
	}
	prefix := dirKey(path)
	iter := b.bucket.List(&blob.ListOptions{Prefix: prefix, Delimiter: "/"})
	var res []vfs.DirEntry
	for {
		obj, err := iter.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, translate("read_dir", path, err)
		}
		if obj.Key == prefix {
			continue
		}
		name := strings.TrimSuffix(strings.TrimPrefix(obj.Key, prefix), "/")
		if obj.IsDir {
			res = append(res, vfs.DirEntry{Name: name, Metadata: vfs.Metadata{Type: vfs.TypeDir, Permissions: os.ModeDir | defaultDir}})
			continue
		}
		entry := vfs.Metadata{Type: vfs.TypeFile, Size: uint64(obj.Size), Modified: obj.ModTime, Changed: obj.ModTime, Permissions: defaultFile}
		if cached, ok := b.attrs.Get(obj.Key); ok {
			entry.Permissions = cached.Permissions
		}
		res = append(res, vfs.DirEntry{Name: name, Metadata: entry})
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Name < res[j].Name })
	return res, nil
}

func (b *Backend) Metadata(ctx context.Context, path vfs.Path) (vfs.Metadata, error) {
	return b.stat(ctx, "metadata", path)
}

func (b *Backend) Open(ctx context.Context, path vfs.Path, flags vfs.OpenFlags) (vfs.FileDescriptor, error) {
	md, err := b.stat(ctx, "open", path)
	if err != nil {
		return nil, err
	}
	if md.IsDir() {
		return nil, vfs.NewError(vfs.KindNotAFile, "open", path)
	}
	d := &descriptor{backend: b, path: path, key: fileKey(path), flags: flags, mode: md.Permissions}
	if flags.Write && flags.Truncate {
		d.dirty = true
		return d, nil
	}
	data, err := b.bucket.ReadAll(ctx, d.key)
	if err != nil {
		return nil, translate("open", path, err)
	}
	d.data = data
	return d, nil
}

func (b *Backend) CreateDir(ctx context.Context, path vfs.Path) error {
	if path.IsRoot() {
		return vfs.NewError(vfs.KindPathAlreadyExists, "create_dir", path)
	}
	if err := b.parent(ctx, "create_dir", path); err != nil {
		return err
	}
	_, err := b.stat(ctx, "create_dir", path)
	switch {
	case err == nil:
		return vfs.NewError(vfs.KindPathAlreadyExists, "create_dir", path)
	case vfs.KindOf(err) != vfs.KindNoSuchPath:
		return err
	}
	err = b.bucket.WriteAll(ctx, dirKey(path), nil, &blob.WriterOptions{Metadata: modeMetadata(defaultDir)})
	return translate("create_dir", path, err)
}

func (b *Backend) RemoveDir(ctx context.Context, path vfs.Path) error {
	if path.IsRoot() {
		return vfs.NewError(vfs.KindNotSupported, "remove_dir", path)
	}
	md, err := b.stat(ctx, "remove_dir", path)
	if err != nil {
		return err
	}
	if !md.IsDir() {
		return vfs.NewError(vfs.KindNotADirectory, "remove_dir", path)
	}
	prefix := dirKey(path)
	iter := b.bucket.List(&blob.ListOptions{Prefix: prefix})
	for {
		obj, err := iter.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return translate("remove_dir", path, err)
		}
		if obj.Key != prefix {
			return vfs.NewError(vfs.KindDirNotEmpty, "remove_dir", path)
		}
	}
	err = b.bucket.Delete(ctx, prefix)
	if gcerrors.Code(err) == gcerrors.NotFound {
		// implicit directory, it vanished with its last object
		return nil
	}
	return translate("remove_dir", path, err)
}

func (b *Backend) CreateFile(ctx context.Context, path vfs.Path) (vfs.FileDescriptor, error) {
	if path.IsRoot() {
		return nil, vfs.NewError(vfs.KindNotAFile, "create_file", path)
	}
	if err := b.parent(ctx, "create_file", path); err != nil {
		return nil, err
	}
	mode := defaultFile
	md, err := b.stat(ctx, "create_file", path)
	switch {
	case err == nil && md.IsDir():
		return nil, vfs.NewError(vfs.KindNotAFile, "create_file", path)
	case err == nil:
		mode = md.Permissions
	case vfs.KindOf(err) != vfs.KindNoSuchPath:
		return nil, err
	}
	key := fileKey(path)
	if err := b.bucket.WriteAll(ctx, key, nil, &blob.WriterOptions{Metadata: modeMetadata(mode)}); err != nil {
		return nil, translate("create_file", path, err)
	}
	b.attrs.Remove(key)
	return &descriptor{backend: b, path: path, key: key, flags: vfs.ReadWrite, mode: mode}, nil
}

func (b *Backend) RemoveFile(ctx context.Context, path vfs.Path) error {
	md, err := b.stat(ctx, "remove_file", path)
	if err != nil {
		return err
	}
	if md.IsDir() {
		return vfs.NewError(vfs.KindNotAFile, "remove_file", path)
	}
	key := fileKey(path)
	b.attrs.Remove(key)
	return translate("remove_file", path, b.bucket.Delete(ctx, key))
}

func (b *Backend) Rename(ctx context.Context, src, dst vfs.Path) error {
	if src.IsRoot() {
		return vfs.NewError(vfs.KindNotSupported, "rename", src)
	}
	if dst.StartsWith(src) && !dst.Equals(src) {
		return vfs.NewError(vfs.KindSourceIsParentOfTarget, "rename", src)
	}
	md, err := b.stat(ctx, "rename", src)
	if err != nil {
		return err
	}
	if dst.Equals(src) {
		return nil
	}
	if err := b.parent(ctx, "rename", dst); err != nil {
		return err
	}
	if _, err := b.stat(ctx, "rename", dst); err == nil {
		return vfs.NewError(vfs.KindTargetPathAlreadyExists, "rename", dst)
	} else if vfs.KindOf(err) != vfs.KindNoSuchPath {
		return err
	}

	if !md.IsDir() {
		return b.move(ctx, src, fileKey(src), fileKey(dst))
	}

	// object stores cannot move prefixes, every object below is moved one by one
	srcPrefix, dstPrefix := dirKey(src), dirKey(dst)
	var keys []string
	iter := b.bucket.List(&blob.ListOptions{Prefix: srcPrefix})
	for {
		obj, err := iter.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return translate("rename", src, err)
		}
		keys = append(keys, obj.Key)
	}
	for _, key := range keys {
		if err := b.move(ctx, src, key, dstPrefix+strings.TrimPrefix(key, srcPrefix)); err != nil {
			return err
		}
	}
	return nil
}

func (b *Backend) move(ctx context.Context, src vfs.Path, from, to string) error {
	if err := b.bucket.Copy(ctx, to, from, nil); err != nil {
		return translate("rename", src, err)
	}
	b.attrs.Remove(from)
	b.attrs.Remove(to)
	return translate("rename", src, b.bucket.Delete(ctx, from))
}

func (b *Backend) SetPermissions(ctx context.Context, path vfs.Path, perm os.FileMode) error {
	md, err := b.stat(ctx, "set_permissions", path)
	if err != nil {
		return err
	}
	if path.IsRoot() {
		return vfs.NewError(vfs.KindNotSupported, "set_permissions", path)
	}
	key := fileKey(path)
	var data []byte
	if md.IsDir() {
		key = dirKey(path)
	} else if data, err = b.bucket.ReadAll(ctx, key); err != nil {
		return translate("set_permissions", path, err)
	}
	err = b.bucket.WriteAll(ctx, key, data, &blob.WriterOptions{Metadata: modeMetadata(perm)})
	b.attrs.Remove(key)
	return translate("set_permissions", path, err)
}

// StatFS reports nothing, buckets have no fixed capacity.
func (b *Backend) StatFS(ctx context.Context) (vfs.FilesystemStats, error) {
	return vfs.FilesystemStats{}, nil
}

// descriptor keeps the whole file in memory.
type descriptor struct {
	backend *Backend
	path    vfs.Path
	key     string
	flags   vfs.OpenFlags
	mode    os.FileMode
	data    []byte
	pos     int64
	dirty   bool
	closed  bool
}

func (d *descriptor) Read(p []byte) (int, error) {
	if d.closed {
		return 0, vfs.NewError(vfs.KindBadHandle, "read", d.path)
	}
	if d.pos >= int64(len(d.data)) {
		return 0, io.EOF
	}
	n := copy(p, d.data[d.pos:])
	d.pos += int64(n)
	return n, nil
}

func (d *descriptor) Write(p []byte) (int, error) {
	if d.closed {
		return 0, vfs.NewError(vfs.KindBadHandle, "write", d.path)
	}
	if !d.flags.Write {
		return 0, vfs.NewError(vfs.KindNotSupported, "write", d.path)
	}
	end := d.pos + int64(len(p))
	if end > int64(len(d.data)) {
		grown := make([]byte, end)
		copy(grown, d.data)
		d.data = grown
	}
	copy(d.data[d.pos:end], p)
	d.pos = end
	d.dirty = true
	return len(p), nil
}

func (d *descriptor) Seek(pos vfs.SeekFrom) (int64, error) {
	if d.closed {
		return 0, vfs.NewError(vfs.KindBadHandle, "seek", d.path)
	}
	next, ok := pos.Resolve(d.pos, int64(len(d.data)))
	if !ok {
		return d.pos, vfs.NewError(vfs.KindInvalidSeek, "seek", d.path)
	}
	d.pos = next
	return next, nil
}

// Close uploads the content if it has been written to.
func (d *descriptor) Close() error {
	if d.closed || !d.dirty {
		d.closed = true
		return nil
	}
	d.closed = true
	start := time.Now()
	err := d.backend.bucket.WriteAll(context.Background(), d.key, d.data, &blob.WriterOptions{Metadata: modeMetadata(d.mode)})
	d.backend.attrs.Remove(d.key)
	if err != nil {
		return translate("close", d.path, err)
	}
	d.backend.logger.Debug("uploaded", zap.String("key", d.key), zap.Int("bytes", len(d.data)), zap.Duration("took", time.Since(start)))
	return nil
}
