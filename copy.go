package vfs

import (
	"context"
	"io"
	"sync/atomic"

	"github.com/pkg/errors"
)

// A WalkClosure is invoked for each entry in Walk, as long as no error is returned. If listing a directory fails,
// it is called with that error and may turn it into nil to continue.
type WalkClosure func(path Path, info Metadata, err error) error

// Walk recursively goes down the exposed hierarchy starting at the given path, parents before children.
func (e *Engine) Walk(ctx context.Context, path Path, each WalkClosure) error {
	entries, err := e.ReadDir(ctx, path)
	if err != nil {
		return each(path, Metadata{}, err)
	}
	for _, entry := range entries {
		child := ConcatPaths(path, Path(entry.Name))
		if err := each(child, entry.Metadata, nil); err != nil {
			return err
		}
		if entry.Metadata.IsDir() {
			if err := e.Walk(ctx, child, each); err != nil {
				return err
			}
		}
	}
	return nil
}

// A PathEntry simply provides a Path and the related information.
type PathEntry struct {
	Path     Path
	Metadata Metadata
}

// CopyOptions is used to define the process of copying.
type CopyOptions struct {
	cancelled int32

	// OnScan is called while scanning the source
	OnScan func(obj Path, objects int64, bytes int64)

	// OnCopied is called after each transferred object.
	OnCopied func(obj Path, objectsTransferred int64, bytesTransferred int64)

	// OnProgress is called for each file which is progress of being copied
	OnProgress func(src Path, dst Path, bytes int64, size int64)

	// OnError is called if an error occurs. If an error is returned, the process is stopped and the returned error is returned.
	OnError func(object Path, err error) error
}

// Cancel is used to signal an interruption
func (o *CopyOptions) Cancel() {
	atomic.StoreInt32(&o.cancelled, 1)
}

// IsCancelled checks if the copy process has been cancelled
func (o *CopyOptions) IsCancelled() bool {
	if o == nil {
		return false
	}
	return atomic.LoadInt32(&o.cancelled) == 1
}

func (o *CopyOptions) onProgress(src, dst Path, bytes int64, size int64) {
	if o == nil || o.OnProgress == nil {
		return
	}
	o.OnProgress(src, dst, bytes, size)
}

func (o *CopyOptions) onScan(obj Path, objects int64, bytes int64) {
	if o == nil || o.OnScan == nil {
		return
	}
	o.OnScan(obj, objects, bytes)
}

func (o *CopyOptions) onCopied(obj Path, objectsTransferred int64, bytesTransferred int64) {
	if o == nil || o.OnCopied == nil {
		return
	}
	o.OnCopied(obj, objectsTransferred, bytesTransferred)
}

func (o *CopyOptions) onError(object Path, err error) error {
	if o == nil || o.OnError == nil {
		return err
	}
	return o.OnError(object, err)
}

var errCopyCancelled = errors.New("copy cancelled")

// Copy copies the file or directory tree src to dst. Unlike Rename it works across containers. Existing files
// at the destination are truncated, existing directories are merged. Copying an entry onto itself fails with
// TargetPathAlreadyExists. The copy options can be nil.
func (e *Engine) Copy(ctx context.Context, src, dst Path, options *CopyOptions) error {
	info, err := e.Metadata(ctx, src)
	if err != nil {
		return err
	}
	if err := e.distinct(ctx, src, dst); err != nil {
		return err
	}

	if !info.IsDir() {
		options.onScan(src, 1, int64(info.Size))
		written, err := e.copyFile(ctx, src, dst, int64(info.Size), options)
		if err != nil {
			return err
		}
		options.onCopied(src, 1, written)
		return nil
	}

	var objectsFound, bytesFound int64
	list := []*PathEntry{{Path: src, Metadata: info}}
	err = e.Walk(ctx, src, func(path Path, info Metadata, err error) error {
		if err != nil {
			return options.onError(path, err)
		}
		list = append(list, &PathEntry{Path: path, Metadata: info})
		objectsFound++
		if !info.IsDir() {
			bytesFound += int64(info.Size)
		}
		options.onScan(path, objectsFound, bytesFound)
		return nil
	})
	if err != nil {
		return err
	}

	// parents are always listed before their children
	var objectsProcessed, bytesProcessed int64
	for _, entry := range list {
		dstPath := ConcatPaths(dst, entry.Path.TrimPrefix(src))
		if entry.Metadata.IsDir() {
			err := e.CreateDir(ctx, dstPath)
			if err != nil && !errors.Is(err, ErrPathAlreadyExists) {
				if err = options.onError(dstPath, err); err != nil {
					return err
				}
			}
			objectsProcessed++
			options.onCopied(entry.Path, objectsProcessed, bytesProcessed)
			continue
		}
		written, err := e.copyFile(ctx, entry.Path, dstPath, int64(entry.Metadata.Size), options)
		if err != nil {
			if err = options.onError(dstPath, err); err != nil {
				return err
			}
			continue
		}
		objectsProcessed++
		bytesProcessed += written
		options.onCopied(entry.Path, objectsProcessed, bytesProcessed)
	}
	return nil
}

// distinct fails if src and dst address the same entry of the same container.
func (e *Engine) distinct(ctx context.Context, src, dst Path) error {
	const op = "copy"
	ls, err := e.lookup(ctx, op, src)
	if err != nil {
		return err
	}
	ld, err := e.lookup(ctx, op, dst)
	if err != nil {
		return err
	}
	a, ok := e.target(ls)
	if !ok {
		return nil
	}
	b, ok := e.target(ld)
	if !ok {
		return nil
	}
	pa, okA := a.(*PhysicalNode)
	pb, okB := b.(*PhysicalNode)
	if okA && okB && pa.Storages().ContainerUUID == pb.Storages().ContainerUUID && pa.Storages().Path.Equals(pb.Storages().Path) {
		return NewError(KindTargetPathAlreadyExists, op, ld.exposed)
	}
	return nil
}

func (e *Engine) copyFile(ctx context.Context, src, dst Path, size int64, options *CopyOptions) (written int64, err error) {
	// CreateFile truncates, so it must never hit the source itself
	if err := e.distinct(ctx, src, dst); err != nil {
		return 0, err
	}
	out, err := e.CreateFile(ctx, dst)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			closeLogged(e.logger, out, e)
			return
		}
		err = e.Close(out)
	}()
	err = e.WithFile(ctx, src, func(in Handle) error {
		var err error
		written, err = copyBuffer(ctx, src, dst, size, HandleIO{Engine: e, Handle: in}, HandleIO{Engine: e, Handle: out}, nil, options)
		return err
	})
	return written, err
}

func copyBuffer(ctx context.Context, srcPath, dstPath Path, totalSize int64, src io.Reader, dst io.Writer, buf []byte, options *CopyOptions) (written int64, err error) {
	if buf == nil {
		size := 32 * 1024
		buf = make([]byte, size)
	}
	for {
		if options.IsCancelled() {
			err = errCopyCancelled
			break
		}
		if err = ctx.Err(); err != nil {
			break
		}

		nr, er := src.Read(buf)
		if nr > 0 {
			nw, ew := dst.Write(buf[0:nr])
			if nw > 0 {
				written += int64(nw)
			}
			options.onProgress(srcPath, dstPath, written, totalSize)
			if ew != nil {
				err = ew
				break
			}
			if nr != nw {
				err = io.ErrShortWrite
				break
			}
		}
		if er != nil {
			if er != io.EOF {
				err = er
			}
			break
		}
	}
	return written, err
}
