package vfs

import (
	"context"
	"os"
	"time"
)

// FileType is the type of a filesystem entry.
type FileType int

const (
	TypeFile FileType = iota
	TypeDir
	TypeSymlink
)

func (t FileType) String() string {
	switch t {
	case TypeFile:
		return "file"
	case TypeDir:
		return "dir"
	case TypeSymlink:
		return "symlink"
	default:
		return "unknown"
	}
}

// Metadata is the stat information of one entry. A zero time means the backend cannot provide it.
type Metadata struct {
	Type        FileType
	Size        uint64
	Accessed    time.Time
	Modified    time.Time
	Changed     time.Time
	Permissions os.FileMode
}

// IsDir is a shortcut for Type == TypeDir.
func (m Metadata) IsDir() bool {
	return m.Type == TypeDir
}

// A DirEntry is one element of a directory listing. Name is a plain name for backends and an exposed name for the
// engine.
type DirEntry struct {
	Name     string
	Metadata Metadata
}

// FilesystemStats describes the capacity of one storage.
type FilesystemStats struct {
	TotalBytes uint64
	FreeBytes  uint64
	TotalFiles uint64
	FreeFiles  uint64
}

// OpenFlags are passed through to the backend. No permission checks are performed by the engine.
type OpenFlags struct {
	Read     bool
	Write    bool
	Truncate bool
}

// ReadWrite opens for reading and writing, which is what Engine.Open uses.
var ReadWrite = OpenFlags{Read: true, Write: true}

// Whence is the reference point of a SeekFrom.
type Whence int

const (
	SeekStart Whence = iota
	// SeekEnd treats the offset as the distance backwards from the end.
	SeekEnd
	SeekCurrent
)

// SeekFrom describes a cursor move.
type SeekFrom struct {
	Whence Whence
	Offset int64
}

// Start seeks to an absolute offset.
func Start(offset uint64) SeekFrom {
	return SeekFrom{Whence: SeekStart, Offset: int64(offset)}
}

// End seeks to distance bytes before the end.
func End(distance uint64) SeekFrom {
	return SeekFrom{Whence: SeekEnd, Offset: int64(distance)}
}

// Current seeks relative to the current position.
func Current(offset int64) SeekFrom {
	return SeekFrom{Whence: SeekCurrent, Offset: offset}
}

// Resolve computes the new absolute position for a cursor at pos within a file of the given size. The result
// must stay within [0, size]; everything else is reported as false.
func (s SeekFrom) Resolve(pos, size int64) (int64, bool) {
	var next int64
	switch s.Whence {
	case SeekStart:
		next = s.Offset
	case SeekEnd:
		next = size - s.Offset
	case SeekCurrent:
		next = pos + s.Offset
	default:
		return pos, false
	}
	if next < 0 || next > size {
		return pos, false
	}
	return next, true
}

// A FileDescriptor is the cursor state of one open file, bound to exactly one backend replica. Read returns io.EOF
// (possibly with n > 0) at the end of the file. Writes advance the cursor and extend the file.
type FileDescriptor interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Seek(pos SeekFrom) (int64, error)
	// Close releases the descriptor. The engine calls it exactly once.
	Close() error
}

// A Backend implements the filesystem primitives against one physical storage. All paths are relative to the
// storage root.
//
// Logical outcomes (a missing path, a file where a directory was expected, ...) must be reported as *Error with a
// logical Kind, e.g. NewError(KindNoSuchPath, "read_dir", path). Any other error is a transport failure, which
// makes the engine fall back to the next replica.
type Backend interface {
	ReadDir(ctx context.Context, path Path) ([]DirEntry, error)
	Metadata(ctx context.Context, path Path) (Metadata, error)
	Open(ctx context.Context, path Path, flags OpenFlags) (FileDescriptor, error)
	CreateDir(ctx context.Context, path Path) error
	RemoveDir(ctx context.Context, path Path) error
	CreateFile(ctx context.Context, path Path) (FileDescriptor, error)
	RemoveFile(ctx context.Context, path Path) error
	Rename(ctx context.Context, src, dst Path) error
	SetPermissions(ctx context.Context, path Path, perm os.FileMode) error
	StatFS(ctx context.Context) (FilesystemStats, error)
}
