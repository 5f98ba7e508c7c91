package vfs

import (
	"fmt"

	"github.com/pkg/errors"
)

// A Kind classifies an Error. Logical kinds are definitive answers of a reachable backend or of the engine itself
// and are never retried against another replica.
type Kind int

const (
	// KindUnknown is never used for a returned error.
	KindUnknown Kind = iota
	KindNoSuchPath
	KindNotADirectory
	KindNotAFile
	KindPathAlreadyExists
	KindDirNotEmpty
	KindReadOnlyPath
	KindParentDoesNotExist
	KindTargetPathAlreadyExists
	KindSourceIsParentOfTarget
	KindNotSupported
	KindBadHandle
	// KindInvalidSeek is returned if a seek would leave the file.
	KindInvalidSeek
	// KindStorageNotResponsive is the only non-logical kind. It is returned after every replica failed on the
	// transport level.
	KindStorageNotResponsive
)

var kindNames = map[Kind]string{
	KindNoSuchPath:              "no such path",
	KindNotADirectory:           "not a directory",
	KindNotAFile:                "not a file",
	KindPathAlreadyExists:       "path already exists",
	KindDirNotEmpty:             "directory not empty",
	KindReadOnlyPath:            "read-only path",
	KindParentDoesNotExist:      "parent does not exist",
	KindTargetPathAlreadyExists: "target path already exists",
	KindSourceIsParentOfTarget:  "source is parent of target",
	KindNotSupported:            "operation not supported",
	KindBadHandle:               "bad file handle",
	KindInvalidSeek:             "invalid seek",
	KindStorageNotResponsive:    "storage not responsive",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Logical reports whether the kind is a definitive answer.
func (k Kind) Logical() bool {
	return k != KindUnknown && k != KindStorageNotResponsive
}

// An Error is the typed outcome of every failed filesystem operation. Use errors.Is with one of the Err* sentinels
// to inspect it, e.g. errors.Is(err, vfs.ErrNoSuchPath).
type Error struct {
	Kind Kind
	// Op is the operation name, e.g. "read_dir".
	Op string
	// Path is the exposed path the operation was issued for, if any.
	Path Path
	// Err is an optional cause, usually the last transport failure.
	Err error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Path != "" {
		msg += ": " + e.Path.String()
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same Kind, so that the sentinels work with errors.Is regardless of Op and Path.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return other.Kind == e.Kind
}

var (
	ErrNoSuchPath              = &Error{Kind: KindNoSuchPath}
	ErrNotADirectory           = &Error{Kind: KindNotADirectory}
	ErrNotAFile                = &Error{Kind: KindNotAFile}
	ErrPathAlreadyExists       = &Error{Kind: KindPathAlreadyExists}
	ErrDirNotEmpty             = &Error{Kind: KindDirNotEmpty}
	ErrReadOnlyPath            = &Error{Kind: KindReadOnlyPath}
	ErrParentDoesNotExist      = &Error{Kind: KindParentDoesNotExist}
	ErrTargetPathAlreadyExists = &Error{Kind: KindTargetPathAlreadyExists}
	ErrSourceIsParentOfTarget  = &Error{Kind: KindSourceIsParentOfTarget}
	ErrNotSupported            = &Error{Kind: KindNotSupported}
	ErrBadHandle               = &Error{Kind: KindBadHandle}
	ErrInvalidSeek             = &Error{Kind: KindInvalidSeek}
	ErrStorageNotResponsive    = &Error{Kind: KindStorageNotResponsive}
)

// NewError creates a new *Error. Backends use it to report logical outcomes.
func NewError(kind Kind, op string, path Path) *Error {
	return &Error{Kind: kind, Op: op, Path: path}
}

// KindOf returns the Kind of the first *Error in the chain or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsLogical reports whether err carries a definitive answer. Everything else returned by a backend is a transport
// failure and triggers fallback to the next replica.
func IsLogical(err error) bool {
	return KindOf(err).Logical()
}

// relabel returns a copy of a logical backend error, rewritten to the exposed path and the engine operation. Backends
// only know the path within their storage, which must never leak to the caller.
func relabel(err error, op string, path Path) error {
	var e *Error
	if !errors.As(err, &e) {
		return err
	}
	return &Error{Kind: e.Kind, Op: op, Path: path, Err: e.Err}
}
