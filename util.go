package vfs

import (
	"context"
	"io"

	"go.uber.org/zap"
)

// tries to close and logs silently the failure
func closeLogged(logger *zap.Logger, h Handle, e *Engine) {
	if err := e.Close(h); err != nil {
		logger.Warn("failed to close", zap.Uint64("handle", uint64(h)), zap.Error(err))
	}
}

// WithFile opens path, runs fn and closes the handle afterwards, also if fn panics. A close failure is returned
// only if fn itself succeeded.
func (e *Engine) WithFile(ctx context.Context, path Path, fn func(h Handle) error) (err error) {
	h, err := e.Open(ctx, path)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			closeLogged(e.logger, h, e)
			return
		}
		err = e.Close(h)
	}()
	return fn(h)
}

// HandleIO adapts an open handle to the io interfaces, so that it can be used with io.Copy and friends.
type HandleIO struct {
	Engine *Engine
	Handle Handle
}

func (f HandleIO) Read(p []byte) (int, error) {
	buf, err := f.Engine.Read(f.Handle, len(p))
	if err != nil {
		return 0, err
	}
	if len(buf) == 0 && len(p) > 0 {
		return 0, io.EOF
	}
	return copy(p, buf), nil
}

func (f HandleIO) Write(p []byte) (int, error) {
	n, err := f.Engine.Write(f.Handle, p)
	if err == nil && n != len(p) {
		return n, io.ErrShortWrite
	}
	return n, err
}

func (f HandleIO) Close() error {
	return f.Engine.Close(f.Handle)
}

// ReadAll loads the entire file into memory. Only use it, if you know that it fits into memory.
func (e *Engine) ReadAll(ctx context.Context, path Path) ([]byte, error) {
	var res []byte
	err := e.WithFile(ctx, path, func(h Handle) error {
		var err error
		res, err = io.ReadAll(HandleIO{Engine: e, Handle: h})
		return err
	})
	return res, err
}

// WriteAll replaces the content of path with data, creating the file if required.
func (e *Engine) WriteAll(ctx context.Context, path Path, data []byte) (n int, err error) {
	h, err := e.CreateFile(ctx, path)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			closeLogged(e.logger, h, e)
			return
		}
		err = e.Close(h)
	}()
	return HandleIO{Engine: e, Handle: h}.Write(data)
}
