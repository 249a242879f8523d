// Package file opens CSV inputs from the local disk.
package file

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
)

// Local opens the same path on every Open call.
type Local struct{ path string }

// NewLocal returns a Local bound to path.
func NewLocal(path string) *Local { return &Local{path: path} }

// Name returns the path.
func (l *Local) Name() string { return l.path }

// Open returns the file. A context that is already done short-circuits
// without touching the filesystem; filesystem errors are wrapped with the
// path and still match os.ErrNotExist and friends.
func (l *Local) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", l.path, err)
	}
	return f, nil
}

// Bytes is an in-memory source, used for uploaded files and tests.
type Bytes struct {
	name string
	data []byte
}

// NewBytes wraps data; name is only used for display.
func NewBytes(name string, data []byte) *Bytes { return &Bytes{name: name, data: data} }

func (b *Bytes) Name() string { return b.name }

func (b *Bytes) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(b.data)), nil
}
