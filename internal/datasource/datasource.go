// Package datasource abstracts where CSV bytes and remote documents come
// from. Implementations live in subpackages (file, httpds).
package datasource

import (
	"context"
	"io"
)

// Source opens a fresh reader over its bytes on every call, so a caller can
// re-read the same input after changing how it is parsed.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// Named is implemented by sources that can describe themselves in logs and
// error messages.
type Named interface {
	Name() string
}

// NameOf returns src's name, or its Go type when it has none.
func NameOf(src Source) string {
	if n, ok := src.(Named); ok {
		return n.Name()
	}
	return "source"
}
