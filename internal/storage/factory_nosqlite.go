//go:build !sqlite

package storage

import "fmt"

func newSQLiteStore(_ string) (Store, error) {
	return nil, fmt.Errorf("%w: sqlite support is compiled in with -tags sqlite", ErrUnsupportedBackend)
}
