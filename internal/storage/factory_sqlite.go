//go:build sqlite

package storage

func newSQLiteStore(path string) (Store, error) {
	return NewSQLiteStore(path), nil
}

// DefaultStoreKind reports the backend used when none is requested.
func DefaultStoreKind() string {
	return "sqlite"
}
