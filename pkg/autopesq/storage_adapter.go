//go:build !js && !wasm

package autopesq

import (
	"github.com/himanishpuri/AutoPESQ/internal/storage"
)

// ErrNotFound is wrapped by Storage lookups of unknown run ids.
var ErrNotFound = storage.ErrNotFound

var _ Storage = (*storage.DBClient)(nil)

// NewSQLiteStorage opens (creating if needed) the SQLite run history.
func NewSQLiteStorage(dbPath string) (Storage, error) {
	db, err := storage.NewDBClientWithPath(dbPath)
	if err != nil {
		return nil, err
	}
	return db, nil
}
