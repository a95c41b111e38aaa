package storage

import (
	"fmt"
	"path/filepath"

	"go.uber.org/zap"
)

// DB is an ordered key-value store. Values passed to ForEachPrefix callbacks
// are only valid during the call.
type DB interface {
	Get(key []byte) ([]byte, error)
	Has(key []byte) (bool, error)
	Write(batch *Batch) error
	ForEachPrefix(prefix []byte, fn func(key, value []byte) error) error
	Close() error
}

// Backend names a DB implementation.
type Backend string

const (
	BackendLevelDB Backend = "leveldb"
	BackendBolt    Backend = "bbolt"
)

// Valid reports whether b names a known backend.
func (b Backend) Valid() bool {
	return b == BackendLevelDB || b == BackendBolt
}

// Open opens the database called name under dir. In-memory databases are
// always goleveldb over memory storage; bbolt has no memory mode.
func Open(backend Backend, dir, name string, inMemory bool, logger *zap.Logger) (DB, error) {
	var (
		db  DB
		err error
	)
	switch {
	case inMemory:
		db, err = NewMemLevelDB()
	case backend == BackendLevelDB || backend == "":
		db, err = OpenLevelDB(filepath.Join(dir, name), logger.Named("leveldb"))
	case backend == BackendBolt:
		db, err = OpenBoltDB(filepath.Join(dir, name+".db"))
	default:
		return nil, fmt.Errorf("unknown db backend %q", backend)
	}
	if err != nil {
		return nil, err
	}
	return db, nil
}

// Batch collects writes that a DB applies atomically.
type Batch struct {
	ops []batchOp
}

type batchOp struct {
	key   []byte
	value []byte
	del   bool
}

// Put schedules key=value. Both slices are retained, not copied.
func (b *Batch) Put(key, value []byte) {
	b.ops = append(b.ops, batchOp{key: key, value: value})
}

// Delete schedules the removal of key.
func (b *Batch) Delete(key []byte) {
	b.ops = append(b.ops, batchOp{key: key, del: true})
}

// Len returns the number of scheduled operations.
func (b *Batch) Len() int {
	return len(b.ops)
}

// Reset drops every scheduled operation.
func (b *Batch) Reset() {
	b.ops = b.ops[:0]
}

// Wipe deletes every key of db.
func Wipe(db DB) error {
	var batch Batch
	err := db.ForEachPrefix(nil, func(key, _ []byte) error {
		batch.Delete(append([]byte(nil), key...))
		return nil
	})
	if err != nil {
		return fmt.Errorf("scan keys: %w", err)
	}
	if batch.Len() == 0 {
		return nil
	}
	if err := db.Write(&batch); err != nil {
		return fmt.Errorf("delete keys: %w", err)
	}
	return nil
}
