package storage

import (
	"errors"

	"github.com/syndtr/goleveldb/leveldb"
	lerrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"
	lstorage "github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
	"go.uber.org/zap"
)

// LevelDB adapts goleveldb to DB.
type LevelDB struct {
	db *leveldb.DB
}

var levelDBOptions = &opt.Options{
	BlockCacheCapacity: 32 * opt.MiB,
	WriteBuffer:        16 * opt.MiB,
	Filter:             filter.NewBloomFilter(10),
}

// OpenLevelDB opens or creates a database at path, recovering the
// manifest when it is corrupted.
func OpenLevelDB(path string, logger *zap.Logger) (*LevelDB, error) {
	db, err := leveldb.OpenFile(path, levelDBOptions)
	if lerrors.IsCorrupted(err) {
		logger.Warn("leveldb corrupted, recovering", zap.String("path", path), zap.Error(err))
		db, err = leveldb.RecoverFile(path, levelDBOptions)
	}
	if err != nil {
		return nil, wrap("open leveldb", err)
	}
	return &LevelDB{db: db}, nil
}

// NewMemLevelDB returns a database that lives in memory only.
func NewMemLevelDB() (*LevelDB, error) {
	db, err := leveldb.Open(lstorage.NewMemStorage(), nil)
	if err != nil {
		return nil, wrap("open memory leveldb", err)
	}
	return &LevelDB{db: db}, nil
}

func (l *LevelDB) Get(key []byte) ([]byte, error) {
	v, err := l.db.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, wrap("get", l.mapErr(err))
	}
	return v, nil
}

func (l *LevelDB) Has(key []byte) (bool, error) {
	ok, err := l.db.Has(key, nil)
	if err != nil {
		return false, wrap("has", l.mapErr(err))
	}
	return ok, nil
}

func (l *LevelDB) Write(batch *Batch) error {
	lb := new(leveldb.Batch)
	for _, op := range batch.ops {
		if op.del {
			lb.Delete(op.key)
		} else {
			lb.Put(op.key, op.value)
		}
	}
	return wrap("write", l.mapErr(l.db.Write(lb, nil)))
}

func (l *LevelDB) ForEachPrefix(prefix []byte, fn func(key, value []byte) error) error {
	it := l.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer it.Release()

	for it.Next() {
		if err := fn(it.Key(), it.Value()); err != nil {
			return err
		}
	}
	return wrap("iterate", l.mapErr(it.Error()))
}

func (l *LevelDB) Close() error {
	return wrap("close", l.db.Close())
}

func (l *LevelDB) mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, leveldb.ErrClosed):
		return ErrClosed
	case lerrors.IsCorrupted(err):
		return errors.Join(ErrCorrupt, err)
	default:
		return err
	}
}
