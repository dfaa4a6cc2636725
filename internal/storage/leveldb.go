package storage

import (
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
)

// LevelDBBackend adapts a LevelDB database to the Backend interface.
// LevelDB provides the ordered keyspace and atomic write batches the ring
// relies on for crash consistency.
type LevelDBBackend struct {
	db *leveldb.DB
}

// OpenLevelDB opens (creating if necessary) a LevelDB database at path.
func OpenLevelDB(path string) (*LevelDBBackend, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb at %s: %w", path, err)
	}
	return &LevelDBBackend{db: db}, nil
}

// Get retrieves a value by key.
func (l *LevelDBBackend) Get(key string) ([]byte, bool, error) {
	value, err := l.db.Get([]byte(key), nil)
	if err == leveldb.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("leveldb get %s: %w", key, err)
	}
	return value, true, nil
}

// Put stores a value.
func (l *LevelDBBackend) Put(key string, value []byte) error {
	if err := l.db.Put([]byte(key), value, nil); err != nil {
		return fmt.Errorf("leveldb put %s: %w", key, err)
	}
	return nil
}

// Delete removes a key.
func (l *LevelDBBackend) Delete(key string) error {
	if err := l.db.Delete([]byte(key), nil); err != nil {
		return fmt.Errorf("leveldb delete %s: %w", key, err)
	}
	return nil
}

// Write applies the batch as a single LevelDB write batch.
func (l *LevelDBBackend) Write(batch *Batch) error {
	wb := new(leveldb.Batch)
	for _, op := range batch.ops {
		if op.delete {
			wb.Delete([]byte(op.key))
		} else {
			wb.Put([]byte(op.key), op.value)
		}
	}
	if err := l.db.Write(wb, nil); err != nil {
		return fmt.Errorf("leveldb batch write: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (l *LevelDBBackend) Close() error {
	return l.db.Close()
}
