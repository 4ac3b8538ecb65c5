package kvstore

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	ldbopt "github.com/syndtr/goleveldb/leveldb/opt"
	ldbstorage "github.com/syndtr/goleveldb/leveldb/storage"
)

// format version of the key space, stored under a key no record can collide with
var versionKey = []byte{0x00, 'V', 'E', 'R', 'S', 'I', 'O', 'N'}

const currentLevelDBVersion = 1

// LevelDB implements KV on top of an on-disk (or in-memory) LevelDB database
type LevelDB struct {
	db    *leveldb.DB
	write *ldbopt.WriteOptions
}

// OpenLevelDB opens or creates the database at path
func OpenLevelDB(path string) (*LevelDB, error) {
	opt := &ldbopt.Options{
		ErrorIfExist:   false,
		ErrorIfMissing: false,
	}

	db, err := leveldb.OpenFile(path, opt)
	if err != nil {
		return nil, fmt.Errorf("failed to open leveldb %s: %w", path, err)
	}

	return newLevelDB(db, true)
}

// NewMemLevelDB returns a LevelDB backed by memory only, for tests and demos
func NewMemLevelDB() (*LevelDB, error) {
	db, err := leveldb.Open(ldbstorage.NewMemStorage(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open memory leveldb: %w", err)
	}

	return newLevelDB(db, false)
}

func newLevelDB(db *leveldb.DB, sync bool) (*LevelDB, error) {
	version, err := getVersion(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	// ensure no database downgrade
	if version > currentLevelDBVersion {
		db.Close()
		return nil, fmt.Errorf("leveldb version: %d > current version: %d", version, currentLevelDBVersion)
	}

	if version == 0 {
		if err := putVersion(db, currentLevelDBVersion); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to tag leveldb version: %w", err)
		}
	}

	return &LevelDB{
		db:    db,
		write: &ldbopt.WriteOptions{Sync: sync},
	}, nil
}

// Get returns the value stored at key
func (l *LevelDB) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	value, err := l.db.Get([]byte(key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("leveldb get %q: %w", key, err)
	}
	return value, nil
}

// Put stores value at key
func (l *LevelDB) Put(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := l.db.Put([]byte(key), value, l.write); err != nil {
		return fmt.Errorf("leveldb put %q: %w", key, err)
	}
	return nil
}

// Delete removes key
func (l *LevelDB) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := l.db.Delete([]byte(key), l.write); err != nil {
		return fmt.Errorf("leveldb delete %q: %w", key, err)
	}
	return nil
}

// Close closes the database
func (l *LevelDB) Close() error {
	return l.db.Close()
}

func getVersion(db *leveldb.DB) (int, error) {
	value, err := db.Get(versionKey, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	if len(value) != 4 {
		return 0, fmt.Errorf("incompatible leveldb version length: expected: %d  actual: %d", 4, len(value))
	}
	return int(binary.BigEndian.Uint32(value)), nil
}

func putVersion(db *leveldb.DB, version int) error {
	value := make([]byte, 4)
	binary.BigEndian.PutUint32(value, uint32(version))
	return db.Put(versionKey, value, nil)
}
