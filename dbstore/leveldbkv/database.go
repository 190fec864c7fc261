// Package leveldbkv adapts github.com/btcsuite/goleveldb/leveldb to the
// database.Database contract. It is the concrete key-value store used by the
// composition root and by tests; the chain engine, mempool, and indices only
// ever see the database package's interfaces.
package leveldbkv

import (
	"github.com/btcsuite/goleveldb/leveldb"
	"github.com/btcsuite/goleveldb/leveldb/opt"
	"github.com/pkg/errors"

	"github.com/artea/corecoin/database"
)

// DB wraps a single goleveldb handle.
type DB struct {
	ldb *leveldb.DB
}

// Open opens (creating if necessary) the LevelDB database at path.
func Open(path string) (*DB, error) {
	ldb, err := leveldb.OpenFile(path, &opt.Options{
		ErrorIfMissing: false,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open leveldb at %s", path)
	}
	return &DB{ldb: ldb}, nil
}

// Put implements database.DataAccessor.
func (db *DB) Put(key []byte, value []byte) error {
	return db.ldb.Put(key, value, nil)
}

// Get implements database.DataAccessor.
func (db *DB) Get(key []byte) ([]byte, bool, error) {
	value, err := db.ldb.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// Has implements database.DataAccessor.
func (db *DB) Has(key []byte) (bool, error) {
	return db.ldb.Has(key, nil)
}

// Delete implements database.DataAccessor.
func (db *DB) Delete(key []byte) error {
	return db.ldb.Delete(key, nil)
}

// Cursor implements database.DataAccessor.
func (db *DB) Cursor(bucket []byte) (database.Cursor, error) {
	return newCursor(db.ldb.NewIterator(bytesPrefixRange(bucket), nil), bucket), nil
}

// Begin implements database.Database.
func (db *DB) Begin() (database.Transaction, error) {
	ldbTx, err := db.ldb.OpenTransaction()
	if err != nil {
		return nil, errors.Wrap(err, "failed to open leveldb transaction")
	}
	return &transaction{ldbTx: ldbTx}, nil
}

// Close implements database.Database.
func (db *DB) Close() error {
	return db.ldb.Close()
}
