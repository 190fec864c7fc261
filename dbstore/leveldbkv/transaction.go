package leveldbkv

import (
	"github.com/btcsuite/goleveldb/leveldb"

	"github.com/artea/corecoin/database"
)

// transaction adapts a goleveldb *leveldb.Transaction to database.Transaction.
type transaction struct {
	ldbTx *leveldb.Transaction
}

// Put implements database.DataAccessor.
func (tx *transaction) Put(key []byte, value []byte) error {
	return tx.ldbTx.Put(key, value, nil)
}

// Get implements database.DataAccessor.
func (tx *transaction) Get(key []byte) ([]byte, bool, error) {
	value, err := tx.ldbTx.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// Has implements database.DataAccessor.
func (tx *transaction) Has(key []byte) (bool, error) {
	return tx.ldbTx.Has(key, nil)
}

// Delete implements database.DataAccessor.
func (tx *transaction) Delete(key []byte) error {
	return tx.ldbTx.Delete(key, nil)
}

// Cursor implements database.DataAccessor.
func (tx *transaction) Cursor(bucket []byte) (database.Cursor, error) {
	return newCursor(tx.ldbTx.NewIterator(bytesPrefixRange(bucket), nil), bucket), nil
}

// Commit implements database.Transaction.
func (tx *transaction) Commit() error {
	return tx.ldbTx.Commit()
}

// Rollback implements database.Transaction.
func (tx *transaction) Rollback() error {
	tx.ldbTx.Discard()
	return nil
}
