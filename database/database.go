// Package database defines the contract of the persistent, ordered,
// cursor-iterable, transactional key-value store the chain engine and
// mempool consume. Per the project's scope, the concrete storage engine
// behind this interface (LevelDB, a B-tree file, or anything else) is an
// external collaborator; see dbstore/leveldbkv for one concrete adapter used
// by tests and the composition root.
package database

// DataAccessor is the common read/write surface shared by a Database handle
// and by a Transaction: plain key/value access plus bucketed cursor
// iteration.
type DataAccessor interface {
	// Put sets the value for the given key, overwriting any previous value.
	Put(key []byte, value []byte) error

	// Get returns the value for the given key. The second return value is
	// false if the key does not exist.
	Get(key []byte) ([]byte, bool, error)

	// Has returns whether the store contains the given key.
	Has(key []byte) (bool, error)

	// Delete deletes the value for the given key. It is not an error for
	// the key to not exist.
	Delete(key []byte) error

	// Cursor begins a new cursor over the given bucket, iterating keys in
	// ascending order.
	Cursor(bucket []byte) (Cursor, error)
}

// Transaction is a single atomic batch of reads and writes against a
// Database. Callers must call exactly one of Commit or Rollback.
type Transaction interface {
	DataAccessor

	// Commit commits whatever changes were made within this transaction.
	Commit() error

	// Rollback discards whatever changes were made within this transaction.
	Rollback() error
}

// Database is a handle to the persistent key-value store that can begin
// transactions, open read-only cursors outside of a transaction, and close
// itself.
//
// Database is deliberately not merged with DataAccessor: a Transaction
// already embeds DataAccessor, and merging the two would force every
// Transaction implementation to also implement Begin and Close.
type Database interface {
	DataAccessor

	// Begin begins a new transaction.
	Begin() (Transaction, error)

	// Close closes the database and releases any held resources.
	Close() error
}
