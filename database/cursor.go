package database

// Cursor iterates over the key/value pairs of a bucket in ascending key
// order.
type Cursor interface {
	// Next moves the cursor to the next key/value pair. It returns false
	// once the cursor is exhausted, or if the cursor has been closed.
	Next() bool

	// First moves the cursor to the first key/value pair. It returns
	// whether such a pair exists.
	First() (bool, error)

	// Seek moves the cursor to the first key/value pair whose key is
	// greater than or equal to the given key. It returns whether such a
	// pair exists.
	Seek(key []byte) (bool, error)

	// Key returns the key of the current key/value pair, or nil if done.
	// The caller must not modify the returned slice.
	Key() ([]byte, error)

	// Value returns the value of the current key/value pair, or nil if
	// done. The caller must not modify the returned slice.
	Value() ([]byte, error)

	// Error returns any accumulated error. Exhausting all pairs is not
	// itself an error.
	Error() error

	// Close releases the cursor's resources.
	Close() error
}
