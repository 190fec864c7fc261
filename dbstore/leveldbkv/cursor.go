package leveldbkv

import (
	"bytes"

	"github.com/btcsuite/goleveldb/leveldb/iterator"
	"github.com/btcsuite/goleveldb/leveldb/util"
)

func bytesPrefixRange(bucket []byte) *util.Range {
	return util.BytesPrefix(bucket)
}

// cursor is a thin wrapper around a native goleveldb iterator, trimming the
// bucket prefix off of returned keys.
type cursor struct {
	ldbIterator iterator.Iterator
	prefix      []byte
	isClosed    bool
}

func newCursor(ldbIterator iterator.Iterator, prefix []byte) *cursor {
	return &cursor{ldbIterator: ldbIterator, prefix: prefix}
}

// Next implements database.Cursor.
func (c *cursor) Next() bool {
	if c.isClosed {
		return false
	}
	return c.ldbIterator.Next()
}

// First implements database.Cursor.
func (c *cursor) First() (bool, error) {
	if c.isClosed {
		return false, errClosedCursor("seek the first key of")
	}
	return c.ldbIterator.First(), nil
}

// Seek implements database.Cursor.
func (c *cursor) Seek(key []byte) (bool, error) {
	if c.isClosed {
		return false, errClosedCursor("seek")
	}
	return c.ldbIterator.Seek(append(append([]byte{}, c.prefix...), key...)), nil
}

// Key implements database.Cursor.
func (c *cursor) Key() ([]byte, error) {
	if c.isClosed {
		return nil, errClosedCursor("get the key of")
	}
	fullKey := c.ldbIterator.Key()
	if fullKey == nil {
		return nil, nil
	}
	return bytes.TrimPrefix(fullKey, c.prefix), nil
}

// Value implements database.Cursor.
func (c *cursor) Value() ([]byte, error) {
	if c.isClosed {
		return nil, errClosedCursor("get the value of")
	}
	return c.ldbIterator.Value(), nil
}

// Error implements database.Cursor.
func (c *cursor) Error() error {
	return c.ldbIterator.Error()
}

// Close implements database.Cursor.
func (c *cursor) Close() error {
	if c.isClosed {
		return errClosedCursor("close")
	}
	c.isClosed = true
	c.ldbIterator.Release()
	return nil
}
