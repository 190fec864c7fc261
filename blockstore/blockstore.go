// Package blockstore implements the append-only, segmented on-disk block
// store: blocks are appended to numbered files under a data directory and
// addressed thereafter by (file, offset). It is the one storage engine that
// is in scope for this module (the key-value store behind the database
// package is not): see database.Database for the ordered KV contract the
// rest of the index lives in.
package blockstore

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/pkg/errors"

	"github.com/artea/corecoin/chainerr"
	"github.com/artea/corecoin/wire"
)

// blockFileMagic prefixes every record written to a segment file, guarding
// against reading a torn or foreign file as a block.
const blockFileMagic uint32 = 0xc01ec01e

// defaultMaxFileSize is the segment roll threshold: once the current segment
// would grow past this size, writes continue in a new, higher-numbered file.
const defaultMaxFileSize = 128 * 1024 * 1024

// minFreeBytes is the floor CheckDiskSpace enforces before permitting a
// write of a given size.
const minFreeBytes = 15 * 1024 * 1024

// DiskPos addresses a serialized block within the segment files.
type DiskPos struct {
	File   uint32
	Offset uint32
}

// IsNull reports whether pos refers to nothing.
func (pos DiskPos) IsNull() bool {
	return pos.File == 0 && pos.Offset == 0
}

func (pos DiskPos) String() string {
	return fmt.Sprintf("(file %d, offset %d)", pos.File, pos.Offset)
}

// TxDiskPos addresses a single transaction within a segment file: the block
// record it belongs to, plus the transaction's own byte offset.
type TxDiskPos struct {
	File     uint32
	BlockPos uint32
	TxOffset uint32
}

// Store appends blocks to numbered segment files under dataDir and reads
// them back by DiskPos. It is safe for concurrent use; callers above it
// (ChainEngine) are still responsible for not interleaving logically
// conflicting writes, since the store itself applies no consensus meaning
// to what it stores.
type Store struct {
	dataDir     string
	maxFileSize int64

	mu          sync.Mutex
	currentFile uint32
	currentSize int64
}

// New opens (creating dataDir if necessary) a block store rooted at
// dataDir, discovering the highest-numbered existing segment file to
// continue appending to.
func New(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, chainerr.Wrap(chainerr.KindIOError, err, "failed to create block store directory")
	}
	s := &Store{dataDir: dataDir, maxFileSize: defaultMaxFileSize}
	highest, size, err := s.discoverCurrentFile()
	if err != nil {
		return nil, err
	}
	s.currentFile = highest
	s.currentSize = size
	return s, nil
}

func (s *Store) discoverCurrentFile() (fileNum uint32, size int64, err error) {
	entries, err := os.ReadDir(s.dataDir)
	if err != nil {
		return 0, 0, chainerr.Wrap(chainerr.KindIOError, err, "failed to list block store directory")
	}
	// Segment numbering starts at 1, so no stored block is ever at the
	// null DiskPos (file 0, offset 0).
	fileNum = 1
	for _, entry := range entries {
		var n uint32
		if _, scanErr := fmt.Sscanf(entry.Name(), "blk%05d.dat", &n); scanErr != nil {
			continue
		}
		if n >= fileNum {
			fileNum = n
		}
	}
	info, statErr := os.Stat(s.segmentPath(fileNum))
	if statErr == nil {
		size = info.Size()
	} else if !os.IsNotExist(statErr) {
		return 0, 0, chainerr.Wrap(chainerr.KindIOError, statErr, "failed to stat current block segment")
	}
	return fileNum, size, nil
}

func (s *Store) segmentPath(fileNum uint32) string {
	return filepath.Join(s.dataDir, fmt.Sprintf("blk%05d.dat", fileNum))
}

// CheckDiskSpace reports whether at least n additional bytes, plus a
// reserve floor, are free on the filesystem backing the data directory.
func (s *Store) CheckDiskSpace(n uint32) (bool, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(s.dataDir, &stat); err != nil {
		return false, chainerr.Wrap(chainerr.KindIOError, err, "failed to stat filesystem")
	}
	free := stat.Bavail * uint64(stat.Bsize)
	return free >= uint64(n)+minFreeBytes, nil
}

// WriteToDisk serializes block and appends the record {magic:4}{len:4}{body}
// to the current segment, rolling to a new numbered segment first if the
// write would exceed the size cap. If commit is true, the write is flushed
// to durable storage before returning, mirroring the project's rule that
// block bytes reach disk before any index transaction referencing them
// commits.
func (s *Store) WriteToDisk(block *wire.MsgBlock, commit bool) (DiskPos, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	size := block.SerializeSize()
	recordSize := int64(4 + 4 + size)

	ok, err := s.CheckDiskSpace(uint32(recordSize))
	if err != nil {
		return DiskPos{}, err
	}
	if !ok {
		return DiskPos{}, chainerr.New(chainerr.KindDiskSpace, "insufficient disk space to write %d-byte block", recordSize)
	}

	if s.currentSize > 0 && s.currentSize+recordSize > s.maxFileSize {
		s.currentFile++
		s.currentSize = 0
	}

	f, err := os.OpenFile(s.segmentPath(s.currentFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return DiskPos{}, chainerr.Wrap(chainerr.KindIOError, err, "failed to open block segment for append")
	}
	defer f.Close()

	offset := uint32(s.currentSize)

	w := bufio.NewWriter(f)
	var header [8]byte
	binary.LittleEndian.PutUint32(header[0:4], blockFileMagic)
	binary.LittleEndian.PutUint32(header[4:8], uint32(size))
	if _, err := w.Write(header[:]); err != nil {
		return DiskPos{}, chainerr.Wrap(chainerr.KindIOError, err, "failed to write block record header")
	}
	if err := block.Serialize(w); err != nil {
		return DiskPos{}, chainerr.Wrap(chainerr.KindIOError, err, "failed to serialize block to store")
	}
	if err := w.Flush(); err != nil {
		return DiskPos{}, chainerr.Wrap(chainerr.KindIOError, err, "failed to flush block record")
	}
	if commit {
		if err := f.Sync(); err != nil {
			return DiskPos{}, chainerr.Wrap(chainerr.KindIOError, err, "failed to fsync block segment")
		}
	}

	s.currentSize += recordSize

	return DiskPos{File: s.currentFile, Offset: offset}, nil
}

// ReadFromDisk reads and deserializes the block at pos.
func (s *Store) ReadFromDisk(pos DiskPos) (*wire.MsgBlock, error) {
	f, err := os.Open(s.segmentPath(pos.File))
	if err != nil {
		return nil, chainerr.Wrap(chainerr.KindIOError, err, "failed to open block segment for read")
	}
	defer f.Close()

	if _, err := f.Seek(int64(pos.Offset), io.SeekStart); err != nil {
		return nil, chainerr.Wrap(chainerr.KindIOError, err, "failed to seek block segment")
	}

	var header [8]byte
	if _, err := io.ReadFull(f, header[:]); err != nil {
		return nil, chainerr.Wrap(chainerr.KindIOError, err, "failed to read block record header")
	}
	magic := binary.LittleEndian.Uint32(header[0:4])
	if magic != blockFileMagic {
		return nil, chainerr.New(chainerr.KindIOError, "corrupt block record at %s: bad magic", pos)
	}

	block := new(wire.MsgBlock)
	if err := block.Deserialize(f); err != nil {
		return nil, errors.Wrapf(err, "failed to deserialize block at %s", pos)
	}
	return block, nil
}

// ReadTxFromDisk reads the block containing pos and returns only the
// transaction located at pos.TxOffset within it.
func (s *Store) ReadTxFromDisk(pos TxDiskPos) (*wire.MsgTx, error) {
	block, err := s.ReadFromDisk(DiskPos{File: pos.File, Offset: pos.BlockPos})
	if err != nil {
		return nil, err
	}
	locations, err := block.TxLocations()
	if err != nil {
		return nil, err
	}
	targetStart := int(pos.TxOffset) - (int(pos.BlockPos) + 8)
	for i, loc := range locations {
		if loc.TxStart == targetStart {
			return block.Transactions[i], nil
		}
	}
	return nil, chainerr.New(chainerr.KindIOError, "no transaction at %+v", pos)
}
