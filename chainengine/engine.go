// Package chainengine implements the accept-block pipeline: consensus
// validation, persistence, best-chain extension, and reorganization. It is
// the central component the block store, block index, and tx index all
// serve.
package chainengine

import (
	"math/big"
	"sync"

	"github.com/artea/corecoin/blockindex"
	"github.com/artea/corecoin/blockstore"
	"github.com/artea/corecoin/chaincfg"
	"github.com/artea/corecoin/chainerr"
	"github.com/artea/corecoin/chainhash"
	"github.com/artea/corecoin/database"
	"github.com/artea/corecoin/logger"
	"github.com/artea/corecoin/logs"
	"github.com/artea/corecoin/txindex"
	"github.com/artea/corecoin/wire"
)

var log logs.Logger

func init() {
	log, _ = logger.Get(logger.SubsystemTags.CHNE)
}

// Callbacks are the notification hooks external collaborators (peer
// broadcast, an RPC server) register with the engine. Any left nil is
// simply not invoked. OnBlockAccepted and OnBestChainChanged are called by
// the engine; OnMempoolAccepted is carried in the struct but nothing in the
// engine or the mempool calls it.
type Callbacks struct {
	OnBlockAccepted     func(block *wire.MsgBlock)
	OnBestChainChanged  func(tip *blockindex.Node)
	OnMempoolAccepted   func(tx *wire.MsgTx)
}

// Engine is the chain engine: it owns the single chain lock serializing
// every mutating operation against the block index, the tx index, and the
// mempool it drives on best-chain changes.
type Engine struct {
	mu sync.RWMutex

	chain    chaincfg.Chain
	store    *blockstore.Store
	db       database.Database
	verifier SignatureVerifier
	time     TimeSource
	mempool  MemPool

	index *blockindex.Index

	bestHandle      blockindex.Handle
	hasBest         bool
	bestChainWork   *big.Int
	bestInvalidWork *big.Int
	bestReceivedTime int64

	transactionsUpdated uint64
	initialDownload     bool

	// pendingConnect and pendingDisconnect queue the blocks whose
	// mempool notification must fire once the chain lock is released:
	// the mempool's own admission check re-enters the engine (through
	// ConnectInputsReadOnly, which takes the read lock), so it cannot be
	// called synchronously from inside a write-locked section.
	pendingConnect    []*wire.MsgBlock
	pendingDisconnect []*wire.MsgBlock

	callbacks Callbacks
}

// Config bundles an Engine's external collaborators.
type Config struct {
	Chain      chaincfg.Chain
	Store      *blockstore.Store
	DB         database.Database
	Verifier   SignatureVerifier
	Time       TimeSource
	MemPool    MemPool
	Callbacks  Callbacks
}

// New constructs an Engine and loads its block index from db, creating the
// chain's genesis block if the store is empty.
func New(cfg Config) (*Engine, error) {
	if cfg.Verifier == nil {
		cfg.Verifier = AcceptVerifier{}
	}
	if cfg.MemPool == nil {
		cfg.MemPool = noopMemPool{}
	}
	e := &Engine{
		chain:           cfg.Chain,
		store:           cfg.Store,
		db:              cfg.DB,
		verifier:        cfg.Verifier,
		time:            cfg.Time,
		mempool:         cfg.MemPool,
		index:           blockindex.New(),
		bestInvalidWork: new(big.Int),
		callbacks:       cfg.Callbacks,
		initialDownload: true,
	}
	if err := e.load(); err != nil {
		return nil, err
	}
	return e, nil
}

// load populates the block index from the persisted records, creating the
// genesis entry if the store was empty.
func (e *Engine) load() error {
	cursor, err := e.db.Cursor([]byte(blockIndexKeyPrefix))
	if err != nil {
		return chainerr.Wrap(chainerr.KindIOError, err, "failed to open block index cursor")
	}
	defer cursor.Close()

	var records []loadedRecord

	ok, err := cursor.First()
	if err != nil {
		return chainerr.Wrap(chainerr.KindIOError, err, "failed to read block index cursor")
	}
	for ok {
		keyBytes, err := cursor.Key()
		if err != nil {
			return chainerr.Wrap(chainerr.KindIOError, err, "failed to read block index key")
		}
		var hash chainhash.Hash
		copy(hash[:], keyBytes)
		valueBytes, err := cursor.Value()
		if err != nil {
			return chainerr.Wrap(chainerr.KindIOError, err, "failed to read block index value")
		}
		rec, err := deserializeRecord(valueBytes)
		if err != nil {
			return chainerr.Wrap(chainerr.KindIOError, err, "failed to decode block index record")
		}
		records = append(records, loadedRecord{hash: hash, rec: rec})
		ok = cursor.Next()
	}

	if len(records) == 0 {
		return e.createGenesis()
	}

	sortByHeight(records)

	for _, r := range records {
		if r.rec.Height == 0 {
			h := e.index.AddGenesis(r.rec.header(), r.rec.diskPos())
			e.linkNext(h, r.rec.HashNext)
			continue
		}
		parentHandle, ok := e.index.Lookup(r.rec.HashPrev)
		if !ok {
			return chainerr.New(chainerr.KindUnknownParent, "block index record %s has no loaded parent", r.hash)
		}
		h := e.index.Add(r.rec.header(), parentHandle, r.rec.diskPos())
		e.linkNext(h, r.rec.HashNext)
	}

	bestHashRaw, ok, err := e.db.Get(bestChainKey)
	if err != nil {
		return chainerr.Wrap(chainerr.KindIOError, err, "failed to read best chain pointer")
	}
	if !ok {
		return chainerr.New(chainerr.KindIOError, "block index is non-empty but no best chain pointer is persisted")
	}
	var bestHash chainhash.Hash
	copy(bestHash[:], bestHashRaw)
	bestHandle, ok := e.index.Lookup(bestHash)
	if !ok {
		return chainerr.New(chainerr.KindIOError, "best chain hash %s not found in loaded index", bestHash)
	}
	e.bestHandle = bestHandle
	e.hasBest = true
	e.bestChainWork = new(big.Int).Set(e.index.Node(bestHandle).CumulativeWork)

	return nil
}

func (e *Engine) linkNext(h blockindex.Handle, hashNext chainhash.Hash) {
	if hashNext.IsZero() {
		return
	}
	if nextHandle, ok := e.index.Lookup(hashNext); ok {
		e.index.SetNext(h, nextHandle)
	}
}

// loadedRecord pairs a persisted block index record with the hash it was
// stored under, while load sorts all of them into height order.
type loadedRecord struct {
	hash chainhash.Hash
	rec  blockIndexRecord
}

func sortByHeight(records []loadedRecord) {
	for i := 1; i < len(records); i++ {
		for j := i; j > 0 && records[j-1].rec.Height > records[j].rec.Height; j-- {
			records[j-1], records[j] = records[j], records[j-1]
		}
	}
}

func (e *Engine) createGenesis() error {
	genesis := e.chain.GenesisBlock()
	pos, err := e.store.WriteToDisk(genesis, true)
	if err != nil {
		return err
	}
	h := e.index.AddGenesis(&genesis.Header, pos)
	genesisHash := genesis.BlockHash()

	tx, err := e.db.Begin()
	if err != nil {
		return chainerr.Wrap(chainerr.KindStoreTransactionAborted, err, "failed to begin genesis transaction")
	}
	rec := recordFromNode(e.index.Node(h), e.index)
	raw, err := serializeRecord(rec)
	if err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Put(blockIndexKey(genesisHash), raw); err != nil {
		tx.Rollback()
		return chainerr.Wrap(chainerr.KindStoreTransactionAborted, err, "failed to persist genesis index record")
	}
	if err := tx.Put(bestChainKey, genesisHash.CloneBytes()); err != nil {
		tx.Rollback()
		return chainerr.Wrap(chainerr.KindStoreTransactionAborted, err, "failed to persist best chain pointer")
	}
	locations, err := genesis.TxLocations()
	if err != nil {
		tx.Rollback()
		return chainerr.Wrap(chainerr.KindIOError, err, "failed to locate genesis transactions")
	}
	coinbase := genesis.Transactions[0]
	coinbasePos := blockstore.TxDiskPos{File: pos.File, BlockPos: pos.Offset, TxOffset: pos.Offset + 8 + uint32(locations[0].TxStart)}
	if err := txindex.Put(tx, coinbase.TxHash(), txindex.NewEntry(coinbasePos, 0, len(coinbase.TxOut))); err != nil {
		tx.Rollback()
		return chainerr.Wrap(chainerr.KindStoreTransactionAborted, err, "failed to persist genesis coinbase tx index entry")
	}
	if err := tx.Commit(); err != nil {
		return chainerr.Wrap(chainerr.KindStoreTransactionAborted, err, "failed to commit genesis transaction")
	}

	e.bestHandle = h
	e.hasBest = true
	e.bestChainWork = new(big.Int).Set(e.index.Node(h).CumulativeWork)
	e.bestReceivedTime = genesis.Header.Timestamp

	return nil
}

// Chain returns the chain collaborator the engine was configured with, so
// that callers like the mempool can consult its policy (IsStandard,
// CoinbaseMaturity) without duplicating it.
func (e *Engine) Chain() chaincfg.Chain {
	return e.chain
}

// BestIndex returns a copy of the current best-chain tip's index node.
func (e *Engine) BestIndex() blockindex.Node {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return *e.index.Node(e.bestHandle)
}

// BestChainWork returns the cumulative work of the current best chain tip.
func (e *Engine) BestChainWork() *big.Int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return new(big.Int).Set(e.bestChainWork)
}

// TransactionsUpdated returns the monotonically increasing counter bumped
// on every best-chain change, used by callers polling for new work.
func (e *Engine) TransactionsUpdated() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.transactionsUpdated
}

// SetInitialDownload toggles whether the engine believes it is still in
// initial block download, which relaxes the block-file commit cadence.
func (e *Engine) SetInitialDownload(v bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.initialDownload = v
}

// SetMemPool attaches the mempool driven on best-chain changes. Construction
// is necessarily two-phase: the mempool's own constructor takes the engine
// it will query, so it cannot be ready in time for Config.MemPool.
func (e *Engine) SetMemPool(m MemPool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.mempool = m
}

// GetBlock reads and deserializes the block at index node h.
func (e *Engine) GetBlock(h blockindex.Handle) (*wire.MsgBlock, error) {
	e.mu.RLock()
	pos := e.index.Node(h).DiskPos
	e.mu.RUnlock()
	return e.store.ReadFromDisk(pos)
}

// NextBlockParams returns the required proof-of-work bits and the median
// time past for a block extending the current best chain tip, the same
// quantities acceptBlockLocked itself checks a submitted block against; an
// acceptable timestamp must be strictly greater than minTimestamp. The template builder and miner consult this so a block they
// construct is accepted on the first try.
func (e *Engine) NextBlockParams() (bits uint32, minTimestamp int64) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	tip := e.index.Node(e.bestHandle)
	firstTimestamp := e.retargetWindowStart(e.bestHandle)
	bits = e.chain.NextWorkRequired(tip.Height, tip.Bits, tip.Timestamp, firstTimestamp)
	minTimestamp = e.index.MedianTimePast(e.bestHandle, e.chain.MedianTimeSpan())
	return bits, minTimestamp
}
