// Package mempool implements the unconfirmed transaction pool: admission
// policy, the decaying free-transaction rate limiter, orphan parking until
// a missing parent arrives, and the resurrect/evict bookkeeping the chain
// engine drives on every best-chain change. It satisfies chainengine.MemPool
// without chainengine importing this package.
package mempool

import (
	"math"
	"sync"
	"time"

	"github.com/artea/corecoin/chainengine"
	"github.com/artea/corecoin/chainerr"
	"github.com/artea/corecoin/chainhash"
	"github.com/artea/corecoin/logger"
	"github.com/artea/corecoin/logs"
	"github.com/artea/corecoin/txindex"
	"github.com/artea/corecoin/wire"
)

var log logs.Logger

func init() {
	log, _ = logger.Get(logger.SubsystemTags.TXMP)
}

// minTxSize is the smallest transaction size the pool accepts; anything
// smaller is flagged non-standard, mirroring the original's 100-byte floor.
const minTxSize = 100

// maxSigOpsPerSizeDivisor bounds the allowed signature operation count to
// one per this many bytes of serialized size, the original's anti-DoS
// sigop-to-size ratio.
const maxSigOpsPerSizeDivisor = 34

// maxLockTime is the largest lockTime the mempool admits: a loose
// transaction with a lockTime this far in the future (the 2038 rollover of
// a signed 32-bit Unix timestamp) is rejected outright, though the same
// value is accepted once it's actually mined into a block.
const maxLockTime = math.MaxInt32

// orphanTTL bounds how long an orphan may sit in the pool waiting for its
// missing parent before a sweep evicts it.
const orphanTTL = 15 * time.Minute

// Policy houses the admission parameters the pool enforces.
type Policy struct {
	// MinRelayFee is the smallest per-transaction fee the pool relays
	// without applying the free-transaction rate limiter.
	MinRelayFee uint64
	// FreeTxRelayLimitBytesPerMinute bounds the decaying-average size of
	// free (or low-fee) transactions the pool accepts per minute.
	FreeTxRelayLimitBytesPerMinute float64
	// MaxOrphanTxs caps the number of parked orphan transactions.
	MaxOrphanTxs int
}

// DefaultPolicy mirrors the original's defaults: 15 KB/min of free relay,
// and up to 100 orphans parked at once.
var DefaultPolicy = Policy{
	FreeTxRelayLimitBytesPerMinute: 15 * 1000,
	MaxOrphanTxs:                   100,
}

// TxDesc describes a pooled transaction and the bookkeeping the template
// builder and relay layer need about it.
type TxDesc struct {
	Tx       *wire.MsgTx
	Fee      uint64
	Added    time.Time
	Height   int32 // chain tip height the transaction was accepted against
}

type orphanTx struct {
	tx      *wire.MsgTx
	added   time.Time
}

// Pool is the unconfirmed transaction pool.
type Pool struct {
	mu     sync.RWMutex
	chain  *chainengine.Engine
	policy Policy

	pool      map[chainhash.Hash]*TxDesc
	outpoints map[wire.OutPoint]chainhash.Hash

	orphans       map[chainhash.Hash]*orphanTx
	orphansByPrev map[wire.OutPoint]map[chainhash.Hash]struct{}

	freeCount    float64
	lastFreeTime time.Time
}

// New constructs an empty Pool against chain, which it queries for
// consensus-level validation (connectInputs, standardness, best height) but
// never mutates directly.
func New(chain *chainengine.Engine, policy Policy) *Pool {
	return &Pool{
		chain:         chain,
		policy:        policy,
		pool:          make(map[chainhash.Hash]*TxDesc),
		outpoints:     make(map[wire.OutPoint]chainhash.Hash),
		orphans:       make(map[chainhash.Hash]*orphanTx),
		orphansByPrev: make(map[wire.OutPoint]map[chainhash.Hash]struct{}),
	}
}

// Count returns the number of transactions currently accepted into the pool
// (excluding orphans).
func (p *Pool) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.pool)
}

// Get returns the pooled descriptor for hash, if present.
func (p *Pool) Get(hash chainhash.Hash) (*TxDesc, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	desc, ok := p.pool[hash]
	return desc, ok
}

// MiningDescs returns every currently accepted transaction's descriptor, in
// no particular order, for the template builder to prioritize.
func (p *Pool) MiningDescs() []*TxDesc {
	p.mu.RLock()
	defer p.mu.RUnlock()
	descs := make([]*TxDesc, 0, len(p.pool))
	for _, desc := range p.pool {
		descs = append(descs, desc)
	}
	return descs
}

// ProcessTransaction validates tx and, if one of its inputs does not
// resolve against the confirmed tx index (including an input whose parent
// is itself still in the pool), parks it as an orphan instead of rejecting
// it outright. It returns the transactions (tx itself, plus any orphans it
// unblocks) that were newly accepted into the pool.
func (p *Pool) ProcessTransaction(tx *wire.MsgTx) ([]*wire.MsgTx, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.maybeAcceptTransaction(tx); err != nil {
		if chainerr.Is(err, chainerr.KindInputsUnavailable) {
			if orphanErr := p.addOrphan(tx); orphanErr != nil {
				return nil, orphanErr
			}
			return nil, nil
		}
		return nil, err
	}

	accepted := []*wire.MsgTx{tx}
	accepted = append(accepted, p.processOrphans(tx)...)
	return accepted, nil
}

// maybeAcceptTransaction runs the full admission check and, on success,
// inserts tx into the pool. The caller must hold p.mu.
func (p *Pool) maybeAcceptTransaction(tx *wire.MsgTx) error {
	hash := tx.TxHash()

	if _, ok := p.pool[hash]; ok {
		return chainerr.New(chainerr.KindDuplicate, "mempool: transaction %s already in pool", hash)
	}
	if tx.IsCoinBase() {
		return chainerr.New(chainerr.KindBadTransaction, "mempool: coinbase is not valid as a loose transaction")
	}
	if len(tx.TxIn) == 0 || len(tx.TxOut) == 0 {
		return chainerr.New(chainerr.KindBadTransaction, "mempool: transaction %s has no inputs or outputs", hash)
	}

	var totalOut uint64
	for _, out := range tx.TxOut {
		if !wire.MoneyRange(out.Value) {
			return chainerr.New(chainerr.KindBadTransaction, "mempool: transaction %s output value %d is out of range", hash, out.Value)
		}
		totalOut += out.Value
		if !wire.MoneyRange(totalOut) {
			return chainerr.New(chainerr.KindBadTransaction, "mempool: transaction %s total output value is out of range", hash)
		}
	}

	if tx.LockTime > maxLockTime {
		return chainerr.New(chainerr.KindBadTransaction, "mempool: transaction %s lockTime %d exceeds the mempool's 2038 limit", hash, tx.LockTime)
	}

	size := tx.SerializeSize()
	if size < minTxSize {
		return chainerr.New(chainerr.KindNonStandard, "mempool: transaction %s is smaller than the minimum standard size", hash)
	}
	if tx.SigOpCount() > int64(size)/maxSigOpsPerSizeDivisor {
		return chainerr.New(chainerr.KindNonStandard, "mempool: transaction %s sigop count exceeds its size allowance", hash)
	}
	if !p.chain.Chain().IsStandard(tx) {
		return chainerr.New(chainerr.KindNonStandard, "mempool: transaction %s is non-standard", hash)
	}

	for _, in := range tx.TxIn {
		if owner, conflicts := p.outpoints[in.PreviousOutPoint]; conflicts && owner != hash {
			return chainerr.New(chainerr.KindDoubleSpend, "mempool: transaction %s conflicts with pooled transaction %s over outpoint %s", hash, owner, in.PreviousOutPoint)
		}
	}

	pool := make(txindex.ScratchPool)
	fee, err := p.chain.ConnectInputsReadOnly(tx, pool, nil, 0)
	if err != nil {
		return err
	}

	minFee := minRelayFee(size, p.policy.MinRelayFee)
	if fee < minFee {
		return chainerr.New(chainerr.KindFeeTooLow, "mempool: transaction %s fee %d is below the relay minimum %d", hash, fee, minFee)
	}

	if fee < p.policy.MinRelayFee {
		if !p.allowFreeTransaction(size) {
			return chainerr.New(chainerr.KindRateLimited, "mempool: free transaction %s rejected by the rate limiter", hash)
		}
	}

	p.insert(tx, fee)
	return nil
}

// minRelayFee scales the policy floor by size/1000 + 1 kilobytes (whole
// kilobytes of size, plus one), matching GetMinFee's per-kB relay floor.
func minRelayFee(size int, perKB uint64) uint64 {
	kb := uint64(size)/1000 + 1
	return kb * perKB
}

// allowFreeTransaction applies the decaying ~10-minute window rate limiter:
// the running byte count decays geometrically between calls, a transaction
// is rejected while the decayed total already exceeds the policy limit, and
// an admitted transaction's size is then added to the total. The caller
// must hold p.mu.
func (p *Pool) allowFreeTransaction(size int) bool {
	now := time.Now()
	if !p.lastFreeTime.IsZero() {
		elapsed := now.Sub(p.lastFreeTime).Seconds()
		p.freeCount *= pow1MinusOneOver600(elapsed)
	}
	p.lastFreeTime = now

	if p.freeCount > p.policy.FreeTxRelayLimitBytesPerMinute {
		return false
	}
	p.freeCount += float64(size)
	return true
}

// pow1MinusOneOver600 computes (1 - 1/600)^elapsedSeconds, the same decay
// base the original free-transaction limiter used (an effective 10-minute
// window).
func pow1MinusOneOver600(elapsedSeconds float64) float64 {
	const base = 1.0 - 1.0/600.0
	result := 1.0
	for i := 0; i < int(elapsedSeconds); i++ {
		result *= base
	}
	return result
}

func (p *Pool) insert(tx *wire.MsgTx, fee uint64) {
	hash := tx.TxHash()
	p.pool[hash] = &TxDesc{
		Tx:     tx,
		Fee:    fee,
		Added:  time.Now(),
		Height: p.chain.BestIndex().Height,
	}
	for _, in := range tx.TxIn {
		p.outpoints[in.PreviousOutPoint] = hash
	}
}

func (p *Pool) remove(hash chainhash.Hash) {
	desc, ok := p.pool[hash]
	if !ok {
		return
	}
	for _, in := range desc.Tx.TxIn {
		if owner, ok := p.outpoints[in.PreviousOutPoint]; ok && owner == hash {
			delete(p.outpoints, in.PreviousOutPoint)
		}
	}
	delete(p.pool, hash)
}

func (p *Pool) addOrphan(tx *wire.MsgTx) error {
	p.limitNumOrphans()

	hash := tx.TxHash()
	p.orphans[hash] = &orphanTx{tx: tx, added: time.Now()}
	for _, in := range tx.TxIn {
		if p.orphansByPrev[in.PreviousOutPoint] == nil {
			p.orphansByPrev[in.PreviousOutPoint] = make(map[chainhash.Hash]struct{})
		}
		p.orphansByPrev[in.PreviousOutPoint][hash] = struct{}{}
	}
	return nil
}

func (p *Pool) removeOrphan(hash chainhash.Hash) {
	orphan, ok := p.orphans[hash]
	if !ok {
		return
	}
	for _, in := range orphan.tx.TxIn {
		delete(p.orphansByPrev[in.PreviousOutPoint], hash)
		if len(p.orphansByPrev[in.PreviousOutPoint]) == 0 {
			delete(p.orphansByPrev, in.PreviousOutPoint)
		}
	}
	delete(p.orphans, hash)
}

// limitNumOrphans sweeps expired orphans, then evicts the oldest remaining
// one if the pool is still at capacity. The caller must hold p.mu.
func (p *Pool) limitNumOrphans() {
	now := time.Now()
	for hash, orphan := range p.orphans {
		if now.Sub(orphan.added) > orphanTTL {
			p.removeOrphan(hash)
		}
	}
	for len(p.orphans) >= p.policy.MaxOrphanTxs && p.policy.MaxOrphanTxs > 0 {
		var oldest chainhash.Hash
		var oldestTime time.Time
		for hash, orphan := range p.orphans {
			if oldestTime.IsZero() || orphan.added.Before(oldestTime) {
				oldest, oldestTime = hash, orphan.added
			}
		}
		p.removeOrphan(oldest)
	}
}

// processOrphans re-attempts every orphan that names tx's hash as a parent,
// recursively unblocking any orphan chain that becomes spendable. The
// caller must hold p.mu.
func (p *Pool) processOrphans(tx *wire.MsgTx) []*wire.MsgTx {
	var accepted []*wire.MsgTx
	hash := tx.TxHash()

	queue := []chainhash.Hash{hash}
	for len(queue) > 0 {
		parent := queue[0]
		queue = queue[1:]

		for outIdx := range txOutIndexRange(p.orphansByPrev, parent) {
			children := make([]chainhash.Hash, 0, len(p.orphansByPrev[wire.OutPoint{TxID: parent, Index: outIdx}]))
			for child := range p.orphansByPrev[wire.OutPoint{TxID: parent, Index: outIdx}] {
				children = append(children, child)
			}
			for _, child := range children {
				orphan, ok := p.orphans[child]
				if !ok {
					continue
				}
				if err := p.maybeAcceptTransaction(orphan.tx); err != nil {
					continue
				}
				p.removeOrphan(child)
				accepted = append(accepted, orphan.tx)
				queue = append(queue, child)
			}
		}
	}
	return accepted
}

// txOutIndexRange returns the output indexes of txHash that have at least
// one orphan waiting on them.
func txOutIndexRange(orphansByPrev map[wire.OutPoint]map[chainhash.Hash]struct{}, txHash chainhash.Hash) []uint32 {
	var indexes []uint32
	for op := range orphansByPrev {
		if op.TxID == txHash {
			indexes = append(indexes, op.Index)
		}
	}
	return indexes
}

// OnConnected implements chainengine.MemPool: every transaction newly
// confirmed in block is removed from the pool, since it no longer needs
// relaying or mining.
func (p *Pool) OnConnected(block *wire.MsgBlock) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, tx := range block.Transactions {
		p.remove(tx.TxHash())
	}
	return nil
}

// OnDisconnected implements chainengine.MemPool: every non-coinbase
// transaction in a disconnected block is re-offered to the pool so it can
// be mined again once the chain re-extends.
func (p *Pool) OnDisconnected(block *wire.MsgBlock) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, tx := range block.Transactions {
		if tx.IsCoinBase() {
			continue
		}
		if err := p.maybeAcceptTransaction(tx); err != nil {
			log.Debugf("mempool: failed to resurrect transaction %s: %v", tx.TxHash(), err)
		}
	}
	return nil
}
