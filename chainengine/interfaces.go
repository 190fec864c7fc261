package chainengine

import "github.com/artea/corecoin/wire"

// SignatureVerifier checks that tx's input at inputIndex correctly spends
// prevTx's corresponding output. The concrete script/signature interpreter
// is out of scope for this module; the engine only consumes this contract.
type SignatureVerifier interface {
	Verify(prevTx *wire.MsgTx, tx *wire.MsgTx, inputIndex int) bool
}

// TimeSource supplies the network-adjusted wall-clock time. The template
// builder stamps candidate blocks with it; the engine's AcceptBlock does not
// compare block timestamps against it.
type TimeSource interface {
	AdjustedTime() int64
}

// MemPool is the subset of mempool behavior the chain engine drives
// directly on a best-chain change. AcceptBlock calls it after releasing the
// chain lock, so another caller can observe a block as connected while its
// transactions are still in the mempool. The engine depends only on this
// interface so that chainengine and mempool never import each other.
type MemPool interface {
	OnConnected(block *wire.MsgBlock) error
	OnDisconnected(block *wire.MsgBlock) error
}

// noopMemPool is used when the engine is run without a mempool attached
// (e.g. a block-only import tool).
type noopMemPool struct{}

func (noopMemPool) OnConnected(*wire.MsgBlock) error    { return nil }
func (noopMemPool) OnDisconnected(*wire.MsgBlock) error { return nil }

// AcceptVerifier always approves every signature; it exists so the engine
// and its tests can run without a concrete script interpreter wired in.
type AcceptVerifier struct{}

// Verify implements SignatureVerifier.
func (AcceptVerifier) Verify(prevTx *wire.MsgTx, tx *wire.MsgTx, inputIndex int) bool {
	return true
}

// SystemTimeSource reads the adjusted time directly as what the caller
// passes at construction; a real deployment would feed it from a
// network-median time-offset tracker, which is out of scope here.
type SystemTimeSource struct {
	NowFunc func() int64
}

// AdjustedTime implements TimeSource.
func (s SystemTimeSource) AdjustedTime() int64 {
	return s.NowFunc()
}
