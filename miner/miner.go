// Package miner implements the cooperative single-threaded proof-of-work
// search loop: build a template, search a nonce range sized to land near a
// fixed wall-clock interval, adapt that range to the measured hash rate,
// and submit any found block back through the chain engine's normal
// acceptance path — the same path a block from a peer would take.
package miner

import (
	"sync"
	"time"

	"github.com/artea/corecoin/chainengine"
	"github.com/artea/corecoin/logger"
	"github.com/artea/corecoin/logs"
	"github.com/artea/corecoin/mining"
)

var log logs.Logger

func init() {
	log, _ = logger.Get(logger.SubsystemTags.MNER)
}

// State reports whether the miner's event loop is between rounds or in the
// middle of searching a nonce range.
type State int

const (
	Idle State = iota
	Working
)

// initialHashesPerSecond is the opening guess the adaptive nonce-range
// sizing starts from, before the first round's measurement corrects it.
const initialHashesPerSecond = 100000

// updateInterval is the wall-clock budget a single search round targets;
// hashesPerSecond is adjusted after every round to keep rounds near it.
const updateInterval = 2 * time.Second

// Miner drives handleGenerate through a single-goroutine cooperative event
// loop: SetGenerate posts work, Run drains it, Shutdown drains and stops it.
// There is never more than one round in flight.
type Miner struct {
	chain   *chainengine.Engine
	builder *mining.Builder
	hasher  Hasher

	payScript []byte

	mu              sync.Mutex
	generate        bool
	state           State
	hashesPerSecond uint64

	work chan struct{}
	quit chan struct{}
	done chan struct{}
}

// New constructs a Miner paying found blocks to payScript. It registers the
// CPU hasher, the only one this module ships.
func New(chain *chainengine.Engine, builder *mining.Builder, payScript []byte) *Miner {
	return &Miner{
		chain:           chain,
		builder:         builder,
		hasher:          CPUHasher{},
		payScript:       payScript,
		hashesPerSecond: initialHashesPerSecond,
		work:            make(chan struct{}, 1),
		quit:            make(chan struct{}),
		done:            make(chan struct{}),
	}
}

// SetHasher overrides the registered hasher, e.g. for tests that want a
// hasher which always succeeds on the first try.
func (m *Miner) SetHasher(h Hasher) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hasher = h
}

// State reports the miner's current Idle/Working state.
func (m *Miner) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Run drives the event loop until Shutdown is called. Callers start it in
// its own goroutine; it returns when that goroutine should exit.
func (m *Miner) Run() {
	defer close(m.done)
	for {
		select {
		case <-m.quit:
			return
		case <-m.work:
			m.handleGenerate()
		}
	}
}

// SetGenerate toggles whether the miner searches for blocks. Turning
// generation on posts the first round to the event loop; turning it off
// lets any round already in flight finish and the loop go idle.
func (m *Miner) SetGenerate(generate bool) {
	m.mu.Lock()
	wasGenerating := m.generate
	m.generate = generate
	m.mu.Unlock()

	if generate && !wasGenerating {
		m.post()
	}
}

// post enqueues a handleGenerate round, coalescing with one already queued.
func (m *Miner) post() {
	select {
	case m.work <- struct{}{}:
	default:
	}
}

// Shutdown stops the event loop and waits for it to drain.
func (m *Miner) Shutdown() {
	close(m.quit)
	<-m.done
}

// handleGenerate builds one template, searches it for an interval's worth
// of nonces at the current hash rate estimate, and either submits a found
// block or adapts hashesPerSecond from the round's measured throughput.
func (m *Miner) handleGenerate() {
	m.mu.Lock()
	generating := m.generate
	hasher := m.hasher
	nonces := uint64(updateInterval/time.Millisecond) * m.hashesPerSecond / 1000
	m.mu.Unlock()

	if !generating {
		m.mu.Lock()
		m.state = Idle
		m.mu.Unlock()
		return
	}
	m.mu.Lock()
	m.state = Working
	m.mu.Unlock()

	const extraNonce = 1
	block, _, err := m.builder.BuildTemplate(m.payScript, extraNonce)
	if err != nil {
		log.Warnf("failed to build block template: %v", err)
		m.post()
		return
	}

	if nonces == 0 {
		nonces = 1
	}

	start := time.Now()
	_, found := hasher.Search(block, nonces)
	elapsed := time.Since(start)

	if found {
		hash := block.BlockHash()
		if err := m.chain.AcceptBlock(block); err != nil {
			log.Warnf("found block %s was rejected: %v", hash, err)
		} else {
			log.Infof("found block %s, reward %d", hash, block.Transactions[0].TxOut[0].Value)
		}
	} else if elapsedMS := elapsed.Milliseconds(); elapsedMS > 0 {
		m.mu.Lock()
		m.hashesPerSecond = 1000 * nonces / uint64(elapsedMS)
		m.mu.Unlock()
	}

	m.mu.Lock()
	m.state = Idle
	m.mu.Unlock()
	m.post()
}
