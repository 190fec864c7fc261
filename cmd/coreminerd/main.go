// Command coreminerd is a small composition-root binary wiring the chain
// engine, mempool, block template builder, and miner together. It stands in
// for the external RPC/peer layer during manual smoke-testing: there is no
// network protocol here, only a local node that can mine against its own
// mempool and accept the blocks it finds.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/artea/corecoin/blockstore"
	"github.com/artea/corecoin/chaincfg"
	"github.com/artea/corecoin/chainengine"
	"github.com/artea/corecoin/dbstore/leveldbkv"
	"github.com/artea/corecoin/mempool"
	"github.com/artea/corecoin/mining"
	"github.com/artea/corecoin/miner"
)

func main() {
	defer handlePanic()

	cfg, err := parseConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing command-line arguments: %s\n", err)
		os.Exit(1)
	}

	node, err := newNode(cfg)
	if err != nil {
		log.Errorf("failed to start: %v", err)
		os.Exit(1)
	}
	defer node.shutdown()

	if cfg.Generate {
		node.miner.SetGenerate(true)
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	<-interrupt

	log.Info("received interrupt, shutting down")
}

func handlePanic() {
	if err := recover(); err != nil {
		log.Errorf("fatal error: %s", err)
		log.Errorf("stack trace: %s", debug.Stack())
	}
}

// node bundles the long-lived handles a running coreminerd needs to close
// or stop on shutdown.
type node struct {
	db    *leveldbkv.DB
	miner *miner.Miner
}

// newNode constructs and wires every collaborator: the persistent store, the
// chain engine, the mempool (attached to the engine after construction,
// since the mempool's own constructor needs the already-built engine), the
// template builder, and the miner. It starts the miner's event loop but
// leaves generation off unless cfg.Generate requests it.
func newNode(cfg *config) (*node, error) {
	db, err := leveldbkv.Open(filepath.Join(cfg.DataDir, "index"))
	if err != nil {
		return nil, fmt.Errorf("opening index database: %w", err)
	}

	store, err := blockstore.New(filepath.Join(cfg.DataDir, "blocks"))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("opening block store: %w", err)
	}

	chain := chaincfg.NewRegTest()
	timeSource := chainengine.SystemTimeSource{NowFunc: func() int64 { return time.Now().Unix() }}

	engine, err := chainengine.New(chainengine.Config{
		Chain: chain,
		Store: store,
		DB:    db,
		Time:  timeSource,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing chain engine: %w", err)
	}

	pool := mempool.New(engine, mempool.DefaultPolicy)
	engine.SetMemPool(pool)

	builder := mining.NewBuilder(engine, pool, timeSource, mining.DefaultPolicy)
	m := miner.New(engine, builder, cfg.payScript)

	go m.Run()

	return &node{db: db, miner: m}, nil
}

func (n *node) shutdown() {
	n.miner.SetGenerate(false)
	n.miner.Shutdown()
	if err := n.db.Close(); err != nil {
		log.Warnf("error closing database: %v", err)
	}
}
