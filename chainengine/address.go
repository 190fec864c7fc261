package chainengine

import (
	"github.com/artea/corecoin/addrindex"
	"github.com/artea/corecoin/chainhash"
)

// AddressCredits returns every coin ever recorded paying addr's script,
// mirroring the original project's getCredit accessor.
func (e *Engine) AddressCredits(addr chainhash.Hash160) ([]addrindex.Coin, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return addrindex.Credits(e.db, addr)
}

// AddressDebits returns every coin ever recorded spent from addr's script,
// mirroring the original project's getDebit accessor.
func (e *Engine) AddressDebits(addr chainhash.Hash160) ([]addrindex.Coin, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return addrindex.Debits(e.db, addr)
}
