package wire

import "github.com/pkg/errors"

func errBlockTooManyTx(count uint64) error {
	return errors.Errorf("block claims %d transactions, more than the %d allowed", count, MaxBlockTransactions)
}
