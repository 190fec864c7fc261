// Package addrindex implements the persistent address credit/debit index:
// for each output-script digest, the set of coins that ever paid it
// ("credits") and the set of coins that ever spent from it ("debits"). This
// completes the address lookup hook the original project left wired up in
// comments (BlockChain.cpp's UpdateTxIndex/EraseTxIndex, and its
// _creditIndex/_debitIndex members) but never actually connected.
package addrindex

import (
	"bytes"
	"io"

	"github.com/artea/corecoin/chainerr"
	"github.com/artea/corecoin/chainhash"
	"github.com/artea/corecoin/database"
	"github.com/artea/corecoin/wire"
)

const (
	creditPrefix = "cr"
	debitPrefix  = "dr"
)

// Coin identifies a single transaction output by its transaction hash and
// output index, the same addressing OutPoint uses.
type Coin struct {
	TxHash chainhash.Hash
	Index  uint32
}

func key(prefix string, addr chainhash.Hash160) []byte {
	return append([]byte(prefix), addr[:]...)
}

// AddCredit records that addr's script was paid by coin.
func AddCredit(accessor database.DataAccessor, addr chainhash.Hash160, coin Coin) error {
	return add(accessor, creditPrefix, addr, coin)
}

// RemoveCredit reverts AddCredit, used while disconnecting a block.
func RemoveCredit(accessor database.DataAccessor, addr chainhash.Hash160, coin Coin) error {
	return remove(accessor, creditPrefix, addr, coin)
}

// AddDebit records that addr's script was spent from by coin.
func AddDebit(accessor database.DataAccessor, addr chainhash.Hash160, coin Coin) error {
	return add(accessor, debitPrefix, addr, coin)
}

// RemoveDebit reverts AddDebit, used while disconnecting a block.
func RemoveDebit(accessor database.DataAccessor, addr chainhash.Hash160, coin Coin) error {
	return remove(accessor, debitPrefix, addr, coin)
}

// Credits returns every coin ever recorded paying addr's script.
func Credits(accessor database.DataAccessor, addr chainhash.Hash160) ([]Coin, error) {
	return get(accessor, creditPrefix, addr)
}

// Debits returns every coin ever recorded spent from addr's script.
func Debits(accessor database.DataAccessor, addr chainhash.Hash160) ([]Coin, error) {
	return get(accessor, debitPrefix, addr)
}

func get(accessor database.DataAccessor, prefix string, addr chainhash.Hash160) ([]Coin, error) {
	raw, ok, err := accessor.Get(key(prefix, addr))
	if err != nil {
		return nil, chainerr.Wrap(chainerr.KindIOError, err, "failed to read address index entry")
	}
	if !ok {
		return nil, nil
	}
	return deserializeCoins(raw)
}

// add inserts coin into the set for addr, overwriting the whole record
// (mirroring the original's Read-modify-Write-whole-set approach, since a
// key-value store has no native set union).
func add(accessor database.DataAccessor, prefix string, addr chainhash.Hash160, coin Coin) error {
	coins, err := get(accessor, prefix, addr)
	if err != nil {
		return err
	}
	for _, c := range coins {
		if c == coin {
			return nil
		}
	}
	return put(accessor, prefix, addr, append(coins, coin))
}

func remove(accessor database.DataAccessor, prefix string, addr chainhash.Hash160, coin Coin) error {
	coins, err := get(accessor, prefix, addr)
	if err != nil {
		return err
	}
	kept := coins[:0]
	for _, c := range coins {
		if c != coin {
			kept = append(kept, c)
		}
	}
	if len(kept) == 0 {
		if err := accessor.Delete(key(prefix, addr)); err != nil {
			return chainerr.Wrap(chainerr.KindStoreTransactionAborted, err, "failed to delete address index entry")
		}
		return nil
	}
	return put(accessor, prefix, addr, kept)
}

func put(accessor database.DataAccessor, prefix string, addr chainhash.Hash160, coins []Coin) error {
	raw, err := serializeCoins(coins)
	if err != nil {
		return chainerr.Wrap(chainerr.KindIOError, err, "failed to encode address index entry")
	}
	if err := accessor.Put(key(prefix, addr), raw); err != nil {
		return chainerr.Wrap(chainerr.KindStoreTransactionAborted, err, "failed to write address index entry")
	}
	return nil
}

func serializeCoins(coins []Coin) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := wire.WriteVarInt(buf, uint64(len(coins))); err != nil {
		return nil, err
	}
	for _, c := range coins {
		if _, err := buf.Write(c.TxHash[:]); err != nil {
			return nil, err
		}
		if err := wire.WriteVarInt(buf, uint64(c.Index)); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func deserializeCoins(raw []byte) ([]Coin, error) {
	r := bytes.NewReader(raw)
	count, err := wire.ReadVarInt(r)
	if err != nil {
		return nil, err
	}
	coins := make([]Coin, count)
	for i := range coins {
		if _, err := io.ReadFull(r, coins[i].TxHash[:]); err != nil {
			return nil, err
		}
		index, err := wire.ReadVarInt(r)
		if err != nil {
			return nil, err
		}
		coins[i].Index = uint32(index)
	}
	return coins, nil
}
