package addrindex

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/artea/corecoin/chainhash"
	"github.com/artea/corecoin/dbstore/leveldbkv"
)

func openTestDB(t *testing.T) *leveldbkv.DB {
	t.Helper()
	db, err := leveldbkv.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, db.Close()) })
	return db
}

func TestAddCreditThenGet(t *testing.T) {
	db := openTestDB(t)
	addr := chainhash.Hash160B([]byte("recipient script"))
	coin := Coin{TxHash: chainhash.HashH([]byte("tx")), Index: 1}

	require.NoError(t, AddCredit(db, addr, coin))

	got, err := Credits(db, addr)
	require.NoError(t, err)
	require.Equal(t, []Coin{coin}, got)

	empty, err := Debits(db, addr)
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestAddCreditIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	addr := chainhash.Hash160B([]byte("recipient script"))
	coin := Coin{TxHash: chainhash.HashH([]byte("tx")), Index: 0}

	require.NoError(t, AddCredit(db, addr, coin))
	require.NoError(t, AddCredit(db, addr, coin))

	got, err := Credits(db, addr)
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestRemoveCreditDeletesEmptyRecord(t *testing.T) {
	db := openTestDB(t)
	addr := chainhash.Hash160B([]byte("recipient script"))
	coin := Coin{TxHash: chainhash.HashH([]byte("tx")), Index: 0}

	require.NoError(t, AddCredit(db, addr, coin))
	require.NoError(t, RemoveCredit(db, addr, coin))

	got, err := Credits(db, addr)
	require.NoError(t, err)
	require.Empty(t, got)

	has, err := db.Has(key(creditPrefix, addr))
	require.NoError(t, err)
	require.False(t, has)
}

func TestCreditAndDebitAreIndependentSets(t *testing.T) {
	db := openTestDB(t)
	addr := chainhash.Hash160B([]byte("shared script"))
	credited := Coin{TxHash: chainhash.HashH([]byte("credit-tx")), Index: 0}
	debited := Coin{TxHash: chainhash.HashH([]byte("debit-tx")), Index: 2}

	require.NoError(t, AddCredit(db, addr, credited))
	require.NoError(t, AddDebit(db, addr, debited))

	credits, err := Credits(db, addr)
	require.NoError(t, err)
	require.Equal(t, []Coin{credited}, credits)

	debits, err := Debits(db, addr)
	require.NoError(t, err)
	require.Equal(t, []Coin{debited}, debits)
}

func TestMultipleCoinsPerAddress(t *testing.T) {
	db := openTestDB(t)
	addr := chainhash.Hash160B([]byte("busy script"))
	coin1 := Coin{TxHash: chainhash.HashH([]byte("tx1")), Index: 0}
	coin2 := Coin{TxHash: chainhash.HashH([]byte("tx2")), Index: 1}

	require.NoError(t, AddCredit(db, addr, coin1))
	require.NoError(t, AddCredit(db, addr, coin2))

	got, err := Credits(db, addr)
	require.NoError(t, err)
	require.ElementsMatch(t, []Coin{coin1, coin2}, got)

	require.NoError(t, RemoveCredit(db, addr, coin1))
	got, err = Credits(db, addr)
	require.NoError(t, err)
	require.Equal(t, []Coin{coin2}, got)
}
