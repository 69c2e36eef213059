// Package rawdb holds the persisted layout of the side ledger: blocks by
// number, transaction and receipt lookups by hash, the latest-block marker,
// per-address log indices, contract code and chain attributes. All values are
// RLP records stored in a go-ethereum ethdb key-value store.
package rawdb

import (
	"errors"

	"github.com/ethereum/go-ethereum/ethdb"
)

var ErrNotFound = errors.New("rawdb: not found")

// get reads key, mapping absence onto ErrNotFound so callers can tell it
// apart from I/O failures.
func get(db ethdb.KeyValueReader, key []byte) ([]byte, error) {
	ok, err := db.Has(key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return db.Get(key)
}
