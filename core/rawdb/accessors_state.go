package rawdb

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	gethrawdb "github.com/ethereum/go-ethereum/core/rawdb"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/DeFiCh/ain-sub000/core/types"
)

// --- Code Accessors ---

// WriteCode stores contract bytecode under (address, code hash) and under
// go-ethereum's code-hash key, which is where the EVM state reader looks.
func WriteCode(db ethdb.KeyValueWriter, addr common.Address, codeHash common.Hash, code []byte) error {
	if err := db.Put(contractCodeKey(addr, codeHash), code); err != nil {
		return err
	}
	gethrawdb.WriteCode(db, codeHash, code)
	return nil
}

// ReadCode retrieves the bytecode deployed at addr with the given hash.
func ReadCode(db ethdb.KeyValueReader, addr common.Address, codeHash common.Hash) ([]byte, error) {
	return get(db, contractCodeKey(addr, codeHash))
}

// ReadCodeByHash retrieves bytecode by hash alone, independent of the
// deploying address.
func ReadCodeByHash(db ethdb.KeyValueReader, codeHash common.Hash) ([]byte, error) {
	code := gethrawdb.ReadCode(db, codeHash)
	if len(code) == 0 {
		return nil, ErrNotFound
	}
	return code, nil
}

// HasContractCode reports whether addr has code with codeHash stored.
func HasContractCode(db ethdb.KeyValueReader, addr common.Address, codeHash common.Hash) bool {
	ok, _ := db.Has(contractCodeKey(addr, codeHash))
	return ok
}

// --- Attribute Accessors ---

// WriteAttributes persists the chain attributes.
func WriteAttributes(db ethdb.KeyValueWriter, attrs *types.Attributes) error {
	data, err := rlp.EncodeToBytes(attrs)
	if err != nil {
		return err
	}
	return db.Put(attributesKey, data)
}

// ReadAttributes returns the persisted chain attributes, or ErrNotFound.
func ReadAttributes(db ethdb.KeyValueReader) (*types.Attributes, error) {
	data, err := get(db, attributesKey)
	if err != nil {
		return nil, err
	}
	attrs := new(types.Attributes)
	if err := rlp.DecodeBytes(data, attrs); err != nil {
		return nil, fmt.Errorf("rawdb: decode attributes: %w", err)
	}
	return attrs, nil
}
