package rawdb

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/DeFiCh/ain-sub000/core/types"
)

// --- Block Accessors ---

// WriteBlock stores a block under its number together with the hash->number
// mapping used for lookups by hash.
func WriteBlock(db ethdb.KeyValueWriter, block *gethtypes.Block) error {
	data, err := rlp.EncodeToBytes(block)
	if err != nil {
		return fmt.Errorf("rawdb: encode block %d: %w", block.NumberU64(), err)
	}
	if err := db.Put(blockKey(block.NumberU64()), data); err != nil {
		return err
	}
	return db.Put(blockNumberKey(block.Hash()), encodeBlockNumber(block.NumberU64()))
}

// DeleteBlock removes a block and its hash->number mapping.
func DeleteBlock(db ethdb.KeyValueWriter, number uint64, hash common.Hash) error {
	if err := db.Delete(blockKey(number)); err != nil {
		return err
	}
	return db.Delete(blockNumberKey(hash))
}

// ReadBlock retrieves the block stored at number.
func ReadBlock(db ethdb.KeyValueReader, number uint64) (*gethtypes.Block, error) {
	data, err := get(db, blockKey(number))
	if err != nil {
		return nil, err
	}
	block := new(gethtypes.Block)
	if err := rlp.DecodeBytes(data, block); err != nil {
		return nil, fmt.Errorf("rawdb: decode block %d: %w", number, err)
	}
	return block, nil
}

// ReadBlockNumber resolves a block hash to its number.
func ReadBlockNumber(db ethdb.KeyValueReader, hash common.Hash) (uint64, error) {
	data, err := get(db, blockNumberKey(hash))
	if err != nil {
		return 0, err
	}
	return decodeBlockNumber(data)
}

// WriteLatestBlockNumber moves the latest-block marker.
func WriteLatestBlockNumber(db ethdb.KeyValueWriter, number uint64) error {
	return db.Put(latestBlockKey, encodeBlockNumber(number))
}

// DeleteLatestBlockNumber clears the latest-block marker.
func DeleteLatestBlockNumber(db ethdb.KeyValueWriter) error {
	return db.Delete(latestBlockKey)
}

// ReadLatestBlockNumber returns the latest-block marker, or ErrNotFound
// before the first commit.
func ReadLatestBlockNumber(db ethdb.KeyValueReader) (uint64, error) {
	data, err := get(db, latestBlockKey)
	if err != nil {
		return 0, err
	}
	return decodeBlockNumber(data)
}

// --- Transaction Accessors ---

// TxLookup locates a transaction inside a persisted block.
type TxLookup struct {
	BlockNumber uint64
	BlockHash   common.Hash
	Index       uint64
}

type storedTx struct {
	Lookup TxLookup
	Raw    []byte
}

// WriteTransaction stores a transaction's binary envelope with its position.
func WriteTransaction(db ethdb.KeyValueWriter, tx *gethtypes.Transaction, lookup TxLookup) error {
	raw, err := tx.MarshalBinary()
	if err != nil {
		return fmt.Errorf("rawdb: encode tx %x: %w", tx.Hash(), err)
	}
	data, err := rlp.EncodeToBytes(&storedTx{Lookup: lookup, Raw: raw})
	if err != nil {
		return err
	}
	return db.Put(txLookupKey(tx.Hash()), data)
}

// ReadTransaction retrieves a transaction and its position by hash.
func ReadTransaction(db ethdb.KeyValueReader, hash common.Hash) (*gethtypes.Transaction, *TxLookup, error) {
	data, err := get(db, txLookupKey(hash))
	if err != nil {
		return nil, nil, err
	}
	var stored storedTx
	if err := rlp.DecodeBytes(data, &stored); err != nil {
		return nil, nil, fmt.Errorf("rawdb: decode tx %x: %w", hash, err)
	}
	tx := new(gethtypes.Transaction)
	if err := tx.UnmarshalBinary(stored.Raw); err != nil {
		return nil, nil, fmt.Errorf("rawdb: decode tx %x: %w", hash, err)
	}
	return tx, &stored.Lookup, nil
}

// --- Receipt Accessors ---

// storedReceipt carries the consensus receipt plus the derived fields that
// ReceiptForStorage drops.
type storedReceipt struct {
	Receipt           *gethtypes.ReceiptForStorage
	Type              uint8
	TxHash            common.Hash
	BlockHash         common.Hash
	BlockNumber       uint64
	TxIndex           uint64
	FirstLogIndex     uint64
	GasUsed           uint64
	EffectiveGasPrice *big.Int
	ContractAddress   common.Address
	From              common.Address
	To                *common.Address `rlp:"nil"`
}

// WriteReceipt stores a receipt under its transaction hash.
func WriteReceipt(db ethdb.KeyValueWriter, r *types.Receipt) error {
	var firstLog uint64
	if len(r.Logs) > 0 {
		firstLog = uint64(r.Logs[0].Index)
	}
	var number uint64
	if r.BlockNumber != nil {
		number = r.BlockNumber.Uint64()
	}
	data, err := rlp.EncodeToBytes(&storedReceipt{
		Receipt:           (*gethtypes.ReceiptForStorage)(r.Receipt),
		Type:              r.Type,
		TxHash:            r.TxHash,
		BlockHash:         r.BlockHash,
		BlockNumber:       number,
		TxIndex:           uint64(r.TransactionIndex),
		FirstLogIndex:     firstLog,
		GasUsed:           r.GasUsed,
		EffectiveGasPrice: r.EffectiveGasPrice,
		ContractAddress:   r.ContractAddress,
		From:              r.From,
		To:                r.To,
	})
	if err != nil {
		return fmt.Errorf("rawdb: encode receipt %x: %w", r.TxHash, err)
	}
	return db.Put(receiptKey(r.TxHash), data)
}

// ReadReceipt retrieves the receipt of a transaction, re-deriving the log
// positions the storage encoding does not keep.
func ReadReceipt(db ethdb.KeyValueReader, hash common.Hash) (*types.Receipt, error) {
	data, err := get(db, receiptKey(hash))
	if err != nil {
		return nil, err
	}
	var stored storedReceipt
	if err := rlp.DecodeBytes(data, &stored); err != nil {
		return nil, fmt.Errorf("rawdb: decode receipt %x: %w", hash, err)
	}
	r := (*gethtypes.Receipt)(stored.Receipt)
	r.Type = stored.Type
	r.TxHash = stored.TxHash
	r.BlockHash = stored.BlockHash
	r.BlockNumber = new(big.Int).SetUint64(stored.BlockNumber)
	r.TransactionIndex = uint(stored.TxIndex)
	r.GasUsed = stored.GasUsed
	r.EffectiveGasPrice = stored.EffectiveGasPrice
	r.ContractAddress = stored.ContractAddress
	for i, l := range r.Logs {
		l.TxHash = stored.TxHash
		l.TxIndex = uint(stored.TxIndex)
		l.BlockHash = stored.BlockHash
		l.BlockNumber = stored.BlockNumber
		l.Index = uint(stored.FirstLogIndex) + uint(i)
	}
	return &types.Receipt{Receipt: r, From: stored.From, To: stored.To}, nil
}

// --- Log Accessors ---

type storedLog struct {
	Address   common.Address
	Topics    []common.Hash
	Data      []byte
	TxHash    common.Hash
	TxIndex   uint64
	BlockHash common.Hash
	Index     uint64
}

// WriteLogs stores the logs emitted by addr in block number.
func WriteLogs(db ethdb.KeyValueWriter, number uint64, addr common.Address, logs []*gethtypes.Log) error {
	stored := make([]storedLog, len(logs))
	for i, l := range logs {
		stored[i] = storedLog{
			Address:   l.Address,
			Topics:    l.Topics,
			Data:      l.Data,
			TxHash:    l.TxHash,
			TxIndex:   uint64(l.TxIndex),
			BlockHash: l.BlockHash,
			Index:     uint64(l.Index),
		}
	}
	data, err := rlp.EncodeToBytes(stored)
	if err != nil {
		return err
	}
	return db.Put(logKey(number, addr), data)
}

// ReadLogs retrieves the logs emitted by addr in block number.
func ReadLogs(db ethdb.KeyValueReader, number uint64, addr common.Address) ([]*gethtypes.Log, error) {
	data, err := get(db, logKey(number, addr))
	if err != nil {
		return nil, err
	}
	return decodeLogs(data, number)
}

// ReadBlockLogs retrieves every log of block number, grouped by emitter.
func ReadBlockLogs(db ethdb.Iteratee, number uint64) (map[common.Address][]*gethtypes.Log, error) {
	it := db.NewIterator(logsPrefix(number), nil)
	defer it.Release()

	out := make(map[common.Address][]*gethtypes.Log)
	for it.Next() {
		key := it.Key()
		addr := common.BytesToAddress(key[len(key)-common.AddressLength:])
		logs, err := decodeLogs(it.Value(), number)
		if err != nil {
			return nil, err
		}
		out[addr] = logs
	}
	return out, it.Error()
}

func decodeLogs(data []byte, number uint64) ([]*gethtypes.Log, error) {
	var stored []storedLog
	if err := rlp.DecodeBytes(data, &stored); err != nil {
		return nil, fmt.Errorf("rawdb: decode logs of block %d: %w", number, err)
	}
	logs := make([]*gethtypes.Log, len(stored))
	for i, s := range stored {
		logs[i] = &gethtypes.Log{
			Address:     s.Address,
			Topics:      s.Topics,
			Data:        s.Data,
			BlockNumber: number,
			TxHash:      s.TxHash,
			TxIndex:     uint(s.TxIndex),
			BlockHash:   s.BlockHash,
			Index:       uint(s.Index),
		}
	}
	return logs, nil
}
