package main

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/urfave/cli/v2"

	"github.com/DeFiCh/ain-sub000/core"
	"github.com/DeFiCh/ain-sub000/node"
)

var commandInit = &cli.Command{
	Name:  "init",
	Usage: "write the genesis block",
	Description: `
Assembles block 0 from the configured genesis allocation and the system
contracts and commits it. Running it on an initialised database prints the
existing genesis block.`,
	Flags: []cli.Flag{
		&cli.Uint64Flag{
			Name:  "timestamp",
			Usage: "genesis timestamp (defaults to now)",
		},
	},
	Action: func(ctx *cli.Context) error {
		n, err := openNode(ctx)
		if err != nil {
			return err
		}
		defer n.Close()

		timestamp := ctx.Uint64("timestamp")
		if timestamp == 0 {
			timestamp = uint64(time.Now().Unix())
		}
		block, err := n.InitGenesis(timestamp)
		if err != nil {
			return err
		}
		fmt.Printf("genesis %s root %s\n", block.Hash().Hex(), block.Root().Hex())
		return nil
	},
}

var commandDisconnect = &cli.Command{
	Name:  "disconnect",
	Usage: "remove the latest committed block",
	Description: `
Makes the parent of the latest block the head again, dropping the block's
receipts, transaction lookups and logs. Disconnecting block 0 leaves an
empty chain.`,
	Action: func(ctx *cli.Context) error {
		n, err := openNode(ctx)
		if err != nil {
			return err
		}
		defer n.Close()

		var hash common.Hash
		err = n.Engine().Coordinator().WithLock(func(lock *core.StateLock) error {
			hash, err = n.Engine().DisconnectLatestBlock(lock)
			return err
		})
		if err != nil {
			return err
		}
		fmt.Printf("disconnected %s\n", hash.Hex())
		return nil
	},
}

var commandHead = &cli.Command{
	Name:  "head",
	Usage: "print the latest committed block",
	Flags: []cli.Flag{jsonFlag},
	Action: func(ctx *cli.Context) error {
		return printBlock(ctx, core.LatestBlockNumber)
	},
}

var commandBlock = &cli.Command{
	Name:      "block",
	Usage:     "print a committed block",
	ArgsUsage: "<number>",
	Flags:     []cli.Flag{jsonFlag},
	Action: func(ctx *cli.Context) error {
		number, err := parseBlockNumber(ctx.Args().First())
		if err != nil {
			return err
		}
		return printBlock(ctx, number)
	},
}

type outputBlock struct {
	Number       uint64
	Hash         common.Hash
	ParentHash   common.Hash
	StateRoot    common.Hash
	Timestamp    uint64
	GasUsed      uint64
	GasLimit     uint64
	BaseFee      string
	Beneficiary  common.Address
	Transactions []common.Hash
}

func printBlock(ctx *cli.Context, number core.BlockNumber) error {
	n, err := openNode(ctx)
	if err != nil {
		return err
	}
	defer n.Close()

	block, err := n.Engine().BlockByNumber(number)
	if err != nil {
		return err
	}
	out := outputBlock{
		Number:      block.NumberU64(),
		Hash:        block.Hash(),
		ParentHash:  block.ParentHash(),
		StateRoot:   block.Root(),
		Timestamp:   block.Time(),
		GasUsed:     block.GasUsed(),
		GasLimit:    block.GasLimit(),
		Beneficiary: block.Coinbase(),
	}
	if block.BaseFee() != nil {
		out.BaseFee = block.BaseFee().String()
	}
	for _, tx := range block.Transactions() {
		out.Transactions = append(out.Transactions, tx.Hash())
	}
	if ctx.Bool(jsonFlag.Name) {
		return printJSON(out)
	}
	fmt.Printf("Block:        %d\n", out.Number)
	fmt.Printf("Hash:         %s\n", out.Hash.Hex())
	fmt.Printf("Parent:       %s\n", out.ParentHash.Hex())
	fmt.Printf("State root:   %s\n", out.StateRoot.Hex())
	fmt.Printf("Timestamp:    %d\n", out.Timestamp)
	fmt.Printf("Gas:          %d / %d\n", out.GasUsed, out.GasLimit)
	fmt.Printf("Base fee:     %s\n", out.BaseFee)
	fmt.Printf("Beneficiary:  %s\n", out.Beneficiary.Hex())
	fmt.Printf("Transactions: %d\n", len(out.Transactions))
	for _, h := range out.Transactions {
		fmt.Printf("  %s\n", h.Hex())
	}
	return nil
}

var commandReceipt = &cli.Command{
	Name:      "receipt",
	Usage:     "print the receipt of a committed transaction",
	ArgsUsage: "<txhash>",
	Flags:     []cli.Flag{jsonFlag},
	Action: func(ctx *cli.Context) error {
		arg := ctx.Args().First()
		if len(common.FromHex(arg)) != common.HashLength {
			return fmt.Errorf("invalid transaction hash %q", arg)
		}
		n, err := openNode(ctx)
		if err != nil {
			return err
		}
		defer n.Close()

		receipt, err := n.Engine().Receipt(common.HexToHash(arg))
		if err != nil {
			return err
		}
		if ctx.Bool(jsonFlag.Name) {
			return printJSON(receipt)
		}
		fmt.Printf("Transaction:  %s\n", receipt.TxHash.Hex())
		fmt.Printf("Block:        %d (%s)\n", receipt.BlockNumber, receipt.BlockHash.Hex())
		fmt.Printf("Index:        %d\n", receipt.TransactionIndex)
		fmt.Printf("From:         %s\n", receipt.From.Hex())
		if receipt.To != nil {
			fmt.Printf("To:           %s\n", receipt.To.Hex())
		}
		if receipt.ContractAddress != (common.Address{}) {
			fmt.Printf("Contract:     %s\n", receipt.ContractAddress.Hex())
		}
		fmt.Printf("Status:       %d\n", receipt.Status)
		fmt.Printf("Gas used:     %d (cumulative %d)\n", receipt.GasUsed, receipt.CumulativeGasUsed)
		fmt.Printf("Price:        %s\n", receipt.EffectiveGasPrice)
		fmt.Printf("Logs:         %d\n", len(receipt.Logs))
		return nil
	},
}

var commandDumpConfig = &cli.Command{
	Name:  "dumpconfig",
	Usage: "print the effective configuration as TOML",
	Action: func(ctx *cli.Context) error {
		cfg, err := loadConfig(ctx)
		if err != nil {
			return err
		}
		out, err := node.MarshalConfig(cfg)
		if err != nil {
			return err
		}
		fmt.Print(string(out))
		return nil
	},
}
