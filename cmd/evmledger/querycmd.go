package main

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
	"github.com/urfave/cli/v2"

	"github.com/DeFiCh/ain-sub000/core"
)

var blockFlag = &cli.StringFlag{
	Name:  "block",
	Usage: "block number to query, or \"latest\"",
	Value: "latest",
}

var commandAccount = &cli.Command{
	Name:      "account",
	Usage:     "print the balance, nonce and code size of an account",
	ArgsUsage: "<address>",
	Flags:     []cli.Flag{blockFlag, jsonFlag},
	Action: func(ctx *cli.Context) error {
		arg := ctx.Args().First()
		if !common.IsHexAddress(arg) {
			return fmt.Errorf("invalid address %q", arg)
		}
		addr := common.HexToAddress(arg)
		number, err := parseBlockNumber(ctx.String(blockFlag.Name))
		if err != nil {
			return err
		}
		n, err := openNode(ctx)
		if err != nil {
			return err
		}
		defer n.Close()

		type outputAccount struct {
			Address  common.Address
			Balance  *big.Int
			Nonce    uint64
			CodeSize int
		}
		out := outputAccount{Address: addr}
		err = n.Engine().Coordinator().WithLock(func(lock *core.StateLock) error {
			balance, err := n.Engine().BalanceAt(lock, addr, number)
			if err != nil {
				return err
			}
			out.Balance = balance.ToBig()
			if out.Nonce, err = n.Engine().NonceAt(lock, addr, number); err != nil {
				return err
			}
			code, err := n.Engine().CodeAt(lock, addr, number)
			out.CodeSize = len(code)
			return err
		})
		if err != nil {
			return err
		}
		if ctx.Bool(jsonFlag.Name) {
			return printJSON(out)
		}
		fmt.Printf("Address:   %s\n", out.Address.Hex())
		fmt.Printf("Balance:   %s\n", out.Balance)
		fmt.Printf("Nonce:     %d\n", out.Nonce)
		fmt.Printf("Code size: %d\n", out.CodeSize)
		return nil
	},
}

var commandFees = &cli.Command{
	Name:  "fees",
	Usage: "print the next base fee, the suggested priority fee and the fee history",
	Flags: []cli.Flag{
		&cli.Uint64Flag{
			Name:  "blocks",
			Usage: "number of blocks in the fee history",
			Value: 4,
		},
		&cli.StringFlag{
			Name:  "percentiles",
			Usage: "comma separated reward percentiles",
			Value: "25,50,75",
		},
		blockFlag,
		jsonFlag,
	},
	Action: func(ctx *cli.Context) error {
		percentiles, err := parsePercentiles(ctx.String("percentiles"))
		if err != nil {
			return err
		}
		highest, err := parseBlockNumber(ctx.String(blockFlag.Name))
		if err != nil {
			return err
		}
		n, err := openNode(ctx)
		if err != nil {
			return err
		}
		defer n.Close()

		baseFee, err := n.Engine().BaseFee()
		if err != nil {
			return err
		}
		tip, err := n.Engine().SuggestPriorityFee()
		if err != nil {
			return err
		}
		history, err := n.Engine().FeeHistory(ctx.Uint64("blocks"), highest, percentiles)
		if err != nil {
			return err
		}

		type outputFees struct {
			BaseFee       *hexutil.Big
			PriorityFee   *hexutil.Big
			OldestBlock   hexutil.Uint64
			BaseFees      []*hexutil.Big
			GasUsedRatios []float64
			Rewards       [][]*hexutil.Big
		}
		out := outputFees{
			BaseFee:       toHexBig(baseFee),
			PriorityFee:   toHexBig(tip),
			OldestBlock:   hexutil.Uint64(history.OldestBlock),
			GasUsedRatios: history.GasUsedRatio,
		}
		for _, fee := range history.BaseFee {
			out.BaseFees = append(out.BaseFees, toHexBig(fee))
		}
		for _, row := range history.Reward {
			rewards := make([]*hexutil.Big, len(row))
			for i, r := range row {
				rewards[i] = toHexBig(r)
			}
			out.Rewards = append(out.Rewards, rewards)
		}
		if ctx.Bool(jsonFlag.Name) {
			return printJSON(out)
		}
		fmt.Printf("Next base fee:          %s\n", baseFee.Dec())
		fmt.Printf("Suggested priority fee: %s\n", tip.Dec())
		for i, fee := range history.BaseFee {
			line := fmt.Sprintf("  block %d base fee %s", history.OldestBlock+uint64(i), fee.Dec())
			if i < len(history.GasUsedRatio) {
				line += fmt.Sprintf(" used %.4f", history.GasUsedRatio[i])
			}
			if i < len(history.Reward) {
				rewards := make([]string, len(history.Reward[i]))
				for j, r := range history.Reward[i] {
					rewards[j] = r.Dec()
				}
				line += " rewards [" + strings.Join(rewards, " ") + "]"
			}
			fmt.Println(line)
		}
		return nil
	},
}

func toHexBig(v *uint256.Int) *hexutil.Big {
	return (*hexutil.Big)(v.ToBig())
}

// parseBlockNumber accepts "latest", a decimal or a 0x-prefixed number.
func parseBlockNumber(s string) (core.BlockNumber, error) {
	if s == "" || s == "latest" {
		return core.LatestBlockNumber, nil
	}
	n, err := strconv.ParseUint(s, 0, 63)
	if err != nil {
		return 0, fmt.Errorf("invalid block number %q", s)
	}
	return core.BlockNumber(n), nil
}

func parsePercentiles(s string) ([]float64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var out []float64
	for _, part := range strings.Split(s, ",") {
		p, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid percentile %q", part)
		}
		out = append(out, p)
	}
	return out, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
