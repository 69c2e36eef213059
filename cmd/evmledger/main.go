// evmledger is the command line front end of the side ledger. It initialises
// the chain database and inspects committed state.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/DeFiCh/ain-sub000/node"
)

var (
	version = "v0.1.0"
	commit  = "unknown"
)

var (
	configFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "TOML configuration file",
	}
	dataDirFlag = &cli.StringFlag{
		Name:  "datadir",
		Usage: "data directory for the databases",
	}
	dbEngineFlag = &cli.StringFlag{
		Name:  "db.engine",
		Usage: "key-value engine (memory, leveldb, pebble)",
	}
	logLevelFlag = &cli.StringFlag{
		Name:  "log.level",
		Usage: "log verbosity (trace, debug, info, warn, error)",
	}
	logJSONFlag = &cli.BoolFlag{
		Name:  "log.json",
		Usage: "format logs as JSON",
	}
	metricsFlag = &cli.BoolFlag{
		Name:  "metrics",
		Usage: "enable metrics collection",
	}
	jsonFlag = &cli.BoolFlag{
		Name:  "json",
		Usage: "output JSON instead of human-readable format",
	}
)

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "evmledger"
	app.Usage = "EVM side ledger of the native chain"
	app.Version = fmt.Sprintf("%s (commit %s)", version, commit)
	app.Flags = []cli.Flag{
		configFlag,
		dataDirFlag,
		dbEngineFlag,
		logLevelFlag,
		logJSONFlag,
		metricsFlag,
	}
	app.Commands = []*cli.Command{
		commandInit,
		commandHead,
		commandDisconnect,
		commandBlock,
		commandReceipt,
		commandAccount,
		commandFees,
		commandDumpConfig,
	}
	return app
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig builds the configuration from the defaults, the optional
// config file and the global flags, in that order.
func loadConfig(ctx *cli.Context) (*node.Config, error) {
	var cfg *node.Config
	if path := ctx.String(configFlag.Name); path != "" {
		var err error
		if cfg, err = node.LoadConfig(path); err != nil {
			return nil, err
		}
	} else {
		def := node.DefaultConfig()
		cfg = &def
	}
	if ctx.IsSet(dataDirFlag.Name) {
		cfg.DataDir = ctx.String(dataDirFlag.Name)
	}
	if ctx.IsSet(dbEngineFlag.Name) {
		cfg.DBEngine = ctx.String(dbEngineFlag.Name)
	}
	if ctx.IsSet(logLevelFlag.Name) {
		cfg.LogLevel = ctx.String(logLevelFlag.Name)
	}
	if ctx.IsSet(logJSONFlag.Name) {
		cfg.LogJSON = ctx.Bool(logJSONFlag.Name)
	}
	if ctx.IsSet(metricsFlag.Name) {
		cfg.Metrics = ctx.Bool(metricsFlag.Name)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openNode loads the configuration, sets up logging and opens the node.
func openNode(ctx *cli.Context) (*node.Node, error) {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return nil, err
	}
	if err := node.SetupLogging(cfg); err != nil {
		return nil, err
	}
	return node.New(cfg)
}
