// Package config defines the command-line and config-file options for the
// walletd entrypoint. It follows the same load sequence as the wallet's
// own configuration: sane defaults, then config file, then command line
// flags, with command line always winning.
package config

import (
	"os"
	"path/filepath"
	"time"

	flags "github.com/jessevdk/go-flags"
	"github.com/pkt-cash/pktd/btcutil"
	"github.com/pkt-cash/pktd/btcutil/er"
	"github.com/pkt-cash/pktd/chaincfg"
)

const (
	defaultConfigFilename = "walletd.conf"
	defaultDataDirname    = "data"
	defaultLogLevel       = "info"
	defaultRPCTimeout     = 30 * time.Second
	defaultRetries        = 2
)

var (
	defaultHomeDir    = btcutil.AppDataDir("walletd", false)
	defaultConfigFile = filepath.Join(defaultHomeDir, defaultConfigFilename)
	defaultDataDir    = filepath.Join(defaultHomeDir, defaultDataDirname)
)

// Config defines the configuration options for walletd.
type Config struct {
	ShowVersion bool   `short:"V" long:"version" description:"Display version information and exit"`
	ConfigFile  string `short:"C" long:"configfile" description:"Path to configuration file"`
	DataDir     string `short:"b" long:"datadir" description:"Data directory, created at startup; the UTXO store itself is kept in memory"`
	DebugLevel  string `short:"d" long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical}"`

	TestNet3 bool `long:"testnet" description:"Use the test network"`
	SimNet   bool `long:"simnet" description:"Use the simulation test network"`

	SeedHex string `long:"seedhex" description:"Hex-encoded master seed; a random one is generated and printed once if omitted"`

	BaseNodeAddr string        `long:"basenode" description:"host:port of the base node RPC endpoint this wallet trusts for chain state"`
	RPCTimeout   time.Duration `long:"rpctimeout" description:"Timeout for a single base-node RPC call; unused, since walletd does not dial a base node"`
	Retries      int           `long:"retries" description:"Parsed but not passed to the validation task, which always makes its default 2 additional attempts on a network error"`
}

// NetParams resolves the chain parameters selected by the network flags,
// mirroring the mutually-exclusive network-selection convention used
// throughout the pktd config.
func (c *Config) NetParams() *chaincfg.Params {
	switch {
	case c.SimNet:
		return &chaincfg.SimNetParams
	case c.TestNet3:
		return &chaincfg.TestNet3Params
	default:
		return &chaincfg.MainNetParams
	}
}

func defaults() Config {
	return Config{
		ConfigFile: defaultConfigFile,
		DataDir:    defaultDataDir,
		DebugLevel: defaultLogLevel,
		RPCTimeout: defaultRPCTimeout,
		Retries:    defaultRetries,
	}
}

// Load parses the command line, then overlays a config file if one exists,
// then re-parses the command line so flags always win over the file. It
// returns the unconsumed positional arguments alongside the config.
func Load() (*Config, []string, er.R) {
	cfg := defaults()

	preCfg := cfg
	preParser := flags.NewParser(&preCfg, flags.HelpFlag)
	if _, err := preParser.Parse(); err != nil {
		if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
			return nil, nil, er.E(err)
		}
	}
	if preCfg.ConfigFile != "" {
		cfg.ConfigFile = preCfg.ConfigFile
	}

	parser := flags.NewParser(&cfg, flags.Default)
	if err := flags.NewIniParser(parser).ParseFile(cfg.ConfigFile); err != nil {
		if _, ok := err.(*os.PathError); !ok {
			return nil, nil, er.E(err)
		}
	}

	rest, err := parser.Parse()
	if err != nil {
		if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
			os.Exit(0)
		}
		return nil, nil, er.E(err)
	}

	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, nil, er.E(err)
	}

	return &cfg, rest, nil
}
