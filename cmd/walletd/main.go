// Command walletd hosts the output manager service as a standalone
// process: it loads configuration, constructs the master key manager and
// UTXO store, wires them to a base-node client, and runs the dispatch loop
// until asked to shut down. It is the thin process shell around the core
// this module implements; the core itself never imports this package.
package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkt-cash/pktd/btcutil/er"
	"github.com/pkt-cash/pktd/btcutil/hdkeychain"

	"github.com/pkt-cash/mwcore/basenode"
	"github.com/pkt-cash/mwcore/config"
	"github.com/pkt-cash/mwcore/events"
	"github.com/pkt-cash/mwcore/keymanager"
	"github.com/pkt-cash/mwcore/outputmanager"
	"github.com/pkt-cash/mwcore/utxodb"
)

// exit codes, stable per §6 of the specification. There is no network
// exit code: the basenode.Client construction below cannot itself return
// an error.
const (
	exitConfiguration = 101
	exitWallet        = 104
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, _, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitConfiguration
	}

	initLogging(cfg.DebugLevel)

	seed, err := loadOrGenerateSeed(cfg.SeedHex)
	if err != nil {
		log.Errorf("seed: %v", err)
		return exitConfiguration
	}

	store := utxodb.NewMemStore()
	mkm, errr := keymanager.NewFromSeed(seed, cfg.NetParams(), store)
	if errr != nil {
		log.Errorf("key manager: %v", errr)
		return exitWallet
	}

	node := basenode.Disabled
	if cfg.BaseNodeAddr != "" {
		log.Warnf("base-node transport is out of scope for this module; "+
			"configured address %s is recorded but not dialed", cfg.BaseNodeAddr)
	}

	broadcaster := events.NewBroadcaster()
	mgr, errr := outputmanager.New(store, mkm, node, broadcaster, nil)
	if errr != nil {
		log.Errorf("output manager: %v", errr)
		return exitWallet
	}
	mgr.Start()
	defer mgr.Stop()

	log.Infof("walletd started, network=%s datadir=%s", cfg.NetParams().Name, cfg.DataDir)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	log.Infof("shutting down")
	return 0
}

// loadOrGenerateSeed decodes an operator-supplied hex seed, or generates
// and prints a fresh one. A freshly generated seed must be recorded by the
// operator; walletd does not persist it on its own, mirroring the
// wallet's own "seed belongs to whoever holds it" model.
func loadOrGenerateSeed(seedHex string) ([]byte, er.R) {
	if seedHex != "" {
		seed, err := hex.DecodeString(seedHex)
		if err != nil {
			return nil, er.E(err)
		}
		return seed, nil
	}

	seed, err := hdkeychain.GenerateSeed(hdkeychain.MinSeedBytes)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(os.Stderr, "generated new master seed: %x\nrecord this seed; it will not be shown again\n", seed)
	return seed, nil
}
