// Package walletlog provides the shared subsystem logger used across the
// output manager core. It follows the same opt-in pattern as the rest of
// the wallet: silent until a caller installs a real logger.
package walletlog

import (
	"github.com/pkt-cash/pktd/pktlog"
)

// Log is the logger used by every package in this module. It is disabled
// by default so importers don't see output unless they ask for it.
var Log pktlog.Logger

func init() {
	DisableLog()
}

// DisableLog disables all library log output.
func DisableLog() {
	Log = pktlog.Disabled
}

// UseLogger installs logger as the shared subsystem logger.
func UseLogger(logger pktlog.Logger) {
	Log = logger
}
