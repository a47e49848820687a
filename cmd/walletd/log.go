package main

import (
	"os"

	"github.com/pkt-cash/pktd/pktlog"

	"github.com/pkt-cash/mwcore/walletlog"
)

// logWriter sends subsystem output to stdout; a real deployment can swap
// this for a rotating file writer the way pktwallet does.
type logWriter struct{}

func (logWriter) Write(p []byte) (int, error) {
	return os.Stdout.Write(p)
}

var (
	backendLog = pktlog.NewBackend(logWriter{})
	log        = backendLog.Logger("WLTD")
	coreLog    = backendLog.Logger("CORE")
)

// initLogging installs the backend logger for every subsystem in this
// module and sets its level. Invalid levels default to info, matching
// pktlog.LevelFromString's own fallback.
func initLogging(levelStr string) {
	walletlog.UseLogger(coreLog)

	level, _ := pktlog.LevelFromString(levelStr)
	log.SetLevel(level)
	coreLog.SetLevel(level)
}
