package lnwire

import "github.com/btcsuite/btclog"

// hcLog is the subsystem logger for the lnwire package. It defaults to the
// disabled logger so callers that never wire up logging still link and run.
var hcLog btclog.Logger = btclog.Disabled

// UseLogger sets the subsystem logger used by this package. Callers
// (typically the daemon's top-level log subsystem registry) call this once
// at startup, mirroring every other subsystem package in the tree.
func UseLogger(logger btclog.Logger) {
	hcLog = logger
}
