package channeldb

import "github.com/btcsuite/btclog"

// hcdbLog is the subsystem logger for the channeldb package.
var hcdbLog btclog.Logger = btclog.Disabled

// UseLogger sets the subsystem logger used by this package.
func UseLogger(logger btclog.Logger) {
	hcdbLog = logger
}
