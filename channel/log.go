package channel

import "github.com/btcsuite/btclog"

// chLog is the subsystem logger for the channel package.
var chLog btclog.Logger = btclog.Disabled

// UseLogger sets the subsystem logger used by this package.
func UseLogger(logger btclog.Logger) {
	chLog = logger
}
