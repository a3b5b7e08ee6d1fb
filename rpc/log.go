package rpc

import "github.com/btcsuite/btclog"

// ccLog is the subsystem logger for the control RPC package.
var ccLog btclog.Logger = btclog.Disabled

// UseLogger sets the subsystem logger used by this package.
func UseLogger(logger btclog.Logger) {
	ccLog = logger
}
