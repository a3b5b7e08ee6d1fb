package channelmaster

import "github.com/btcsuite/btclog"

// mstrLog is the subsystem logger for the channelmaster package.
var mstrLog btclog.Logger = btclog.Disabled

// UseLogger sets the subsystem logger used by this package.
func UseLogger(logger btclog.Logger) {
	mstrLog = logger
}
