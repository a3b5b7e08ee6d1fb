package lnwallet

import "github.com/btcsuite/btclog"

var walletLog btclog.Logger = btclog.Disabled

// UseLogger sets the subsystem logger used by this package.
func UseLogger(logger btclog.Logger) {
	walletLog = logger
}
