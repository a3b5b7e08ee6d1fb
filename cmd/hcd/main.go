// hcd is the standalone hosted-channels daemon: it loads the plugin
// configuration, opens the channel database, starts the ChannelMaster, and
// serves the control JSON-RPC surface until interrupted.
//
// The standalone binary runs against the in-process sandbox node in
// node/mock.go, which records outbound peer messages instead of sending
// them and has no peers of its own - enough to exercise the database and
// the whole hcctl control surface on one machine. A production deployment embeds the channelmaster and rpc
// packages into the host node's own plugin process and supplies a real
// node.NodeInterface instead; see node/interface.go for the contract.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btclog"
	flags "github.com/jessevdk/go-flags"

	"github.com/lightninglabs/hosted-channels/channel"
	"github.com/lightninglabs/hosted-channels/channeldb"
	"github.com/lightninglabs/hosted-channels/channelmaster"
	"github.com/lightninglabs/hosted-channels/config"
	"github.com/lightninglabs/hosted-channels/lnwire"
	"github.com/lightninglabs/hosted-channels/node"
	"github.com/lightninglabs/hosted-channels/rpc"
)

const identityKeyFilename = "hc.key"

func main() {
	if err := hcdMain(); err != nil {
		fmt.Fprintf(os.Stderr, "[hcd] %v\n", err)
		os.Exit(1)
	}
}

func hcdMain() error {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		if fe, ok := err.(*flags.Error); ok && fe.Type == flags.ErrHelp {
			os.Exit(0)
		}
		return err
	}

	log := setupLoggers(cfg.DebugLevel)

	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return err
	}

	identityKey, err := loadIdentityKey(cfg.DataDir)
	if err != nil {
		return err
	}
	log.Infof("Node identity: %x",
		identityKey.PubKey().SerializeCompressed())

	db, err := channeldb.Open(cfg.DataDir)
	if err != nil {
		return err
	}
	defer db.Close()

	nodeIface := node.NewMock(identityKey)
	log.Warnf("Running against the in-process sandbox node; outbound " +
		"peer traffic is recorded, never sent")

	masterCfg := cfg.MasterConfig()
	masterCfg.ChainHash = nodeIface.ChainHash()

	master := channelmaster.New(db, nodeIface, masterCfg)
	if err := master.Start(); err != nil {
		return err
	}
	defer master.Stop()

	server, err := rpc.NewServer(master)
	if err != nil {
		return err
	}

	network, address, err := cfg.ListenerParts()
	if err != nil {
		return err
	}
	if network == "unix" {
		// A previous run's socket file would otherwise make Listen fail
		// with "address already in use".
		_ = os.Remove(address)
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Serve(network, address)
	}()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-interrupt:
		log.Infof("Received %v, shutting down", sig)
		return server.Close()
	case err := <-serveErr:
		return err
	}
}

// setupLoggers builds one btclog backend on stdout and hands lnwire,
// channel, channeldb, channelmaster and rpc their subsystem loggers,
// returning hcd's own. lnwallet's logger is left disabled.
func setupLoggers(debugLevel string) btclog.Logger {
	backend := btclog.NewBackend(os.Stdout)

	level, ok := btclog.LevelFromString(debugLevel)
	if !ok {
		level = btclog.LevelInfo
	}

	mkLogger := func(tag string) btclog.Logger {
		logger := backend.Logger(tag)
		logger.SetLevel(level)
		return logger
	}

	lnwire.UseLogger(mkLogger("HCWR"))
	channel.UseLogger(mkLogger("HCHN"))
	channeldb.UseLogger(mkLogger("HCDB"))
	channelmaster.UseLogger(mkLogger("HCMS"))
	rpc.UseLogger(mkLogger("HCRP"))

	return mkLogger("HCD")
}

// loadIdentityKey reads the node identity key from dataDir, generating and
// persisting a fresh one on first run.
func loadIdentityKey(dataDir string) (*btcec.PrivateKey, error) {
	path := filepath.Join(dataDir, identityKeyFilename)

	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		if len(raw) != 32 {
			return nil, fmt.Errorf("identity key file %s holds %d "+
				"bytes, want 32", path, len(raw))
		}
		priv, _ := btcec.PrivKeyFromBytes(raw)
		return priv, nil

	case os.IsNotExist(err):
		priv, err := btcec.NewPrivateKey()
		if err != nil {
			return nil, err
		}
		if err := os.WriteFile(path, priv.Serialize(), 0600); err != nil {
			return nil, err
		}
		return priv, nil

	default:
		return nil, err
	}
}
