// Package config defines the hosted-channels plugin's on-disk/flag
// configuration surface: the host pubkey allowlist, default CLTV safety
// delta, reconciliation retry bound, database path, and control-socket
// address.
package config

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	flags "github.com/jessevdk/go-flags"

	"github.com/lightninglabs/hosted-channels/channel"
	"github.com/lightninglabs/hosted-channels/channelmaster"
	"github.com/lightninglabs/hosted-channels/lnwire"
)

const (
	defaultDataDirname   = "hosted-channels"
	defaultRPCSockFile   = "hc.sock"
	defaultMaxReconcile  = 3
	defaultCltvSafety    = 72
	defaultBlockInterval = 60
)

// Config is the full set of tunables the hosted-channels plugin accepts
// from command-line flags.
type Config struct {
	DataDir string `long:"datadir" description:"Directory to store the hosted-channels database in"`

	RPCListener string `long:"rpclisten" description:"host:port or unix socket path the control JSON-RPC server listens on"`

	MaxReconcileRetries int `long:"maxreconcileretries" description:"Bounded retry count for a StateUpdate counter mismatch before suspending the channel"`

	CltvSafetyDelta uint32 `long:"cltvsafetydelta" description:"Blocks of margin required before an outgoing HTLC's cltvExpiry before the channel suspends it"`

	BlockRefreshSeconds int `long:"blockrefreshsecs" description:"How often, in seconds, to poll the node for its current block and fan it out to every channel"`

	// AllowedHosts, if non-empty, restricts which peer pubkeys this node
	// will act as a client toward (accepting their InitHostedChannel).
	// Empty means any peer that invokes or is invoked may open a channel.
	AllowedHosts []string `long:"allowedhost" description:"Hex-encoded pubkey this node will accept as a host; may be specified multiple times. Unset allows any host."`

	DebugLevel string `long:"debuglevel" description:"Logging level for all subsystems (trace, debug, info, warn, error, critical)"`

	BrandingLabel   string `long:"brandinglabel" description:"Display name offered to clients that ask for branding info"`
	BrandingContact string `long:"brandingcontact" description:"Contact URL or email offered to clients that ask for branding info"`

	// The terms this node offers every client that invokes a channel,
	// folded into InitHostedChannel.
	ChannelCapacityMsat      uint64 `long:"channelcapacity" description:"Capacity, in msat, offered to every invoking client"`
	InitialClientBalanceMsat uint64 `long:"initialclientbalance" description:"Balance, in msat, credited to a client at open"`
	HtlcMinimumMsat          uint64 `long:"htlcminimum" description:"Smallest HTLC, in msat, accepted over a hosted channel"`
	MaxAcceptedHtlcs         uint16 `long:"maxacceptedhtlcs" description:"Most HTLCs allowed in flight at once, both directions combined"`
	MaxHtlcValueInFlightMsat uint64 `long:"maxhtlcvalueinflight" description:"Largest combined in-flight HTLC value, in msat"`
}

// DefaultConfig returns the suggested defaults, with DataDir resolved to
// the user's default app-data location.
func DefaultConfig() *Config {
	return &Config{
		DataDir:                  defaultAppDataDir(),
		RPCListener:              "unix://" + defaultRPCSockFile,
		MaxReconcileRetries:      defaultMaxReconcile,
		CltvSafetyDelta:          defaultCltvSafety,
		BlockRefreshSeconds:      defaultBlockInterval,
		DebugLevel:               "info",
		ChannelCapacityMsat:      1_000_000_000,
		HtlcMinimumMsat:          1_000,
		MaxAcceptedHtlcs:         30,
		MaxHtlcValueInFlightMsat: 100_000_000,
	}
}

// Load parses args (typically os.Args[1:]) into a Config seeded with
// DefaultConfig's values, letting command-line flags override them. A
// flags.ErrHelp is returned to the caller unmodified so main can exit 0
// instead of treating --help as an error.
func Load(args []string) (*Config, error) {
	cfg := DefaultConfig()

	parser := flags.NewParser(cfg, flags.Default)
	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("config: datadir must not be empty")
	}
	if c.MaxReconcileRetries <= 0 {
		return fmt.Errorf("config: maxreconcileretries must be positive")
	}
	if c.InitialClientBalanceMsat > c.ChannelCapacityMsat {
		return fmt.Errorf("config: initialclientbalance exceeds channelcapacity")
	}
	if _, err := c.allowedHostKeys(); err != nil {
		return err
	}
	if _, _, err := c.ListenerParts(); err != nil {
		return err
	}
	return nil
}

// ChannelConfig projects the relevant tunables into channel.Config, the
// shape channelmaster.Config embeds for every Channel it constructs.
func (c *Config) ChannelConfig() channel.Config {
	return channel.Config{
		MaxReconcileRetries: c.MaxReconcileRetries,
		CltvSafetyDelta:     c.CltvSafetyDelta,
	}
}

// MasterConfig projects the relevant tunables into a channelmaster.Config
// skeleton; the caller still fills in ChainHash and RefundScript, which
// depend on the running node rather than this file.
func (c *Config) MasterConfig() channelmaster.Config {
	cfg := channelmaster.DefaultConfig()
	cfg.Channel = c.ChannelConfig()
	cfg.BlockRefreshInterval = secondsToDuration(c.BlockRefreshSeconds)
	cfg.HostParams = c.HostParams()

	if c.BrandingLabel != "" || c.BrandingContact != "" {
		cfg.Branding = &lnwire.HostedChannelBranding{
			Label:       []byte(c.BrandingLabel),
			ContactInfo: []byte(c.BrandingContact),
		}
	}

	// Already validated by Load.
	cfg.AllowedHosts, _ = c.allowedHostKeys()

	return cfg
}

// allowedHostKeys decodes AllowedHosts' hex entries into identity keys.
func (c *Config) allowedHostKeys() ([][33]byte, error) {
	if len(c.AllowedHosts) == 0 {
		return nil, nil
	}

	keys := make([][33]byte, 0, len(c.AllowedHosts))
	for _, entry := range c.AllowedHosts {
		raw, err := hex.DecodeString(entry)
		if err != nil || len(raw) != 33 {
			return nil, fmt.Errorf("config: allowedhost %q is not a "+
				"33-byte hex-encoded pubkey", entry)
		}
		var key [33]byte
		copy(key[:], raw)
		keys = append(keys, key)
	}
	return keys, nil
}

// HostParams assembles the InitHostedChannel terms this node offers when
// acting as host.
func (c *Config) HostParams() lnwire.InitHostedChannelParams {
	return lnwire.InitHostedChannelParams{
		MaxHtlcValueInFlight: lnwire.MilliSatoshi(c.MaxHtlcValueInFlightMsat),
		HtlcMinimum:          lnwire.MilliSatoshi(c.HtlcMinimumMsat),
		MaxAcceptedHtlcs:     c.MaxAcceptedHtlcs,
		ChannelCapacity:      lnwire.MilliSatoshi(c.ChannelCapacityMsat),
		InitialClientBalance: lnwire.MilliSatoshi(c.InitialClientBalanceMsat),
	}
}

// ListenerParts splits RPCListener into the (network, address) pair
// net.Listen takes: "unix:///path/to/hc.sock" yields ("unix",
// "/path/to/hc.sock"), "tcp://host:port" yields ("tcp", "host:port"), and
// a bare path with no scheme is treated as a unix socket.
func (c *Config) ListenerParts() (string, string, error) {
	scheme, rest, found := strings.Cut(c.RPCListener, "://")
	if !found {
		return "unix", c.RPCListener, nil
	}

	switch scheme {
	case "unix", "tcp":
		if rest == "" {
			return "", "", fmt.Errorf("config: rpclisten %q has an empty address", c.RPCListener)
		}
		return scheme, rest, nil
	default:
		return "", "", fmt.Errorf("config: rpclisten scheme %q is not supported, use unix:// or tcp://", scheme)
	}
}

func secondsToDuration(seconds int) time.Duration {
	return time.Duration(seconds) * time.Second
}

// defaultAppDataDir resolves the default database location, following the
// platform conventions btcutil.AppDataDir implements for every btcsuite
// daemon.
func defaultAppDataDir() string {
	return btcutil.AppDataDir(defaultDataDirname, false)
}
