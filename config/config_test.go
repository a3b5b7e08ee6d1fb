package config

import (
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lightninglabs/hosted-channels/lnwire"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(nil)
	require.NoError(t, err)

	require.Equal(t, 3, cfg.MaxReconcileRetries)
	require.Equal(t, uint32(72), cfg.CltvSafetyDelta)
	require.Equal(t, 60, cfg.BlockRefreshSeconds)
	require.NotEmpty(t, cfg.DataDir)

	params := cfg.HostParams()
	require.Equal(t, lnwire.MilliSatoshi(1_000_000_000), params.ChannelCapacity)
	require.Equal(t, lnwire.MilliSatoshi(0), params.InitialClientBalance)

	masterCfg := cfg.MasterConfig()
	require.Equal(t, time.Minute, masterCfg.BlockRefreshInterval)
	require.Equal(t, params, masterCfg.HostParams)
	require.Equal(t, 3, masterCfg.Channel.MaxReconcileRetries)
}

func TestLoadFlagOverrides(t *testing.T) {
	cfg, err := Load([]string{
		"--datadir", "/tmp/hc-test",
		"--maxreconcileretries", "5",
		"--cltvsafetydelta", "144",
		"--channelcapacity", "2000000000",
	})
	require.NoError(t, err)

	require.Equal(t, "/tmp/hc-test", cfg.DataDir)
	require.Equal(t, 5, cfg.MaxReconcileRetries)
	require.Equal(t, uint32(144), cfg.CltvSafetyDelta)
	require.Equal(t, lnwire.MilliSatoshi(2_000_000_000), cfg.HostParams().ChannelCapacity)
}

func TestLoadRejectsBadValues(t *testing.T) {
	_, err := Load([]string{"--maxreconcileretries", "0"})
	require.Error(t, err)

	_, err = Load([]string{"--initialclientbalance", "2", "--channelcapacity", "1"})
	require.Error(t, err)

	_, err = Load([]string{"--rpclisten", "http://localhost:8080"})
	require.Error(t, err)

	_, err = Load([]string{"--allowedhost", "nothex"})
	require.Error(t, err)
}

func TestAllowedHostsAndBranding(t *testing.T) {
	const hostKey = "02aa0f25a1c2eb2bdbe1cfd0a60b0a201f76631e9a86ebeef764c8f1e2e3e3aabb"

	cfg, err := Load([]string{
		"--allowedhost", hostKey,
		"--brandinglabel", "example host",
	})
	require.NoError(t, err)

	masterCfg := cfg.MasterConfig()
	require.Len(t, masterCfg.AllowedHosts, 1)
	require.Equal(t, hostKey, hex.EncodeToString(masterCfg.AllowedHosts[0][:]))

	require.NotNil(t, masterCfg.Branding)
	require.Equal(t, []byte("example host"), masterCfg.Branding.Label)
}

func TestListenerParts(t *testing.T) {
	tests := []struct {
		name     string
		listener string
		network  string
		address  string
		wantErr  bool
	}{
		{
			name:     "unix with scheme",
			listener: "unix:///var/run/hc.sock",
			network:  "unix",
			address:  "/var/run/hc.sock",
		},
		{
			name:     "tcp",
			listener: "tcp://127.0.0.1:8866",
			network:  "tcp",
			address:  "127.0.0.1:8866",
		},
		{
			name:     "bare path defaults to unix",
			listener: "/var/run/hc.sock",
			network:  "unix",
			address:  "/var/run/hc.sock",
		},
		{
			name:     "unsupported scheme",
			listener: "udp://127.0.0.1:1",
			wantErr:  true,
		},
		{
			name:     "empty address",
			listener: "tcp://",
			wantErr:  true,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.RPCListener = test.listener

			network, address, err := cfg.ListenerParts()
			if test.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, test.network, network)
			require.Equal(t, test.address, address)
		})
	}
}
