package channelmaster_test

import (
	"crypto/sha256"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/stretchr/testify/require"

	"github.com/lightninglabs/hosted-channels/channeldb"
	"github.com/lightninglabs/hosted-channels/channelmaster"
	"github.com/lightninglabs/hosted-channels/lnwire"
	"github.com/lightninglabs/hosted-channels/node"
)

// TestRestartRestoresChannelState drives crash recovery: after a settled
// payment, the host process dies and comes back; the restarted
// ChannelMaster rehydrates the channel from disk with the committed
// balances, the preimage cache survives, and a reconnect resyncs both
// sides back to Active without re-running the opening handshake.
func TestRestartRestoresChannelState(t *testing.T) {
	params := hostParams()

	hostDir := t.TempDir()
	hostPriv := samplePrivKey(t, 5)
	hostMock := node.NewMock(hostPriv)

	hostCfg := channelmaster.DefaultConfig()
	hostCfg.HostParams = params
	hostCfg.RefundScript = func() []byte { return []byte("refund-script") }

	hostDB, err := channeldb.Open(hostDir)
	require.NoError(t, err)

	hostCM := channelmaster.New(hostDB, hostMock, hostCfg)
	require.NoError(t, hostCM.Start())

	var hostID [33]byte
	copy(hostID[:], hostMock.PublicKey().SerializeCompressed())
	host := &peer{mock: hostMock, cm: hostCM, id: hostID}

	client := newPeer(t, 6, params)

	hostPub, err := btcec.ParsePubKey(host.id[:])
	require.NoError(t, err)
	clientPub, err := btcec.ParsePubKey(client.id[:])
	require.NoError(t, err)

	require.NoError(t, host.cm.Connect(client.id, true, clientPub))
	require.NoError(t, client.cm.Connect(host.id, false, hostPub))
	pump(t, host, client)

	preimage := [32]byte{7, 7, 7}
	paymentHash := sha256.Sum256(preimage[:])
	const amount = lnwire.MilliSatoshi(50_000)

	var onion [lnwire.OnionPacketSize]byte
	_, err = client.cm.SendPayment(host.id, amount, paymentHash, 500_000, onion)
	require.NoError(t, err)
	pump(t, host, client)

	require.NoError(t, host.cm.SettleIncoming(client.id, 0, preimage))
	pump(t, host, client)

	settledHostBalance := uint64(params.ChannelCapacity-params.InitialClientBalance) + uint64(amount)

	// Kill the host process: stop the master, close the database.
	host.cm.Stop()
	require.NoError(t, hostDB.Close())

	// Restart on the same directory.
	hostDB2, err := channeldb.Open(hostDir)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, hostDB2.Close()) })

	hostCM2 := channelmaster.New(hostDB2, hostMock, hostCfg)
	require.NoError(t, hostCM2.Start())
	t.Cleanup(hostCM2.Stop)
	host.cm = hostCM2

	// The channel came back from disk with the committed balances,
	// waiting Offline for the peer.
	info, ok := hostCM2.GetChannel(client.id)
	require.True(t, ok)
	require.Equal(t, "Offline", info.Status)
	require.Equal(t, settledHostBalance, info.LocalBalanceMsat)
	require.Equal(t, 0, info.NumIncomingHtlcs)

	// The preimage cache survived the crash.
	got, ok, err := hostDB2.FetchPreimage(paymentHash)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, preimage, got)

	// Both sides reconnect and resync without touching the opening
	// handshake: state exchange only, straight back to Active.
	client.cm.Disconnect(host.id)
	require.NoError(t, host.cm.Connect(client.id, true, clientPub))
	require.NoError(t, client.cm.Connect(host.id, false, hostPub))
	pump(t, host, client)

	info, ok = hostCM2.GetChannel(client.id)
	require.True(t, ok)
	require.Equal(t, "Active", info.Status)
	require.Equal(t, settledHostBalance, info.LocalBalanceMsat)

	clientInfo, ok := client.cm.GetChannel(host.id)
	require.True(t, ok)
	require.Equal(t, "Active", clientInfo.Status)
	require.Equal(t, uint64(params.InitialClientBalance)-uint64(amount), clientInfo.LocalBalanceMsat)
}
