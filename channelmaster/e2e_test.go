package channelmaster_test

import (
	"crypto/sha256"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/stretchr/testify/require"

	"github.com/lightninglabs/hosted-channels/channel"
	"github.com/lightninglabs/hosted-channels/channeldb"
	"github.com/lightninglabs/hosted-channels/channelmaster"
	"github.com/lightninglabs/hosted-channels/lnwire"
	"github.com/lightninglabs/hosted-channels/node"
)

func samplePrivKey(t *testing.T, b byte) *btcec.PrivateKey {
	t.Helper()
	var raw [32]byte
	raw[31] = b
	raw[0] = 1
	priv, _ := btcec.PrivKeyFromBytes(raw[:])
	return priv
}

// peer bundles everything a side of the bridge needs: its own mock node,
// database, and ChannelMaster.
type peer struct {
	mock *node.Mock
	cm   *channelmaster.ChannelMaster
	id   [33]byte

	// drained counts how many of mock's sent messages have already been
	// relayed to the other side, persisting across pump calls so a later
	// pump doesn't replay history from the start.
	drained int
}

func newPeer(t *testing.T, keyByte byte, params lnwire.InitHostedChannelParams) *peer {
	t.Helper()

	priv := samplePrivKey(t, keyByte)
	mock := node.NewMock(priv)

	db, err := channeldb.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, db.Close()) })

	cfg := channelmaster.DefaultConfig()
	cfg.HostParams = params
	cfg.RefundScript = func() []byte { return []byte("refund-script") }

	cm := channelmaster.New(db, mock, cfg)
	require.NoError(t, cm.Start())
	t.Cleanup(cm.Stop)

	var id [33]byte
	copy(id[:], mock.PublicKey().SerializeCompressed())

	return &peer{mock: mock, cm: cm, id: id}
}

// pump relays every message each mock has queued since the last call to the
// other mock's Deliver, looping until both sides go quiet. It bridges two
// ChannelMasters the way a real transport would, without one.
func pump(t *testing.T, a, b *peer) {
	t.Helper()

	for i := 0; i < 64; i++ {
		moved := false

		for _, pair := range []struct {
			from, to *peer
		}{{a, b}, {b, a}} {
			sent := pair.from.mock.Sent()
			for ; pair.from.drained < len(sent); pair.from.drained++ {
				m := sent[pair.from.drained]
				pair.to.mock.Deliver(pair.from.id, m.Tag, m.Payload)
				moved = true
			}
		}

		if !moved {
			return
		}
	}

	t.Fatal("pump: messages still in flight after 64 rounds, suspect a loop")
}

func hostParams() lnwire.InitHostedChannelParams {
	return lnwire.InitHostedChannelParams{
		MaxHtlcValueInFlight: 1_000_000_000,
		HtlcMinimum:          1,
		MaxAcceptedHtlcs:     30,
		ChannelCapacity:      1_000_000_000,
		InitialClientBalance: 400_000_000,
	}
}

// TestOpenHandshake drives the opening handshake: InvokeHostedChannel ->
// InitHostedChannel -> StateUpdate/StateUpdate leaves both sides Active
// with a matching genesis LCSS.
func TestOpenHandshake(t *testing.T) {
	params := hostParams()
	host := newPeer(t, 1, params)
	client := newPeer(t, 2, params)

	hostPub, err := btcec.ParsePubKey(host.id[:])
	require.NoError(t, err)
	clientPub, err := btcec.ParsePubKey(client.id[:])
	require.NoError(t, err)

	require.NoError(t, host.cm.Connect(client.id, true, clientPub))
	require.NoError(t, client.cm.Connect(host.id, false, hostPub))

	pump(t, host, client)

	hostInfo, ok := host.cm.GetChannel(client.id)
	require.True(t, ok)
	clientInfo, ok := client.cm.GetChannel(host.id)
	require.True(t, ok)

	require.Equal(t, "Active", hostInfo.Status)
	require.Equal(t, "Active", clientInfo.Status)
	require.Equal(t, uint64(params.InitialClientBalance), clientInfo.LocalBalanceMsat)
	require.Equal(t, uint64(params.ChannelCapacity-params.InitialClientBalance), hostInfo.LocalBalanceMsat)
}

// TestAddAndFulfillHtlc drives a full payment: the client adds an HTLC
// for 50_000 msat, the host fulfills it, and both sides converge on the
// shifted balances with no HTLCs outstanding.
func TestAddAndFulfillHtlc(t *testing.T) {
	params := hostParams()
	host := newPeer(t, 3, params)
	client := newPeer(t, 4, params)

	hostPub, err := btcec.ParsePubKey(host.id[:])
	require.NoError(t, err)
	clientPub, err := btcec.ParsePubKey(client.id[:])
	require.NoError(t, err)

	require.NoError(t, host.cm.Connect(client.id, true, clientPub))
	require.NoError(t, client.cm.Connect(host.id, false, hostPub))
	pump(t, host, client)

	preimage := [32]byte{9, 9, 9}
	paymentHash := sha256.Sum256(preimage[:])
	const amount = lnwire.MilliSatoshi(50_000)

	var onion [lnwire.OnionPacketSize]byte
	fut, err := client.cm.SendPayment(host.id, amount, paymentHash, 500_000, onion)
	require.NoError(t, err)

	pump(t, host, client)

	// Escrowed: balances haven't moved, both sides see the in-flight
	// HTLC recorded.
	hostInfo, _ := host.cm.GetChannel(client.id)
	clientInfo, _ := client.cm.GetChannel(host.id)
	require.Equal(t, uint64(params.InitialClientBalance), clientInfo.LocalBalanceMsat)
	require.Equal(t, 1, hostInfo.NumIncomingHtlcs)
	require.Equal(t, 1, clientInfo.NumOutgoingHtlcs)

	require.NoError(t, host.cm.SettleIncoming(client.id, 0, preimage))

	pump(t, host, client)

	select {
	case <-fut.Done():
	default:
		t.Fatal("resolution future never completed")
	}
	require.True(t, fut.Result().Fulfilled)
	require.Equal(t, preimage, fut.Result().Preimage)

	hostInfo, _ = host.cm.GetChannel(client.id)
	clientInfo, _ = client.cm.GetChannel(host.id)

	require.Equal(t, uint64(params.InitialClientBalance-amount), clientInfo.LocalBalanceMsat)
	require.Equal(t, uint64(params.ChannelCapacity-params.InitialClientBalance+amount), hostInfo.LocalBalanceMsat)
	require.Equal(t, 0, clientInfo.NumOutgoingHtlcs)
	require.Equal(t, 0, hostInfo.NumIncomingHtlcs)
	require.Equal(t, channel.StatusActive.String(), hostInfo.Status)
}
