package channelmaster

import (
	"crypto/sha256"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	"github.com/lightninglabs/hosted-channels/channel"
	"github.com/lightninglabs/hosted-channels/channeldb"
	"github.com/lightninglabs/hosted-channels/lnwire"
	"github.com/lightninglabs/hosted-channels/node"
)

// catcherPeer is the internal-test sibling of e2e_test's peer helper: the
// catcher and forwarding tests live inside the package so they can drive
// cm.catcher and the registry directly, instead of waiting on the block
// ticker.
type catcherPeer struct {
	mock *node.Mock
	cm   *ChannelMaster
	id   [33]byte

	// drained counts, per destination, how many of mock's sent messages
	// have already been relayed, so a peer bridged to several others
	// (the forwarding tests run three-party topologies) never has a
	// message delivered to the wrong side or replayed.
	drained map[[33]byte]int
}

func newCatcherPeer(t *testing.T, keyByte byte) *catcherPeer {
	t.Helper()

	var raw [32]byte
	raw[0] = 1
	raw[31] = keyByte
	priv, _ := btcec.PrivKeyFromBytes(raw[:])
	mock := node.NewMock(priv)

	db, err := channeldb.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, db.Close()) })

	cfg := DefaultConfig()
	cfg.HostParams = lnwire.InitHostedChannelParams{
		MaxHtlcValueInFlight: 1_000_000_000,
		HtlcMinimum:          1,
		MaxAcceptedHtlcs:     30,
		ChannelCapacity:      1_000_000_000,
		InitialClientBalance: 400_000_000,
	}
	cfg.RefundScript = func() []byte { return []byte("refund-script") }

	cm := New(db, mock, cfg)
	require.NoError(t, cm.Start())
	t.Cleanup(cm.Stop)

	var id [33]byte
	copy(id[:], mock.PublicKey().SerializeCompressed())

	return &catcherPeer{
		mock:    mock,
		cm:      cm,
		id:      id,
		drained: make(map[[33]byte]int),
	}
}

func pumpCatcherPeers(t *testing.T, a, b *catcherPeer) {
	t.Helper()

	for i := 0; i < 64; i++ {
		moved := false

		for _, pair := range []struct {
			from, to *catcherPeer
		}{{a, b}, {b, a}} {
			seen := 0
			for _, m := range pair.from.mock.Sent() {
				if m.PeerID != pair.to.id {
					continue
				}
				seen++
				if seen <= pair.from.drained[pair.to.id] {
					continue
				}
				pair.from.drained[pair.to.id] = seen
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

// TestPreimageCatcherCapturesStuckHtlc checks that a payment's
// preimage surfacing in on-chain witness data settles the matching
// outgoing HTLC even though the peer never sent UpdateFulfillHtlc, and a
// repeat sighting of the same preimage is a no-op.
func TestPreimageCatcherCapturesStuckHtlc(t *testing.T) {
	host := newCatcherPeer(t, 51)
	client := newCatcherPeer(t, 52)

	hostPub, err := btcec.ParsePubKey(host.id[:])
	require.NoError(t, err)
	clientPub, err := btcec.ParsePubKey(client.id[:])
	require.NoError(t, err)

	require.NoError(t, host.cm.Connect(client.id, true, clientPub))
	require.NoError(t, client.cm.Connect(host.id, false, hostPub))
	pumpCatcherPeers(t, host, client)

	preimage := [32]byte{0x77, 0x77}
	paymentHash := sha256.Sum256(preimage[:])

	var onion [lnwire.OnionPacketSize]byte
	fut, err := client.cm.SendPayment(host.id, 50_000, paymentHash, 500_000, onion)
	require.NoError(t, err)
	pumpCatcherPeers(t, host, client)

	info, ok := client.cm.GetChannel(host.id)
	require.True(t, ok)
	require.Equal(t, 1, info.NumOutgoingHtlcs)

	// The host goes silent; the preimage shows up in a confirmed
	// transaction's witness instead.
	client.mock.SetBlockTxs(101, []node.ChainTx{{
		Witness: []wire.TxWitness{{
			[]byte{0x51},
			preimage[:],
		}},
	}})

	sentBefore := len(client.mock.Sent())
	client.cm.catcher.OnBlockUpdated(101)

	// The preimage is persisted immediately, ahead of any commit, so a
	// crash here still leaves the upstream leg claimable.
	got, ok, err := client.cm.db.FetchPreimage(paymentHash)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, preimage, got)

	// The payment resolved immediately: possession of the preimage is
	// proof of payment, with or without the host's cooperation.
	select {
	case <-fut.Done():
	default:
		t.Fatal("chain-revealed preimage did not resolve the payment")
	}
	require.True(t, fut.Result().Fulfilled)
	require.Equal(t, preimage, fut.Result().Preimage)

	// The synthetic fulfill was queued and a commit proposed.
	sent := client.mock.Sent()
	require.Greater(t, len(sent), sentBefore)
	require.Equal(t, lnwire.MsgStateUpdate, sent[len(sent)-1].Tag)

	// A duplicate sighting changes nothing.
	client.cm.catcher.OnBlockUpdated(101)
	require.Len(t, client.mock.Sent(), len(sent))

	ch, ok := client.cm.lookup(host.id)
	require.True(t, ok)
	require.Equal(t, channel.StatusActive, ch.Status())
}
