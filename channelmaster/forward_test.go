package channelmaster

import (
	"crypto/sha256"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/stretchr/testify/require"

	"github.com/lightninglabs/hosted-channels/channel"
	"github.com/lightninglabs/hosted-channels/lnwire"
	"github.com/lightninglabs/hosted-channels/node"
)

// waitResolved pumps both bridges until fut resolves, failing the test if
// it never does. The pumping happens on the test goroutine itself since
// the settlement path crosses an asynchronous forward-await hop.
func waitResolved(t *testing.T, fut *channel.ResolutionFuture, pump func()) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for {
		pump()

		select {
		case <-fut.Done():
			return
		default:
		}

		if time.Now().After(deadline) {
			t.Fatal("payment future never resolved")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// connectPeers opens a hosted channel between a host-side and client-side
// master and pumps the handshake to completion.
func connectPeers(t *testing.T, host, client *catcherPeer) {
	t.Helper()

	hostPub, err := btcec.ParsePubKey(host.id[:])
	require.NoError(t, err)
	clientPub, err := btcec.ParsePubKey(client.id[:])
	require.NoError(t, err)

	require.NoError(t, host.cm.Connect(client.id, true, clientPub))
	require.NoError(t, client.cm.Connect(host.id, false, hostPub))
	pumpCatcherPeers(t, host, client)
}

// TestForwardAcrossHostedChannels drives a full multi-hop forward through
// the hosted fabric: alice pays over her hosted channel, the host decrypts
// the onion, re-proposes the HTLC onto bob's hosted channel, bob settles,
// and the preimage flows back until alice's payment future resolves.
func TestForwardAcrossHostedChannels(t *testing.T) {
	host := newCatcherPeer(t, 61)
	alice := newCatcherPeer(t, 62)
	bob := newCatcherPeer(t, 63)

	connectPeers(t, host, alice)
	connectPeers(t, host, bob)

	bobScid := func() lnwire.ShortChannelID {
		ch, ok := host.cm.lookup(bob.id)
		require.True(t, ok)
		return ch.ShortChannelID()
	}()

	preimage := [32]byte{0x42}
	paymentHash := sha256.Sum256(preimage[:])

	// The host peels one layer off alice's onion and finds bob's channel
	// as the next hop, keeping 1_000 msat as its fee.
	host.mock.SetOnion(paymentHash, &node.DecryptedOnion{
		NextShortChanID: bobScid,
		AmountToForward: 49_000,
		OutgoingCltv:    499_928,
	})

	var onion [lnwire.OnionPacketSize]byte
	fut, err := alice.cm.SendPayment(host.id, 50_000, paymentHash, 500_000, onion)
	require.NoError(t, err)

	pumpCatcherPeers(t, host, alice)
	pumpCatcherPeers(t, host, bob)

	// The outgoing leg landed on bob's channel, linked to the incoming
	// one in the forwards table.
	bobInfo, ok := bob.cm.GetChannel(host.id)
	require.True(t, ok)
	require.Equal(t, 1, bobInfo.NumIncomingHtlcs)

	aliceCh, ok := host.cm.lookup(alice.id)
	require.True(t, ok)
	incoming := channel.HtlcIdentifier{ShortChannelID: aliceCh.ShortChannelID(), HtlcID: 0}
	_, exists, err := host.cm.db.FetchForward(incoming)
	require.NoError(t, err)
	require.True(t, exists)

	// Bob is the final hop and reveals the preimage; the settlement
	// ripples back through the host to alice.
	require.NoError(t, bob.cm.SettleIncoming(host.id, 0, preimage))

	waitResolved(t, fut, func() {
		pumpCatcherPeers(t, host, bob)
		pumpCatcherPeers(t, host, alice)
	})

	require.True(t, fut.Result().Fulfilled)
	require.Equal(t, preimage, fut.Result().Preimage)

	// Balances: alice paid 50_000, bob received 49_000, the host kept
	// the 1_000 difference across its two channels.
	aliceInfo, _ := alice.cm.GetChannel(host.id)
	require.Equal(t, uint64(400_000_000-50_000), aliceInfo.LocalBalanceMsat)
	require.Equal(t, 0, aliceInfo.NumOutgoingHtlcs)

	bobInfo, _ = bob.cm.GetChannel(host.id)
	require.Equal(t, uint64(400_000_000+49_000), bobInfo.LocalBalanceMsat)
	require.Equal(t, 0, bobInfo.NumIncomingHtlcs)

	hostAliceInfo, _ := host.cm.GetChannel(alice.id)
	require.Equal(t, uint64(600_000_000+50_000), hostAliceInfo.LocalBalanceMsat)
	hostBobInfo, _ := host.cm.GetChannel(bob.id)
	require.Equal(t, uint64(600_000_000-49_000), hostBobInfo.LocalBalanceMsat)

	// The forward record is cleaned up once both legs resolved.
	_, exists, err = host.cm.db.FetchForward(incoming)
	require.NoError(t, err)
	require.False(t, exists)
}

// TestForwardToRegularLink drives the other half of the forwarding
// fabric: an HTLC arriving over a hosted channel whose next hop is a
// regular link is handed to the node's own switch, and the node's
// settlement resolves the incoming leg.
func TestForwardToRegularLink(t *testing.T) {
	host := newCatcherPeer(t, 64)
	alice := newCatcherPeer(t, 65)

	connectPeers(t, host, alice)

	preimage := [32]byte{0x43}
	paymentHash := sha256.Sum256(preimage[:])
	outScid := lnwire.NewShortChanIDFromUint64(0x123456)

	host.mock.SetOnion(paymentHash, &node.DecryptedOnion{
		NextShortChanID: outScid,
		AmountToForward: 48_000,
		OutgoingCltv:    499_928,
	})

	var onion [lnwire.OnionPacketSize]byte
	fut, err := alice.cm.SendPayment(host.id, 50_000, paymentHash, 500_000, onion)
	require.NoError(t, err)
	pumpCatcherPeers(t, host, alice)

	// The host handed the outgoing leg to its node.
	forwards := host.mock.NodeForwards()
	require.Len(t, forwards, 1)
	require.Equal(t, outScid, forwards[0].Scid)
	require.Equal(t, lnwire.MilliSatoshi(48_000), forwards[0].Amount)
	require.Equal(t, paymentHash, forwards[0].PaymentHash)

	// The downstream leg settles; the incoming hosted leg follows.
	forwards[0].Results <- node.ForwardResult{
		Fulfilled: true,
		Preimage:  preimage,
	}

	waitResolved(t, fut, func() {
		pumpCatcherPeers(t, host, alice)
	})

	require.True(t, fut.Result().Fulfilled)

	aliceInfo, _ := alice.cm.GetChannel(host.id)
	require.Equal(t, uint64(400_000_000-50_000), aliceInfo.LocalBalanceMsat)
	hostInfo, _ := host.cm.GetChannel(alice.id)
	require.Equal(t, uint64(600_000_000+50_000), hostInfo.LocalBalanceMsat)
	require.Equal(t, 0, hostInfo.NumIncomingHtlcs)
}

// TestForwardFailsWhenOutgoingUnavailable checks the failure leg: a next
// hop naming a hosted channel that isn't usable fails the incoming HTLC
// back to the sender instead of leaving it stuck.
func TestForwardFailsWhenOutgoingUnavailable(t *testing.T) {
	host := newCatcherPeer(t, 66)
	alice := newCatcherPeer(t, 67)
	bob := newCatcherPeer(t, 68)

	connectPeers(t, host, alice)
	connectPeers(t, host, bob)

	bobCh, ok := host.cm.lookup(bob.id)
	require.True(t, ok)
	bobScid := bobCh.ShortChannelID()

	// Bob drops before the payment arrives; his channel can't take the
	// outgoing leg.
	host.cm.Disconnect(bob.id)

	preimage := [32]byte{0x44}
	paymentHash := sha256.Sum256(preimage[:])
	host.mock.SetOnion(paymentHash, &node.DecryptedOnion{
		NextShortChanID: bobScid,
		AmountToForward: 49_000,
		OutgoingCltv:    499_928,
	})

	var onion [lnwire.OnionPacketSize]byte
	fut, err := alice.cm.SendPayment(host.id, 50_000, paymentHash, 500_000, onion)
	require.NoError(t, err)
	pumpCatcherPeers(t, host, alice)

	select {
	case <-fut.Done():
	default:
		t.Fatal("unroutable forward never failed back to the sender")
	}
	require.False(t, fut.Result().Fulfilled)
	require.Equal(t, "hosted channel unavailable", string(fut.Result().FailData))

	// Balances are untouched and nothing is left in flight.
	aliceInfo, _ := alice.cm.GetChannel(host.id)
	require.Equal(t, uint64(400_000_000), aliceInfo.LocalBalanceMsat)
	require.Equal(t, 0, aliceInfo.NumOutgoingHtlcs)
}
