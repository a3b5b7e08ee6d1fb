package channel

import (
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/stretchr/testify/require"

	"github.com/lightninglabs/hosted-channels/lnwallet"
	"github.com/lightninglabs/hosted-channels/lnwire"
)

func samplePrivKey(t *testing.T, b byte) *btcec.PrivateKey {
	t.Helper()
	var raw [32]byte
	raw[31] = b
	raw[0] = 1
	priv, _ := btcec.PrivKeyFromBytes(raw[:])
	return priv
}

// fakeMaster is a minimal channel.Master double for unit tests that drive a
// single Channel directly, without a ChannelMaster or a peer on the other
// end.
type fakeMaster struct {
	blockDay uint32
	sent     []lnwire.Message
}

func (f *fakeMaster) SendMessage(_ [33]byte, msg lnwire.Message) error {
	f.sent = append(f.sent, msg)
	return nil
}
func (f *fakeMaster) RecordForward(_, _ HtlcIdentifier) error { return nil }
func (f *fakeMaster) GotPaymentResult(_ HtlcIdentifier, _ ResolutionResult) {}
func (f *fakeMaster) OnIncomingCommitted(_ [33]byte, _ lnwire.UpdateAddHtlc) {}
func (f *fakeMaster) StorePreimage(_, _ [32]byte) error { return nil }
func (f *fakeMaster) PersistChannelData(_ [33]byte, _ interface{}) error { return nil }
func (f *fakeMaster) CurrentBlockDay() uint32 { return f.blockDay }

var _ Master = (*fakeMaster)(nil)

// newActiveChannel builds a Channel already past its opening handshake,
// host side, with no in-flight HTLCs and a 1_000_000_000 msat capacity
// split evenly.
func newActiveChannel(t *testing.T, master Master) *Channel {
	t.Helper()

	hostPriv := samplePrivKey(t, 10)
	clientPriv := samplePrivKey(t, 11)

	params := lnwire.InitHostedChannelParams{
		MaxHtlcValueInFlight: 1_000_000_000,
		HtlcMinimum:          1,
		MaxAcceptedHtlcs:     30,
		ChannelCapacity:      1_000_000_000,
		InitialClientBalance: 500_000_000,
	}

	lcss := InitialLCSS(true, nil, params, 100)
	c := New([33]byte{}, true, lnwallet.NewKeySigner(hostPriv), clientPriv.PubKey(), master, DefaultConfig())
	c.lcss = lcss
	c.status = StatusActive
	return c
}

// TestStaleBlockDaySuspends checks that a StateUpdate carrying
// a blockDay more than one day off the receiver's own suspends the channel
// instead of being processed.
func TestStaleBlockDaySuspends(t *testing.T) {
	master := &fakeMaster{blockDay: 100}
	c := newActiveChannel(t, master)

	err := c.OnStateUpdate(&lnwire.StateUpdate{BlockDay: 98})
	require.NoError(t, err)

	require.Equal(t, StatusSuspended, c.Status())
	require.Len(t, c.localErrors, 1)
	require.Equal(t, errBlockDayStale.Error(), string(c.localErrors[0].Data))
}

// TestResizeGrowsCapacity checks that a client-proposed resize
// is folded into the host's next LCSS, crediting the new liquidity to the
// host's own balance.
func TestResizeGrowsCapacity(t *testing.T) {
	hostMaster := &fakeMaster{blockDay: 100}
	clientMaster := &fakeMaster{blockDay: 100}

	hostPriv := samplePrivKey(t, 20)
	clientPriv := samplePrivKey(t, 21)

	params := lnwire.InitHostedChannelParams{
		MaxHtlcValueInFlight: 1_000_000_000,
		HtlcMinimum:          1,
		MaxAcceptedHtlcs:     30,
		ChannelCapacity:      500_000_000,
		InitialClientBalance: 250_000_000,
	}

	hostLCSS := InitialLCSS(true, nil, params, 100)
	host := New([33]byte{1}, true, lnwallet.NewKeySigner(hostPriv), clientPriv.PubKey(), hostMaster, DefaultConfig())
	host.lcss = hostLCSS
	host.status = StatusActive

	clientLCSS := InitialLCSS(false, nil, params, 100)
	client := New([33]byte{2}, false, lnwallet.NewKeySigner(clientPriv), hostPriv.PubKey(), clientMaster, DefaultConfig())
	client.lcss = clientLCSS
	client.status = StatusActive

	require.NoError(t, client.ProposeResize(1_000_000))
	require.Len(t, clientMaster.sent, 2)
	resize, ok := clientMaster.sent[0].(*lnwire.ResizeChannel)
	require.True(t, ok)
	clientSU, ok := clientMaster.sent[1].(*lnwire.StateUpdate)
	require.True(t, ok)

	require.NoError(t, host.OnResizeChannel(resize))
	require.Len(t, hostMaster.sent, 1)
	hostSU, ok := hostMaster.sent[0].(*lnwire.StateUpdate)
	require.True(t, ok)

	require.NoError(t, client.OnStateUpdate(hostSU))
	require.NoError(t, host.OnStateUpdate(clientSU))

	require.Equal(t, lnwire.MilliSatoshi(1_000_000_000), host.lcss.InitHostedChannel.ChannelCapacity)
	require.Equal(t, lnwire.MilliSatoshi(750_000_000), host.lcss.LocalBalance)
	require.Equal(t, lnwire.MilliSatoshi(1_000_000_000), client.lcss.InitHostedChannel.ChannelCapacity)
	require.Equal(t, lnwire.MilliSatoshi(750_000_000), client.lcss.RemoteBalance)
	require.Equal(t, StatusActive, host.Status())
	require.Equal(t, StatusActive, client.Status())
}

// TestReconnectResyncCatchesUpStalePeer drives the SyncingData reconnect
// path: a host that committed one more StateUpdate than its
// peer recorded before disconnecting resends its current state on
// reconnect instead of re-running the opening handshake.
func TestReconnectResyncCatchesUpStalePeer(t *testing.T) {
	hostMaster := &fakeMaster{blockDay: 100}
	clientMaster := &fakeMaster{blockDay: 100}

	hostPriv := samplePrivKey(t, 40)
	clientPriv := samplePrivKey(t, 41)

	params := lnwire.InitHostedChannelParams{
		MaxHtlcValueInFlight: 1_000_000_000,
		HtlcMinimum:          1,
		MaxAcceptedHtlcs:     30,
		ChannelCapacity:      1_000_000_000,
		InitialClientBalance: 400_000_000,
	}

	// Build the host's post-update-one state fully cross-signed, as it
	// would be right after a real commit, so OnSyncState's adopt-remote
	// path has a valid signature to verify.
	hostLCSS := InitialLCSS(true, nil, params, 100)
	hostLCSS.LocalUpdates = 1
	clientCounterpart := hostLCSS.Reverse()
	require.NoError(t, SignLCSS(hostLCSS, lnwallet.NewKeySigner(hostPriv)))
	require.NoError(t, SignLCSS(clientCounterpart, lnwallet.NewKeySigner(clientPriv)))
	hostLCSS.RemoteSigOfLocal = clientCounterpart.LocalSigOfRemote

	host := New([33]byte{1}, true, lnwallet.NewKeySigner(hostPriv), clientPriv.PubKey(), hostMaster, DefaultConfig())
	host.lcss = hostLCSS
	host.status = StatusOffline

	// The client's own copy never saw update one: it's still the
	// unsigned genesis state left over from before the disconnect.
	clientLCSS := InitialLCSS(false, nil, params, 100)
	client := New([33]byte{2}, false, lnwallet.NewKeySigner(clientPriv), hostPriv.PubKey(), clientMaster, DefaultConfig())
	client.lcss = clientLCSS
	client.status = StatusOffline

	require.NoError(t, host.OnConnect([32]byte{}, nil))
	require.Equal(t, StatusSyncingData, host.Status())
	require.Len(t, hostMaster.sent, 1)
	hostSync, ok := hostMaster.sent[0].(*lnwire.LastCrossSignedState)
	require.True(t, ok)

	require.NoError(t, client.OnConnect([32]byte{}, nil))
	require.Equal(t, StatusSyncingData, client.Status())
	require.Len(t, clientMaster.sent, 1)
	clientSync, ok := clientMaster.sent[0].(*lnwire.LastCrossSignedState)
	require.True(t, ok)

	// The client is behind (it never saw the host's last commit): on
	// receiving the host's state it should just catch up silently.
	require.NoError(t, client.OnSyncState(hostSync))
	require.Equal(t, StatusActive, client.Status())
	require.Equal(t, uint32(1), client.lcss.RemoteUpdates)

	// The host is ahead: on receiving the client's stale state it
	// resends its own current state rather than adopting the client's.
	require.NoError(t, host.OnSyncState(clientSync))
	require.Equal(t, StatusActive, host.Status())
	require.Len(t, hostMaster.sent, 2)
	_, ok = hostMaster.sent[1].(*lnwire.LastCrossSignedState)
	require.True(t, ok)
	require.Equal(t, uint32(1), host.lcss.LocalUpdates)
}

// TestOverrideResetsHtlcsAndResolutions checks that a host
// override on a suspended channel discards every in-flight HTLC and
// cancels their resolution futures once the client ratifies it.
func TestOverrideResetsHtlcsAndResolutions(t *testing.T) {
	hostMaster := &fakeMaster{blockDay: 100}
	clientMaster := &fakeMaster{blockDay: 100}

	hostPriv := samplePrivKey(t, 30)
	clientPriv := samplePrivKey(t, 31)

	params := lnwire.InitHostedChannelParams{
		MaxHtlcValueInFlight: 1_000_000_000,
		HtlcMinimum:          1,
		MaxAcceptedHtlcs:     30,
		ChannelCapacity:      1_000_000_000,
		InitialClientBalance: 300_000_000,
	}

	hostLCSS := InitialLCSS(true, nil, params, 100)
	hostLCSS.IncomingHtlcs = []lnwire.UpdateAddHtlc{{ID: 0, Amount: 10_000}}
	hostLCSS.OutgoingHtlcs = []lnwire.UpdateAddHtlc{{ID: 1, Amount: 20_000}}

	host := New([33]byte{1}, true, lnwallet.NewKeySigner(hostPriv), clientPriv.PubKey(), hostMaster, DefaultConfig())
	host.lcss = hostLCSS
	host.status = StatusSuspended
	fut := newResolutionFuture()
	host.resolutions[1] = fut

	clientLCSS := InitialLCSS(false, nil, params, 100)
	clientLCSS.OutgoingHtlcs = []lnwire.UpdateAddHtlc{{ID: 0, Amount: 10_000}}
	clientLCSS.IncomingHtlcs = []lnwire.UpdateAddHtlc{{ID: 1, Amount: 20_000}}

	client := New([33]byte{2}, false, lnwallet.NewKeySigner(clientPriv), hostPriv.PubKey(), clientMaster, DefaultConfig())
	client.lcss = clientLCSS
	client.status = StatusSuspended

	require.NoError(t, host.IssueOverride(750_000_000))
	require.Equal(t, StatusOverriding, host.Status())
	require.Len(t, hostMaster.sent, 1)
	override, ok := hostMaster.sent[0].(*lnwire.StateOverride)
	require.True(t, ok)

	require.NoError(t, client.OnStateOverride(override))
	require.Equal(t, StatusOverriding, client.Status())
	require.NoError(t, client.AcceptOverride())
	require.Len(t, clientMaster.sent, 1)
	clientSU, ok := clientMaster.sent[0].(*lnwire.StateUpdate)
	require.True(t, ok)

	require.NoError(t, host.OnOverrideStateUpdate(clientSU))

	require.Equal(t, StatusActive, host.Status())
	require.Equal(t, StatusActive, client.Status())
	require.Empty(t, host.lcss.IncomingHtlcs)
	require.Empty(t, host.lcss.OutgoingHtlcs)
	require.Empty(t, client.lcss.IncomingHtlcs)
	require.Empty(t, client.lcss.OutgoingHtlcs)
	require.Equal(t, lnwire.MilliSatoshi(750_000_000), host.lcss.LocalBalance)
	require.Equal(t, lnwire.MilliSatoshi(750_000_000), client.lcss.RemoteBalance)

	select {
	case <-fut.Done():
	default:
		t.Fatal("pending resolution was not cancelled by the override")
	}
	require.False(t, fut.Result().Fulfilled)
	require.Equal(t, "channel overridden", string(fut.Result().FailData))
	require.Empty(t, host.resolutions)
}
