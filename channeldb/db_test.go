package channeldb

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lightninglabs/hosted-channels/channel"
	"github.com/lightninglabs/hosted-channels/lnwire"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, db.Close()) })

	return db
}

func sampleChannelData() *ChannelData {
	lcss := &lnwire.LastCrossSignedState{
		IsHost:             true,
		RefundScriptPubKey: []byte{0x00, 0x14, 0xde, 0xad},
		InitHostedChannel: lnwire.InitHostedChannelParams{
			MaxHtlcValueInFlight: 100_000_000,
			HtlcMinimum:          1_000,
			MaxAcceptedHtlcs:     30,
			ChannelCapacity:      1_000_000_000,
			InitialClientBalance: 0,
			Features:             []byte{0x02},
		},
		BlockDay:      5000,
		LocalBalance:  900_000_000,
		RemoteBalance: 100_000_000,
		LocalUpdates:  7,
		RemoteUpdates: 4,
		IncomingHtlcs: []lnwire.UpdateAddHtlc{{
			ID:          9,
			Amount:      20_000,
			PaymentHash: [32]byte{4, 5, 6},
			CltvExpiry:  720_090,
		}},
		OutgoingHtlcs: []lnwire.UpdateAddHtlc{{
			ID:          2,
			Amount:      50_000,
			PaymentHash: [32]byte{1, 2, 3},
			CltvExpiry:  720_100,
		}},
	}
	lcss.RemoteSigOfLocal[0] = 0xaa
	lcss.LocalSigOfRemote[0] = 0xbb

	return &ChannelData{
		LCSS: lcss,
		LocalErrors: []StoredError{{
			ChanID:    lnwire.ChannelID{9},
			Data:      []byte("blockday too stale"),
			TlvStream: []byte{0x00, 0x01, 0x2a},
		}},
		RemoteErrors: []StoredError{{
			ChanID: lnwire.ChannelID{9},
			Data:   []byte("peer gave up"),
		}},
		PendingRefundScript: []byte{0x51},
		PendingResize: &lnwire.ResizeChannel{
			ChanID:      lnwire.ChannelID{9},
			NewCapacity: 2_000_000_000,
		},
	}
}

// TestChannelDataRoundTrip persists a fully populated ChannelData record
// and reads it back through both FetchChannel and FetchAllChannels.
func TestChannelDataRoundTrip(t *testing.T) {
	db := openTestDB(t)

	var peerID [33]byte
	peerID[0] = 0x02
	peerID[32] = 0x7f

	data := sampleChannelData()
	require.NoError(t, db.PutChannel(peerID, data))

	got, err := db.FetchChannel(peerID)
	require.NoError(t, err)
	require.Equal(t, data.LCSS, got.LCSS)
	require.Equal(t, data.LocalErrors[0].Data, got.LocalErrors[0].Data)
	require.Equal(t, data.LocalErrors[0].TlvStream, got.LocalErrors[0].TlvStream)
	require.Equal(t, data.RemoteErrors[0].Data, got.RemoteErrors[0].Data)
	require.Equal(t, data.PendingRefundScript, got.PendingRefundScript)
	require.Equal(t, data.PendingResize, got.PendingResize)

	all, err := db.FetchAllChannels()
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Equal(t, data.LCSS, all[peerID].LCSS)

	// An unknown peer yields nil, not an error.
	missing, err := db.FetchChannel([33]byte{0x03})
	require.NoError(t, err)
	require.Nil(t, missing)
}

// TestUpdateChannelReadModifyWrite checks that UpdateChannel sees the prior
// record and persists exactly what the transformation returns.
func TestUpdateChannelReadModifyWrite(t *testing.T) {
	db := openTestDB(t)

	var peerID [33]byte
	peerID[0] = 0x03

	require.NoError(t, db.PutChannel(peerID, sampleChannelData()))

	err := db.UpdateChannel(peerID, func(cur *ChannelData) (*ChannelData, error) {
		require.NotNil(t, cur)
		cur.LCSS.LocalUpdates++
		cur.PendingResize = nil
		return cur, nil
	})
	require.NoError(t, err)

	got, err := db.FetchChannel(peerID)
	require.NoError(t, err)
	require.Equal(t, uint32(8), got.LCSS.LocalUpdates)
	require.Nil(t, got.PendingResize)

	// A fresh peer's transformation starts from nil.
	var freshID [33]byte
	freshID[0] = 0x04
	err = db.UpdateChannel(freshID, func(cur *ChannelData) (*ChannelData, error) {
		require.Nil(t, cur)
		return &ChannelData{PendingRefundScript: []byte{0x51}}, nil
	})
	require.NoError(t, err)

	require.NoError(t, db.DeleteChannel(peerID))
	got, err = db.FetchChannel(peerID)
	require.NoError(t, err)
	require.Nil(t, got)
}

// TestForwardsTable exercises the incoming->outgoing HtlcIdentifier map:
// put, fetch, enumerate, delete.
func TestForwardsTable(t *testing.T) {
	db := openTestDB(t)

	incoming := channel.HtlcIdentifier{
		ShortChannelID: lnwire.NewShortChanIDFromUint64(1234),
		HtlcID:         7,
	}
	outgoing := channel.HtlcIdentifier{
		ShortChannelID: lnwire.NewShortChanIDFromUint64(5678),
		HtlcID:         0,
	}

	require.NoError(t, db.PutForward(incoming, outgoing))

	got, ok, err := db.FetchForward(incoming)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, outgoing, got)

	all, err := db.AllForwards()
	require.NoError(t, err)
	require.Equal(t, map[channel.HtlcIdentifier]channel.HtlcIdentifier{
		incoming: outgoing,
	}, all)

	require.NoError(t, db.DeleteForward(incoming))
	_, ok, err = db.FetchForward(incoming)
	require.NoError(t, err)
	require.False(t, ok)
}

// TestPreimageCache exercises the paymentHash->preimage table.
func TestPreimageCache(t *testing.T) {
	db := openTestDB(t)

	hash := [32]byte{0xaa}
	preimage := [32]byte{0x77}

	_, ok, err := db.FetchPreimage(hash)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, db.PutPreimage(hash, preimage))

	got, ok, err := db.FetchPreimage(hash)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, preimage, got)

	all, err := db.AllPreimages()
	require.NoError(t, err)
	require.Equal(t, map[[32]byte][32]byte{hash: preimage}, all)

	require.NoError(t, db.DeletePreimage(hash))
	_, ok, err = db.FetchPreimage(hash)
	require.NoError(t, err)
	require.False(t, ok)
}
