package lnwire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func mustChannelID(b byte) ChannelID {
	var c ChannelID
	c[0] = b
	return c
}

func sampleHtlc(id uint64) UpdateAddHtlc {
	h := UpdateAddHtlc{
		ChanID:     mustChannelID(1),
		ID:         id,
		Amount:     MilliSatoshi(50000),
		CltvExpiry: 500000,
	}
	h.PaymentHash[0] = byte(id)
	return h
}

// TestMessageRoundTrip asserts WriteMessage/ReadMessage round-trips every
// hosted-channel message type, the property the rest of the protocol's
// determinism (and in particular signature verification) depends on.
func TestMessageRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
	}{
		{
			name: "InvokeHostedChannel",
			msg: &InvokeHostedChannel{
				ChainHash:          [32]byte{1, 2, 3},
				RefundScriptPubKey: []byte{0x76, 0xa9, 0x14},
				SecretBytes:        []byte("resume-secret"),
			},
		},
		{
			name: "InitHostedChannel",
			msg: &InitHostedChannel{
				Params: InitHostedChannelParams{
					MaxHtlcValueInFlight: 100000,
					HtlcMinimum:          1000,
					MaxAcceptedHtlcs:     30,
					ChannelCapacity:      10_000_000,
					InitialClientBalance: 5_000_000,
					Features:             []byte{0x01},
				},
			},
		},
		{
			name: "LastCrossSignedState",
			msg: &LastCrossSignedState{
				IsHost:             true,
				RefundScriptPubKey: []byte{0x00, 0x14},
				InitHostedChannel: InitHostedChannelParams{
					ChannelCapacity:      10_000_000,
					InitialClientBalance: 5_000_000,
				},
				BlockDay:      800_000,
				LocalBalance:  4_000_000,
				RemoteBalance: 6_000_000,
				LocalUpdates:  3,
				RemoteUpdates: 4,
				IncomingHtlcs: []UpdateAddHtlc{sampleHtlc(1)},
				OutgoingHtlcs: []UpdateAddHtlc{sampleHtlc(2), sampleHtlc(3)},
			},
		},
		{
			name: "StateUpdate",
			msg: &StateUpdate{
				ChanID:        mustChannelID(9),
				BlockDay:      800_001,
				LocalUpdates:  1,
				RemoteUpdates: 2,
			},
		},
		{
			name: "StateOverride",
			msg: &StateOverride{
				ChanID:        mustChannelID(9),
				BlockDay:      800_002,
				LocalBalance:  1_000_000,
				RemoteBalance: 9_000_000,
			},
		},
		{
			name: "ResizeChannel",
			msg: &ResizeChannel{
				ChanID:      mustChannelID(9),
				NewCapacity: 20_000_000,
			},
		},
		{
			name: "Error",
			msg: &Error{
				ChanID: mustChannelID(9),
				Data:   []byte("blockDay mismatch"),
			},
		},
		{
			name: "UpdateAddHtlc",
			msg: func() Message { h := sampleHtlc(4); return &h }(),
		},
		{
			name: "UpdateFulfillHtlc",
			msg: &UpdateFulfillHtlc{
				ChanID: mustChannelID(9),
				ID:     4,
			},
		},
		{
			name: "UpdateFailHtlc",
			msg: &UpdateFailHtlc{
				ChanID: mustChannelID(9),
				ID:     4,
				Reason: []byte{0xde, 0xad, 0xbe, 0xef},
			},
		},
		{
			name: "UpdateFailMalformedHtlc",
			msg: &UpdateFailMalformedHtlc{
				ChanID:      mustChannelID(9),
				ID:          4,
				FailureCode: 0x2002,
			},
		},
		{
			name: "AskBrandingInfo",
			msg:  &AskBrandingInfo{ChanID: mustChannelID(9)},
		},
		{
			name: "HostedChannelBranding",
			msg: &HostedChannelBranding{
				ChanID:      mustChannelID(9),
				RGBColor:    [3]byte{0x10, 0x20, 0x30},
				ContactInfo: []byte("operator@example.com"),
				Label:       []byte("Example Host"),
			},
		},
		{
			name: "QueryPreimages",
			msg: &QueryPreimages{
				Hashes: [][32]byte{{1}, {2}},
			},
		},
		{
			name: "ReplyPreimages",
			msg: &ReplyPreimages{
				Preimages: [][32]byte{{3}},
			},
		},
		{
			name: "AnnouncementSignature",
			msg: &AnnouncementSignature{
				ChanID:         mustChannelID(9),
				ShortChannelID: ShortChannelID{BlockHeight: 800_000, TxIndex: 1, OutputIndex: 0},
			},
		},
		{
			name: "ChannelUpdate",
			msg: &ChannelUpdate{
				ShortChannelID:  ShortChannelID{BlockHeight: 800_000, TxIndex: 1, OutputIndex: 0},
				Timestamp:       1700000000,
				TimeLockDelta:   72,
				HtlcMinimumMsat: 1000,
				BaseFee:         1000,
				FeeRate:         1,
				HtlcMaximumMsat: 1_000_000,
				ExtraOpaqueData: []byte{0x01, 0x02},
			},
		},
		{
			name: "ChannelAnnouncement",
			msg: &ChannelAnnouncement{
				ShortChannelID: ShortChannelID{BlockHeight: 800_000, TxIndex: 1, OutputIndex: 0},
				Features:       []byte{0x01},
			},
		},
		{
			name: "QueryPublicHostedChannels",
			msg:  &QueryPublicHostedChannels{ChainHash: [32]byte{9}},
		},
		{
			name: "ReplyPublicHostedChannels",
			msg: &ReplyPublicHostedChannels{
				Announcements: []ChannelAnnouncement{{
					ShortChannelID: ShortChannelID{BlockHeight: 1},
				}},
				Updates: []ChannelUpdate{{
					ShortChannelID: ShortChannelID{BlockHeight: 1},
				}},
			},
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			_, err := WriteMessage(&buf, tc.msg)
			require.NoError(t, err)

			got, err := ReadMessage(&buf)
			require.NoError(t, err)
			require.Equal(t, tc.msg, got)
			require.Equal(t, tc.msg.MsgType(), got.MsgType())
		})
	}
}

func TestReadMessageUnknownType(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0x00, 0x01})

	_, err := ReadMessage(&buf)
	require.Error(t, err)

	var unknown *UnknownMessage
	require.ErrorAs(t, err, &unknown)
	require.Equal(t, MessageType(1), unknown.Type)
}

// TestLastCrossSignedStateReverseInvolution checks the invariant the
// reconciliation protocol depends on: reversing a state twice must return
// to the original.
func TestLastCrossSignedStateReverseInvolution(t *testing.T) {
	lcss := &LastCrossSignedState{
		IsHost:        true,
		LocalBalance:  1000,
		RemoteBalance: 2000,
		LocalUpdates:  1,
		RemoteUpdates: 2,
		IncomingHtlcs: []UpdateAddHtlc{sampleHtlc(1)},
		OutgoingHtlcs: []UpdateAddHtlc{sampleHtlc(2)},
	}

	require.Equal(t, lcss, lcss.Reverse().Reverse())

	rev := lcss.Reverse()
	require.False(t, rev.IsHost)
	require.Equal(t, lcss.LocalBalance, rev.RemoteBalance)
	require.Equal(t, lcss.IncomingHtlcs, rev.OutgoingHtlcs)
}
