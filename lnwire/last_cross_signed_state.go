package lnwire

import (
	"bytes"
	"io"
)

// LastCrossSignedState is the canonical hosted-channel state. Both sides
// hold and cross-sign a copy of this object; each one's copy is the
// "reverse" of the other's (see Reverse), so the two parties agree on a
// single underlying state while each sees themselves as "local".
type LastCrossSignedState struct {
	// IsHost records the role of the party holding this copy.
	IsHost bool

	RefundScriptPubKey []byte

	InitHostedChannel InitHostedChannelParams

	// BlockDay is the current block height divided by 144 at the time
	// this state was cross-signed.
	BlockDay uint32

	LocalBalance MilliSatoshi

	RemoteBalance MilliSatoshi

	LocalUpdates uint32

	RemoteUpdates uint32

	IncomingHtlcs []UpdateAddHtlc

	OutgoingHtlcs []UpdateAddHtlc

	// RemoteSigOfLocal is the counterparty's signature over this exact
	// object (i.e. over hostedSigHash(this)) - the counterparty produced
	// it by signing Reverse of their own copy, which equals our copy.
	RemoteSigOfLocal [64]byte

	// LocalSigOfRemote is our own signature over the counterparty's view,
	// i.e. over hostedSigHash(Reverse(this)).
	LocalSigOfRemote [64]byte
}

var _ Message = (*LastCrossSignedState)(nil)

// SigMaterial returns the fixed-layout buffer both parties sign, exactly as
// defined in §4.1: refundScriptPubKey || LE64(capacity) ||
// LE64(initialClientBalance) || LE32(blockDay) || LE64(localBalance) ||
// LE64(remoteBalance) || LE32(localUpdates) || LE32(remoteUpdates) ||
// concat(encode(incoming)) || concat(encode(outgoing)) || byte(isHost).
//
// This layout has no TLV padding and must be bit-identical on both sides,
// so it uses little-endian fixed-width integers rather than this package's
// usual big-endian wire helpers.
func (l *LastCrossSignedState) SigMaterial() ([]byte, error) {
	var buf bytes.Buffer

	buf.Write(l.RefundScriptPubKey)

	if err := writeLE64(&buf, uint64(l.InitHostedChannel.ChannelCapacity)); err != nil {
		return nil, err
	}
	if err := writeLE64(&buf, uint64(l.InitHostedChannel.InitialClientBalance)); err != nil {
		return nil, err
	}
	if err := writeLE32(&buf, l.BlockDay); err != nil {
		return nil, err
	}
	if err := writeLE64(&buf, uint64(l.LocalBalance)); err != nil {
		return nil, err
	}
	if err := writeLE64(&buf, uint64(l.RemoteBalance)); err != nil {
		return nil, err
	}
	if err := writeLE32(&buf, l.LocalUpdates); err != nil {
		return nil, err
	}
	if err := writeLE32(&buf, l.RemoteUpdates); err != nil {
		return nil, err
	}

	for i := range l.IncomingHtlcs {
		if err := l.IncomingHtlcs[i].Encode(&buf); err != nil {
			return nil, err
		}
	}
	for i := range l.OutgoingHtlcs {
		if err := l.OutgoingHtlcs[i].Encode(&buf); err != nil {
			return nil, err
		}
	}

	var isHost byte
	if l.IsHost {
		isHost = 1
	}
	buf.WriteByte(isHost)

	return buf.Bytes(), nil
}

// Reverse returns the counterparty's view of the same underlying channel
// state: roles, balances, and HTLC directions are swapped, and the
// signature fields trade places. Property: l.Reverse().Reverse() == l.
func (l *LastCrossSignedState) Reverse() *LastCrossSignedState {
	r := &LastCrossSignedState{
		IsHost:             !l.IsHost,
		RefundScriptPubKey: l.RefundScriptPubKey,
		InitHostedChannel:  l.InitHostedChannel,
		BlockDay:           l.BlockDay,
		LocalBalance:       l.RemoteBalance,
		RemoteBalance:      l.LocalBalance,
		LocalUpdates:       l.RemoteUpdates,
		RemoteUpdates:      l.LocalUpdates,
		IncomingHtlcs:      cloneHtlcs(l.OutgoingHtlcs),
		OutgoingHtlcs:      cloneHtlcs(l.IncomingHtlcs),
		RemoteSigOfLocal:   l.LocalSigOfRemote,
		LocalSigOfRemote:   l.RemoteSigOfLocal,
	}
	return r
}

func cloneHtlcs(in []UpdateAddHtlc) []UpdateAddHtlc {
	if in == nil {
		return nil
	}
	out := make([]UpdateAddHtlc, len(in))
	copy(out, in)
	return out
}

func (l *LastCrossSignedState) Encode(w io.Writer) error {
	if err := writeBool(w, l.IsHost); err != nil {
		return err
	}
	if err := writeVarBytes(w, l.RefundScriptPubKey); err != nil {
		return err
	}
	if err := l.InitHostedChannel.encode(w); err != nil {
		return err
	}
	if err := writeUint32(w, l.BlockDay); err != nil {
		return err
	}
	if err := writeMilliSatoshi(w, l.LocalBalance); err != nil {
		return err
	}
	if err := writeMilliSatoshi(w, l.RemoteBalance); err != nil {
		return err
	}
	if err := writeUint32(w, l.LocalUpdates); err != nil {
		return err
	}
	if err := writeUint32(w, l.RemoteUpdates); err != nil {
		return err
	}
	if err := writeHtlcList(w, l.IncomingHtlcs); err != nil {
		return err
	}
	if err := writeHtlcList(w, l.OutgoingHtlcs); err != nil {
		return err
	}
	if err := writeFixed(w, l.RemoteSigOfLocal[:]); err != nil {
		return err
	}
	return writeFixed(w, l.LocalSigOfRemote[:])
}

func (l *LastCrossSignedState) Decode(r io.Reader) error {
	var err error

	if l.IsHost, err = readBool(r); err != nil {
		return err
	}
	if l.RefundScriptPubKey, err = readVarBytes(r); err != nil {
		return err
	}
	if err := l.InitHostedChannel.decode(r); err != nil {
		return err
	}
	if l.BlockDay, err = readUint32(r); err != nil {
		return err
	}
	if l.LocalBalance, err = readMilliSatoshi(r); err != nil {
		return err
	}
	if l.RemoteBalance, err = readMilliSatoshi(r); err != nil {
		return err
	}
	if l.LocalUpdates, err = readUint32(r); err != nil {
		return err
	}
	if l.RemoteUpdates, err = readUint32(r); err != nil {
		return err
	}
	if l.IncomingHtlcs, err = readHtlcList(r); err != nil {
		return err
	}
	if l.OutgoingHtlcs, err = readHtlcList(r); err != nil {
		return err
	}
	if err := readFixed(r, l.RemoteSigOfLocal[:]); err != nil {
		return err
	}
	return readFixed(r, l.LocalSigOfRemote[:])
}

func (l *LastCrossSignedState) MsgType() MessageType {
	return MsgLastCrossSignedState
}

func writeHtlcList(w io.Writer, htlcs []UpdateAddHtlc) error {
	if err := writeUint16(w, uint16(len(htlcs))); err != nil {
		return err
	}
	for i := range htlcs {
		if err := htlcs[i].Encode(w); err != nil {
			return err
		}
	}
	return nil
}

func readHtlcList(r io.Reader) ([]UpdateAddHtlc, error) {
	n, err := readUint16(r)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	htlcs := make([]UpdateAddHtlc, n)
	for i := range htlcs {
		if err := htlcs[i].Decode(r); err != nil {
			return nil, err
		}
	}
	return htlcs, nil
}
