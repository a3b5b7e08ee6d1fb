package lnwire

import (
	"bytes"
	"io"

	"github.com/btcsuite/btcd/btcutil"
)

// ResizeChannel is sent by the Client to grow the channel's declared
// capacity. Resize is one-directional and irreversible: the new capacity
// must be strictly greater than the current one, and the extra liquidity
// is credited entirely to the host side.
type ResizeChannel struct {
	ChanID ChannelID

	// NewCapacity is denominated in satoshis on the wire; holders of a
	// channel convert to msat when folding it into the next state.
	NewCapacity btcutil.Amount

	ClientSig [64]byte
}

var _ Message = (*ResizeChannel)(nil)

// SigMaterial returns the fixed-layout buffer signed by the client when
// proposing a resize: LE64(newCapacity in satoshis), SHA256'd by the
// caller.
func (r *ResizeChannel) SigMaterial() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeLE64(&buf, uint64(r.NewCapacity)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// NewCapacityMsat is NewCapacity converted to the msat unit channel
// balances are kept in.
func (r *ResizeChannel) NewCapacityMsat() MilliSatoshi {
	return MilliSatoshi(r.NewCapacity) * 1000
}

func (r *ResizeChannel) Encode(w io.Writer) error {
	if err := writeFixed(w, r.ChanID[:]); err != nil {
		return err
	}
	if err := writeUint64(w, uint64(r.NewCapacity)); err != nil {
		return err
	}
	return writeFixed(w, r.ClientSig[:])
}

func (r *ResizeChannel) Decode(rd io.Reader) error {
	if err := readFixed(rd, r.ChanID[:]); err != nil {
		return err
	}

	sat, err := readUint64(rd)
	if err != nil {
		return err
	}
	r.NewCapacity = btcutil.Amount(sat)

	return readFixed(rd, r.ClientSig[:])
}

func (r *ResizeChannel) MsgType() MessageType {
	return MsgResizeChannel
}
