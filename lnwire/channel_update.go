package lnwire

import (
	"bytes"
	"io"
)

// ChannelUpdateFlag bits control how a ChannelUpdate's direction and
// disable status are encoded, mirroring BOLT7's ChannelUpdate flags.
type ChannelUpdateFlag uint16

const (
	ChanUpdateDirection ChannelUpdateFlag = 1 << 0
	ChanUpdateDisabled  ChannelUpdateFlag = 1 << 1
)

// ChannelUpdate announces a hosted channel's routing policy (fees, CLTV
// delta, advertised capacity) to the rest of the network, through the host
// node's own gossip layer. Its signature is the host's node signature, not
// a channel signature: hosted channels have no funding key.
type ChannelUpdate struct {
	Signature [64]byte

	ChainHash [32]byte

	ShortChannelID ShortChannelID

	Timestamp uint32

	Flags ChannelUpdateFlag

	TimeLockDelta uint16

	HtlcMinimumMsat MilliSatoshi

	BaseFee uint32

	FeeRate uint32

	HtlcMaximumMsat MilliSatoshi

	ExtraOpaqueData []byte
}

var _ Message = (*ChannelUpdate)(nil)

// DataToSign returns the portion of the message that is covered by
// Signature: every field after it, in wire order.
func (c *ChannelUpdate) DataToSign() ([]byte, error) {
	var buf bytes.Buffer

	if err := writeFixed(&buf, c.ChainHash[:]); err != nil {
		return nil, err
	}
	if err := writeUint64(&buf, c.ShortChannelID.ToUint64()); err != nil {
		return nil, err
	}
	if err := writeUint32(&buf, c.Timestamp); err != nil {
		return nil, err
	}
	if err := writeUint16(&buf, uint16(c.Flags)); err != nil {
		return nil, err
	}
	if err := writeUint16(&buf, c.TimeLockDelta); err != nil {
		return nil, err
	}
	if err := writeMilliSatoshi(&buf, c.HtlcMinimumMsat); err != nil {
		return nil, err
	}
	if err := writeUint32(&buf, c.BaseFee); err != nil {
		return nil, err
	}
	if err := writeUint32(&buf, c.FeeRate); err != nil {
		return nil, err
	}
	if err := writeMilliSatoshi(&buf, c.HtlcMaximumMsat); err != nil {
		return nil, err
	}
	if err := writeVarBytes(&buf, c.ExtraOpaqueData); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func (c *ChannelUpdate) Encode(w io.Writer) error {
	if err := writeFixed(w, c.Signature[:]); err != nil {
		return err
	}
	data, err := c.DataToSign()
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func (c *ChannelUpdate) Decode(r io.Reader) error {
	if err := readFixed(r, c.Signature[:]); err != nil {
		return err
	}
	if err := readFixed(r, c.ChainHash[:]); err != nil {
		return err
	}

	scid, err := readUint64(r)
	if err != nil {
		return err
	}
	c.ShortChannelID = NewShortChanIDFromUint64(scid)

	if c.Timestamp, err = readUint32(r); err != nil {
		return err
	}

	flags, err := readUint16(r)
	if err != nil {
		return err
	}
	c.Flags = ChannelUpdateFlag(flags)

	if c.TimeLockDelta, err = readUint16(r); err != nil {
		return err
	}
	if c.HtlcMinimumMsat, err = readMilliSatoshi(r); err != nil {
		return err
	}
	if c.BaseFee, err = readUint32(r); err != nil {
		return err
	}
	if c.FeeRate, err = readUint32(r); err != nil {
		return err
	}
	if c.HtlcMaximumMsat, err = readMilliSatoshi(r); err != nil {
		return err
	}

	rest, err := readVarBytes(r)
	if err != nil {
		return err
	}
	c.ExtraOpaqueData = rest

	return nil
}

func (c *ChannelUpdate) MsgType() MessageType {
	return MsgChannelUpdate
}
