package lnwire

import (
	"bytes"
	"io"
)

// ChannelAnnouncement publishes a hosted channel's existence to the graph.
// It carries two node signatures (host and client) rather than the four
// signatures (two node, two bitcoin) a real funded channel announcement
// carries, since hosted channels have no funding transaction or bitcoin
// keys to prove ownership of.
type ChannelAnnouncement struct {
	NodeSignature1 [64]byte

	NodeSignature2 [64]byte

	ChainHash [32]byte

	ShortChannelID ShortChannelID

	NodeID1 [33]byte

	NodeID2 [33]byte

	Features []byte

	ExtraOpaqueData []byte
}

var _ Message = (*ChannelAnnouncement)(nil)

// DataToSign returns the signed tail of the message, the same convention
// ChannelUpdate.DataToSign follows.
func (c *ChannelAnnouncement) DataToSign() ([]byte, error) {
	var buf bytes.Buffer

	if err := writeFixed(&buf, c.ChainHash[:]); err != nil {
		return nil, err
	}
	if err := writeUint64(&buf, c.ShortChannelID.ToUint64()); err != nil {
		return nil, err
	}
	if err := writeFixed(&buf, c.NodeID1[:]); err != nil {
		return nil, err
	}
	if err := writeFixed(&buf, c.NodeID2[:]); err != nil {
		return nil, err
	}
	if err := writeVarBytes(&buf, c.Features); err != nil {
		return nil, err
	}
	if err := writeVarBytes(&buf, c.ExtraOpaqueData); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func (c *ChannelAnnouncement) Encode(w io.Writer) error {
	if err := writeFixed(w, c.NodeSignature1[:]); err != nil {
		return err
	}
	if err := writeFixed(w, c.NodeSignature2[:]); err != nil {
		return err
	}
	data, err := c.DataToSign()
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func (c *ChannelAnnouncement) Decode(r io.Reader) error {
	if err := readFixed(r, c.NodeSignature1[:]); err != nil {
		return err
	}
	if err := readFixed(r, c.NodeSignature2[:]); err != nil {
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

	if err := readFixed(r, c.NodeID1[:]); err != nil {
		return err
	}
	if err := readFixed(r, c.NodeID2[:]); err != nil {
		return err
	}

	feat, err := readVarBytes(r)
	if err != nil {
		return err
	}
	c.Features = feat

	rest, err := readVarBytes(r)
	if err != nil {
		return err
	}
	c.ExtraOpaqueData = rest

	return nil
}

func (c *ChannelAnnouncement) MsgType() MessageType {
	return MsgChannelAnnouncement
}
