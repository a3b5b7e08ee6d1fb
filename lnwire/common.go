package lnwire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// MilliSatoshi is a thousandth of a satoshi, the unit balances and HTLC
// amounts are denominated in throughout the hosted-channel protocol.
type MilliSatoshi uint64

// ChannelID uniquely identifies a hosted channel; derived deterministically
// from the host and client node identity keys (see lnwallet.DeriveChannelID).
type ChannelID [32]byte

func (c ChannelID) String() string {
	return fmt.Sprintf("%x", c[:])
}

// ShortChannelID is the 8-byte identifier used on the Lightning graph. For a
// hosted channel it is derived deterministically from the two node pubkeys
// rather than from a funding transaction's confirmed location.
type ShortChannelID struct {
	BlockHeight uint32
	TxIndex     uint32
	OutputIndex uint16
}

// ToUint64 packs the short channel ID into the standard 8-byte big-endian
// BOLT representation: 3 bytes block height, 3 bytes tx index, 2 bytes
// output index.
func (s ShortChannelID) ToUint64() uint64 {
	return (uint64(s.BlockHeight&0xffffff) << 40) |
		(uint64(s.TxIndex&0xffffff) << 16) |
		uint64(s.OutputIndex)
}

// NewShortChanIDFromUint64 unpacks a short channel ID from its 8-byte
// representation.
func NewShortChanIDFromUint64(n uint64) ShortChannelID {
	return ShortChannelID{
		BlockHeight: uint32(n >> 40),
		TxIndex:     uint32((n >> 16) & 0xffffff),
		OutputIndex: uint16(n),
	}
}

func (s ShortChannelID) String() string {
	return fmt.Sprintf("%dx%dx%d", s.BlockHeight, s.TxIndex, s.OutputIndex)
}

const maxOpaqueTailSize = 65000

// writeUint16 writes n to w in big-endian form.
func writeUint16(w io.Writer, n uint16) error {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], n)
	_, err := w.Write(b[:])
	return err
}

func readUint16(r io.Reader) (uint16, error) {
	var b [2]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b[:]), nil
}

func writeUint32(w io.Writer, n uint32) error {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], n)
	_, err := w.Write(b[:])
	return err
}

func readUint32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

func writeUint64(w io.Writer, n uint64) error {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], n)
	_, err := w.Write(b[:])
	return err
}

func readUint64(r io.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b[:]), nil
}

func writeMilliSatoshi(w io.Writer, m MilliSatoshi) error {
	return writeUint64(w, uint64(m))
}

func readMilliSatoshi(r io.Reader) (MilliSatoshi, error) {
	n, err := readUint64(r)
	return MilliSatoshi(n), err
}

func writeBool(w io.Writer, b bool) error {
	var v byte
	if b {
		v = 1
	}
	_, err := w.Write([]byte{v})
	return err
}

func readBool(r io.Reader) (bool, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return false, err
	}
	return b[0] != 0, nil
}

// writeVarBytes writes a byte slice prefixed with its uint16 length.
func writeVarBytes(w io.Writer, b []byte) error {
	if len(b) > maxOpaqueTailSize {
		return fmt.Errorf("byte slice of length %d is too long to encode",
			len(b))
	}
	if err := writeUint16(w, uint16(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func readVarBytes(r io.Reader) ([]byte, error) {
	l, err := readUint16(r)
	if err != nil {
		return nil, err
	}
	if l == 0 {
		return nil, nil
	}
	b := make([]byte, l)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}

func readFixed(r io.Reader, b []byte) error {
	_, err := io.ReadFull(r, b)
	return err
}

func writeFixed(w io.Writer, b []byte) error {
	_, err := w.Write(b)
	return err
}

// writeLE32 and writeLE64 write little-endian integers. They exist
// separately from the big-endian wire helpers above because the
// hosted-channel signature material (LastCrossSignedState.SigMaterial) must
// match a fixed little-endian byte layout shared by both parties, distinct
// from this package's normal big-endian message framing.
func writeLE32(w io.Writer, n uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], n)
	_, err := w.Write(b[:])
	return err
}

func writeLE64(w io.Writer, n uint64) error {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], n)
	_, err := w.Write(b[:])
	return err
}
