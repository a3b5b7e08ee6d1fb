package lnwire

import "io"

// OnionPacketSize is the fixed length of a Sphinx onion routing packet, per
// BOLT #4. UpdateAddHtlc must encode this field bit-for-bit identically to
// the underlying Lightning node's own HTLC-add message, since its bytes are
// concatenated directly into LCSS signature material.
const OnionPacketSize = 1366

// UpdateAddHtlc is sent by either party to offer a new HTLC to the other.
// Both the host and the client originate these: a Client paying out through
// its hosted balance, or a Host forwarding a payment inward.
type UpdateAddHtlc struct {
	ChanID ChannelID

	// ID is the identifier of this HTLC, monotonically assigned by the
	// channel that originates it.
	ID uint64

	Amount MilliSatoshi

	PaymentHash [32]byte

	CltvExpiry uint32

	OnionBlob [OnionPacketSize]byte
}

var _ Message = (*UpdateAddHtlc)(nil)

func (u *UpdateAddHtlc) Encode(w io.Writer) error {
	if err := writeFixed(w, u.ChanID[:]); err != nil {
		return err
	}
	if err := writeUint64(w, u.ID); err != nil {
		return err
	}
	if err := writeMilliSatoshi(w, u.Amount); err != nil {
		return err
	}
	if err := writeFixed(w, u.PaymentHash[:]); err != nil {
		return err
	}
	if err := writeUint32(w, u.CltvExpiry); err != nil {
		return err
	}
	return writeFixed(w, u.OnionBlob[:])
}

func (u *UpdateAddHtlc) Decode(r io.Reader) error {
	if err := readFixed(r, u.ChanID[:]); err != nil {
		return err
	}
	id, err := readUint64(r)
	if err != nil {
		return err
	}
	u.ID = id

	amt, err := readMilliSatoshi(r)
	if err != nil {
		return err
	}
	u.Amount = amt

	if err := readFixed(r, u.PaymentHash[:]); err != nil {
		return err
	}

	expiry, err := readUint32(r)
	if err != nil {
		return err
	}
	u.CltvExpiry = expiry

	return readFixed(r, u.OnionBlob[:])
}

func (u *UpdateAddHtlc) MsgType() MessageType {
	return MsgUpdateAddHtlc
}

// EncodedSize returns the exact number of bytes this HTLC contributes when
// concatenated into LCSS signature material.
func (u *UpdateAddHtlc) EncodedSize() int {
	return len(u.ChanID) + 8 + 8 + 32 + 4 + OnionPacketSize
}
