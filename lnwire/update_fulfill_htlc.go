package lnwire

import "io"

// UpdateFulfillHtlc is sent to resolve an in-flight HTLC by revealing its
// payment preimage.
type UpdateFulfillHtlc struct {
	ChanID ChannelID

	ID uint64

	PaymentPreimage [32]byte
}

var _ Message = (*UpdateFulfillHtlc)(nil)

func (u *UpdateFulfillHtlc) Encode(w io.Writer) error {
	if err := writeFixed(w, u.ChanID[:]); err != nil {
		return err
	}
	if err := writeUint64(w, u.ID); err != nil {
		return err
	}
	return writeFixed(w, u.PaymentPreimage[:])
}

func (u *UpdateFulfillHtlc) Decode(r io.Reader) error {
	if err := readFixed(r, u.ChanID[:]); err != nil {
		return err
	}
	id, err := readUint64(r)
	if err != nil {
		return err
	}
	u.ID = id

	return readFixed(r, u.PaymentPreimage[:])
}

func (u *UpdateFulfillHtlc) MsgType() MessageType {
	return MsgUpdateFulfillHtlc
}
