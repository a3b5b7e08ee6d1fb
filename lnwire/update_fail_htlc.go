package lnwire

import "io"

// UpdateFailHtlc is sent to resolve an in-flight HTLC with a failure, whose
// reason is an encrypted onion failure blob the originating node can
// decrypt.
type UpdateFailHtlc struct {
	ChanID ChannelID

	ID uint64

	Reason []byte
}

var _ Message = (*UpdateFailHtlc)(nil)

func (u *UpdateFailHtlc) Encode(w io.Writer) error {
	if err := writeFixed(w, u.ChanID[:]); err != nil {
		return err
	}
	if err := writeUint64(w, u.ID); err != nil {
		return err
	}
	return writeVarBytes(w, u.Reason)
}

func (u *UpdateFailHtlc) Decode(r io.Reader) error {
	if err := readFixed(r, u.ChanID[:]); err != nil {
		return err
	}
	id, err := readUint64(r)
	if err != nil {
		return err
	}
	u.ID = id

	reason, err := readVarBytes(r)
	if err != nil {
		return err
	}
	u.Reason = reason

	return nil
}

func (u *UpdateFailHtlc) MsgType() MessageType {
	return MsgUpdateFailHtlc
}

// UpdateFailMalformedHtlc is sent when the receiver of an HTLC cannot parse
// the onion routing packet attached to it, so it can't construct a proper
// encrypted failure reason, and instead reports the raw failure code plus a
// hash of the unparseable onion.
type UpdateFailMalformedHtlc struct {
	ChanID ChannelID

	ID uint64

	ShaOnionBlob [32]byte

	FailureCode uint16
}

var _ Message = (*UpdateFailMalformedHtlc)(nil)

func (u *UpdateFailMalformedHtlc) Encode(w io.Writer) error {
	if err := writeFixed(w, u.ChanID[:]); err != nil {
		return err
	}
	if err := writeUint64(w, u.ID); err != nil {
		return err
	}
	if err := writeFixed(w, u.ShaOnionBlob[:]); err != nil {
		return err
	}
	return writeUint16(w, u.FailureCode)
}

func (u *UpdateFailMalformedHtlc) Decode(r io.Reader) error {
	if err := readFixed(r, u.ChanID[:]); err != nil {
		return err
	}
	id, err := readUint64(r)
	if err != nil {
		return err
	}
	u.ID = id

	if err := readFixed(r, u.ShaOnionBlob[:]); err != nil {
		return err
	}

	code, err := readUint16(r)
	if err != nil {
		return err
	}
	u.FailureCode = code

	return nil
}

func (u *UpdateFailMalformedHtlc) MsgType() MessageType {
	return MsgUpdateFailMalformedHtlc
}
