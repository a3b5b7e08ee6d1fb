package lnwire

import "io"

// StateOverride is sent by the Host to unilaterally propose a fresh LCSS
// that discards any disputed pending updates, forcing the channel back to a
// simple two-balance state. The Client either ratifies it by countersigning
// the forced state and replying with a StateUpdate, or rejects it and the
// channel stays suspended.
type StateOverride struct {
	ChanID ChannelID

	BlockDay uint32

	LocalBalance MilliSatoshi

	RemoteBalance MilliSatoshi

	LocalUpdates uint32

	RemoteUpdates uint32

	// LocalSigOfRemoteLCSS is the sender's signature over the resulting
	// LCSS as seen by the receiver (Reverse'd, no in-flight HTLCs).
	LocalSigOfRemoteLCSS [64]byte
}

var _ Message = (*StateOverride)(nil)

func (s *StateOverride) Encode(w io.Writer) error {
	if err := writeFixed(w, s.ChanID[:]); err != nil {
		return err
	}
	if err := writeUint32(w, s.BlockDay); err != nil {
		return err
	}
	if err := writeMilliSatoshi(w, s.LocalBalance); err != nil {
		return err
	}
	if err := writeMilliSatoshi(w, s.RemoteBalance); err != nil {
		return err
	}
	if err := writeUint32(w, s.LocalUpdates); err != nil {
		return err
	}
	if err := writeUint32(w, s.RemoteUpdates); err != nil {
		return err
	}
	return writeFixed(w, s.LocalSigOfRemoteLCSS[:])
}

func (s *StateOverride) Decode(r io.Reader) error {
	if err := readFixed(r, s.ChanID[:]); err != nil {
		return err
	}

	var err error
	if s.BlockDay, err = readUint32(r); err != nil {
		return err
	}
	if s.LocalBalance, err = readMilliSatoshi(r); err != nil {
		return err
	}
	if s.RemoteBalance, err = readMilliSatoshi(r); err != nil {
		return err
	}
	if s.LocalUpdates, err = readUint32(r); err != nil {
		return err
	}
	if s.RemoteUpdates, err = readUint32(r); err != nil {
		return err
	}
	return readFixed(r, s.LocalSigOfRemoteLCSS[:])
}

func (s *StateOverride) MsgType() MessageType {
	return MsgStateOverride
}
