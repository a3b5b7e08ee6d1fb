package lnwire

import "io"

// StateUpdate carries one party's half of a freshly cross-signed LCSS: the
// new blockDay and local/remote update counters, plus that party's signature
// over the counterparty's view of the resulting state. The counterparty
// combines this with its own pending updates to assemble and verify the
// full LastCrossSignedState.
type StateUpdate struct {
	ChanID ChannelID

	BlockDay uint32

	LocalUpdates uint32

	RemoteUpdates uint32

	// LocalSigOfRemoteLCSS is the sender's signature over
	// hostedSigHash(Reverse(resulting LCSS)), i.e. over the receiver's own
	// view of the new state.
	LocalSigOfRemoteLCSS [64]byte
}

var _ Message = (*StateUpdate)(nil)

func (s *StateUpdate) Encode(w io.Writer) error {
	if err := writeFixed(w, s.ChanID[:]); err != nil {
		return err
	}
	if err := writeUint32(w, s.BlockDay); err != nil {
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

func (s *StateUpdate) Decode(r io.Reader) error {
	if err := readFixed(r, s.ChanID[:]); err != nil {
		return err
	}

	var err error
	if s.BlockDay, err = readUint32(r); err != nil {
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

func (s *StateUpdate) MsgType() MessageType {
	return MsgStateUpdate
}
