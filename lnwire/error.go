package lnwire

import "io"

// Error is sent by either party to report a protocol violation or to move
// the channel into a Suspended state. A zero ChanID addresses the error to
// the connection as a whole rather than to a specific channel.
type Error struct {
	ChanID ChannelID

	Data []byte
}

var _ Message = (*Error)(nil)

// String returns Data interpreted as text, for logging.
func (e *Error) String() string {
	return string(e.Data)
}

func (e *Error) Encode(w io.Writer) error {
	if err := writeFixed(w, e.ChanID[:]); err != nil {
		return err
	}
	return writeVarBytes(w, e.Data)
}

func (e *Error) Decode(r io.Reader) error {
	if err := readFixed(r, e.ChanID[:]); err != nil {
		return err
	}

	data, err := readVarBytes(r)
	if err != nil {
		return err
	}
	e.Data = data

	return nil
}

func (e *Error) MsgType() MessageType {
	return MsgError
}
