package lnwire

import "io"

// AnnouncementSignature is exchanged so both parties can jointly sign a
// ChannelAnnouncement for a hosted channel that wants to be publicly
// routable, mirroring the real BOLT7 dance for funded channels.
type AnnouncementSignature struct {
	ChanID ChannelID

	ShortChannelID ShortChannelID

	NodeSignature [64]byte
}

var _ Message = (*AnnouncementSignature)(nil)

func (a *AnnouncementSignature) Encode(w io.Writer) error {
	if err := writeFixed(w, a.ChanID[:]); err != nil {
		return err
	}
	if err := writeUint64(w, a.ShortChannelID.ToUint64()); err != nil {
		return err
	}
	return writeFixed(w, a.NodeSignature[:])
}

func (a *AnnouncementSignature) Decode(r io.Reader) error {
	if err := readFixed(r, a.ChanID[:]); err != nil {
		return err
	}

	scid, err := readUint64(r)
	if err != nil {
		return err
	}
	a.ShortChannelID = NewShortChanIDFromUint64(scid)

	return readFixed(r, a.NodeSignature[:])
}

func (a *AnnouncementSignature) MsgType() MessageType {
	return MsgAnnouncementSignature
}
