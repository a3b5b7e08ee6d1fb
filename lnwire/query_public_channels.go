package lnwire

import "io"

// QueryPublicHostedChannels asks a host to list the hosted channels it has
// publicly announced, for light clients that can't crawl the full gossip
// graph themselves.
type QueryPublicHostedChannels struct {
	ChainHash [32]byte
}

var _ Message = (*QueryPublicHostedChannels)(nil)

func (q *QueryPublicHostedChannels) Encode(w io.Writer) error {
	return writeFixed(w, q.ChainHash[:])
}

func (q *QueryPublicHostedChannels) Decode(r io.Reader) error {
	return readFixed(r, q.ChainHash[:])
}

func (q *QueryPublicHostedChannels) MsgType() MessageType {
	return MsgQueryPublicHostedChannels
}

// ReplyPublicHostedChannels answers a QueryPublicHostedChannels with the
// ChannelAnnouncement/ChannelUpdate pairs the host has published.
type ReplyPublicHostedChannels struct {
	Announcements []ChannelAnnouncement

	Updates []ChannelUpdate
}

var _ Message = (*ReplyPublicHostedChannels)(nil)

func (r *ReplyPublicHostedChannels) Encode(w io.Writer) error {
	if err := writeUint16(w, uint16(len(r.Announcements))); err != nil {
		return err
	}
	for i := range r.Announcements {
		if err := r.Announcements[i].Encode(w); err != nil {
			return err
		}
	}

	if err := writeUint16(w, uint16(len(r.Updates))); err != nil {
		return err
	}
	for i := range r.Updates {
		if err := r.Updates[i].Encode(w); err != nil {
			return err
		}
	}

	return nil
}

func (r *ReplyPublicHostedChannels) Decode(rd io.Reader) error {
	n, err := readUint16(rd)
	if err != nil {
		return err
	}
	r.Announcements = make([]ChannelAnnouncement, n)
	for i := range r.Announcements {
		if err := r.Announcements[i].Decode(rd); err != nil {
			return err
		}
	}

	m, err := readUint16(rd)
	if err != nil {
		return err
	}
	r.Updates = make([]ChannelUpdate, m)
	for i := range r.Updates {
		if err := r.Updates[i].Decode(rd); err != nil {
			return err
		}
	}

	return nil
}

func (r *ReplyPublicHostedChannels) MsgType() MessageType {
	return MsgReplyPublicHostedChannels
}
