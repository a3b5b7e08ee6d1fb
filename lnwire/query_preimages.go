package lnwire

import "io"

// QueryPreimages asks the peer to reveal the preimages it holds for the
// listed payment hashes, used during reconnect to resolve HTLCs that were
// settled while a party was offline and whose fulfill message was lost.
type QueryPreimages struct {
	Hashes [][32]byte
}

var _ Message = (*QueryPreimages)(nil)

func (q *QueryPreimages) Encode(w io.Writer) error {
	if err := writeUint16(w, uint16(len(q.Hashes))); err != nil {
		return err
	}
	for i := range q.Hashes {
		if err := writeFixed(w, q.Hashes[i][:]); err != nil {
			return err
		}
	}
	return nil
}

func (q *QueryPreimages) Decode(r io.Reader) error {
	n, err := readUint16(r)
	if err != nil {
		return err
	}
	if n == 0 {
		return nil
	}
	q.Hashes = make([][32]byte, n)
	for i := range q.Hashes {
		if err := readFixed(r, q.Hashes[i][:]); err != nil {
			return err
		}
	}
	return nil
}

func (q *QueryPreimages) MsgType() MessageType {
	return MsgQueryPreimages
}

// ReplyPreimages answers a QueryPreimages with whatever preimages the
// replier actually holds; it need not answer every hash asked for.
type ReplyPreimages struct {
	Preimages [][32]byte
}

var _ Message = (*ReplyPreimages)(nil)

func (r *ReplyPreimages) Encode(w io.Writer) error {
	if err := writeUint16(w, uint16(len(r.Preimages))); err != nil {
		return err
	}
	for i := range r.Preimages {
		if err := writeFixed(w, r.Preimages[i][:]); err != nil {
			return err
		}
	}
	return nil
}

func (r *ReplyPreimages) Decode(rd io.Reader) error {
	n, err := readUint16(rd)
	if err != nil {
		return err
	}
	if n == 0 {
		return nil
	}
	r.Preimages = make([][32]byte, n)
	for i := range r.Preimages {
		if err := readFixed(rd, r.Preimages[i][:]); err != nil {
			return err
		}
	}
	return nil
}

func (r *ReplyPreimages) MsgType() MessageType {
	return MsgReplyPreimages
}
