package channeldb

import (
	"bytes"
	"encoding/binary"
	"io"

	"go.etcd.io/bbolt"

	"github.com/lightninglabs/hosted-channels/lnwire"
)

// StoredError is a protocol error recorded against a channel, either one
// it sent or one it received, kept as a (channelId, bytes, tlvStream)
// triple.
type StoredError struct {
	ChanID    lnwire.ChannelID
	Data      []byte
	TlvStream []byte
}

// ChannelData is the persisted record for one hosted channel: the latest
// LCSS plus its local/remote error history and any proposal awaiting the
// next commit.
type ChannelData struct {
	LCSS *lnwire.LastCrossSignedState

	LocalErrors  []StoredError
	RemoteErrors []StoredError

	// PendingRefundScript is set while a client has invoked but the
	// channel has not yet completed its opening handshake.
	PendingRefundScript []byte

	PendingResize *lnwire.ResizeChannel
}

// PutChannel writes data for peerID, overwriting whatever was there. Callers
// that need read-modify-write semantics should use UpdateChannel instead,
// which runs atomically against the same transaction as the read.
func (d *DB) PutChannel(peerID [33]byte, data *ChannelData) error {
	return d.Update(func(tx *bbolt.Tx) error {
		return putChannel(tx, peerID, data)
	})
}

// FetchChannel returns the persisted ChannelData for peerID, or nil if no
// record exists yet.
func (d *DB) FetchChannel(peerID [33]byte) (*ChannelData, error) {
	var data *ChannelData
	err := d.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(channelsBucket)
		raw := b.Get(peerID[:])
		if raw == nil {
			return nil
		}
		cd, err := deserializeChannelData(bytes.NewReader(raw))
		if err != nil {
			return err
		}
		data = cd
		return nil
	})
	return data, err
}

// FetchAllChannels returns every persisted channel, keyed by peer identity
// key, used by ChannelMaster on startup to rehydrate the registry.
func (d *DB) FetchAllChannels() (map[[33]byte]*ChannelData, error) {
	out := make(map[[33]byte]*ChannelData)
	err := d.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(channelsBucket)
		return b.ForEach(func(k, v []byte) error {
			cd, err := deserializeChannelData(bytes.NewReader(v))
			if err != nil {
				return err
			}
			var peerID [33]byte
			copy(peerID[:], k)
			out[peerID] = cd
			return nil
		})
	})
	return out, err
}

// UpdateChannel runs update against the current ChannelData for peerID
// (nil if none exists yet) inside a single read-modify-write transaction,
// persisting whatever update returns. This is the atomic commit
// primitive: a channel's LCSS only ever changes through one of these
// calls.
func (d *DB) UpdateChannel(peerID [33]byte, update func(*ChannelData) (*ChannelData, error)) error {
	return d.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(channelsBucket)

		var current *ChannelData
		if raw := b.Get(peerID[:]); raw != nil {
			cd, err := deserializeChannelData(bytes.NewReader(raw))
			if err != nil {
				return err
			}
			current = cd
		}

		next, err := update(current)
		if err != nil {
			return err
		}

		return putChannel(tx, peerID, next)
	})
}

// DeleteChannel removes peerID's record entirely, the only way a channel
// record is ever removed.
func (d *DB) DeleteChannel(peerID [33]byte) error {
	return d.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(channelsBucket).Delete(peerID[:])
	})
}

func putChannel(tx *bbolt.Tx, peerID [33]byte, data *ChannelData) error {
	var buf bytes.Buffer
	if err := serializeChannelData(&buf, data); err != nil {
		return err
	}
	return tx.Bucket(channelsBucket).Put(peerID[:], buf.Bytes())
}

func serializeChannelData(w io.Writer, data *ChannelData) error {
	hasLCSS := data.LCSS != nil
	if err := writeBool(w, hasLCSS); err != nil {
		return err
	}
	if hasLCSS {
		if err := data.LCSS.Encode(w); err != nil {
			return err
		}
	}

	if err := writeStoredErrors(w, data.LocalErrors); err != nil {
		return err
	}
	if err := writeStoredErrors(w, data.RemoteErrors); err != nil {
		return err
	}

	if err := writeLenPrefixed(w, data.PendingRefundScript); err != nil {
		return err
	}

	hasResize := data.PendingResize != nil
	if err := writeBool(w, hasResize); err != nil {
		return err
	}
	if hasResize {
		if err := data.PendingResize.Encode(w); err != nil {
			return err
		}
	}

	return nil
}

func deserializeChannelData(r io.Reader) (*ChannelData, error) {
	data := &ChannelData{}

	hasLCSS, err := readBool(r)
	if err != nil {
		return nil, err
	}
	if hasLCSS {
		lcss := &lnwire.LastCrossSignedState{}
		if err := lcss.Decode(r); err != nil {
			return nil, err
		}
		data.LCSS = lcss
	}

	if data.LocalErrors, err = readStoredErrors(r); err != nil {
		return nil, err
	}
	if data.RemoteErrors, err = readStoredErrors(r); err != nil {
		return nil, err
	}

	if data.PendingRefundScript, err = readLenPrefixed(r); err != nil {
		return nil, err
	}

	hasResize, err := readBool(r)
	if err != nil {
		return nil, err
	}
	if hasResize {
		resize := &lnwire.ResizeChannel{}
		if err := resize.Decode(r); err != nil {
			return nil, err
		}
		data.PendingResize = resize
	}

	return data, nil
}

func writeStoredErrors(w io.Writer, errs []StoredError) error {
	if err := binary.Write(w, binary.BigEndian, uint16(len(errs))); err != nil {
		return err
	}
	for _, e := range errs {
		if _, err := w.Write(e.ChanID[:]); err != nil {
			return err
		}
		if err := writeLenPrefixed(w, e.Data); err != nil {
			return err
		}
		if err := writeLenPrefixed(w, e.TlvStream); err != nil {
			return err
		}
	}
	return nil
}

func readStoredErrors(r io.Reader) ([]StoredError, error) {
	var n uint16
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return nil, err
	}
	out := make([]StoredError, n)
	for i := range out {
		if _, err := io.ReadFull(r, out[i].ChanID[:]); err != nil {
			return nil, err
		}
		data, err := readLenPrefixed(r)
		if err != nil {
			return nil, err
		}
		out[i].Data = data

		tlvStream, err := readLenPrefixed(r)
		if err != nil {
			return nil, err
		}
		out[i].TlvStream = tlvStream
	}
	return out, nil
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

func writeLenPrefixed(w io.Writer, b []byte) error {
	if err := binary.Write(w, binary.BigEndian, uint32(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func readLenPrefixed(r io.Reader) ([]byte, error) {
	var n uint32
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return nil, err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}
