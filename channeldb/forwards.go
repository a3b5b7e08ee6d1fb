package channeldb

import (
	"encoding/binary"

	"go.etcd.io/bbolt"

	"github.com/lightninglabs/hosted-channels/channel"
	"github.com/lightninglabs/hosted-channels/lnwire"
)

// forwardKey packs a channel.HtlcIdentifier into its fixed-width bucket
// key: an 8-byte short channel id followed by an 8-byte htlc id.
func forwardKey(id channel.HtlcIdentifier) [16]byte {
	var key [16]byte
	binary.BigEndian.PutUint64(key[:8], id.ShortChannelID.ToUint64())
	binary.BigEndian.PutUint64(key[8:], id.HtlcID)
	return key
}

func forwardKeyToID(key []byte) channel.HtlcIdentifier {
	return channel.HtlcIdentifier{
		ShortChannelID: lnwire.NewShortChanIDFromUint64(binary.BigEndian.Uint64(key[:8])),
		HtlcID:         binary.BigEndian.Uint64(key[8:]),
	}
}

// PutForward persists the incoming->outgoing HtlcIdentifier mapping.
// ChannelMaster calls this before committing the outgoing UpdateAddHtlc,
// so a crash between the two can never lose the linkage.
func (d *DB) PutForward(incoming, outgoing channel.HtlcIdentifier) error {
	inKey := forwardKey(incoming)
	outKey := forwardKey(outgoing)
	return d.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(forwardsBucket).Put(inKey[:], outKey[:])
	})
}

// FetchForward returns the outgoing leg recorded for incoming, if any.
func (d *DB) FetchForward(incoming channel.HtlcIdentifier) (outgoing channel.HtlcIdentifier, ok bool, err error) {
	inKey := forwardKey(incoming)
	err = d.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(forwardsBucket).Get(inKey[:])
		if raw == nil {
			return nil
		}
		ok = true
		outgoing = forwardKeyToID(raw)
		return nil
	})
	return outgoing, ok, err
}

// DeleteForward removes the mapping for incoming once both legs of the
// forward have resolved.
func (d *DB) DeleteForward(incoming channel.HtlcIdentifier) error {
	inKey := forwardKey(incoming)
	return d.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(forwardsBucket).Delete(inKey[:])
	})
}

// AllForwards returns the full incoming->outgoing forwarding table, used
// by ChannelMaster on startup to replay in-flight HTLCs.
func (d *DB) AllForwards() (map[channel.HtlcIdentifier]channel.HtlcIdentifier, error) {
	out := make(map[channel.HtlcIdentifier]channel.HtlcIdentifier)
	err := d.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(forwardsBucket).ForEach(func(k, v []byte) error {
			out[forwardKeyToID(k)] = forwardKeyToID(v)
			return nil
		})
	})
	return out, err
}
