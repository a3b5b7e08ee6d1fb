package channeldb

import "go.etcd.io/bbolt"

// PutPreimage records preimage against paymentHash, persisted ahead of
// the commit that reveals it: a fulfill is written to the cache before the
// reconciliation that retires the HTLC commits, so a crash in between
// still lets the upstream leg be claimed on restart.
func (d *DB) PutPreimage(paymentHash, preimage [32]byte) error {
	return d.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(preimagesBucket).Put(paymentHash[:], preimage[:])
	})
}

// FetchPreimage looks up the preimage for paymentHash. ok is false if no
// preimage has been recorded for that hash.
func (d *DB) FetchPreimage(paymentHash [32]byte) (preimage [32]byte, ok bool, err error) {
	err = d.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(preimagesBucket).Get(paymentHash[:])
		if raw == nil {
			return nil
		}
		ok = true
		copy(preimage[:], raw)
		return nil
	})
	return preimage, ok, err
}

// DeletePreimage removes paymentHash's cached preimage. A preimage is
// kept only until the hash no longer appears in any channel's in-flight
// HTLC set; callers are responsible for knowing when that holds.
func (d *DB) DeletePreimage(paymentHash [32]byte) error {
	return d.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(preimagesBucket).Delete(paymentHash[:])
	})
}

// AllPreimages returns the full paymentHash->preimage cache as a single
// map.
func (d *DB) AllPreimages() (map[[32]byte][32]byte, error) {
	out := make(map[[32]byte][32]byte)
	err := d.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(preimagesBucket).ForEach(func(k, v []byte) error {
			var hash, preimage [32]byte
			copy(hash[:], k)
			copy(preimage[:], v)
			out[hash] = preimage
			return nil
		})
	})
	return out, err
}
