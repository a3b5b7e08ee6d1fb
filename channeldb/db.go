// Package channeldb persists the hosted-channel core's three logical
// tables: per-peer ChannelData, the paymentHash->preimage cache, and the
// HtlcIdentifier forwarding map, all backed by go.etcd.io/bbolt.
package channeldb

import (
	"fmt"
	"os"
	"path/filepath"

	"go.etcd.io/bbolt"
)

const (
	dbName           = "hosted_channels.db"
	dbFilePermission = 0600
)

var (
	channelsBucket  = []byte("hc-channels")
	preimagesBucket = []byte("hc-preimages")
	forwardsBucket  = []byte("hc-forwards")
	metaBucket      = []byte("hc-meta")

	dbVersionKey = []byte("version")
)

// migration mutates a prior version of the database into the next one.
type migration func(tx *bbolt.Tx) error

type version struct {
	number    uint32
	migration migration
}

// dbVersions lists every migration needed to bring an older database up to
// the latest schema, in ascending order. There is exactly one schema so
// far, so the list has a single entry with no migration to run.
var dbVersions = []version{
	{number: 0, migration: nil},
}

// DB is the hosted-channels plugin's datastore. It is owned exclusively
// by ChannelMaster: every write is serialized through Update,
// which runs its caller-supplied transformation and commits atomically, or
// not at all.
type DB struct {
	*bbolt.DB
	dbPath string
}

// Open opens (creating if necessary) the hosted-channels database rooted
// at dbPath.
func Open(dbPath string) (*DB, error) {
	if err := os.MkdirAll(dbPath, 0700); err != nil {
		return nil, err
	}

	path := filepath.Join(dbPath, dbName)
	bdb, err := bbolt.Open(path, dbFilePermission, nil)
	if err != nil {
		return nil, err
	}

	chanDB := &DB{DB: bdb, dbPath: dbPath}

	if err := chanDB.initBuckets(); err != nil {
		bdb.Close()
		return nil, err
	}
	if err := chanDB.syncVersions(); err != nil {
		bdb.Close()
		return nil, err
	}

	return chanDB, nil
}

func (d *DB) initBuckets() error {
	return d.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{channelsBucket, preimagesBucket, forwardsBucket, metaBucket} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
}

func (d *DB) syncVersions() error {
	return d.Update(func(tx *bbolt.Tx) error {
		meta := tx.Bucket(metaBucket)

		current := uint32(0)
		if raw := meta.Get(dbVersionKey); raw != nil {
			current = beUint32(raw)
		}

		latest := dbVersions[len(dbVersions)-1].number
		if current > latest {
			return fmt.Errorf("channeldb: on-disk version %d is newer "+
				"than the %d this binary knows about", current, latest)
		}

		for _, v := range dbVersions {
			if v.number <= current || v.migration == nil {
				continue
			}
			if err := v.migration(tx); err != nil {
				return err
			}
		}

		return meta.Put(dbVersionKey, beUint32Bytes(latest))
	})
}

// Wipe deletes every bucket this package owns, atomically. Used only by
// tests and by an explicit operator reset, never by ordinary operation.
func (d *DB) Wipe() error {
	return d.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{channelsBucket, preimagesBucket, forwardsBucket, metaBucket} {
			if err := tx.DeleteBucket(b); err != nil && err != bbolt.ErrBucketNotFound {
				return err
			}
		}
		return nil
	})
}

func beUint32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func beUint32Bytes(n uint32) []byte {
	return []byte{byte(n >> 24), byte(n >> 16), byte(n >> 8), byte(n)}
}
