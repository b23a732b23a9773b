package world

import (
	"context"
	"encoding/binary"

	"github.com/pkg/errors"
	"go.etcd.io/bbolt"
)

// KeyType is one of the content-addressed world store's key-type
// bytes, per spec.md §6's persisted-state key format.
type KeyType byte

const (
	KeyTypeChunkVersion KeyType = 0x2C
	KeyTypeBiomes3D     KeyType = 0x2B
	KeyTypeSubChunk     KeyType = 0x2F
)

// WorldReader is the narrow, read-only collaborator this project
// consumes for persisted chunk data; on-disk world format beyond this
// read path is a stated Non-goal.
type WorldReader interface {
	// Read looks up the opaque payload for one key-type at a chunk
	// position, optionally within one subchunk. It returns
	// (nil, false, nil) when the key is absent.
	Read(chunkX, chunkZ int32, dimension byte, kt KeyType, subChunkIndex *byte) ([]byte, bool, error)
	Close() error
}

// boltWorldReader is a WorldReader backed by a read-only bbolt
// database, the storage layer SPEC_FULL.md's DOMAIN STACK table wires
// go.etcd.io/bbolt to. One bucket ("world") holds every key, keyed by
// the byte layout below.
type boltWorldReader struct {
	db *bbolt.DB
}

var worldBucket = []byte("world")

// OpenWorldReader opens path read-only and returns a WorldReader over
// its single "world" bucket. The database is expected to already
// exist; this project never writes world data.
func OpenWorldReader(path string) (WorldReader, error) {
	db, err := bbolt.Open(path, 0o444, &bbolt.Options{ReadOnly: true})
	if err != nil {
		return nil, errors.Wrap(err, "world: open bolt database")
	}
	return &boltWorldReader{db: db}, nil
}

// encodeKey lays out (chunk x, chunk z, dimension, key-type,
// optional subchunk index) as big-endian ints followed by the
// dimension byte, the key-type byte and, when given, the subchunk
// index byte, matching spec.md §6.
func encodeKey(chunkX, chunkZ int32, dimension byte, kt KeyType, subChunkIndex *byte) []byte {
	key := make([]byte, 0, 4+4+1+1+1)
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(chunkX))
	key = append(key, buf[:]...)
	binary.BigEndian.PutUint32(buf[:], uint32(chunkZ))
	key = append(key, buf[:]...)
	key = append(key, dimension, byte(kt))
	if subChunkIndex != nil {
		key = append(key, *subChunkIndex)
	}
	return key
}

func (r *boltWorldReader) Read(chunkX, chunkZ int32, dimension byte, kt KeyType, subChunkIndex *byte) ([]byte, bool, error) {
	key := encodeKey(chunkX, chunkZ, dimension, kt, subChunkIndex)
	var value []byte
	err := r.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(worldBucket)
		if b == nil {
			return nil
		}
		if v := b.Get(key); v != nil {
			value = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, false, errors.Wrap(err, "world: read key")
	}
	return value, value != nil, nil
}

func (r *boltWorldReader) Close() error {
	return r.db.Close()
}

// SubChunkLoader adapts a WorldReader into a Loader that reads the
// KeyTypeSubChunk payload at each position's (x, z, vertical index),
// the producer side a RegionStream needs per SPEC_FULL.md's
// BoxRegion note.
func SubChunkLoader(reader WorldReader, dimension byte) Loader {
	return func(_ context.Context, pos Position) (SubChunk, error) {
		idx := byte(pos.Y)
		data, found, err := reader.Read(pos.X, pos.Z, dimension, KeyTypeSubChunk, &idx)
		if err != nil {
			return SubChunk{}, err
		}
		if !found {
			return SubChunk{}, errors.Errorf("world: no subchunk at %+v", pos)
		}
		return SubChunk{Data: data}, nil
	}
}
