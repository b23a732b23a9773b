// Package world implements the blob cache and region streaming
// pipeline that feeds subchunk data to a connected session: a
// content-addressed cache with reference counting (blobcache.go), a
// packed region index (this file), a bounded async subchunk stream
// (stream.go), and the read-only world storage it is backed by
// (reader.go).
package world

import "github.com/pkg/errors"

// RegionIndex is a packed 64-bit identifier for one subchunk: 6 bits
// vertical index, 29 bits x, 29 bits z, per spec.md §3's Region Index
// and adopted from original_source's crates/core/src/level/stream.rs.
type RegionIndex uint64

const (
	xzBits uint64 = 29
	xzMask uint64 = 1<<xzBits - 1
	yBits  uint64 = 6
	yMask  uint64 = 1<<yBits - 1
)

// ErrCoordinateOutOfRange is returned when a coordinate does not fit
// the packed index's bit budget.
var ErrCoordinateOutOfRange = errors.New("world: coordinate out of range for region index")

// Position is a signed 3D block-region coordinate: x and z are full
// world coordinates (subchunk-granularity), y is the vertical subchunk
// index within the world's height range.
type Position struct {
	X, Y, Z int32
}

// NewRegionIndex packs pos into a RegionIndex. y must fit in 6
// unsigned bits (the caller offsets negative build heights before
// calling, as the original implementation does); x and z are packed
// as 29-bit two's complement so negative world coordinates round-trip
// losslessly through ToPosition.
func NewRegionIndex(pos Position) (RegionIndex, error) {
	if pos.Y < 0 || uint64(pos.Y) > yMask {
		return 0, errors.Wrapf(ErrCoordinateOutOfRange, "y=%d", pos.Y)
	}
	if !fitsSigned(int64(pos.X), xzBits) {
		return 0, errors.Wrapf(ErrCoordinateOutOfRange, "x=%d", pos.X)
	}
	if !fitsSigned(int64(pos.Z), xzBits) {
		return 0, errors.Wrapf(ErrCoordinateOutOfRange, "z=%d", pos.Z)
	}

	idx := uint64(pos.Y) << (xzBits * 2)
	idx |= (uint64(pos.X) & xzMask) << xzBits
	idx |= uint64(pos.Z) & xzMask
	return RegionIndex(idx), nil
}

// fitsSigned reports whether v can be represented in bits two's
// complement bits.
func fitsSigned(v int64, bits uint64) bool {
	min := -(int64(1) << (bits - 1))
	max := int64(1)<<(bits-1) - 1
	return v >= min && v <= max
}

// Position unpacks idx back into a signed coordinate, reversing
// NewRegionIndex.
func (idx RegionIndex) Position() Position {
	v := uint64(idx)
	y := int32(v >> (xzBits * 2))
	x := signExtend(v>>xzBits&xzMask, xzBits)
	z := signExtend(v&xzMask, xzBits)
	return Position{X: x, Y: y, Z: z}
}

// signExtend interprets the low `bits` bits of v as a two's-complement
// signed integer.
func signExtend(v uint64, bits uint64) int32 {
	signBit := uint64(1) << (bits - 1)
	if v&signBit != 0 {
		return int32(v - (1 << bits))
	}
	return int32(v)
}

// BoxRegion bulk-iterates every RegionIndex within an inclusive
// rectangular box of positions, supplemented from original_source's
// BoxRegion (crates/core/src/level/box.rs) as the producer side of the
// Region Stream: something has to enumerate the subchunks a stream
// should load, and spec.md's §4.7 leaves that unconstrained.
type BoxRegion struct {
	Min, Max Position
}

// Positions returns every position in the box in y-major, x, then z
// order, matching the original's iteration order so streamed
// responses arrive bottom-up.
func (b BoxRegion) Positions() []Position {
	var out []Position
	for y := b.Min.Y; y <= b.Max.Y; y++ {
		for x := b.Min.X; x <= b.Max.X; x++ {
			for z := b.Min.Z; z <= b.Max.Z; z++ {
				out = append(out, Position{X: x, Y: y, Z: z})
			}
		}
	}
	return out
}

// Len reports how many positions the box contains without allocating.
func (b BoxRegion) Len() int {
	dy := int(b.Max.Y-b.Min.Y) + 1
	dx := int(b.Max.X-b.Min.X) + 1
	dz := int(b.Max.Z-b.Min.Z) + 1
	if dy <= 0 || dx <= 0 || dz <= 0 {
		return 0
	}
	return dy * dx * dz
}
