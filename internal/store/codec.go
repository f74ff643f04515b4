package store

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

var ErrCorrupt = errors.New("store: corrupt value")

// chunkSamples bounds the float64 samples held by one value. Badger refuses
// values of 1 MiB and more, so grids are split across consecutive keys.
const chunkSamples = 32 << 10

// A grid stored under prefix p is a shape header at p+"h" (uint32 rows,
// uint32 columns, little endian) and chunks at p+"c"+big-endian uint32 j,
// each holding up to chunkSamples little-endian float64 values.
func headerKey(prefix []byte) []byte {
	return append(append([]byte{}, prefix...), 'h')
}

func chunkKey(prefix []byte, j int) []byte {
	return indexKey(append(append([]byte{}, prefix...), 'c'), j)
}

func isHeaderKey(prefix, key []byte) bool {
	return len(key) == len(prefix)+5 && key[len(key)-1] == 'h'
}

func chunkCount(n int) int {
	return (n + chunkSamples - 1) / chunkSamples
}

func encodeShape(rows, cols int) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint32(buf[0:], uint32(rows))
	binary.LittleEndian.PutUint32(buf[4:], uint32(cols))
	return buf
}

func decodeShape(buf []byte) (rows, cols int, err error) {
	if len(buf) != 8 {
		return 0, 0, fmt.Errorf("%w: %d byte header", ErrCorrupt, len(buf))
	}
	return int(binary.LittleEndian.Uint32(buf[0:])), int(binary.LittleEndian.Uint32(buf[4:])), nil
}

func encodeSamples(data []float64) []byte {
	buf := make([]byte, 8*len(data))
	for i, v := range data {
		binary.LittleEndian.PutUint64(buf[8*i:], math.Float64bits(v))
	}
	return buf
}

// decodeSamples fills dst from buf, which must hold exactly len(dst) samples.
func decodeSamples(buf []byte, dst []float64) error {
	if len(buf) != 8*len(dst) {
		return fmt.Errorf("%w: %d bytes for %d samples", ErrCorrupt, len(buf), len(dst))
	}
	for i := range dst {
		dst[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[8*i:]))
	}
	return nil
}

// Keys sort by index: the prefix is followed by a big-endian uint32.
func indexKey(prefix []byte, i int) []byte {
	k := make([]byte, len(prefix)+4)
	copy(k, prefix)
	binary.BigEndian.PutUint32(k[len(prefix):], uint32(i))
	return k
}

func keyIndex(prefix, key []byte) int {
	return int(binary.BigEndian.Uint32(key[len(prefix):]))
}
