package cuckoo

import "github.com/cespare/xxhash/v2"

// candidateHashes derives d independent-enough slot indices for key from
// two seeded xxhash sums combined by enhanced double hashing:
//
//	h_j(key) = h1(key) + j*h2(key) + j*j  (mod tableSize)
//
// This needs only two hash computations regardless of d, and the j*j term
// avoids the clustering plain double hashing suffers from when h2 is a
// multiple of a table-size divisor. tableSize must be a power of two; mask
// is tableSize-1.
func candidateHashes(key string, d int, mask uint64, dst []uint64) []uint64 {
	h1 := seededSum64(key, seed1)
	h2 := seededSum64(key, seed2)
	// A zero h2 would leave only the j*j term to separate the candidates;
	// nudge it odd so the walk spreads over the table.
	if h2 == 0 {
		h2 = 1
	}
	for j := 0; j < d; j++ {
		jj := uint64(j)
		dst = append(dst, (h1+jj*h2+jj*jj)&mask)
	}
	return dst
}

const (
	seed1 uint64 = 0x9E3779B97F4A7C15
	seed2 uint64 = 0xC2B2AE3D27D4EB4F
)

// seededSum64 hashes an 8-byte seed prefix followed by key, so distinct
// seeds yield practically independent digests from a single hash family.
func seededSum64(key string, seed uint64) uint64 {
	var buf [8]byte
	putUint64(buf[:], seed)
	d := xxhash.New()
	d.Write(buf[:])
	d.WriteString(key)
	return d.Sum64()
}

func putUint64(b []byte, v uint64) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
	b[4] = byte(v >> 32)
	b[5] = byte(v >> 40)
	b[6] = byte(v >> 48)
	b[7] = byte(v >> 56)
}
