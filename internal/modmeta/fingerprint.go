// Package modmeta implements the mod metadata cache of spec.md §4.7:
// fingerprinting every mods/ file, parsing its embedded metadata, and
// reconciling it against the CurseForge/Modrinth platforms in the
// background.
package modmeta

import (
	"crypto/md5"
	"crypto/sha1"
	"encoding/hex"
)

// murmur2Seed is CurseForge's fixed seed for its fingerprint convention.
const murmur2Seed uint32 = 1

// Murmur2 computes the 32-bit MurmurHash2 of data using CurseForge's seed.
// No package in the retrieved corpus implements MurmurHash2 (it is a
// one-off, self-contained algorithm with no external state), so it is
// hand-written here rather than taken as a dependency, the way the
// teacher hand-writes small pure algorithms (e.g. its semver comparator)
// instead of importing a library for them.
func Murmur2(data []byte) uint32 {
	const m = 0x5bd1e995
	const r = 24

	h := murmur2Seed ^ uint32(len(data))

	length := len(data)
	i := 0
	for length >= 4 {
		k := uint32(data[i]) | uint32(data[i+1])<<8 | uint32(data[i+2])<<16 | uint32(data[i+3])<<24
		k *= m
		k ^= k >> r
		k *= m

		h *= m
		h ^= k

		i += 4
		length -= 4
	}

	switch length {
	case 3:
		h ^= uint32(data[i+2]) << 16
		fallthrough
	case 2:
		h ^= uint32(data[i+1]) << 8
		fallthrough
	case 1:
		h ^= uint32(data[i])
		h *= m
	}

	h ^= h >> 13
	h *= m
	h ^= h >> 15

	return h
}

// stripWhitespace removes ASCII \t \n \r and space bytes, per the
// CurseForge fingerprint convention named in spec.md §4.7.
func stripWhitespace(data []byte) []byte {
	out := make([]byte, 0, len(data))
	for _, b := range data {
		switch b {
		case '\t', '\n', '\r', ' ':
			continue
		default:
			out = append(out, b)
		}
	}
	return out
}

// Fingerprint holds the three content-derived keys spec.md §4.7 stores
// per mod file: a stable sha1 id, an MD5 digest, and the CurseForge-style
// murmur2 fingerprint computed over whitespace-stripped bytes.
type Fingerprint struct {
	SHA1    string
	MD5     [16]byte
	Murmur2 uint32
}

// ComputeFingerprint computes all three keys for the given file bytes.
func ComputeFingerprint(data []byte) Fingerprint {
	return Fingerprint{
		SHA1:    sha1Hex(data),
		MD5:     md5.Sum(data),
		Murmur2: Murmur2(stripWhitespace(data)),
	}
}

func sha1Hex(data []byte) string {
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:])
}
