// Package entropy supplies seeds for generation sessions that do not pin one.
package entropy

import (
	"crypto/rand"
	"encoding/binary"
	"log/slog"
	"time"
)

// Seed returns a random non-zero int64 suitable for seeding math/rand or a noise lattice.
// Falls back to the wall clock if crypto/rand is unavailable.
func Seed() int64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		slog.Warn("crypto/rand unavailable, seeding from clock", "error", err)
		return nonZero(time.Now().UnixNano())
	}
	// Drop the sign bit so seeds print as positive numbers in logs and configs.
	n := int64(binary.LittleEndian.Uint64(buf[:]) >> 1)
	return nonZero(n)
}

// SeedOr returns seed unchanged when it is pinned (non-zero), otherwise a fresh Seed().
func SeedOr(seed int64) int64 {
	if seed != 0 {
		return seed
	}
	return Seed()
}

// Zero means "unpinned" throughout the config, so never hand it out.
func nonZero(n int64) int64 {
	if n == 0 {
		return 1
	}
	return n
}
