// Package ntp contains NTP timestamp conversions and the clock
// synchronization used by RAOP timing packets.
package ntp

import (
	"time"
)

// seconds between 1900-01-01 and 1970-01-01.
const epochOffset = 2208988800

// Encode converts a time into a 64-bit NTP timestamp (32.32 fixed point).
func Encode(t time.Time) uint64 {
	secs := uint64(t.Unix() + epochOffset)
	frac := (uint64(t.Nanosecond())<<32 + 500000000) / 1000000000
	return secs<<32 + frac
}

// Decode converts a 64-bit NTP timestamp into a time.
func Decode(v uint64) time.Time {
	secs := int64(v>>32) - epochOffset
	nanos := ((v & 0xFFFFFFFF) * 1000000000) >> 32
	return time.Unix(secs, int64(nanos))
}

// Now returns the current time as a NTP timestamp.
func Now() uint64 {
	return Encode(time.Now())
}
