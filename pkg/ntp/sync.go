package ntp

import (
	"sort"
)

const (
	// SampleCount is the number of samples kept by Sync.
	SampleCount = 8

	// PhiPPM is the frequency tolerance of the clocks, in parts per million.
	PhiPPM = 15

	rRho = (1 << 32) / 1000
	sRho = (1 << 32) / 1000

	// MaxDistance is the maximum dispersion of a synchronized clock (1.5s).
	MaxDistance = (1500 << 32) / 1000

	// MaxDispersion is the dispersion of an empty sample (16s).
	MaxDispersion = 16 << 32
)

type sample struct {
	offset     int64
	delay      int64
	dispersion uint64
	clock      uint64
}

// Sync estimates the offset between the local clock and a remote clock
// from a rolling window of request/response timestamps.
// All timestamps are in NTP format.
type Sync struct {
	samples [SampleCount]sample
	index   int
}

// Init resets all samples.
func (s *Sync) Init(clock uint64) {
	for i := range s.samples {
		s.samples[i] = sample{
			offset:     0,
			delay:      MaxDispersion,
			dispersion: MaxDispersion,
			clock:      clock,
		}
	}
	s.index = 0
}

func elapsedDispersion(from uint64, to uint64) uint64 {
	if to <= from {
		return 0
	}
	return (to - from) * PhiPPM / 1000000
}

// Add adds a sample computed from the origin, receive and transmit timestamps
// of a timing response, and the local time at which it was received.
func (s *Sync) Add(origin uint64, receive uint64, transmit uint64, current uint64) {
	s.index = (s.index + 1) % SampleCount

	s.samples[s.index] = sample{
		offset:     (int64(receive-origin) + int64(transmit-current)) / 2,
		delay:      int64(current-origin) - int64(transmit-receive),
		dispersion: rRho + sRho + elapsedDispersion(origin, current),
		clock:      current,
	}
}

// Offset returns the offset of the sample with the lowest delay, and
// the dispersion of the whole window at the given local time.
// Lower-delay samples weigh more in the dispersion.
func (s *Sync) Offset(clock uint64) (int64, uint64) {
	sorted := s.samples
	sort.SliceStable(sorted[:], func(i, j int) bool {
		return sorted[i].delay < sorted[j].delay
	})

	var dispersion uint64
	for i, sa := range sorted {
		dispersion += (sa.dispersion + elapsedDispersion(sa.clock, clock)) >> (i + 1)
	}

	return sorted[0].offset, dispersion
}

// Synced returns whether a dispersion is low enough to trust the offset.
func Synced(dispersion uint64) bool {
	return dispersion <= MaxDistance
}

// RemoteToLocal converts a remote timestamp into a local timestamp
// by using the given offset.
func RemoteToLocal(remote uint64, offset int64) uint64 {
	return uint64(int64(remote) - offset)
}
