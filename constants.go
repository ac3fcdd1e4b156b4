package goraop

import (
	"time"
)

const (
	serverHeader    = "AirTunes/130.14"
	serverAuthRealm = "airplay"
	serverSessionID = "DEADBEEF"
	serverJackState = "connected; type=analog"

	// latency reported in RECORD responses when the sender announces none, in samples.
	serverAudioLatency = 11025

	// same size as GStreamer's rtspsrc
	udpKernelReadBufferSize = 0x80000

	// RAOP packets can exceed the UDP MTU when they are fragmented.
	udpReadBufferSize = 0x10000

	timingRequestPeriod = 3 * time.Second

	volumeMin = -144
	volumeMax = 0
)
