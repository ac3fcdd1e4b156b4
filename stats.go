package goraop

// ConnStats are statistics of a RTSP connection.
type ConnStats struct {
	BytesReceived uint64
	BytesSent     uint64
}

// SessionStats are statistics of a session.
type SessionStats struct {
	// audio packets received on the data channel.
	PacketsReceived uint64

	// audio packets received through retransmissions.
	PacketsRetransmitted uint64

	// packets replaced by silence.
	PacketsLost uint64

	// resend requests sent to the sender.
	ResendRequests uint64
}
