// Package alvrsession defines the contract this module consumes from the
// ALVR server runtime's streaming session: client discovery, the video
// config/data channels, and a small event stream. The runtime itself is
// out of scope; this package only describes the small client-interface
// shape bridge talks to, rather than reimplementing client discovery or
// RTP-style framing itself.
package alvrsession

// CodecType identifies the codec carried by a SetVideoConfigNALs call.
// HEVC is the only value this module ever produces (see spec's
// Non-goals), but the session contract itself is not HEVC-specific.
type CodecType int

const (
	CodecHEVC CodecType = iota
)

// Event is a notification delivered on a Session's event channel.
type Event int

const (
	EventClientConnected Event = iota
	EventClientDisconnected
	EventRequestIDR
)

func (e Event) String() string {
	switch e {
	case EventClientConnected:
		return "ClientConnected"
	case EventClientDisconnected:
		return "ClientDisconnected"
	case EventRequestIDR:
		return "RequestIDR"
	default:
		return "Unknown"
	}
}

// Session is the streaming-session contract the bridge drives. A real
// implementation wraps the ALVR server runtime's client-discovery and
// RTP-style framing; alvrsession/fakesession provides an in-process
// double for tests.
type Session interface {
	// StartConnection begins client discovery. Non-blocking: connection
	// state changes are reported through Events.
	StartConnection() error

	// Events returns the channel of client lifecycle and IDR-request
	// notifications. The channel is closed by Close.
	Events() <-chan Event

	// SetVideoConfigNALs delivers start-code-framed parameter set NALs.
	// Called exactly once, right after the first keyframe's parameter
	// sets become available.
	SetVideoConfigNALs(nals []byte, codec CodecType) error

	// SendVideoNAL forwards one encoded access unit. Called only while a
	// client is connected.
	SendVideoNAL(timestampNs uint64, nal []byte, isKeyframe bool) error

	// Close releases any resources held by the session and closes the
	// Events channel.
	Close() error
}
