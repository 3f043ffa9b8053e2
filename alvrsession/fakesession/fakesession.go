// Package fakesession provides an in-process Session double for tests
// of the bridge package, standing in for the ALVR server runtime's
// client discovery and video channels.
package fakesession

import (
	"sync"

	"github.com/cbusillo/ALVR/alvrsession"
)

// VideoNAL records one SendVideoNAL call, for test assertions.
type VideoNAL struct {
	TimestampNs uint64
	Data        []byte
	IsKeyframe  bool
}

// Session is a fake alvrsession.Session. Tests drive its behavior by
// pushing events onto its channel directly (via Push) and by inspecting
// ConfigNALs/SentNALs after exercising the unit under test.
type Session struct {
	mu      sync.Mutex
	events  chan alvrsession.Event
	closed  bool
	started bool

	ConfigNALs  []byte
	ConfigCodec alvrsession.CodecType
	ConfigSetN  int
	SentNALs    []VideoNAL
}

// New returns a fake session with a buffered event channel large enough
// for tests to queue several events before the bridge drains them.
func New() *Session {
	return &Session{events: make(chan alvrsession.Event, 16)}
}

func (s *Session) StartConnection() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = true
	return nil
}

// Started reports whether StartConnection has been called.
func (s *Session) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

func (s *Session) Events() <-chan alvrsession.Event { return s.events }

// Push enqueues an event for the bridge to observe on its next
// non-blocking drain. Safe to call concurrently with the bridge loop.
func (s *Session) Push(e alvrsession.Event) {
	s.events <- e
}

func (s *Session) SetVideoConfigNALs(nals []byte, codec alvrsession.CodecType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ConfigNALs = append([]byte{}, nals...)
	s.ConfigCodec = codec
	s.ConfigSetN++
	return nil
}

func (s *Session) SendVideoNAL(timestampNs uint64, nal []byte, isKeyframe bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SentNALs = append(s.SentNALs, VideoNAL{
		TimestampNs: timestampNs,
		Data:        append([]byte{}, nal...),
		IsKeyframe:  isKeyframe,
	})
	return nil
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.events)
	return nil
}
