// Package fakecodec provides a deterministic stand-in for a hardware
// HEVC encoder, implementing hevc.Codec. It is used by this module's own
// tests and is suitable for integration tests of the bridge package,
// which otherwise has no way to exercise encode/drain behavior without
// real VideoToolbox/NVENC/VAAPI hardware.
package fakecodec

import (
	"encoding/binary"

	"github.com/cbusillo/ALVR/hevc"
)

// Codec is a fake hevc.Codec. It emits exactly one output per call to
// Encode, available on the very next call to Next (no reordering delay).
// Every keyFrameEvery'th submitted frame (or any frame for which
// forceIDR was set) is a keyframe carrying a fixed parameter-set triple.
type Codec struct {
	cfg           hevc.Config
	keyFrameEvery int

	submitted int
	pending   []hevc.Frame
	finished  bool
}

// New returns a fake codec that marks every keyFrameEvery'th frame (1
// for "every frame") as a keyframe in the absence of a forced IDR.
func New(keyFrameEvery int) *Codec {
	if keyFrameEvery <= 0 {
		keyFrameEvery = 1
	}
	return &Codec{keyFrameEvery: keyFrameEvery}
}

func (c *Codec) Configure(cfg hevc.Config) error {
	c.cfg = cfg
	return nil
}

func (c *Codec) Encode(y, u, v []byte, forceIDR bool) error {
	isKey := forceIDR || c.submitted%c.keyFrameEvery == 0
	c.submitted++

	f := hevc.Frame{Data: lengthPrefixed(fakeVCLPayload(isKey))}
	if isKey {
		f.Keyframe = true
		f.VPSList = [][]byte{{0x40, 0x01, 0x0c}}
		f.SPSList = [][]byte{{0x42, 0x01, 0x01}}
		f.PPSList = [][]byte{{0x44, 0x01}}
	}
	c.pending = append(c.pending, f)
	return nil
}

func (c *Codec) Next() (hevc.Frame, bool, error) {
	if len(c.pending) == 0 {
		return hevc.Frame{}, false, nil
	}
	f := c.pending[0]
	c.pending = c.pending[1:]
	return f, true, nil
}

func (c *Codec) Finish() error {
	c.finished = true
	return nil
}

// Finished reports whether Finish has been called, for tests that assert
// flush behavior.
func (c *Codec) Finished() bool { return c.finished }

func fakeVCLPayload(isKey bool) []byte {
	if isKey {
		return []byte{0x26, 0x01, 0xAA, 0xBB}
	}
	return []byte{0x02, 0x01, 0xCC}
}

func lengthPrefixed(nal []byte) []byte {
	out := make([]byte, 4+len(nal))
	binary.BigEndian.PutUint32(out, uint32(len(nal)))
	copy(out[4:], nal)
	return out
}
