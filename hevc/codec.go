// Package hevc wraps a hardware HEVC encoder with the conversions and
// bitstream reformatting the bridge needs: BGRA source pixels in, Annex-B
// HEVC NAL units out, with parameter sets surfaced separately on the
// first keyframe.
//
// The hardware codec itself is an external collaborator, consumed
// through the small Codec interface below rather than a concrete type,
// so any hardware backend (VideoToolbox, NVENC, VAAPI) can be plugged
// in without touching the conversion or reformatting logic.
package hevc

import (
	"fmt"
	"time"
)

// Profile identifies the encoder profile. Main is the only profile this
// package configures; the type exists so a future profile addition does
// not change Config's shape.
type Profile int

const (
	ProfileMain Profile = iota
)

// Config carries the construction-time parameters for a Codec.
type Config struct {
	Width         int
	Height        int
	BitrateBPS    int
	FPS           int
	Profile       Profile
	KeyFrameEvery time.Duration
	MaxFrameDelay int
}

// Validate reports whether c describes a configuration the hardware
// encoder can actually be configured with, rejecting out-of-range
// dimensions or rates before they reach the codec.
func (c Config) Validate() error {
	switch {
	case c.Width <= 0 || c.Width > 4096:
		return fmt.Errorf("hevc: width out of range: %d", c.Width)
	case c.Height <= 0 || c.Height > 2048:
		return fmt.Errorf("hevc: height out of range: %d", c.Height)
	case c.BitrateBPS <= 0:
		return fmt.Errorf("hevc: bitrate must be positive, got %d", c.BitrateBPS)
	case c.FPS <= 0:
		return fmt.Errorf("hevc: fps must be positive, got %d", c.FPS)
	}
	return nil
}

// Frame is one encoded access unit as handed back by the underlying
// hardware codec, before reformatting.
type Frame struct {
	// Data is the bitstream payload in length-prefixed (AVCC-style)
	// form: a concatenation of [u32 big-endian length][NAL bytes].
	Data []byte

	Keyframe bool

	// VPSList, SPSList, PPSList hold the raw parameter set NALs present
	// on keyframes (empty on non-keyframes).
	VPSList [][]byte
	SPSList [][]byte
	PPSList [][]byte
}

// Codec is the hardware HEVC encoder contract this package drives. A
// real implementation wraps the platform encoder (e.g. VideoToolbox,
// NVENC, VAAPI); hevc/fakecodec provides a deterministic stand-in used by
// this package's own tests and suitable for integration tests elsewhere.
type Codec interface {
	// Configure applies c to the encoder. Called once at construction.
	Configure(c Config) error

	// Encode submits one planar YUV420 frame (Y, U, V, already sized per
	// Config) for encoding, optionally requesting an IDR.
	Encode(y, u, v []byte, forceIDR bool) error

	// Next returns the next available encoded frame without blocking, or
	// ok=false if the encoder has not produced output yet.
	Next() (Frame, bool, error)

	// Finish signals end-of-stream; subsequent Next calls drain any
	// frames still buffered inside the encoder.
	Finish() error
}
