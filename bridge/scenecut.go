package bridge

// sceneCutDetector requests an IDR when consecutive frames differ
// sharply enough to suggest a scene cut the keyframe interval alone
// would not catch quickly. This is additive to the three force-IDR
// triggers (client connect, explicit request, producer IDR flag): it
// only ever sets the same latch, never clears it or substitutes for the
// other triggers.
type sceneCutDetector interface {
	// Detect reports whether pixels (BGRA, width x height, stride bytes
	// per row) differs enough from the previously observed frame to
	// request an IDR. The first call always returns false (no prior
	// frame to compare against).
	Detect(pixels []byte, width, height, stride int) bool

	// Close releases any resources held by the detector.
	Close() error
}
