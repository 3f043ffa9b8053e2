//go:build !withcv
// +build !withcv

package bridge

// noOpSceneCutDetector replaces cvSceneCutDetector in builds without
// OpenCV available.
type noOpSceneCutDetector struct{}

func newSceneCutDetector() sceneCutDetector { return noOpSceneCutDetector{} }

func (noOpSceneCutDetector) Detect(pixels []byte, width, height, stride int) bool { return false }

func (noOpSceneCutDetector) Close() error { return nil }
