//go:build withcv
// +build withcv

package bridge

import (
	"gocv.io/x/gocv"
)

const defaultSceneCutThreshold = 40.0

// cvSceneCutDetector flags scene cuts via absolute frame difference,
// converted to gray and reduced to a mean. A mean above the threshold
// means the scene changed enough that waiting for the next scheduled
// keyframe would be a visible hitch.
type cvSceneCutDetector struct {
	thresh float64
	prev   gocv.Mat
	width  int
	height int
}

func newSceneCutDetector() sceneCutDetector {
	return &cvSceneCutDetector{thresh: defaultSceneCutThreshold, prev: gocv.NewMat()}
}

func (d *cvSceneCutDetector) Detect(pixels []byte, width, height, stride int) bool {
	img, err := gocv.NewMatFromBytes(height, stride/4, gocv.MatTypeCV8UC4, pixels)
	if err != nil {
		return false
	}
	defer img.Close()

	if d.prev.Empty() || d.width != width || d.height != height {
		d.prev.Close()
		d.prev = img.Clone()
		d.width, d.height = width, height
		return false
	}

	delta := gocv.NewMat()
	defer delta.Close()
	gocv.AbsDiff(img, d.prev, &delta)
	gocv.CvtColor(delta, &delta, gocv.ColorBGRAToGray)

	mean := delta.Mean().Val1

	d.prev.Close()
	d.prev = img.Clone()

	return mean > d.thresh
}

func (d *cvSceneCutDetector) Close() error {
	return d.prev.Close()
}
