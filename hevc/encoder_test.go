package hevc_test

import (
	"testing"

	"github.com/cbusillo/ALVR/hevc"
	"github.com/cbusillo/ALVR/hevc/fakecodec"
	"github.com/cbusillo/ALVR/logging"
)

func testLogger() logging.Logger {
	return logging.New(logging.Config{Level: logging.Fatal})
}

func solidFrame(width, height int) []byte {
	stride := width * 4
	buf := make([]byte, stride*height)
	for i := 0; i < width*height; i++ {
		off := i * 4
		buf[off], buf[off+1], buf[off+2], buf[off+3] = 10, 20, 30, 255
	}
	return buf
}

func TestNew_InvalidConfigRejected(t *testing.T) {
	codec := fakecodec.New(1)
	_, err := hevc.New(codec, 0, 720, 1_000_000, 30, testLogger())
	if err == nil {
		t.Fatal("expected error for zero width")
	}
}

func TestEncoder_FirstKeyframeCarriesConfigNALs(t *testing.T) {
	codec := fakecodec.New(1) // every frame a keyframe
	enc, err := hevc.New(codec, 16, 16, 1_000_000, 30, testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	frame := solidFrame(16, 16)
	out, ok, err := enc.EncodeFrame(frame, 16*4, false)
	if err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}
	if !ok {
		t.Fatal("expected output on first frame")
	}
	if !out.IsKeyframe {
		t.Error("expected first frame to be a keyframe")
	}
	if len(out.ConfigNALs) == 0 {
		t.Error("expected non-empty ConfigNALs on first keyframe")
	}
	if len(out.NALData) == 0 {
		t.Error("expected non-empty NALData")
	}
}

func TestEncoder_ConfigSentLatch(t *testing.T) {
	codec := fakecodec.New(1)
	enc, err := hevc.New(codec, 16, 16, 1_000_000, 30, testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if enc.ConfigSent() {
		t.Fatal("config should not be sent before any frame")
	}
	enc.MarkConfigSent()
	if !enc.ConfigSent() {
		t.Fatal("expected ConfigSent true after MarkConfigSent")
	}
}

func TestEncoder_NonKeyframeHasNoConfigNALs(t *testing.T) {
	codec := fakecodec.New(2) // keyframe every other submitted frame
	enc, err := hevc.New(codec, 16, 16, 1_000_000, 30, testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	frame := solidFrame(16, 16)
	out0, ok, err := enc.EncodeFrame(frame, 16*4, false)
	if err != nil || !ok {
		t.Fatalf("first EncodeFrame: ok=%v err=%v", ok, err)
	}
	if !out0.IsKeyframe {
		t.Fatal("frame 0 should be a keyframe under keyFrameEvery=2")
	}

	out1, ok, err := enc.EncodeFrame(frame, 16*4, false)
	if err != nil || !ok {
		t.Fatalf("second EncodeFrame: ok=%v err=%v", ok, err)
	}
	if out1.IsKeyframe {
		t.Fatal("frame 1 should not be a keyframe under keyFrameEvery=2")
	}
	if len(out1.ConfigNALs) != 0 {
		t.Error("expected no ConfigNALs on non-keyframe")
	}
}

func TestEncoder_ForceIDR(t *testing.T) {
	codec := fakecodec.New(1000) // only the first submitted frame is a keyframe on its own
	enc, err := hevc.New(codec, 16, 16, 1_000_000, 30, testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	frame := solidFrame(16, 16)
	// Submit the first frame unforced, so the forced frame under test is
	// one the codec would not make a keyframe by itself.
	if _, _, err := enc.EncodeFrame(frame, 16*4, false); err != nil {
		t.Fatalf("first EncodeFrame: %v", err)
	}
	out, ok, err := enc.EncodeFrame(frame, 16*4, true)
	if err != nil || !ok {
		t.Fatalf("EncodeFrame: ok=%v err=%v", ok, err)
	}
	if !out.IsKeyframe {
		t.Error("expected forced IDR to produce a keyframe")
	}
}

func TestEncoder_Flush(t *testing.T) {
	codec := fakecodec.New(1)
	enc, err := hevc.New(codec, 16, 16, 1_000_000, 30, testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	frame := solidFrame(16, 16)
	if _, _, err := enc.EncodeFrame(frame, 16*4, false); err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}

	outputs, err := enc.Flush()
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if !codec.Finished() {
		t.Error("expected codec.Finish to have been called")
	}
	_ = outputs
}
