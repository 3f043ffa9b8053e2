package hevc

import (
	"time"

	"github.com/cbusillo/ALVR/alvrerr"
	"github.com/cbusillo/ALVR/logging"
)

// Maximum key-frame interval and pipeline depth the encoder is configured
// for; see New.
const (
	maxKeyFrameInterval = 2 * time.Second
	maxFrameDelay       = 1
)

// Output is one reformatted encoded frame, ready to hand to a streaming
// session.
type Output struct {
	// NALData is the Annex-B HEVC bitstream for this frame.
	NALData []byte

	IsKeyframe bool

	// ConfigNALs holds start-code-framed VPS/SPS/PPS, present only when
	// IsKeyframe is true.
	ConfigNALs []byte
}

// Encoder wraps a Codec with BGRA->I420 conversion, reusable plane
// buffers, and Annex-B reformatting, plus the config-sent latch that
// separates the first keyframe (which must carry parameter sets) from
// later ones (which need not).
type Encoder struct {
	codec  Codec
	width  int
	height int

	yPlane []byte
	uPlane []byte
	vPlane []byte

	configSent bool
	log        logging.Logger

	framesEncoded uint64
}

// New validates and applies an HEVC Main configuration to codec and
// pre-allocates the YUV420 conversion planes.
//
// The Config passed to codec.Configure carries the dimensions, bitrate,
// frame rate, the Main profile, a 2-second maximum key-frame interval,
// and a maximum frame delay of 1 to keep the pipeline shallow. It carries
// no entropy-coding, real-time/speed, parallelization, power-efficiency,
// GOP or frame-reordering settings; those are whatever the Codec
// implementation uses.
func New(codec Codec, width, height, bitrateBPS, fps int, log logging.Logger) (*Encoder, error) {
	cfg := Config{
		Width:         width,
		Height:        height,
		BitrateBPS:    bitrateBPS,
		FPS:           fps,
		Profile:       ProfileMain,
		KeyFrameEvery: maxKeyFrameInterval,
		MaxFrameDelay: maxFrameDelay,
	}
	if err := cfg.Validate(); err != nil {
		return nil, alvrerr.Wrap(alvrerr.EncoderInit, err, "invalid encoder config")
	}

	log.Info("creating HEVC encoder", "width", width, "height", height, "fps", fps,
		"bitrate_mbps", bitrateBPS/1_000_000)

	if err := codec.Configure(cfg); err != nil {
		return nil, alvrerr.Wrap(alvrerr.EncoderInit, err, "configure hardware encoder")
	}

	ySize := width * height
	uvSize := ySize / 4
	return &Encoder{
		codec:  codec,
		width:  width,
		height: height,
		yPlane: make([]byte, ySize),
		uPlane: make([]byte, uvSize),
		vPlane: make([]byte, uvSize),
		log:    log,
	}, nil
}

// EncodeFrame converts bgra (stride bytes per row) to I420 into the
// encoder's pre-allocated planes, submits them, and returns at most one
// encoded output. It returns ok=false when the encoder has not yet
// produced output (normal during pipeline warm-up).
func (e *Encoder) EncodeFrame(bgra []byte, stride int, forceIDR bool) (Output, bool, error) {
	bgraToI420(bgra, e.width, e.height, stride, e.yPlane, e.uPlane, e.vPlane)

	if err := e.codec.Encode(e.yPlane, e.uPlane, e.vPlane, forceIDR); err != nil {
		return Output{}, false, alvrerr.Wrap(alvrerr.EncodeSubmit, err, "submit frame")
	}

	e.framesEncoded++

	frame, ok, err := e.codec.Next()
	if err != nil {
		return Output{}, false, alvrerr.Wrap(alvrerr.EncodeDrain, err, "drain encoded frame")
	}
	if !ok {
		return Output{}, false, nil
	}

	out, err := e.processFrame(frame)
	return out, true, err
}

// Flush signals end of stream and drains every frame still buffered
// inside the encoder.
func (e *Encoder) Flush() ([]Output, error) {
	if err := e.codec.Finish(); err != nil {
		return nil, alvrerr.Wrap(alvrerr.EncodeDrain, err, "finish encoding")
	}

	var outputs []Output
	for {
		frame, ok, err := e.codec.Next()
		if err != nil {
			return outputs, alvrerr.Wrap(alvrerr.EncodeDrain, err, "drain during flush")
		}
		if !ok {
			break
		}
		out, err := e.processFrame(frame)
		if err != nil {
			e.log.Warning("malformed bitstream during flush", "error", err)
		}
		outputs = append(outputs, out)
	}
	return outputs, nil
}

// ConfigSent reports whether parameter sets have already been delivered
// through the session's config channel.
func (e *Encoder) ConfigSent() bool { return e.configSent }

// MarkConfigSent latches that parameter sets have been delivered.
func (e *Encoder) MarkConfigSent() { e.configSent = true }

func (e *Encoder) processFrame(frame Frame) (Output, error) {
	nalData, err := lengthPrefixedToAnnexB(frame.Data, e.log)

	out := Output{
		NALData:    nalData,
		IsKeyframe: frame.Keyframe,
	}
	if frame.Keyframe {
		out.ConfigNALs = buildConfigNALs(frame.VPSList, frame.SPSList, frame.PPSList)
	}
	return out, err
}
