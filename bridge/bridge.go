// Package bridge implements the orchestration loop coupling the shared
// memory ring, the HEVC encoder, and an ALVR streaming session: startup
// sequencing, the steady-state encode loop, force-IDR policy, drop
// accounting, and shutdown.
//
// The loop is a tight, single-goroutine cycle driven by polling rather
// than a reactor, with per-frame errors logged and absorbed rather than
// propagated mid-stream, since the stream itself must keep running.
package bridge

import (
	"context"
	"time"

	"github.com/cbusillo/ALVR/alvrerr"
	"github.com/cbusillo/ALVR/alvrsession"
	"github.com/cbusillo/ALVR/hevc"
	"github.com/cbusillo/ALVR/logging"
	"github.com/cbusillo/ALVR/shm"
)

// Default encoder and scheduling parameters.
const (
	DefaultBitrateBPS = 30_000_000
	DefaultFPS        = 72

	defaultConfigurePollInterval = 100 * time.Millisecond
	defaultConfigureTimeout      = 120 * time.Second

	defaultClientPollInterval = 100 * time.Millisecond
	defaultClientTimeout      = 60 * time.Second

	idleSleep     = 500 * time.Microsecond
	progressEvery = 300
)

// Config carries the construction-time parameters for a Bridge. Zero
// value fields fall back to DefaultConfig's values where a default
// exists; RingPath has no default and must be set.
type Config struct {
	RingPath   string
	BitrateBPS int
	FPS        int

	// UseSceneCut enables the additive scene-cut IDR heuristic. It has no
	// effect unless the binary was built with the withcv tag.
	UseSceneCut bool

	// ConfigurePollInterval, ConfigureTimeout, ClientPollInterval and
	// ClientTimeout override the startup polling cadence and patience.
	// Tests shorten these; production leaves them zero to get the
	// 10 Hz / 120s / 10 Hz / 60s defaults.
	ConfigurePollInterval time.Duration
	ConfigureTimeout      time.Duration
	ClientPollInterval    time.Duration
	ClientTimeout         time.Duration
}

// DefaultConfig returns a Config with the default bitrate and frame
// rate, at the well-known ring path.
func DefaultConfig() Config {
	return Config{
		RingPath:   shm.DefaultPath,
		BitrateBPS: DefaultBitrateBPS,
		FPS:        DefaultFPS,
	}
}

// Stats is a snapshot of the bridge's own counters, distinct from
// shm.Ring.Stats (the producer's counters): how many frames this bridge
// has itself processed and how many producer-reported drops it has
// observed, for the periodic progress log line and for tests.
type Stats struct {
	FramesProcessed uint64
	FramesDropped   uint64
	ClientConnected bool
}

// Bridge couples a Ring, an Encoder, and a streaming Session. The zero
// value is not usable; construct with New.
type Bridge struct {
	cfg     Config
	codec   hevc.Codec
	session alvrsession.Session
	log     logging.Logger

	ring     *shm.Ring
	encoder  *hevc.Encoder
	sceneCut sceneCutDetector

	clientConnected bool
	forceIDR        bool

	framesProcessed  uint64
	dropBaseline     uint64
	totalDropsLogged uint64
}

// New constructs a Bridge. The ring and encoder are created lazily by
// Run, since both require information (producer configuration) not
// available until the producer has published it.
func New(cfg Config, codec hevc.Codec, session alvrsession.Session, log logging.Logger) *Bridge {
	if cfg.BitrateBPS <= 0 {
		cfg.BitrateBPS = DefaultBitrateBPS
	}
	if cfg.FPS <= 0 {
		cfg.FPS = DefaultFPS
	}
	if cfg.ConfigurePollInterval <= 0 {
		cfg.ConfigurePollInterval = defaultConfigurePollInterval
	}
	if cfg.ConfigureTimeout <= 0 {
		cfg.ConfigureTimeout = defaultConfigureTimeout
	}
	if cfg.ClientPollInterval <= 0 {
		cfg.ClientPollInterval = defaultClientPollInterval
	}
	if cfg.ClientTimeout <= 0 {
		cfg.ClientTimeout = defaultClientTimeout
	}
	return &Bridge{
		cfg:      cfg,
		codec:    codec,
		session:  session,
		log:      log,
		forceIDR: true, // latched until the first encode output forwarded to a client
		sceneCut: newSceneCutDetector(),
	}
}

// Stats returns a snapshot of this bridge's own counters.
func (b *Bridge) Stats() Stats {
	return Stats{
		FramesProcessed: b.framesProcessed,
		FramesDropped:   b.totalDropsLogged,
		ClientConnected: b.clientConnected,
	}
}

// Run executes the full startup sequence, steady-state loop, and
// shutdown. It returns when ctx is canceled, the ring reports shutdown,
// or a fatal startup error occurs.
//
// Filesystem layout bootstrap (spec's startup step 1) happens before
// Run is called, in cmd/bridge/main.go, since the log directory it
// resolves is needed to construct the logger passed in here.
func (b *Bridge) Run(ctx context.Context) error {
	ring, err := shm.Create(b.cfg.RingPath, b.log)
	if err != nil {
		return err
	}
	b.ring = ring
	defer func() {
		b.sceneCut.Close()
		if err := b.ring.Close(); err != nil {
			b.log.Warning("ring close failed", "error", err)
		}
	}()

	if err := b.waitForConfiguration(ctx); err != nil {
		return err
	}

	width, height, _, _ := b.ring.GetConfig()
	enc, err := hevc.New(b.codec, int(width), int(height), b.cfg.BitrateBPS, b.cfg.FPS, b.log)
	if err != nil {
		return err
	}
	b.encoder = enc

	if err := b.session.StartConnection(); err != nil {
		return err
	}
	b.waitForClient(ctx)

	b.steadyState(ctx)

	return b.shutdown()
}

// waitForConfiguration polls the ring at 10 Hz until the producer has
// published its configuration, for up to configureTimeout.
func (b *Bridge) waitForConfiguration(ctx context.Context) error {
	deadline := time.Now().Add(b.cfg.ConfigureTimeout)
	for {
		if b.ring.IsConfigured() {
			return nil
		}
		if time.Now().After(deadline) {
			return alvrerr.New(alvrerr.ProducerTimeout, "producer did not configure ring within timeout")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(b.cfg.ConfigurePollInterval):
		}
	}
}

// waitForClient polls the session's event channel at 10 Hz for up to
// clientTimeout waiting for a ClientConnected event. Events observed
// along the way are handled normally; timing out without a client is
// logged but not fatal — the pipeline runs warm during producer-only
// startup.
func (b *Bridge) waitForClient(ctx context.Context) {
	deadline := time.Now().Add(b.cfg.ClientTimeout)
	for {
		b.drainEvents()
		if b.clientConnected {
			return
		}
		if time.Now().After(deadline) {
			b.log.Warning("no client connected within startup grace period, continuing")
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(b.cfg.ClientPollInterval):
		}
	}
}

// drainEvents handles every event currently queued on the session's
// channel without blocking.
func (b *Bridge) drainEvents() {
	for {
		select {
		case ev, ok := <-b.session.Events():
			if !ok {
				return
			}
			b.handleEvent(ev)
		default:
			return
		}
	}
}

func (b *Bridge) handleEvent(ev alvrsession.Event) {
	switch ev {
	case alvrsession.EventClientConnected:
		b.clientConnected = true
		b.forceIDR = true
	case alvrsession.EventClientDisconnected:
		b.clientConnected = false
	case alvrsession.EventRequestIDR:
		b.forceIDR = true
	}
}

// steadyState runs the tight encode loop until ctx is canceled or the
// ring reports shutdown.
func (b *Bridge) steadyState(ctx context.Context) {
	for {
		if ctx.Err() != nil || b.ring.ShutdownRequested() {
			return
		}

		b.drainEvents()

		index, header, pixels, ok := b.ring.TryAcquireFrame()
		if !ok {
			time.Sleep(idleSleep)
			b.checkDrops()
			continue
		}

		if b.cfg.UseSceneCut && b.sceneCut.Detect(pixels, int(header.Width), int(header.Height), int(header.Stride)) {
			b.forceIDR = true
		}

		b.encodeAndForward(header, pixels)

		b.ring.ReleaseFrame(index)
		b.framesProcessed++

		if b.framesProcessed%progressEvery == 0 {
			stats := b.ring.Stats()
			b.log.Info("progress", "frames_processed", b.framesProcessed,
				"frames_written", stats.FramesWritten, "frames_dropped", stats.FramesDropped)
		}

		b.checkDrops()
	}
}

func (b *Bridge) encodeAndForward(header shm.FrameHeader, pixels []byte) {
	wantIDR := b.forceIDR || header.IsIDR

	out, ok, err := b.encoder.EncodeFrame(pixels, int(header.Stride), wantIDR)
	if err != nil {
		b.log.Error("encode failed", "error", err)
		return
	}
	if !ok {
		return
	}

	if out.IsKeyframe && !b.encoder.ConfigSent() && len(out.ConfigNALs) > 0 {
		if err := b.session.SetVideoConfigNALs(out.ConfigNALs, alvrsession.CodecHEVC); err != nil {
			b.log.Error("set video config nals failed", "error", err)
		} else {
			b.encoder.MarkConfigSent()
		}
	}

	// force_idr is cleared only once an output reaches a connected client;
	// frames encoded before any client connects leave the latch set.
	if b.clientConnected {
		if err := b.session.SendVideoNAL(header.TimestampNs, out.NALData, out.IsKeyframe); err != nil {
			b.log.Error("send video nal failed", "error", err)
		}
		b.forceIDR = false
	}
}

// checkDrops compares the ring's producer-reported drop counter against
// the last observed baseline and logs any increase.
func (b *Bridge) checkDrops() {
	stats := b.ring.Stats()
	if stats.FramesDropped > b.dropBaseline {
		delta := stats.FramesDropped - b.dropBaseline
		b.log.Warning("producer dropped frames", "count", delta, "total", stats.FramesDropped)
		b.totalDropsLogged += delta
		b.dropBaseline = stats.FramesDropped
	}
}

// shutdown flushes any remaining encoder output, forwarding it to the
// session if still connected, and logs totals.
func (b *Bridge) shutdown() error {
	outputs, err := b.encoder.Flush()
	if err != nil {
		b.log.Warning("encoder flush returned error", "error", err)
	}

	if b.clientConnected {
		for _, out := range outputs {
			if err := b.session.SendVideoNAL(0, out.NALData, out.IsKeyframe); err != nil {
				b.log.Error("send trailing video nal failed", "error", err)
			}
		}
	}

	b.log.Info("bridge shutdown complete", "frames_processed", b.framesProcessed,
		"frames_dropped", b.totalDropsLogged)
	return nil
}
