// Command bridge runs the native half of the ALVR video pipeline: it
// opens the shared memory ring a producer process publishes composited
// frames into, drives a hardware HEVC encoder over them, and forwards
// the encoded bitstream to an ALVR streaming session.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/coreos/go-systemd/daemon"

	"github.com/cbusillo/ALVR/alvrfs"
	"github.com/cbusillo/ALVR/alvrsession/fakesession"
	"github.com/cbusillo/ALVR/bridge"
	"github.com/cbusillo/ALVR/hevc/fakecodec"
	"github.com/cbusillo/ALVR/logging"
	"github.com/cbusillo/ALVR/shm"
)

const (
	logMaxSizeMB  = 100
	logMaxBackups = 5
	logMaxAgeDays = 14
)

func main() {
	ringPath := flag.String("ring", shm.DefaultPath, "path to the shared memory ring file")
	bitrate := flag.Int("bitrate", bridge.DefaultBitrateBPS, "target encoder bitrate in bits per second")
	fps := flag.Int("fps", bridge.DefaultFPS, "target encoder frame rate")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Parse()

	layout, err := alvrfs.Bootstrap()
	if err != nil {
		fmt.Fprintf(os.Stderr, "bridge: could not set up filesystem layout: %v\n", err)
		os.Exit(1)
	}

	level := logging.Info
	if *verbose {
		level = logging.Debug
	}
	log := logging.New(logging.Config{
		FilePath:   layout.LogDir + "/bridge.log",
		MaxSizeMB:  logMaxSizeMB,
		MaxBackups: logMaxBackups,
		MaxAgeDays: logMaxAgeDays,
		Level:      level,
	})

	cfg := bridge.Config{
		RingPath:   *ringPath,
		BitrateBPS: *bitrate,
		FPS:        *fps,
	}

	// TODO: swap in the real VideoToolbox/NVENC/VAAPI-backed hevc.Codec
	// and the real ALVR server runtime's alvrsession.Session once those
	// land; both are external collaborators this module only consumes
	// through an interface.
	codec := fakecodec.New(int(*fps) * 2)
	session := fakesession.New()

	b := bridge.New(cfg, codec, session, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("signal received, shutting down")
		cancel()
	}()

	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		log.Debug("systemd readiness notification failed", "error", err)
	} else if !ok {
		log.Debug("not running under systemd, skipping readiness notification")
	}

	if err := b.Run(ctx); err != nil && err != context.Canceled {
		log.Fatal("bridge exited with error", "error", err)
	}
}
