// Package shm implements the lock-free shared-memory ring that carries
// composited frames across the emulation boundary: a producer process
// writes BGRA pixels and per-buffer metadata into a memory-mapped file,
// and this package's Ring lets a single consumer poll for and acquire
// completed buffers without any kernel-level synchronization primitive.
//
// The file layout is a C-ABI binary contract shared with the producer
// (see sharedMemoryHeader/frameHeaderRaw below): fixed field widths, natural
// alignment, explicit padding. Two independently compiled processes must
// agree on this layout byte-for-byte, so nothing here may depend on Go's
// struct layout being anything other than "fields laid out in source
// order, naturally aligned" — true for every supported Go ABI, but kept
// explicit with padding fields rather than relied upon implicitly.
package shm

import (
	"os"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/cbusillo/ALVR/alvrerr"
	"github.com/cbusillo/ALVR/logging"
)

// Wire-format constants. magic/version gate producer/consumer
// compatibility and are never changed after a ring is created.
const (
	Magic   uint32 = 0x414C5652 // "ALVR"
	Version uint32 = 1

	// NumBuffers is the number of per-frame slots in the ring. With three
	// buffers, one producer and one consumer, the fixed-order scan in
	// TryAcquireFrame needs no fairness bookkeeping: it favors lower
	// indices, but starvation of either side is not possible.
	NumBuffers = 3

	MaxWidth      = 4096
	MaxHeight     = 2048
	bytesPerPixel = 4
	MaxFrameSize  = MaxWidth * MaxHeight * bytesPerPixel

	// DefaultPath is the well-known path a compatible producer writes to.
	DefaultPath = "/tmp/alvr_frame_buffer.shm"

	pageSize = 4096
)

// FrameState is the four-value state machine governing ownership of a
// single buffer slot. state is the only synchronization primitive in the
// ring; every other field is advisory telemetry.
type FrameState uint32

const (
	StateEmpty FrameState = iota
	StateWriting
	StateReady
	StateEncoding
)

func (s FrameState) valid() bool {
	return s >= StateEmpty && s <= StateEncoding
}

// frameHeaderRaw is the per-buffer metadata slot, laid out identically to
// the producer's AlvrFrameHeader. state is accessed exclusively through
// sync/atomic on its address; every other field is read/written directly
// and is only meaningful while the buffer is exclusively owned (Writing
// by the producer, Encoding by the consumer).
type frameHeaderRaw struct {
	state       uint32
	width       uint32
	height      uint32
	stride      uint32
	timestampNs uint64
	frameNumber uint64
	isIDR       uint8
	_           [7]byte // padding, must stay zero
	pose        [3][4]float32
}

// sharedMemoryHeader is the fixed ring header, laid out identically to
// the producer's AlvrSharedMemory.
type sharedMemoryHeader struct {
	magic         uint32
	version       uint32
	initialized   uint32
	shutdown      uint32
	configWidth   uint32
	configHeight  uint32
	configFormat  uint32
	configSet     uint32
	writeSequence uint64
	readSequence  uint64
	framesWritten uint64
	framesEncoded uint64
	framesDropped uint64
	reserved      [64]byte
	frameHeaders  [NumBuffers]frameHeaderRaw
}

func headerSize() uintptr { return unsafe.Sizeof(sharedMemoryHeader{}) }

func alignUp(n, align uintptr) uintptr { return (n + align - 1) &^ (align - 1) }

// frameOffset returns the byte offset of buffer i's pixel region.
func frameOffset(i int) uintptr {
	return alignUp(headerSize(), pageSize) + uintptr(i)*MaxFrameSize
}

// totalSize returns the full size a ring file must be allocated to.
func totalSize() uintptr { return frameOffset(NumBuffers) }

// FrameHeader is a by-value snapshot of a buffer's metadata, returned by
// TryAcquireFrame once ownership has transitioned to the consumer.
type FrameHeader struct {
	Width       uint32
	Height      uint32
	Stride      uint32
	TimestampNs uint64
	FrameNumber uint64
	IsIDR       bool
	Pose        [3][4]float32
}

// Stats is a snapshot of the ring's advisory counters, used for periodic
// progress logging and tests. None of these fields participate in the
// ring's ownership protocol.
type Stats struct {
	Initialized   bool
	Shutdown      bool
	ConfigSet     bool
	WriteSequence uint64
	ReadSequence  uint64
	FramesWritten uint64
	FramesEncoded uint64
	FramesDropped uint64
}

// Ring is a memory-mapped, fixed-size frame transport shared with exactly
// one producer process. The zero value is not usable; construct with
// Create.
type Ring struct {
	path string
	file *os.File
	data []byte
	hdr  *sharedMemoryHeader
	log  logging.Logger
}

// Create creates (or truncates) the ring file at path, maps it, and
// initializes the header and every buffer's state to Empty. It fails
// with an error of kind alvrerr.RingCreate if file creation, resizing,
// or mapping fails.
func Create(path string, log logging.Logger) (*Ring, error) {
	size := totalSize()
	log.Info("creating shared memory ring", "path", path, "bytes", size)

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, alvrerr.Wrap(alvrerr.RingCreate, err, "open ring file")
	}
	if err := f.Truncate(int64(size)); err != nil {
		f.Close()
		os.Remove(path)
		return nil, alvrerr.Wrap(alvrerr.RingCreate, err, "resize ring file")
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		os.Remove(path)
		return nil, alvrerr.Wrap(alvrerr.RingCreate, err, "mmap ring file")
	}

	r := &Ring{
		path: path,
		file: f,
		data: data,
		hdr:  (*sharedMemoryHeader)(unsafe.Pointer(&data[0])),
		log:  log,
	}

	r.hdr.magic = Magic
	r.hdr.version = Version
	atomic.StoreUint32(&r.hdr.initialized, 0)
	atomic.StoreUint32(&r.hdr.shutdown, 0)
	atomic.StoreUint32(&r.hdr.configSet, 0)

	for i := range r.hdr.frameHeaders {
		atomic.StoreUint32(&r.hdr.frameHeaders[i].state, uint32(StateEmpty))
	}

	if err := r.flush(); err != nil {
		r.log.Warning("flush after init failed", "error", err)
	}

	atomic.StoreUint32(&r.hdr.initialized, 1)
	if err := r.flush(); err != nil {
		r.log.Warning("flush after initialized flag failed", "error", err)
	}

	log.Info("ring initialized, waiting for producer configuration")
	return r, nil
}

// Path returns the file path backing the ring.
func (r *Ring) Path() string { return r.path }

func (r *Ring) flush() error {
	return unix.Msync(r.data, unix.MS_SYNC)
}

// IsConfigured reports whether the producer has published its
// configuration (config_set != 0), observed with acquire ordering.
func (r *Ring) IsConfigured() bool {
	return atomic.LoadUint32(&r.hdr.configSet) != 0
}

// GetConfig returns the producer-published resolution and pixel format,
// or ok=false if the producer has not configured yet.
func (r *Ring) GetConfig() (width, height, format uint32, ok bool) {
	if !r.IsConfigured() {
		return 0, 0, 0, false
	}
	return r.hdr.configWidth, r.hdr.configHeight, r.hdr.configFormat, true
}

// TryAcquireFrame scans buffers in fixed order 0..NumBuffers and attempts
// to transition the first Ready buffer it finds to Encoding via
// compare-and-swap. It returns the buffer index, a snapshot of its
// metadata, and a read-only view of its pixel bytes (height*stride long),
// or ok=false if no buffer is Ready.
//
// A buffer observed in a state outside {Empty,Writing,Ready,Encoding} is a
// protocol violation: it is skipped, with no mutation, and logged each
// time a scan observes it. A Ready buffer whose height*stride exceeds
// MaxFrameSize is logged, handed back to the producer (state -> Empty)
// and skipped, since forwarding its pixel slice would read out of bounds
// of the mapped pixel region.
func (r *Ring) TryAcquireFrame() (index int, header FrameHeader, pixels []byte, ok bool) {
	for i := 0; i < NumBuffers; i++ {
		fh := &r.hdr.frameHeaders[i]

		state := FrameState(atomic.LoadUint32(&fh.state))
		if !state.valid() {
			r.log.Warning("protocol violation: invalid buffer state", "buffer", i, "state", uint32(state))
			continue
		}
		if state != StateReady {
			continue
		}

		if !atomic.CompareAndSwapUint32(&fh.state, uint32(StateReady), uint32(StateEncoding)) {
			continue
		}

		snap := FrameHeader{
			Width:       fh.width,
			Height:      fh.height,
			Stride:      fh.stride,
			TimestampNs: fh.timestampNs,
			FrameNumber: fh.frameNumber,
			IsIDR:       fh.isIDR != 0,
			Pose:        fh.pose,
		}

		size := uintptr(snap.Height) * uintptr(snap.Stride)
		if size > MaxFrameSize {
			r.log.Warning("protocol violation: frame exceeds max frame size",
				"buffer", i, "height", snap.Height, "stride", snap.Stride)
			atomic.StoreUint32(&fh.state, uint32(StateEmpty))
			continue
		}

		off := frameOffset(i)
		return i, snap, r.data[off : off+size], true
	}
	return 0, FrameHeader{}, nil, false
}

// ReleaseFrame returns buffer index to the producer (state -> Empty,
// release ordering) and advances the advisory encode counters.
func (r *Ring) ReleaseFrame(index int) {
	atomic.StoreUint32(&r.hdr.frameHeaders[index].state, uint32(StateEmpty))
	atomic.AddUint64(&r.hdr.framesEncoded, 1)
	atomic.AddUint64(&r.hdr.readSequence, 1)
}

// Shutdown sets the shutdown flag and flushes it to the mapping. It is
// idempotent and is also invoked by Close.
func (r *Ring) Shutdown() {
	atomic.StoreUint32(&r.hdr.shutdown, 1)
	if err := r.flush(); err != nil {
		r.log.Warning("flush on shutdown failed", "error", err)
	}
}

// ShutdownRequested reports whether either side has set shutdown=1.
func (r *Ring) ShutdownRequested() bool {
	return atomic.LoadUint32(&r.hdr.shutdown) != 0
}

// Stats returns a snapshot of the ring's advisory counters.
func (r *Ring) Stats() Stats {
	return Stats{
		Initialized:   atomic.LoadUint32(&r.hdr.initialized) != 0,
		Shutdown:      r.ShutdownRequested(),
		ConfigSet:     r.IsConfigured(),
		WriteSequence: atomic.LoadUint64(&r.hdr.writeSequence),
		ReadSequence:  atomic.LoadUint64(&r.hdr.readSequence),
		FramesWritten: atomic.LoadUint64(&r.hdr.framesWritten),
		FramesEncoded: atomic.LoadUint64(&r.hdr.framesEncoded),
		FramesDropped: atomic.LoadUint64(&r.hdr.framesDropped),
	}
}

// Close signals shutdown, unmaps the ring, and closes the backing file.
func (r *Ring) Close() error {
	r.Shutdown()
	err := unix.Munmap(r.data)
	if cerr := r.file.Close(); err == nil {
		err = cerr
	}
	r.log.Info("ring closed", "path", r.path)
	return err
}
