// Package shmtest provides a producer-side double for the shared memory
// ring, for use by tests outside package shm (e.g. the bridge package's
// integration tests) that need to play the role of the producer process
// on the other end of the ring.
//
// It deliberately does not import package shm's unexported layout: a
// real producer is a separate, independently compiled process (e.g.
// Swift/Metal code on the compositor side) that only knows the wire
// format, not Go's internal types. This package reproduces that wire
// format the same way, so it exercises the same byte-for-byte contract
// package shm's Ring consumes.
package shmtest

import (
	"os"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	magic   uint32 = 0x414C5652
	version uint32 = 1

	numBuffers    = 3
	maxWidth      = 4096
	maxHeight     = 2048
	bytesPerPixel = 4
	maxFrameSize  = maxWidth * maxHeight * bytesPerPixel

	pageSize = 4096
)

type frameHeaderRaw struct {
	state       uint32
	width       uint32
	height      uint32
	stride      uint32
	timestampNs uint64
	frameNumber uint64
	isIDR       uint8
	_           [7]byte
	pose        [3][4]float32
}

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
	frameHeaders  [numBuffers]frameHeaderRaw
}

func alignUp(n, align uintptr) uintptr { return (n + align - 1) &^ (align - 1) }

func headerSize() uintptr { return unsafe.Sizeof(sharedMemoryHeader{}) }

func frameOffset(i int) uintptr {
	return alignUp(headerSize(), pageSize) + uintptr(i)*maxFrameSize
}

func totalSize() uintptr { return frameOffset(numBuffers) }

// Producer opens an existing ring file (already created by shm.Ring) and
// writes frames into it the way the real producer process would: ring
// file must already exist and be the expected size, since it is the
// Ring constructor's job to create and size it, not the producer's.
type Producer struct {
	file *os.File
	data []byte
	hdr  *sharedMemoryHeader
}

// Open maps an existing ring file for producer-side writes.
func Open(path string) (*Producer, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	data, err := unix.Mmap(int(f.Fd()), 0, int(totalSize()), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &Producer{
		file: f,
		data: data,
		hdr:  (*sharedMemoryHeader)(unsafe.Pointer(&data[0])),
	}, nil
}

// Configure publishes the frame resolution and format, as the producer
// does once at startup.
func (p *Producer) Configure(width, height, format uint32) {
	p.hdr.configWidth = width
	p.hdr.configHeight = height
	p.hdr.configFormat = format
	atomic.StoreUint32(&p.hdr.configSet, 1)
}

// Publish writes pixels into buffer index i and transitions it
// Empty->Writing->Ready, as the producer does for each completed frame.
func (p *Producer) Publish(i int, width, height, stride uint32, pixels []byte, timestampNs uint64, isIDR bool) {
	fh := &p.hdr.frameHeaders[i]
	atomic.StoreUint32(&fh.state, 1) // Writing
	fh.width = width
	fh.height = height
	fh.stride = stride
	fh.timestampNs = timestampNs
	fh.frameNumber++
	if isIDR {
		fh.isIDR = 1
	} else {
		fh.isIDR = 0
	}

	off := frameOffset(i)
	copy(p.data[off:off+uintptr(len(pixels))], pixels)

	atomic.StoreUint32(&fh.state, 2) // Ready
}

// IncrementDropped adds n to the producer's drop counter, simulating
// frames the producer discarded before they reached the ring.
func (p *Producer) IncrementDropped(n uint64) {
	atomic.AddUint64(&p.hdr.framesDropped, n)
}

// ShutdownRequested reports whether the consumer has set shutdown=1.
func (p *Producer) ShutdownRequested() bool {
	return atomic.LoadUint32(&p.hdr.shutdown) != 0
}

// RequestShutdown sets shutdown=1, as a producer would on exit so the
// consumer stops promptly instead of polling a dead ring.
func (p *Producer) RequestShutdown() {
	atomic.StoreUint32(&p.hdr.shutdown, 1)
}

// Close unmaps and closes the ring file. It does not remove the file;
// that remains the Ring owner's responsibility.
func (p *Producer) Close() error {
	err := unix.Munmap(p.data)
	if cerr := p.file.Close(); err == nil {
		err = cerr
	}
	return err
}
