package hevc

import (
	"encoding/binary"

	"github.com/cbusillo/ALVR/alvrerr"
	"github.com/cbusillo/ALVR/logging"
)

// startCode is the Annex-B NAL unit delimiter.
var startCode = [4]byte{0x00, 0x00, 0x00, 0x01}

// lengthPrefixedToAnnexB walks a concatenation of [u32 big-endian
// length][NAL bytes] records and rewrites each as [start code][NAL
// bytes]. A length that would overrun the buffer truncates the walk
// cleanly: everything decoded so far is returned, the rest is discarded
// and logged as a malformed bitstream.
func lengthPrefixedToAnnexB(data []byte, log logging.Logger) ([]byte, error) {
	out := make([]byte, 0, len(data)+64)
	off := 0
	var malformed error

	for off+4 <= len(data) {
		length := int(binary.BigEndian.Uint32(data[off : off+4]))
		off += 4

		if off+length > len(data) {
			log.Warning("malformed bitstream: NAL length overruns buffer",
				"length", length, "offset", off, "remaining", len(data)-off)
			malformed = alvrerr.New(alvrerr.MalformedBitstream, "NAL length exceeds remaining bytes")
			break
		}

		out = append(out, startCode[:]...)
		out = append(out, data[off:off+length]...)
		off += length
	}

	return out, malformed
}

// buildConfigNALs concatenates start-code-framed VPS, then SPS, then PPS
// NALs, in that order, for delivery through the session's config channel.
func buildConfigNALs(vps, sps, pps [][]byte) []byte {
	out := make([]byte, 0, 64)
	for _, group := range [][][]byte{vps, sps, pps} {
		for _, nal := range group {
			out = append(out, startCode[:]...)
			out = append(out, nal...)
		}
	}
	return out
}
