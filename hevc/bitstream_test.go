package hevc

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/cbusillo/ALVR/alvrerr"
	"github.com/cbusillo/ALVR/logging"
)

func testLogger() logging.Logger {
	return logging.New(logging.Config{Level: logging.Fatal})
}

func lp(nals ...[]byte) []byte {
	var out []byte
	for _, n := range nals {
		hdr := make([]byte, 4)
		binary.BigEndian.PutUint32(hdr, uint32(len(n)))
		out = append(out, hdr...)
		out = append(out, n...)
	}
	return out
}

func TestLengthPrefixedToAnnexB_RoundTrip(t *testing.T) {
	nal1 := []byte{0x26, 0x01, 0x02, 0x03}
	nal2 := []byte{0x02, 0x10}
	in := lp(nal1, nal2)

	got, err := lengthPrefixedToAnnexB(in, testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := append(append([]byte{}, startCode[:]...), nal1...)
	want = append(want, startCode[:]...)
	want = append(want, nal2...)

	if !bytes.Equal(got, want) {
		t.Errorf("got %x, want %x", got, want)
	}
}

func TestLengthPrefixedToAnnexB_Empty(t *testing.T) {
	got, err := lengthPrefixedToAnnexB(nil, testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %x, want empty", got)
	}
}

func TestLengthPrefixedToAnnexB_TruncatesOnOverrun(t *testing.T) {
	good := []byte{0x26, 0x01}
	in := lp(good)
	// Append a length prefix claiming more bytes than remain.
	overrun := make([]byte, 4)
	binary.BigEndian.PutUint32(overrun, 100)
	in = append(in, overrun...)
	in = append(in, 0x01, 0x02) // only 2 bytes actually follow

	got, err := lengthPrefixedToAnnexB(in, testLogger())
	if err == nil {
		t.Fatal("expected error on overrunning length prefix")
	}
	if !alvrerr.Is(err, alvrerr.MalformedBitstream) {
		t.Errorf("error kind = %v, want MalformedBitstream", err)
	}

	want := append(append([]byte{}, startCode[:]...), good...)
	if !bytes.Equal(got, want) {
		t.Errorf("got %x, want only the well-formed prefix %x", got, want)
	}
}

func TestLengthPrefixedToAnnexB_TrailingShortHeader(t *testing.T) {
	// 3 trailing bytes is not enough for a length header; the walk should
	// simply stop without error (not malformed, just nothing more to read).
	good := []byte{0x26, 0x01}
	in := append(lp(good), 0x00, 0x00, 0x01)

	got, err := lengthPrefixedToAnnexB(in, testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := append(append([]byte{}, startCode[:]...), good...)
	if !bytes.Equal(got, want) {
		t.Errorf("got %x, want %x", got, want)
	}
}

func TestBuildConfigNALs_Order(t *testing.T) {
	vps := [][]byte{{0xAA}}
	sps := [][]byte{{0xBB}}
	pps := [][]byte{{0xCC}}

	got := buildConfigNALs(vps, sps, pps)

	var want []byte
	for _, b := range [][]byte{{0xAA}, {0xBB}, {0xCC}} {
		want = append(want, startCode[:]...)
		want = append(want, b...)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("got %x, want %x", got, want)
	}
}

func TestBuildConfigNALs_Empty(t *testing.T) {
	got := buildConfigNALs(nil, nil, nil)
	if len(got) != 0 {
		t.Errorf("got %x, want empty", got)
	}
}
