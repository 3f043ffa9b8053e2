package hevc

import "testing"

// Solid-color cases check the BT.601 limited-range formula against
// hand-derived values. For solid red (B=0, G=0, R=255):
// Y = ((66*255 + 129*0 + 25*0 + 128) >> 8) + 16
//   = ((16830 + 128) >> 8) + 16 = (16958 >> 8) + 16 = 66 + 16 = 82.
// (See DESIGN.md for the discrepancy with an earlier worked example that
// cited 81 for this case.)
func TestBGRAToI420_SolidColors(t *testing.T) {
	tests := []struct {
		name         string
		b, g, r      byte
		wantY        byte
		wantU, wantV byte
	}{
		{"black", 0, 0, 0, 16, 128, 128},
		{"white", 255, 255, 255, 235, 128, 128},
		{"red", 0, 0, 255, 82, 90, 240},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			const w, h = 2, 2
			stride := w * 4
			bgra := make([]byte, stride*h)
			for i := 0; i < w*h; i++ {
				off := i * 4
				bgra[off] = tc.b
				bgra[off+1] = tc.g
				bgra[off+2] = tc.r
				bgra[off+3] = 0xFF
			}

			y := make([]byte, w*h)
			u := make([]byte, (w/2)*(h/2))
			v := make([]byte, (w/2)*(h/2))
			bgraToI420(bgra, w, h, stride, y, u, v)

			for i, got := range y {
				if got != tc.wantY {
					t.Errorf("y[%d] = %d, want %d", i, got, tc.wantY)
				}
			}
			if u[0] != tc.wantU {
				t.Errorf("u[0] = %d, want %d", u[0], tc.wantU)
			}
			if v[0] != tc.wantV {
				t.Errorf("v[0] = %d, want %d", v[0], tc.wantV)
			}
		})
	}
}

func TestBGRAToI420_StrideLargerThanWidth(t *testing.T) {
	const w, h = 2, 1
	stride := 32 // padded row, wider than w*4
	bgra := make([]byte, stride*h)
	for i := 0; i < w; i++ {
		off := i * 4
		bgra[off], bgra[off+1], bgra[off+2], bgra[off+3] = 255, 255, 255, 255
	}

	y := make([]byte, w*h)
	u := make([]byte, 1)
	v := make([]byte, 1)
	bgraToI420(bgra, w, h, stride, y, u, v)

	for i, got := range y {
		if got != 235 {
			t.Errorf("y[%d] = %d, want 235", i, got)
		}
	}
}

func TestClampByte(t *testing.T) {
	tests := []struct {
		in   int
		want byte
	}{
		{-10, 0},
		{0, 0},
		{128, 128},
		{255, 255},
		{300, 255},
	}
	for _, tc := range tests {
		if got := clampByte(tc.in); got != tc.want {
			t.Errorf("clampByte(%d) = %d, want %d", tc.in, got, tc.want)
		}
	}
}
