package render

import (
	"strings"
	"testing"
)

// solid builds a width x height RGBA frame filled with one color.
func solid(width, height int, r, g, b byte) []byte {
	frame := make([]byte, width*height*4)
	for i := 0; i < len(frame); i += 4 {
		frame[i] = r
		frame[i+1] = g
		frame[i+2] = b
		frame[i+3] = 0xFF
	}
	return frame
}

func TestSolidFrames(t *testing.T) {
	tests := []struct {
		name    string
		r, g, b byte
		want    byte
	}{
		{"black maps to space", 0, 0, 0, ' '},
		{"white maps to brightest glyph", 255, 255, 255, '@'},
		{"pure green is bright", 0, 255, 0, '*'},
		{"pure blue is dim", 0, 0, 255, ' '},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := ASCII(solid(8, 8, tt.r, tt.g, tt.b), 8, 8, 4, 2)
			for _, line := range strings.Split(out, "\n") {
				if line != strings.Repeat(string(tt.want), 4) {
					t.Fatalf("line = %q, want %q repeated", line, tt.want)
				}
			}
		})
	}
}

func TestOutputGeometry(t *testing.T) {
	out := ASCII(solid(64, 32, 128, 128, 128), 64, 32, DefaultColumns, DefaultRows)
	lines := strings.Split(out, "\n")
	if len(lines) != DefaultRows {
		t.Fatalf("got %d rows, want %d", len(lines), DefaultRows)
	}
	for i, line := range lines {
		if len(line) != DefaultColumns {
			t.Errorf("row %d has %d columns, want %d", i, len(line), DefaultColumns)
		}
	}
}

func TestHalfLitFrame(t *testing.T) {
	// Left half white, right half black, rendered 1:1.
	frame := make([]byte, 4*2*4)
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			idx := (y*4 + x) * 4
			frame[idx], frame[idx+1], frame[idx+2], frame[idx+3] = 255, 255, 255, 255
		}
		for x := 2; x < 4; x++ {
			frame[(y*4+x)*4+3] = 255
		}
	}

	out := ASCII(frame, 4, 2, 4, 2)
	want := "@@  \n@@  "
	if out != want {
		t.Errorf("ASCII =\n%q\nwant\n%q", out, want)
	}
}

func TestTruncatedFramePadsWithSpaces(t *testing.T) {
	// Claimed 4x2 but only one row of pixels present.
	frame := solid(4, 1, 255, 255, 255)
	out := ASCII(frame, 4, 2, 4, 2)
	lines := strings.Split(out, "\n")
	if lines[1] != "    " {
		t.Errorf("missing pixels rendered as %q, want blanks", lines[1])
	}
}

func TestDegenerateInputs(t *testing.T) {
	if out := ASCII(nil, 0, 0, 10, 10); out != "" {
		t.Errorf("zero-sized frame rendered %q", out)
	}
	if out := ASCII(solid(4, 4, 0, 0, 0), 4, 4, 0, 5); out != "" {
		t.Errorf("zero columns rendered %q", out)
	}
}
