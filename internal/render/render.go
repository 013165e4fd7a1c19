// Package render turns RGBA frames into ASCII art for terminal display.
package render

import "strings"

// ramp orders glyphs from dark to bright.
const ramp = " .:-=+*#%@"

// DefaultColumns and DefaultRows fit a classic 80x24 terminal.
const (
	DefaultColumns = 80
	DefaultRows    = 24
)

// ASCII samples an RGBA8888 frame down to cols x rows characters, mapping
// per-pixel luminance onto the glyph ramp. Nearest-neighbor sampling keeps
// it cheap enough to run per frame.
func ASCII(frame []byte, width, height, cols, rows int) string {
	if width <= 0 || height <= 0 || cols <= 0 || rows <= 0 {
		return ""
	}
	scaleX := float64(width) / float64(cols)
	scaleY := float64(height) / float64(rows)

	var b strings.Builder
	b.Grow(rows * (cols + 1))
	for ty := 0; ty < rows; ty++ {
		sy := int(float64(ty) * scaleY)
		for tx := 0; tx < cols; tx++ {
			sx := int(float64(tx) * scaleX)
			idx := (sy*width + sx) * 4
			if idx+3 >= len(frame) {
				b.WriteByte(' ')
				continue
			}
			b.WriteByte(glyph(frame[idx], frame[idx+1], frame[idx+2]))
		}
		if ty < rows-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// glyph picks a ramp character by Rec. 709 luminance.
func glyph(r, g, bl byte) byte {
	lum := 0.2126*float64(r) + 0.7152*float64(g) + 0.0722*float64(bl)
	return ramp[int(lum/255.0*float64(len(ramp)-1))]
}
