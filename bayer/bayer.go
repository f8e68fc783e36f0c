// Package bayer reconstruct RGB image from single plane 8bit bayer mosaic.
package bayer

import (
	"github.com/pkg/errors"
)

var ErrSizeMismatch = errors.New("raw size mismatch resolution")

// CFA color filter array order of top-left 2x2 cell
type CFA uint8

const (
	RGGB CFA = iota
)

// Demosaic interpolate raw RGGB8 mosaic to interleaved RGB8 by bilinear
// (linear) interpolation, len(raw) must equal width*height. Border pixels
// mirror the neighbor row/column of same color.
func Demosaic(raw []byte, width, height int) ([]byte, error) {
	var rgb = make([]byte, width*height*3)
	return rgb, DemosaicTo(rgb, raw, width, height)
}

func DemosaicTo(rgb, raw []byte, width, height int) error {
	if width <= 0 || height <= 0 || width*height != len(raw) {
		return errors.WithMessagef(ErrSizeMismatch, "%dx%d with %d bytes", width, height, len(raw))
	} else if len(rgb) < len(raw)*3 {
		return errors.Errorf("rgb buffer %d too small, require %d", len(rgb), len(raw)*3)
	}

	var at = func(x, y int) int {
		return int(raw[mirror(y, height)*width+mirror(x, width)])
	}

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			var r, g, b int
			c := at(x, y)
			cross := (at(x-1, y) + at(x+1, y) + at(x, y-1) + at(x, y+1) + 2) / 4
			diag := (at(x-1, y-1) + at(x+1, y-1) + at(x-1, y+1) + at(x+1, y+1) + 2) / 4
			horiz := (at(x-1, y) + at(x+1, y) + 1) / 2
			vert := (at(x, y-1) + at(x, y+1) + 1) / 2

			switch x&1 | (y&1)<<1 {
			case 0b00: // red
				r, g, b = c, cross, diag
			case 0b01: // green on red row
				r, g, b = horiz, c, vert
			case 0b10: // green on blue row
				r, g, b = vert, c, horiz
			case 0b11: // blue
				r, g, b = diag, cross, c
			}

			i := (y*width + x) * 3
			rgb[i], rgb[i+1], rgb[i+2] = byte(r), byte(g), byte(b)
		}
	}
	return nil
}

// mirror reflect out of range index into [0,n), keep the parity
func mirror(i, n int) int {
	if i < 0 {
		i = -i
	}
	if i >= n {
		i = 2*(n-1) - i
	}
	return min(max(i, 0), n-1)
}
