package sink

import (
	"image"

	"github.com/lysShub/gige-stream/gvsp"
	"github.com/pkg/errors"
)

// Frame completed RGB8 frame, RGB is interleaved and owned by the frame.
type Frame struct {
	BlockID     uint64
	Timestamp   uint64           // device tick of leader
	PixelFormat gvsp.PixelFormat // of the raw frame, RGB is always RGB8
	Width       int
	Height      int
	RGB         []byte
}

// Image convert to image.RGBA, with opaque alpha.
func (f *Frame) Image() (*image.RGBA, error) {
	if len(f.RGB) != f.Width*f.Height*3 {
		return nil, errors.Errorf("invalid rgb size %d, require %dx%dx3", len(f.RGB), f.Width, f.Height)
	}

	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	for i, j := 0, 0; i < len(f.RGB); i, j = i+3, j+4 {
		img.Pix[j+0] = f.RGB[i+0]
		img.Pix[j+1] = f.RGB[i+1]
		img.Pix[j+2] = f.RGB[i+2]
		img.Pix[j+3] = 0xff
	}
	return img, nil
}

type Sink interface {
	Put(f *Frame) error
}

type Func func(f *Frame) error

func (fn Func) Put(f *Frame) error { return fn(f) }

// Multi put frame to every sink, the frame is shared and must not be
// mutated by sinks, return the first error.
type Multi []Sink

func (m Multi) Put(f *Frame) (err error) {
	for _, s := range m {
		if e := s.Put(f); e != nil && err == nil {
			err = e
		}
	}
	return err
}
