package sink

import (
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/pkg/errors"
)

// PNG write every frame as file frame_{seq}_{block}.png in dir.
type PNG struct {
	dir string
	enc png.Encoder
	seq atomic.Uint64
}

func NewPNG(dir string) (*PNG, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.WithStack(err)
	}
	return &PNG{
		dir: dir,
		enc: png.Encoder{CompressionLevel: png.BestSpeed},
	}, nil
}

func (p *PNG) Put(f *Frame) error {
	img, err := f.Image()
	if err != nil {
		return err
	}

	name := filepath.Join(p.dir, fmt.Sprintf("frame_%06d_%d.png", p.seq.Add(1), f.BlockID))
	fh, err := os.Create(name)
	if err != nil {
		return errors.WithStack(err)
	}
	if err := p.enc.Encode(fh, img); err != nil {
		fh.Close()
		return errors.WithStack(err)
	}
	return errors.WithStack(fh.Close())
}
