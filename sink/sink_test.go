package sink_test

import (
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/lysShub/gige-stream/sink"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func frame(block uint64) *sink.Frame {
	return &sink.Frame{
		BlockID: block,
		Width:   2,
		Height:  1,
		RGB:     []byte{1, 2, 3, 4, 5, 6},
	}
}

func Test_Image(t *testing.T) {
	img, err := frame(1).Image()
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3, 0xff, 4, 5, 6, 0xff}, img.Pix)

	_, err = (&sink.Frame{Width: 3, Height: 3, RGB: make([]byte, 3)}).Image()
	require.Error(t, err)
}

func Test_Multi(t *testing.T) {
	var n int
	var m = sink.Multi{
		sink.Func(func(f *sink.Frame) error { n++; return errors.New("first") }),
		sink.Func(func(f *sink.Frame) error { n++; return errors.New("second") }),
	}
	err := m.Put(frame(1))
	require.EqualError(t, err, "first")
	require.Equal(t, 2, n)
}

func Test_Async(t *testing.T) {
	t.Run("flush", func(t *testing.T) {
		var mu sync.Mutex
		var got []uint64
		a := sink.NewAsync(sink.Func(func(f *sink.Frame) error {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, f.BlockID)
			return nil
		}), 8, nil)

		for i := uint64(1); i <= 3; i++ {
			require.NoError(t, a.Put(frame(i)))
		}
		require.NoError(t, a.Close())
		require.Equal(t, []uint64{1, 2, 3}, got)
		require.ErrorIs(t, a.Put(frame(4)), sink.ErrClosed)
	})

	t.Run("drop new", func(t *testing.T) {
		var block = make(chan struct{})
		a := sink.NewAsync(sink.Func(func(f *sink.Frame) error {
			<-block
			return nil
		}), 1, nil)

		for i := uint64(1); i <= 10; i++ {
			require.NoError(t, a.Put(frame(i)))
		}
		sent, dropped := a.Stats()
		require.Equal(t, uint64(10), sent+dropped)
		require.GreaterOrEqual(t, dropped, uint64(8))

		close(block)
		require.NoError(t, a.Close())
	})
}

func Test_Latest(t *testing.T) {
	l := sink.NewLatest()
	f, seq := l.Frame()
	require.Nil(t, f)
	require.Zero(t, seq)
	require.Zero(t, l.FPS())

	require.NoError(t, l.Put(frame(1)))
	require.NoError(t, l.Put(frame(2)))
	f, seq = l.Frame()
	require.Equal(t, uint64(2), f.BlockID)
	require.Equal(t, uint64(2), seq)

	time.Sleep(time.Second + time.Millisecond*50)
	require.NoError(t, l.Put(frame(3)))
	require.Greater(t, l.FPS(), 0.0)
}

func Test_PNG(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "frames")
	p, err := sink.NewPNG(dir)
	require.NoError(t, err)

	require.NoError(t, p.Put(frame(7)))

	fh, err := os.Open(filepath.Join(dir, "frame_000001_7.png"))
	require.NoError(t, err)
	defer fh.Close()
	img, err := png.Decode(fh)
	require.NoError(t, err)
	require.Equal(t, 2, img.Bounds().Dx())
	require.Equal(t, 1, img.Bounds().Dy())

	r, g, b, _ := img.At(1, 0).RGBA()
	require.Equal(t, []uint32{4, 5, 6}, []uint32{r >> 8, g >> 8, b >> 8})
}
