package dataset

import (
	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// LoadImage reads the image at path, resizes it to size x size and writes
// the pixels into dst in [height, width, channel] order, scaled to [0, 1].
// dst must hold size*size*channels values.
func LoadImage(path string, size, channels int, dst []float32) error {
	if len(dst) != size*size*channels {
		return errors.Errorf("image buffer holds %d values, need %d", len(dst), size*size*channels)
	}
	if channels != 1 && channels != 3 {
		return errors.Errorf("unsupported channel count %d", channels)
	}

	img, err := imaging.Open(path)
	if err != nil {
		return errors.Wrapf(err, "loading image %s", path)
	}
	resized := imaging.Resize(img, size, size, imaging.Lanczos)

	i := 0
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			c := resized.NRGBAAt(x, y)
			if channels == 1 {
				// ITU-R BT.601 luma.
				dst[i] = (0.299*float32(c.R) + 0.587*float32(c.G) + 0.114*float32(c.B)) / 255
				i++
				continue
			}
			dst[i] = float32(c.R) / 255
			dst[i+1] = float32(c.G) / 255
			dst[i+2] = float32(c.B) / 255
			i += 3
		}
	}
	return nil
}
