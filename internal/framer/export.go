package framer

import (
	"fmt"
	"image"
	"image/draw"

	xdraw "golang.org/x/image/draw"

	"github.com/adter/adter/internal/core"
)

// ExportScaled renders a reconstructed frame (row-major, one value per
// pixel, first channel only) as a grayscale image, optionally resampled to
// outWidth x outHeight with a bilinear scaler. Passing outWidth == width
// and outHeight == height skips scaling entirely.
func ExportScaled[T Intensity](frame []T, width, height, channels int, toValue func(T) float64, outWidth, outHeight int) (*image.Gray, error) {
	if len(frame) != width*height*channels {
		return nil, fmt.Errorf("framer: %w: frame size %d, want %d", core.ErrMalformedEncoder, len(frame), width*height*channels)
	}

	src := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := toValue(frame[(y*width+x)*channels])
			src.Pix[y*src.Stride+x] = clampByte(v)
		}
	}

	if outWidth == width && outHeight == height {
		return src, nil
	}

	dst := image.NewGray(image.Rect(0, 0, outWidth, outHeight))
	xdraw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)
	return dst, nil
}

func clampByte(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
