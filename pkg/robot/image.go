package robot

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/gwillem/simbot/pkg/remoteapi"
)

// ErrShortFrame is returned when a frame holds fewer bytes than its resolution needs.
var ErrShortFrame = errors.New("frame shorter than its resolution")

// decodeFrame converts a bottom-up sensor frame into a top-down grayscale image.
func decodeFrame(raw remoteapi.RawImage) (*image.Gray, error) {
	w, h := raw.Resolution.X, raw.Resolution.Y
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("invalid resolution %dx%d", w, h)
	}
	channels := 3
	if raw.Grayscale {
		channels = 1
	}
	rowLen := w * channels
	if len(raw.Data) < rowLen*h {
		return nil, fmt.Errorf("%dx%d frame with %d bytes: %w", w, h, len(raw.Data), ErrShortFrame)
	}

	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		src := raw.Data[(h-1-y)*rowLen : (h-y)*rowLen]
		dst := img.Pix[y*img.Stride : y*img.Stride+w]
		if channels == 1 {
			copy(dst, src)
			continue
		}
		for x := range dst {
			px := color.RGBA{R: src[3*x], G: src[3*x+1], B: src[3*x+2], A: 0xff}
			dst[x] = color.GrayModel.Convert(px).(color.Gray).Y
		}
	}
	return img, nil
}
