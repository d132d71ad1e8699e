package detect

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// LoadImage opens and decodes an image file.
func LoadImage(path string) (image.Image, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("decode image %s: %w", path, err)
	}
	return img, nil
}

// PrepareInput resizes img to size x size and fills a CHW float32 tensor with
// RGB values scaled to [0,1], the input layout the exported detector expects.
func PrepareInput(img image.Image, size int) []float32 {
	resized := imaging.Resize(img, size, size, imaging.Lanczos)

	channelSize := size * size
	data := make([]float32, 3*channelSize)
	for y := 0; y < size; y++ {
		offset := y * size
		for x := 0; x < size; x++ {
			i := offset + x
			r, g, b, _ := resized.At(x, y).RGBA()
			data[i] = float32(r>>8) / 255.0
			data[channelSize+i] = float32(g>>8) / 255.0
			data[channelSize*2+i] = float32(b>>8) / 255.0
		}
	}
	return data
}
