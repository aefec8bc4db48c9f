package dataset

import (
	"image"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"

	_ "image/jpeg"
	_ "image/png"
)

// OOD is the out-of-distribution evaluation partition: a flat directory of
// 32x32 images with no ground-truth labels. Files are iterated in sorted
// filename order.
type OOD struct {
	images [][]byte
	files  []string
}

// LoadOOD reads every .png and .jpg under dir, in sorted order, into raw
// channel-plane records matching the CIFAR binary layout.
func LoadOOD(dir string) (*OOD, error) {
	var files []string
	for _, pattern := range []string{"*.png", "*.jpg", "*.jpeg"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, errors.Wrapf(err, "scan %s", dir)
		}
		files = append(files, matches...)
	}
	if len(files) == 0 {
		return nil, errors.Errorf("no images found in %s", dir)
	}
	sort.Strings(files)

	d := &OOD{
		images: make([][]byte, 0, len(files)),
		files:  files,
	}
	for _, path := range files {
		raw, err := loadImageRecord(path)
		if err != nil {
			return nil, err
		}
		d.images = append(d.images, raw)
	}
	return d, nil
}

// Len returns the number of OOD samples.
func (d *OOD) Len() int { return len(d.images) }

// Image returns the raw pixel planes for sample i.
func (d *OOD) Image(i int) []byte { return d.images[i] }

// Label always returns -1: the OOD set has no ground truth.
func (d *OOD) Label(i int) int32 { return -1 }

// Labeled reports that OOD samples carry no labels.
func (d *OOD) Labeled() bool { return false }

// File returns the source filename of sample i.
func (d *OOD) File(i int) string { return d.files[i] }

// loadImageRecord decodes one image file into CIFAR channel-plane bytes.
func loadImageRecord(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}
	bounds := img.Bounds()
	if bounds.Dx() != ImageSize || bounds.Dy() != ImageSize {
		return nil, errors.Errorf("%s: expected %dx%d image, got %dx%d",
			path, ImageSize, ImageSize, bounds.Dx(), bounds.Dy())
	}

	const plane = ImageSize * ImageSize
	raw := make([]byte, PixelBytes)
	for y := 0; y < ImageSize; y++ {
		for x := 0; x < ImageSize; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			p := y*ImageSize + x
			raw[p] = byte(r >> 8)
			raw[plane+p] = byte(g >> 8)
			raw[2*plane+p] = byte(b >> 8)
		}
	}
	return raw, nil
}
