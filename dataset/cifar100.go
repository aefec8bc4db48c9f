// Package dataset loads the CIFAR-100 binary distribution, partitions it for
// training and validation, and batches samples into backend tensors for the
// training, validation and evaluation loops.
package dataset

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// CIFAR-100 image geometry. Every record in the binary files stores one
// 32x32 RGB image as three 1024-byte channel planes.
const (
	ImageSize  = 32
	Channels   = 3
	PixelBytes = ImageSize * ImageSize * Channels
	NumClasses = 100

	// Each record: one coarse label byte, one fine label byte, 3072
	// pixel bytes.
	recordBytes = 2 + PixelBytes

	TrainSamples = 50000
	TestSamples  = 10000
)

// Dataset is the minimal sample-access interface the loader batches over.
// Image returns the raw record pixels (three channel planes, PixelBytes
// total); callers must not mutate the returned slice.
type Dataset interface {
	Len() int
	Image(i int) []byte
	Label(i int) int32
	Labeled() bool
}

// CIFAR100 is a fully materialized partition of the CIFAR-100 set.
type CIFAR100 struct {
	images [][]byte
	labels []int32
}

// Len returns the number of samples in the partition.
func (d *CIFAR100) Len() int { return len(d.images) }

// Image returns the raw pixel planes for sample i.
func (d *CIFAR100) Image(i int) []byte { return d.images[i] }

// Label returns the fine label for sample i.
func (d *CIFAR100) Label(i int) int32 { return d.labels[i] }

// Labeled reports that CIFAR-100 partitions carry ground truth.
func (d *CIFAR100) Labeled() bool { return true }

// LoadTrain reads the training partition from the binary distribution under
// dataDir, downloading it first if absent.
func LoadTrain(dataDir string) (*CIFAR100, error) {
	if err := DownloadIfMissing(dataDir); err != nil {
		return nil, err
	}
	return loadBin(filepath.Join(dataDir, binDirName, "train.bin"), TrainSamples)
}

// LoadTest reads the clean test partition from the binary distribution under
// dataDir, downloading it first if absent.
func LoadTest(dataDir string) (*CIFAR100, error) {
	if err := DownloadIfMissing(dataDir); err != nil {
		return nil, err
	}
	return loadBin(filepath.Join(dataDir, binDirName, "test.bin"), TestSamples)
}

// loadBin parses a CIFAR-100 binary file holding want records.
func loadBin(path string, want int) (*CIFAR100, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	d := &CIFAR100{
		images: make([][]byte, 0, want),
		labels: make([]int32, 0, want),
	}

	r := bufio.NewReaderSize(f, 1<<20)
	record := make([]byte, recordBytes)
	for {
		_, err := io.ReadFull(r, record)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "read record %d of %s", len(d.images), path)
		}
		// record[0] is the coarse label, unused here.
		fine := int32(record[1])
		pixels := make([]byte, PixelBytes)
		copy(pixels, record[2:])
		d.images = append(d.images, pixels)
		d.labels = append(d.labels, fine)
	}

	if len(d.images) != want {
		return nil, errors.Errorf("%s: expected %d records, found %d", path, want, len(d.images))
	}
	return d, nil
}

// FineLabelNames reads the 100 class names shipped with the binary
// distribution, in label order.
func FineLabelNames(dataDir string) ([]string, error) {
	path := filepath.Join(dataDir, binDirName, "fine_label_names.txt")
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	var names []string
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			names = append(names, line)
		}
	}
	if len(names) != NumClasses {
		return nil, errors.Errorf("%s: expected %d class names, found %d", path, NumClasses, len(names))
	}
	return names, nil
}
