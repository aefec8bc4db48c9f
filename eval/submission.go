package eval

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"github.com/pkg/errors"
)

// WriteSubmission writes an id,label CSV with one row per prediction, in
// iteration order.
func WriteSubmission(w io.Writer, ids []string, labels []int32) error {
	if len(ids) != len(labels) {
		return errors.Errorf("id/label length mismatch: %d vs %d", len(ids), len(labels))
	}

	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"id", "label"}); err != nil {
		return errors.Wrap(err, "failed to write header")
	}
	for i, id := range ids {
		if err := writer.Write([]string{id, strconv.Itoa(int(labels[i]))}); err != nil {
			return errors.Wrapf(err, "failed to write row %d", i)
		}
	}
	writer.Flush()
	return errors.Wrap(writer.Error(), "failed to flush submission")
}

// SaveSubmission writes the submission CSV to path.
func SaveSubmission(path string, ids []string, labels []int32) error {
	file, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", path)
	}
	defer file.Close()
	return WriteSubmission(file, ids, labels)
}
