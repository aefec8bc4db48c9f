package dataset

import (
	"archive/tar"
	"compress/gzip"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// DownloadURL is the canonical location of the CIFAR-100 binary distribution.
const DownloadURL = "https://www.cs.toronto.edu/~kriz/cifar-100-binary.tar.gz"

// binDirName is the directory the archive unpacks to.
const binDirName = "cifar-100-binary"

// requiredFiles are the archive members the loaders depend on.
var requiredFiles = []string{"train.bin", "test.bin", "fine_label_names.txt"}

// DownloadIfMissing fetches and unpacks the CIFAR-100 binaries under dataDir
// unless they are already present. It is safe to call before every load.
func DownloadIfMissing(dataDir string) error {
	if hasAllFiles(dataDir) {
		return nil
	}

	klog.Infof("downloading CIFAR-100 from %s", DownloadURL)
	resp, err := http.Get(DownloadURL)
	if err != nil {
		return errors.Wrap(err, "download CIFAR-100")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("download CIFAR-100: unexpected status %s", resp.Status)
	}

	if err := untar(resp.Body, dataDir); err != nil {
		return err
	}
	if !hasAllFiles(dataDir) {
		return errors.Errorf("archive from %s did not contain the expected files", DownloadURL)
	}
	klog.Infof("CIFAR-100 unpacked under %s", filepath.Join(dataDir, binDirName))
	return nil
}

func hasAllFiles(dataDir string) bool {
	for _, name := range requiredFiles {
		if _, err := os.Stat(filepath.Join(dataDir, binDirName, name)); err != nil {
			return false
		}
	}
	return true
}

// untar unpacks the gzipped tar stream into dataDir, keeping only regular
// files and flattening nothing: the archive's own cifar-100-binary/ prefix is
// preserved.
func untar(r io.Reader, dataDir string) error {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return errors.Wrap(err, "open gzip stream")
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "read tar stream")
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}

		// Reject entries that would escape dataDir.
		target := filepath.Join(dataDir, filepath.Clean(hdr.Name))
		if !filepath.IsLocal(hdr.Name) {
			return errors.Errorf("archive member %q escapes target directory", hdr.Name)
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return errors.Wrapf(err, "create directory for %s", target)
		}

		out, err := os.Create(target)
		if err != nil {
			return errors.Wrapf(err, "create %s", target)
		}
		if _, err := io.Copy(out, tr); err != nil {
			out.Close()
			return errors.Wrapf(err, "write %s", target)
		}
		if err := out.Close(); err != nil {
			return errors.Wrapf(err, "close %s", target)
		}
	}
}
