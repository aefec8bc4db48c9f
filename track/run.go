package track

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/types/known/structpb"
)

// Run is a handle to one registered training run. The zero value is a
// disabled run whose methods all succeed without doing anything.
type Run struct {
	client *Client
	id     string
	url    string
}

// ID returns the run identifier assigned by the service.
func (r *Run) ID() string { return r.id }

// URL returns the run's dashboard URL, when the service reported one.
func (r *Run) URL() string { return r.url }

func (r *Run) disabled() bool { return r.client == nil }

// Watch registers a model for gradient and parameter logging on this run.
func (r *Run) Watch(model string) error {
	if r.disabled() {
		return nil
	}
	payload, err := structpb.NewStruct(map[string]any{
		"model": model,
		"log":   "all",
	})
	if err != nil {
		return errors.Wrap(err, "failed to build watch payload")
	}
	if _, err := r.client.postStruct("/api/runs/"+r.id+"/watch", payload); err != nil {
		return errors.Wrap(err, "failed to register watch")
	}
	return nil
}

// LogEpoch streams one epoch's metric row. Accuracies are percentages.
func (r *Run) LogEpoch(epoch int, trainLoss, trainAcc, valLoss, valAcc, lr float64) error {
	if r.disabled() {
		return nil
	}
	payload, err := structpb.NewStruct(map[string]any{
		"epoch":      epoch,
		"train_loss": trainLoss,
		"train_acc":  trainAcc,
		"val_loss":   valLoss,
		"val_acc":    valAcc,
		"lr":         lr,
	})
	if err != nil {
		return errors.Wrap(err, "failed to build metrics payload")
	}
	if _, err := r.client.postStruct("/api/runs/"+r.id+"/log", payload); err != nil {
		return errors.Wrapf(err, "failed to log epoch %d", epoch)
	}
	return nil
}

// UploadArtifact mirrors a local file into the run's artifact store.
func (r *Run) UploadArtifact(name, path string) error {
	if r.disabled() {
		return nil
	}

	file, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "failed to open artifact %s", path)
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if err := writer.WriteField("name", name); err != nil {
		return errors.Wrap(err, "failed to write artifact name")
	}
	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return errors.Wrap(err, "failed to create artifact part")
	}
	if _, err := io.Copy(part, file); err != nil {
		return errors.Wrap(err, "failed to copy artifact data")
	}
	if err := writer.Close(); err != nil {
		return errors.Wrap(err, "failed to finalize artifact body")
	}

	req, err := http.NewRequest(http.MethodPost, r.client.config.BaseURL+"/api/runs/"+r.id+"/artifacts", &body)
	if err != nil {
		return errors.Wrap(err, "failed to create artifact request")
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("User-Agent", "go-cifar-training")

	resp, err := r.client.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to upload artifact")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("artifact upload failed with status %d", resp.StatusCode)
	}
	return nil
}

// Finish marks the run complete. The run handle must not be used afterwards.
func (r *Run) Finish() error {
	if r.disabled() {
		return nil
	}
	payload, err := structpb.NewStruct(map[string]any{"state": "finished"})
	if err != nil {
		return errors.Wrap(err, "failed to build finish payload")
	}
	if _, err := r.client.postStruct("/api/runs/"+r.id+"/finish", payload); err != nil {
		return errors.Wrap(err, "failed to finish run")
	}
	return nil
}
