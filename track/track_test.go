package track

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client := NewClient(Config{
		BaseURL:       server.URL,
		Project:       "cifar-100",
		Timeout:       time.Second,
		RetryAttempts: 1,
	})
	return server, client
}

func TestStartRunSendsProjectAndConfig(t *testing.T) {
	var got map[string]any
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/runs" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type %s", ct)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("failed to parse request body: %v", err)
		}
		json.NewEncoder(w).Encode(apiResponse{Success: true, RunID: "run-42", RunURL: "/runs/run-42"})
	})

	run, err := client.StartRun("simple-cnn", map[string]any{
		"learning_rate": 0.1,
		"epochs":        5,
	})
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	if run.ID() != "run-42" {
		t.Errorf("run id = %q, want run-42", run.ID())
	}

	if got["project"] != "cifar-100" {
		t.Errorf("project = %v, want cifar-100", got["project"])
	}
	if got["name"] != "simple-cnn" {
		t.Errorf("name = %v, want simple-cnn", got["name"])
	}
	cfg, ok := got["config"].(map[string]any)
	if !ok {
		t.Fatalf("config missing from payload: %v", got)
	}
	if cfg["learning_rate"] != 0.1 {
		t.Errorf("learning_rate = %v, want 0.1", cfg["learning_rate"])
	}
}

func TestCheckHealth(t *testing.T) {
	status := http.StatusOK
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.WriteHeader(status)
	})

	if err := client.CheckHealth(); err != nil {
		t.Errorf("healthy service: %v", err)
	}

	status = http.StatusServiceUnavailable
	if err := client.CheckHealth(); err == nil {
		t.Error("expected an error from an unhealthy service")
	}

	disabled := NewClient(DefaultConfig())
	if err := disabled.CheckHealth(); err == nil {
		t.Error("expected an error from a disabled client")
	}
}

func TestLogEpochWireKeys(t *testing.T) {
	var got map[string]any
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/runs" {
			json.NewEncoder(w).Encode(apiResponse{Success: true, RunID: "run-1"})
			return
		}
		if r.URL.Path != "/api/runs/run-1/log" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &got)
		json.NewEncoder(w).Encode(apiResponse{Success: true})
	})

	run, err := client.StartRun("deep-cnn", nil)
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	if err := run.LogEpoch(2, 1.5, 40.0, 1.7, 38.5, 0.05); err != nil {
		t.Fatalf("LogEpoch: %v", err)
	}

	want := map[string]float64{
		"epoch":      2,
		"train_loss": 1.5,
		"train_acc":  40.0,
		"val_loss":   1.7,
		"val_acc":    38.5,
		"lr":         0.05,
	}
	for key, value := range want {
		if got[key] != value {
			t.Errorf("%s = %v, want %v", key, got[key], value)
		}
	}
}

func TestUploadArtifact(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.bin")
	if err := os.WriteFile(path, []byte("weights"), 0o644); err != nil {
		t.Fatal(err)
	}

	var gotName, gotFile, gotData string
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/runs" {
			json.NewEncoder(w).Encode(apiResponse{Success: true, RunID: "run-1"})
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("failed to parse multipart form: %v", err)
		}
		gotName = r.FormValue("name")
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("missing file part: %v", err)
		}
		defer file.Close()
		gotFile = header.Filename
		data, _ := io.ReadAll(file)
		gotData = string(data)
		json.NewEncoder(w).Encode(apiResponse{Success: true})
	})

	run, err := client.StartRun("transfer-cnn", nil)
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	if err := run.UploadArtifact("transfer-cnn", path); err != nil {
		t.Fatalf("UploadArtifact: %v", err)
	}

	if gotName != "transfer-cnn" {
		t.Errorf("artifact name = %q, want transfer-cnn", gotName)
	}
	if gotFile != "model.bin" {
		t.Errorf("file name = %q, want model.bin", gotFile)
	}
	if gotData != "weights" {
		t.Errorf("file data = %q, want weights", gotData)
	}
}

func TestWatchAndFinish(t *testing.T) {
	var paths []string
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		json.NewEncoder(w).Encode(apiResponse{Success: true, RunID: "run-9"})
	})

	run, err := client.StartRun("simple-cnn", nil)
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	if err := run.Watch("simple-cnn"); err != nil {
		t.Fatalf("Watch: %v", err)
	}
	if err := run.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	want := []string{"/api/runs", "/api/runs/run-9/watch", "/api/runs/run-9/finish"}
	if len(paths) != len(want) {
		t.Fatalf("paths = %v, want %v", paths, want)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Errorf("path %d = %q, want %q", i, paths[i], want[i])
		}
	}
}

func TestDisabledClientNoOps(t *testing.T) {
	client := NewClient(DefaultConfig())
	if client.Enabled() {
		t.Fatal("client without base URL should be disabled")
	}

	run, err := client.StartRun("simple-cnn", map[string]any{"epochs": 5})
	if err != nil {
		t.Fatalf("StartRun on disabled client: %v", err)
	}
	if err := run.Watch("simple-cnn"); err != nil {
		t.Errorf("disabled Watch: %v", err)
	}
	if err := run.LogEpoch(0, 1, 2, 3, 4, 5); err != nil {
		t.Errorf("disabled LogEpoch: %v", err)
	}
	if err := run.UploadArtifact("x", "/nonexistent"); err != nil {
		t.Errorf("disabled UploadArtifact: %v", err)
	}
	if err := run.Finish(); err != nil {
		t.Errorf("disabled Finish: %v", err)
	}
}

func TestStartRunRetries(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(apiResponse{Success: false, Message: "busy"})
			return
		}
		json.NewEncoder(w).Encode(apiResponse{Success: true, RunID: "run-7"})
	}))
	defer server.Close()

	client := NewClient(Config{
		BaseURL:       server.URL,
		Project:       "cifar-100",
		Timeout:       time.Second,
		RetryAttempts: 3,
		RetryDelay:    time.Millisecond,
	})

	run, err := client.StartRun("simple-cnn", nil)
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	if run.ID() != "run-7" {
		t.Errorf("run id = %q, want run-7", run.ID())
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}
