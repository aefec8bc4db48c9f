// Package track is a client for an experiment-tracking service: it registers
// runs, streams per-epoch metrics and mirrors checkpoint artifacts, in the
// manner of wandb. A client with no base URL is disabled and every call
// becomes a no-op, so training code never branches on whether tracking is on.
package track

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// Config contains configuration for the tracking client.
type Config struct {
	BaseURL       string        `json:"base_url"`
	Project       string        `json:"project"`
	Timeout       time.Duration `json:"timeout"`
	RetryAttempts int           `json:"retry_attempts"`
	RetryDelay    time.Duration `json:"retry_delay"`
}

// DefaultConfig returns the default client configuration. The empty BaseURL
// leaves the client disabled until one is set.
func DefaultConfig() Config {
	return Config{
		Timeout:       30 * time.Second,
		RetryAttempts: 3,
		RetryDelay:    1 * time.Second,
	}
}

// Client talks to the tracking service.
type Client struct {
	config     Config
	httpClient *http.Client
}

// NewClient creates a tracking client. A config without a BaseURL yields a
// disabled client.
func NewClient(config Config) *Client {
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.RetryAttempts <= 0 {
		config.RetryAttempts = 1
	}
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// Enabled reports whether the client talks to a real service.
func (c *Client) Enabled() bool {
	return c.config.BaseURL != ""
}

// apiResponse is the service's envelope for every endpoint.
type apiResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	RunID     string `json:"run_id,omitempty"`
	RunURL    string `json:"run_url,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
}

// StartRun registers a new run under the client's project and returns a
// handle for logging into it. runConfig is recorded verbatim as the run's
// hyperparameter set.
func (c *Client) StartRun(name string, runConfig map[string]any) (*Run, error) {
	if !c.Enabled() {
		return &Run{}, nil
	}

	payload, err := structpb.NewStruct(map[string]any{
		"project": c.config.Project,
		"name":    name,
		"config":  runConfig,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to build run payload")
	}

	resp, err := c.postStruct("/api/runs", payload)
	if err != nil {
		return nil, errors.Wrap(err, "failed to start run")
	}
	if resp.RunID == "" {
		return nil, errors.Errorf("tracking service returned no run id: %s", resp.Message)
	}
	return &Run{client: c, id: resp.RunID, url: resp.RunURL}, nil
}

// CheckHealth checks whether the tracking service is reachable.
func (c *Client) CheckHealth() error {
	if !c.Enabled() {
		return errors.New("tracking client is disabled")
	}

	req, err := http.NewRequest(http.MethodGet, c.config.BaseURL+"/health", nil)
	if err != nil {
		return errors.Wrap(err, "failed to create health check request")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to send health check request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("health check failed with status %d", resp.StatusCode)
	}
	return nil
}

// postStruct sends a protobuf Struct payload as JSON, retrying transient
// failures per the client config.
func (c *Client) postStruct(path string, payload *structpb.Struct) (*apiResponse, error) {
	body, err := protojson.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal payload")
	}

	var lastErr error
	for attempt := 0; attempt < c.config.RetryAttempts; attempt++ {
		resp, err := c.post(path, body)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if attempt < c.config.RetryAttempts-1 {
			time.Sleep(c.config.RetryDelay)
		}
	}
	return nil, errors.Wrapf(lastErr, "failed after %d attempts", c.config.RetryAttempts)
}

func (c *Client) post(path string, body []byte) (*apiResponse, error) {
	req, err := http.NewRequest(http.MethodPost, c.config.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "go-cifar-training")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response body")
	}

	var parsed apiResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, errors.Wrap(err, "failed to parse response")
	}
	if resp.StatusCode != http.StatusOK {
		return &parsed, fmt.Errorf("request failed with status %d: %s", resp.StatusCode, parsed.Message)
	}
	return &parsed, nil
}
