package config

import (
	"fmt"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/backends"
	"github.com/janpfeifer/must"

	_ "github.com/gomlx/gomlx/backends/xla" // Registers the XLA backend.
)

// DevicePreference is the probe order used when Device is "auto". The first
// backend that can be constructed wins.
var DevicePreference = []string{"xla:cuda", "xla:cpu"}

// ProbeBackend resolves the compute backend for a run. With device "auto" it
// tries each entry of DevicePreference in order; otherwise it builds exactly
// the requested backend. The backend factory panics when a device is not
// usable, so each attempt runs under TryCatch.
func ProbeBackend(device string) (backends.Backend, string, error) {
	candidates := []string{device}
	if device == "" || device == "auto" {
		candidates = DevicePreference
	}

	var failures []string
	for _, cand := range candidates {
		var backend backends.Backend
		err := exceptions.TryCatch[error](func() {
			backend = must.M1(backends.NewWithConfig(cand))
		})
		if err == nil && backend != nil {
			return backend, cand, nil
		}
		failures = append(failures, fmt.Sprintf("%s: %v", cand, err))
	}
	return nil, "", fmt.Errorf("no usable compute backend (tried %s)", strings.Join(failures, "; "))
}
