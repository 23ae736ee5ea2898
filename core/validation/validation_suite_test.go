package validation

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imagestream/core"
)

func validConfig(t *testing.T, url string) *core.Config {
	t.Helper()
	return &core.Config{
		ImageAPIURL:     url + "/api/images/generations",
		UpstreamBaseURL: url,
		Provider:        core.ProviderGeneric,
		Defaults: core.GenerationDefaults{
			Model: core.DefaultModel, Size: core.DefaultSize, Count: 1,
			GuidanceScale: core.DefaultGuidanceScale, Steps: core.DefaultSteps, Strength: core.DefaultStrength,
		},
		BackfillMaxConcurrent: 1,
		AITimeout:             30 * time.Second,
		DownloadsDir:          filepath.Join(t.TempDir(), "downloads"),
		Port:                  core.DefaultPort,
	}
}

func statuses(r SuiteResult) map[string]StepStatus {
	out := make(map[string]StepStatus, len(r.Steps))
	for _, s := range r.Steps {
		out[s.Name] = s.Status
	}
	return out
}

func TestSuite_AllReachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()
	cfg := validConfig(t, srv.URL)
	cfg.ImageAPIKey = "k"

	var out bytes.Buffer
	result := NewSuite(cfg).WithOutput(&out).WithMinFreeBytes(1).Validate(context.Background(), cfg)

	assert.True(t, result.Success, out.String())
	assert.Equal(t, 5, result.Passed)
	assert.Contains(t, out.String(), "Preflight Passed")
	assert.Empty(t, result.Errors())
}

func TestSuite_MissingKeyIsWarning(t *testing.T) {
	cfg := validConfig(t, "http://127.0.0.1:1")

	result := NewSuite(cfg).WithShowProgress(false).WithSkipNetwork(true).WithMinFreeBytes(1).
		Validate(context.Background(), cfg)

	assert.True(t, result.Success)
	assert.Equal(t, StepWarning, statuses(result)["API Key"])
	assert.Equal(t, 2, result.Skipped)
	assert.Equal(t, "Preflight passed: 2/5 checks passed, 1 warnings, 2 skipped", result.Summary())
}

func TestSuite_InvalidConfigSkipsNetwork(t *testing.T) {
	cfg := validConfig(t, "http://127.0.0.1:1")
	cfg.Defaults.Count = 0

	result := NewSuite(cfg).WithShowProgress(false).WithMinFreeBytes(1).Validate(context.Background(), cfg)

	require.False(t, result.Success)
	st := statuses(result)
	assert.Equal(t, StepFailed, st["Configuration"])
	assert.Equal(t, StepSkipped, st["Image API Connectivity"])
	assert.Equal(t, StepSkipped, st["Upstream Connectivity"])
}

func TestSuite_UnreachableUpstreamFails(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	cfg := validConfig(t, srv.URL)
	srv.Close()

	result := NewSuite(cfg).WithShowProgress(false).WithTimeout(2*time.Second).WithMinFreeBytes(1).
		Validate(context.Background(), cfg)

	assert.False(t, result.Success)
	assert.Equal(t, 2, result.Failed)
	assert.Len(t, result.Errors(), 2)
}

func TestSuite_LowDiskSpaceWarns(t *testing.T) {
	cfg := validConfig(t, "http://127.0.0.1:1")

	result := NewSuite(cfg).WithShowProgress(false).WithSkipNetwork(true).WithMinFreeBytes(1<<62).
		Validate(context.Background(), cfg)

	assert.Equal(t, StepWarning, statuses(result)["Downloads Directory"])
	assert.True(t, result.Success)
}

func TestStepStatus_String(t *testing.T) {
	assert.Equal(t, "passed", StepPassed.String())
	assert.Equal(t, "skipped", StepSkipped.String())
	assert.Equal(t, "unknown", StepStatus(42).String())
}
