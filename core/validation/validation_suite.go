package validation

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"

	"imagestream/core"
)

// StepStatus is the outcome of a single preflight step.
type StepStatus int

const (
	StepPassed StepStatus = iota
	StepFailed
	StepWarning
	StepSkipped
)

func (s StepStatus) String() string {
	switch s {
	case StepPassed:
		return "passed"
	case StepFailed:
		return "failed"
	case StepWarning:
		return "warning"
	case StepSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Step is one executed preflight check.
type Step struct {
	Name    string
	Status  StepStatus
	Message string
	Error   error
	Latency time.Duration
}

// SuiteResult aggregates the steps of one Suite run.
type SuiteResult struct {
	Steps    []Step
	Passed   int
	Failed   int
	Warnings int
	Skipped  int
	Duration time.Duration
	Success  bool
}

// Suite runs the `check` preflight: configuration, credentials, the downloads
// directory and reachability of the image endpoint and the proxy upstream.
// Warnings never fail the suite.
type Suite struct {
	output       io.Writer
	connectivity *ConnectivityChecker
	minFree      int64
	showProgress bool
	skipNetwork  bool
}

// NewSuite creates a Suite printing to stdout.
func NewSuite(cfg *core.Config) *Suite {
	return &Suite{
		output:       os.Stdout,
		connectivity: NewConnectivityChecker(cfg),
		minFree:      DefaultMinFreeBytes,
		showProgress: true,
	}
}

// WithOutput sets the writer progress lines go to.
func (s *Suite) WithOutput(w io.Writer) *Suite {
	s.output = w
	return s
}

// WithTimeout sets the timeout for each network check.
func (s *Suite) WithTimeout(timeout time.Duration) *Suite {
	s.connectivity.WithTimeout(timeout)
	return s
}

// WithMinFreeBytes sets the free space below which the downloads step warns.
func (s *Suite) WithMinFreeBytes(n int64) *Suite {
	s.minFree = n
	return s
}

// WithShowProgress enables or disables printed output.
func (s *Suite) WithShowProgress(show bool) *Suite {
	s.showProgress = show
	return s
}

// WithSkipNetwork marks both connectivity steps as skipped.
func (s *Suite) WithSkipNetwork(skip bool) *Suite {
	s.skipNetwork = skip
	return s
}

// Validate runs every step in order and returns the aggregated result.
func (s *Suite) Validate(ctx context.Context, cfg *core.Config) SuiteResult {
	start := time.Now()
	steps := make([]Step, 0, 5)

	if s.showProgress {
		s.printHeader("imagestream preflight")
	}

	configStep := s.run("Configuration", func() Step {
		if err := cfg.Validate(); err != nil {
			return Step{Status: StepFailed, Message: "invalid settings", Error: err}
		}
		return Step{Status: StepPassed, Message: fmt.Sprintf("provider %s, model %s", cfg.Provider, cfg.Defaults.Model)}
	})
	steps = append(steps, configStep)

	steps = append(steps, s.run("API Key", func() Step {
		if cfg.ImageAPIKey != "" {
			return Step{Status: StepPassed, Message: "configured"}
		}
		if cfg.Provider == core.ProviderOpenAI {
			return Step{Status: StepFailed, Message: "required for the openai provider", Error: core.ErrMissingAuth(core.ProviderOpenAI)}
		}
		return Step{Status: StepWarning, Message: "not set; relying on the proxy's upstream key"}
	}))

	steps = append(steps, s.run("Downloads Directory", func() Step {
		return s.checkDownloads(cfg.DownloadsDir)
	}))

	network := []struct {
		name string
		env  string
		url  string
	}{
		{"Image API Connectivity", "IMAGE_API_URL", cfg.ImageAPIURL},
		{"Upstream Connectivity", "UPSTREAM_BASE_URL", cfg.UpstreamBaseURL},
	}
	for _, n := range network {
		if s.skipNetwork || configStep.Status == StepFailed {
			reason := "skipped due to configuration errors"
			if s.skipNetwork {
				reason = "network checks disabled"
			}
			steps = append(steps, s.skip(n.name, reason))
			continue
		}
		steps = append(steps, s.run(n.name, func() Step {
			res := s.connectivity.Check(ctx, n.env, n.url)
			if !res.Reachable {
				return Step{Status: StepFailed, Message: res.Message, Error: res.Error}
			}
			return Step{Status: StepPassed, Message: fmt.Sprintf("%s in %s", res.Message, core.FormatDuration(res.Latency))}
		}))
	}

	result := buildResult(steps, time.Since(start))
	if s.showProgress {
		s.printSummary(result)
	}
	return result
}

func (s *Suite) checkDownloads(dir string) Step {
	if dir == "" {
		return Step{Status: StepSkipped, Message: "no downloads directory configured"}
	}
	if err := CheckWritable(dir); err != nil {
		return Step{Status: StepFailed, Message: "not writable", Error: err}
	}
	info, err := GetDiskSpace(dir)
	if err != nil {
		return Step{Status: StepWarning, Message: "free space unknown", Error: err}
	}
	if info.Free < s.minFree {
		err := &DiskSpaceError{Path: info.Path, Required: s.minFree, Available: info.Free}
		return Step{Status: StepWarning, Message: "low disk space", Error: err}
	}
	return Step{Status: StepPassed, Message: fmt.Sprintf("%s free", core.FormatBytes(info.Free))}
}

func (s *Suite) run(name string, fn func() Step) Step {
	start := time.Now()
	step := fn()
	step.Name = name
	step.Latency = time.Since(start)
	if s.showProgress {
		s.printStep(step)
	}
	return step
}

func (s *Suite) skip(name, reason string) Step {
	step := Step{Name: name, Status: StepSkipped, Message: reason}
	if s.showProgress {
		s.printStep(step)
	}
	return step
}

func buildResult(steps []Step, d time.Duration) SuiteResult {
	r := SuiteResult{Steps: steps, Duration: d, Success: true}
	for _, step := range steps {
		switch step.Status {
		case StepPassed:
			r.Passed++
		case StepFailed:
			r.Failed++
			r.Success = false
		case StepWarning:
			r.Warnings++
		case StepSkipped:
			r.Skipped++
		}
	}
	return r
}

func (s *Suite) printHeader(title string) {
	fmt.Fprintln(s.output)
	color.New(color.FgCyan, color.Bold).Fprintf(s.output, "━━━ %s ━━━\n", title)
	fmt.Fprintln(s.output)
}

func (s *Suite) printStep(step Step) {
	icon, clr := "✓", color.New(color.FgGreen)
	switch step.Status {
	case StepFailed:
		icon, clr = "✗", color.New(color.FgRed)
	case StepWarning:
		icon, clr = "!", color.New(color.FgYellow)
	case StepSkipped:
		icon, clr = "○", color.New(color.FgHiBlack)
	}

	clr.Fprintf(s.output, "  %s %s", icon, step.Name)
	if step.Message != "" {
		color.New(color.FgHiBlack).Fprintf(s.output, " - %s", step.Message)
	}
	fmt.Fprintln(s.output)

	if step.Error != nil && step.Status != StepPassed {
		clr.Fprintf(s.output, "    └─ %s\n", step.Error.Error())
	}
}

func (s *Suite) printSummary(r SuiteResult) {
	fmt.Fprintln(s.output)
	if r.Success {
		c := color.New(color.FgGreen, color.Bold)
		c.Fprint(s.output, "━━━ Preflight Passed ")
		color.New(color.FgHiBlack).Fprintf(s.output, "(%d/%d checks passed in %s)",
			r.Passed, len(r.Steps), core.FormatDuration(r.Duration))
		c.Fprintln(s.output, " ━━━")
	} else {
		c := color.New(color.FgRed, color.Bold)
		c.Fprint(s.output, "━━━ Preflight Failed ")
		color.New(color.FgHiBlack).Fprintf(s.output, "(%d passed, %d failed)", r.Passed, r.Failed)
		c.Fprintln(s.output, " ━━━")
	}
	fmt.Fprintln(s.output)
}

// Errors returns the errors of every failed or warning step.
func (r SuiteResult) Errors() []error {
	var errs []error
	for _, step := range r.Steps {
		if step.Error != nil && step.Status != StepPassed {
			errs = append(errs, step.Error)
		}
	}
	return errs
}

// Summary returns a one-line description of the run.
func (r SuiteResult) Summary() string {
	var sb strings.Builder
	if r.Success {
		sb.WriteString("Preflight passed: ")
	} else {
		sb.WriteString("Preflight failed: ")
	}
	fmt.Fprintf(&sb, "%d/%d checks passed", r.Passed, len(r.Steps))
	if r.Failed > 0 {
		fmt.Fprintf(&sb, ", %d failed", r.Failed)
	}
	if r.Warnings > 0 {
		fmt.Fprintf(&sb, ", %d warnings", r.Warnings)
	}
	if r.Skipped > 0 {
		fmt.Fprintf(&sb, ", %d skipped", r.Skipped)
	}
	return sb.String()
}
