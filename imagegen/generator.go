package imagegen

import (
	"context"
	"errors"
	"fmt"
	"time"

	"imagestream/core"
	"imagestream/logging"
	"imagestream/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Controls is the caller's interactive state around a generation, such as a
// form whose inputs are disabled while a run is in flight. End is always
// called once Begin has been.
type Controls interface {
	Begin()
	End()
}

// GeneratorConfig holds the pipeline tuning knobs.
type GeneratorConfig struct {
	// DeliveryInterval is the pause before each delivered item. Zero disables pacing.
	DeliveryInterval time.Duration

	// BackfillMaxConcurrent bounds in-flight backfill requests. Zero means unbounded.
	BackfillMaxConcurrent int

	// BackfillInterval spaces backfill request starts. Zero disables pacing.
	BackfillInterval time.Duration
}

// DefaultGeneratorConfig returns sensible default configuration.
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		DeliveryInterval:      DefaultDeliveryInterval,
		BackfillMaxConcurrent: 4,
	}
}

// GeneratorConfigFromCore copies the pipeline settings out of cfg.
func GeneratorConfigFromCore(cfg *core.Config) GeneratorConfig {
	return GeneratorConfig{
		DeliveryInterval:      cfg.DeliveryInterval,
		BackfillMaxConcurrent: cfg.BackfillMaxConcurrent,
		BackfillInterval:      cfg.BackfillInterval,
	}
}

// ParamsFromDefaults seeds Params from configured defaults; callers then
// overwrite the fields the user supplied.
func ParamsFromDefaults(d core.GenerationDefaults) Params {
	return Params{
		Model:         d.Model,
		Count:         d.Count,
		Size:          d.Size,
		GuidanceScale: d.GuidanceScale,
		Steps:         d.Steps,
		Strength:      d.Strength,
	}
}

// Generator runs the whole pipeline: validate, resolve size, build, post,
// normalize, backfill and deliver.
//
// Thread-Safety: Generate may be called concurrently; each call gets its own
// delivery scheduler and correlation ID. The sink must tolerate concurrent
// runs if Generate is used that way.
type Generator struct {
	transport Transport
	probe     Probe
	sink      Sink
	controls  Controls
	recorder  Recorder
	logger    *logging.Logger
	config    GeneratorConfig
}

// Option customizes a Generator.
type Option func(*Generator)

// WithProbe sets the dimension probe used for "auto" size.
func WithProbe(p Probe) Option {
	return func(g *Generator) { g.probe = p }
}

// WithSink sets where delivered images go.
func WithSink(s Sink) Option {
	return func(g *Generator) { g.sink = s }
}

// WithControls sets the caller state toggled around each run.
func WithControls(c Controls) Option {
	return func(g *Generator) { g.controls = c }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(g *Generator) { g.recorder = r }
}

// NewGenerator creates a Generator.
//
// Example:
//
//	transport, _ := NewHTTPTransportFromConfig(cfg)
//	gen, err := NewGenerator(transport, logger, GeneratorConfigFromCore(cfg),
//	    WithSink(NewConsoleSink(os.Stdout)))
//	result, err := gen.Generate(ctx, params, refs)
func NewGenerator(transport Transport, logger *logging.Logger, config GeneratorConfig, opts ...Option) (*Generator, error) {
	if transport == nil {
		return nil, fmt.Errorf("imagegen: transport cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("imagegen: logger cannot be nil")
	}

	g := &Generator{
		transport: transport,
		logger:    logger.Named("generator"),
		config:    config,
	}
	for _, opt := range opts {
		opt(g)
	}

	if g.probe == nil {
		g.probe = NewCachingProbe(DecodeProbe{}, 10*time.Minute)
	}
	if g.sink == nil {
		g.sink = DiscardSink{}
	}
	if g.recorder == nil {
		g.recorder = nopRecorder{}
	}
	return g, nil
}

// NewTransportFromConfig selects the transport named by cfg.Provider.
func NewTransportFromConfig(cfg *core.Config, logger *logging.Logger) (Transport, error) {
	if cfg == nil {
		return nil, fmt.Errorf("imagegen: config cannot be nil")
	}
	switch cfg.Provider {
	case core.ProviderOpenAI:
		return NewOpenAITransport(OpenAITransportConfig{
			APIKey:  cfg.ImageAPIKey,
			BaseURL: openAIBaseURL(cfg.ImageAPIURL),
		}, cfg, logger)
	case core.ProviderGeneric, "":
		return NewHTTPTransportFromConfig(cfg)
	default:
		return nil, fmt.Errorf("imagegen: unknown provider %q", cfg.Provider)
	}
}

// openAIBaseURL accepts either an API base or a full images endpoint.
func openAIBaseURL(endpoint string) string {
	const suffix = "/images/generations"
	if len(endpoint) > len(suffix) && endpoint[len(endpoint)-len(suffix):] == suffix {
		return endpoint[:len(endpoint)-len(suffix)]
	}
	return endpoint
}

// NewGeneratorFromConfig assembles a Generator with the transport selected by
// cfg.Provider and the pipeline settings of cfg.
func NewGeneratorFromConfig(cfg *core.Config, logger *logging.Logger, opts ...Option) (*Generator, error) {
	if logger == nil {
		return nil, fmt.Errorf("imagegen: logger cannot be nil")
	}
	transport, err := NewTransportFromConfig(cfg, logger)
	if err != nil {
		return nil, err
	}
	logger.Named("generator-init").Info("image transport selected",
		zap.String("provider", cfg.Provider),
		zap.String("endpoint", cfg.ImageAPIURL))
	return NewGenerator(transport, logger, GeneratorConfigFromCore(cfg), opts...)
}

// Result describes one finished (or cancelled) generation.
type Result struct {
	CorrelationID string `json:"correlation_id"`

	Requested    int            `json:"requested"`
	Size         string         `json:"size"`
	SizeFallback bool           `json:"size_fallback"`
	Resolution   SizeResolution `json:"-"`

	// Primary is the number of images in the first response before truncation.
	Primary  int            `json:"primary"`
	Backfill BackfillReport `json:"backfill"`
	Batch    Batch          `json:"batch"`

	Progress Progress      `json:"progress"`
	State    DeliveryState `json:"-"`
	Partial  bool          `json:"partial"`
	Duration time.Duration `json:"duration"`
}

// Generate runs one generation end to end, delivering to the configured sink.
// Validation errors are returned before any probe or network call. A
// response with no recognisable images returns ErrNoImages. Under-delivery
// after backfill is reported through Result.Partial, not as an error.
//
// When ctx is cancelled during delivery, the partial Result is returned
// together with ctx.Err().
func (g *Generator) Generate(ctx context.Context, params Params, refs []ReferenceImage) (*Result, error) {
	return g.GenerateTo(ctx, params, refs, g.sink)
}

// GenerateTo is Generate with a per-run sink. A correlation ID already set on
// ctx with WithCorrelationID is reused; otherwise a new one is assigned.
func (g *Generator) GenerateTo(ctx context.Context, params Params, refs []ReferenceImage, sink Sink) (result *Result, err error) {
	start := time.Now()
	id, ok := correlationID(ctx)
	if !ok {
		id = uuid.NewString()
		ctx = WithCorrelationID(ctx, id)
	}
	if sink == nil {
		sink = DiscardSink{}
	}
	log := g.logger.With(zap.String("correlation_id", id))

	if g.controls != nil {
		g.controls.Begin()
		defer g.controls.End()
	}

	defer func() {
		requested, delivered := params.Count, 0
		if result != nil {
			result.Duration = time.Since(start)
			delivered = result.Progress.Succeeded
		}
		g.recorder.ObserveGeneration(id, outcomeOf(ctx, result, err), requested, delivered, time.Since(start))
	}()

	log.Info("starting image generation",
		zap.String("prompt_preview", truncateText(params.Prompt, 50)),
		zap.String("model", params.Model),
		zap.Int("count", params.Count),
		zap.String("size", params.Size),
		zap.Int("references", len(refs)))

	if err := Validate(params); err != nil {
		log.Warn("invalid parameters", zap.Error(err))
		return nil, err
	}

	res := ResolveSize(ctx, params.Size, refs, g.probe)
	if !res.Resolved() {
		if res.Err != nil {
			log.Warn("reference image size detection failed; using fallback",
				zap.String("fallback", FallbackSize), zap.Error(res.Err))
		} else {
			log.Warn("auto size pending with no reference image; using fallback",
				zap.String("fallback", FallbackSize))
		}
		res = res.Force()
	}
	log.Debug("size resolved", zap.String("size", res.Describe()))

	spec, err := Build(params, refs, res.Size)
	if err != nil {
		return nil, err
	}

	result = &Result{
		CorrelationID: id,
		Requested:     spec.Count,
		Size:          spec.Size,
		SizeFallback:  res.Fallback,
		Resolution:    res,
	}

	raw, err := g.transport.Post(ctx, spec.Payload())
	if err != nil {
		log.Error("generation request failed", zap.Error(err))
		return nil, fmt.Errorf("imagegen: generation request failed: %w", err)
	}

	primary := NormalizeJSON(raw)
	if len(primary) == 0 {
		log.Error("response contained no images", zap.Int("response_bytes", len(raw)))
		return nil, ErrNoImages
	}
	result.Primary = len(primary)
	g.recorder.ObserveImagesReceived(len(primary))
	log.Info("primary response normalized", zap.Int("images", len(primary)))

	single := spec.Single().Payload()
	issue := func(ctx context.Context) (Batch, error) {
		raw, err := g.transport.Post(ctx, single)
		if err != nil {
			return nil, err
		}
		return NormalizeJSON(raw), nil
	}

	backfill := NewBackfillCoordinator(g.config.BackfillMaxConcurrent, g.config.BackfillInterval, log, g.recorder)
	final, report := backfill.EnsureCount(ctx, primary, spec.Count, issue)
	result.Batch = final
	result.Backfill = report
	result.Partial = report.Partial

	scheduler := NewDeliveryScheduler(g.config.DeliveryInterval, log, g.recorder)
	progress, err := scheduler.Deliver(ctx, final, sink)
	result.Progress = progress
	result.State = scheduler.State()
	if err != nil {
		return result, err
	}

	log.Info("generation complete",
		zap.Int("requested", result.Requested),
		zap.Int("delivered", progress.Succeeded),
		zap.Int("attempted", progress.Attempted),
		zap.Bool("partial", result.Partial))
	return result, nil
}

func outcomeOf(ctx context.Context, r *Result, err error) string {
	switch {
	case err == nil && r != nil && r.Partial:
		return metrics.OutcomePartial
	case err == nil:
		return metrics.OutcomeSuccess
	case ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		return metrics.OutcomeCancelled
	case IsValidationError(err):
		return metrics.OutcomeValidation
	case errors.Is(err, ErrNoImages):
		return metrics.OutcomeNoImages
	default:
		return metrics.OutcomeTransport
	}
}
