package cmd

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"imagestream/core"
	"imagestream/imagegen"
	"imagestream/shutdown"
)

type generateOptions struct {
	prompt   string
	model    string
	size     string
	count    int
	guidance float64
	steps    int
	strength float64
	refs     []string
	preset   string
	save     bool
	outDir   string
}

func newGenerateCmd() *cobra.Command {
	opts := &generateOptions{}
	cmd := &cobra.Command{
		Use:   "generate [prompt]",
		Short: "Generate images and print each one as it is delivered",
		Example: `  imagestream generate --prompt "a lighthouse at dusk" --count 4
  imagestream generate "same scene, watercolor" --ref photo.png --size auto --save`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.prompt == "" {
				opts.prompt = strings.Join(args, " ")
			}
			return runGenerate(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.prompt, "prompt", "p", "", "Text prompt (positional arguments are used when empty)")
	f.StringVarP(&opts.model, "model", "m", "", "Model name (default IMAGE_MODEL)")
	f.StringVar(&opts.size, "size", "", `Image size "WxH" or "auto" (default IMAGE_SIZE)`)
	f.IntVarP(&opts.count, "count", "n", 0, "Number of images, 1-20 (default IMAGE_COUNT)")
	f.Float64Var(&opts.guidance, "guidance", 0, "Guidance scale (default IMAGE_GUIDANCE_SCALE)")
	f.IntVar(&opts.steps, "steps", 0, "Inference steps (default IMAGE_STEPS)")
	f.Float64Var(&opts.strength, "strength", 0, "Reference image strength 0.0-1.0 (default IMAGE_STRENGTH)")
	f.StringArrayVar(&opts.refs, "ref", nil, "Reference image file (repeatable)")
	f.StringVar(&opts.preset, "preset", "", "YAML preset applied over the environment defaults")
	f.BoolVar(&opts.save, "save", false, "Save delivered images to DOWNLOADS_DIR")
	f.StringVarP(&opts.outDir, "out", "o", "", "Save delivered images to this directory (implies --save)")
	return cmd
}

// params layers the preset and then explicitly set flags over the env defaults.
func (o *generateOptions) params(cmd *cobra.Command, defaults core.GenerationDefaults) (imagegen.Params, error) {
	if o.preset != "" {
		preset, err := core.LoadPreset(o.preset)
		if err != nil {
			return imagegen.Params{}, err
		}
		defaults = preset.Apply(defaults)
	}

	p := imagegen.ParamsFromDefaults(defaults)
	p.Prompt = o.prompt
	f := cmd.Flags()
	if f.Changed("model") {
		p.Model = o.model
	}
	if f.Changed("size") {
		p.Size = o.size
	}
	if f.Changed("count") {
		p.Count = o.count
	}
	if f.Changed("guidance") {
		p.GuidanceScale = o.guidance
	}
	if f.Changed("steps") {
		p.Steps = o.steps
	}
	if f.Changed("strength") {
		p.Strength = o.strength
	}
	return p, nil
}

func (o *generateOptions) references() ([]imagegen.ReferenceImage, error) {
	refs := make([]imagegen.ReferenceImage, 0, len(o.refs))
	for _, path := range o.refs {
		ref, err := imagegen.ReferenceImageFromFile(path)
		if err != nil {
			return nil, withExitCode(core.ExitCodeUsage, err)
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

func runGenerate(cmd *cobra.Command, opts *generateOptions) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	params, err := opts.params(cmd, cfg.Defaults)
	if err != nil {
		return err
	}
	if err := imagegen.Validate(params); err != nil {
		return err
	}
	refs, err := opts.references()
	if err != nil {
		return err
	}

	logger, err := newLogger(cmd, cfg)
	if err != nil {
		return err
	}
	log := logger.Named("generate")

	m := shutdown.NewManager(cmd.Context(), log)
	m.Register("logger", 90, syncLogger(logger))
	m.Start()
	defer func() { _ = m.Shutdown() }()

	out := cmd.OutOrStdout()
	console := imagegen.NewConsoleSink(out)
	sinks := imagegen.MultiSink{console}

	var files *imagegen.FileSink
	if opts.save || opts.outDir != "" {
		if opts.outDir != "" {
			cfg.DownloadsDir = opts.outDir
		}
		downloader, err := imagegen.NewDownloader(cfg)
		if err != nil {
			return err
		}
		files = imagegen.NewFileSink(downloader, log)
		sinks = append(sinks, files)
	}

	gen, err := imagegen.NewGeneratorFromConfig(cfg, log)
	if err != nil {
		return err
	}

	result, err := gen.GenerateTo(m.Context(), params, refs, sinks)
	console.Summary(result)
	if files != nil {
		printSaved(cmd, files)
	}

	if err != nil {
		if code := m.ExitCode(); code != core.ExitCodeSuccess {
			log.Info("Generation interrupted", zap.String("exit", core.ExitCodeName(code)))
			return withExitCode(code, err)
		}
		return err
	}
	return nil
}

func printSaved(cmd *cobra.Command, files *imagegen.FileSink) {
	saved := files.Saved()
	if len(saved) == 0 {
		return
	}
	out := cmd.OutOrStdout()
	color.New(color.FgCyan).Fprintf(out, "Saved %d file(s), %s\n", len(saved), core.FormatBytes(files.BytesWritten()))
	for _, path := range saved {
		fmt.Fprintf(out, "  %s\n", path)
	}
}
