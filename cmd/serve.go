package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"imagestream/core"
	"imagestream/imagegen"
	"imagestream/metrics"
	"imagestream/shutdown"
	"imagestream/webui"
)

// generationHistory is how many finished generations /api/generations keeps.
const generationHistory = 200

func newServeCmd() *cobra.Command {
	var (
		host    string
		port    int
		noProxy bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the upstream proxy, the generate API and the WebSocket stream",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = port
				if err := cfg.Validate(); err != nil {
					return err
				}
			}
			logger, err := newLogger(cmd, cfg)
			if err != nil {
				return err
			}

			collector := metrics.NewCollector(metrics.NewStore(generationHistory, time.Now()))
			gen, err := imagegen.NewGeneratorFromConfig(cfg, logger, imagegen.WithRecorder(collector))
			if err != nil {
				return err
			}

			deps := webui.ServerDeps{
				Generator: gen,
				Collector: collector,
				Defaults:  cfg.Defaults,
			}
			if !noProxy {
				deps.Proxy = webui.NewImageProxyFromConfig(cfg, logger)
			}

			serverCfg := webui.ServerConfigFromCore(cfg)
			serverCfg.Host = host
			srv, err := webui.NewServer(serverCfg, deps, logger)
			if err != nil {
				return err
			}

			m := shutdown.NewManager(cmd.Context(), logger,
				shutdown.WithTimeout(serverCfg.ShutdownTimeout+5*time.Second))
			m.Register("http", 10, srv.Shutdown)
			m.Register("logger", 90, syncLogger(logger))
			m.Start()

			logger.Info("imagestream server starting",
				zap.String("addr", srv.Addr()),
				zap.Bool("proxy", deps.Proxy != nil),
				zap.String("version", core.Version),
			)
			fmt.Fprintf(cmd.OutOrStdout(), "imagestream %s listening on http://%s\n", core.Version, srv.Addr())

			serveErr := srv.ListenAndServe(m.Context())
			if err := m.Shutdown(); err != nil && serveErr == nil {
				return err
			}
			return serveErr
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "Interface to bind (default all)")
	cmd.Flags().IntVar(&port, "port", core.DefaultPort, "Port to listen on (overrides PORT)")
	cmd.Flags().BoolVar(&noProxy, "no-proxy", false, "Do not mount the upstream proxy")
	return cmd
}
