package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"imagestream/core"
	"imagestream/imagegen"
)

func newProbeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "probe <image>...",
		Short: `Show the size "auto" would request for reference images`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			probe := imagegen.DecodeProbe{}
			failed := 0
			for _, path := range args {
				ref, err := imagegen.ReferenceImageFromFile(path)
				if err != nil {
					fmt.Fprintf(out, "%s: %v\n", path, err)
					failed++
					continue
				}
				dims, err := probe.Dimensions(cmd.Context(), ref)
				if err != nil {
					fmt.Fprintf(out, "%s: %v\n", path, err)
					failed++
					continue
				}
				res := imagegen.ResolveSize(cmd.Context(), imagegen.SizeAuto, []imagegen.ReferenceImage{ref}, probe)
				fmt.Fprintf(out, "%s: %s %s, aspect %.2f\n", path, res.Describe(), dims.Format, res.AspectRatio)
			}
			if failed > 0 {
				return withExitCode(core.ExitCodeError, fmt.Errorf("%d of %d images could not be probed", failed, len(args)))
			}
			return nil
		},
	}
}
