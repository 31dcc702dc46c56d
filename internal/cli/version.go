package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/rbisynth/internal/ir"
)

// VersionInfo is the JSON payload of the version command.
type VersionInfo struct {
	Version       string `json:"version"`
	FormatVersion string `json:"format_version"`
}

// NewVersionCommand creates the version command.
func NewVersionCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "version",
		Short:        "Print the rbisynth version",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd)
			info := VersionInfo{Version: ir.ToolVersion, FormatVersion: ir.FormatVersion}
			if f.Format == "json" {
				return f.Success(info)
			}
			fmt.Fprintf(f.Writer, "rbisynth %s (stub format %s)\n", info.Version, info.FormatVersion)
			return nil
		},
	}
}
