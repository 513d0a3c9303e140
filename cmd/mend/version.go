package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"mend/internal/version"
)

type versionPayload struct {
	Tool      string `json:"tool"`
	Version   string `json:"version"`
	GitCommit string `json:"git_commit,omitempty"`
	BuildDate string `json:"build_date,omitempty"`
}

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show mend build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := cmd.Flags().GetString("format")
			if err != nil {
				return err
			}
			colorFlag, err := cmd.Root().PersistentFlags().GetString("color")
			if err != nil {
				return err
			}
			useColor, err := readColorMode(colorFlag, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			color.NoColor = !useColor

			switch strings.ToLower(format) {
			case "pretty":
				fmt.Fprint(cmd.OutOrStdout(), version.Info(useColor))
				return nil
			case "json":
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(versionPayload{
					Tool:      "mend",
					Version:   version.Version,
					GitCommit: version.GitCommit,
					BuildDate: version.BuildDate,
				})
			default:
				return fmt.Errorf("unsupported format %q (must be pretty or json)", format)
			}
		},
	}
	cmd.Flags().String("format", "pretty", "output format (pretty|json)")
	return cmd
}
