package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"text/tabwriter"

	"github.com/credportal/credportal/pkg/config"
	"github.com/spf13/cobra"
	"github.com/tidwall/pretty"
	"gopkg.in/yaml.v3"
)

func ConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the effective configuration",
	}
	cmd.AddCommand(configShowCmd())
	return cmd
}

func configShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with secrets redacted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := cmd.Flags().GetString("format")
			if err != nil {
				return fmt.Errorf("failed to get format flag: %w", err)
			}
			cfg := config.FromContext(cmd.Context())
			return writeConfig(cmd.OutOrStdout(), cfg, format)
		},
	}
	cmd.Flags().StringP("format", "f", "table", "Output format (json, yaml, table)")
	return cmd
}

func writeConfig(w io.Writer, cfg *config.Config, format string) error {
	flat, err := config.Flatten(cfg)
	if err != nil {
		return err
	}
	switch format {
	case "json":
		raw, err := json.Marshal(flat)
		if err != nil {
			return err
		}
		_, err = w.Write(pretty.Pretty(raw))
		return err
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(flat); err != nil {
			return err
		}
		return enc.Close()
	case "table":
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		for _, key := range slices.Sorted(maps.Keys(flat)) {
			fmt.Fprintf(tw, "%s\t%s\n", key, flat[key])
		}
		return tw.Flush()
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}
