package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/daviddao/crane_viewer/internal/config"
	"github.com/daviddao/crane_viewer/internal/namespace"
)

func newConfigCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change panel settings",
	}
	cmd.AddCommand(newConfigShowCmd(opts), newConfigSetCmd(opts))
	return cmd
}

func newConfigShowCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the settings tree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, err := opts.loadConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "# %s\n", path)
			printSettings(out, config.Settings(cfg, namespace.FromConfig(cfg.Namespaces)))
			return nil
		},
	}
}

func newConfigSetCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "set <section.key> <value>",
		Short: "Change one setting and save",
		Example: `  crv config set general.update_enabled false
  crv config set namespaces.robots.blue off`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, err := opts.loadConfig()
			if err != nil {
				return err
			}
			keyPath := strings.Split(args[0], ".")
			value, err := config.ParseValue(keyPath, args[1])
			if err != nil {
				return err
			}
			cfg, tree, err := config.Apply(cfg, namespace.FromConfig(cfg.Namespaces), keyPath, value)
			if err != nil {
				return err
			}
			cfg.Namespaces = tree.Config()
			if err := config.Save(path, cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %v (saved to %s)\n", args[0], value, path)
			return nil
		},
	}
}

func printSettings(w io.Writer, sections []config.Section) {
	for _, sec := range sections {
		fmt.Fprintf(w, "%s:\n", sec.Key)
		if len(sec.Fields) == 0 {
			fmt.Fprintln(w, "  (none)")
		}
		for _, f := range sec.Fields {
			fmt.Fprintf(w, "  %-24s %-8v %s\n", f.Key, f.Value, f.Input)
		}
	}
}
