package command

import (
	"fmt"
	"text/tabwriter"

	"addongate/internal/addon"
	"addongate/internal/admin/api"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// NewTypesCommand 列出已注册的类型
func NewTypesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List registered add-on types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := loadEngine(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "FAMILY\tWHOAMI\tTYPE")
			for _, e := range engine.Registry.Entries() {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Family, e.WhoAmI, e.TypeName)
			}
			return tw.Flush()
		},
	}
}

// NewFormatsCommand 以 yaml 输出布局定义
func NewFormatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "formats [name]",
		Short: "Dump bit layouts as yaml",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			names := addon.FormatNames()
			if len(args) == 1 {
				names = args
			}
			views := make([]api.FormatView, 0, len(names))
			for _, name := range names {
				f, ok := addon.FormatByName(name)
				if !ok {
					return fmt.Errorf("unknown format %q, known: %v", name, addon.FormatNames())
				}
				views = append(views, api.NewFormatView(f))
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(views)
		},
	}
}
