package command

import (
	"fmt"

	"addongate/internal/addon"

	"github.com/spf13/cobra"
)

// NewCalCmdCommand 生成颜色传感器的标定命令
func NewCalCmdCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "calcmd <name> [readingHexRd]",
		Short: "Build colour sensor calibration commands",
		Long: `Without a reading, print the commands that read the calibration registers and take a raw reading.
With the hexRd of a raw reading, print the commands that write it into the calibration registers.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			name := args[0]
			if len(args) == 1 {
				fmt.Fprintln(out, addon.ColourInitCommand(name))
				fmt.Fprintln(out, addon.GetCalibrationCommand(name))
				fmt.Fprintln(out, addon.ReadingCommand(name))
				return nil
			}
			reading, err := addon.ParseReadingReport(args[1])
			if err != nil {
				return err
			}
			for _, c := range addon.CalibrateCommands(name, reading) {
				fmt.Fprintln(out, c)
			}
			return nil
		},
	}
}
