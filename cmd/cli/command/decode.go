package command

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"addongate/internal/addon"
	ex "addongate/internal/extractor"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// decodeOutput decode 命令的输出
type decodeOutput struct {
	Type        string           `yaml:"type"`
	Revision    string           `yaml:"revision,omitempty"`
	Known       *bool            `yaml:"known,omitempty"`
	Vals        map[string]any   `yaml:"vals"`
	Predictions []predictionView `yaml:"predictions,omitempty"`
}

type predictionView struct {
	Key         string  `yaml:"key"`
	Value       bool    `yaml:"value"`
	Probability float64 `yaml:"probability"`
	Scheme      string  `yaml:"scheme"`
}

// NewDecodeCommand 离线解码一条状态报文
func NewDecodeCommand() *cobra.Command {
	var (
		family   string
		name     string
		revision string
		status   uint8
		cal      []float64
	)
	cmd := &cobra.Command{
		Use:   "decode <whoAmI> <hex>",
		Short: "Decode a status payload",
		Long:  `Decode a hex status payload with the layout registered for whoAmI, then run the touch/air estimator for the given revision.`,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			whoAmI := args[0]
			raw, err := hex.DecodeString(strings.TrimPrefix(args[1], "0x"))
			if err != nil {
				return fmt.Errorf("invalid hex: %w", err)
			}
			instName := name
			if instName == "" {
				instName = whoAmI
			}

			engine, err := loadEngine(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			a, err := engine.Registry.Create(family, whoAmI, instName, revision)
			if err != nil {
				return err
			}
			if len(cal) > 0 {
				if err := a.SetCalibration(cal); err != nil {
					return err
				}
			}
			st, err := a.ProcessPublishedData(0, status, raw)
			if err != nil {
				return err
			}

			out := decodeOutput{Type: a.TypeName(), Revision: revision, Vals: st.Vals}
			if o := st.Outcome; o != nil {
				known := o.Known
				out.Known = &known
				for _, p := range o.Predictions {
					out.Predictions = append(out.Predictions, predictionView{
						Key: p.Key, Value: p.Value, Probability: p.Probability, Scheme: string(p.Scheme),
					})
				}
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(out)
		},
	}
	cmd.Flags().StringVar(&family, "family", addon.FamilyRSAddOn, "总线族")
	cmd.Flags().StringVar(&name, "name", "", "实例名，缺省为 whoAmI")
	cmd.Flags().StringVar(&revision, "revision", "", "硬件修订版本")
	cmd.Flags().Uint8Var(&status, "status", 0, "状态字节")
	cmd.Flags().Float64SliceVar(&cal, "cal", nil, "颜色传感器标定 clear,red,green,blue")
	return cmd
}

// NewEncodeCommand 按布局把字段值编码为 hex，用于构造测试报文
func NewEncodeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "encode <format> <suffix=value>...",
		Short: "Encode field values into a hex payload",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, ok := addon.FormatByName(args[0])
			if !ok {
				return fmt.Errorf("unknown format %q, known: %v", args[0], addon.FormatNames())
			}
			values, err := parseAssignments(args[1:])
			if err != nil {
				return err
			}
			buf, err := ex.Encode(f, values)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(buf))
			return nil
		},
	}
}

// parseAssignments 解析 suffix=value，true/false 为布尔量，其余按数值
func parseAssignments(args []string) (map[string]any, error) {
	values := make(map[string]any, len(args))
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("expected suffix=value, got %q", arg)
		}
		if v == "true" || v == "false" {
			values[k] = v == "true"
			continue
		}
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		values[k] = n
	}
	return values, nil
}
