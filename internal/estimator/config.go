package estimator

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// ModelConfig 配置文件中的单个模型
//
//	scheme: quadratic|linear|none
//	predictors: [Touch_IR, Air_IR]
//	params: [p0, p1, p2, p3, p4]
type ModelConfig struct {
	Scheme     string    `mapstructure:"scheme"`
	Predictors []string  `mapstructure:"predictors"`
	Params     []float64 `mapstructure:"params"`
}

// RevisionConfig 配置文件中的单个修订版本，缺省的一侧沿用已有模型
type RevisionConfig struct {
	Touch *ModelConfig `mapstructure:"touch"`
	Air   *ModelConfig `mapstructure:"air"`
}

// DecodeRevisions 将 viper 读出的原始 map 解码为 RevisionConfig
func DecodeRevisions(raw map[string]interface{}) (map[string]RevisionConfig, error) {
	out := make(map[string]RevisionConfig, len(raw))
	if len(raw) == 0 {
		return out, nil
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &out,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create estimator config decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("error decoding estimator revisions: %w", err)
	}
	return out, nil
}

// Build 根据配置构造模型
func (c ModelConfig) Build(flag string) (Model, error) {
	switch Scheme(strings.ToLower(c.Scheme)) {
	case SchemeQuadratic, "":
		if len(c.Predictors) != 2 {
			return nil, fmt.Errorf("%w: quadratic %s needs 2 predictors, got %d", ErrBadParams, flag, len(c.Predictors))
		}
		m := Quadratic{FlagName: flag, Predictors: [2]string{c.Predictors[0], c.Predictors[1]}}
		switch len(c.Params) {
		case 5:
			copy(m.Params[:], c.Params)
		case 4:
			// 旧格式没有 x1 一次项: p0 + p1*x2 + p2*x1² + p3*x2²
			m.Params = [5]float64{c.Params[0], 0, c.Params[1], c.Params[2], c.Params[3]}
		default:
			return nil, fmt.Errorf("%w: quadratic %s needs 4 or 5 params, got %d", ErrBadParams, flag, len(c.Params))
		}
		return m, nil
	case SchemeLinear:
		if len(c.Predictors) != 1 || len(c.Params) != 2 {
			return nil, fmt.Errorf("%w: linear %s needs 1 predictor and 2 params", ErrBadParams, flag)
		}
		return Linear{FlagName: flag, Predictor: c.Predictors[0], Params: [2]float64{c.Params[0], c.Params[1]}}, nil
	case SchemeDisabled:
		return Disabled{FlagName: flag}, nil
	default:
		return nil, fmt.Errorf("%w: unknown scheme %q for %s", ErrBadParams, c.Scheme, flag)
	}
}

// Merge 用配置覆盖或新增修订版本
func (t Table) Merge(cfg map[string]RevisionConfig) error {
	for rev, rc := range cfg {
		rev = strings.ToLower(rev)
		entry, ok := t[rev]
		if !ok {
			entry = Revision{Touch: Disabled{FlagName: FlagTouch}, Air: Disabled{FlagName: FlagAir}}
		}
		if rc.Touch != nil {
			m, err := rc.Touch.Build(FlagTouch)
			if err != nil {
				return fmt.Errorf("revision %s: %w", rev, err)
			}
			entry.Touch = m
		}
		if rc.Air != nil {
			m, err := rc.Air.Build(FlagAir)
			if err != nil {
				return fmt.Errorf("revision %s: %w", rev, err)
			}
			entry.Air = m
		}
		t[rev] = entry
	}
	return nil
}
