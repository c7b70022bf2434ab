package estimator

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"addongate/internal/extractor"
)

func TestQuadratic(t *testing.T) {
	Convey("测试二次逻辑回归模型", t, func() {
		Convey("全零参数时 p=0.5 且判定为 false", func() {
			m := Quadratic{FlagName: FlagTouch, Predictors: [2]string{"A", "B"}}
			for _, x := range [][2]float64{{0, 0}, {1000, -3}, {-7, 42}} {
				p, err := m.Predict(extractor.Values{"nA": x[0], "nB": x[1]}, "n", nil)
				So(err, ShouldBeNil)
				So(p.Probability, ShouldEqual, 0.5)
				So(p.Value, ShouldBeFalse)
				So(p.Key, ShouldEqual, "nTouch")
			}
		})

		Convey("IR脚批次1的 touch 预测与公式一致", func() {
			rev := DefaultTable()[RevIRFootBatch1]
			m := rev.Touch.(Quadratic)
			x1, x2 := 1000.0, 200.0
			z := -92.6231 + 11.2271*x1 + 1.8711*x2 - 0.02511*x1*x1 - 0.01076*x2*x2
			want := 1 / (1 + math.Exp(-z))

			p, err := m.Predict(extractor.Values{"foot" + IRFTouchVal: x1, "foot" + IRFAirVal: x2}, "foot", nil)
			So(err, ShouldBeNil)
			So(p.Probability, ShouldAlmostEqual, want, 1e-12)
			So(p.Value, ShouldEqual, want > 0.5)
		})

		Convey("缺少预测量", func() {
			m := Quadratic{FlagName: FlagAir, Predictors: [2]string{"A", "B"}}
			_, err := m.Predict(extractor.Values{"nA": 1.0, "nB": true}, "n", nil)
			So(errors.Is(err, ErrMissingPredictor), ShouldBeTrue)
		})
	})
}

func TestLinear(t *testing.T) {
	Convey("测试线性随机模型", t, func() {
		m := Linear{FlagName: FlagTouch, Predictor: "V"}

		Convey("按随机数与 p 比较，写入 ^ 键", func() {
			seq := rand.New(rand.NewSource(7))
			draws := rand.New(rand.NewSource(7))
			for i := 0; i < 20; i++ {
				p, err := m.Predict(extractor.Values{"xV": 3.0}, "x", draws.Float64)
				So(err, ShouldBeNil)
				So(p.Probability, ShouldEqual, 0.5)
				So(p.Value, ShouldEqual, seq.Float64() < 0.5)
				So(p.Key, ShouldEqual, "xTouch^")
				So(p.Scheme, ShouldEqual, SchemeLinear)
			}
		})

		Convey("概率接近 1 时总是为真", func() {
			m.Params = [2]float64{50, 0}
			p, err := m.Predict(extractor.Values{"xV": 0.0}, "x", func() float64 { return 0.999999 })
			So(err, ShouldBeNil)
			So(p.Value, ShouldBeTrue)
		})
	})
}

func TestEstimator(t *testing.T) {
	Convey("测试Estimator", t, func() {
		core, logs := observer.New(zapcore.DebugLevel)
		e := New(nil, WithLogger(zap.New(core)), WithRand(rand.New(rand.NewSource(1))))

		Convey("未知修订版本不产生预测也不报错", func() {
			vals := extractor.Values{"footTouch_IR": 1.0, "footAir_IR": 2.0}
			out := e.Estimate(vals, "foot", "ff")
			So(out.Known, ShouldBeFalse)
			So(out.Predictions, ShouldBeEmpty)
			out.Apply(vals)
			So(len(vals), ShouldEqual, 2)
			So(logs.FilterMessage("no estimator parameters for revision").Len(), ShouldEqual, 1)
		})

		Convey("IR脚批次1只估计 touch", func() {
			vals := extractor.Values{"footTouch_IR": 1000.0, "footAir_IR": 200.0}
			out := e.Estimate(vals, "foot", "86")
			So(out.Known, ShouldBeTrue)
			So(len(out.Predictions), ShouldEqual, 1)
			_, hasAir := out.Lookup(FlagAir)
			So(hasAir, ShouldBeFalse)
			out.Apply(vals)
			_, ok := vals.Flag("footTouch")
			So(ok, ShouldBeTrue)
		})

		Convey("修订版本不区分大小写", func() {
			_, ok := e.Lookup("8C")
			So(ok, ShouldBeTrue)
		})

		Convey("颜色传感器估计两个标志", func() {
			vals := extractor.Values{"csClear": 64.0, "csIRVal": 12.0}
			out := e.Estimate(vals, "cs", "91")
			So(len(out.Predictions), ShouldEqual, 2)
			So(out.Skipped, ShouldBeNil)
		})

		Convey("缺少预测量时跳过并记录原因", func() {
			out := e.Estimate(extractor.Values{"csClear": 64.0}, "cs", "85")
			So(out.Known, ShouldBeTrue)
			So(out.Predictions, ShouldBeEmpty)
			So(len(out.Skipped), ShouldEqual, 2)
			So(errors.Is(out.Skipped[FlagTouch], ErrMissingPredictor), ShouldBeTrue)
		})

		Convey("已知修订版本排序输出", func() {
			So(e.Revisions(), ShouldResemble, []string{"85", "86", "8c", "91"})
		})
	})
}

func TestConfigMerge(t *testing.T) {
	Convey("测试参数表配置覆盖", t, func() {
		raw := map[string]interface{}{
			"86": map[string]interface{}{
				"air": map[string]interface{}{
					"scheme":     "quadratic",
					"predictors": []interface{}{"Touch_IR", "Air_IR"},
					"params":     []interface{}{1, 2, 3, 4, 5},
				},
			},
			"A0": map[string]interface{}{
				"touch": map[string]interface{}{
					"scheme":     "linear",
					"predictors": []interface{}{"Val"},
					"params":     []interface{}{-3.5, 0.01},
				},
			},
		}
		cfg, err := DecodeRevisions(raw)
		So(err, ShouldBeNil)

		table := DefaultTable()
		So(table.Merge(cfg), ShouldBeNil)

		Convey("只覆盖给出的一侧", func() {
			So(table["86"].Air.Scheme(), ShouldEqual, SchemeQuadratic)
			So(table["86"].Air.(Quadratic).Params, ShouldResemble, [5]float64{1, 2, 3, 4, 5})
			So(table["86"].Touch.(Quadratic).Params[0], ShouldEqual, -92.6231)
		})

		Convey("新增修订版本，另一侧为 Disabled", func() {
			So(table["a0"].Touch.Scheme(), ShouldEqual, SchemeLinear)
			So(table["a0"].Air.Scheme(), ShouldEqual, SchemeDisabled)
		})

		Convey("四参数旧格式补零", func() {
			m, err := ModelConfig{Predictors: []string{"a", "b"}, Params: []float64{1, 2, 3, 4}}.Build(FlagTouch)
			So(err, ShouldBeNil)
			So(m.(Quadratic).Params, ShouldResemble, [5]float64{1, 0, 2, 3, 4})
		})

		Convey("非法配置", func() {
			_, err := ModelConfig{Scheme: "quadratic", Predictors: []string{"a"}, Params: []float64{1, 2, 3, 4, 5}}.Build(FlagTouch)
			So(errors.Is(err, ErrBadParams), ShouldBeTrue)
			_, err = ModelConfig{Scheme: "cubic"}.Build(FlagTouch)
			So(errors.Is(err, ErrBadParams), ShouldBeTrue)
			_, err = DecodeRevisions(map[string]interface{}{"86": map[string]interface{}{"bogus": 1}})
			So(err, ShouldNotBeNil)
		})
	})
}
