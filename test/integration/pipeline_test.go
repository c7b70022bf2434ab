package integration

import (
	"context"
	"testing"
	"time"

	"addongate/internal"
	"addongate/internal/addon"
	"addongate/internal/pkg"
	"addongate/test/integration/helpers"

	. "github.com/smartystreets/goconvey/convey"
	"go.uber.org/zap"
)

// InitErrorChannel 为上下文挂载错误通道
func InitErrorChannel(ctx context.Context) context.Context {
	return pkg.WithErrChan(ctx, make(chan error, 10))
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

// TestPipelineIntegration 测试报告从连接器到解码、估计、派生量再到输出端的完整流程
func TestPipelineIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("跳过集成测试")
	}

	Convey("按配置组装的网关", t, func() {
		helpers.RegisterMemorySink()
		helpers.RegisterMockConnector()

		config := &pkg.Config{
			Connector: pkg.ConnectorConfig{Type: "mock"},
			Estimator: pkg.EstimatorConfig{
				Seed: 1,
				Revisions: map[string]interface{}{
					// 覆盖 86 的空气模型为旧格式四参数
					"86": map[string]interface{}{
						"air": map[string]interface{}{
							"predictors": []interface{}{"Touch_IR", "Air_IR"},
							"params":     []interface{}{-80.7393, 2.7277, 0.246, -0.022},
						},
					},
				},
			},
			Derived: []pkg.DerivedConfig{
				{Type: "LightSensor", Name: "Mean", Expr: "(V.Reading1 + V.Reading2 + V.Reading3) / 3"},
			},
			Sink: []pkg.SinkConfig{{Type: "memory_sink", Enable: true}},
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		ctx = pkg.WithLogger(ctx, zap.NewNop())
		ctx = pkg.WithConfig(ctx, config)
		ctx = InitErrorChannel(ctx)

		pipeline, err := internal.NewPipeline(ctx)
		So(err, ShouldBeNil)
		pipeline.Start()

		conn := helpers.LastMockConnector()
		mem := helpers.LastMemorySink()
		So(conn, ShouldNotBeNil)
		So(mem, ShouldNotBeNil)

		Convey("光照传感器的派生量随点一起输出", func() {
			So(conn.Inject([]byte(`{"name":"light","whoAmI":"lightsensor","hex":"00001000200030"}`)), ShouldBeNil)
			So(waitFor(func() bool { return len(mem.GetReceived()) == 1 }), ShouldBeTrue)
			point := mem.GetReceived()[0]
			So(point.DeviceType, ShouldEqual, "LightSensor")
			So(point.Field["lightMean"], ShouldEqual, 32.0)
		})

		Convey("颜色传感器完成初始化握手后按新标定解码", func() {
			So(conn.Inject([]byte(`{"name":"cs","whoAmI":"coloursensor","revision":"85","hex":"00402010080000"}`)), ShouldBeNil)
			So(waitFor(func() bool { return len(mem.GetReceived()) == 1 }), ShouldBeTrue)
			So(conn.Commands(), ShouldResemble, []string{addon.ColourInitCommand("cs")})
			So(mem.GetReceived()[0].Field["csRed"], ShouldAlmostEqual, 52.8, 1e-9)

			So(conn.Inject([]byte(`{"msgType":"init","elemName":"cs","hexRd":"00ff005500330011","msgKey":"1234","rslt":"ok"}`)), ShouldBeNil)
			So(conn.Inject([]byte(`{"name":"cs","whoAmI":"coloursensor","revision":"85","hex":"00402010080000"}`)), ShouldBeNil)
			So(waitFor(func() bool { return len(mem.GetReceived()) == 2 }), ShouldBeTrue)
			So(mem.GetReceived()[1].Field["csRed"], ShouldEqual, 96.0)
			So(pipeline.Instances()[0].Calibration, ShouldResemble, []float64{1, 3, 5, 15})
		})

		Convey("配置中的旧格式空气模型生效", func() {
			So(conn.Inject([]byte(`{"name":"foot","whoAmI":"IRFoot","revision":"86","hex":"000003e800c800070009"}`)), ShouldBeNil)
			So(waitFor(func() bool { return len(mem.GetReceived()) == 1 }), ShouldBeTrue)
			fields := mem.GetReceived()[0].Field
			// x1=1000 x2=200: z = -80.7393 + 2.7277*200 + 0.246*1e6 - 0.022*4e4 > 0
			So(fields["footAir"], ShouldEqual, true)
			So(fields["footTouch"], ShouldEqual, false)
		})

		Convey("非法报告不会到达输出端", func() {
			So(conn.Inject([]byte(`{"name":"x","whoAmI":"toaster","hex":"00"}`)), ShouldBeNil)
			So(conn.Inject([]byte(`garbage`)), ShouldBeNil)
			So(conn.Inject([]byte(`{"name":"ls","whoAmI":"lightsensor","hex":"0000"}`)), ShouldBeNil)
			So(conn.Inject([]byte(`{"name":"ls","whoAmI":"lightsensor","hex":"00000100020003"}`)), ShouldBeNil)
			So(waitFor(func() bool { return len(mem.GetReceived()) == 1 }), ShouldBeTrue)
			So(mem.GetReceived()[0].Device, ShouldEqual, "ls")
		})

		Reset(func() {
			cancel()
			waitFor(conn.Closed)
		})
	})
}
