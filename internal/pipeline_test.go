package internal

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"addongate/internal/addon"
	"addongate/internal/connector"
	"addongate/internal/estimator"
	"addongate/internal/pkg"
	"addongate/internal/sink"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// MockConnector 模拟可以下发命令的连接器
type MockConnector struct {
	mock.Mock
	out chan<- []byte
}

func (m *MockConnector) Start(out chan<- []byte) error {
	m.out = out
	return m.Called(out).Error(0)
}

func (m *MockConnector) Close() error {
	return m.Called().Error(0)
}

func (m *MockConnector) GetType() string {
	return "mock"
}

func (m *MockConnector) Send(cmd string) error {
	return m.Called(cmd).Error(0)
}

// plainConnector 不支持下发命令
type plainConnector struct{}

func (plainConnector) Start(chan<- []byte) error { return nil }
func (plainConnector) Close() error              { return nil }
func (plainConnector) GetType() string           { return "plain" }

// memorySink 记录收到的点
type memorySink struct {
	mu     sync.Mutex
	points []pkg.Point
}

func (m *memorySink) GetType() string { return "memory" }

func (m *memorySink) Start(points chan pkg.Point) {
	for p := range points {
		m.mu.Lock()
		m.points = append(m.points, p)
		m.mu.Unlock()
	}
}

func (m *memorySink) Points() []pkg.Point {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]pkg.Point(nil), m.points...)
}

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// newTestPipeline 构造 pipeline，startSinks 为 true 时直接启动输出端（不经过 Start）
func newTestPipeline(t *testing.T, ctx context.Context, c connector.Template, startSinks bool) (*Pipeline, *memorySink) {
	t.Helper()
	engine, err := NewEngine(ctx)
	require.NoError(t, err)
	mem := &memorySink{}
	coll := sink.NewCollection(zap.NewNop())
	require.NoError(t, coll.Add(mem))
	p := newPipeline(ctx, engine, c, coll)
	p.now = func() time.Time { return fixedNow }
	if startSinks {
		coll.Start()
	}
	t.Cleanup(coll.Close)
	return p, mem
}

func TestPipelineStatusReport(t *testing.T) {
	p, mem := newTestPipeline(t, context.Background(), plainConnector{}, true)

	// Touch_IR=1000 Air_IR=200，firmware touch=1 air=1
	st, err := p.Handle([]byte(`{"msgType":"status","id":4,"name":"LeftFoot","whoAmI":"IRFoot","revision":"86","status":1,"hex":"00c003e800c800070009"}`))
	require.NoError(t, err)
	require.NotNil(t, st)

	x1, x2 := 1000.0, 200.0
	z := -92.6231 + 11.2271*x1 + 1.8711*x2 - 0.02511*x1*x1 - 0.01076*x2*x2
	want := 1/(1+math.Exp(-z)) > 0.5
	assert.Equal(t, want, st.Vals["LeftFootTouch"])
	assert.Equal(t, true, st.Vals["LeftFootAir"])
	assert.Equal(t, 1000.0, st.Vals["LeftFootTouch_IR"])

	assert.Eventually(t, func() bool { return len(mem.Points()) == 1 }, time.Second, 5*time.Millisecond)
	point := mem.Points()[0]
	assert.Equal(t, "LeftFoot", point.Device)
	assert.Equal(t, "IRFoot", point.DeviceType)
	assert.Equal(t, map[string]string{"id": "4", "whoAmI": "IRFoot", "revision": "86", "status": "01"}, point.Tag)
	assert.Equal(t, fixedNow, point.Ts)
	assert.Equal(t, 200.0, point.Field["LeftFootAir_IR"])

	info := p.Instances()
	require.Len(t, info, 1)
	assert.Equal(t, "IRFoot", info[0].TypeName)
}

func TestPipelineDropsBadRecords(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	ctx := pkg.WithLogger(context.Background(), zap.New(core))
	p, mem := newTestPipeline(t, ctx, plainConnector{}, true)

	_, err := p.Handle([]byte(`not json`))
	assert.ErrorIs(t, err, ErrBadReport)

	_, err = p.Handle([]byte(`{"name":"x","whoAmI":"toaster","hex":"00"}`))
	assert.ErrorIs(t, err, addon.ErrUnknownType)

	_, err = p.Handle([]byte(`{"name":"cs","whoAmI":"coloursensor","revision":"85","hex":"zz"}`))
	assert.ErrorIs(t, err, ErrBadReport)

	// 数据不足，整条记录作废且不发布
	_, err = p.Handle([]byte(`{"name":"cs","whoAmI":"coloursensor","revision":"85","hex":"004020"}`))
	assert.Error(t, err)

	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, mem.Points())
	assert.Equal(t, 1, logs.FilterMessage("decode failed, record dropped").Len())
	assert.Equal(t, 1, logs.FilterMessage("invalid report dropped").Len())
}

func TestPipelineColourInitHandshake(t *testing.T) {
	c := new(MockConnector)
	c.On("Send", "elem/cs1/json?cmd=raw&hexWr=104020&numToRd=20&msgKey=1234").Return(nil).Once()
	p, _ := newTestPipeline(t, context.Background(), c, true)

	status := []byte(`{"name":"cs1","whoAmI":"coloursensor","revision":"zz","hex":"00402010080080"}`)
	st, err := p.Handle(status)
	require.NoError(t, err)
	assert.InDelta(t, 52.8, st.Vals["cs1Red"], 1e-9)
	// 未知修订版本：保留固件标志，不产生预测
	assert.Equal(t, true, st.Vals["cs1Touch"])

	_, err = p.Handle([]byte(`{"msgType":"init","elemName":"cs1","hexRd":"00ff005500330011"}`))
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 3, 5, 15}, p.Instances()[0].Calibration)

	st, err = p.Handle(status)
	require.NoError(t, err)
	assert.Equal(t, 96.0, st.Vals["cs1Red"])
	c.AssertExpectations(t)

	// 修订版本变化时重新创建实例，标定回到缺省并再次下发初始化命令
	c.On("Send", mock.Anything).Return(errors.New("offline")).Once()
	st, err = p.Handle([]byte(`{"name":"cs1","whoAmI":"coloursensor","revision":"91","hex":"00402010080080"}`))
	require.NoError(t, err)
	assert.Equal(t, "91", st.Revision)
	assert.Equal(t, []float64{1, 1.65, 1.15, 1.0}, p.Instances()[0].Calibration)
	c.AssertNumberOfCalls(t, "Send", 2)
}

func TestPipelineInitForUnknownElement(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	ctx := pkg.WithLogger(context.Background(), zap.New(core))
	p, _ := newTestPipeline(t, ctx, plainConnector{}, true)

	st, err := p.Handle([]byte(`{"msgType":"init","name":"ghost","hexRd":"00ff005500330011"}`))
	assert.NoError(t, err)
	assert.Nil(t, st)
	assert.Equal(t, 1, logs.FilterMessage("init report for unknown element").Len())
}

func TestPipelineLEDEyesOnPixelFamily(t *testing.T) {
	p, _ := newTestPipeline(t, context.Background(), plainConnector{}, true)
	st, err := p.Handle([]byte(`{"name":"eyes","whoAmI":"LEDeye","family":"LEDPixels","status":2,"hex":""}`))
	require.NoError(t, err)
	assert.Empty(t, st.Vals)
	assert.Equal(t, addon.FamilyPixels, p.Instances()[0].Family)
}

func TestEngineFromConfig(t *testing.T) {
	ctx := pkg.WithConfig(context.Background(), &pkg.Config{
		Estimator: pkg.EstimatorConfig{
			Seed: 3,
			Revisions: map[string]interface{}{
				"a1": map[string]interface{}{
					"touch": map[string]interface{}{"scheme": "linear", "predictors": []string{"Clear"}, "params": []float64{100, 0}},
				},
			},
		},
		Derived: []pkg.DerivedConfig{{Type: "ColourSensor", Name: "RedRatio", Expr: "ratio(V.Red, V.Clear)"}},
	})
	engine, err := NewEngine(ctx)
	require.NoError(t, err)
	assert.Contains(t, engine.Estimator.Revisions(), "a1")

	a, err := engine.Registry.Create(addon.FamilyRSAddOn, addon.WhoAmIColour, "cs", "a1")
	require.NoError(t, err)
	st, err := a.ProcessPublishedData(0, 0, []byte{0x00, 0x40, 0x20, 0x10, 0x08, 0x00, 0x00})
	require.NoError(t, err)
	// 随机方案写入 ^ 键，固件上报的 Touch 保留
	assert.Equal(t, true, st.Vals["csTouch"+estimator.StochasticMarker])
	assert.Equal(t, false, st.Vals["csTouch"])
	assert.InDelta(t, 0.825, st.Vals["csRedRatio"], 1e-9)

	t.Run("disabled estimator", func(t *testing.T) {
		ctx := pkg.WithConfig(context.Background(), &pkg.Config{Estimator: pkg.EstimatorConfig{Disable: true}})
		engine, err := NewEngine(ctx)
		require.NoError(t, err)
		assert.Nil(t, engine.Estimator)
		a, err := engine.Registry.Create(addon.FamilyRSAddOn, addon.WhoAmIIRFoot, "f", "86")
		require.NoError(t, err)
		assert.False(t, a.HasEstimator())
	})

	t.Run("bad derived rule", func(t *testing.T) {
		ctx := pkg.WithConfig(context.Background(), &pkg.Config{Derived: []pkg.DerivedConfig{{Name: "X", Expr: "1 +"}}})
		_, err := NewEngine(ctx)
		assert.Error(t, err)
	})

	t.Run("bad estimator config", func(t *testing.T) {
		ctx := pkg.WithConfig(context.Background(), &pkg.Config{Estimator: pkg.EstimatorConfig{
			Revisions: map[string]interface{}{"86": map[string]interface{}{"touch": map[string]interface{}{"scheme": "cubic"}}},
		}})
		_, err := NewEngine(ctx)
		assert.Error(t, err)
	})
}

func TestPipelineStartAndStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := new(MockConnector)
	c.On("Start", mock.Anything).Return(nil)
	closed := make(chan struct{})
	c.On("Close").Return(nil).Run(func(mock.Arguments) { close(closed) })
	p, mem := newTestPipeline(t, ctx, c, false)

	p.Start()
	c.out <- []byte(`{"name":"ls","whoAmI":"lightsensor","hex":"00001000200030"}`)
	assert.Eventually(t, func() bool { return len(mem.Points()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 32.0, mem.Points()[0].Field["lsReading2"])

	cancel()
	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("connector not closed after cancel")
	}
}

func TestPipelineStartConnectorFailure(t *testing.T) {
	errChan := make(chan error, 1)
	ctx := pkg.WithErrChan(context.Background(), errChan)
	c := new(MockConnector)
	c.On("Start", mock.Anything).Return(errors.New("broker down"))
	p, _ := newTestPipeline(t, ctx, c, false)

	p.Start()
	select {
	case err := <-errChan:
		assert.ErrorContains(t, err, "broker down")
	case <-time.After(time.Second):
		t.Fatal("expected error on err chan")
	}
}
