package sink

import (
	"context"
	"sync"
	"testing"
	"time"

	"addongate/internal/pkg"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordSink 记录收到的点，block 非空时在读取前阻塞
type recordSink struct {
	typ   string
	block chan struct{}

	mu     sync.Mutex
	points []pkg.Point
	done   chan struct{}
}

func newRecordSink(typ string) *recordSink {
	return &recordSink{typ: typ, done: make(chan struct{})}
}

func (r *recordSink) GetType() string { return r.typ }

func (r *recordSink) Start(points chan pkg.Point) {
	defer close(r.done)
	if r.block != nil {
		<-r.block
	}
	for p := range points {
		r.mu.Lock()
		r.points = append(r.points, p)
		r.mu.Unlock()
	}
}

func (r *recordSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.points)
}

func TestCollectionFanOut(t *testing.T) {
	c := NewCollection(nil)
	a, b := newRecordSink("a"), newRecordSink("b")
	require.NoError(t, c.Add(a))
	require.NoError(t, c.Add(b))
	assert.Error(t, c.Add(newRecordSink("a")))
	assert.Equal(t, []string{"a", "b"}, c.Types())

	c.Start()
	for i := 0; i < 3; i++ {
		c.Publish(pkg.Point{Device: "d"})
	}
	assert.Eventually(t, func() bool { return a.count() == 3 && b.count() == 3 }, time.Second, 5*time.Millisecond)

	c.Close()
	c.Close()
	<-a.done
	<-b.done
	// 关闭后发布被忽略
	c.Publish(pkg.Point{Device: "d"})
}

func TestCollectionDropsWhenFull(t *testing.T) {
	c := NewCollection(nil)
	slow := newRecordSink("slow")
	slow.block = make(chan struct{})
	require.NoError(t, c.Add(slow))
	c.Start()

	before := pkg.GetPerformanceMetrics().GetMsgCount("sink_slow", pkg.StatErrors)
	for i := 0; i < chanSize+5; i++ {
		c.Publish(pkg.Point{Device: "d"})
	}
	assert.Equal(t, before+5, pkg.GetPerformanceMetrics().GetMsgCount("sink_slow", pkg.StatErrors))

	close(slow.block)
	c.Close()
	<-slow.done
	assert.Equal(t, chanSize, slow.count())
}

func TestNewCollectionFromConfig(t *testing.T) {
	old := Factories
	defer func() { Factories = old }()
	Factories = map[string]FactoryFunc{}
	Register("record", func(ctx context.Context, cfg pkg.SinkConfig) (Template, error) {
		return newRecordSink("record"), nil
	})

	ctx := pkg.WithConfig(context.Background(), &pkg.Config{Sink: []pkg.SinkConfig{
		{Type: "record", Enable: true},
		{Type: "missing", Enable: false},
	}})
	c, err := New(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"record"}, c.Types())

	ctx = pkg.WithConfig(context.Background(), &pkg.Config{Sink: []pkg.SinkConfig{{Type: "missing", Enable: true}}})
	_, err = New(ctx)
	assert.ErrorContains(t, err, "未找到输出类型")
}

func TestToInfluxPoint(t *testing.T) {
	ts := time.Unix(100, 0)
	p := ToInfluxPoint(pkg.Point{
		Device:     "cs1",
		DeviceType: "ColourSensor",
		Tag:        map[string]string{"revision": "91"},
		Field:      map[string]interface{}{"cs1Red": 52.8, "cs1Touch": true, "cs1Nil": nil},
		Ts:         ts,
	})
	assert.Equal(t, "ColourSensor", p.Name())
	assert.Equal(t, ts, p.Time())

	tags := map[string]string{}
	for _, tag := range p.TagList() {
		tags[tag.Key] = tag.Value
	}
	assert.Equal(t, map[string]string{"device": "cs1", "revision": "91"}, tags)

	fields := map[string]interface{}{}
	for _, f := range p.FieldList() {
		fields[f.Key] = f.Value
	}
	assert.Equal(t, map[string]interface{}{"cs1Red": 52.8, "cs1Touch": true}, fields)
}

// fakePointWriter 记录写入的点
type fakePointWriter struct {
	mu      sync.Mutex
	names   []string
	flushed bool
}

func (f *fakePointWriter) WritePoint(point *write.Point) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.names = append(f.names, point.Name())
}

func (f *fakePointWriter) Flush() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushed = true
}

func TestInfluxDbSinkStart(t *testing.T) {
	w := &fakePointWriter{}
	s := &InfluxDbSink{writeAPI: w, ctx: context.Background(), logger: pkg.LoggerFromContext(context.Background())}
	assert.Equal(t, "influxdb", s.GetType())

	points := make(chan pkg.Point, 2)
	points <- pkg.Point{Device: "ls", DeviceType: "LightSensor", Field: map[string]interface{}{"lsReading1": 1.0}}
	points <- pkg.Point{Device: "ns", DeviceType: "NoiseSensor", Field: map[string]interface{}{"nsRaw": 2.0}}
	close(points)
	s.Start(points)

	assert.Equal(t, []string{"LightSensor", "NoiseSensor"}, w.names)
	assert.True(t, w.flushed)

	_, err := NewInfluxDbSink(context.Background(), pkg.SinkConfig{Config: map[string]interface{}{}})
	assert.Error(t, err)
}

func TestCollectionFilter(t *testing.T) {
	c := NewCollection(nil)
	feet, all := newRecordSink("feet"), newRecordSink("all")
	require.NoError(t, c.AddWithFilter(feet, []string{"^Left", "Foot$"}))
	require.NoError(t, c.Add(all))
	assert.Error(t, c.AddWithFilter(newRecordSink("bad"), []string{"("}))
	c.Start()

	c.Publish(pkg.Point{Device: "LeftFoot"})
	c.Publish(pkg.Point{Device: "RightFoot"})
	c.Publish(pkg.Point{Device: "cs1"})
	c.Publish(pkg.Point{Device: "cs1"})
	assert.Eventually(t, func() bool { return all.count() == 4 && feet.count() == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"all"}, c.route("cs1"))
	assert.Equal(t, []string{"all", "feet"}, c.route("LeftArm"))

	c.Close()
}
