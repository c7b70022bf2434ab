package addon

import (
	"sort"
	"strings"

	"addongate/internal/estimator"
	ex "addongate/internal/extractor"
)

// 颜色传感器标定通道依次为 Clear、Red、Green、Blue，对应格式的前四个字段
const colourChannels = 4

// IRFootValue 基础布局中的 IR 读数
const IRFootValue = "Val"

var (
	// 早期固件只上报一路 IR 读数
	irFootLegacyFormat = ex.MustFormat("IRFootLegacy",
		ex.BoolField(estimator.FlagTouch, 8),
		ex.BoolField(estimator.FlagAir, 9),
		ex.UnsignedField(IRFootValue, 16, 16, 1, 0),
	)

	irFootFormat = ex.MustFormat("IRFoot",
		ex.BoolField(estimator.FlagTouch, 8),
		ex.BoolField(estimator.FlagAir, 9),
		ex.UnsignedField(estimator.IRFTouchVal, 16, 16, 1, 0),
		ex.UnsignedField(estimator.IRFAirVal, 32, 16, 1, 0),
		ex.UnsignedField(estimator.IRFTouchAmbient, 48, 16, 1, 0),
		ex.UnsignedField(estimator.IRFAirAmbient, 64, 16, 1, 0),
	)

	colourSensorFormat = ex.MustFormat("ColourSensor",
		ex.UnsignedField(estimator.CSClear, 8, 8, 1, 0),
		ex.UnsignedField("Red", 16, 8, 1.65, 0),
		ex.UnsignedField("Green", 24, 8, 1.15, 0),
		ex.UnsignedField("Blue", 32, 8, 1.0, 0),
		ex.UnsignedField(estimator.CSIRVal, 40, 8, 1, 0),
		ex.BoolField(estimator.FlagTouch, 48),
		ex.BoolField(estimator.FlagAir, 49),
	)

	distanceSensorFormat = ex.MustFormat("DistanceSensor",
		ex.UnsignedField("Reading", 8, 16, 1, 0),
	)

	lightSensorFormat = ex.MustFormat("LightSensor",
		ex.UnsignedField("Reading1", 8, 16, 1, 0),
		ex.UnsignedField("Reading2", 24, 16, 1, 0),
		ex.UnsignedField("Reading3", 40, 16, 1, 0),
	)

	noiseSensorFormat = ex.MustFormat("NoiseSensor",
		ex.UnsignedField("Smoothed", 8, 16, 1, 0),
		ex.UnsignedField("HighestSinceLastReading", 24, 16, 1, 0),
		ex.UnsignedField("Raw", 40, 16, 1, 0),
	)
)

var formats = map[string]*ex.Format{
	irFootFormat.Name():         irFootFormat,
	irFootLegacyFormat.Name():   irFootLegacyFormat,
	colourSensorFormat.Name():   colourSensorFormat,
	distanceSensorFormat.Name(): distanceSensorFormat,
	lightSensorFormat.Name():    lightSensorFormat,
	noiseSensorFormat.Name():    noiseSensorFormat,
}

// Format 返回类型的布局定义，没有数据负载的类型返回 nil
func (k Kind) Format() *ex.Format {
	name := kindTable[k].format
	if name == "" {
		return nil
	}
	return formats[name]
}

// FormatFor 按修订版本选择布局。
// 有基础布局的类型只在扩展修订版本下使用扩展布局，见 extendedRevision
func (k Kind) FormatFor(revision string, est *estimator.Estimator) *ex.Format {
	legacy := kindTable[k].legacyFormat
	if legacy == "" || extendedRevision(revision, est) {
		return k.Format()
	}
	return formats[legacy]
}

// extendedRevision 内置的 IR 脚批次，或估计器参数表中有登记的修订版本
func extendedRevision(revision string, est *estimator.Estimator) bool {
	switch strings.ToLower(revision) {
	case estimator.RevIRFootBatch1, estimator.RevIRFootBatch2:
		return true
	}
	if est == nil {
		return false
	}
	_, ok := est.Lookup(revision)
	return ok
}

// FormatByName 按名称查找布局定义
func FormatByName(name string) (*ex.Format, bool) {
	f, ok := formats[name]
	return f, ok
}

// FormatNames 所有布局定义名（排序）
func FormatNames() []string {
	out := make([]string, 0, len(formats))
	for name := range formats {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
