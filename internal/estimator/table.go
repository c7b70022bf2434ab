package estimator

// 标志名，与固件上报的布尔位同名
const (
	FlagTouch = "Touch"
	FlagAir   = "Air"
)

// 预测量字段后缀
const (
	IRFTouchVal     = "Touch_IR"
	IRFAirVal       = "Air_IR"
	IRFTouchAmbient = "Touch_Ambient"
	IRFAirAmbient   = "Air_Ambient"
	CSClear         = "Clear"
	CSIRVal         = "IRVal"
)

// 各批次硬件的 who-am-i 类型码
const (
	RevIRFootBatch1 = "86"
	RevIRFootBatch2 = "8c" // 第三批与第二批相同
	RevColourBatch1 = "85" // 第二批与第一批相同
	RevColourBatch3 = "91"
)

// Revision 某个硬件修订版本的两个标志模型
type Revision struct {
	Touch Model
	Air   Model
}

// Models 按 touch、air 顺序返回非空模型
func (r Revision) Models() []Model {
	out := make([]Model, 0, 2)
	if r.Touch != nil {
		out = append(out, r.Touch)
	}
	if r.Air != nil {
		out = append(out, r.Air)
	}
	return out
}

// Table 修订版本代码 -> 参数
type Table map[string]Revision

// DefaultTable 返回内置参数表的新副本
func DefaultTable() Table {
	return Table{
		RevIRFootBatch1: {
			Touch: Quadratic{
				FlagName:   FlagTouch,
				Predictors: [2]string{IRFTouchVal, IRFAirVal},
				Params:     [5]float64{-92.6231, 11.2271, 1.8711, -0.02511, -0.01076},
			},
			// 空气间隙模型未启用，候选参数 [-80.7393, 11.5344, 2.7277, 0.246, -0.022]
			Air: Disabled{FlagName: FlagAir},
		},
		RevIRFootBatch2: {
			Touch: Quadratic{
				FlagName:   FlagTouch,
				Predictors: [2]string{IRFTouchVal, IRFTouchAmbient},
				Params:     [5]float64{-217.147, 7.5363, 14.8915, -0.02244, -0.801},
			},
			Air: Disabled{FlagName: FlagAir},
		},
		RevColourBatch1: {
			Touch: Quadratic{
				FlagName:   FlagTouch,
				Predictors: [2]string{CSClear, CSIRVal},
				Params:     [5]float64{-272.4539, -1.9294, 2.3632, 0.005685, -0.0026},
			},
			Air: Quadratic{
				FlagName:   FlagAir,
				Predictors: [2]string{CSClear, CSIRVal},
				Params:     [5]float64{14.892, -0.2493, -0.06107, 0.0006048, 0.0001023},
			},
		},
		RevColourBatch3: {
			// 该批次不使用 Clear 的一次项
			Touch: Quadratic{
				FlagName:   FlagTouch,
				Predictors: [2]string{CSClear, CSIRVal},
				Params:     [5]float64{-8.2175, 0, -0.02629, -0.00005754, 0.0004032},
			},
			Air: Quadratic{
				FlagName:   FlagAir,
				Predictors: [2]string{CSClear, CSIRVal},
				Params:     [5]float64{102.3661, -1.891, -0.4547, 0.005837, 0.0008272},
			},
		},
	}
}
