package addon

import "fmt"

// who-am-i 类型码
const (
	WhoAmIDistance  = "VCNL4200"
	WhoAmILight     = "lightsensor"
	WhoAmIColour    = "coloursensor"
	WhoAmIIRFoot    = "IRFoot"
	WhoAmILEDFoot   = "LEDfoot"
	WhoAmILEDArm    = "LEDarm"
	WhoAmILEDEye    = "LEDeye"
	WhoAmINoise     = "noisesensor"
	WhoAmIGripServo = "roboservo3"
)

// 总线族
const (
	FamilyRSAddOn = "RSAddOn"
	// FamilyPixels 通用像素总线，后期批次的 LED 眼睛在此族下上报
	FamilyPixels = "LEDPixels"
)

// Kind 附加模块类型
type Kind int

const (
	KindDistance Kind = iota
	KindLight
	KindColour
	KindIRFoot
	KindLEDFoot
	KindLEDArm
	KindLEDEye
	KindNoise
	KindGripServo
)

// kindInfo 每种类型的静态描述
type kindInfo struct {
	whoAmI   string
	typeName string
	families []string
	format   string // 为空表示没有数据负载
	estimate bool   // 是否绑定 touch/air 估计

	legacyFormat string // 未登记修订版本使用的基础布局
}

var kindTable = map[Kind]kindInfo{
	KindDistance:  {whoAmI: WhoAmIDistance, typeName: "DistanceSensor", families: []string{FamilyRSAddOn}, format: "DistanceSensor"},
	KindLight:     {whoAmI: WhoAmILight, typeName: "LightSensor", families: []string{FamilyRSAddOn}, format: "LightSensor"},
	KindColour:    {whoAmI: WhoAmIColour, typeName: "ColourSensor", families: []string{FamilyRSAddOn}, format: "ColourSensor", estimate: true},
	KindIRFoot:    {whoAmI: WhoAmIIRFoot, typeName: "IRFoot", families: []string{FamilyRSAddOn}, format: "IRFoot", estimate: true, legacyFormat: "IRFootLegacy"},
	KindLEDFoot:   {whoAmI: WhoAmILEDFoot, typeName: "DiscoFoot", families: []string{FamilyRSAddOn}},
	KindLEDArm:    {whoAmI: WhoAmILEDArm, typeName: "DiscoArm", families: []string{FamilyRSAddOn}},
	KindLEDEye:    {whoAmI: WhoAmILEDEye, typeName: "DiscoEyes", families: []string{FamilyRSAddOn, FamilyPixels}},
	KindNoise:     {whoAmI: WhoAmINoise, typeName: "NoiseSensor", families: []string{FamilyRSAddOn}, format: "NoiseSensor"},
	KindGripServo: {whoAmI: WhoAmIGripServo, typeName: "Gripper", families: []string{FamilyRSAddOn}},
}

// Kinds 按定义顺序返回所有类型
func Kinds() []Kind {
	return []Kind{KindDistance, KindLight, KindColour, KindIRFoot, KindLEDFoot, KindLEDArm, KindLEDEye, KindNoise, KindGripServo}
}

// KindByWhoAmI 按 who-am-i 查找类型
func KindByWhoAmI(whoAmI string) (Kind, bool) {
	for k, info := range kindTable {
		if info.whoAmI == whoAmI {
			return k, true
		}
	}
	return 0, false
}

func (k Kind) WhoAmI() string { return kindTable[k].whoAmI }

// TypeName 注册时使用的类型名
func (k Kind) TypeName() string { return kindTable[k].typeName }

// Families 该类型注册的总线族
func (k Kind) Families() []string {
	return append([]string(nil), kindTable[k].families...)
}

// HasEstimator 是否绑定标志估计
func (k Kind) HasEstimator() bool { return kindTable[k].estimate }

func (k Kind) String() string {
	if info, ok := kindTable[k]; ok {
		return info.typeName
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}
