package pkg

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Point 一条解码后的状态记录，pipeline 与各 sink 之间传递
type Point struct {
	Device     string                 // 附加模块实例名
	DeviceType string                 // 附加模块类型名
	Tag        map[string]string      // id, whoAmI, revision, status
	Field      map[string]interface{} // 解码值，float64 或 bool。point 放入 chan 后只读
	Ts         time.Time
}

// String 按键排序输出，便于日志比对
func (p *Point) String() string {
	return fmt.Sprintf("Point(Device=%s, DeviceType=%s, Tag=%s, Field=%s, Ts=%s)",
		p.Device, p.DeviceType, formatMap(p.Tag), formatMap(p.Field), p.Ts.Format(time.RFC3339))
}

func formatMap[V any](m map[string]V) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %v", k, m[k]))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
