// Package sink 是数据网关处理的最终环节：把 pipeline 组装好的附加模块状态
// (pkg.Point) 发送到一个或多个目的地。
//
// 目前的输出端：
//   - mqtt: 按设备名发布到 <topic>/<device>
//   - kafka: 以设备名为 key 写入一个主题
//   - influxdb: 以类型名为 measurement 写入
//   - prometheus: 数值与布尔量导出为 gauge，并附带按类型的消息计数
//
// 新的输出端通过 Register 注册工厂函数，在配置 sink 段中启用。
package sink
