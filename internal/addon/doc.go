// Package addon 定义机器人附加模块的类型、数据布局和状态组装。
//
// 每种类型由 who-am-i 码标识，在一个或多个总线族下注册。实例由 Registry
// 通过工厂函数创建，解码流程为：位域解码、touch/air 标志估计、派生量计算。
// 颜色传感器实例额外持有四通道标定系数，在初始化握手时从硬件读取。
package addon
