/*
Package pkg 包含了项目的公共类部分。具体地：

config.go -- 统一定义了所有配置的加载项，便于使用

logger.go -- 配置logger项

context.go, errChan.go -- 通过 context 传递 logger、配置和全局错误通道

perf.go -- 按消息类型统计的计数器

point.go -- pipeline 输出给 sink 的数据点
*/
package pkg
