/*
Package connector 提供与上游消息源的连接。

Template 为主接口：连接、订阅，并把收到的原始附加模块报告交给 pipeline。
实现了 Commander 的连接器还可以下发颜色传感器的初始化命令。

目前可选的连接器：

- mqtt: 订阅一个或多个主题
- serial: 串口逐行 JSON，命令按行写回

新连接器通过工厂函数注册：

	func init() {
		Register("MyConnector", NewMyConnector)
	}
*/
package connector
