// Package extractor 实现附加模块状态报文的位域解码。
//
// 一个 Format 描述若干个字段（起始比特、位宽、类型、缩放、偏移、字节序），
// Extractor 把某个模块实例的原始字节解码为 Values，输出键为实例名加字段后缀，
// 以避免同类型多个实例之间的键冲突。
//
// 比特按 MSB 优先编号：第 0 比特为第一个字节的 0x80 位。
package extractor
