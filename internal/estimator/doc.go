// Package estimator 根据解码后的原始读数推断 touch/air 标志。
//
// 参数按硬件修订版本（who-am-i 类型码）区分。缺省方案为双预测量二次逻辑回归，
// 以 p>0.5 作确定性判定；另有单预测量线性方案，按概率做伯努利抽样，结果写入带 "^"
// 后缀的键，只能通过配置启用。
package estimator
