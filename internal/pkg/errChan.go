package pkg

import (
	"context"
)

// 定义一个不导出的 key 类型，避免 context key 冲突
type errChanKey struct{}

// WithErrChan 将全局错误通道存入 context
func WithErrChan(ctx context.Context, errChan chan error) context.Context {
	return context.WithValue(ctx, errChanKey{}, errChan)
}

// ErrChanFromContext 从 context 中提取错误通道
func ErrChanFromContext(ctx context.Context) chan<- error {
	if errChan, ok := ctx.Value(errChanKey{}).(chan error); ok {
		return errChan
	}
	return nil
}

// ReportError 非阻塞地上报致命错误，通道不存在或已满时返回 false
func ReportError(ctx context.Context, err error) bool {
	errChan := ErrChanFromContext(ctx)
	if errChan == nil {
		return false
	}
	select {
	case errChan <- err:
		return true
	default:
		return false
	}
}
