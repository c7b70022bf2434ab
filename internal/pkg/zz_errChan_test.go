package pkg

import (
	"context"
	"fmt"
	"testing"
	"time"
)

// TestWithErrChan 测试 WithErrChan 和 ErrChanFromContext 方法
func TestWithErrChan(t *testing.T) {
	errChan := make(chan error, 1)
	ctxWithErrChan := WithErrChan(context.Background(), errChan)

	extractedErrChan := ErrChanFromContext(ctxWithErrChan)
	if extractedErrChan == nil {
		t.Fatal("期望从上下文中提取到错误通道，但提取结果为 nil")
	}

	extractedErrChan <- fmt.Errorf("测试错误")

	select {
	case err := <-errChan:
		if err.Error() != "测试错误" {
			t.Errorf("收到的错误不符: %v", err)
		}
	case <-time.After(1 * time.Second):
		t.Errorf("在1秒内没有收到预期的错误")
	}
}

// TestErrChanFromContextWithoutErrChan 测试当上下文中没有错误通道时的情况
func TestErrChanFromContextWithoutErrChan(t *testing.T) {
	if ErrChanFromContext(context.Background()) != nil {
		t.Errorf("期望提取结果为 nil，但提取到非空通道")
	}
	if ReportError(context.Background(), fmt.Errorf("x")) {
		t.Errorf("没有错误通道时 ReportError 应返回 false")
	}
}

// TestReportErrorNonBlocking 通道满时不阻塞
func TestReportErrorNonBlocking(t *testing.T) {
	errChan := make(chan error, 1)
	ctx := WithErrChan(context.Background(), errChan)

	if !ReportError(ctx, fmt.Errorf("first")) {
		t.Fatal("第一次上报应成功")
	}
	if ReportError(ctx, fmt.Errorf("second")) {
		t.Fatal("通道已满时应返回 false")
	}
	if err := <-errChan; err.Error() != "first" {
		t.Errorf("期望 first，得到 %v", err)
	}
}
