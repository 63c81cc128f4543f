package errors

import (
	"errors"
	"fmt"
	"testing"
)

// TestAppError_Error 测试错误信息格式
func TestAppError_Error(t *testing.T) {
	err := New(ErrCodeOutOfStock, "库存不足")
	if err.Error() != "[40001] 库存不足" {
		t.Errorf("错误信息格式不对: %s", err.Error())
	}

	wrapped := Wrap(errors.New("connection refused"), "数据库错误")
	if wrapped.Error() != "[50000] 数据库错误: connection refused" {
		t.Errorf("包装错误信息格式不对: %s", wrapped.Error())
	}
}

// TestAppError_Unwrap 测试错误链
func TestAppError_Unwrap(t *testing.T) {
	inner := errors.New("connection refused")
	wrapped := Wrap(inner, "数据库错误")

	if !errors.Is(wrapped, inner) {
		t.Error("errors.Is应该能找到被包装的原始错误")
	}
}

// TestIsAppError 测试AppError判断
func TestIsAppError(t *testing.T) {
	if !IsAppError(ErrOutOfStock) {
		t.Error("预定义错误应该是AppError")
	}
	if !IsAppError(fmt.Errorf("外层: %w", ErrOutOfStock)) {
		t.Error("错误链中的AppError也应该被识别")
	}
	if IsAppError(errors.New("plain")) {
		t.Error("普通错误不是AppError")
	}
}

// TestGetAppError 测试AppError提取
func TestGetAppError(t *testing.T) {
	appErr := GetAppError(ErrDuplicateRef)
	if appErr.Code != ErrCodeDuplicateRef {
		t.Errorf("期望错误码%d，实际%d", ErrCodeDuplicateRef, appErr.Code)
	}

	// 普通错误包装成Internal
	appErr = GetAppError(errors.New("something broke"))
	if appErr.Code != ErrCodeInternal {
		t.Errorf("普通错误应该包装成Internal，实际%d", appErr.Code)
	}
}
