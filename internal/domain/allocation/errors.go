package allocation

import (
	apperrors "github.com/xiebiao/allocation/pkg/errors"
)

// 分配领域错误定义
var (
	// ErrProductNotFound SKU对应的产品不存在
	ErrProductNotFound = apperrors.ErrProductNotFound

	// ErrBatchNotFound 批次不存在
	ErrBatchNotFound = apperrors.ErrBatchNotFound

	// ErrDuplicateRef 批次引用号已存在
	ErrDuplicateRef = apperrors.ErrDuplicateRef

	// ErrInvalidQuantity 数量不合法
	ErrInvalidQuantity = apperrors.New(apperrors.ErrCodeInvalidParams, "数量必须大于0")
)
