// Package model 定义核心数据模型
//
// errors.go 包含模型层的校验错误定义：
//   - ErrValidation：所有构造期校验错误的哨兵值
//   - ValidationError：携带字段与原因的校验错误
package model

import (
	"errors"
	"fmt"
)

// ErrValidation 构造期校验失败
//
// 使用 errors.Is(err, ErrValidation) 判断是否为校验错误。
var ErrValidation = errors.New("validation failed")

// ValidationError 校验错误
//
// 在构造 Message / TaskResponse / References 时产生，直接返回给调用方，
// 不做静默恢复。
type ValidationError struct {
	// Field 出错的字段路径，如 tool_calls[2]
	Field string

	// Reason 错误原因
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

// Is 使 errors.Is(err, ErrValidation) 成立
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func newValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
