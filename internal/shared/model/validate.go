package model

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// structValidator 返回共享的 validator 实例（首次调用时初始化）
//
// 字段名使用 json tag，使错误信息与文档字段一致。
func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// validateStruct 执行 struct tag 校验，并把第一个失败转换为 ValidationError
func validateStruct(v any) error {
	err := structValidator().Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		field := fe.Namespace()
		if i := strings.Index(field, "."); i >= 0 {
			field = field[i+1:]
		}
		switch fe.Tag() {
		case "oneof":
			return newValidationError(field, "invalid value %q, must be one of [%s]", fe.Value(), fe.Param())
		case "required":
			return newValidationError(field, "is required")
		default:
			return newValidationError(field, "failed on %q", fe.Tag())
		}
	}
	return newValidationError("", "%v", err)
}
