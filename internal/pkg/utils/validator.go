package utils

import (
	"fmt"
	"reflect"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// allowPastDue notpast 规则是否放行过去的时间，随配置热更新
var allowPastDue atomic.Bool

// SetAllowPastDue 设置 notpast 规则是否放行过去的时间
func SetAllowPastDue(allow bool) {
	allowPastDue.Store(allow)
}

// RegisterValidators 在 gin 的校验引擎上注册自定义规则
//   - notpast: time.Time 字段不得早于当前时间(允许过去时间时跳过)
//
// 同时让校验错误中的字段名使用 json 标签
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("unexpected validator engine %T", binding.Validator.Engine())
	}

	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return v.RegisterValidation("notpast", notPast)
}

// notPast 截止时间不早于当前时间
func notPast(fl validator.FieldLevel) bool {
	due, ok := fl.Field().Interface().(time.Time)
	if !ok {
		return false
	}
	if allowPastDue.Load() {
		return true
	}
	return !due.Before(time.Now())
}

// TranslateValidationErrors 将 validator 错误转换为 字段 -> 消息
func TranslateValidationErrors(err error) map[string]string {
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return nil
	}

	result := make(map[string]string, len(errs))
	for _, fe := range errs {
		var msg string
		switch fe.Tag() {
		case "required":
			msg = "is required"
		case "gt":
			msg = "must be greater than " + fe.Param()
		case "notpast":
			msg = "cannot be in the past"
		default:
			msg = "failed on the '" + fe.Tag() + "' rule"
		}
		result[fe.Field()] = msg
	}
	return result
}
