package validator

import (
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	once     sync.Once
	validate *validator.Validate

	// nonceActions 允许签发验证令牌的动作
	nonceActions = map[string]struct{}{}
	actionsMu    sync.RWMutex
)

// RegisterNonceAction 登记允许签发验证令牌的动作名
func RegisterNonceAction(actions ...string) {
	actionsMu.Lock()
	defer actionsMu.Unlock()
	for _, a := range actions {
		nonceActions[a] = struct{}{}
	}
}

// Get 获取验证器实例
func Get() *validator.Validate {
	once.Do(func() {
		validate = validator.New()
		configure(validate)
	})
	return validate
}

// Init 初始化验证器并绑定到 Gin
func Init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		configure(v)
	}
}

func configure(v *validator.Validate) {
	// 使用 JSON tag 作为字段名
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	registerCustomValidators(v)
}

// registerCustomValidators 注册自定义验证器
func registerCustomValidators(v *validator.Validate) {
	_ = v.RegisterValidation("nonce_action", func(fl validator.FieldLevel) bool {
		actionsMu.RLock()
		defer actionsMu.RUnlock()
		_, ok := nonceActions[fl.Field().String()]
		return ok
	})
}

// Validate 验证结构体
func Validate(s interface{}) error {
	return Get().Struct(s)
}

// ValidationErrors 格式化验证错误
func ValidationErrors(err error) map[string]string {
	errors := make(map[string]string)

	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		for _, e := range validationErrors {
			field := e.Field()
			switch e.Tag() {
			case "required":
				errors[field] = field + " is required"
			case "min":
				errors[field] = field + " must be at least " + e.Param()
			case "max":
				errors[field] = field + " must be at most " + e.Param()
			case "url":
				errors[field] = field + " must be a valid URL"
			case "nonce_action":
				errors[field] = field + " is not a known action"
			default:
				errors[field] = field + " is invalid"
			}
		}
	}

	return errors
}
