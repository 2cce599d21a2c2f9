// Package global giữ validator instance dùng chung cho các handler.
package global

import (
	"github.com/go-playground/validator/v10"
)

// Validate là validator instance dùng chung, khởi tạo qua InitValidator.
var Validate *validator.Validate

// InitValidator khởi tạo validator. Gọi một lần lúc khởi động, trước khi
// đăng ký route.
func InitValidator() {
	Validate = validator.New()
}
