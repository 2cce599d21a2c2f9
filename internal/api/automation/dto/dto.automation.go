// Package automationdto chứa input DTO cho domain Automation.
// Validate bằng go-playground/validator trước khi ghi vào Local Store.
package automationdto

// WorkflowCreateInput là input tạo một automation rule.
type WorkflowCreateInput struct {
	Name         string   `json:"name" validate:"required,min=1,max=200"`
	Active       bool     `json:"active"`
	TriggerEvent string   `json:"triggerEvent" validate:"required"`
	Actions      []string `json:"actions" validate:"omitempty,dive,min=1"`
}

// WebhookCreateInput là input đăng ký một webhook subscription.
type WebhookCreateInput struct {
	Name         string            `json:"name" validate:"required,min=1,max=200"`
	TargetURL    string            `json:"targetUrl" validate:"required,url"`
	TriggerEvent string            `json:"triggerEvent" validate:"required"`
	Method       string            `json:"method" validate:"omitempty,oneof=GET POST PUT PATCH DELETE"`
	Active       bool              `json:"active"`
	Headers      map[string]string `json:"headers" validate:"omitempty"`
}
