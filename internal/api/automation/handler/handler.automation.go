// Package automationhdl chứa HTTP handler tạo automation rule và webhook
// subscription. Bản ghi tạo ra sống trong Local Store như entity thường nên
// tự động được persist và sync; engine sẽ đọc chúng mỗi lần có event.
package automationhdl

import (
	automationdto "nexus_crm/internal/api/automation/dto"
	basehdl "nexus_crm/internal/api/base/handler"
	recordmodels "nexus_crm/internal/api/records/models"
	recordsvc "nexus_crm/internal/api/records/service"
	"nexus_crm/internal/global"

	"github.com/gofiber/fiber/v3"
)

// AutomationHandler xử lý các route /automation.
type AutomationHandler struct {
	store *recordsvc.LocalStore
}

// NewAutomationHandler tạo handler cho domain automation.
func NewAutomationHandler(store *recordsvc.LocalStore) *AutomationHandler {
	return &AutomationHandler{store: store}
}

func actorFromHeaders(c fiber.Ctx) *recordmodels.Actor {
	id := c.Get("X-Actor-Id")
	if id == "" {
		return nil
	}
	return &recordmodels.Actor{
		ID:           id,
		Name:         c.Get("X-Actor-Name"),
		Organization: c.Get("X-Actor-Org"),
	}
}

// CreateWorkflow tạo một automation rule mới.
func (h *AutomationHandler) CreateWorkflow(c fiber.Ctx) error {
	var input automationdto.WorkflowCreateInput
	if err := c.Bind().Body(&input); err != nil {
		return basehdl.Fail(c, fiber.StatusBadRequest, "body không phải JSON hợp lệ")
	}
	if err := global.Validate.Struct(input); err != nil {
		return basehdl.Fail(c, fiber.StatusBadRequest, err.Error())
	}

	e := recordmodels.Entity{
		"name":         input.Name,
		"active":       input.Active,
		"triggerEvent": input.TriggerEvent,
		"actions":      input.Actions,
		"runs":         0,
	}
	created, err := h.store.Add(c.Context(), recordmodels.TypeWorkflows, e, actorFromHeaders(c))
	if err != nil {
		return basehdl.Fail(c, fiber.StatusInternalServerError, err.Error())
	}
	return basehdl.Created(c, created)
}

// CreateWebhook đăng ký một webhook subscription mới.
func (h *AutomationHandler) CreateWebhook(c fiber.Ctx) error {
	var input automationdto.WebhookCreateInput
	if err := c.Bind().Body(&input); err != nil {
		return basehdl.Fail(c, fiber.StatusBadRequest, "body không phải JSON hợp lệ")
	}
	if err := global.Validate.Struct(input); err != nil {
		return basehdl.Fail(c, fiber.StatusBadRequest, err.Error())
	}

	method := input.Method
	if method == "" {
		method = "POST"
	}
	e := recordmodels.Entity{
		"name":         input.Name,
		"targetUrl":    input.TargetURL,
		"triggerEvent": input.TriggerEvent,
		"method":       method,
		"active":       input.Active,
	}
	if len(input.Headers) > 0 {
		e["headers"] = input.Headers
	}
	created, err := h.store.Add(c.Context(), recordmodels.TypeWebhooks, e, actorFromHeaders(c))
	if err != nil {
		return basehdl.Fail(c, fiber.StatusInternalServerError, err.Error())
	}
	return basehdl.Created(c, created)
}
