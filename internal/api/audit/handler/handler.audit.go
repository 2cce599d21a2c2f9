// Package audithdl chứa HTTP handler cho audit trail và notification center.
package audithdl

import (
	auditsvc "nexus_crm/internal/api/audit/service"
	basehdl "nexus_crm/internal/api/base/handler"
	recordmodels "nexus_crm/internal/api/records/models"
	recordsvc "nexus_crm/internal/api/records/service"

	"github.com/gofiber/fiber/v3"
)

// AuditHandler đọc audit trail từ Local Store và notification từ emitter.
type AuditHandler struct {
	store   *recordsvc.LocalStore
	emitter *auditsvc.Emitter
}

// NewAuditHandler tạo handler cho domain audit.
func NewAuditHandler(store *recordsvc.LocalStore, emitter *auditsvc.Emitter) *AuditHandler {
	return &AuditHandler{store: store, emitter: emitter}
}

// ListEntries trả về toàn bộ audit trail (mới nhất ở cuối, theo thứ tự ghi).
func (h *AuditHandler) ListEntries(c fiber.Ctx) error {
	return basehdl.OK(c, h.store.Get(recordmodels.TypeAudit))
}

// ListNotifications trả về buffer notification trong phiên kèm số chưa đọc.
func (h *AuditHandler) ListNotifications(c fiber.Ctx) error {
	return basehdl.OK(c, fiber.Map{
		"items":  h.emitter.Notifications(),
		"unread": h.emitter.UnreadCount(),
	})
}

// MarkRead đánh dấu một notification đã đọc.
func (h *AuditHandler) MarkRead(c fiber.Ctx) error {
	if !h.emitter.MarkRead(c.Params("id")) {
		return basehdl.Fail(c, fiber.StatusNotFound, "không tìm thấy notification")
	}
	return basehdl.OK(c, fiber.Map{"id": c.Params("id"), "read": true})
}
