// Package router đăng ký toàn bộ route của server lên một fiber app.
// Handler được tạo từ Deps đã inject ở main; router không tự dựng service.
package router

import (
	"context"

	"github.com/gofiber/fiber/v3"

	audithdl "nexus_crm/internal/api/audit/handler"
	auditsvc "nexus_crm/internal/api/audit/service"
	automationhdl "nexus_crm/internal/api/automation/handler"
	recordshdl "nexus_crm/internal/api/records/handler"
	recordsvc "nexus_crm/internal/api/records/service"
	systemhdl "nexus_crm/internal/api/system/handler"
	"nexus_crm/internal/dispatch"
	"nexus_crm/internal/remote"
)

// Deps gom các phụ thuộc mà các handler cần.
type Deps struct {
	BaseCtx    context.Context
	Store      *recordsvc.LocalStore
	Emitter    *auditsvc.Emitter
	Reconciler *remote.Reconciler
	Session    *remote.StaticSession
	Scheduler  *dispatch.Scheduler
}

// Register đăng ký tất cả route lên /api/v1.
func Register(app *fiber.App, deps Deps) {
	records := recordshdl.NewRecordsHandler(deps.Store, deps.Emitter)
	audit := audithdl.NewAuditHandler(deps.Store, deps.Emitter)
	automation := automationhdl.NewAutomationHandler(deps.Store)
	system := systemhdl.NewSystemHandler(deps.BaseCtx, deps.Store, deps.Reconciler, deps.Session, deps.Scheduler)

	v1 := app.Group("/api/v1")

	// GET /health — trạng thái tiến trình và phiên remote
	v1.Get("/health", system.Health)

	// CRUD trên mọi Local Collection. :type là một loại entity được quản lý
	v1.Get("/records/:type", records.List)
	v1.Get("/records/:type/:id", records.GetOne)
	v1.Post("/records/:type", records.Create)
	v1.Put("/records/:type/:id", records.Update)
	v1.Delete("/records/:type/:id", records.Delete)

	// Audit trail và notification center
	v1.Get("/audit", audit.ListEntries)
	v1.Get("/notifications", audit.ListNotifications)
	v1.Post("/notifications/:id/read", audit.MarkRead)

	// Automation: rule và webhook subscription
	v1.Post("/automation/workflows", automation.CreateWorkflow)
	v1.Post("/automation/webhooks", automation.CreateWebhook)

	// Vận hành: sync thủ công, phiên remote, bulk dispatch
	v1.Post("/sync/pull", system.SyncPull)
	v1.Post("/session/renew", system.SessionRenew)
	v1.Post("/dispatch/start", system.DispatchStart)
	v1.Post("/dispatch/cancel", system.DispatchCancel)
	v1.Get("/dispatch/progress", system.DispatchProgress)
}
