// Package systemhdl chứa các route vận hành: health, sync thủ công,
// điều khiển bulk dispatch và làm mới phiên remote.
package systemhdl

import (
	"context"
	"sync"

	basehdl "nexus_crm/internal/api/base/handler"
	recordmodels "nexus_crm/internal/api/records/models"
	recordsvc "nexus_crm/internal/api/records/service"
	"nexus_crm/internal/dispatch"
	"nexus_crm/internal/global"
	"nexus_crm/internal/remote"

	"github.com/gofiber/fiber/v3"
)

// SystemHandler giữ các phụ thuộc vận hành. Mỗi tiến trình chỉ chạy tối đa
// một dispatch job tại một thời điểm; job mới thay job đã xong.
type SystemHandler struct {
	store      *recordsvc.LocalStore
	reconciler *remote.Reconciler
	session    *remote.StaticSession
	scheduler  *dispatch.Scheduler
	baseCtx    context.Context // Context nền cho job chạy lâu hơn request

	mu  sync.Mutex
	job *dispatch.Job
}

// NewSystemHandler tạo handler cho các route vận hành. baseCtx là context
// vòng đời tiến trình: dispatch job gắn vào nó để sống qua request và bị
// hủy khi shutdown.
func NewSystemHandler(baseCtx context.Context, store *recordsvc.LocalStore, reconciler *remote.Reconciler, session *remote.StaticSession, scheduler *dispatch.Scheduler) *SystemHandler {
	return &SystemHandler{baseCtx: baseCtx, store: store, reconciler: reconciler, session: session, scheduler: scheduler}
}

// Health trả về trạng thái tiến trình và phiên remote.
func (h *SystemHandler) Health(c fiber.Ctx) error {
	return basehdl.OK(c, fiber.Map{
		"status":      "ok",
		"sessionLive": h.session.Live(),
	})
}

// SyncPull chạy một vòng pull thủ công và trả về kết quả từng bảng.
func (h *SystemHandler) SyncPull(c fiber.Ctx) error {
	results := h.reconciler.PullAll(c.Context())
	out := make([]fiber.Map, 0, len(results))
	for _, r := range results {
		item := fiber.Map{"type": r.Type, "count": r.Count}
		if r.Err != nil {
			item["error"] = r.Err.Error()
		}
		out = append(out, item)
	}
	return basehdl.OK(c, out)
}

// SessionRenewInput là input làm mới phiên remote.
type SessionRenewInput struct {
	Token        string `json:"token" validate:"required"`
	Organization string `json:"organization" validate:"required"`
}

// SessionRenew thay token và organization của phiên; mọi listener đã đăng
// ký (trong đó có vòng pull lại toàn bộ) sẽ được gọi.
func (h *SystemHandler) SessionRenew(c fiber.Ctx) error {
	var input SessionRenewInput
	if err := c.Bind().Body(&input); err != nil {
		return basehdl.Fail(c, fiber.StatusBadRequest, "body không phải JSON hợp lệ")
	}
	if err := global.Validate.Struct(input); err != nil {
		return basehdl.Fail(c, fiber.StatusBadRequest, err.Error())
	}
	h.session.Renew(input.Token, input.Organization)
	return basehdl.OK(c, fiber.Map{"sessionLive": h.session.Live()})
}

// DispatchStartInput chọn nguồn và nội dung cho một chiến dịch gửi hàng loạt.
type DispatchStartInput struct {
	Source  recordmodels.EntityType `json:"source" validate:"required,oneof=leads clients"`
	IDs     []string                `json:"ids" validate:"required,min=1"`
	Subject string                  `json:"subject" validate:"required"`
	Body    string                  `json:"body" validate:"required"`
}

// DispatchStart khởi động một chiến dịch gửi email hàng loạt trên nền.
func (h *SystemHandler) DispatchStart(c fiber.Ctx) error {
	var input DispatchStartInput
	if err := c.Bind().Body(&input); err != nil {
		return basehdl.Fail(c, fiber.StatusBadRequest, "body không phải JSON hợp lệ")
	}
	if err := global.Validate.Struct(input); err != nil {
		return basehdl.Fail(c, fiber.StatusBadRequest, err.Error())
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.job != nil {
		select {
		case <-h.job.Done():
		default:
			return basehdl.Fail(c, fiber.StatusConflict, "đang có chiến dịch khác chạy")
		}
	}

	targets := h.resolveTargets(input.Source, input.IDs)
	tpl := dispatch.Template{Subject: input.Subject, Body: input.Body}
	job, err := h.scheduler.Start(h.baseCtx, targets, tpl, actorFromHeaders(c))
	if err != nil {
		return basehdl.Fail(c, fiber.StatusBadRequest, err.Error())
	}
	h.job = job
	return basehdl.OK(c, job.Progress())
}

// DispatchCancel hủy chiến dịch đang chạy tại ranh giới item kế tiếp.
func (h *SystemHandler) DispatchCancel(c fiber.Ctx) error {
	h.mu.Lock()
	job := h.job
	h.mu.Unlock()
	if job == nil {
		return basehdl.Fail(c, fiber.StatusNotFound, "không có chiến dịch nào")
	}
	job.Cancel()
	return basehdl.OK(c, job.Progress())
}

// DispatchProgress trả về snapshot tiến độ chiến dịch gần nhất.
func (h *SystemHandler) DispatchProgress(c fiber.Ctx) error {
	h.mu.Lock()
	job := h.job
	h.mu.Unlock()
	if job == nil {
		return basehdl.Fail(c, fiber.StatusNotFound, "không có chiến dịch nào")
	}
	return basehdl.OK(c, job.Progress())
}

// resolveTargets đọc Target từ Local Store theo danh sách id; id không tồn
// tại bị bỏ qua, địa chỉ không hợp lệ sẽ bị scheduler lọc tiếp.
func (h *SystemHandler) resolveTargets(source recordmodels.EntityType, ids []string) []dispatch.Target {
	targets := make([]dispatch.Target, 0, len(ids))
	for _, id := range ids {
		e, found := h.store.FindByID(source, id)
		if !found {
			continue
		}
		name, _ := e["name"].(string)
		email, _ := e["email"].(string)
		targets = append(targets, dispatch.Target{
			ID:      id,
			Name:    name,
			Address: email,
			Type:    source,
		})
	}
	return targets
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
