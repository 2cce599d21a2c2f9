// Package recordshdl chứa HTTP handler CRUD-qua-store cho các Local Collection.
// Handler chỉ chạm Local Store; đồng bộ remote, audit và automation đều đi
// qua hook của store — đường ghi tương tác trả về ngay sau phần local đồng bộ.
package recordshdl

import (
	auditsvc "nexus_crm/internal/api/audit/service"
	basehdl "nexus_crm/internal/api/base/handler"
	recordmodels "nexus_crm/internal/api/records/models"
	recordsvc "nexus_crm/internal/api/records/service"

	"github.com/gofiber/fiber/v3"
)

// RecordsHandler xử lý các route CRUD cho mọi loại entity.
type RecordsHandler struct {
	store   *recordsvc.LocalStore
	emitter *auditsvc.Emitter
}

// NewRecordsHandler tạo handler gắn với store và emitter đã inject.
func NewRecordsHandler(store *recordsvc.LocalStore, emitter *auditsvc.Emitter) *RecordsHandler {
	return &RecordsHandler{store: store, emitter: emitter}
}

// actorFromHeaders đọc actor từ header. Nhà cung cấp xác thực nằm ngoài
// phạm vi — actor có thể vắng, khi đó mutation được coi là của hệ thống.
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

// parseType xác thực path param :type là một loại entity được quản lý.
func parseType(c fiber.Ctx) (recordmodels.EntityType, bool) {
	t := recordmodels.EntityType(c.Params("type"))
	for _, known := range recordmodels.AllTypes() {
		if t == known {
			return t, true
		}
	}
	return "", false
}

// List trả về toàn bộ một Local Collection.
func (h *RecordsHandler) List(c fiber.Ctx) error {
	t, ok := parseType(c)
	if !ok {
		return basehdl.Fail(c, fiber.StatusNotFound, "loại entity không được quản lý")
	}
	return basehdl.OK(c, h.store.Get(t))
}

// GetOne trả về một entity theo id.
func (h *RecordsHandler) GetOne(c fiber.Ctx) error {
	t, ok := parseType(c)
	if !ok {
		return basehdl.Fail(c, fiber.StatusNotFound, "loại entity không được quản lý")
	}
	e, found := h.store.FindByID(t, c.Params("id"))
	if !found {
		return basehdl.Fail(c, fiber.StatusNotFound, "không tìm thấy bản ghi")
	}
	return basehdl.OK(c, e)
}

// Create thêm một entity mới vào collection.
func (h *RecordsHandler) Create(c fiber.Ctx) error {
	t, ok := parseType(c)
	if !ok {
		return basehdl.Fail(c, fiber.StatusNotFound, "loại entity không được quản lý")
	}

	var e recordmodels.Entity
	if err := c.Bind().Body(&e); err != nil {
		return basehdl.Fail(c, fiber.StatusBadRequest, "body không phải JSON hợp lệ")
	}

	actor := actorFromHeaders(c)
	created, err := h.store.Add(c.Context(), t, e, actor)
	if err != nil {
		return basehdl.Fail(c, fiber.StatusInternalServerError, err.Error())
	}

	h.emitter.Record(c.Context(), actor, string(t)+"_create", "Tạo bản ghi "+created.ID(), string(t))
	return basehdl.Created(c, created)
}

// Update thay thế entity theo id trong path.
func (h *RecordsHandler) Update(c fiber.Ctx) error {
	t, ok := parseType(c)
	if !ok {
		return basehdl.Fail(c, fiber.StatusNotFound, "loại entity không được quản lý")
	}

	var e recordmodels.Entity
	if err := c.Bind().Body(&e); err != nil {
		return basehdl.Fail(c, fiber.StatusBadRequest, "body không phải JSON hợp lệ")
	}
	e.SetID(c.Params("id"))

	actor := actorFromHeaders(c)
	if _, err := h.store.Update(c.Context(), t, e, actor); err != nil {
		return basehdl.Fail(c, fiber.StatusInternalServerError, err.Error())
	}

	h.emitter.Record(c.Context(), actor, string(t)+"_update", "Cập nhật bản ghi "+e.ID(), string(t))
	return basehdl.OK(c, e)
}

// Delete xóa entity theo id; id không tồn tại vẫn trả thành công (no-op).
func (h *RecordsHandler) Delete(c fiber.Ctx) error {
	t, ok := parseType(c)
	if !ok {
		return basehdl.Fail(c, fiber.StatusNotFound, "loại entity không được quản lý")
	}

	id := c.Params("id")
	actor := actorFromHeaders(c)
	h.store.Remove(c.Context(), t, id, actor)

	h.emitter.Record(c.Context(), actor, string(t)+"_delete", "Xóa bản ghi "+id, string(t))
	return basehdl.OK(c, fiber.Map{"id": id})
}
