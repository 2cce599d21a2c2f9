// Package models - Entity là bản ghi nghiệp vụ generic (lead, client, ticket...).
// Mỗi loại entity là một Local Collection do Local Store sở hữu độc quyền,
// lưu theo convention field nội bộ (camelCase); convention cột của remote store
// chỉ tồn tại ở biên dịch schema (internal/mapper).
package models

// EntityType định danh một loại entity / một Local Collection.
type EntityType string

// Các loại entity được quản lý.
const (
	TypeLeads        EntityType = "leads"
	TypeClients      EntityType = "clients"
	TypeTickets      EntityType = "tickets"
	TypeInvoices     EntityType = "invoices"
	TypeActivities   EntityType = "activities"
	TypeProducts     EntityType = "products"
	TypeProjects     EntityType = "projects"
	TypeProposals    EntityType = "proposals"
	TypeCompetitors  EntityType = "competitors"
	TypeCustomFields EntityType = "custom_fields"
	TypeWebhooks     EntityType = "webhooks"
	TypeWorkflows    EntityType = "workflows"
	TypeAudit        EntityType = "audit"
)

// AllTypes trả về danh sách mọi loại entity theo thứ tự cố định.
// Thứ tự này cũng là thứ tự hydrate lúc khởi động.
func AllTypes() []EntityType {
	return []EntityType{
		TypeLeads, TypeClients, TypeTickets, TypeInvoices, TypeActivities,
		TypeProducts, TypeProjects, TypeProposals, TypeCompetitors,
		TypeCustomFields, TypeWebhooks, TypeWorkflows, TypeAudit,
	}
}

// Tên field nội bộ dùng chung cho mọi loại entity.
const (
	FieldID           = "id"
	FieldOrganization = "organization" // Tenant sở hữu bản ghi
	FieldCreatedAt    = "createdAt"
	FieldStatus       = "status"
)

// Entity là một bản ghi nghiệp vụ dạng map field nội bộ -> giá trị.
// Dùng map thay vì struct riêng từng loại vì 13 collection đi qua cùng một
// pipeline (store → mapper → reconciler) và bảng field-map là declarative.
type Entity map[string]interface{}

// ID trả về định danh của entity (rỗng nếu chưa có).
func (e Entity) ID() string {
	id, _ := e[FieldID].(string)
	return id
}

// SetID gán định danh. Định danh là bất biến sau khi tạo —
// caller chỉ gọi khi entity chưa có id.
func (e Entity) SetID(id string) {
	e[FieldID] = id
}

// Organization trả về tenant sở hữu entity (rỗng nếu chưa gán).
func (e Entity) Organization() string {
	org, _ := e[FieldOrganization].(string)
	return org
}

// SetOrganization gán tenant. Tenant đã gán không bao giờ bị xóa,
// chỉ được backfill khi đang vắng.
func (e Entity) SetOrganization(org string) {
	e[FieldOrganization] = org
}

// Status trả về trạng thái hiện tại của entity (rỗng nếu không có).
func (e Entity) Status() string {
	s, _ := e[FieldStatus].(string)
	return s
}

// Clone trả về bản sao nông của entity — đủ để các hook đọc mà không
// đua với mutation kế tiếp trên cùng bản ghi.
func (e Entity) Clone() Entity {
	if e == nil {
		return nil
	}
	out := make(Entity, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

// Actor là người thực hiện một mutation. Actor có thể vắng (mutation do
// hệ thống tự sinh) — khi đó audit entry không được tạo.
type Actor struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Organization string `json:"organization"`
}
