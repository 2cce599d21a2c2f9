// Package mapper là biên dịch schema hai chiều giữa convention field nội bộ
// (camelCase) và convention cột của remote store (snake_case).
// Thuần hàm, không I/O, không state. Bảng field-pair là declarative: thêm
// cặp field mới chỉ cần thêm một dòng vào bảng, không thêm nhánh điều kiện.
package mapper

import (
	recordmodels "nexus_crm/internal/api/records/models"
)

// fieldPair là một cặp tên field: nội bộ <-> cột remote.
type fieldPair struct {
	internal string
	external string
}

// commonPairs áp dụng cho mọi loại entity.
var commonPairs = []fieldPair{
	{internal: recordmodels.FieldOrganization, external: "organization_id"},
	{internal: recordmodels.FieldCreatedAt, external: "created_at"},
}

// typePairs là bảng field-pair theo từng loại entity. Field trùng tên giữa
// hai loại (vd dueDate của tickets và invoices) vẫn tách bảng riêng — loại
// entity luôn là tham số tường minh, không bao giờ suy ra từ payload.
var typePairs = map[recordmodels.EntityType][]fieldPair{
	recordmodels.TypeLeads: {
		{internal: "contactPerson", external: "contact_person"},
		{internal: "healthScore", external: "health_score"},
		{internal: "lastContactedAt", external: "last_contacted_at"},
		{internal: "assignedTo", external: "assigned_to"},
	},
	recordmodels.TypeClients: {
		{internal: "contactPerson", external: "contact_person"},
		{internal: "healthScore", external: "health_score"},
		{internal: "taxCode", external: "tax_code"},
	},
	recordmodels.TypeTickets: {
		{internal: "dueDate", external: "due_date"},
		{internal: "clientId", external: "client_id"},
		{internal: "assignedTo", external: "assigned_to"},
		{internal: "closedAt", external: "closed_at"},
	},
	recordmodels.TypeInvoices: {
		{internal: "dueDate", external: "due_date"},
		{internal: "clientId", external: "client_id"},
		{internal: "paidAt", external: "paid_at"},
		{internal: "totalAmount", external: "total_amount"},
	},
	recordmodels.TypeActivities: {
		{internal: "relatedType", external: "related_type"},
		{internal: "relatedId", external: "related_id"},
		{internal: "performedBy", external: "performed_by"},
	},
	recordmodels.TypeProducts: {
		{internal: "unitPrice", external: "unit_price"},
		{internal: "stockQuantity", external: "stock_quantity"},
	},
	recordmodels.TypeProjects: {
		{internal: "clientId", external: "client_id"},
		{internal: "startDate", external: "start_date"},
		{internal: "endDate", external: "end_date"},
	},
	recordmodels.TypeProposals: {
		{internal: "clientId", external: "client_id"},
		{internal: "invoiceId", external: "invoice_id"},
		{internal: "validUntil", external: "valid_until"},
	},
	recordmodels.TypeCompetitors: {
		{internal: "marketShare", external: "market_share"},
	},
	recordmodels.TypeCustomFields: {
		{internal: "appliesTo", external: "applies_to"},
		{internal: "fieldType", external: "field_type"},
	},
	recordmodels.TypeWebhooks: {
		{internal: "targetUrl", external: "target_url"},
		{internal: "triggerEvent", external: "trigger_event"},
	},
	recordmodels.TypeWorkflows: {
		{internal: "triggerEvent", external: "trigger_event"},
		{internal: "lastRun", external: "last_run"},
	},
	recordmodels.TypeAudit: {
		{internal: "actorId", external: "actor_id"},
		{internal: "actorName", external: "actor_name"},
	},
}

// tables ánh xạ loại entity -> tên bảng trên remote store.
var tables = map[recordmodels.EntityType]string{
	recordmodels.TypeLeads:        "leads",
	recordmodels.TypeClients:      "clients",
	recordmodels.TypeTickets:      "tickets",
	recordmodels.TypeInvoices:     "invoices",
	recordmodels.TypeActivities:   "activities",
	recordmodels.TypeProducts:     "products",
	recordmodels.TypeProjects:     "projects",
	recordmodels.TypeProposals:    "proposals",
	recordmodels.TypeCompetitors:  "competitors",
	recordmodels.TypeCustomFields: "custom_fields",
	recordmodels.TypeWebhooks:     "webhooks",
	recordmodels.TypeWorkflows:    "workflows",
	recordmodels.TypeAudit:        "audit_trail",
}

// TableFor trả về tên bảng remote của một loại entity.
func TableFor(t recordmodels.EntityType) string {
	if table, ok := tables[t]; ok {
		return table
	}
	return string(t)
}

// pairsFor gộp cặp chung + cặp riêng của loại entity.
func pairsFor(t recordmodels.EntityType) []fieldPair {
	pairs := make([]fieldPair, 0, len(commonPairs)+len(typePairs[t]))
	pairs = append(pairs, commonPairs...)
	pairs = append(pairs, typePairs[t]...)
	return pairs
}

// ToExternal dịch một entity sang Remote Record (convention cột remote).
// Chỉ đổi tên field có mặt trong nguồn; field vắng giữ nguyên vắng, không đổ null.
//
// Ngoại lệ riêng cho proposals: invoiceId chuỗi rỗng dịch thành invoice_id = nil
// tường minh — remote store có ràng buộc khóa ngoại trên cột này và chuỗi rỗng
// sẽ bị từ chối. Đây là phép dịch một chiều có chủ đích (lossy).
func ToExternal(t recordmodels.EntityType, e recordmodels.Entity) map[string]interface{} {
	out := make(map[string]interface{}, len(e))
	renamed := make(map[string]string, len(e))
	for _, p := range pairsFor(t) {
		renamed[p.internal] = p.external
	}

	for k, v := range e {
		if external, ok := renamed[k]; ok {
			out[external] = v
		} else {
			out[k] = v
		}
	}

	if t == recordmodels.TypeProposals {
		if v, ok := out["invoice_id"]; ok {
			if s, isStr := v.(string); isStr && s == "" {
				out["invoice_id"] = nil
			}
		}
	}

	return out
}

// ToInternal dịch một danh sách Remote Record về entity nội bộ.
// Quy tắc đối xứng với ToExternal: chỉ đổi tên key có mặt, không đổ null.
func ToInternal(t recordmodels.EntityType, rows []map[string]interface{}) []recordmodels.Entity {
	renamed := make(map[string]string)
	for _, p := range pairsFor(t) {
		renamed[p.external] = p.internal
	}

	out := make([]recordmodels.Entity, 0, len(rows))
	for _, row := range rows {
		e := make(recordmodels.Entity, len(row))
		for k, v := range row {
			if internal, ok := renamed[k]; ok {
				e[internal] = v
			} else {
				e[k] = v
			}
		}
		out = append(out, e)
	}
	return out
}
