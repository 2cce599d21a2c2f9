// Package models - AuditEntry và Notification thuộc domain Audit.
package models

import (
	recordmodels "nexus_crm/internal/api/records/models"
)

// AuditEntry là một dòng nhật ký bất biến: ghi một lần, không bao giờ sửa/xóa.
// Chỉ tạo khi mutation có actor — mutation hệ thống tự sinh không có audit.
type AuditEntry struct {
	ID           string `json:"id"`
	Timestamp    string `json:"timestamp"` // RFC3339 UTC
	ActorID      string `json:"actorId"`
	ActorName    string `json:"actorName"`
	Action       string `json:"action"` // Nhãn hành động, vd "lead_create"
	Detail       string `json:"detail"` // Mô tả tự do
	Module       string `json:"module"` // Nhãn module nghiệp vụ, vd "leads"
	Organization string `json:"organization"`
}

// ToEntity chuyển AuditEntry thành Entity để append vào collection audit.
func (a AuditEntry) ToEntity() recordmodels.Entity {
	return recordmodels.Entity{
		recordmodels.FieldID: a.ID,
		"timestamp":          a.Timestamp,
		"actorId":            a.ActorID,
		"actorName":          a.ActorName,
		"action":             a.Action,
		"detail":             a.Detail,
		"module":             a.Module,
		recordmodels.FieldOrganization: a.Organization,
	}
}

// Mức độ nghiêm trọng của notification.
const (
	SeverityInfo    = "info"
	SeverityWarning = "warning"
	SeveritySuccess = "success"
	SeverityAlert   = "alert" // Ảnh hưởng tính đúng/khả kiến của dữ liệu — hiện cho người dùng
)

// RelatedRef trỏ đến entity liên quan của một notification (tùy chọn).
type RelatedRef struct {
	Type recordmodels.EntityType `json:"type"`
	ID   string                  `json:"id"`
}

// Notification là thông báo ephemeral cho người dùng. Sống trong bộ nhớ
// theo vòng đời phiên; mutation duy nhất là đánh dấu đã đọc.
type Notification struct {
	ID        string      `json:"id"`
	Title     string      `json:"title"`
	Message   string      `json:"message"`
	Severity  string      `json:"severity"`
	Timestamp string      `json:"timestamp"`
	Read      bool        `json:"read"`
	Related   *RelatedRef `json:"related,omitempty"`
}
