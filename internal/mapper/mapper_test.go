// Package mapper - Test phép dịch field hai chiều và các ngoại lệ.
package mapper

import (
	"testing"

	recordmodels "nexus_crm/internal/api/records/models"
)

func TestToExternal_RenamesKnownFields(t *testing.T) {
	e := recordmodels.Entity{
		"id":              "l1",
		"organization":    "org-1",
		"createdAt":       "2026-01-02T03:04:05Z",
		"contactPerson":   "Nguyễn Văn A",
		"healthScore":     80,
		"lastContactedAt": "2026-02-01T00:00:00Z",
	}
	row := ToExternal(recordmodels.TypeLeads, e)

	if row["organization_id"] != "org-1" {
		t.Errorf("organization phải thành organization_id, got %v", row["organization_id"])
	}
	if row["contact_person"] != "Nguyễn Văn A" {
		t.Errorf("contactPerson phải thành contact_person, got %v", row["contact_person"])
	}
	if row["created_at"] != "2026-01-02T03:04:05Z" {
		t.Errorf("createdAt phải thành created_at, got %v", row["created_at"])
	}
	if _, ok := row["organization"]; ok {
		t.Error("key nội bộ organization không được còn lại sau khi dịch")
	}
	if row["id"] != "l1" {
		t.Errorf("id giữ nguyên tên, got %v", row["id"])
	}
}

func TestToExternal_AbsentFieldsStayAbsent(t *testing.T) {
	e := recordmodels.Entity{"id": "t1", "title": "Sự cố đăng nhập"}
	row := ToExternal(recordmodels.TypeTickets, e)

	for _, col := range []string{"due_date", "client_id", "assigned_to", "closed_at", "organization_id"} {
		if _, ok := row[col]; ok {
			t.Errorf("field vắng trong nguồn không được xuất hiện ở đích: %s", col)
		}
	}
}

func TestToExternal_ProposalEmptyInvoiceIdBecomesNil(t *testing.T) {
	e := recordmodels.Entity{"id": "p1", "invoiceId": ""}
	row := ToExternal(recordmodels.TypeProposals, e)

	v, ok := row["invoice_id"]
	if !ok {
		t.Fatal("invoice_id phải có mặt (dịch từ invoiceId)")
	}
	if v != nil {
		t.Errorf("invoiceId rỗng của proposals phải thành nil tường minh, got %v", v)
	}

	// invoiceId có giá trị thật thì giữ nguyên
	e2 := recordmodels.Entity{"id": "p2", "invoiceId": "inv-9"}
	row2 := ToExternal(recordmodels.TypeProposals, e2)
	if row2["invoice_id"] != "inv-9" {
		t.Errorf("invoiceId không rỗng phải giữ giá trị, got %v", row2["invoice_id"])
	}

	// Ngoại lệ chỉ áp dụng cho proposals
	e3 := recordmodels.Entity{"id": "i1", "invoiceId": ""}
	row3 := ToExternal(recordmodels.TypeInvoices, e3)
	if row3["invoiceId"] != "" {
		t.Errorf("invoiceId của loại khác không bị can thiệp, got %v", row3["invoiceId"])
	}
}

func TestRoundTrip_AllTypes(t *testing.T) {
	for _, typ := range recordmodels.AllTypes() {
		e := recordmodels.Entity{
			"id":           "x1",
			"organization": "org-1",
			"createdAt":    "2026-03-01T00:00:00Z",
			"name":         "Bản ghi thử",
		}
		row := ToExternal(typ, e)
		back := ToInternal(typ, []map[string]interface{}{row})
		if len(back) != 1 {
			t.Fatalf("[%s] ToInternal phải trả về đúng 1 entity", typ)
		}
		for k, v := range e {
			if back[0][k] != v {
				t.Errorf("[%s] round-trip làm lệch field %s: %v != %v", typ, k, back[0][k], v)
			}
		}
	}
}

func TestRoundTrip_SharedFieldNamesStaySeparate(t *testing.T) {
	// dueDate tồn tại ở cả tickets và invoices; mỗi loại dịch theo bảng riêng
	for _, typ := range []recordmodels.EntityType{recordmodels.TypeTickets, recordmodels.TypeInvoices} {
		e := recordmodels.Entity{"id": "d1", "dueDate": "2026-04-01"}
		row := ToExternal(typ, e)
		if row["due_date"] != "2026-04-01" {
			t.Errorf("[%s] dueDate phải thành due_date", typ)
		}
		back := ToInternal(typ, []map[string]interface{}{row})
		if back[0]["dueDate"] != "2026-04-01" {
			t.Errorf("[%s] due_date phải về lại dueDate", typ)
		}
	}
}

func TestTableFor(t *testing.T) {
	if TableFor(recordmodels.TypeAudit) != "audit_trail" {
		t.Errorf("audit phải ánh xạ sang bảng audit_trail, got %s", TableFor(recordmodels.TypeAudit))
	}
	if TableFor(recordmodels.TypeLeads) != "leads" {
		t.Errorf("leads ánh xạ sang bảng cùng tên, got %s", TableFor(recordmodels.TypeLeads))
	}
}
