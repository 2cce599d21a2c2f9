package main

import (
	recordmodels "nexus_crm/internal/api/records/models"
	"nexus_crm/internal/logger"
	"nexus_crm/internal/registry"
)

// InitDefaultData đăng ký seed cho các collection cần dữ liệu mặc định.
// Seed chỉ được dùng khi snapshot không có dữ liệu cho collection đó —
// lần chạy đầu tiên hoặc sau khi xóa file snapshot.
func InitDefaultData() *registry.Registry[[]recordmodels.Entity] {
	log := logger.GetAppLogger()
	seeds := registry.NewRegistry[[]recordmodels.Entity]()

	// custom_fields: bộ trường mở rộng mặc định cho lead và client.
	customFields := []recordmodels.Entity{
		{
			recordmodels.FieldID: "cf-source-channel",
			"name":               "Kênh tiếp cận",
			"entityType":         "leads",
			"fieldType":          "select",
			"options":            []string{"Facebook", "Zalo", "Website", "Giới thiệu"},
		},
		{
			recordmodels.FieldID: "cf-industry",
			"name":               "Ngành nghề",
			"entityType":         "clients",
			"fieldType":          "text",
		},
		{
			recordmodels.FieldID: "cf-contract-no",
			"name":               "Số hợp đồng",
			"entityType":         "clients",
			"fieldType":          "text",
		},
	}
	if _, err := seeds.Register(string(recordmodels.TypeCustomFields), customFields); err != nil {
		log.WithError(err).Warn("🗃 [STORE] Không đăng ký được seed custom_fields")
	}

	log.WithField("collections", len(seeds.Names())).Info("🗃 [STORE] Đã đăng ký dữ liệu mặc định")
	return seeds
}
