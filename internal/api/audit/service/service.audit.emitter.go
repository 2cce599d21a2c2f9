// Package auditsvc chứa Emitter — nơi duy nhất tạo audit entry và notification.
// Cả hai đều là side effect thuần: không trả giá trị nào cho business logic.
package auditsvc

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	auditmodels "nexus_crm/internal/api/audit/models"
	recordmodels "nexus_crm/internal/api/records/models"
	recordsvc "nexus_crm/internal/api/records/service"
	"nexus_crm/internal/logger"
)

// maxNotifications giới hạn ring notification trong bộ nhớ.
const maxNotifications = 200

// Emitter tạo audit entry (append vào collection audit của Local Store)
// và notification ephemeral cho người dùng.
type Emitter struct {
	store *recordsvc.LocalStore

	// PushAlerts: người vận hành đã bật cảnh báo mức nền tảng.
	// Khi bật, notification severity alert được mirror sang error logger.
	PushAlerts bool

	mu            sync.RWMutex
	notifications []auditmodels.Notification
}

// NewEmitter tạo Emitter gắn với Local Store.
func NewEmitter(store *recordsvc.LocalStore) *Emitter {
	return &Emitter{store: store}
}

// Record tạo một audit entry nếu và chỉ nếu có actor.
// Mutation hệ thống (actor nil) không được audit — khoảng trống chấp nhận được.
// Audit độc lập với kết quả sync remote: ghi local xong là có audit.
func (em *Emitter) Record(ctx context.Context, actor *recordmodels.Actor, action, detail, module string) {
	if actor == nil {
		return
	}

	entry := auditmodels.AuditEntry{
		ID:           uuid.NewString(),
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		ActorID:      actor.ID,
		ActorName:    actor.Name,
		Action:       action,
		Detail:       detail,
		Module:       module,
		Organization: actor.Organization,
	}

	// Append vào collection audit với actor nil — tránh audit đệ quy chính nó
	if _, err := em.store.Add(ctx, recordmodels.TypeAudit, entry.ToEntity(), nil); err != nil {
		logger.GetAppLogger().WithError(err).Warn("📝 [AUDIT] Không ghi được audit entry")
		return
	}

	logger.GetAuditLogger().WithFields(map[string]interface{}{
		"action":       entry.Action,
		"actorId":      entry.ActorID,
		"actorName":    entry.ActorName,
		"module":       entry.Module,
		"organization": entry.Organization,
	}).Info(entry.Detail)
}

// Notify tạo notification, hiện toast (log info) và — nếu người vận hành đã
// bật push alert — mirror severity alert sang error logger.
func (em *Emitter) Notify(title, message, severity string, related *auditmodels.RelatedRef) auditmodels.Notification {
	n := auditmodels.Notification{
		ID:        uuid.NewString(),
		Title:     title,
		Message:   message,
		Severity:  severity,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Related:   related,
	}

	em.mu.Lock()
	em.notifications = append(em.notifications, n)
	if len(em.notifications) > maxNotifications {
		em.notifications = em.notifications[len(em.notifications)-maxNotifications:]
	}
	em.mu.Unlock()

	log := logger.GetAppLogger().WithFields(map[string]interface{}{
		"title":    title,
		"severity": severity,
	})
	log.Info("🔔 [NOTIFY] " + message)

	if severity == auditmodels.SeverityAlert && em.PushAlerts {
		logger.GetErrorLogger().WithFields(map[string]interface{}{
			"title": title,
		}).Error("🔔 [NOTIFY] " + message)
	}

	return n
}

// Notifications trả về bản sao danh sách notification, mới nhất cuối danh sách.
func (em *Emitter) Notifications() []auditmodels.Notification {
	em.mu.RLock()
	defer em.mu.RUnlock()
	out := make([]auditmodels.Notification, len(em.notifications))
	copy(out, em.notifications)
	return out
}

// UnreadCount đếm notification chưa đọc.
func (em *Emitter) UnreadCount() int {
	em.mu.RLock()
	defer em.mu.RUnlock()
	count := 0
	for _, n := range em.notifications {
		if !n.Read {
			count++
		}
	}
	return count
}

// MarkRead đánh dấu một notification đã đọc. Trả về false nếu không tìm thấy.
func (em *Emitter) MarkRead(id string) bool {
	em.mu.Lock()
	defer em.mu.Unlock()
	for i := range em.notifications {
		if em.notifications[i].ID == id {
			em.notifications[i].Read = true
			return true
		}
	}
	return false
}
