// Package automationsvc chứa Automation Trigger Engine: khớp mutation event
// với các workflow đang active và bắn webhook outbound cho các subscription khớp.
package automationsvc

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	auditmodels "nexus_crm/internal/api/audit/models"
	auditsvc "nexus_crm/internal/api/audit/service"
	automationmodels "nexus_crm/internal/api/automation/models"
	recordmodels "nexus_crm/internal/api/records/models"
	recordsvc "nexus_crm/internal/api/records/service"
	"nexus_crm/internal/logger"
)

// eventNouns ánh xạ loại entity -> danh từ số ít trong tên event.
// Chỉ các loại nghiệp vụ chính sinh event; collection hạ tầng (workflows,
// webhooks, audit, activities, custom_fields) không sinh event để tránh
// engine tự kích hoạt chính nó.
var eventNouns = map[recordmodels.EntityType]string{
	recordmodels.TypeLeads:       "lead",
	recordmodels.TypeClients:     "client",
	recordmodels.TypeTickets:     "ticket",
	recordmodels.TypeInvoices:    "invoice",
	recordmodels.TypeProducts:    "product",
	recordmodels.TypeProjects:    "project",
	recordmodels.TypeProposals:   "proposal",
	recordmodels.TypeCompetitors: "competitor",
}

// terminalEvents ánh xạ (loại entity, status đích) -> tên event khi status
// chuyển sang giá trị kết thúc.
var terminalEvents = map[recordmodels.EntityType]map[string]string{
	recordmodels.TypeLeads:     {"converted": "lead_converted", "lost": "lead_lost"},
	recordmodels.TypeTickets:   {"closed": "ticket_closed"},
	recordmodels.TypeInvoices:  {"paid": "invoice_paid"},
	recordmodels.TypeProposals: {"accepted": "proposal_accepted", "rejected": "proposal_rejected"},
	recordmodels.TypeProjects:  {"completed": "project_completed"},
}

// EventForMutation suy ra trigger event từ một mutation; trả về rỗng nếu
// mutation không sinh event.
func EventForMutation(m recordsvc.Mutation) string {
	noun, ok := eventNouns[m.Type]
	if !ok {
		return ""
	}

	switch m.Op {
	case recordsvc.OpAdd:
		return noun + "_created"
	case recordsvc.OpUpdate:
		if m.Entity == nil {
			return ""
		}
		newStatus := m.Entity.Status()
		if newStatus == "" {
			return ""
		}
		if m.Previous != nil && m.Previous.Status() == newStatus {
			return ""
		}
		if events, ok := terminalEvents[m.Type]; ok {
			return events[newStatus]
		}
	}
	return ""
}

// Engine khớp event với workflow/webhook đang active.
// Với mỗi event khớp: workflow nhận đúng một lần tăng run counter (bất kể
// có bao nhiêu webhook subscription); webhook dispatch là fire-and-forget,
// lỗi gửi được log và bỏ qua — không retry, không backoff, không dead-letter.
type Engine struct {
	store   *recordsvc.LocalStore
	emitter *auditsvc.Emitter
	client  *http.Client
}

// NewEngine tạo engine với HTTP client timeout 10s cho webhook outbound.
func NewEngine(store *recordsvc.LocalStore, emitter *auditsvc.Emitter) *Engine {
	return &Engine{
		store:   store,
		emitter: emitter,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Hook trả về mutation hook để đăng ký với Local Store.
func (en *Engine) Hook() recordsvc.MutationHook {
	return func(ctx context.Context, m recordsvc.Mutation) {
		event := EventForMutation(m)
		if event == "" {
			return
		}
		payload := m.Entity
		if payload == nil {
			payload = m.Previous
		}
		en.HandleEvent(ctx, event, payload)
	}
}

// HandleEvent đánh giá một trigger event: chạy bookkeeping cho các workflow
// khớp và bắn webhook cho các subscription khớp. Hai nhánh độc lập, không có
// đảm bảo thứ tự giữa chúng.
func (en *Engine) HandleEvent(ctx context.Context, event string, entity recordmodels.Entity) {
	en.fireWorkflows(ctx, event)
	en.fireWebhooks(ctx, event, entity)
}

// fireWorkflows tăng run counter + đóng dấu lastRun cho mỗi workflow active
// khớp event, và phát notification báo rule đã chạy. Ghi lại qua đường ghi
// chuẩn của Local Store (actor nil — bookkeeping hệ thống, không audit).
func (en *Engine) fireWorkflows(ctx context.Context, event string) {
	log := logger.GetAppLogger()

	for _, e := range en.store.Get(recordmodels.TypeWorkflows) {
		w := automationmodels.WorkflowFromEntity(e)
		if !w.Active || w.TriggerEvent != event {
			continue
		}

		w.Runs++
		w.LastRun = time.Now().UTC().Format(time.RFC3339)
		if _, err := en.store.Update(ctx, recordmodels.TypeWorkflows, w.ToEntity(e), nil); err != nil {
			log.WithError(err).WithField("workflow", w.Name).Warn("⚙️ [AUTOMATION] Không cập nhật được run counter")
			continue
		}

		log.WithFields(map[string]interface{}{
			"workflow": w.Name,
			"event":    event,
			"runs":     w.Runs,
		}).Info("⚙️ [AUTOMATION] Workflow đã kích hoạt")

		if en.emitter != nil {
			en.emitter.Notify(
				"Automation đã chạy",
				"Rule \""+w.Name+"\" kích hoạt bởi event "+event,
				auditmodels.SeverityInfo,
				&auditmodels.RelatedRef{Type: recordmodels.TypeWorkflows, ID: w.ID},
			)
		}
	}
}

// fireWebhooks gửi một HTTP call cho mỗi subscription active khớp event,
// body là trạng thái hiện tại của entity. Mỗi call một goroutine có recover.
func (en *Engine) fireWebhooks(ctx context.Context, event string, entity recordmodels.Entity) {
	for _, e := range en.store.Get(recordmodels.TypeWebhooks) {
		sub := automationmodels.SubscriptionFromEntity(e)
		if !sub.Active || sub.TriggerEvent != event {
			continue
		}

		s := sub
		go func() {
			defer func() {
				if r := recover(); r != nil {
					logger.GetAppLogger().WithFields(map[string]interface{}{
						"panic":   r,
						"webhook": s.Name,
					}).Error("⚙️ [AUTOMATION] Panic khi gửi webhook")
				}
			}()
			en.dispatch(ctx, s, event, entity)
		}()
	}
}

// dispatch thực hiện một webhook call. Response body không được đọc;
// mọi thất bại chỉ sinh đúng một dòng log lỗi gửi.
func (en *Engine) dispatch(ctx context.Context, sub automationmodels.WebhookSubscription, event string, entity recordmodels.Entity) {
	log := logger.GetAppLogger().WithFields(map[string]interface{}{
		"webhook": sub.Name,
		"event":   event,
		"url":     sub.TargetURL,
	})

	payload, err := json.Marshal(entity)
	if err != nil {
		log.WithError(err).Error("⚙️ [AUTOMATION] Không serialize được payload webhook")
		return
	}

	method := sub.Method
	if method == "" {
		method = http.MethodPost
	}

	req, err := http.NewRequestWithContext(ctx, method, sub.TargetURL, bytes.NewBuffer(payload))
	if err != nil {
		log.WithError(err).Error("⚙️ [AUTOMATION] Không tạo được request webhook")
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Nexus-Event", event)
	for k, v := range sub.Headers {
		req.Header.Set(k, v)
	}

	resp, err := en.client.Do(req)
	if err != nil {
		log.WithError(err).Error("⚙️ [AUTOMATION] Gửi webhook thất bại")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.WithField("status", resp.StatusCode).Error("⚙️ [AUTOMATION] Webhook trả về mã lỗi")
		return
	}

	log.Debug("⚙️ [AUTOMATION] Đã gửi webhook thành công")
}
