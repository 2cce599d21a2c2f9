// Package models - Workflow và WebhookSubscription thuộc domain Automation.
// Cả hai sống trong Local Store như mọi entity khác (collection workflows,
// webhooks) nên cũng được sync qua Reconciler; engine chỉ được phép mutate
// phần bookkeeping (runs, lastRun) của workflow.
package models

import (
	recordmodels "nexus_crm/internal/api/records/models"
)

// Workflow là một automation rule do người dùng định nghĩa:
// (trigger event → danh sách action) kèm bộ đếm số lần chạy.
type Workflow struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Active       bool     `json:"active"`
	TriggerEvent string   `json:"triggerEvent"`
	Actions      []string `json:"actions"`
	Runs         int      `json:"runs"`
	LastRun      string   `json:"lastRun,omitempty"` // RFC3339, rỗng nếu chưa chạy lần nào
}

// WebhookSubscription là một callback HTTP outbound gắn với một trigger event.
// Read-only với engine.
type WebhookSubscription struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	TargetURL    string            `json:"targetUrl"`
	TriggerEvent string            `json:"triggerEvent"`
	Method       string            `json:"method"`
	Active       bool              `json:"active"`
	Headers      map[string]string `json:"headers,omitempty"`
}

// WorkflowFromEntity đọc Workflow từ một entity của collection workflows.
// Số trong entity có thể là float64 (qua JSON round-trip của snapshot).
func WorkflowFromEntity(e recordmodels.Entity) Workflow {
	w := Workflow{
		ID:           e.ID(),
		TriggerEvent: str(e["triggerEvent"]),
		Name:         str(e["name"]),
		LastRun:      str(e["lastRun"]),
	}
	w.Active, _ = e["active"].(bool)
	switch v := e["runs"].(type) {
	case int:
		w.Runs = v
	case float64:
		w.Runs = int(v)
	}
	switch v := e["actions"].(type) {
	case []string:
		w.Actions = v
	case []interface{}:
		for _, a := range v {
			w.Actions = append(w.Actions, str(a))
		}
	}
	return w
}

// ToEntity chuyển Workflow về entity để ghi lại qua Local Store.
func (w Workflow) ToEntity(base recordmodels.Entity) recordmodels.Entity {
	e := base.Clone()
	if e == nil {
		e = recordmodels.Entity{}
	}
	e[recordmodels.FieldID] = w.ID
	e["name"] = w.Name
	e["active"] = w.Active
	e["triggerEvent"] = w.TriggerEvent
	e["actions"] = w.Actions
	e["runs"] = w.Runs
	e["lastRun"] = w.LastRun
	return e
}

// SubscriptionFromEntity đọc WebhookSubscription từ một entity của collection webhooks.
func SubscriptionFromEntity(e recordmodels.Entity) WebhookSubscription {
	s := WebhookSubscription{
		ID:           e.ID(),
		Name:         str(e["name"]),
		TargetURL:    str(e["targetUrl"]),
		TriggerEvent: str(e["triggerEvent"]),
		Method:       str(e["method"]),
	}
	s.Active, _ = e["active"].(bool)
	switch v := e["headers"].(type) {
	case map[string]string:
		s.Headers = v
	case map[string]interface{}:
		s.Headers = make(map[string]string, len(v))
		for k, hv := range v {
			s.Headers[k] = str(hv)
		}
	}
	return s
}

func str(v interface{}) string {
	s, _ := v.(string)
	return s
}
