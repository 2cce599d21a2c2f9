// Package automationsvc - Test suy diễn event, bookkeeping run counter và
// dispatch webhook qua httptest server.
package automationsvc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	automationmodels "nexus_crm/internal/api/automation/models"
	recordmodels "nexus_crm/internal/api/records/models"
	recordsvc "nexus_crm/internal/api/records/service"
)

func TestEventForMutation(t *testing.T) {
	cases := []struct {
		name string
		m    recordsvc.Mutation
		want string
	}{
		{
			name: "add lead sinh lead_created",
			m:    recordsvc.Mutation{Op: recordsvc.OpAdd, Type: recordmodels.TypeLeads},
			want: "lead_created",
		},
		{
			name: "update lead sang converted sinh lead_converted",
			m: recordsvc.Mutation{
				Op:       recordsvc.OpUpdate,
				Type:     recordmodels.TypeLeads,
				Entity:   recordmodels.Entity{"status": "converted"},
				Previous: recordmodels.Entity{"status": "new"},
			},
			want: "lead_converted",
		},
		{
			name: "status không đổi thì không sinh event",
			m: recordsvc.Mutation{
				Op:       recordsvc.OpUpdate,
				Type:     recordmodels.TypeInvoices,
				Entity:   recordmodels.Entity{"status": "paid"},
				Previous: recordmodels.Entity{"status": "paid"},
			},
			want: "",
		},
		{
			name: "update sang status không kết thúc thì không sinh event",
			m: recordsvc.Mutation{
				Op:       recordsvc.OpUpdate,
				Type:     recordmodels.TypeTickets,
				Entity:   recordmodels.Entity{"status": "in_progress"},
				Previous: recordmodels.Entity{"status": "open"},
			},
			want: "",
		},
		{
			name: "invoice sang paid sinh invoice_paid",
			m: recordsvc.Mutation{
				Op:     recordsvc.OpUpdate,
				Type:   recordmodels.TypeInvoices,
				Entity: recordmodels.Entity{"status": "paid"},
			},
			want: "invoice_paid",
		},
		{
			name: "remove không sinh event",
			m:    recordsvc.Mutation{Op: recordsvc.OpRemove, Type: recordmodels.TypeLeads},
			want: "",
		},
		{
			name: "collection hạ tầng không sinh event",
			m:    recordsvc.Mutation{Op: recordsvc.OpAdd, Type: recordmodels.TypeWorkflows},
			want: "",
		},
		{
			name: "audit không sinh event",
			m:    recordsvc.Mutation{Op: recordsvc.OpAdd, Type: recordmodels.TypeAudit},
			want: "",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := EventForMutation(tc.m); got != tc.want {
				t.Errorf("EventForMutation = %q, muốn %q", got, tc.want)
			}
		})
	}
}

func addWorkflow(t *testing.T, store *recordsvc.LocalStore, name, event string, active bool) string {
	t.Helper()
	created, err := store.Add(context.Background(), recordmodels.TypeWorkflows, recordmodels.Entity{
		"name":         name,
		"active":       active,
		"triggerEvent": event,
		"runs":         0,
	}, nil)
	if err != nil {
		t.Fatalf("không tạo được workflow: %v", err)
	}
	return created.ID()
}

func TestFireWorkflows_IncrementsOncePerEvent(t *testing.T) {
	store := recordsvc.NewLocalStore(nil, nil)
	id := addWorkflow(t, store, "Chào lead mới", "lead_created", true)
	addWorkflow(t, store, "Rule đang tắt", "lead_created", false)
	addWorkflow(t, store, "Rule event khác", "invoice_paid", true)

	en := NewEngine(store, nil)
	en.HandleEvent(context.Background(), "lead_created", recordmodels.Entity{"id": "l1"})
	en.HandleEvent(context.Background(), "lead_created", recordmodels.Entity{"id": "l2"})

	e, _ := store.FindByID(recordmodels.TypeWorkflows, id)
	w := automationmodels.WorkflowFromEntity(e)
	if w.Runs != 2 {
		t.Errorf("mỗi event khớp tăng run counter đúng 1, got %d", w.Runs)
	}
	if w.LastRun == "" {
		t.Error("lastRun phải được đóng dấu sau khi chạy")
	}

	for _, e := range store.Get(recordmodels.TypeWorkflows) {
		w := automationmodels.WorkflowFromEntity(e)
		if w.Name != "Chào lead mới" && w.Runs != 0 {
			t.Errorf("rule %q không khớp không được tăng counter, got %d", w.Name, w.Runs)
		}
	}
}

func TestFireWebhooks_DeliversMatchingSubscriptions(t *testing.T) {
	var hits int32
	var gotEvent atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		gotEvent.Store(r.Header.Get("X-Nexus-Event"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store := recordsvc.NewLocalStore(nil, nil)
	store.Add(context.Background(), recordmodels.TypeWebhooks, recordmodels.Entity{
		"name": "CRM bên thứ ba", "targetUrl": srv.URL, "triggerEvent": "lead_created", "active": true,
	}, nil)
	store.Add(context.Background(), recordmodels.TypeWebhooks, recordmodels.Entity{
		"name": "Đang tắt", "targetUrl": srv.URL, "triggerEvent": "lead_created", "active": false,
	}, nil)

	en := NewEngine(store, nil)
	en.HandleEvent(context.Background(), "lead_created", recordmodels.Entity{"id": "l1", "name": "A"})

	deadline := time.Now().Add(3 * time.Second)
	for atomic.LoadInt32(&hits) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if n := atomic.LoadInt32(&hits); n != 1 {
		t.Fatalf("chỉ subscription active khớp event được gọi, got %d", n)
	}
	if gotEvent.Load() != "lead_created" {
		t.Errorf("header X-Nexus-Event sai: %v", gotEvent.Load())
	}
}

func TestFireWebhooks_FailureIsSwallowed(t *testing.T) {
	store := recordsvc.NewLocalStore(nil, nil)
	store.Add(context.Background(), recordmodels.TypeWebhooks, recordmodels.Entity{
		"name": "Chết", "targetUrl": "http://127.0.0.1:1/die", "triggerEvent": "lead_created", "active": true,
	}, nil)

	en := NewEngine(store, nil)
	// Không panic, không chặn caller
	en.HandleEvent(context.Background(), "lead_created", recordmodels.Entity{"id": "l1"})
	time.Sleep(100 * time.Millisecond)
}

func TestHook_EndToEndThroughStore(t *testing.T) {
	store := recordsvc.NewLocalStore(nil, nil)
	id := addWorkflow(t, store, "Chào lead mới", "lead_created", true)

	en := NewEngine(store, nil)
	store.RegisterHook(en.Hook())

	store.Add(context.Background(), recordmodels.TypeLeads, recordmodels.Entity{"name": "Lead"}, nil)

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		e, _ := store.FindByID(recordmodels.TypeWorkflows, id)
		if automationmodels.WorkflowFromEntity(e).Runs == 1 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("Add lead qua store phải kích hoạt workflow qua hook")
}
