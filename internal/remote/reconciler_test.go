// Package remote - Test Reconciler: cô lập lỗi theo bảng, backfill tenant,
// bỏ qua khi chưa có phiên và nâng cấp chữ ký policy đệ quy thành alert.
package remote

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	auditsvc "nexus_crm/internal/api/audit/service"
	recordmodels "nexus_crm/internal/api/records/models"
	recordsvc "nexus_crm/internal/api/records/service"
	"nexus_crm/internal/common"
)

// fakeRowClient ghi lại mọi lời gọi và trả kết quả theo bảng.
type fakeRowClient struct {
	mu      sync.Mutex
	rows    map[string][]map[string]interface{}
	errs    map[string]error
	upserts []map[string]interface{}
	deletes []string
}

func newFakeRowClient() *fakeRowClient {
	return &fakeRowClient{
		rows: make(map[string][]map[string]interface{}),
		errs: make(map[string]error),
	}
}

func (f *fakeRowClient) SelectAll(ctx context.Context, table string) ([]map[string]interface{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.errs[table]; ok {
		return nil, err
	}
	return f.rows[table], nil
}

func (f *fakeRowClient) Upsert(ctx context.Context, table string, row map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.errs[table]; ok {
		return err
	}
	f.upserts = append(f.upserts, row)
	return nil
}

func (f *fakeRowClient) Delete(ctx context.Context, table string, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.errs[table]; ok {
		return err
	}
	f.deletes = append(f.deletes, table+"/"+id)
	return nil
}

func (f *fakeRowClient) upsertCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.upserts)
}

func TestPush_NoSessionSkipsOutboundCall(t *testing.T) {
	store := recordsvc.NewLocalStore(nil, nil)
	client := newFakeRowClient()
	session := NewStaticSession("", "")

	r := NewReconciler(store, client, session, nil)
	r.Push(context.Background(), recordmodels.TypeLeads, recordmodels.Entity{"id": "l1"})

	assert.Equal(t, 0, client.upsertCount(), "không có phiên thì không được gọi remote")
}

func TestPush_BackfillsTenantFromSession(t *testing.T) {
	store := recordsvc.NewLocalStore(nil, nil)
	client := newFakeRowClient()
	session := NewStaticSession("token", "org-5")

	r := NewReconciler(store, client, session, nil)
	r.Push(context.Background(), recordmodels.TypeLeads, recordmodels.Entity{"id": "l1", "name": "A"})

	if assert.Equal(t, 1, client.upsertCount(), "phải có đúng một upsert") {
		assert.Equal(t, "org-5", client.upserts[0]["organization_id"], "thiếu tenant phải backfill từ phiên")
	}
}

func TestPush_WriteFailureIsSwallowed(t *testing.T) {
	store := recordsvc.NewLocalStore(nil, nil)
	client := newFakeRowClient()
	client.errs["leads"] = &RemoteError{Code: common.RemoteCodePermissionDenied, Message: "row-level policy", Status: 403}
	session := NewStaticSession("token", "org-1")

	r := NewReconciler(store, client, session, nil)
	// Không panic, không trả lỗi cho caller — thay đổi local vẫn đứng vững
	r.Push(context.Background(), recordmodels.TypeLeads, recordmodels.Entity{"id": "l1"})
	r.Delete(context.Background(), recordmodels.TypeLeads, "l1")
}

func TestPullAll_FailedTableKeepsLocalData(t *testing.T) {
	store := recordsvc.NewLocalStore(nil, nil)
	store.Add(context.Background(), recordmodels.TypeLeads, recordmodels.Entity{"id": "l-local", "name": "Local"}, nil)
	store.Add(context.Background(), recordmodels.TypeClients, recordmodels.Entity{"id": "c-local"}, nil)

	client := newFakeRowClient()
	client.errs["leads"] = &RemoteError{Code: "57014", Message: "timeout", Status: 500}
	client.rows["clients"] = []map[string]interface{}{
		{"id": "c-remote", "name": "Remote Client", "organization_id": "org-1"},
	}
	session := NewStaticSession("token", "org-1")

	r := NewReconciler(store, client, session, nil)
	results := r.PullAll(context.Background())

	assert.Len(t, results, len(recordmodels.AllTypes()), "mỗi bảng một kết quả")

	// Bảng lỗi: giữ nguyên dữ liệu local (stale-but-present)
	leads := store.Get(recordmodels.TypeLeads)
	if assert.Len(t, leads, 1, "bảng lỗi phải giữ collection local") {
		assert.Equal(t, "l-local", leads[0].ID())
	}

	// Bảng thành công: thay bằng snapshot remote đã dịch về convention nội bộ
	clients := store.Get(recordmodels.TypeClients)
	if assert.Len(t, clients, 1, "bảng thành công phải áp snapshot remote") {
		assert.Equal(t, "c-remote", clients[0].ID())
		assert.Equal(t, "org-1", clients[0].Organization(), "organization_id phải dịch về organization")
	}
}

func TestPullAll_NoSessionReturnsNil(t *testing.T) {
	store := recordsvc.NewLocalStore(nil, nil)
	client := newFakeRowClient()
	r := NewReconciler(store, client, NewStaticSession("", ""), nil)

	assert.Nil(t, r.PullAll(context.Background()), "chưa có phiên thì PullAll bỏ qua")
}

func TestHandlePullFailure_PolicyRecursionRaisesAlert(t *testing.T) {
	store := recordsvc.NewLocalStore(nil, nil)
	emitter := auditsvc.NewEmitter(store)

	client := newFakeRowClient()
	client.errs["tickets"] = &RemoteError{Code: common.RemoteCodePolicyRecursion, Message: "infinite recursion detected in policy", Status: 500}
	session := NewStaticSession("token", "org-1")

	r := NewReconciler(store, client, session, emitter)
	r.PullAll(context.Background())

	var alert bool
	for _, n := range emitter.Notifications() {
		if n.Severity == "alert" {
			alert = true
		}
	}
	assert.True(t, alert, "policy đệ quy phải tạo notification mức alert")
}

func TestHook_MapsMutationsToRemoteCalls(t *testing.T) {
	store := recordsvc.NewLocalStore(nil, nil)
	client := newFakeRowClient()
	session := NewStaticSession("token", "org-1")

	r := NewReconciler(store, client, session, nil)
	store.RegisterHook(r.Hook())

	created, _ := store.Add(context.Background(), recordmodels.TypeLeads, recordmodels.Entity{"name": "A"}, nil)

	// Hook chạy bất đồng bộ
	deadline := time.Now().Add(2 * time.Second)
	for client.upsertCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	assert.Equal(t, 1, client.upsertCount(), "Add phải dẫn tới một upsert remote")

	store.Remove(context.Background(), recordmodels.TypeLeads, created.ID(), nil)
	deadline = time.Now().Add(2 * time.Second)
	for {
		client.mu.Lock()
		n := len(client.deletes)
		client.mu.Unlock()
		if n > 0 || !time.Now().Before(deadline) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	client.mu.Lock()
	defer client.mu.Unlock()
	assert.Equal(t, []string{"leads/" + created.ID()}, client.deletes, "Remove phải dẫn tới một delete remote")
}
