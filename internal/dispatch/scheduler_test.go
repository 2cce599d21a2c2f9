// Package dispatch - Test vòng gửi hàng loạt: lọc địa chỉ, hủy tại biên item,
// bỏ qua item lỗi và ghi activity cho item thành công.
package dispatch

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	recordmodels "nexus_crm/internal/api/records/models"
	recordsvc "nexus_crm/internal/api/records/service"
)

// fakeDeliverer ghi lại các lần gửi; có thể cài lỗi theo địa chỉ và
// chặn tại một lần gửi để test hủy giữa chừng.
type fakeDeliverer struct {
	mu        sync.Mutex
	delivered []string
	failFor   map[string]error
	blockAt   string        // địa chỉ mà Deliver sẽ báo trước rồi chờ lệnh
	started   chan struct{} // phát khi chạm blockAt
	release   chan struct{}
}

func newFakeDeliverer() *fakeDeliverer {
	return &fakeDeliverer{
		failFor: make(map[string]error),
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
}

func (f *fakeDeliverer) ValidAddress(address string) bool {
	return strings.Contains(address, "@")
}

func (f *fakeDeliverer) Deliver(ctx context.Context, address, subject, content string) error {
	if address == f.blockAt {
		f.started <- struct{}{}
		<-f.release
	}
	if err, ok := f.failFor[address]; ok {
		return err
	}
	f.mu.Lock()
	f.delivered = append(f.delivered, address+"|"+subject+"|"+content)
	f.mu.Unlock()
	return nil
}

func (f *fakeDeliverer) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.delivered...)
}

func fastOptions() Options {
	return Options{
		DelayMin:     5 * time.Millisecond,
		DelayMax:     10 * time.Millisecond,
		PollInterval: time.Millisecond,
	}
}

func waitDone(t *testing.T, job *Job) {
	t.Helper()
	select {
	case <-job.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("job không kết thúc trong thời hạn")
	}
}

func TestStart_NoValidAddressReturnsError(t *testing.T) {
	s := NewScheduler(recordsvc.NewLocalStore(nil, nil), newFakeDeliverer(), fastOptions())

	_, err := s.Start(context.Background(), []Target{
		{ID: "l1", Name: "A", Address: ""},
		{ID: "l2", Name: "B", Address: "không-phải-email"},
	}, Template{Subject: "s", Body: "b"}, nil)

	if err == nil {
		t.Fatal("toàn target không hợp lệ phải trả lỗi ngay, không tạo job")
	}
}

func TestRun_InvalidAddressesAreFiltered(t *testing.T) {
	d := newFakeDeliverer()
	s := NewScheduler(recordsvc.NewLocalStore(nil, nil), d, fastOptions())

	job, err := s.Start(context.Background(), []Target{
		{ID: "l1", Name: "Nguyễn Văn An", Address: "an@example.com", Type: recordmodels.TypeLeads},
		{ID: "l2", Name: "B", Address: "xấu"},
	}, Template{Subject: "Chào {{first_name}}", Body: "x"}, nil)
	if err != nil {
		t.Fatalf("Start trả lỗi: %v", err)
	}
	waitDone(t, job)

	p := job.Progress()
	if p.Total != 1 {
		t.Errorf("target không hợp lệ phải bị lọc trước khi chạy, total=%d", p.Total)
	}
	if p.Sent != 1 || p.Failed != 0 {
		t.Errorf("tiến độ sai: %+v", p)
	}
}

func TestRun_PersonalizeUsesGivenName(t *testing.T) {
	d := newFakeDeliverer()
	s := NewScheduler(recordsvc.NewLocalStore(nil, nil), d, fastOptions())

	job, _ := s.Start(context.Background(), []Target{
		{ID: "l1", Name: "Nguyễn Văn An", Address: "an@example.com"},
	}, Template{Subject: "Chào {{first_name}}", Body: "Kính gửi {{name}}"}, nil)
	waitDone(t, job)

	sent := d.sent()
	if len(sent) != 1 {
		t.Fatalf("phải gửi đúng 1 email, got %d", len(sent))
	}
	if !strings.Contains(sent[0], "Chào An") {
		t.Errorf("{{first_name}} phải là tên gọi (từ cuối), got %s", sent[0])
	}
	if !strings.Contains(sent[0], "Kính gửi Nguyễn Văn An") {
		t.Errorf("{{name}} phải là tên đầy đủ, got %s", sent[0])
	}
}

func TestRun_ItemFailureDoesNotStopBatch(t *testing.T) {
	d := newFakeDeliverer()
	d.failFor["hong@example.com"] = errors.New("smtp từ chối")
	s := NewScheduler(recordsvc.NewLocalStore(nil, nil), d, fastOptions())

	job, _ := s.Start(context.Background(), []Target{
		{ID: "1", Name: "A", Address: "hong@example.com"},
		{ID: "2", Name: "B", Address: "ok@example.com"},
	}, Template{Subject: "s", Body: "b"}, nil)
	waitDone(t, job)

	p := job.Progress()
	if p.Sent != 1 || p.Failed != 1 {
		t.Errorf("item lỗi phải bị bỏ qua, item sau vẫn gửi: %+v", p)
	}
	if p.Cancelled {
		t.Error("lỗi item không phải là hủy")
	}
}

func TestCancel_StopsAtItemBoundary(t *testing.T) {
	d := newFakeDeliverer()
	d.blockAt = "mot@example.com"
	s := NewScheduler(recordsvc.NewLocalStore(nil, nil), d, Options{
		DelayMin:     time.Hour, // delay dài; hủy phải cắt được qua poll
		DelayMax:     time.Hour,
		PollInterval: time.Millisecond,
	})

	job, _ := s.Start(context.Background(), []Target{
		{ID: "1", Name: "Một", Address: "mot@example.com"},
		{ID: "2", Name: "Hai", Address: "hai@example.com"},
	}, Template{Subject: "s", Body: "b"}, nil)

	// Chờ item đầu bắt đầu gửi rồi mới hủy
	select {
	case <-d.started:
	case <-time.After(5 * time.Second):
		t.Fatal("item đầu chưa bắt đầu gửi")
	}
	job.Cancel()
	close(d.release)
	waitDone(t, job)

	p := job.Progress()
	if p.Sent != 1 {
		t.Errorf("item đang gửi phải được hoàn tất, sent=%d", p.Sent)
	}
	if !p.Cancelled || !p.Done {
		t.Errorf("job phải kết thúc ở trạng thái hủy: %+v", p)
	}
	if len(d.sent()) != 1 {
		t.Errorf("item sau biên hủy không được gửi, got %v", d.sent())
	}
}

func TestRun_RecordsActivityAndLastContacted(t *testing.T) {
	store := recordsvc.NewLocalStore(nil, nil)
	store.Add(context.Background(), recordmodels.TypeLeads, recordmodels.Entity{"id": "l1", "name": "An", "email": "an@example.com"}, nil)

	d := newFakeDeliverer()
	s := NewScheduler(store, d, fastOptions())

	job, _ := s.Start(context.Background(), []Target{
		{ID: "l1", Name: "An", Address: "an@example.com", Type: recordmodels.TypeLeads},
	}, Template{Subject: "s", Body: "b"}, nil)
	waitDone(t, job)

	activities := store.Get(recordmodels.TypeActivities)
	if len(activities) != 1 {
		t.Fatalf("mỗi item thành công phải có một activity, got %d", len(activities))
	}
	if activities[0]["relatedId"] != "l1" || activities[0]["type"] != "bulk_email" {
		t.Errorf("activity sai: %v", activities[0])
	}

	lead, _ := store.FindByID(recordmodels.TypeLeads, "l1")
	if _, ok := lead["lastContactedAt"]; !ok {
		t.Error("bản ghi nguồn phải được cập nhật lastContactedAt")
	}
}
