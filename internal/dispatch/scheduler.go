// Package dispatch chứa Bulk Dispatch Scheduler: gửi một message theo template
// đến danh sách target, tuần tự từng item, delay ngẫu nhiên giữa các item,
// hủy được giữa chừng và báo tiến độ trực tiếp.
//
// Vòng lặp này không bao giờ chạy trên luồng phục vụ người dùng — nó là
// background task dài hơi; phía tương tác chỉ đọc tiến độ và gửi tín hiệu hủy.
package dispatch

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	recordmodels "nexus_crm/internal/api/records/models"
	recordsvc "nexus_crm/internal/api/records/service"
	"nexus_crm/internal/logger"
)

// Deliverer là hợp đồng hẹp với kênh gửi thật: giao nội dung đến một địa chỉ.
// Chi tiết transport nằm ngoài phạm vi engine.
type Deliverer interface {
	ValidAddress(address string) bool
	Deliver(ctx context.Context, address, subject, content string) error
}

// Target là một đích gửi trong danh sách.
type Target struct {
	ID      string                  `json:"id"`
	Name    string                  `json:"name"`
	Address string                  `json:"address"`
	Type    recordmodels.EntityType `json:"type"` // Collection nguồn (vd leads)
}

// Template là nội dung gửi, cá nhân hóa bằng token thay thế:
// {{name}} = tên đầy đủ, {{first_name}} = tên gọi (từ cuối theo tên tiếng Việt).
type Template struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Options điều chỉnh nhịp gửi. Delay ngẫu nhiên trong [DelayMin, DelayMax]
// để tránh bị hệ thống chống spam của kênh gửi chặn; chờ theo từng bước
// PollInterval nên độ trễ hủy bị chặn trên bởi PollInterval chứ không phải
// cả khoảng delay.
type Options struct {
	DelayMin     time.Duration
	DelayMax     time.Duration
	PollInterval time.Duration
}

// DefaultOptions: 2–7 phút giữa các item, kiểm tra hủy mỗi 2 giây.
func DefaultOptions() Options {
	return Options{
		DelayMin:     2 * time.Minute,
		DelayMax:     7 * time.Minute,
		PollInterval: 2 * time.Second,
	}
}

// Progress là ảnh chụp tiến độ của một job, đọc được bất kỳ lúc nào.
type Progress struct {
	Total     int    `json:"total"`
	Index     int    `json:"index"` // Item đang xử lý (0-based)
	Sent      int    `json:"sent"`
	Failed    int    `json:"failed"`
	Status    string `json:"status"`
	Done      bool   `json:"done"`
	Cancelled bool   `json:"cancelled"`
}

// Job là trạng thái transient của một lần gửi hàng loạt. Sống từ lúc Start
// đến khi vòng lặp kết thúc hoặc bị hủy; không persist.
type Job struct {
	mu       sync.RWMutex
	progress Progress
	cancel   context.CancelFunc
	done     chan struct{}
}

// Progress trả về ảnh chụp tiến độ hiện tại.
func (j *Job) Progress() Progress {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.progress
}

// Cancel yêu cầu dừng job. Item đang gửi dở vẫn hoàn tất; các item sau không
// bao giờ được chạm tới. Tiến độ đã đạt vẫn đọc được sau khi hủy.
func (j *Job) Cancel() {
	j.cancel()
}

// Done đóng khi vòng lặp kết thúc (hoàn tất hoặc bị hủy).
func (j *Job) Done() <-chan struct{} {
	return j.done
}

func (j *Job) update(fn func(p *Progress)) {
	j.mu.Lock()
	fn(&j.progress)
	j.mu.Unlock()
}

// Scheduler tạo và chạy các dispatch job trên kênh gửi được inject.
type Scheduler struct {
	store     *recordsvc.LocalStore
	deliverer Deliverer
	opts      Options
}

// NewScheduler tạo scheduler. store dùng để ghi activity hoàn tất cho từng
// item (đi qua đường ghi chuẩn, như mọi derived change khác).
func NewScheduler(store *recordsvc.LocalStore, deliverer Deliverer, opts Options) *Scheduler {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	if opts.DelayMax < opts.DelayMin {
		opts.DelayMax = opts.DelayMin
	}
	return &Scheduler{store: store, deliverer: deliverer, opts: opts}
}

// Start lọc target có địa chỉ hợp lệ và khởi chạy vòng gửi trên goroutine
// riêng. Trả về Job để caller đọc tiến độ và hủy. actor (tùy chọn) được gắn
// vào các activity ghi lại theo từng item.
func (s *Scheduler) Start(ctx context.Context, targets []Target, tpl Template, actor *recordmodels.Actor) (*Job, error) {
	valid := make([]Target, 0, len(targets))
	for _, t := range targets {
		if t.Address != "" && s.deliverer.ValidAddress(t.Address) {
			valid = append(valid, t)
		}
	}
	if len(valid) == 0 {
		return nil, fmt.Errorf("không có target nào có địa chỉ hợp lệ")
	}

	jobCtx, cancel := context.WithCancel(ctx)
	job := &Job{
		cancel: cancel,
		done:   make(chan struct{}),
		progress: Progress{
			Total:  len(valid),
			Status: "đang chuẩn bị",
		},
	}

	go s.run(jobCtx, job, valid, tpl, actor)
	return job, nil
}

// run là vòng gửi tuần tự. Lỗi của một item được log và bỏ qua — một lần gửi
// hỏng không bao giờ dừng cả đợt.
func (s *Scheduler) run(ctx context.Context, job *Job, targets []Target, tpl Template, actor *recordmodels.Actor) {
	log := logger.GetAppLogger()
	defer close(job.done)
	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("📨 [DISPATCH] Panic trong vòng gửi, job dừng")
			job.update(func(p *Progress) {
				p.Done = true
				p.Status = "lỗi hệ thống"
			})
		}
	}()

	log.WithFields(map[string]interface{}{
		"total":    len(targets),
		"delayMin": s.opts.DelayMin.String(),
		"delayMax": s.opts.DelayMax.String(),
	}).Info("📨 [DISPATCH] Bắt đầu gửi hàng loạt")

	for i, target := range targets {
		// Biên kiểm tra hủy: trước mỗi item
		if ctx.Err() != nil {
			s.finish(job, true)
			return
		}

		job.update(func(p *Progress) {
			p.Index = i
			p.Status = fmt.Sprintf("đang gửi đến %s (%d/%d)", target.Name, i+1, len(targets))
		})

		subject := personalize(tpl.Subject, target.Name)
		body := personalize(tpl.Body, target.Name)

		if err := s.deliverer.Deliver(ctx, target.Address, subject, body); err != nil {
			log.WithError(err).WithFields(map[string]interface{}{
				"target":  target.Name,
				"address": target.Address,
			}).Warn("📨 [DISPATCH] Gửi thất bại, bỏ qua item này")
			job.update(func(p *Progress) { p.Failed++ })
		} else {
			job.update(func(p *Progress) { p.Sent++ })
			s.recordActivity(ctx, target, actor)
		}

		// Nếu không phải item cuối: chờ delay ngẫu nhiên, kiểm tra hủy mỗi bước poll
		if i < len(targets)-1 {
			delay := s.randomDelay()
			job.update(func(p *Progress) {
				p.Status = fmt.Sprintf("đã gửi %d/%d, chờ %s trước item tiếp theo", p.Sent, p.Total, delay.Round(time.Second))
			})
			if !s.sleep(ctx, delay) {
				s.finish(job, true)
				return
			}
		}
	}

	s.finish(job, false)
	log.WithField("sent", job.Progress().Sent).Info("📨 [DISPATCH] Đợt gửi hoàn tất")
}

// finish đóng tiến độ của job; số đã gửi giữ nguyên cho caller đọc.
func (s *Scheduler) finish(job *Job, cancelled bool) {
	job.update(func(p *Progress) {
		p.Done = true
		p.Cancelled = cancelled
		if cancelled {
			p.Status = fmt.Sprintf("đã hủy, gửi được %d/%d", p.Sent, p.Total)
		} else {
			p.Status = fmt.Sprintf("hoàn tất, gửi được %d/%d", p.Sent, p.Total)
		}
	})
	if cancelled {
		logger.GetAppLogger().WithField("sent", job.Progress().Sent).Info("📨 [DISPATCH] Đợt gửi bị hủy giữa chừng")
	}
}

// randomDelay chọn delay ngẫu nhiên trong [DelayMin, DelayMax].
func (s *Scheduler) randomDelay() time.Duration {
	if s.opts.DelayMax <= s.opts.DelayMin {
		return s.opts.DelayMin
	}
	return s.opts.DelayMin + time.Duration(rand.Int63n(int64(s.opts.DelayMax-s.opts.DelayMin)))
}

// sleep chờ hết d theo từng bước PollInterval, trả về false nếu bị hủy.
func (s *Scheduler) sleep(ctx context.Context, d time.Duration) bool {
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		step := s.opts.PollInterval
		if remaining := time.Until(deadline); remaining < step {
			step = remaining
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(step):
		}
	}
	return true
}

// recordActivity ghi một activity hoàn tất cho item vừa gửi, và cập nhật
// lastContactedAt của bản ghi nguồn — cả hai đi qua đường ghi chuẩn của
// Local Store, tái nhập cùng pipeline mutation như mọi thay đổi khác.
func (s *Scheduler) recordActivity(ctx context.Context, target Target, actor *recordmodels.Actor) {
	now := time.Now().UTC().Format(time.RFC3339)

	_, err := s.store.Add(ctx, recordmodels.TypeActivities, recordmodels.Entity{
		"type":        "bulk_email",
		"relatedType": string(target.Type),
		"relatedId":   target.ID,
		"detail":      "Đã gửi email hàng loạt đến " + target.Name,
		"performedBy": actorName(actor),
	}, actor)
	if err != nil {
		logger.GetAppLogger().WithError(err).Warn("📨 [DISPATCH] Không ghi được activity cho item")
	}

	if target.Type == "" || target.ID == "" {
		return
	}
	if e, ok := s.store.FindByID(target.Type, target.ID); ok {
		e["lastContactedAt"] = now
		if _, err := s.store.Update(ctx, target.Type, e, nil); err != nil {
			logger.GetAppLogger().WithError(err).Warn("📨 [DISPATCH] Không cập nhật được lastContactedAt")
		}
	}
}

func actorName(actor *recordmodels.Actor) string {
	if actor == nil {
		return "system"
	}
	return actor.Name
}

// personalize thay token trong template bằng tên target.
// {{first_name}} lấy từ cuối của tên (tên gọi trong tên tiếng Việt).
func personalize(text, fullName string) string {
	out := strings.ReplaceAll(text, "{{name}}", fullName)
	first := fullName
	if fields := strings.Fields(fullName); len(fields) > 0 {
		first = fields[len(fields)-1]
	}
	return strings.ReplaceAll(out, "{{first_name}}", first)
}
