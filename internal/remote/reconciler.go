package remote

import (
	"context"
	"errors"
	"sync"

	auditmodels "nexus_crm/internal/api/audit/models"
	auditsvc "nexus_crm/internal/api/audit/service"
	recordmodels "nexus_crm/internal/api/records/models"
	recordsvc "nexus_crm/internal/api/records/service"
	"nexus_crm/internal/common"
	"nexus_crm/internal/logger"
	"nexus_crm/internal/mapper"
)

// Reconciler đồng bộ Local Store với remote store: đẩy mutation local lên
// (upsert/delete, fire-and-forget) và kéo snapshot có thẩm quyền về, cô lập
// lỗi theo từng bảng. Reconciler không sở hữu state — nó là ống stateless
// giữa Local Store và remote.
//
// Trade-off được chấp nhận: không có outbox. Một thay đổi local chưa sync
// có thể bị PullAll thành công sau đó ghi đè. Local Store luôn optimistic —
// mọi lỗi ghi remote đều được nuốt, không rollback.
type Reconciler struct {
	store   *recordsvc.LocalStore
	client  RowClient
	session SessionProvider
	emitter *auditsvc.Emitter
}

// NewReconciler tạo Reconciler. emitter có thể nil (vd trong test) —
// khi đó lỗi policy đệ quy chỉ được log, không notify.
func NewReconciler(store *recordsvc.LocalStore, client RowClient, session SessionProvider, emitter *auditsvc.Emitter) *Reconciler {
	return &Reconciler{
		store:   store,
		client:  client,
		session: session,
		emitter: emitter,
	}
}

// Hook trả về mutation hook để đăng ký với Local Store. Hook đã chạy trên
// goroutine riêng nên Push/Delete ở đây gọi đồng bộ.
func (r *Reconciler) Hook() recordsvc.MutationHook {
	return func(ctx context.Context, m recordsvc.Mutation) {
		switch m.Op {
		case recordsvc.OpAdd, recordsvc.OpUpdate:
			r.Push(ctx, m.Type, m.Entity)
		case recordsvc.OpRemove:
			r.Delete(ctx, m.Type, m.ID)
		}
	}
}

// Push đẩy một entity lên remote store. Không có phiên sống thì bỏ qua —
// thay đổi đã được chấp nhận local, chưa sync, và ứng dụng vẫn dùng được
// offline nên chỉ log mức debug, không báo người dùng.
func (r *Reconciler) Push(ctx context.Context, t recordmodels.EntityType, e recordmodels.Entity) {
	log := logger.GetAppLogger()

	if r.client == nil {
		return
	}
	if r.session == nil || !r.session.Live() {
		log.WithFields(map[string]interface{}{
			"collection": t,
			"id":         e.ID(),
		}).Debug("🔄 [SYNC] Chưa có phiên, thay đổi giữ ở local")
		return
	}

	// Backfill tenant từ phiên hiện tại để thỏa row-level isolation phía remote
	if e.Organization() == "" && r.session.Organization() != "" {
		e = e.Clone()
		e.SetOrganization(r.session.Organization())
	}

	row := mapper.ToExternal(t, e)
	if err := r.client.Upsert(ctx, mapper.TableFor(t), row); err != nil {
		r.logWriteFailure(t, e.ID(), err)
		return
	}

	log.WithFields(map[string]interface{}{
		"collection": t,
		"id":         e.ID(),
	}).Debug("🔄 [SYNC] Đã đẩy bản ghi lên remote")
}

// Delete xóa một bản ghi trên remote store. Cùng precondition và cách nuốt
// lỗi như Push.
func (r *Reconciler) Delete(ctx context.Context, t recordmodels.EntityType, id string) {
	log := logger.GetAppLogger()

	if r.client == nil {
		return
	}
	if r.session == nil || !r.session.Live() {
		log.WithFields(map[string]interface{}{
			"collection": t,
			"id":         id,
		}).Debug("🔄 [SYNC] Chưa có phiên, bỏ qua delete remote")
		return
	}

	if err := r.client.Delete(ctx, mapper.TableFor(t), id); err != nil {
		r.logWriteFailure(t, id, err)
		return
	}

	log.WithFields(map[string]interface{}{
		"collection": t,
		"id":         id,
	}).Debug("🔄 [SYNC] Đã xóa bản ghi trên remote")
}

// logWriteFailure phân loại lỗi ghi remote và log ở mức phù hợp.
// Mọi loại đều non-fatal: Local Store đã phản ánh trạng thái mong muốn,
// và drift của một bảng không được phép chặn các bảng khác.
func (r *Reconciler) logWriteFailure(t recordmodels.EntityType, id string, err error) {
	log := logger.GetAppLogger().WithFields(map[string]interface{}{
		"collection": t,
		"id":         id,
	})

	var re *RemoteError
	if !errors.As(err, &re) {
		// Lỗi mạng/timeout — xử lý như remote-rejected: nuốt, log
		log.WithError(err).Warn("🔄 [SYNC] Không liên lạc được remote, thay đổi giữ ở local")
		return
	}

	switch re.Code {
	case common.RemoteCodePermissionDenied:
		log.WithError(re).Warn("🔄 [SYNC] Remote từ chối vì thiếu quyền, bỏ qua bản ghi")
	case common.RemoteCodeUndefinedColumn:
		log.WithError(re).Error("🔄 [SYNC] Lệch schema với remote (cột không tồn tại), cần migrate phía remote")
	case common.RemoteCodeMalformedID:
		log.WithError(re).Warn("🔄 [SYNC] Định danh sai định dạng, remote từ chối")
	case common.RemoteCodeDuplicateKey:
		log.WithError(re).Info("🔄 [SYNC] Bản ghi đã tồn tại trên remote, bỏ qua")
	default:
		log.WithError(re).Error("🔄 [SYNC] Lỗi ghi remote không phân loại được")
	}
}

// PullResult là kết quả pull của một bảng.
type PullResult struct {
	Type  recordmodels.EntityType
	Count int
	Err   error
}

// PullAll kéo snapshot có thẩm quyền của mọi bảng về Local Store.
// Mỗi bảng một query độc lập, chạy song song: bảng lỗi giữ nguyên collection
// local (stale-but-present), các bảng khác vẫn được áp kết quả bình thường.
func (r *Reconciler) PullAll(ctx context.Context) []PullResult {
	log := logger.GetAppLogger()

	if r.client == nil {
		log.Debug("🔄 [SYNC] Không có remote client, bỏ qua PullAll")
		return nil
	}
	if r.session == nil || !r.session.Live() {
		log.Debug("🔄 [SYNC] Chưa có phiên, bỏ qua PullAll")
		return nil
	}

	types := recordmodels.AllTypes()
	results := make([]PullResult, len(types))

	var wg sync.WaitGroup
	for i, t := range types {
		wg.Add(1)
		go func(i int, t recordmodels.EntityType) {
			defer wg.Done()
			defer func() {
				if rec := recover(); rec != nil {
					log.WithFields(map[string]interface{}{
						"panic":      rec,
						"collection": t,
					}).Error("🔄 [SYNC] Panic khi pull bảng")
				}
			}()
			results[i] = r.pullOne(ctx, t)
		}(i, t)
	}
	wg.Wait()

	applied, failed := 0, 0
	for _, res := range results {
		if res.Err != nil {
			failed++
		} else {
			applied++
		}
	}
	log.WithFields(map[string]interface{}{
		"applied": applied,
		"failed":  failed,
	}).Info("🔄 [SYNC] PullAll hoàn tất")

	return results
}

// pullOne kéo một bảng và thay thế collection local nếu thành công.
func (r *Reconciler) pullOne(ctx context.Context, t recordmodels.EntityType) PullResult {
	log := logger.GetAppLogger()

	rows, err := r.client.SelectAll(ctx, mapper.TableFor(t))
	if err != nil {
		r.handlePullFailure(t, err)
		return PullResult{Type: t, Err: err}
	}

	entities := mapper.ToInternal(t, rows)
	r.store.Replace(t, entities)

	log.WithFields(map[string]interface{}{
		"collection": t,
		"count":      len(entities),
	}).Debug("🔄 [SYNC] Đã áp snapshot remote cho collection")

	return PullResult{Type: t, Count: len(entities)}
}

// handlePullFailure log lỗi pull của một bảng. Chữ ký policy đệ quy được
// nâng lên notification mức alert: nó âm thầm làm rỗng bảng đó mỗi lần
// refresh — lỗi cấu hình phải có người nhìn thấy.
func (r *Reconciler) handlePullFailure(t recordmodels.EntityType, err error) {
	log := logger.GetAppLogger().WithField("collection", t)

	var re *RemoteError
	if errors.As(err, &re) && re.Code == common.RemoteCodePolicyRecursion {
		log.WithError(re).Error("🔄 [SYNC] Policy đệ quy vô hạn trên remote, bảng này sẽ rỗng ở mọi lần refresh")
		if r.emitter != nil {
			r.emitter.Notify(
				"Lỗi cấu hình đồng bộ",
				"Bảng "+string(t)+" gặp policy đệ quy vô hạn trên remote store. Dữ liệu hiển thị là bản local, hãy kiểm tra cấu hình row-level policy.",
				auditmodels.SeverityAlert,
				nil,
			)
		}
		return
	}

	// Bảng lỗi giữ nguyên dữ liệu local (stale-but-present), không fatal
	log.WithError(err).Warn("🔄 [SYNC] Không pull được bảng, giữ dữ liệu local hiện có")
}
