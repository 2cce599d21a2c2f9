// Package recordsvc chứa Local Store — nguồn sự thật duy nhất cho tầng hiển thị.
// Mọi mutation cập nhật bộ nhớ + persist snapshot một cách đồng bộ, sau đó
// thông báo bất đồng bộ cho các hook (đẩy remote, audit, automation).
// Ứng dụng dùng được hoàn toàn offline: mất snapshot hay mất remote đều không fatal.
package recordsvc

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	recordmodels "nexus_crm/internal/api/records/models"
	"nexus_crm/internal/logger"
	"nexus_crm/internal/registry"
	"nexus_crm/internal/storage"
)

// MutationOp phân loại thao tác ghi.
type MutationOp string

const (
	OpAdd    MutationOp = "add"
	OpUpdate MutationOp = "update"
	OpRemove MutationOp = "remove"
)

// Mutation mô tả một thao tác ghi đã được Local Store chấp nhận.
// Previous là trạng thái trước đó (nil khi add); Entity là trạng thái sau
// (nil khi remove). Cả hai đều là bản sao — hook đọc thoải mái.
type Mutation struct {
	Op       MutationOp
	Type     recordmodels.EntityType
	ID       string
	Entity   recordmodels.Entity
	Previous recordmodels.Entity
	Actor    *recordmodels.Actor
}

// MutationHook nhận thông báo sau mỗi mutation. Hook chạy trên goroutine
// riêng, fire-and-forget — không bao giờ chặn đường ghi tương tác.
type MutationHook func(ctx context.Context, m Mutation)

// LocalStore giữ các Local Collection trong bộ nhớ, mirror xuống snapshot store.
// Không phải singleton — khởi tạo một lần ở cmd/server và inject vào nơi cần.
type LocalStore struct {
	mu          sync.RWMutex // Mọi mutation tuần tự hóa qua một writer lock
	collections map[recordmodels.EntityType][]recordmodels.Entity
	snapshots   *storage.SnapshotStore
	seeds       *registry.Registry[[]recordmodels.Entity]
	hooks       []MutationHook
	hookCtx     context.Context // Context vòng đời tiến trình cấp cho các hook
}

// NewLocalStore tạo store và hydrate mọi collection từ snapshot.
// seeds (tùy chọn) cung cấp dữ liệu mặc định cho collection chưa có snapshot.
func NewLocalStore(snapshots *storage.SnapshotStore, seeds *registry.Registry[[]recordmodels.Entity]) *LocalStore {
	s := &LocalStore{
		collections: make(map[recordmodels.EntityType][]recordmodels.Entity),
		snapshots:   snapshots,
		seeds:       seeds,
		hookCtx:     context.Background(),
	}
	s.hydrate()
	return s
}

// RegisterHook đăng ký một mutation hook. Gọi lúc wiring, trước khi nhận traffic.
func (s *LocalStore) RegisterHook(h MutationHook) {
	s.hooks = append(s.hooks, h)
}

// BindHookContext gắn context vòng đời tiến trình cho pipeline hook.
// Gọi lúc wiring; context bị hủy khi shutdown sẽ dừng các side effect nền.
func (s *LocalStore) BindHookContext(ctx context.Context) {
	if ctx != nil {
		s.hookCtx = ctx
	}
}

// hydrate nạp mọi collection từ snapshot; snapshot hỏng hoặc vắng thì
// fallback về seed (hoặc rỗng) — taxonomy lỗi local-only, không bao giờ fatal.
func (s *LocalStore) hydrate() {
	log := logger.GetAppLogger()

	if s.snapshots == nil {
		for _, t := range recordmodels.AllTypes() {
			s.collections[t] = s.seedFor(t)
		}
		log.Warn("🗃 [STORE] Không có snapshot store, mọi collection bắt đầu từ dữ liệu mặc định")
		return
	}

	for _, t := range recordmodels.AllTypes() {
		data, err := s.snapshots.Load(string(t))
		if err != nil {
			log.WithError(err).WithField("collection", t).Warn("🗃 [STORE] Không đọc được snapshot, dùng dữ liệu mặc định")
			s.collections[t] = s.seedFor(t)
			continue
		}
		if data == nil {
			s.collections[t] = s.seedFor(t)
			continue
		}

		var entities []recordmodels.Entity
		if err := json.Unmarshal(data, &entities); err != nil {
			log.WithError(err).WithField("collection", t).Warn("🗃 [STORE] Snapshot hỏng, dùng dữ liệu mặc định")
			s.collections[t] = s.seedFor(t)
			continue
		}
		s.collections[t] = entities
	}

	log.WithField("collections", len(s.collections)).Info("🗃 [STORE] Đã hydrate các collection từ snapshot")
}

// seedFor trả về seed cho một collection (bản sao), hoặc rỗng nếu không có seed.
func (s *LocalStore) seedFor(t recordmodels.EntityType) []recordmodels.Entity {
	if s.seeds == nil {
		return []recordmodels.Entity{}
	}
	seed, ok := s.seeds.Get(string(t))
	if !ok {
		return []recordmodels.Entity{}
	}
	out := make([]recordmodels.Entity, 0, len(seed))
	for _, e := range seed {
		out = append(out, e.Clone())
	}
	return out
}

// Get trả về bản sao của một Local Collection.
func (s *LocalStore) Get(t recordmodels.EntityType) []recordmodels.Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()

	src := s.collections[t]
	out := make([]recordmodels.Entity, 0, len(src))
	for _, e := range src {
		out = append(out, e.Clone())
	}
	return out
}

// FindByID tìm entity theo định danh.
func (s *LocalStore) FindByID(t recordmodels.EntityType, id string) (recordmodels.Entity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.collections[t] {
		if e.ID() == id {
			return e.Clone(), true
		}
	}
	return nil, false
}

// Add thêm entity vào collection. Thiếu id thì sinh UUID mới; thiếu tenant
// thì backfill từ actor ngay tại biên ghi. Add luôn append — caller cần
// upsert thì dùng Update.
func (s *LocalStore) Add(ctx context.Context, t recordmodels.EntityType, e recordmodels.Entity, actor *recordmodels.Actor) (recordmodels.Entity, error) {
	if e == nil {
		e = recordmodels.Entity{}
	}
	if e.ID() == "" {
		e.SetID(uuid.NewString())
	}
	if _, ok := e[recordmodels.FieldCreatedAt]; !ok {
		e[recordmodels.FieldCreatedAt] = time.Now().UTC().Format(time.RFC3339)
	}
	if e.Organization() == "" && actor != nil && actor.Organization != "" {
		e.SetOrganization(actor.Organization)
	}

	s.mu.Lock()
	s.collections[t] = append(s.collections[t], e.Clone())
	s.persistLocked(t)
	s.mu.Unlock()

	s.notify(Mutation{Op: OpAdd, Type: t, ID: e.ID(), Entity: e.Clone(), Actor: actor})
	return e, nil
}

// Update thay thế entity cùng id; nếu chưa tồn tại thì append (upsert).
// Trả về trạng thái trước đó nếu có.
func (s *LocalStore) Update(ctx context.Context, t recordmodels.EntityType, e recordmodels.Entity, actor *recordmodels.Actor) (recordmodels.Entity, error) {
	if e.Organization() == "" && actor != nil && actor.Organization != "" {
		e.SetOrganization(actor.Organization)
	}

	var previous recordmodels.Entity

	s.mu.Lock()
	replaced := false
	col := s.collections[t]
	for i, existing := range col {
		if existing.ID() == e.ID() {
			previous = existing.Clone()
			col[i] = e.Clone()
			replaced = true
			break
		}
	}
	if !replaced {
		s.collections[t] = append(col, e.Clone())
	}
	s.persistLocked(t)
	s.mu.Unlock()

	s.notify(Mutation{Op: OpUpdate, Type: t, ID: e.ID(), Entity: e.Clone(), Previous: previous, Actor: actor})
	return previous, nil
}

// Remove xóa entity theo id. Id không tồn tại là no-op, không phải lỗi.
func (s *LocalStore) Remove(ctx context.Context, t recordmodels.EntityType, id string, actor *recordmodels.Actor) {
	var previous recordmodels.Entity

	s.mu.Lock()
	col := s.collections[t]
	for i, existing := range col {
		if existing.ID() == id {
			previous = existing.Clone()
			s.collections[t] = append(col[:i], col[i+1:]...)
			break
		}
	}
	if previous == nil {
		s.mu.Unlock()
		return
	}
	s.persistLocked(t)
	s.mu.Unlock()

	s.notify(Mutation{Op: OpRemove, Type: t, ID: id, Previous: previous, Actor: actor})
}

// Replace thay toàn bộ một collection bằng kết quả pull từ remote.
// Chỉ Reconciler gọi — đi qua store để giữ single-writer và persist snapshot.
// Không notify hook: dữ liệu pull về không phải mutation của người dùng.
func (s *LocalStore) Replace(t recordmodels.EntityType, entities []recordmodels.Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()

	col := make([]recordmodels.Entity, 0, len(entities))
	for _, e := range entities {
		col = append(col, e.Clone())
	}
	s.collections[t] = col
	s.persistLocked(t)
}

// persistLocked ghi snapshot đầy đủ của collection. Gọi khi đang giữ lock.
// Lỗi persist chỉ log warn — bộ nhớ vẫn đúng, ứng dụng vẫn chạy tiếp.
func (s *LocalStore) persistLocked(t recordmodels.EntityType) {
	if s.snapshots == nil {
		return
	}
	data, err := json.Marshal(s.collections[t])
	if err != nil {
		logger.GetAppLogger().WithError(err).WithField("collection", t).Warn("🗃 [STORE] Không serialize được collection để persist")
		return
	}
	if err := s.snapshots.Save(string(t), data); err != nil {
		logger.GetAppLogger().WithError(err).WithField("collection", t).Warn("🗃 [STORE] Không ghi được snapshot, dữ liệu chỉ còn trong bộ nhớ")
	}
}

// notify báo các hook trên goroutine riêng, có recover — một hook panic
// không được phép ảnh hưởng đường ghi.
// Hook chạy trên hookCtx (vòng đời tiến trình), KHÔNG phải context của
// request: side effect (đẩy remote, webhook) phải sống lâu hơn request, và
// context của fiber bị tái sử dụng ngay khi handler trả về.
func (s *LocalStore) notify(m Mutation) {
	ctx := s.hookCtx
	for _, h := range s.hooks {
		hook := h
		go func() {
			defer func() {
				if r := recover(); r != nil {
					logger.GetAppLogger().WithFields(map[string]interface{}{
						"panic":      r,
						"collection": m.Type,
						"op":         m.Op,
					}).Error("🗃 [STORE] Mutation hook panic")
				}
			}()
			hook(ctx, m)
		}()
	}
}
