// Package worker - SyncWorker chạy PullAll theo chu kỳ để collection local
// không trôi quá xa snapshot có thẩm quyền trên remote. Bổ sung cho các lần
// pull theo sự kiện (khởi động, gia hạn phiên, thao tác thủ công).
package worker

import (
	"context"
	"time"

	"nexus_crm/internal/logger"
	"nexus_crm/internal/remote"
)

// SyncWorker kéo snapshot remote định kỳ.
type SyncWorker struct {
	reconciler *remote.Reconciler
	interval   time.Duration
}

// NewSyncWorker tạo worker mới. interval dưới 1 phút bị nâng lên mặc định 15 phút.
func NewSyncWorker(reconciler *remote.Reconciler, interval time.Duration) *SyncWorker {
	if interval < time.Minute {
		interval = 15 * time.Minute
	}
	return &SyncWorker{reconciler: reconciler, interval: interval}
}

// Start chạy worker trong vòng lặp cho đến khi context bị hủy.
func (w *SyncWorker) Start(ctx context.Context) {
	log := logger.GetAppLogger()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	log.WithField("interval", w.interval.String()).Info("🔄 [SYNC_WORKER] Starting Sync Worker...")

	for {
		select {
		case <-ctx.Done():
			log.Info("🔄 [SYNC_WORKER] Sync Worker stopped")
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

// runOnce chạy một chu kỳ PullAll, có recover để worker sống qua panic.
func (w *SyncWorker) runOnce(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			logger.GetAppLogger().WithField("panic", r).Error("🔄 [SYNC_WORKER] Panic khi pull, sẽ tiếp tục chu kỳ sau")
		}
	}()

	w.reconciler.PullAll(ctx)
}
