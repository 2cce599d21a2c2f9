package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nexus_crm/config"
	auditsvc "nexus_crm/internal/api/audit/service"
	automationsvc "nexus_crm/internal/api/automation/service"
	recordsvc "nexus_crm/internal/api/records/service"
	"nexus_crm/internal/api/router"
	"nexus_crm/internal/dispatch"
	"nexus_crm/internal/dispatch/channels"
	"nexus_crm/internal/global"
	"nexus_crm/internal/logger"
	"nexus_crm/internal/remote"
	"nexus_crm/internal/storage"
	"nexus_crm/internal/worker"
)

// initLogger khởi tạo và cấu hình logger cho toàn bộ ứng dụng
func initLogger() {
	if err := logger.Init(nil); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	logger.GetAppLogger().Info("Logger system initialized successfully")
}

// Hàm main
func main() {
	initLogger()
	log := logger.GetAppLogger()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("Lỗi đọc cấu hình: %v", err)
	}

	// Áp dụng cấu hình logging từ env; trước đó logger chạy mặc định
	// để còn log được lỗi đọc config.
	logCfg := logger.DefaultConfig()
	logCfg.Level = cfg.LogLevel
	logCfg.Format = cfg.LogFormat
	logCfg.Output = cfg.LogOutput
	logCfg.LogPath = cfg.LogPath
	if err := logger.Reconfigure(logCfg); err != nil {
		log.Fatalf("Lỗi cấu hình logger: %v", err)
	}
	log = logger.GetAppLogger()

	global.InitValidator()

	// Context vòng đời tiến trình: hủy khi nhận SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Local Store: hydrate từ snapshot bbolt, thiếu thì rơi về seed.
	snapshots, err := storage.Open(cfg.SnapshotPath)
	if err != nil {
		log.WithError(err).Warn("🗃 [STORE] Không mở được file snapshot, chạy không persist")
		snapshots = nil
	} else {
		defer snapshots.Close()
	}
	seeds := InitDefaultData()
	store := recordsvc.NewLocalStore(snapshots, seeds)
	// Hook (đẩy remote, automation) chạy trên context vòng đời tiến trình,
	// không phải context của request đã kích hoạt mutation.
	store.BindHookContext(ctx)

	emitter := auditsvc.NewEmitter(store)
	emitter.PushAlerts = cfg.PushAlerts

	// Phiên remote: có thể rỗng lúc khởi động, gia hạn qua /session/renew.
	session := remote.NewStaticSession(cfg.SessionToken, cfg.SessionOrg)

	// Remote Reconciler: chỉ wire khi có cấu hình remote.
	var reconciler *remote.Reconciler
	if cfg.RemoteBaseURL != "" {
		client := remote.NewHTTPRowClient(cfg.RemoteBaseURL, cfg.RemoteAPIKey, session, time.Duration(cfg.RemoteTimeout)*time.Second)
		reconciler = remote.NewReconciler(store, client, session, emitter)
		store.RegisterHook(reconciler.Hook())
	} else {
		log.Info("🔄 [SYNC] Không có cấu hình remote, chạy thuần offline")
		reconciler = remote.NewReconciler(store, nil, session, emitter)
	}

	// Automation Trigger Engine nghe cùng pipeline mutation với reconciler.
	engine := automationsvc.NewEngine(store, emitter)
	store.RegisterHook(engine.Hook())

	// Bulk Dispatch Scheduler trên kênh email SMTP.
	deliverer := &channels.EmailDeliverer{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	}
	opts := dispatch.DefaultOptions()
	opts.DelayMin = time.Duration(cfg.DispatchDelayMin) * time.Second
	opts.DelayMax = time.Duration(cfg.DispatchDelayMax) * time.Second
	scheduler := dispatch.NewScheduler(store, deliverer, opts)

	// Pull toàn bộ khi khởi động và mỗi lần gia hạn phiên.
	if cfg.RemoteBaseURL != "" {
		session.OnRenewal(func() {
			go func() {
				defer func() {
					if r := recover(); r != nil {
						log.WithField("panic", r).Error("🔄 [SYNC] Panic trong vòng pull sau gia hạn phiên")
					}
				}()
				reconciler.PullAll(ctx)
			}()
		})
		go func() {
			defer func() {
				if r := recover(); r != nil {
					log.WithField("panic", r).Error("🔄 [SYNC] Panic trong vòng pull khởi động")
				}
			}()
			reconciler.PullAll(ctx)
		}()

		// Sync Worker định kỳ.
		if cfg.SyncInterval > 0 {
			syncWorker := worker.NewSyncWorker(reconciler, time.Duration(cfg.SyncInterval)*time.Second)
			go syncWorker.Start(ctx)
		}
	}

	app := InitFiberApp(router.Deps{
		BaseCtx:    ctx,
		Store:      store,
		Emitter:    emitter,
		Reconciler: reconciler,
		Session:    session,
		Scheduler:  scheduler,
	})

	// Shutdown: hủy context nền rồi đóng fiber app.
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		s := <-sig
		log.WithField("signal", s.String()).Info("Shutting down...")
		cancel()
		if err := app.Shutdown(); err != nil {
			log.WithError(err).Error("Lỗi khi shutdown Fiber app")
		}
	}()

	log.WithFields(map[string]interface{}{
		"address":  cfg.Address,
		"protocol": "HTTP",
	}).Info("Starting Fiber server...")

	if err := app.Listen(cfg.Address); err != nil {
		log.Fatalf("Error in Fiber Listen: %v", err)
	}

	log.Info("Server stopped")
}
