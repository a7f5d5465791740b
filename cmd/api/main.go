package main

import (
	"context"
	"log"
	"time"

	"luckygas-dispatch/internal/core/auth"
	"luckygas-dispatch/internal/core/cache"
	"luckygas-dispatch/internal/core/config"
	"luckygas-dispatch/internal/core/logger"
	"luckygas-dispatch/internal/core/server"
	notifadapter "luckygas-dispatch/internal/features/notifications/adapters"
	notifhandler "luckygas-dispatch/internal/features/notifications/handler"
	"luckygas-dispatch/internal/features/notifications/hub"
	routeadapter "luckygas-dispatch/internal/features/routes/adapters"
	routehandler "luckygas-dispatch/internal/features/routes/handler"
	routeservice "luckygas-dispatch/internal/features/routes/service"
	syncadapter "luckygas-dispatch/internal/features/sync/adapters"
	synchandler "luckygas-dispatch/internal/features/sync/handler"
	syncservice "luckygas-dispatch/internal/features/sync/service"

	"go.uber.org/zap"
)

// @title Lucky Gas Driver Gateway API
// @version 1.0
// @description Driver-facing gateway for the Lucky Gas delivery platform: offline sync reconciliation, route snapshots, and office notifications.
// @contact.name API Support
// @contact.email support@luckygas.tw
// @license.name MIT
// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Init(cfg.Environment, cfg.LogLevel); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync()

	l := logger.Get()
	l.Info("Application starting",
		zap.String("environment", cfg.Environment),
		zap.String("log_level", cfg.LogLevel),
	)

	ctx := context.Background()

	// Event store: canonical delivery status, location projections,
	// idempotency markers.
	eventStore, err := syncadapter.NewRedisEventStore(cfg.RedisURL, cfg.Sync.LocationTrailLimit)
	if err != nil {
		l.Fatal("Failed to create event store", zap.Error(err))
	}
	defer eventStore.Close()
	if err := eventStore.Ping(ctx); err != nil {
		l.Fatal("Redis health check failed", zap.Error(err))
	}
	l.Info("Redis connection verified")

	// Notification fan-out over Redis pub/sub.
	broadcaster, err := notifadapter.NewRedisBroadcaster(cfg.RedisURL)
	if err != nil {
		l.Fatal("Failed to create broadcaster", zap.Error(err))
	}
	defer broadcaster.Close()

	// ERP route provider behind a short-TTL Redis cache.
	erpAdapter := routeadapter.NewERPAdapter(cfg.ERP)
	if err := erpAdapter.HealthCheck(); err != nil {
		l.Fatal("ERP health check failed", zap.Error(err))
	}
	l.Info("ERP connection verified")

	routeCache, err := cache.NewRedisAdapter(cfg.RedisURL)
	if err != nil {
		l.Fatal("Failed to create route cache", zap.Error(err))
	}
	defer routeCache.Close()

	cachedRoutes := routeadapter.NewCachedProvider(
		erpAdapter,
		routeCache,
		time.Duration(cfg.Sync.RouteCacheTTLSeconds)*time.Second,
	)

	// Services and handlers.
	routeSvc := routeservice.NewRouteService(cachedRoutes, eventStore, eventStore)
	routeHdl := routehandler.NewRouteHandler(routeSvc)

	reconciler := syncservice.NewReconciler(eventStore, broadcaster, routeSvc)
	syncHdl := synchandler.NewSyncHandler(reconciler)
	locationHdl := synchandler.NewLocationHandler(eventStore)

	// Office notification hub fed by the pub/sub subscription.
	officeHub := hub.New()
	messages, stopSub := broadcaster.Subscribe(ctx,
		syncservice.TopicDeliveryStatus,
		syncservice.TopicDriverLocation,
	)
	defer stopSub()
	go func() {
		for msg := range messages {
			officeHub.BroadcastTopic(msg.Topic, msg.Payload)
		}
	}()
	wsHdl := notifhandler.NewWSHandler(officeHub)

	tokens := auth.NewManager(cfg.JWT.Secret, time.Duration(cfg.JWT.TTLMinutes)*time.Minute)

	srv := server.New(cfg)

	// Register Routes
	driverAuth := auth.Middleware(tokens, auth.RoleDriver)
	officeAuth := auth.Middleware(tokens, auth.RoleOffice)

	srv.App.Post("/driver/sync", driverAuth, syncHdl.Sync)
	srv.App.Get("/driver/routes", driverAuth, routeHdl.GetRoutes)
	srv.App.Get("/drivers/:id/location", officeAuth, locationHdl.GetCurrentLocation)
	srv.App.Get("/drivers/:id/locations", officeAuth, locationHdl.GetLocationTrail)
	srv.App.Get("/office/ws", officeAuth, wsHdl.Upgrade(), wsHdl.Serve())

	if err := srv.Run(); err != nil {
		l.Fatal("Server failed to start", zap.Error(err))
	}
}
