// Package wire 提供依赖注入配置
package wire

import (
	"context"
	"fmt"
	"time"

	"github.com/google/wire"

	"imagegen-api/internal/application/generation"
	"imagegen-api/internal/application/history"
	"imagegen-api/internal/application/settings"
	"imagegen-api/internal/config"
	"imagegen-api/internal/domain/repository"
	"imagegen-api/internal/infrastructure/fal"
	"imagegen-api/internal/infrastructure/messaging"
	"imagegen-api/internal/infrastructure/pagecontext"
	"imagegen-api/internal/infrastructure/persistence/memory"
	"imagegen-api/internal/infrastructure/persistence/mongo"
	"imagegen-api/internal/infrastructure/persistence/postgres"
	"imagegen-api/internal/infrastructure/persistence/redis"
	"imagegen-api/internal/infrastructure/persistence/sqlite"
	"imagegen-api/internal/interfaces/http/handler"
	"imagegen-api/internal/interfaces/http/middleware"
	"imagegen-api/internal/interfaces/http/router"
	"imagegen-api/pkg/logger"
)

const sseHeartbeat = 15 * time.Second

// App 应用依赖容器
type App struct {
	Config       *config.Config
	Router       *router.Router
	Orchestrator *generation.Orchestrator
	History      *history.Service
	Events       *EventLayer
}

// StorageLayer 按 storage.driver 选择的持久化后端
type StorageLayer struct {
	History  repository.HistoryRepository
	Settings repository.SettingsRepository
	Checks   map[string]repository.HealthChecker
}

// EventLayer 生命周期事件广播
// Relay 仅在 redis_stream 驱动下非空
type EventLayer struct {
	Bus       *messaging.Bus
	Publisher messaging.Publisher
	Replayer  messaging.Replayer
	Relay     *messaging.StreamRelay
}

// StorageSet 持久化提供者集合
var StorageSet = wire.NewSet(
	ProvideRedisClient,
	ProvideStorage,
	ProvideHistoryRepository,
	ProvideSettingsRepository,
)

// ServiceSet 应用服务提供者集合
var ServiceSet = wire.NewSet(
	ProvideHistoryService,
	settings.NewCredentialStore,
	pagecontext.NewRegistry,
	ProvideSelectionProvider,
	ProvideFalClient,
	ProvideEventLayer,
	ProvideOrchestrator,
)

// RouterSet 路由器提供者集合
var RouterSet = wire.NewSet(
	ProvideRateLimiter,
	ProvideHealthHandler,
	ProvideEventHandler,
	handler.NewGenerationHandler,
	handler.NewHistoryHandler,
	handler.NewSettingsHandler,
	handler.NewContextHandler,
	wire.Bind(new(handler.CommandSubmitter), new(*generation.Orchestrator)),
	wire.Bind(new(handler.HistoryService), new(*history.Service)),
	wire.Bind(new(handler.CredentialService), new(*settings.CredentialStore)),
	wire.Bind(new(handler.ContextRegistry), new(*pagecontext.Registry)),
	wire.Struct(new(router.Handlers), "*"),
	router.New,
)

// ProvideRedisClient 提供 Redis 客户端，配置未使用 Redis 时返回 nil
func ProvideRedisClient(cfg *config.Config) (*redis.Client, func(), error) {
	if !cfg.UsesRedis() {
		return nil, func() {}, nil
	}
	client, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		client.Close()
	}
	return client, cleanup, nil
}

// ProvideStorage 按驱动打开存储后端
func ProvideStorage(ctx context.Context, cfg *config.Config, redisClient *redis.Client) (*StorageLayer, func(), error) {
	checks := make(map[string]repository.HealthChecker)
	if redisClient != nil {
		checks["redis"] = redisClient
	}

	switch cfg.Storage.Driver {
	case config.StorageDriverRedis:
		if redisClient == nil {
			return nil, nil, fmt.Errorf("storage driver redis requires a redis client")
		}
		return &StorageLayer{
			History:  redis.NewHistoryRepository(redisClient, cfg.Storage.KeyPrefix),
			Settings: redis.NewSettingsRepository(redisClient, cfg.Storage.KeyPrefix),
			Checks:   checks,
		}, func() {}, nil

	case config.StorageDriverPostgres:
		client, err := postgres.NewClient(&cfg.Database.Postgres)
		if err != nil {
			return nil, nil, err
		}
		checks["postgres"] = client
		return &StorageLayer{
			History:  postgres.NewHistoryRepository(client),
			Settings: postgres.NewSettingsRepository(client),
			Checks:   checks,
		}, func() { client.Close() }, nil

	case config.StorageDriverSQLite:
		store, err := sqlite.Open(cfg.Database.SQLite.Path)
		if err != nil {
			return nil, nil, err
		}
		checks["sqlite"] = store
		return &StorageLayer{
			History:  store.History(),
			Settings: store.Settings(),
			Checks:   checks,
		}, func() { store.Close() }, nil

	case config.StorageDriverMongo:
		store, err := mongo.NewStore(&cfg.Database.Mongo)
		if err != nil {
			return nil, nil, err
		}
		checks["mongo"] = store
		return &StorageLayer{
			History:  store.History(),
			Settings: store.Settings(),
			Checks:   checks,
		}, func() { store.Close() }, nil

	case config.StorageDriverMemory:
		logger.Warn(ctx, "using in-memory storage, history and credential are lost on restart")
		return &StorageLayer{
			History:  memory.NewHistoryRepository(),
			Settings: memory.NewSettingsRepository(),
			Checks:   checks,
		}, func() {}, nil
	}
	return nil, nil, fmt.Errorf("unsupported storage driver %q", cfg.Storage.Driver)
}

// ProvideHistoryRepository 提供历史记录仓储
func ProvideHistoryRepository(s *StorageLayer) repository.HistoryRepository {
	return s.History
}

// ProvideSettingsRepository 提供设置仓储
func ProvideSettingsRepository(s *StorageLayer) repository.SettingsRepository {
	return s.Settings
}

// ProvideHistoryService 提供历史记录服务，cleanup 时停止写协程
func ProvideHistoryService(repo repository.HistoryRepository) (*history.Service, func()) {
	svc := history.NewService(repo)
	return svc, svc.Close
}

// ProvideSelectionProvider 提供页面选区获取
func ProvideSelectionProvider(cfg *config.Config) *pagecontext.HTTPSelectionProvider {
	return pagecontext.NewHTTPSelectionProvider(cfg.Selection.Timeout)
}

// ProvideFalClient 提供文生图客户端
func ProvideFalClient(cfg *config.Config) *fal.Client {
	return fal.NewClient(
		fal.WithEndpoint(cfg.Fal.Endpoint),
		fal.WithTimeout(cfg.Fal.Timeout),
	)
}

// ProvideEventLayer 按 messaging.driver 提供事件广播
func ProvideEventLayer(cfg *config.Config, redisClient *redis.Client) (*EventLayer, error) {
	bus := messaging.NewBus(cfg.Messaging.SubscriberBuffer)

	switch cfg.Messaging.Driver {
	case config.MessagingDriverRedisStream:
		if redisClient == nil {
			return nil, fmt.Errorf("messaging driver redis_stream requires a redis client")
		}
		streamCfg := messaging.StreamConfig{
			Stream:       cfg.Messaging.RedisStream.Stream,
			MaxLen:       cfg.Messaging.RedisStream.MaxLen,
			BlockTimeout: cfg.Messaging.RedisStream.BlockTimeout,
		}
		publisher := messaging.NewStreamPublisher(redisClient.Redis(), bus, streamCfg)
		return &EventLayer{
			Bus:       bus,
			Publisher: publisher,
			Replayer:  publisher,
			Relay:     messaging.NewStreamRelay(redisClient.Redis(), bus, streamCfg),
		}, nil

	case config.MessagingDriverLocal:
		publisher := messaging.NewLocalPublisher(bus, int(cfg.Messaging.RedisStream.ReplayLimit))
		return &EventLayer{
			Bus:       bus,
			Publisher: publisher,
			Replayer:  publisher,
		}, nil
	}
	return nil, fmt.Errorf("unsupported messaging driver %q", cfg.Messaging.Driver)
}

// ProvideOrchestrator 提供生成编排器
func ProvideOrchestrator(
	registry *pagecontext.Registry,
	selection *pagecontext.HTTPSelectionProvider,
	credentials *settings.CredentialStore,
	generator *fal.Client,
	historySvc *history.Service,
	events *EventLayer,
) *generation.Orchestrator {
	return generation.NewOrchestrator(registry, selection, credentials, generator, historySvc, events.Publisher)
}

// ProvideRateLimiter 提供限流器，无 Redis 时不限流
func ProvideRateLimiter(cfg *config.Config, redisClient *redis.Client) middleware.RateLimiter {
	if redisClient == nil {
		return nil
	}
	return redis.NewRateLimiter(redisClient, cfg.Storage.KeyPrefix)
}

// ProvideHealthHandler 提供健康检查处理器，relay 存在时在其启动前 /ready 不就绪
func ProvideHealthHandler(cfg *config.Config, s *StorageLayer, events *EventLayer) *handler.HealthHandler {
	checks := make(map[string]repository.HealthChecker, len(s.Checks)+1)
	for name, c := range s.Checks {
		checks[name] = c
	}
	if events.Relay != nil {
		checks["event_relay"] = events.Relay
	}
	return handler.NewHealthHandler(cfg.App.Version, checks)
}

// ProvideEventHandler 提供事件流处理器
func ProvideEventHandler(cfg *config.Config, events *EventLayer) *handler.EventHandler {
	return handler.NewEventHandler(events.Bus, events.Replayer, sseHeartbeat, cfg.Messaging.RedisStream.ReplayLimit)
}
