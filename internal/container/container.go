package container

import (
	"context"

	"khoomi-api-io/catalog/config"
	"khoomi-api-io/catalog/internal"
	"khoomi-api-io/catalog/internal/auth"
	"khoomi-api-io/catalog/pkg/controllers"
	"khoomi-api-io/catalog/pkg/models"
	"khoomi-api-io/catalog/pkg/services"
	"khoomi-api-io/catalog/pkg/util"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type ServiceContainer struct {
	Config *config.Config
	Logger *zap.Logger

	Mongo *mongo.Client
	Redis *redis.Client

	Store           services.CategoryStore
	Gate            services.Authorizer
	Verifier        *auth.TokenVerifier
	CachePublisher  *internal.RedisCachePublisher
	CategoryService *services.CategoryService

	CategoryController *controllers.CategoryController
}

// NewServiceContainer connects the configured backends and wires the category
// service and controller. Redis and Cloudinary are optional.
func NewServiceContainer(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*ServiceContainer, error) {
	sc := &ServiceContainer{Config: cfg, Logger: logger}

	switch cfg.StoreDriver {
	case "memory":
		logger.Warn("using in-memory category store; data is lost on restart")
		sc.Store = services.NewMemoryCategoryStore()
	default:
		client, err := util.ConnectDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		sc.Mongo = client
		sc.Store = services.NewMongoCategoryStore(util.GetCollection(client, cfg.DBName, cfg.Collection))
	}

	opts := []services.CategoryServiceOption{
		services.WithTreeStrategy(services.TreeStrategy(cfg.TreeStrategy)),
		services.WithLogger(logger),
	}

	var blacklist auth.Blacklist
	if cfg.RedisURL != "" {
		client, err := util.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			sc.Close(ctx)
			return nil, err
		}
		sc.Redis = client
		blacklist = auth.NewRedisBlacklist(client)
		sc.CachePublisher = internal.NewRedisCachePublisher(client, internal.CHANNEL_GLOBAL_CACHE)
		opts = append(opts, services.WithCachePublisher(sc.CachePublisher))
	}

	if cfg.CloudinaryEnabled() {
		uploader, err := util.NewCloudinaryUploader(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey,
			cfg.CloudinaryAPISecret, cfg.CloudinaryUploadFolder)
		if err != nil {
			sc.Close(ctx)
			return nil, errors.Wrap(err, "init cloudinary")
		}
		opts = append(opts, services.WithMediaUploader(uploader))
	}

	sc.Gate = services.NewRoleGate(models.RoleAdmin)
	sc.Verifier = auth.NewTokenVerifier(cfg.Secret, blacklist)
	sc.CategoryService = services.NewCategoryService(sc.Store, sc.Gate, opts...)
	sc.CategoryController = controllers.InitCategoryController(sc.CategoryService, cfg.RequestTimeout)
	return sc, nil
}

// Close releases the backend connections.
func (sc *ServiceContainer) Close(ctx context.Context) {
	if sc.Redis != nil {
		if err := sc.Redis.Close(); err != nil {
			sc.Logger.Warn("closing redis", zap.Error(err))
		}
	}
	if sc.Mongo != nil {
		if err := sc.Mongo.Disconnect(ctx); err != nil {
			sc.Logger.Warn("closing mongo", zap.Error(err))
		}
	}
}
