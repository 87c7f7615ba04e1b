package server

import (
	"context"
	"fmt"

	"github.com/edusphere/apiserver/config"
	"github.com/edusphere/apiserver/internal/cache"
	"github.com/edusphere/apiserver/internal/db"
	"github.com/edusphere/apiserver/internal/mq"
	"github.com/edusphere/apiserver/internal/services"
	"github.com/edusphere/apiserver/internal/storage"
	"github.com/edusphere/apiserver/internal/store"
)

type repositories struct {
	users    services.UserRepository
	profiles services.ProfileRepository
	tags     services.TagRepository
	files    services.FileRepository
	close    func() error
}

func memoryRepositories() repositories {
	mem := store.NewMemory()
	return repositories{
		users:    mem.Users(),
		profiles: mem.Profiles(),
		tags:     mem.Tags(),
		files:    mem.Files(),
		close:    func() error { return nil },
	}
}

func openRepositories(ctx context.Context, cfg config.Config) (repositories, error) {
	switch cfg.Store.Driver {
	case config.StoreDriverMemory:
		return memoryRepositories(), nil

	case config.StoreDriverMongo:
		client, database, err := db.OpenMongo(ctx, cfg.Mongo)
		if err != nil {
			return repositories{}, fmt.Errorf("mongo: %w", err)
		}
		if err := store.EnsureMongoIndexes(ctx, database); err != nil {
			_ = client.Disconnect(context.Background())
			return repositories{}, fmt.Errorf("mongo indexes: %w", err)
		}
		return repositories{
			users:    store.NewMongoUserRepository(database),
			profiles: store.NewMongoProfileRepository(database),
			tags:     store.NewMongoTagRepository(database),
			files:    store.NewMongoFileRepository(database),
			close:    func() error { return client.Disconnect(context.Background()) },
		}, nil

	default:
		conn, err := db.Open(ctx, cfg.Database)
		if err != nil {
			return repositories{}, fmt.Errorf("postgres: %w", err)
		}
		return repositories{
			users:    store.NewUserRepository(conn),
			profiles: store.NewProfileRepository(conn),
			tags:     store.NewTagRepository(conn),
			files:    store.NewFileRepository(conn),
			close:    conn.Close,
		}, nil
	}
}

func openCache(ctx context.Context, cfg config.Config) (cache.Backend, error) {
	if cfg.Cache.Driver == config.CacheDriverMemory {
		return cache.NewMemoryCache(), nil
	}
	backend, err := cache.NewRedisCache(ctx, cfg.Cache.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	return backend, nil
}

func openStorage(ctx context.Context, cfg config.Config) (*storage.Storage, error) {
	var (
		backend storage.ObjectStorage
		err     error
	)
	switch cfg.Storage.Driver {
	case config.StorageDriverGCS:
		backend, err = storage.NewGCSClient(ctx, cfg.GCS)
	case config.StorageDriverS3:
		backend, err = storage.NewS3Client(ctx, cfg.S3)
	default:
		backend, err = storage.NewMinioClient(cfg.Minio)
	}
	if err != nil {
		return nil, fmt.Errorf("storage %s: %w", cfg.Storage.Driver, err)
	}

	objects := storage.NewStorage(backend)
	if err := objects.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("ensure bucket %s: %w", objects.Bucket(), err)
	}
	return objects, nil
}

// openQueue returns nil when notifications are mailed directly.
func openQueue(ctx context.Context, cfg config.Config) (*mq.MQ, error) {
	switch cfg.MQ.Driver {
	case config.MQDriverRabbitMQ:
		client, err := mq.NewRabbitMQClient(cfg.RabbitMQ)
		if err != nil {
			return nil, fmt.Errorf("rabbitmq: %w", err)
		}
		return mq.New(client), nil
	case config.MQDriverPubSub:
		client, err := mq.NewPubSubClient(ctx, cfg.PubSub)
		if err != nil {
			return nil, fmt.Errorf("pubsub: %w", err)
		}
		return mq.New(client), nil
	case config.MQDriverMemory:
		return mq.New(mq.NewMemoryBroker()), nil
	default:
		return nil, nil
	}
}
