// Package integration starts the Postgres, Redis and Kafka containers the
// -tags integration tests run against.
package integration

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/dmehra2102/storefront/pkg/database"
)

type Env struct {
	PG        *postgres.PostgresContainer
	Redis     *tcredis.RedisContainer
	Kafka     *kafka.KafkaContainer
	Pool      *pgxpool.Pool
	PGURL     string
	RedisAddr string
	KAddr     []string
}

type Option func(*options)

type options struct {
	kafka bool
	redis bool
}

func WithKafka() Option { return func(o *options) { o.kafka = true } }

func WithRedis() Option { return func(o *options) { o.redis = true } }

// Setup starts Postgres with the schema applied, plus Redis and Kafka when
// asked for. Startup is bounded by a two minute timeout; image pulls on a
// cold machine take most of it.
func Setup(ctx context.Context, opts ...Option) (env *Env, err error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	env = &Env{}
	defer func() {
		if err != nil {
			env.Teardown(context.Background())
		}
	}()

	env.PG, err = postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("storefront"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		return nil, err
	}
	env.PGURL, err = env.PG.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return nil, err
	}
	env.Pool, err = database.Connect(ctx, env.PGURL)
	if err != nil {
		return nil, err
	}
	if err = database.Migrate(ctx, slog.New(slog.NewTextHandler(io.Discard, nil)), env.Pool); err != nil {
		return nil, err
	}

	if o.redis {
		env.Redis, err = tcredis.Run(ctx, "redis:7-alpine")
		if err != nil {
			return nil, err
		}
		env.RedisAddr, err = env.Redis.Endpoint(ctx, "")
		if err != nil {
			return nil, err
		}
	}

	if o.kafka {
		env.Kafka, err = kafka.Run(ctx,
			"confluentinc/confluent-local:7.5.0",
			kafka.WithClusterID("storefront-test"),
		)
		if err != nil {
			return nil, err
		}
		env.KAddr, err = env.Kafka.Brokers(ctx)
		if err != nil {
			return nil, err
		}
	}
	return env, nil
}

func (e *Env) Teardown(ctx context.Context) {
	if e.Pool != nil {
		e.Pool.Close()
	}
	var containers []testcontainers.Container
	if e.Kafka != nil {
		containers = append(containers, e.Kafka)
	}
	if e.Redis != nil {
		containers = append(containers, e.Redis)
	}
	if e.PG != nil {
		containers = append(containers, e.PG)
	}
	for _, c := range containers {
		_ = testcontainers.TerminateContainer(c, testcontainers.StopContext(ctx))
	}
}
