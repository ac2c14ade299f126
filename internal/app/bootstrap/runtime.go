package bootstrap

import (
	"context"
	"crypto/tls"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/Yardman-Mzansi/potholematic/internal/config"
	"github.com/Yardman-Mzansi/potholematic/internal/conversation"
	"github.com/Yardman-Mzansi/potholematic/internal/events"
	"github.com/Yardman-Mzansi/potholematic/internal/messaging"
	"github.com/Yardman-Mzansi/potholematic/internal/observability/metrics"
	"github.com/Yardman-Mzansi/potholematic/internal/reports"
	"github.com/Yardman-Mzansi/potholematic/pkg/logging"
)

// AWSClients groups the SDK clients built from one aws.Config.
// Fields are nil when the matching backend is not configured.
type AWSClients struct {
	DynamoDB *dynamodb.Client
	S3       *s3.Client
	SQS      *sqs.Client
	SES      *sesv2.Client
}

// Deps are the long-lived connections opened by the binary. Runtime never
// closes them; the caller owns their lifecycle.
type Deps struct {
	Pool       *pgxpool.Pool
	SQLDB      *sql.DB
	Redis      *redis.Client
	AWS        *AWSClients
	Registerer prometheus.Registerer
}

// Runtime is the wired intake pipeline.
type Runtime struct {
	Dispatcher *conversation.Dispatcher
	Reports    reports.Repository
	Deduper    events.Deduper
	Metrics    *metrics.IntakeMetrics
	// Purger is set when webhook dedup is backed by Postgres.
	Purger purger
}

// BuildRuntime selects every backend from cfg and wires the dispatcher.
func BuildRuntime(ctx context.Context, cfg *appconfig.Config, deps Deps, logger *logging.Logger) (*Runtime, error) {
	if cfg == nil {
		return nil, errors.New("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	store, err := BuildConversationStore(cfg, deps, logger)
	if err != nil {
		return nil, err
	}
	blobs, err := BuildBlobStore(cfg, deps.AWS)
	if err != nil {
		return nil, err
	}
	repo, err := BuildReportRepository(cfg, deps)
	if err != nil {
		return nil, err
	}
	deduper, err := BuildDeduper(cfg, deps)
	if err != nil {
		return nil, err
	}

	var intake *metrics.IntakeMetrics
	if cfg.MetricsEnabled && deps.Registerer != nil {
		intake = metrics.NewIntakeMetrics(deps.Registerer)
	}

	dispatcher := conversation.NewDispatcher(conversation.DispatcherConfig{
		Store:           store,
		Engine:          conversation.NewEngine(conversation.WithCoordinateRangeCheck(cfg.ValidateCoordinateRange)),
		Sink:            reports.NewSink(blobs, repo, logger),
		Fetcher:         messaging.NewTwilioMediaFetcher(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.MediaMaxBytes, cfg.MediaFetchTimeout),
		Locker:          BuildLocker(cfg, deps.Redis),
		Listeners:       BuildReportListeners(cfg, deps.AWS, logger),
		Metrics:         intake,
		Logger:          logger,
		FetchTimeout:    cfg.MediaFetchTimeout,
		ListenerTimeout: cfg.ListenerTimeout,
	})

	rt := &Runtime{
		Dispatcher: dispatcher,
		Reports:    repo,
		Deduper:    deduper,
		Metrics:    intake,
	}
	if pg, ok := deduper.(*events.PostgresDeduper); ok {
		rt.Purger = pg
	}
	logger.Info("intake runtime ready",
		"store_backend", cfg.StoreBackend,
		"blob_backend", cfg.BlobBackend,
		"distributed_lock", deps.Redis != nil,
	)
	return rt, nil
}

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available; falling back to in-process locks", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// BuildConversationStore returns the Store named by STORE_BACKEND.
func BuildConversationStore(cfg *appconfig.Config, deps Deps, logger *logging.Logger) (conversation.Store, error) {
	switch cfg.StoreBackend {
	case "", appconfig.BackendMemory:
		logger.Warn("using in-memory conversation store; state is lost on restart")
		return conversation.NewMemoryStore(), nil
	case appconfig.BackendPostgres:
		if deps.Pool == nil {
			return nil, errors.New("bootstrap: postgres store requires DATABASE_URL")
		}
		return conversation.NewPostgresStore(deps.Pool), nil
	case appconfig.BackendDynamoDB:
		if deps.AWS == nil || deps.AWS.DynamoDB == nil {
			return nil, errors.New("bootstrap: dynamodb store requires an aws client")
		}
		return conversation.NewDynamoStore(deps.AWS.DynamoDB, cfg.ConversationsTable, logger), nil
	}
	return nil, fmt.Errorf("bootstrap: unknown store backend %q", cfg.StoreBackend)
}

// BuildReportRepository stores reports next to conversations.
func BuildReportRepository(cfg *appconfig.Config, deps Deps) (reports.Repository, error) {
	switch cfg.StoreBackend {
	case "", appconfig.BackendMemory:
		return reports.NewMemoryRepository(), nil
	case appconfig.BackendPostgres:
		if deps.SQLDB == nil {
			return nil, errors.New("bootstrap: postgres report repository requires DATABASE_URL")
		}
		return reports.NewSQLRepository(deps.SQLDB), nil
	case appconfig.BackendDynamoDB:
		if deps.AWS == nil || deps.AWS.DynamoDB == nil {
			return nil, errors.New("bootstrap: dynamodb report repository requires an aws client")
		}
		return reports.NewDynamoRepository(deps.AWS.DynamoDB, cfg.ReportsTable, reports.WithCreatedAtIndex(cfg.ReportsIndex)), nil
	}
	return nil, fmt.Errorf("bootstrap: unknown store backend %q", cfg.StoreBackend)
}

// BuildBlobStore returns the photo store named by BLOB_BACKEND.
func BuildBlobStore(cfg *appconfig.Config, aws *AWSClients) (reports.BlobStore, error) {
	switch cfg.BlobBackend {
	case "", appconfig.BlobDisk:
		return reports.NewDiskBlobStore(cfg.PhotoDir)
	case appconfig.BlobS3:
		if aws == nil || aws.S3 == nil {
			return nil, errors.New("bootstrap: s3 blob store requires an aws client")
		}
		if strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, errors.New("bootstrap: S3_BUCKET is required for the s3 blob backend")
		}
		return reports.NewS3BlobStore(aws.S3, cfg.S3Bucket, cfg.S3Prefix), nil
	case appconfig.BlobMinio:
		return reports.NewMinioBlobStore(reports.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			Region:    cfg.AWSRegion,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			Prefix:    cfg.S3Prefix,
			UseSSL:    cfg.MinioUseSSL,
		})
	}
	return nil, fmt.Errorf("bootstrap: unknown blob backend %q", cfg.BlobBackend)
}

// BuildLocker returns a Redis lease lock when Redis is available.
func BuildLocker(cfg *appconfig.Config, client *redis.Client) conversation.Locker {
	if client == nil {
		return conversation.NewLocalLocker()
	}
	return conversation.NewRedisLocker(client, cfg.LockTTL, cfg.LockWait)
}

// BuildDeduper prefers Redis, then Postgres, then an in-process LRU.
func BuildDeduper(cfg *appconfig.Config, deps Deps) (events.Deduper, error) {
	if deps.Redis != nil {
		return events.NewRedisDeduper(deps.Redis, cfg.DedupTTL), nil
	}
	if deps.Pool != nil {
		return events.NewPostgresDeduper(deps.Pool), nil
	}
	return events.NewMemoryDeduper(0)
}
