package mgo

import (
	"context"
	"time"

	"PMentor/global/config"
	"PMentor/logger"
	"PMentor/tools/errs"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const (
	defaultMaxPoolSize = 100
	defaultMaxRetry    = 3
	retryWait          = 500 * time.Millisecond
)

// Client bundles the driver client with the selected database.
type Client struct {
	cli *mongo.Client
	db  *mongo.Database
}

func (c *Client) DB() *mongo.Database { return c.db }

func (c *Client) Close(ctx context.Context) error {
	return c.cli.Disconnect(ctx)
}

// 将配置转换为驱动选项；用户名单独给出时覆盖 URI 中的认证
func clientOptions(cfg config.MongoConfig) (*options.ClientOptions, error) {
	if cfg.URI == "" {
		return nil, errs.ErrArgs.WrapMsg("mongo uri is required")
	}
	opts := options.Client().ApplyURI(cfg.URI)
	pool := cfg.MaxPoolSize
	if pool <= 0 {
		pool = defaultMaxPoolSize
	}
	opts.SetMaxPoolSize(uint64(pool))
	if cfg.Username != "" {
		opts.SetAuth(options.Credential{Username: cfg.Username, Password: cfg.Password})
	}
	return opts, nil
}

// Connect dials and pings MongoDB, retrying transient failures up to MaxRetry times.
func Connect(ctx context.Context, cfg config.MongoConfig) (*Client, error) {
	if cfg.Database == "" {
		return nil, errs.ErrArgs.WrapMsg("mongo database is required")
	}
	opts, err := clientOptions(cfg)
	if err != nil {
		return nil, err
	}
	retry := cfg.MaxRetry
	if retry <= 0 {
		retry = defaultMaxRetry
	}

	var cli *mongo.Client
	for i := 0; i < retry; i++ {
		cli, err = connectMongo(ctx, opts)
		if err == nil || !shouldRetry(ctx, err) {
			break
		}
		logger.Warn("[mgo] connect failed, retrying", zap.Int("attempt", i+1), zap.Error(err))
		time.Sleep(retryWait)
	}
	if err != nil {
		return nil, errs.WrapMsg(err, "failed to connect to MongoDB", "database", cfg.Database)
	}
	return &Client{cli: cli, db: cli.Database(cfg.Database)}, nil
}

func connectMongo(ctx context.Context, opts *options.ClientOptions) (*mongo.Client, error) {
	cli, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}
	if err := cli.Ping(ctx, nil); err != nil {
		_ = cli.Disconnect(ctx)
		return nil, err
	}
	return cli, nil
}

// shouldRetry: 认证失败(13/18)不重试
func shouldRetry(ctx context.Context, err error) bool {
	select {
	case <-ctx.Done():
		return false
	default:
		if cmdErr, ok := err.(mongo.CommandError); ok {
			return cmdErr.Code != 13 && cmdErr.Code != 18
		}
		return true
	}
}
