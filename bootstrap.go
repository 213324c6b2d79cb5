package main

import (
	"context"
	"time"

	"PMentor/global/config"
	"PMentor/logger"
	midsec "PMentor/middleware/security"
	"PMentor/module/mentor/model"
	"PMentor/module/mentor/store"
	"PMentor/service/mgo"
	"PMentor/service/natsx"
	"PMentor/service/pg"
	"PMentor/service/storage"
	redisx "PMentor/service/storage/redis"
	"PMentor/tools/ids"
	"PMentor/tools/security"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// stores is everything the command layer persists through.
type stores struct {
	messages    store.MessageStore
	connections store.ConnectionStore
	directory   store.Directory
	closers     []func()
}

func (s *stores) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func configIds(cfg config.AppConfig) {
	ids.SetNodeID(cfg.NodeID)
}

// configVerifier builds the token verifier and hands it to the REST middleware.
func configVerifier(cfg config.AppConfig) (security.Verifier, error) {
	v, err := security.NewVerifier(security.Options{
		Secret: []byte(cfg.JWT.Secret),
		Alg:    cfg.JWT.Alg,
		TTL:    cfg.JWT.TTL,
		Issuer: cfg.JWT.Issuer,
	})
	if err != nil {
		return nil, err
	}
	midsec.Configure(v)
	return v, nil
}

func configStores(ctx context.Context, cfg config.AppConfig) (*stores, error) {
	st := &stores{}
	mem := store.NewMemory()
	for _, u := range cfg.Store.SeedUsers {
		role, _ := model.ParseRole(u.Role)
		mem.PutProfile(model.Profile{UserID: u.ID, Email: u.Email, Name: u.Name, Role: role})
	}

	switch cfg.Store.Driver {
	case config.StoreMongo:
		if err := configMgo(ctx, cfg, st); err != nil {
			return nil, err
		}
	default:
		st.messages, st.connections = mem, mem.Connections()
	}

	st.directory = mem
	if cfg.Postgres.URL != "" {
		pool, err := pg.Open(ctx, cfg.Postgres)
		if err != nil {
			st.close()
			return nil, err
		}
		st.closers = append(st.closers, pool.Close)
		st.directory = pg.NewDirectory(pool)
		logger.Info("[boot] directory: postgres")
	}

	if cfg.Redis.Addr != "" {
		if err := redisx.InitRedis(cfg.Redis); err != nil {
			st.close()
			return nil, err
		}
		st.closers = append(st.closers, func() { _ = redisx.CloseRedis() })
		st.directory = storage.NewNameCache(st.directory, redisx.GetRedis(), cfg.Redis.NameTTL)
		logger.Info("[boot] display names cached in redis", zap.Duration("ttl", cfg.Redis.NameTTL))
	}
	return st, nil
}

func configMgo(ctx context.Context, cfg config.AppConfig, st *stores) error {
	cctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	cli, err := mgo.Connect(cctx, cfg.Mongo)
	if err != nil {
		return err
	}
	st.closers = append(st.closers, func() { _ = cli.Close(context.Background()) })
	if err := mgo.EnsureIndexes(cctx, cli.DB()); err != nil {
		st.close()
		return err
	}
	st.messages = mgo.NewMessageStore(cli.DB())
	st.connections = mgo.NewConnectionStore(cli.DB())
	logger.Info("[boot] store: mongo", zap.String("database", cfg.Mongo.Database))
	return nil
}

// configNats starts the domain-event feed. Dedup is shared through redis when
// it is configured, otherwise kept in process.
func configNats(cfg config.AppConfig, feed *natsx.Feed, rdb redis.UniversalClient) (*natsx.Manager, error) {
	idem := natsx.NewMemIdem(cfg.Nats.DedupTTL)
	if rdb != nil {
		idem = natsx.NewRedisIdem(rdb, "idem:"+cfg.Nats.SubjectPrefix+":", cfg.Nats.DedupTTL)
	}
	m, err := natsx.NewManager(natsx.Config{
		Servers: cfg.Nats.Servers,
		Name:    cfg.Nats.Name,
	}, natsx.LogMiddleware(), natsx.IdemMiddleware(idem, cfg.Nats.DedupTTL))
	if err != nil {
		return nil, err
	}
	if err := feed.Start(m); err != nil {
		_ = m.Close()
		return nil, err
	}
	return m, nil
}
