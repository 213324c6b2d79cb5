package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"PMentor/global/config"
	"PMentor/logger"
	mid "PMentor/middleware"
	"PMentor/module/mentor"
	"PMentor/module/mentor/service"
	"PMentor/service/chat"
	"PMentor/service/chat/handlers"
	"PMentor/service/natsx"
	"PMentor/service/presence"
	"PMentor/service/relay"
	redisx "PMentor/service/storage/redis"
	"PMentor/tools"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	// .env 可选，不存在时忽略
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("MENTOR_CONFIG"))
	if err != nil {
		logger.Error("[boot] load config failed", zap.Error(err))
		os.Exit(1)
	}
	config.Global = cfg
	logger.SetLevel(cfg.Log.Level)
	defer logger.Sync()

	if err := run(cfg); err != nil {
		logger.Error("[boot] exit with error", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg config.AppConfig) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	configIds(cfg)
	verifier, err := configVerifier(cfg)
	if err != nil {
		return err
	}
	st, err := configStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.close()

	// 1) presence + outbound
	registry := presence.NewRegistry()
	conns := chat.NewConnManager("mentor-" + cfg.HTTP.Addr)
	broker := chat.NewBroker(conns)
	rl := relay.New(broker, st.directory)

	// 2) command layer
	messages := service.NewMessageService(st.messages, st.directory, rl)
	connections := service.NewConnectionService(st.connections, st.directory, rl)

	// 3) websocket
	disp := chat.NewDispatcher()
	disp.Register(
		handlers.NewSendHandler(messages),
		handlers.NewTypingHandler(rl),
		handlers.NewMarkReadHandler(messages),
		handlers.NewStatusHandler(registry, rl, broker),
	)
	ws := chat.NewServer(chat.Options{
		SendBuffer:     cfg.WS.SendBuffer,
		WriteWait:      cfg.WS.WriteWait,
		PingInterval:   cfg.WS.PingInterval,
		PongWait:       cfg.WS.PongWait,
		ReadLimit:      cfg.WS.ReadLimit,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
	}, conns, chat.NewGate(verifier, conns), chat.NewLifecycle(registry, rl), disp)

	// 4) domain-event feed
	if len(cfg.Nats.Servers) > 0 {
		var rdb redis.UniversalClient
		if cfg.Redis.Addr != "" {
			rdb = redisx.GetRedis()
		}
		nm, err := configNats(cfg, natsx.NewFeed(rl, cfg.Nats.SubjectPrefix, cfg.Nats.Queue), rdb)
		if err != nil {
			return err
		}
		defer nm.Close()
	}

	// 5) http
	gin.SetMode(gin.ReleaseMode)
	if tools.GetEnvBool("GIN_DEBUG", false) {
		gin.SetMode(gin.DebugMode)
	}
	r := gin.New()
	mid.Manager().Add(mid.Recovery(), mid.RequestLogger(), mid.Origin(cfg.HTTP.AllowedOrigins))
	mid.Manager().Mount(r)

	r.GET("/ws", ws.HandleWS)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "connections": conns.Count(), "online": registry.Len()})
	})
	mentor.NewHandler(messages, connections).Register(r.Group("/api"))
	presence.NewHandler(presence.NewQuery(registry)).Register(r.Group("/api/websocket"))

	srv := &http.Server{Addr: cfg.HTTP.Addr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("[HTTP] listening", zap.String("addr", cfg.HTTP.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("[boot] shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	// websocket 连接被 hijack，Shutdown 不会等它们，先主动关闭
	ws.Shutdown()
	return srv.Shutdown(sctx)
}
