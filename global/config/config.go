package config

import (
	"os"
	"strings"
	"time"

	"PMentor/tools"
	"PMentor/tools/decode"
	"PMentor/tools/errs"

	"gopkg.in/yaml.v3"
)

const (
	StoreMemory = "memory"
	StoreMongo  = "mongo"
)

type AppConfig struct {
	NodeID   int64          `yaml:"node_id"` // 雪花ID节点
	HTTP     HTTPConfig     `yaml:"http"`
	WS       WSConfig       `yaml:"ws"`
	JWT      JWTConfig      `yaml:"jwt"`
	Store    StoreConfig    `yaml:"store"`
	Mongo    MongoConfig    `yaml:"mongo"`
	Postgres PostgresConfig `yaml:"postgres"`
	Redis    RedisConfig    `yaml:"redis"`
	Nats     NatsConfig     `yaml:"nats"`
	Log      LogConfig      `yaml:"log"`
}

type HTTPConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type WSConfig struct {
	SendBuffer   int           `yaml:"send_buffer"`   // 每连接发送队列长度
	WriteWait    time.Duration `yaml:"write_wait"`    // 单次写超时
	PingInterval time.Duration `yaml:"ping_interval"` // 服务端 ping 周期
	PongWait     time.Duration `yaml:"pong_wait"`     // 超过即判定掉线
	ReadLimit    int64         `yaml:"read_limit"`    // 单帧最大字节
}

type JWTConfig struct {
	Secret string        `yaml:"secret"`
	Alg    string        `yaml:"alg"`
	TTL    time.Duration `yaml:"ttl"`
	Issuer string        `yaml:"issuer"`
}

type StoreConfig struct {
	Driver    string     `yaml:"driver"`
	SeedUsers []SeedUser `yaml:"seed_users"`
}

// SeedUser preloads the in-memory directory.
type SeedUser struct {
	ID    string `yaml:"id"`
	Email string `yaml:"email"`
	Name  string `yaml:"name"`
	Role  string `yaml:"role"`
}

type MongoConfig struct {
	URI         string `yaml:"uri"`
	Database    string `yaml:"database"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	MaxPoolSize int    `yaml:"max_pool_size"`
	MaxRetry    int    `yaml:"max_retry"`
}

type PostgresConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"pool_size"`
	NameTTL  time.Duration `yaml:"name_ttl"` // 显示名缓存
}

type NatsConfig struct {
	Servers       []string      `yaml:"servers"`
	Name          string        `yaml:"name"`
	SubjectPrefix string        `yaml:"subject_prefix"`
	Queue         string        `yaml:"queue"`
	DedupTTL      time.Duration `yaml:"dedup_ttl"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Global holds the loaded configuration; main replaces it at startup.
var Global = Default()

func Default() AppConfig {
	return AppConfig{
		NodeID: 1,
		HTTP: HTTPConfig{
			Addr:           ":8080",
			AllowedOrigins: []string{"*"},
		},
		WS: WSConfig{
			SendBuffer:   256,
			WriteWait:    10 * time.Second,
			PingInterval: 25 * time.Second,
			PongWait:     60 * time.Second,
			ReadLimit:    64 * 1024,
		},
		JWT: JWTConfig{
			Alg: "HS512",
			TTL: 24 * time.Hour,
		},
		Store: StoreConfig{Driver: StoreMemory},
		Mongo: MongoConfig{
			URI:         "mongodb://localhost:27017",
			Database:    "mentor",
			MaxPoolSize: 20,
			MaxRetry:    3,
		},
		Postgres: PostgresConfig{MaxConns: 10},
		Redis: RedisConfig{
			PoolSize: 10,
			NameTTL:  10 * time.Minute,
		},
		Nats: NatsConfig{
			Name:          "mentor-relay",
			SubjectPrefix: "mentor",
			Queue:         "relay",
			DedupTTL:      5 * time.Minute,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load builds the config from defaults, then the yaml file at path (if any),
// then environment overrides, and validates the result.
func Load(path string) (AppConfig, error) {
	cfg := Default()
	if path != "" {
		if err := LoadFile(path, &cfg); err != nil {
			return cfg, err
		}
	}
	ApplyEnv(&cfg)
	return cfg, cfg.Validate()
}

// LoadFile overlays the yaml document at path onto cfg. Keys absent from the
// file keep their current value.
func LoadFile(path string, cfg *AppConfig) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return errs.WrapMsg(err, "read config", "path", path)
	}
	var m map[string]any
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return errs.ErrArgs.WrapMsg("config is not valid yaml", "path", path, "err", err)
	}
	if len(m) == 0 {
		return nil
	}
	if err := decode.Into(m, cfg, decode.Options{WeaklyTypedInput: true, TagName: "yaml"}); err != nil {
		return errs.ErrArgs.WrapMsg("config does not match schema", "path", path, "err", err)
	}
	return nil
}

// ApplyEnv lets deployments override the common knobs without a file.
func ApplyEnv(cfg *AppConfig) {
	cfg.NodeID = int64(tools.GetEnvInt("NODE_ID", int(cfg.NodeID)))
	cfg.HTTP.Addr = tools.GetEnv("HTTP_ADDR", cfg.HTTP.Addr)
	cfg.HTTP.AllowedOrigins = tools.GetEnvList("ALLOWED_ORIGINS", cfg.HTTP.AllowedOrigins)
	cfg.JWT.Secret = tools.GetEnv("JWT_SECRET", cfg.JWT.Secret)
	cfg.JWT.TTL = tools.GetEnvDuration("JWT_TTL", cfg.JWT.TTL)
	cfg.Log.Level = tools.GetEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Store.Driver = tools.GetEnv("STORE_DRIVER", cfg.Store.Driver)
	cfg.Mongo.URI = tools.GetEnv("MONGO_URI", cfg.Mongo.URI)
	cfg.Mongo.Database = tools.GetEnv("MONGO_DATABASE", cfg.Mongo.Database)
	cfg.Postgres.URL = tools.GetEnv("PG_URL", cfg.Postgres.URL)
	cfg.Redis.Addr = tools.GetEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = tools.GetEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Nats.Servers = tools.GetEnvList("NATS_SERVERS", cfg.Nats.Servers)
}

func (c AppConfig) Validate() error {
	if strings.TrimSpace(c.JWT.Secret) == "" {
		return errs.ErrArgs.WrapMsg("jwt.secret is required")
	}
	switch c.Store.Driver {
	case StoreMemory, StoreMongo:
	default:
		return errs.ErrArgs.WrapMsg("unknown store driver", "driver", c.Store.Driver)
	}
	if c.WS.SendBuffer <= 0 || c.WS.WriteWait <= 0 || c.WS.PingInterval <= 0 {
		return errs.ErrArgs.WrapMsg("ws buffer and timings must be positive")
	}
	if c.WS.PongWait <= c.WS.PingInterval {
		return errs.ErrArgs.WrapMsg("ws.pong_wait must exceed ws.ping_interval")
	}
	return nil
}
