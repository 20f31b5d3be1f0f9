package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type LogConfig struct {
	Level string
}

type APIConfig struct {
	BaseURL        string
	Timeout        time.Duration
	RefreshTimeout time.Duration
}

type SessionConfig struct {
	// Store is "memory", "file" or "redis".
	Store    string
	Path     string
	RedisKey string
	TTL      time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type PostgresConfig struct {
	DSN             string
	MaxOpen         int
	MaxIdle         int
	ConnMaxLifetime time.Duration
}

type StorageConfig struct {
	Enabled       bool
	Endpoint      string
	AccessKey     string
	SecretKey     string
	BucketImports string
	UseSSL        bool
	Region        string
}

type ReceiptsConfig struct {
	Path string
}

type WorkerConfig struct {
	Stream        string
	Group         string
	Consumer      string
	ClaimInterval time.Duration
	MaxDeliveries int
}

type SchedulerConfig struct {
	Enabled   bool
	CloseSpec string
}

type HTTPConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type SecurityConfig struct {
	JWTAccessSecret string
	JWTAccessTTL    time.Duration
	JWTRefreshTTL   time.Duration
}

type SeedUser struct {
	Email    string
	Password string
	FullName string
	Role     string
}

type DevServerConfig struct {
	HTTP             HTTPConfig
	Security         SecurityConfig
	AllowCORSOrigins []string
	SeedUsers        []SeedUser
}

type AppConfig struct {
	Environment string
	Log         LogConfig
	API         APIConfig
	Session     SessionConfig
	Redis       RedisConfig
	Postgres    PostgresConfig
	Storage     StorageConfig
	Receipts    ReceiptsConfig
	Worker      WorkerConfig
	Scheduler   SchedulerConfig
	DevServer   DevServerConfig
}

func Load() (*AppConfig, error) {
	return LoadFrom("")
}

// LoadFrom reads an explicit config file when path is set, otherwise searches
// the default locations. A missing default file is not an error. A .env file
// in the working directory is loaded into the environment first; variables
// already set win.
func LoadFrom(path string) (*AppConfig, error) {
	_ = godotenv.Load()

	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("console")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("../config")
	}

	v.SetEnvPrefix("VOTE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("log.level", "")

	v.SetDefault("api.baseurl", "http://localhost:8080/api/v1")
	v.SetDefault("api.timeout", "15s")
	v.SetDefault("api.refreshtimeout", "10s")

	v.SetDefault("session.store", "file")
	v.SetDefault("session.path", ".vote-session.json")
	v.SetDefault("session.rediskey", "vote:console:session")
	v.SetDefault("session.ttl", "720h")

	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("postgres.maxopen", 10)
	v.SetDefault("postgres.maxidle", 2)
	v.SetDefault("postgres.connmaxlifetime", "30m")

	v.SetDefault("storage.enabled", false)
	v.SetDefault("storage.bucketimports", "vote-imports")
	v.SetDefault("storage.usessl", false)
	v.SetDefault("storage.region", "us-east-1")

	v.SetDefault("receipts.path", "receipts.db")

	v.SetDefault("worker.stream", "vote:tasks")
	v.SetDefault("worker.group", "vote-workers")
	v.SetDefault("worker.consumer", "worker-1")
	v.SetDefault("worker.claiminterval", "30s")
	v.SetDefault("worker.maxdeliveries", 10)

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.closespec", "0 */5 * * * *")

	v.SetDefault("devserver.http.host", "127.0.0.1")
	v.SetDefault("devserver.http.port", 8080)
	v.SetDefault("devserver.http.readtimeout", "10s")
	v.SetDefault("devserver.http.writetimeout", "15s")
	v.SetDefault("devserver.http.idletimeout", "60s")

	v.SetDefault("devserver.security.jwtaccessttl", "15m")
	v.SetDefault("devserver.security.jwtrefreshttl", "720h") // 30 days
}
