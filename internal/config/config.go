package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "storefront"

type Config struct {
	HTTP       HTTPConfig       `mapstructure:"http"`
	CORS       CORSConfig       `mapstructure:"cors"`
	Log        LogConfig        `mapstructure:"log"`
	Saleor     SaleorConfig     `mapstructure:"saleor"`
	Storefront StorefrontConfig `mapstructure:"storefront"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Session    SessionConfig    `mapstructure:"session"`
}

type HTTPConfig struct {
	Port               string        `mapstructure:"port"`
	ReadTimeout        time.Duration `mapstructure:"readTimeout"`
	WriteTimeout       time.Duration `mapstructure:"writeTimeout"`
	RequestTimeout     time.Duration `mapstructure:"requestTimeout"`
	ShutdownTimeout    time.Duration `mapstructure:"shutdownTimeout"`
	MaxRequestBodySize int64         `mapstructure:"maxRequestBodySize"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"origins"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

type SaleorConfig struct {
	APIURL             string        `mapstructure:"apiUrl"`
	Timeout            time.Duration `mapstructure:"timeout"`
	RetryCount         int           `mapstructure:"retryCount"`
	BreakerMaxFailures uint32        `mapstructure:"breakerMaxFailures"`
	BreakerOpenTimeout time.Duration `mapstructure:"breakerOpenTimeout"`
}

type StorefrontConfig struct {
	URL            string   `mapstructure:"url"`
	DefaultChannel string   `mapstructure:"defaultChannel"`
	Gateways       []string `mapstructure:"gateways"`
}

type RedisConfig struct {
	Addr              string        `mapstructure:"addr"`
	Password          string        `mapstructure:"password"`
	DB                int           `mapstructure:"db"`
	CompletionLockTTL time.Duration `mapstructure:"completionLockTTL"`
	CompletedOrderTTL time.Duration `mapstructure:"completedOrderTTL"`
}

type DatabaseConfig struct {
	Type           string `mapstructure:"type"`
	Path           string `mapstructure:"path"`
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	Name           string `mapstructure:"name"`
	MigrationsPath string `mapstructure:"migrationsPath"`
}

type KafkaConfig struct {
	Brokers      []string      `mapstructure:"brokers"`
	Topic        string        `mapstructure:"topic"`
	PollInterval time.Duration `mapstructure:"pollInterval"`
}

type SessionConfig struct {
	IdleTTL       time.Duration `mapstructure:"idleTTL"`
	SweepInterval time.Duration `mapstructure:"sweepInterval"`
	SubmitWait    time.Duration `mapstructure:"submitWait"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.port", "8080")
	v.SetDefault("http.readTimeout", 10*time.Second)
	v.SetDefault("http.writeTimeout", 30*time.Second)
	v.SetDefault("http.requestTimeout", 25*time.Second)
	v.SetDefault("http.shutdownTimeout", 10*time.Second)
	v.SetDefault("http.maxRequestBodySize", 1<<20) // 1MB

	v.SetDefault("cors.origins", []string{"http://localhost:3000"})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)

	v.SetDefault("saleor.apiUrl", "http://localhost:8000/graphql/")
	v.SetDefault("saleor.timeout", 10*time.Second)
	v.SetDefault("saleor.retryCount", 2)
	v.SetDefault("saleor.breakerMaxFailures", 5)
	v.SetDefault("saleor.breakerOpenTimeout", 30*time.Second)

	v.SetDefault("storefront.url", "http://localhost:3000")
	v.SetDefault("storefront.defaultChannel", "default-channel")
	v.SetDefault("storefront.gateways", []string{"app.saleor.adyen", "app.saleor.stripe", "app.saleor.payfast"})

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.completionLockTTL", 2*time.Minute)
	v.SetDefault("redis.completedOrderTTL", 24*time.Hour)

	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.path", "storefront.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.name", "storefront")
	v.SetDefault("database.migrationsPath", "./internal/repository/migrations")

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "storefront-checkout-events")
	v.SetDefault("kafka.pollInterval", time.Second)

	v.SetDefault("session.idleTTL", 30*time.Minute)
	v.SetDefault("session.sweepInterval", time.Minute)
	v.SetDefault("session.submitWait", 20*time.Second)
}

// Load reads configuration from defaults, an optional YAML file and
// STOREFRONT_* environment variables, in increasing order of precedence.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", cfgFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if cfg.Saleor.APIURL == "" {
		return nil, ErrMissingAPIURL
	}
	return &cfg, nil
}
