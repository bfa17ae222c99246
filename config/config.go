package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type (
	Config struct {
		HTTP            HTTP
		Log             Log
		PG              PG
		S3              S3
		Redis           Redis
		Kafka           Kafka
		KafkaController KafkaController
		Quota           Quota
		Presence        Presence
		Presign         Presign
		Notify          Notify
		Swagger         Swagger
	}

	HTTP struct {
		Port           string `env:"HTTP_PORT,required"`
		UsePreforkMode bool   `env:"HTTP_USE_PREFORK_MODE" envDefault:"false"`
	}

	Log struct {
		Level string `env:"LOG_LEVEL,required"`
	}

	PG struct {
		PoolMax int    `env:"PG_POOL_MAX,required"`
		URL     string `env:"PG_URL,required"`
	}

	S3 struct {
		Endpoint       string        `env:"S3_ENDPOINT,required"`
		AccessKey      string        `env:"S3_ACCESS_KEY,required"`
		SecretKey      string        `env:"S3_SECRET_KEY,required"`
		Bucket         string        `env:"S3_BUCKET,required"`
		CfgLoadTimeout time.Duration `env:"S3_LOAD_CFG_TIMEOUT" envDefault:"10s"`
	}

	Redis struct {
		Addr     string `env:"REDIS_ADDR,required"`
		Password string `env:"REDIS_PASSWORD" envDefault:""`
		DB       int    `env:"REDIS_DB" envDefault:"0"`
	}

	Kafka struct {
		Brokers []string `env:"KAFKA_BROKERS,required"`
		GroupID string   `env:"KAFKA_GROUP_ID,required"`
		// ResultsTopic - единственная очередь ответов от всех воркеров
		ResultsTopic        string `env:"KAFKA_RESULTS_TOPIC,required"`
		DispatchTopicPrefix string `env:"KAFKA_DISPATCH_TOPIC_PREFIX" envDefault:"pipeline"`
	}

	KafkaController struct {
		CommitTimeout   time.Duration `env:"KAFKA_CONTROLLER_COMMIT_TIMEOUT" envDefault:"2s"`
		ProcessTimeout  time.Duration `env:"KAFKA_CONTROLLER_PROCESS_TIMEOUT" envDefault:"15s"`
		ShutdownTimeout time.Duration `env:"KAFKA_CONTROLLER_SHUTDOWN_TIMEOUT" envDefault:"5s"`
		Workers         int           `env:"KAFKA_CONTROLLER_WORKERS" envDefault:"8"`
	}

	Quota struct {
		BaseURL string        `env:"QUOTA_BASE_URL,required"`
		Timeout time.Duration `env:"QUOTA_TIMEOUT" envDefault:"5s"`
	}

	Presence struct {
		Window      time.Duration `env:"PRESENCE_WINDOW" envDefault:"30s"`
		EditorLimit int           `env:"PRESENCE_EDITOR_LIMIT" envDefault:"2"`
	}

	Presign struct {
		TTL time.Duration `env:"PRESIGN_TTL" envDefault:"15m"`
	}

	Notify struct {
		ChannelPrefix string `env:"NOTIFY_CHANNEL_PREFIX" envDefault:"notify"`
	}

	Swagger struct {
		Enabled bool `env:"SWAGGER_ENABLED" envDefault:"false"`
	}
)

func New() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}

	return cfg, nil
}
