package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Postgres   PostgresConfig   `mapstructure:"postgres"`
	Redis      RedisConfig      `mapstructure:"redis"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	RateLimit  RateLimitConfig  `mapstructure:"ratelimit"`
	WorkerPool WorkerPoolConfig `mapstructure:"worker_pool"`
	Websocket  WebsocketConfig  `mapstructure:"websocket"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
}

type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type PostgresConfig struct {
	Host         string `mapstructure:"host"`
	Port         string `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	DBName       string `mapstructure:"dbname"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type RedisConfig struct {
	Host         string `mapstructure:"host"`
	Port         string `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
}

type JWTConfig struct {
	Secret       string `mapstructure:"secret"`
	ExpireHours  int    `mapstructure:"expire_hours"`
	RefreshHours int    `mapstructure:"refresh_hours"`
}

type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"` // json | console
	Output   string `mapstructure:"output"` // stdout | file
	FilePath string `mapstructure:"file_path"`
}

type RateLimitConfig struct {
	QPS            int64 `mapstructure:"qps"`
	Burst          int64 `mapstructure:"burst"`
	MaxConcurrency int   `mapstructure:"max_concurrency"`
}

type WorkerPoolConfig struct {
	Size      int `mapstructure:"size"`
	QueueSize int `mapstructure:"queue_size"`
}

type WebsocketConfig struct {
	// 应用层心跳间隔（秒），读超时为其两倍
	HeartbeatInterval int `mapstructure:"heartbeat_interval"`
	// 单连接发送缓冲区大小（条）
	SendBufferSize int `mapstructure:"send_buffer_size"`
	// 单帧最大字节数
	MaxMessageSize int64 `mapstructure:"max_message_size"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	GroupID string   `mapstructure:"group_id"`
	NodeID  string   `mapstructure:"node_id"`
}

func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}
	applyDefaults(&config)
	return &config, nil
}

func applyDefaults(c *Config) {
	if c.Websocket.HeartbeatInterval <= 0 {
		c.Websocket.HeartbeatInterval = 30
	}
	if c.Websocket.SendBufferSize <= 0 {
		c.Websocket.SendBufferSize = 256
	}
	if c.Websocket.MaxMessageSize <= 0 {
		c.Websocket.MaxMessageSize = 64 * 1024
	}
	if c.JWT.ExpireHours <= 0 {
		c.JWT.ExpireHours = 24
	}
	if c.JWT.RefreshHours <= 0 {
		c.JWT.RefreshHours = 72
	}
	if c.WorkerPool.Size <= 0 {
		c.WorkerPool.Size = 32
	}
	if c.WorkerPool.QueueSize <= 0 {
		c.WorkerPool.QueueSize = 1024
	}
}
