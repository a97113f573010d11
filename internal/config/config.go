// Package config loads typed configuration from the environment (and an
// optional YAML file) via viper, the same library the teacher uses.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the fully populated, typed configuration for one pod.
type Config struct {
	Server            ServerConfig
	MessageBroker     MessageBrokerConfig
	ChatHistoryWriter ChatHistoryWriterConfig
	DatabaseRetry     DatabaseRetryConfig
	RateLimit         RateLimitConfig
	Presence          PresenceConfig
	ColumnarStore     ColumnarStoreConfig
	KeyValueStore     KeyValueStoreConfig
	WebSocket         WebSocketConfig
}

// ServerConfig controls the HTTP and gRPC listeners.
type ServerConfig struct {
	HTTPPort int
	GRPCPort int
}

// MessageBrokerConfig configures the event producer and broadcast
// consumer's shared log client.
type MessageBrokerConfig struct {
	BootstrapServers             []string
	Topic                        string
	Partitions                   int
	BroadcastConsumerGroupPrefix string
	UseInMemory                  bool
}

// ChatHistoryWriterConfig configures the history writer.
type ChatHistoryWriterConfig struct {
	ConsumerGroupID    string
	MaxPayloadLogBytes int
}

// DatabaseRetryConfig configures the history writer's append retry policy.
type DatabaseRetryConfig struct {
	MaxAttempts int
	BaseDelayMs int
	MaxDelayMs  int
	JitterMs    int
}

// RateLimitConfig configures the rate limiter.
type RateLimitConfig struct {
	Threshold     int
	WindowSeconds int
}

// PresenceConfig configures the presence registry.
type PresenceConfig struct {
	TTLSeconds int
}

// ColumnarStoreConfig configures the history writer and reader's backing
// store connection.
type ColumnarStoreConfig struct {
	DSN string
}

// KeyValueStoreConfig configures the presence registry and rate limiter's
// backing store connection.
type KeyValueStoreConfig struct {
	ConnectionString string
}

// WebSocketConfig configures the reference transport.
type WebSocketConfig struct {
	AllowedOrigins []string
	MaxConnections int64
}

const envPrefix = "CHATIFY"

// Load reads configuration from environment variables prefixed CHATIFY_
// and, if present, a YAML file named chatify.yaml on the current
// directory or /etc/chatify, with environment variables taking
// precedence.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("chatify")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/chatify")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	setDefaults(v)

	cfg := &Config{
		Server: ServerConfig{
			HTTPPort: v.GetInt("server.httpport"),
			GRPCPort: v.GetInt("server.grpcport"),
		},
		MessageBroker: MessageBrokerConfig{
			BootstrapServers:             v.GetStringSlice("messagebroker.bootstrapservers"),
			Topic:                        v.GetString("messagebroker.topic"),
			Partitions:                   v.GetInt("messagebroker.partitions"),
			BroadcastConsumerGroupPrefix: v.GetString("messagebroker.broadcastconsumergroupprefix"),
			UseInMemory:                  v.GetBool("messagebroker.useinmemory"),
		},
		ChatHistoryWriter: ChatHistoryWriterConfig{
			ConsumerGroupID:    v.GetString("chathistorywriter.consumergroupid"),
			MaxPayloadLogBytes: v.GetInt("chathistorywriter.maxpayloadlogbytes"),
		},
		DatabaseRetry: DatabaseRetryConfig{
			MaxAttempts: v.GetInt("databaseretry.maxattempts"),
			BaseDelayMs: v.GetInt("databaseretry.basedelayms"),
			MaxDelayMs:  v.GetInt("databaseretry.maxdelayms"),
			JitterMs:    v.GetInt("databaseretry.jitterms"),
		},
		RateLimit: RateLimitConfig{
			Threshold:     v.GetInt("ratelimit.threshold"),
			WindowSeconds: v.GetInt("ratelimit.windowseconds"),
		},
		Presence: PresenceConfig{
			TTLSeconds: v.GetInt("presence.ttlseconds"),
		},
		ColumnarStore: ColumnarStoreConfig{
			DSN: v.GetString("columnarstore.dsn"),
		},
		KeyValueStore: KeyValueStoreConfig{
			ConnectionString: v.GetString("keyvaluestore.connectionstring"),
		},
		WebSocket: WebSocketConfig{
			AllowedOrigins: v.GetStringSlice("websocket.allowedorigins"),
			MaxConnections: v.GetInt64("websocket.maxconnections"),
		},
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.httpport", 8080)
	v.SetDefault("server.grpcport", 9090)

	v.SetDefault("messagebroker.bootstrapservers", []string{"localhost:9092"})
	v.SetDefault("messagebroker.topic", "chat-events")
	v.SetDefault("messagebroker.partitions", 6)
	v.SetDefault("messagebroker.broadcastconsumergroupprefix", "chatify-broadcast-")
	v.SetDefault("messagebroker.useinmemory", false)

	v.SetDefault("chathistorywriter.consumergroupid", "chatify-chat-history-writer")
	v.SetDefault("chathistorywriter.maxpayloadlogbytes", 256)

	v.SetDefault("databaseretry.maxattempts", 5)
	v.SetDefault("databaseretry.basedelayms", 100)
	v.SetDefault("databaseretry.maxdelayms", 5000)
	v.SetDefault("databaseretry.jitterms", 100)

	v.SetDefault("ratelimit.threshold", 100)
	v.SetDefault("ratelimit.windowseconds", 60)

	v.SetDefault("presence.ttlseconds", 60)

	v.SetDefault("columnarstore.dsn", "postgres://localhost:5432/chatify?sslmode=disable")
	v.SetDefault("keyvaluestore.connectionstring", "localhost:6379")

	v.SetDefault("websocket.allowedorigins", []string{})
	v.SetDefault("websocket.maxconnections", int64(100000))
}

// RetryBaseDelay returns DatabaseRetry.BaseDelayMs as a time.Duration.
func (c DatabaseRetryConfig) RetryBaseDelay() time.Duration {
	return time.Duration(c.BaseDelayMs) * time.Millisecond
}

// RetryMaxDelay returns DatabaseRetry.MaxDelayMs as a time.Duration.
func (c DatabaseRetryConfig) RetryMaxDelay() time.Duration {
	return time.Duration(c.MaxDelayMs) * time.Millisecond
}

// RetryJitter returns DatabaseRetry.JitterMs as a time.Duration.
func (c DatabaseRetryConfig) RetryJitter() time.Duration {
	return time.Duration(c.JitterMs) * time.Millisecond
}
