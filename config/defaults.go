// =============================================================================
// 📦 intake 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:    DefaultServerConfig(),
		Storage:   DefaultStorageConfig(),
		Index:     DefaultIndexConfig(),
		Redis:     DefaultRedisConfig(),
		Session:   DefaultSessionConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		GatewayPort:     8080,
		MetricsPort:     9091,
		ReadTimeout:     30 * time.Second,
		ShutdownTimeout: 15 * time.Second,
	}
}

// DefaultStorageConfig 返回默认存储配置
func DefaultStorageConfig() StorageConfig {
	return StorageConfig{
		DataRoot:   "./data",
		UUIDSuffix: false,
	}
}

// DefaultIndexConfig 返回默认台账配置
func DefaultIndexConfig() IndexConfig {
	return IndexConfig{
		Enabled: false,
		Path:    "./data/index.db",
	}
}

// DefaultRedisConfig 返回默认 Redis 配置
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Enabled:  false,
		Addr:     "localhost:6379",
		Password: "",
		DB:       0,
		SlotTTL:  30 * time.Minute,
	}
}

// DefaultSessionConfig 返回默认会话配置
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		QueueDepth:  32,
		IdleTimeout: 10 * time.Minute,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:       "info",
		Format:      "json",
		OutputPaths: []string{"stdout"},
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "intake",
		Environment:  "development",
		SampleRate:   1.0,
	}
}
