package config

import "time"

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server:    DefaultServerConfig(),
		Database:  DefaultDatabaseConfig(),
		Redis:     DefaultRedisConfig(),
		Retrieval: DefaultRetrievalConfig(),
		LLM:       DefaultLLMConfig(),
		Log:       DefaultLogConfig(),
	}
}

// DefaultServerConfig returns the default server configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    90 * time.Second,
		RequestTimeout:  60 * time.Second,
		ShutdownTimeout: 15 * time.Second,
	}
}

// DefaultDatabaseConfig returns the default database configuration.
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:          "postgres",
		Host:            "localhost",
		Port:            5432,
		User:            "vakeel",
		Password:        "",
		Name:            "vakeel",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// DefaultRedisConfig returns the default Redis configuration.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Enabled:      false,
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
		ResultTTL:    5 * time.Minute,
	}
}

// DefaultRetrievalConfig returns the default retrieval configuration.
func DefaultRetrievalConfig() RetrievalConfig {
	return RetrievalConfig{
		Table:            "legal_document_chunks",
		KBLabel:          "legal_chunks",
		TopK:             5,
		AliasSampleLimit: 5000,
		AliasThreshold:   85.0,
		FuzzyScanLimit:   20000,
		Debug:            false,
	}
}

// DefaultLLMConfig returns the default LLM configuration.
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		BaseURL:     "https://api.openai.com/v1",
		APIKey:      "",
		Model:       "gpt-4o-mini",
		Temperature: 0.3,
		MaxTokens:   700,
		Timeout:     45 * time.Second,
		RateLimit:   5,
		RateBurst:   10,
	}
}

// DefaultLogConfig returns the default logging configuration.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}
