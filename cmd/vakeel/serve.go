package main

import (
	"flag"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/vakeel/vakeel/chat"
	"github.com/vakeel/vakeel/internal/cache"
	"github.com/vakeel/vakeel/internal/database"
	"github.com/vakeel/vakeel/internal/metrics"
	"github.com/vakeel/vakeel/internal/server"
	"github.com/vakeel/vakeel/llm"
	"github.com/vakeel/vakeel/retrieval"
)

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	fs.Parse(args)

	cfg := loadConfig(*configPath)
	logger := initLogger(cfg.Log)
	defer logger.Sync()

	logger.Info("starting vakeel",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
	)

	pool, err := database.Open(database.Config{
		Driver: cfg.Database.Driver,
		DSN:    cfg.Database.DSN(),
		Pool: database.PoolConfig{
			MaxOpenConns:        cfg.Database.MaxOpenConns,
			MaxIdleConns:        cfg.Database.MaxIdleConns,
			ConnMaxLifetime:     cfg.Database.ConnMaxLifetime,
			ConnMaxIdleTime:     10 * time.Minute,
			HealthCheckInterval: 30 * time.Second,
		},
	}, logger)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer pool.Close()

	collector := metrics.NewCollector("vakeel", nil, logger)

	store, err := retrieval.NewGormStore(pool.DB(), cfg.Retrieval.Table, logger)
	if err != nil {
		logger.Fatal("failed to create chunk store", zap.Error(err))
	}

	retriever := retrieval.New(store, retrieval.Config{
		KBLabel: cfg.Retrieval.KBLabel,
		Alias: retrieval.AliasConfig{
			SampleLimit: cfg.Retrieval.AliasSampleLimit,
			Threshold:   cfg.Retrieval.AliasThreshold,
		},
		FuzzyScanLimit: cfg.Retrieval.FuzzyScanLimit,
		Debug:          cfg.Retrieval.Debug,
	}, logger, retrieval.WithObserver(collector))

	client := llm.NewClient(llm.Config{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     cfg.LLM.Timeout,
		RateLimit:   cfg.LLM.RateLimit,
		RateBurst:   cfg.LLM.RateBurst,
	}, logger)
	provider := llm.NewSafeProvider(client, logger)

	var counter chat.TokenCounter = chat.HeuristicCounter{}
	if tc, err := chat.NewTikTokenCounter(cfg.LLM.Model); err == nil {
		counter = tc
	} else {
		logger.Warn("tiktoken unavailable, using heuristic token counter", zap.Error(err))
	}
	prompts := chat.NewPromptBuilder(counter, 0)

	history := chat.NewHistoryStore(pool, logger)

	chatOpts := []chat.Option{chat.WithTopK(cfg.Retrieval.TopK)}
	routerOpts := []server.RouterOption{
		server.WithRequestTimeout(cfg.Server.RequestTimeout),
		server.WithHealthCheck("database", pool),
	}

	if cfg.Redis.Enabled {
		manager, err := cache.NewManager(cache.Config{
			Addr:                cfg.Redis.Addr,
			Password:            cfg.Redis.Password,
			DB:                  cfg.Redis.DB,
			DefaultTTL:          cfg.Redis.ResultTTL,
			MaxRetries:          3,
			PoolSize:            cfg.Redis.PoolSize,
			MinIdleConns:        cfg.Redis.MinIdleConns,
			HealthCheckInterval: 30 * time.Second,
		}, logger)
		if err != nil {
			logger.Warn("redis unavailable, result caching disabled", zap.Error(err))
		} else {
			defer manager.Close()
			resultCache := cache.NewResultCache(manager, cfg.Retrieval.KBLabel, cfg.Redis.ResultTTL, collector, logger)
			chatOpts = append(chatOpts, chat.WithResultCache(resultCache))
			routerOpts = append(routerOpts, server.WithHealthCheck("redis", manager))
		}
	}

	service := chat.NewService(retriever, provider, history, prompts, logger, chatOpts...)
	router := server.NewRouter(service, collector, logger, routerOpts...)

	serverCfg := server.DefaultConfig()
	serverCfg.Addr = fmt.Sprintf(":%d", cfg.Server.HTTPPort)
	if cfg.Server.ReadTimeout > 0 {
		serverCfg.ReadTimeout = cfg.Server.ReadTimeout
	}
	if cfg.Server.WriteTimeout > 0 {
		serverCfg.WriteTimeout = cfg.Server.WriteTimeout
	}
	if cfg.Server.ShutdownTimeout > 0 {
		serverCfg.ShutdownTimeout = cfg.Server.ShutdownTimeout
	}

	manager := server.NewManager(router.Handler(), serverCfg, logger)
	if err := manager.Start(); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}

	manager.WaitForShutdown()
	logger.Info("vakeel stopped")
}
