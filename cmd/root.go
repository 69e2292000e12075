package cmd

import (
	"fmt"
	"io"
	"os"

	"mediabridge/cache"
	"mediabridge/config"
	"mediabridge/core/auth"
	"mediabridge/core/media"
	_ "mediabridge/core/media/mpris" // registers the "mpris" backend
	"mediabridge/logger"

	"github.com/spf13/cobra"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "mediabridge",
	Short: "mediabridge exposes the desktop's media sessions to widgets.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg = config.Load()
		logger.InitLogger(logger.Config{
			Level:      logger.LogLevel(cfg.LogLevel),
			OutputPath: cfg.LogPath,
			MaxSize:    cfg.LogMaxSize,
			MaxBackups: cfg.LogMaxBackups,
			MaxAge:     cfg.LogMaxAge,
			Compress:   true,
		})
		auth.SetSecret(cfg.APISecret)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveCmd.RunE(cmd, args)
	},
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// bridgeEnv is a bridge together with what must be released after it.
type bridgeEnv struct {
	bridge   *media.Bridge
	platform media.Platform
	store    *cache.MediaCache
}

// openBridge opens the configured backend and, when enabled, the Redis
// cache shared by bridge processes.
func openBridge() (*bridgeEnv, error) {
	platform, err := media.Backends.Open(cfg.MediaBackend, media.BackendConfig{
		ThumbnailMaxBytes: cfg.ThumbnailMaxBytes,
		IconSize:          cfg.IconSize,
		FetchTimeout:      cfg.FetchTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("open media backend: %w", err)
	}

	env := &bridgeEnv{platform: platform}
	opts := media.Options{
		FetchTimeout:  cfg.FetchTimeout,
		ActionTimeout: cfg.ActionTimeout,
	}

	if cfg.RedisEnabled {
		if err := cache.ConnectRedis(cfg); err != nil {
			logger.Warn("Redis unavailable, running without shared cache", logger.ErrorField(err))
		} else {
			env.store = cache.NewMediaCache(cache.RedisClient, cfg.PlayerInfoTTL, cfg.SnapshotTTL)
			opts.InfoCache = env.store
		}
	}

	env.bridge = media.New(platform, opts)
	return env, nil
}

func (e *bridgeEnv) Close() {
	e.bridge.Close()
	if c, ok := e.platform.(io.Closer); ok {
		if err := c.Close(); err != nil {
			logger.Warn("failed to close media backend", logger.ErrorField(err))
		}
	}
	if e.store != nil {
		if err := cache.CloseRedis(); err != nil {
			logger.Warn("关闭Redis连接时发生错误", logger.ErrorField(err))
		}
	}
}
