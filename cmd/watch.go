package cmd

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"mediabridge/cache"
	"mediabridge/logger"

	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "订阅其他 mediabridge 进程通过 Redis 发布的会话快照",
	Long:  `不访问本机媒体会话，只在收到 media_updated 事件后从 Redis 读取最近一次轮询结果并输出`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cache.ConnectRedis(cfg); err != nil {
			return err
		}
		defer cache.CloseRedis()

		store := cache.NewMediaCache(cache.RedisClient, cfg.PlayerInfoTTL, cfg.SnapshotTTL)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		events, cancel, err := store.SubscribeUpdated(ctx)
		if err != nil {
			return err
		}
		defer cancel()

		enc := json.NewEncoder(os.Stdout)
		for {
			select {
			case <-ctx.Done():
				return nil
			case _, ok := <-events:
				if !ok {
					return nil
				}
				snapshots, err := store.LastSnapshots(ctx)
				if err != nil {
					logger.Warn("failed to read shared snapshots", logger.ErrorField(err))
					continue
				}
				if err := enc.Encode(snapshots); err != nil {
					return err
				}
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
