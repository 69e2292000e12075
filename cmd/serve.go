package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"mediabridge/server"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "启动媒体会话服务",
	Long:  `启动本地 HTTP/WebSocket 服务：GET /api/media 轮询会话，POST /api/media/action 控制播放，/ws/media 推送 media_updated 事件`,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := openBridge()
		if err != nil {
			return err
		}
		defer env.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var store server.SnapshotStore
		if env.store != nil {
			store = env.store
		}
		return server.New(cfg.ServerAddr, env.bridge, store).Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
