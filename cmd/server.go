package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"basemusic/logger"
	"basemusic/server"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "启动 basemusic 服务器",
	Long:  `启动 HTTP 服务器，提供播放器 API、WebSocket 事件流和 miniapp manifest`,
	Run:   runServer,
}

func runServer(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting basemusic server",
		logger.String("addr", cfg.ListenAddr),
		logger.String("storage", cfg.StorageBackend),
		logger.String("audioSource", cfg.AudioSource))
	if err := server.Start(ctx, cfg); err != nil {
		logger.Fatal("server stopped", logger.ErrorField(err))
	}
	logger.Info("server stopped")
}

func init() {
	serverCmd.Flags().StringVar(&listenAddr, "addr", "", "listen address, overrides LISTEN_ADDR")
	serverCmd.PreRun = func(cmd *cobra.Command, args []string) {
		if listenAddr != "" {
			cfg.ListenAddr = listenAddr
		}
	}
	rootCmd.AddCommand(serverCmd)
}

var listenAddr string
