package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"basemusic/db"
	"basemusic/storage"
)

var redisCmd = &cobra.Command{
	Use:   "redis",
	Short: "Redis连接测试",
	Long:  `测试Redis连接是否成功，并进行基本读写操作。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("Redis配置: %s:%s, DB: %d\n", cfg.RedisHost, cfg.RedisPort, cfg.RedisDB)

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()

		client, err := db.ConnectRedis(ctx, cfg)
		if err != nil {
			return fmt.Errorf("无法连接到Redis: %w", err)
		}
		defer client.Close()
		fmt.Println("Redis连接成功！")

		if err := db.CheckRedis(ctx, client); err != nil {
			return fmt.Errorf("Redis操作测试失败: %w", err)
		}
		fmt.Println("Redis基本操作测试成功！")

		backend := storage.NewRedisBackend(client, cfg.KeyPrefix)
		for _, key := range []string{storage.KeyPlaylists, storage.KeyHistory, storage.KeyPoints} {
			data, err := backend.Get(ctx, key)
			switch {
			case errors.Is(err, storage.ErrNotFound):
				fmt.Printf("  %-26s 未保存\n", key)
			case err != nil:
				return err
			default:
				fmt.Printf("  %-26s %d bytes\n", key, len(data))
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(redisCmd)
}
