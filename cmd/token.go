package cmd

import (
	"fmt"
	"log"
	"time"

	"springlink/config"
	"springlink/core/auth"

	"github.com/spf13/cobra"
)

var tokenTTL time.Duration

var tokenCmd = &cobra.Command{
	Use:   "token <subject>",
	Short: "签发网关访问令牌",
	Long:  `用 JWT_SECRET 为指定主体签发一个控制网关的 Bearer 令牌。`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()
		auth.Init(cfg.JWTSecret)
		if !auth.Enabled() {
			log.Fatal("JWT_SECRET 未配置，无法签发令牌")
		}

		token, err := auth.GenerateToken(args[0], tokenTTL)
		if err != nil {
			log.Fatalf("令牌签发失败: %v", err)
		}
		fmt.Println(token)
	},
}

func init() {
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "令牌有效期")
	rootCmd.AddCommand(tokenCmd)
}
