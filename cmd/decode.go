package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"springlink/config"
	"springlink/core/catalog"
	"springlink/core/node"

	"github.com/spf13/cobra"
)

var decodeNodeKey string

var decodeCmd = &cobra.Command{
	Use:   "decode <track-token>",
	Short: "解码曲目令牌",
	Long:  `把不透明的曲目令牌交给音频后端节点解码，打印曲目元数据。用于排查令牌问题。`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()
		entries, err := config.LoadNodes(cfg.NodesFile)
		if err != nil {
			log.Fatalf("节点配置加载失败: %v", err)
		}

		var target *config.NodeEntry
		for i := range entries {
			if decodeNodeKey == "" || entries[i].Identifier == decodeNodeKey {
				target = &entries[i]
				break
			}
		}
		if target == nil {
			log.Fatalf("找不到节点: %s", decodeNodeKey)
		}

		client := catalog.NewClient(time.Duration(cfg.RequestTimeout) * time.Second)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		info, err := client.Decode(ctx, node.Config{
			Identifier: target.Identifier,
			Host:       target.Host,
			Port:       target.Port,
			Password:   target.Password,
			Secure:     target.Secure,
		}, args[0])
		if err != nil {
			log.Fatalf("解码失败: %v", err)
		}
		if info == nil {
			log.Fatal("节点无法解码该令牌")
		}

		out, _ := json.MarshalIndent(info, "", "  ")
		fmt.Println(string(out))
	},
}

func init() {
	decodeCmd.Flags().StringVar(&decodeNodeKey, "node", "", "节点 identifier，默认取配置文件第一个")
	rootCmd.AddCommand(decodeCmd)
}
