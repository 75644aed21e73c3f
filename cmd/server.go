package cmd

import (
	"springlink/server"

	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "启动控制网关",
	Long:  `启动控制网关：连接音频后端节点，提供会话控制 API 与事件流`,
	Run: func(cmd *cobra.Command, args []string) {
		server.Start()
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
