package cmd

import (
	"fmt"
	"os"

	"springlink/server"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "springlink",
	Short: "SpringLink is a control gateway for remote audio rendering backends.",
	Run: func(cmd *cobra.Command, args []string) {
		// 不带子命令时直接起网关
		server.Start()
	},
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
