package cmd

import (
	"swarabox/server"

	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the SwaraBox HTTP server",
	Long:  `Start the SwaraBox API server: song catalog, likes, comments and media serving.`,
	Run: func(cmd *cobra.Command, args []string) {
		server.Start()
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
