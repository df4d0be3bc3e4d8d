package cmd

import (
	"swarabox/config"
	"swarabox/db"
	"swarabox/logger"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the database schema",
	Long:  `Connect to MySQL and create the SwaraBox tables if they don't exist.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()
		logger.InitLogger(logger.Config{Level: logger.LogLevel(cfg.LogLevel)})

		conn, err := db.Connect(cfg)
		if err != nil {
			logger.Fatal("failed to connect to database", logger.ErrorField(err))
		}
		defer conn.Close()

		if err := db.InitSchema(conn); err != nil {
			logger.Fatal("failed to initialize database schema", logger.ErrorField(err))
		}
		logger.Info("migration completed")
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
