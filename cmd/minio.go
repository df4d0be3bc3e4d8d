package cmd

import (
	"context"
	"io"
	"strings"
	"time"

	"swarabox/config"
	"swarabox/logger"
	"swarabox/storage"

	"github.com/spf13/cobra"
)

var minioCmd = &cobra.Command{
	Use:   "minio",
	Short: "Check MinIO connectivity",
	Long:  `Connect to the configured MinIO endpoint, ensure the bucket exists and round-trip a test object.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()
		logger.InitLogger(logger.Config{Level: logger.LogLevel(cfg.LogLevel)})

		store, err := storage.NewMinioStore(cfg)
		if err != nil {
			logger.Fatal("failed to initialize MinIO store", logger.ErrorField(err))
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		const testObject = "test/connection.txt"
		content := "MinIO connectivity check at " + time.Now().Format(time.RFC3339)

		if err := store.Upload(ctx, testObject, strings.NewReader(content), int64(len(content)), "text/plain"); err != nil {
			logger.Fatal("failed to upload test object", logger.ErrorField(err))
		}

		object, err := store.Get(ctx, testObject)
		if err != nil {
			logger.Fatal("failed to get test object", logger.ErrorField(err))
		}
		defer object.Close()

		data, err := io.ReadAll(object)
		if err != nil {
			logger.Fatal("failed to read test object", logger.ErrorField(err))
		}
		if string(data) != content {
			logger.Fatal("test object content mismatch", logger.String("got", string(data)))
		}

		if err := store.Remove(ctx, testObject); err != nil {
			logger.Warn("failed to remove test object", logger.ErrorField(err))
		}

		logger.Info("MinIO connectivity check passed")
	},
}

func init() {
	rootCmd.AddCommand(minioCmd)
}
