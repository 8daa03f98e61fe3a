package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/denysvitali/filemanager-go/pkg/config"
	"github.com/denysvitali/filemanager-go/pkg/mcp"
	"github.com/denysvitali/filemanager-go/pkg/storage"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve file manager tools over MCP on stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := GetLogger()
		// stdout carries the protocol
		logger.SetOutput(os.Stderr)

		cfg, err := config.LoadLocal()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		store, err := storage.New(cfg.FileManager.BaseDir, logger)
		if err != nil {
			return err
		}

		err = mcp.NewServer(logger, store).ServeStdio()
		if err != nil && err != io.EOF {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
