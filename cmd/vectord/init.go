package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/vectord/internal/config"
	"github.com/fyrsmithlabs/vectord/internal/embeddings"
)

var forceDownload bool

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVarP(&forceDownload, "force", "f", false, "Force re-download even if ONNX runtime exists")
}

// initCmd prepares a machine for local embeddings.
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize vectord dependencies",
	Long: `Initialize vectord by creating the config directory and downloading
the ONNX runtime library required for local embeddings. The library is
installed to:
  ~/.config/vectord/lib/

If ONNX_PATH environment variable is set, that path takes precedence.

Examples:
  # Initialize vectord (download ONNX runtime)
  vectord init

  # Force re-download even if already installed
  vectord init --force`,
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	if err := config.EnsureConfigDir(); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if !forceDownload {
		if path := embeddings.GetONNXLibraryPath(); path != "" {
			cmd.Printf("ONNX runtime already installed at: %s\n", path)
			cmd.Println("Use --force to re-download.")
			return nil
		}
	}

	cmd.Printf("Downloading ONNX runtime v%s...\n", embeddings.DefaultONNXRuntimeVersion)

	if err := embeddings.DownloadONNXRuntime(cmd.Context(), ""); err != nil {
		return fmt.Errorf("failed to download ONNX runtime: %w", err)
	}

	path := embeddings.GetONNXLibraryPath()
	if path == "" {
		return fmt.Errorf("download completed but library not found")
	}

	cmd.Printf("Successfully installed ONNX runtime to: %s\n", path)
	return nil
}
