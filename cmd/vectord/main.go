// Vectord is a semantic memory daemon backed by Qdrant with local embeddings.
//
// It serves MCP tools over stdio (the default, for editor integration) or
// over HTTP alongside health, metrics, and read-only introspection endpoints.
//
// Usage:
//
//	# Serve MCP over stdio
//	vectord serve
//
//	# Serve MCP and the REST API over HTTP
//	vectord serve --transport http
//
//	# Download the ONNX runtime for local embeddings
//	vectord init
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "vectord",
	Short: "Semantic memory daemon backed by Qdrant",
	Long: `vectord stores and searches documents as vectors in Qdrant, embedding
them locally and routing each collection to its configured embedding model.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("vectord by Fyrsmith Labs\n")
		fmt.Printf("Version:    %s\n", version)
		fmt.Printf("Commit:     %s\n", gitCommit)
		fmt.Printf("Build Date: %s\n", buildDate)
	},
}
