// Package main implements the vectl CLI for manual operations against the vectord HTTP server.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	// serverURL is the base URL for the vectord HTTP server
	serverURL string
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "vectl",
	Short: "CLI for vectord HTTP server operations",
	Long: `vectl is a command-line interface for inspecting a running vectord server.
It provides commands for listing collections, showing model routing, and
checking server health.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:9090", "vectord server URL")
	rootCmd.AddCommand(collectionsCmd)
	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(healthCmd)
	collectionsCmd.AddCommand(collectionInfoCmd)
}

// collectionsCmd lists collections
var collectionsCmd = &cobra.Command{
	Use:   "collections",
	Short: "List collections on the vectord server",
	Long: `List all collections with point counts and routed embedding models.

Examples:
  # List collections
  vectl collections

  # Inspect one collection
  vectl collections info legal_analysis`,
	RunE: runCollections,
}

// collectionInfoCmd shows detail for one collection
var collectionInfoCmd = &cobra.Command{
	Use:   "info NAME",
	Short: "Show detail for a collection",
	Args:  cobra.ExactArgs(1),
	RunE:  runCollectionInfo,
}

// modelsCmd shows model routing
var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Show collection-to-model routing",
	RunE:  runModels,
}

// healthCmd checks server health
var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check vectord server health",
	Long: `Check the readiness of the vectord HTTP server, including its
connection to the Qdrant backend.

Examples:
  # Check health
  vectl health

  # Check health on a different server
  vectl health --server http://localhost:8080`,
	RunE: runHealth,
}

// CollectionSummary matches internal/http CollectionsResponse entries
type CollectionSummary struct {
	Name         string `json:"name"`
	PointsCount  uint64 `json:"points_count"`
	VectorName   string `json:"vector_name"`
	Dimensions   int    `json:"dimensions"`
	Distance     string `json:"distance"`
	Model        string `json:"model"`
	Status       string `json:"status"`
	Quantization string `json:"quantization"`
}

// CollectionsResponse matches internal/http/types.go CollectionsResponse
type CollectionsResponse struct {
	Collections []CollectionSummary `json:"collections"`
	Count       int                 `json:"count"`
}

// CollectionDetail matches internal/engine CollectionDetail
type CollectionDetail struct {
	CollectionSummary
	SegmentsCount   uint64 `json:"segments_count"`
	OptimizerOK     bool   `json:"optimizer_ok"`
	HNSWM           uint64 `json:"hnsw_m"`
	HNSWEfConstruct uint64 `json:"hnsw_ef_construct"`
}

// HealthResponse matches internal/http/types.go HealthResponse
type HealthResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// getJSON fetches url and decodes the response body into out.
func getJSON(url string, out any) error {
	client := &http.Client{
		Timeout: 10 * time.Second,
	}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return fmt.Errorf("server returned status %d (failed to read response body: %w)", resp.StatusCode, readErr)
		}
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// runCollections handles the collections command
func runCollections(cmd *cobra.Command, args []string) error {
	var resp CollectionsResponse
	if err := getJSON(fmt.Sprintf("%s/api/v1/collections", serverURL), &resp); err != nil {
		return err
	}

	if resp.Count == 0 {
		fmt.Println("No collections.")
		return nil
	}

	fmt.Printf("%-32s %10s %6s %-36s %s\n", "NAME", "POINTS", "DIMS", "MODEL", "QUANTIZATION")
	for _, c := range resp.Collections {
		fmt.Printf("%-32s %10d %6d %-36s %s\n", c.Name, c.PointsCount, c.Dimensions, c.Model, c.Quantization)
	}
	return nil
}

// runCollectionInfo handles the collections info command
func runCollectionInfo(cmd *cobra.Command, args []string) error {
	var detail CollectionDetail
	if err := getJSON(fmt.Sprintf("%s/api/v1/collections/%s", serverURL, args[0]), &detail); err != nil {
		return err
	}

	fmt.Printf("Name:             %s\n", detail.Name)
	fmt.Printf("Status:           %s\n", detail.Status)
	fmt.Printf("Points:           %d\n", detail.PointsCount)
	fmt.Printf("Segments:         %d\n", detail.SegmentsCount)
	fmt.Printf("Optimizer OK:     %t\n", detail.OptimizerOK)
	fmt.Printf("Model:            %s\n", detail.Model)
	fmt.Printf("Vector Name:      %s\n", detail.VectorName)
	fmt.Printf("Dimensions:       %d\n", detail.Dimensions)
	fmt.Printf("Distance:         %s\n", detail.Distance)
	fmt.Printf("Quantization:     %s\n", detail.Quantization)
	fmt.Printf("HNSW m:           %d\n", detail.HNSWM)
	fmt.Printf("HNSW ef_construct: %d\n", detail.HNSWEfConstruct)
	return nil
}

// runModels handles the models command
func runModels(cmd *cobra.Command, args []string) error {
	// The mappings report is printed as-is; its shape is the server's contract.
	var report map[string]any
	if err := getJSON(fmt.Sprintf("%s/api/v1/models", serverURL), &report); err != nil {
		return err
	}

	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to format response: %w", err)
	}

	fmt.Println(string(out))
	return nil
}

// runHealth handles the health command
func runHealth(cmd *cobra.Command, args []string) error {
	url := fmt.Sprintf("%s/readyz", serverURL)

	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", url, err)
	}
	defer resp.Body.Close()

	// Both 200 and 503 carry a HealthResponse body.
	var health HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return fmt.Errorf("server returned status %d with unreadable body: %w", resp.StatusCode, err)
	}

	fmt.Printf("Server Status: %s\n", health.Status)
	fmt.Printf("Server URL: %s\n", serverURL)
	if health.Error != "" {
		fmt.Printf("Error: %s\n", health.Error)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server is not ready")
	}
	return nil
}
