// Command catalog generates synthetic search catalogs and loads catalog files
// into Elasticsearch.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/utafrali/EcommerceGo/pkg/logger"
	"github.com/utafrali/EcommerceGo/services/search/internal/backend"
	esbackend "github.com/utafrali/EcommerceGo/services/search/internal/backend/elasticsearch"
	"github.com/utafrali/EcommerceGo/services/search/internal/catalog"
)

func main() {
	var logLevel string

	rootCmd := &cobra.Command{
		Use:           "catalog",
		Short:         "Search catalog tooling",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	var (
		count  int
		seed   int64
		output string
	)
	generateCmd := &cobra.Command{
		Use:   "generate",
		Short: "Write a synthetic catalog as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create output: %w", err)
				}
				defer f.Close()
				out = f
			}

			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			if err := enc.Encode(catalog.Generate(count, seed)); err != nil {
				return fmt.Errorf("write catalog: %w", err)
			}
			return nil
		},
	}
	generateCmd.Flags().IntVarP(&count, "count", "n", 10000, "Number of products")
	generateCmd.Flags().Int64Var(&seed, "seed", 42, "Random seed")
	generateCmd.Flags().StringVarP(&output, "output", "o", "-", "Output file, - for stdout")

	var (
		file      string
		esURL     string
		index     string
		batchSize int
		recreate  bool
	)
	indexCmd := &cobra.Command{
		Use:   "index",
		Short: "Load a catalog file into Elasticsearch",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger.New("search-catalog", logLevel)

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			f, err := os.Open(file)
			if err != nil {
				return fmt.Errorf("open catalog: %w", err)
			}
			defer f.Close()

			items, err := backend.LoadCatalog(f)
			if err != nil {
				return err
			}

			es, err := esbackend.New(esURL, index, log)
			if err != nil {
				return fmt.Errorf("init elasticsearch backend: %w", err)
			}
			if recreate {
				if err := es.DeleteIndex(ctx); err != nil {
					return err
				}
				if es, err = esbackend.New(esURL, index, log); err != nil {
					return fmt.Errorf("recreate index: %w", err)
				}
			}

			n, err := catalog.Index(ctx, es, items, batchSize)
			if err != nil {
				return err
			}
			log.Info("catalog indexed",
				slog.String("index", index),
				slog.Int("items", n),
			)
			return nil
		},
	}
	indexCmd.Flags().StringVarP(&file, "file", "f", "", "Catalog JSON file")
	indexCmd.Flags().StringVar(&esURL, "es-url", envOr("ELASTICSEARCH_URL", "http://localhost:9200"), "Elasticsearch URL")
	indexCmd.Flags().StringVar(&index, "index", envOr("ELASTICSEARCH_INDEX", esbackend.DefaultIndexName), "Index name")
	indexCmd.Flags().IntVar(&batchSize, "batch-size", catalog.DefaultBatchSize, "Documents per bulk request")
	indexCmd.Flags().BoolVar(&recreate, "recreate", false, "Delete and recreate the index first")
	_ = indexCmd.MarkFlagRequired("file")

	rootCmd.AddCommand(generateCmd, indexCmd)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
