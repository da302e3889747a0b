package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/noumenal/ckg/internal/config"
	"github.com/noumenal/ckg/pkg/ckg"
)

var collectionCmd = &cobra.Command{
	Use:   "collection",
	Short: "Manage collections",
}

var (
	createDimension int
	createMetric    string
	deleteMigrateTo string
)

func init() {
	createCmd.Flags().IntVar(&createDimension, "dimension", 384, "vector dimension")
	createCmd.Flags().StringVar(&createMetric, "metric", "cosine", "similarity metric: cosine, l2, or dot")
	deleteCmd.Flags().StringVar(&deleteMigrateTo, "migrate-to", "", "migrate documents into this collection before deleting")

	collectionCmd.AddCommand(createCmd)
	collectionCmd.AddCommand(listCmd)
	collectionCmd.AddCommand(deleteCmd)
}

var createCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Register and open a new collection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(func(e *ckg.Engine) error {
			info, err := e.CreateCollection(args[0], createDimension, ckg.Metric(createMetric), nil)
			if err != nil {
				return err
			}
			fmt.Printf("created %q (dimension=%d, metric=%s)\n", info.Name, info.Dimension, info.Metric)
			return nil
		})
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List every registered collection",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(func(e *ckg.Engine) error {
			for _, c := range e.ListCollections() {
				fmt.Printf("%s\tdimension=%d\tmetric=%s\tcreated=%s\n", c.Name, c.Dimension, c.Metric, c.CreatedAt.Format("2006-01-02T15:04:05Z07:00"))
			}
			return nil
		})
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a collection, optionally migrating its documents first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(func(e *ckg.Engine) error {
			return e.DeleteCollection(args[0], deleteMigrateTo)
		})
	},
}

// withEngine loads config, opens an Engine, runs fn, and closes it.
func withEngine(fn func(*ckg.Engine) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	e, err := ckg.Open(cfg)
	if err != nil {
		return fmt.Errorf("open engine: %w", err)
	}
	defer e.Close()
	return fn(e)
}
