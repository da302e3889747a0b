package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/noumenal/ckg/pkg/ckg"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Report composite stats for every open collection",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(func(e *ckg.Engine) error {
			stats, err := e.GetStats()
			if err != nil {
				return err
			}
			for name, c := range stats.Collections {
				fmt.Printf("%s\titems=%d\torphans=%d\tnodes=%d\tedges=%d\n",
					name, c.Vector.TotalItems, c.Vector.OrphanCount, c.Graph.NodeCount, c.Graph.EdgeCount)
			}
			fmt.Printf("patterns=%d\n", stats.Patterns)
			return nil
		})
	},
}

var tickCmd = &cobra.Command{
	Use:   "tick",
	Short: "Run one tiering/compaction/pattern-refit pass",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(func(e *ckg.Engine) error {
			return e.Tick(time.Now())
		})
	},
}
