package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"tools.velia/pipeline/timekeep/internal/mirror"
)

// ///////////////////////////////////////////////
// seed Command
// ///////////////////////////////////////////////

func newSeedCmd(dataDir *string) *cobra.Command {
	var (
		days     int
		jsonName string
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Fill the mirror with generated sample activity",
		Long: `Seed generates plausible multi-user activity covering the past
days and inserts it into the SQLite mirror, plus a combined JSON
document. Useful for trying out report filters against realistic data.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			dp := DataPaths{Root: *dataDir}

			db, err := mirror.Open(dp.Mirror())
			if err != nil {
				return err
			}
			defer db.Close()

			jsonPath := ""
			if jsonName != "" {
				jsonPath = filepath.Join(dp.Root, jsonName)
			}

			n, err := db.Seed(context.Background(), days, jsonPath, nil)
			if err != nil {
				return err
			}
			fmt.Printf("seeded %d sample sessions into %s\n", n, dp.Mirror())
			if jsonPath != "" {
				fmt.Printf("wrote combined document %s\n", jsonPath)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 30, "Number of past days to generate")
	cmd.Flags().StringVar(&jsonName, "json", "all_activities.json", "Combined JSON file name in the data directory (empty to skip)")
	return cmd
}
