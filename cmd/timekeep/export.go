package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tools.velia/pipeline/timekeep/internal/report"
)

// ///////////////////////////////////////////////
// export Command
// ///////////////////////////////////////////////

func newExportCmd(dataDir *string) *cobra.Command {
	rf := &recordFlags{}
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export tracked sessions as CSV",
		RunE: func(_ *cobra.Command, _ []string) error {
			records, err := loadRecords(*dataDir, rf)
			if err != nil {
				return err
			}

			w := os.Stdout
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create %s: %w", output, err)
				}
				defer f.Close()
				w = f
			}

			if err := report.WriteCSV(w, records); err != nil {
				return err
			}
			if output != "" {
				fmt.Fprintf(os.Stderr, "exported %d sessions to %s\n", len(records), output)
			}
			return nil
		},
	}
	rf.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write CSV to a file instead of stdout")
	return cmd
}
