// internal/cli/filter.go
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var filterCmd = &cobra.Command{
	Use:   "filter",
	Short: "Re-classify every downloaded file against the current thresholds.",
	Long: `Filter re-runs the suitability checks over the whole metadata log, useful
after changing the quality thresholds or editing files locally.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := newCrawler().Filter(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Re-classified %d files: %d suitable, %d unsuitable\n",
			res.FilesDownloaded, res.SuitableFiles, res.UnsuitableFiles)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(filterCmd)
}
